package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/record"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored records",
		Long: `List every stored session record with its name, version, status and
last event time.

Example:
  solvelog list --db ./solvelog.db
  solvelog list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	_, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	summaries, err := st.Summaries(cmd.Context())
	if err != nil {
		return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(map[string]any{"records": summaries})
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No records found in database.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTITY\tNAME\tVERSION\tSTATUS\tEVENTS\tLAST EVENT\tREVISION")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
			s.Identity, s.Name, s.Version, s.Status.Label(), s.Events, formatEventTime(s.LastEventAt), s.Revision)
	}
	return tw.Flush()
}

func formatEventTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// StatusResult is the status command payload.
type StatusResult struct {
	record.Summary
	Label string `json:"label"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status <identity>",
		Short:         "Show the recording status of one record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args[0], cmd)
		},
	}
}

func runStatus(opts *RootOptions, identity string, cmd *cobra.Command) error {
	_, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	rec, err := st.Get(cmd.Context(), identity)
	if err != nil {
		return storageFailure(opts.formatter(cmd), identity, err)
	}
	sum := record.Summarize(identity, rec)
	if sum.Revision, err = st.Revision(cmd.Context(), identity); err != nil {
		return storageFailure(opts.formatter(cmd), identity, err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(StatusResult{Summary: sum, Label: sum.Status.Label()})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s\n", sum.Name)
	fmt.Fprintf(w, "  status: %s\n", sum.Status.Label())
	fmt.Fprintf(w, "  events: %d\n", sum.Events)
	fmt.Fprintf(w, "  last event: %s\n", formatEventTime(sum.LastEventAt))
	fmt.Fprintf(w, "  revision: %d\n", sum.Revision)
	return nil
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <identity>",
		Short: "Export a record as JSON",
		Long: `Export a stored session record as a JSON document.

Without -o the record is written to its suggested filename in the current
directory. Use -o - for stdout.

Example:
  solvelog export record-3f2a... -o mini.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (- for stdout)")

	return cmd
}

func runExport(opts *ExportOptions, identity string, cmd *cobra.Command) error {
	_, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	formatter := opts.formatter(cmd)
	rec, err := st.Get(cmd.Context(), identity)
	if err != nil {
		return storageFailure(formatter, identity, err)
	}

	if opts.Output == "-" {
		return record.Encode(cmd.OutOrStdout(), rec)
	}

	path := opts.Output
	if path == "" {
		path = record.SuggestedFilename(rec, "json")
	}
	data, err := record.Marshal(rec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
	}

	formatter.VerboseLog("Wrote %d event(s)", len(rec.Events))
	if opts.Format == "json" {
		return formatter.Success(map[string]any{"identity": identity, "path": path, "events": len(rec.Events)})
	}
	return formatter.Success(fmt.Sprintf("Exported %s to %s", identity, path))
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate and store a record document",
		Long: `Validate a session record document against the record schema, compute
its puzzle identity and store it, replacing any record with that identity.

Legacy documents using initialState, clueSections or userAgent are accepted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	rec, err := readRecordFile(formatter, path)
	if err != nil {
		return err
	}
	identity, err := rec.Identity()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDecode, err.Error(), nil)
	}

	_, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	if err := st.Put(cmd.Context(), identity, rec); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}

	if opts.Format == "json" {
		return formatter.Success(record.Summarize(identity, rec))
	}
	return formatter.Success(fmt.Sprintf("Imported %s (%d events)", identity, len(rec.Events)))
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a record document against the schema",
		Long: `Validate a session record document against the embedded CUE record schema
without storing it.

Exit codes:
  0 - Document is valid
  1 - Schema violations found
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
	}

	if err := record.Validate(data); err != nil {
		var se *record.SchemaError
		if !errors.As(err, &se) {
			return formatter.Fail(ExitFailure, ErrCodeDecode, err.Error(), nil)
		}
		// Text details are one violation per line.
		if opts.Format != "json" {
			for _, d := range se.Details {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", d)
			}
		}
		return formatter.Fail(ExitFailure, ErrCodeSchema, "record schema validation failed", ValidationResult{Errors: se.Details})
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	return formatter.Success(fmt.Sprintf("✓ %s is a valid record", path))
}

// NewIdentityCommand creates the identity command.
func NewIdentityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identity <file>",
		Short: "Print the puzzle identity of a record or observation document",
		Args:  cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentity(rootOpts, args[0], cmd)
		},
	}
}

func runIdentity(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
	}
	// Observations are records without events, so one decoder serves both.
	rec, err := record.Decode(data)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDecode, err.Error(), nil)
	}
	identity, err := rec.Identity()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDecode, err.Error(), nil)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]string{"identity": identity})
	}
	return formatter.Success(identity)
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	All bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete [identity]",
		Short: "Delete a stored record",
		Long: `Delete a stored record by identity, or every stored record with --all.

--all does not ask for confirmation.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.All {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All {
				return runDeleteAll(opts, cmd)
			}
			return runDelete(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "delete every stored record")

	return cmd
}

func runDelete(opts *DeleteOptions, identity string, cmd *cobra.Command) error {
	_, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	formatter := opts.formatter(cmd)
	if err := st.Delete(cmd.Context(), identity); err != nil {
		return storageFailure(formatter, identity, err)
	}
	if opts.Format == "json" {
		return formatter.Success(map[string]string{"deleted": identity})
	}
	return formatter.Success(fmt.Sprintf("Deleted %s", identity))
}

func runDeleteAll(opts *DeleteOptions, cmd *cobra.Command) error {
	_, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	formatter := opts.formatter(cmd)
	n, err := st.DeleteAll(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}
	slog.Info("deleted all records", "count", n)
	if opts.Format == "json" {
		return formatter.Success(map[string]int{"deleted": n})
	}
	return formatter.Success(fmt.Sprintf("Deleted %d records", n))
}

// readRecordFile reads, schema-checks and decodes a record document.
func readRecordFile(formatter *OutputFormatter, path string) (*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
	}
	if err := record.Validate(data); err != nil {
		var se *record.SchemaError
		if errors.As(err, &se) {
			return nil, formatter.Fail(ExitFailure, ErrCodeSchema, "record schema validation failed", ValidationResult{Errors: se.Details})
		}
		return nil, formatter.Fail(ExitFailure, ErrCodeDecode, err.Error(), nil)
	}
	rec, err := record.Decode(data)
	if err != nil {
		return nil, formatter.Fail(ExitFailure, ErrCodeDecode, err.Error(), nil)
	}
	return rec, nil
}

func storageFailure(formatter *OutputFormatter, identity string, err error) error {
	if errors.Is(err, persist.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("record %s not found", identity), nil)
	}
	return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
}
