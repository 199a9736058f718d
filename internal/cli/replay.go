package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/solvelog/internal/record"
	"github.com/roach88/solvelog/internal/replay"
	"github.com/roach88/solvelog/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	All bool
}

// ReplayCheck is the determinism result for one record.
type ReplayCheck struct {
	Identity      string `json:"identity"`
	Deterministic bool   `json:"deterministic"`
	Duration      int64  `json:"duration"`
	Solved        bool   `json:"solved"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [identity]",
		Short: "Replay a record into its timeline",
		Long: `Replay a stored record into its timeline.

With an identity, prints a summary of the replay (text) or the full
timeline (--format json). With --all, replays every stored record twice
and checks that both replays are identical.

Exit codes:
  0 - Replay succeeded (all replays deterministic)
  1 - Replays diverged
  2 - Command error`,
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
				return runReplayAll(opts, cmd)
			}
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "replay every stored record and check determinism")

	return cmd
}

func runReplay(opts *ReplayOptions, identity string, cmd *cobra.Command) error {
	cfg, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	formatter := opts.formatter(cmd)
	rec, err := st.Get(cmd.Context(), identity)
	if err != nil {
		return storageFailure(formatter, identity, err)
	}
	tl := replay.Build(rec, cfg.ReplayOptions())

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"timeline": tl, "stats": tl.Stats()})
	}
	fmt.Fprintln(cmd.OutOrStdout(), record.HumanName(rec))
	return replay.WriteSummary(cmd.OutOrStdout(), tl)
}

func runReplayAll(opts *ReplayOptions, cmd *cobra.Command) error {
	cfg, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	formatter := opts.formatter(cmd)
	var progress io.Writer
	if opts.Verbose {
		progress = cmd.ErrOrStderr()
	}
	checks, err := checkAll(cmd.Context(), st, cfg.ReplayOptions(), cfg.ReplayWorkers, progress)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}

	var diverged []string
	for _, c := range checks {
		if !c.Deterministic {
			diverged = append(diverged, c.Identity)
		}
	}

	if opts.Format != "json" {
		w := cmd.OutOrStdout()
		for _, c := range checks {
			mark := "✓"
			if !c.Deterministic {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s %s\n", mark, c.Identity, replay.FormatDuration(c.Duration))
		}
	}
	if len(diverged) > 0 {
		return formatter.Fail(ExitFailure, ErrCodeDeterminism,
			fmt.Sprintf("%d of %d replays diverged", len(diverged), len(checks)), diverged)
	}
	if opts.Format == "json" {
		return formatter.Success(map[string]any{"records": checks})
	}
	return formatter.Success(fmt.Sprintf("%d record(s) replayed deterministically", len(checks)))
}

// checkAll replays every stored record twice on a bounded worker pool.
// Results keep the storage's listing order. Progress lines go to progress
// when it is non-nil.
func checkAll(ctx context.Context, st *store.Store, opts replay.Options, workers int, progress io.Writer) ([]ReplayCheck, error) {
	ids, err := st.List(ctx)
	if err != nil {
		return nil, err
	}

	checks := make([]ReplayCheck, len(ids))
	var mu sync.Mutex
	done := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, id := range ids {
		g.Go(func() error {
			rec, err := st.Get(gCtx, id)
			if err != nil {
				return fmt.Errorf("get %s: %w", id, err)
			}
			c, err := checkReplay(id, rec, opts)
			if err != nil {
				return err
			}
			checks[i] = c

			if progress != nil {
				mu.Lock()
				done++
				fmt.Fprintf(progress, "replayed %d/%d %s\n", done, len(ids), id)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return checks, nil
}

// checkReplay builds the timeline of rec twice and compares the encodings.
func checkReplay(identity string, rec *record.Record, opts replay.Options) (ReplayCheck, error) {
	first := replay.Build(rec, opts)
	second := replay.Build(rec, opts)

	a, err := json.Marshal(first)
	if err != nil {
		return ReplayCheck{}, fmt.Errorf("encode timeline %s: %w", identity, err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		return ReplayCheck{}, fmt.Errorf("encode timeline %s: %w", identity, err)
	}
	st := first.Stats()
	return ReplayCheck{
		Identity:      identity,
		Deterministic: bytes.Equal(a, b),
		Duration:      st.Duration,
		Solved:        st.Solved,
	}, nil
}
