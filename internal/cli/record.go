package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/solvelog/internal/config"
	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/metrics"
	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/record"
	"github.com/roach88/solvelog/internal/recorder"
)

// maxBatchLine bounds one JSON line on the record command's input.
const maxBatchLine = 4 << 20

// teardownTimeout bounds the final write after input ends or a signal arrives.
const teardownTimeout = 15 * time.Second

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	MetricsAddr string
}

// RecordResult is the outcome of a record run.
type RecordResult struct {
	Identity    string `json:"identity"`
	RecordingID string `json:"recordingId"`
	Status      string `json:"status"`
	Events      int    `json:"events"`
	Batches     int    `json:"batches"`
	Refused     int    `json:"refused,omitempty"`
	Disengaged  bool   `json:"disengaged,omitempty"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <observation.json>",
		Short: "Record a solving session from candidate batches on stdin",
		Long: `Open a recording session for the observed puzzle and feed it candidate
event batches read from stdin, one JSON value per line. A line is either an
array of candidates or an object {"candidates": [...], "observedAt": ms}.

The record is written according to the flush policy and once more on
teardown, when input ends or the process is interrupted.

Example:
  solvelog record page.json < events.jsonl
  adapter | solvelog record page.json --metrics-addr 127.0.0.1:9099`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while recording")

	return cmd
}

func runRecord(opts *RecordOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
	}
	var obs record.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDecode, fmt.Sprintf("decoding observation: %v", err), nil)
	}

	cfg, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)
	applyConfig(cfg, &obs)

	m := metrics.New()
	flusher := persist.NewFlusher(st, persist.WithFlushObserver(m))
	defer flusher.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := recorder.Open(ctx, st, flusher, obs,
		recorder.WithPolicy(cfg.Policy()),
		recorder.WithObserver(m),
	)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err.Error(), nil)
	}
	formatter.VerboseLog("Recording %s as %s", session.Identity(), session.RecordingID())

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", opts.MetricsAddr, "error", err)
			}
		}()
		defer srv.Close()
	}

	q := recorder.NewQueue(cfg.QueueSize)
	fed := make(chan feedResult, 1)
	go func() {
		res := feedQueue(cmd.InOrStdin(), q)
		q.Close()
		fed <- res
	}()

	var feed feedResult
	runErr := session.Run(ctx, q)
	if runErr == nil {
		// Run only returns nil once the feeder has closed the queue.
		feed = <-fed
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), teardownTimeout)
	defer cancel()
	closeErr := session.Close(closeCtx)

	switch {
	case feed.err != nil:
		return formatter.Fail(ExitFailure, ErrCodeDecode, feed.err.Error(), nil)
	case closeErr != nil:
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, closeErr.Error(), nil)
	}

	snap := session.Snapshot()
	result := RecordResult{
		Identity:    session.Identity(),
		RecordingID: session.RecordingID(),
		Status:      snap.Status().Label(),
		Events:      len(snap.Events),
		Batches:     feed.pushed,
		Refused:     feed.refused,
		Disengaged:  session.Disengaged(),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("%s: %s, %d event(s) from %d batch(es)",
		result.Identity, result.Status, result.Events, result.Batches))
}

// applyConfig fills solver and user agent metadata from configuration.
func applyConfig(cfg *config.Config, obs *record.Observation) {
	if cfg.SolverName != "" {
		obs.SolverName = cfg.SolverName
	}
	obs.UserAgentInfo = cfg.UserAgentInfo()
}

// batchLine is the object form of an input line.
type batchLine struct {
	Candidates []event.Candidate `json:"candidates"`
	ObservedAt int64             `json:"observedAt"`
}

// parseBatchLine decodes one input line. Blank lines yield ok == false.
func parseBatchLine(line []byte) (b recorder.Batch, ok bool, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return recorder.Batch{}, false, nil
	}
	if line[0] == '[' {
		var cs []event.Candidate
		if err := json.Unmarshal(line, &cs); err != nil {
			return recorder.Batch{}, false, err
		}
		return recorder.Batch{Candidates: cs}, true, nil
	}
	var bl batchLine
	if err := json.Unmarshal(line, &bl); err != nil {
		return recorder.Batch{}, false, err
	}
	return recorder.Batch{Candidates: bl.Candidates, ObservedAt: bl.ObservedAt}, true, nil
}

type feedResult struct {
	pushed  int
	refused int
	err     error
}

// feedQueue pushes every batch read from r onto q. Batches the queue refuses
// are counted and logged, not retried.
func feedQueue(r io.Reader, q *recorder.Queue) feedResult {
	var res feedResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxBatchLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		b, ok, err := parseBatchLine(sc.Bytes())
		if err != nil {
			res.err = fmt.Errorf("input line %d: %w", lineNo, err)
			return res
		}
		if !ok {
			continue
		}
		if !q.Push(b) {
			res.refused++
			slog.Warn("batch refused by queue", "line", lineNo, "candidates", len(b.Candidates))
			continue
		}
		res.pushed++
	}
	if err := sc.Err(); err != nil {
		res.err = fmt.Errorf("reading input: %w", err)
	}
	return res
}
