package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/solvelog/internal/api"
	"github.com/roach88/solvelog/internal/metrics"
	"github.com/roach88/solvelog/internal/persist"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored records and timelines over HTTP",
		Long: `Serve the record store over HTTP.

Routes:
  GET    /health
  GET    /records
  GET    /records/{id}
  GET    /records/{id}/timeline
  GET    /records/{id}/summary
  DELETE /records/{id}
  GET    /metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http_addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	addr := cfg.HTTPAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	m := metrics.New()
	flusher := persist.NewFlusher(st, persist.WithFlushObserver(m))
	defer flusher.Close()

	srv := &http.Server{
		Addr: addr,
		Handler: api.NewHandler(api.Deps{
			Storage: st,
			Deleter: flusher,
			Metrics: m,
			Replay:  cfg.ReplayOptions(),
			Workers: cfg.ReplayWorkers,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down http server")
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("serving on %s", addr), err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
