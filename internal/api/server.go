package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/solvelog/internal/metrics"
	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/record"
	"github.com/roach88/solvelog/internal/replay"
)

const defaultWorkers = 4

// Summarizer is implemented by storages that can list summaries without
// decoding every record.
type Summarizer interface {
	Summaries(ctx context.Context) ([]record.Summary, error)
}

// Deleter removes a stored record.
type Deleter interface {
	Delete(ctx context.Context, identity string) error
}

// Deps are the handler dependencies.
type Deps struct {
	Storage persist.Storage

	// Deleter handles DELETE. Defaults to Storage; pass the recorder's
	// flusher so in-flight writes cannot resurrect a deleted record.
	Deleter Deleter

	// Metrics is optional; when nil /metrics is not routed.
	Metrics *metrics.Manager

	// Replay configures timeline builds: clue layout and playback speed.
	Replay replay.Options

	// Workers bounds concurrent record reads when listing.
	Workers int
}

// NewHandler returns the HTTP handler for deps.
func NewHandler(deps Deps) http.Handler {
	if deps.Deleter == nil {
		deps.Deleter = deps.Storage
	}
	if deps.Workers <= 0 {
		deps.Workers = defaultWorkers
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(instrument(deps.Metrics))
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/health", handleHealth)
	r.Get("/records", handleListRecords(deps))
	r.Get("/records/{id}", handleGetRecord(deps))
	r.Get("/records/{id}/timeline", handleTimeline(deps))
	r.Get("/records/{id}/summary", handleSummary(deps))
	r.Delete("/records/{id}", handleDeleteRecord(deps))

	return r
}

// instrument records request counts and latency by route pattern.
func instrument(m *metrics.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(route, status, time.Since(start))
		})
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := listSummaries(r.Context(), deps)
		if err != nil {
			slog.Error("list records failed", "error", err)
			httpError(w, http.StatusInternalServerError, "storage_error", "list records: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": summaries})
	}
}

func handleGetRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := loadRecord(w, r, deps)
		if !ok {
			return
		}
		data, err := record.Marshal(rec)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "encode_error", "encode record: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.SuggestedFilename(rec, "json")))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func handleTimeline(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := loadRecord(w, r, deps)
		if !ok {
			return
		}
		tl := replay.Build(rec, deps.Replay)
		writeJSON(w, http.StatusOK, map[string]any{
			"timeline": tl,
			"stats":    tl.Stats(),
		})
	}
}

func handleSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := loadRecord(w, r, deps)
		if !ok {
			return
		}
		tl := replay.Build(rec, deps.Replay)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := replay.WriteSummary(w, tl); err != nil {
			slog.Warn("write summary failed", "error", err)
		}
	}
}

func handleDeleteRecord(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := deps.Deleter.Delete(r.Context(), id)
		switch {
		case errors.Is(err, persist.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "record %s not found", id)
		case err != nil:
			slog.Error("delete record failed", "identity", id, "error", err)
			httpError(w, http.StatusInternalServerError, "storage_error", "delete record: %v", err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// loadRecord fetches the {id} record, writing the error response on failure.
func loadRecord(w http.ResponseWriter, r *http.Request, deps Deps) (*record.Record, bool) {
	id := chi.URLParam(r, "id")
	rec, err := deps.Storage.Get(r.Context(), id)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "record %s not found", id)
		return nil, false
	case err != nil:
		slog.Error("get record failed", "identity", id, "error", err)
		httpError(w, http.StatusInternalServerError, "storage_error", "get record: %v", err)
		return nil, false
	}
	return rec, true
}

// listSummaries returns summaries in identity order. Storages without a
// Summarizer are read one record per identity on a bounded worker group.
func listSummaries(ctx context.Context, deps Deps) ([]record.Summary, error) {
	if s, ok := deps.Storage.(Summarizer); ok {
		return s.Summaries(ctx)
	}

	ids, err := deps.Storage.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]record.Summary, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(deps.Workers)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := deps.Storage.Get(gCtx, id)
			if err != nil {
				return fmt.Errorf("get %s: %w", id, err)
			}
			summaries[i] = record.Summarize(id, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
