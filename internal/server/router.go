// Package server exposes the compression service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-compressor/internal/batch"
	"github.com/tendant/simple-compressor/internal/catalog"
	"github.com/tendant/simple-compressor/internal/process"
	"github.com/tendant/simple-compressor/pkg/schema"
)

// Jobs is the submission boundary the handlers drive.
type Jobs interface {
	Start(ctx context.Context, req batch.StartRequest) (batch.StartResult, error)
	Stop(jobID string) error
	Progress(jobID string) (process.Record, bool)
}

type handler struct {
	jobs   Jobs
	logger *slog.Logger
}

// NewRouter builds the HTTP API. gatherer may be nil to omit /metrics.
func NewRouter(jobs Jobs, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	h := &handler{jobs: jobs, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/compress", func(r chi.Router) {
		r.Post("/", h.start)
		r.Post("/stop", h.stop)
		r.Get("/{processId}", h.progress)
	})
	return r
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	var req schema.StartCompression
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := h.jobs.Start(r.Context(), batch.StartRequest{
		JobID:        req.ProcessID,
		CollectionID: req.CollectionID,
		Percentage:   float64(req.ResizePercentage),
		Strategy:     req.CompressionStrategy,
	})
	if err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}

	h.logger.Info("compression job accepted", "job_id", res.JobID, "collection_id", req.CollectionID, "total_images", res.TotalImages)
	render.JSON(w, r, schema.StartCompressionResponse{Success: true, ProcessID: res.JobID, TotalImages: res.TotalImages})
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	var req schema.StopCompression
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.jobs.Stop(req.ProcessID); err != nil {
		h.fail(w, r, statusFor(err), err)
		return
	}
	render.JSON(w, r, schema.StopCompressionResponse{Success: true})
}

func (h *handler) progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "processId")
	rec, ok := h.jobs.Progress(id)
	if !ok {
		h.fail(w, r, http.StatusNotFound, batch.ErrJobNotFound)
		return
	}
	render.JSON(w, r, rec)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, schema.ErrorResponse{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	var verr batch.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, batch.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrJobExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
