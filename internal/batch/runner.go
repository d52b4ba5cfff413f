// Package batch runs compression jobs over whole collections and owns their
// submission and cancellation.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-compressor/internal/catalog"
	"github.com/tendant/simple-compressor/internal/compress"
	"github.com/tendant/simple-compressor/internal/metrics"
	"github.com/tendant/simple-compressor/internal/plan"
	"github.com/tendant/simple-compressor/internal/process"
)

// DefaultRetention is how long a finished job's record stays readable.
const DefaultRetention = 30 * time.Second

// Thumbnailer produces one thumbnail close to a byte budget.
type Thumbnailer interface {
	Compress(ctx context.Context, token compress.Canceller, req compress.Request) (compress.Result, error)
}

// Notifier receives a snapshot after every ledger change.
type Notifier interface {
	PublishProgress(jobID string, rec process.Record)
}

// Mirror copies an accepted thumbnail to secondary storage.
type Mirror interface {
	Mirror(ctx context.Context, collectionID, thumbPath string, stale []string) error
}

// Job is one submitted compression batch.
type Job struct {
	ID         string
	Collection catalog.Collection
	Percentage int
	Strategy   plan.Strategy
	Token      *process.Token
}

// Deps wires a Runner. Ledger, Registry, Store and Compressor are required.
type Deps struct {
	Ledger     *process.Ledger
	Registry   *process.Registry
	Store      catalog.Store
	Layout     catalog.Layout
	Compressor Thumbnailer
	Notifier   Notifier
	Mirror     Mirror
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Retention  time.Duration
}

// Runner executes jobs. One Runner serves every job in the process.
type Runner struct {
	Deps

	// persistMu serialises catalog read-modify-write cycles across jobs.
	persistMu sync.Mutex
}

func NewRunner(d Deps) *Runner {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Retention <= 0 {
		d.Retention = DefaultRetention
	}
	return &Runner{Deps: d}
}

// Run processes job to completion, cancellation or failure. It always leaves
// the job unregistered, with a terminal status, and schedules removal of its
// ledger record.
func (r *Runner) Run(ctx context.Context, job Job) {
	logger := r.Logger.With("job_id", job.ID, "collection_id", job.Collection.ID)
	start := time.Now()
	logger.Info("compression job started", "images", len(job.Collection.Images), "percentage", job.Percentage, "strategy", job.Strategy)

	status, err := r.runSafe(ctx, job, logger)

	r.Registry.Release(job.ID, job.Token)

	u := process.Update{Status: status, CurrentImage: process.String("")}
	if err != nil {
		u.Error = err.Error()
		logger.Error("compression job failed", "err", err)
	}
	r.Ledger.Update(job.ID, u)
	r.publish(job.ID)
	r.Metrics.JobFinished(string(status))

	rec, _ := r.Ledger.Get(job.ID)
	logger.Info("compression job finished", "status", status, "processed", rec.ProcessedImages, "total", rec.TotalImages, "duration_ms", time.Since(start).Milliseconds())

	r.Ledger.ClearAfter(job.ID, r.Retention)
}

func (r *Runner) runSafe(ctx context.Context, job Job, logger *slog.Logger) (status process.JobStatus, err error) {
	defer func() {
		if p := recover(); p != nil {
			status, err = process.JobStatusError, fmt.Errorf("panic: %v", p)
		}
	}()

	status, err = r.run(ctx, job, logger)
	if err != nil {
		return process.JobStatusError, err
	}
	return status, nil
}

func (r *Runner) run(ctx context.Context, job Job, logger *slog.Logger) (process.JobStatus, error) {
	token := job.Token
	col := job.Collection

	if token.Cancelled() {
		return process.JobStatusCancelled, nil
	}

	sources := make([]plan.Source, len(col.Images))
	for i, im := range col.Images {
		sources[i] = plan.Source{ImageID: im.ID, Path: r.Layout.SourcePath(col.ID, im.Filename)}
	}
	inputs, err := plan.Measure(sources, token)
	if errors.Is(err, plan.ErrCancelled) {
		return process.JobStatusCancelled, nil
	}
	if err != nil {
		return "", fmt.Errorf("measure sources: %w", err)
	}
	targets := plan.Compute(inputs, job.Percentage, job.Strategy)
	if token.Cancelled() {
		return process.JobStatusCancelled, nil
	}
	logger.Debug("target sizes planned", "entries", len(targets))

	images := make([]catalog.Image, len(col.Images))
	copy(images, col.Images)
	thumbDir := r.Layout.ThumbDir(col.ID)

	processed := 0
	advance := func() {
		processed++
		r.Ledger.Update(job.ID, process.Update{Processed: process.Int(processed), CurrentImage: process.String("")})
		r.publish(job.ID)
	}

	for i, im := range images {
		if token.Cancelled() {
			return process.JobStatusCancelled, nil
		}

		entry, ok := targets[im.ID]
		if !ok {
			r.Metrics.ImageProcessed(metrics.OutcomeSkipped)
			advance()
			continue
		}

		r.Ledger.Update(job.ID, process.Update{CurrentImage: process.String(im.Filename)})
		r.publish(job.ID)

		if entry.Missing() {
			r.Ledger.AddStat(job.ID, im.ID, process.FailedStat(im.Filename, 0, entry.Target, compress.ErrSourceNotFound))
			r.Metrics.ImageProcessed(metrics.OutcomeMissing)
			advance()
			continue
		}

		res, err := r.Compressor.Compress(ctx, token, compress.Request{
			SourcePath: r.Layout.SourcePath(col.ID, im.Filename),
			ThumbDir:   thumbDir,
			TargetKB:   targetKB(entry.Target),
		})
		if err != nil {
			logger.Warn("image compression failed", "image_id", im.ID, "filename", im.Filename, "err", err)
			r.Ledger.AddStat(job.ID, im.ID, process.FailedStat(im.Filename, entry.Original, entry.Target, err))
			r.Metrics.ImageProcessed(metrics.OutcomeFailed)
			advance()
			continue
		}

		images[i].Width = res.Width
		images[i].Height = res.Height
		images[i].Thumbnail = res.ThumbnailID
		r.mirror(ctx, logger, col.ID, res)

		r.Ledger.AddStat(job.ID, im.ID, process.NewStat(im.Filename, entry.Original, res.FinalSize, entry.Target))
		r.Metrics.ImageProcessed(metrics.OutcomeCompressed)
		advance()
	}

	if token.Cancelled() {
		return process.JobStatusCancelled, nil
	}

	col.Images = images
	if err := r.persist(ctx, col); err != nil {
		return "", err
	}
	return process.JobStatusCompleted, nil
}

// targetKB converts a byte target to the kilobyte budget the compressor takes.
func targetKB(target int64) float64 {
	return float64(target) / 1024
}

func (r *Runner) persist(ctx context.Context, col catalog.Collection) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	all, err := r.Store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if !catalog.Merge(all, col) {
		return fmt.Errorf("write catalog: %w: %s", catalog.ErrNotFound, col.ID)
	}
	if err := r.Store.WriteAll(ctx, all); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

func (r *Runner) mirror(ctx context.Context, logger *slog.Logger, collectionID string, res compress.Result) {
	if r.Mirror == nil {
		return
	}
	if err := r.Mirror.Mirror(ctx, collectionID, res.Path, res.Removed); err != nil {
		logger.Warn("mirror thumbnail failed", "thumbnail", res.ThumbnailID, "err", err)
	}
}

func (r *Runner) publish(jobID string) {
	if r.Notifier == nil {
		return
	}
	if rec, ok := r.Ledger.Get(jobID); ok {
		r.Notifier.PublishProgress(jobID, rec)
	}
}
