package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/tendant/simple-compressor/internal/catalog"
	"github.com/tendant/simple-compressor/internal/plan"
	"github.com/tendant/simple-compressor/internal/process"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already running")
)

// ValidationError reports a rejected start request.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// StartRequest asks for a collection to be compressed.
type StartRequest struct {
	JobID        string
	CollectionID string
	Percentage   float64
	Strategy     string
}

// StartResult is returned as soon as the job has been spawned.
type StartResult struct {
	JobID       string
	TotalImages int
}

// Service accepts start and stop requests and runs each job on its own
// goroutine.
type Service struct {
	runner *Runner
	wg     sync.WaitGroup
}

func NewService(r *Runner) *Service {
	return &Service{runner: r}
}

// Start validates req, registers the job and spawns it. It does not wait for
// any image to be processed.
func (s *Service) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if math.IsNaN(req.Percentage) || req.Percentage < 1 || req.Percentage > 100 {
		return StartResult{}, ValidationError{Field: "resizePercentage", Message: fmt.Sprintf("must be between 1 and 100 (got %v)", req.Percentage)}
	}
	strategy, err := plan.ParseStrategy(req.Strategy)
	if err != nil {
		return StartResult{}, ValidationError{Field: "compressionStrategy", Message: err.Error()}
	}
	collectionID := strings.TrimSpace(req.CollectionID)
	if collectionID == "" {
		return StartResult{}, ValidationError{Field: "collectionId", Message: "is required"}
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		return StartResult{}, ValidationError{Field: "processId", Message: "is required"}
	}

	col, err := catalog.Load(ctx, s.runner.Store, collectionID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return StartResult{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, collectionID)
		}
		return StartResult{}, fmt.Errorf("load collection: %w", err)
	}

	token := process.NewToken()
	if !s.runner.Registry.Put(jobID, token) {
		return StartResult{}, fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}
	// A stopped job keeps its ledger record running until it observes the
	// signal; its ID cannot be reused before then.
	if rec, ok := s.runner.Ledger.Get(jobID); ok && !rec.Status.Terminal() {
		s.runner.Registry.Release(jobID, token)
		return StartResult{}, fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}

	total := len(col.Images)
	s.runner.Ledger.Init(jobID, total)
	s.runner.Metrics.JobStarted()

	job := Job{
		ID:         jobID,
		Collection: col,
		Percentage: int(math.Round(req.Percentage)),
		Strategy:   strategy,
		Token:      token,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.Run(context.WithoutCancel(ctx), job)
	}()

	return StartResult{JobID: jobID, TotalImages: total}, nil
}

// Stop signals the job's token and unregisters it. The job itself records the
// cancelled status once it reaches a checkpoint.
func (s *Service) Stop(jobID string) error {
	token, ok := s.runner.Registry.Take(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	token.Cancel()
	s.runner.Logger.Info("compression job stop requested", "job_id", jobID)
	return nil
}

// Progress returns the ledger record for jobID.
func (s *Service) Progress(jobID string) (process.Record, bool) {
	return s.runner.Ledger.Get(jobID)
}

// Shutdown cancels every registered job and waits for running jobs to wind
// down, or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	if n := s.runner.Registry.CancelAll(); n > 0 {
		s.runner.Logger.Info("cancelling running jobs", "count", n)
	}

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
