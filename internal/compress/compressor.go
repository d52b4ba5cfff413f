// Package compress re-encodes a source image until its thumbnail fits a byte
// budget.
package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-compressor/internal/img"
	"github.com/tendant/simple-compressor/internal/metrics"
)

var (
	ErrSourceNotFound = errors.New("source not found")
	ErrCancelled      = errors.New("compression cancelled")
)

const (
	MaxAttempts    = 8
	InitialQuality = 60
	MinQuality     = 15
	MinWidth       = 200
	MinHeight      = 150
	// Tolerance is how far above the target an encode may land and still be accepted.
	Tolerance = 1.05
)

// Canceller is polled at every checkpoint of the search.
type Canceller interface {
	Cancelled() bool
}

// Request describes one thumbnail to produce.
type Request struct {
	SourcePath string
	ThumbDir   string
	TargetKB   float64
}

// Result describes the accepted thumbnail. Width and Height are those of the
// source image, not of the encoded thumbnail.
type Result struct {
	FinalSize   int64
	Width       int
	Height      int
	ThumbnailID string
	Path        string
	Attempts    int
	Quality     int
	// Removed lists the stale thumbnail file names deleted before writing.
	Removed []string
}

// Compressor runs the bounded quality/dimension search.
type Compressor struct {
	encoder img.Encoder
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Compressor)

func WithEncoder(e img.Encoder) Option {
	return func(c *Compressor) {
		if e != nil {
			c.encoder = e
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Compressor) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Compressor) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compressor) { c.metrics = m }
}

func New(opts ...Option) *Compressor {
	c := &Compressor{
		encoder: &img.ImageEncoder{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compress searches for an encode of req.SourcePath no larger than
// req.TargetKB (within Tolerance) and writes it to req.ThumbDir. The token is
// checked before any work, before and after every encode, and never
// interrupts an encode in flight.
func (c *Compressor) Compress(ctx context.Context, token Canceller, req Request) (Result, error) {
	cancelled := func() bool {
		return ctx.Err() != nil || (token != nil && token.Cancelled())
	}

	if cancelled() {
		return Result{}, ErrCancelled
	}
	if info, err := os.Stat(req.SourcePath); err != nil || !info.Mode().IsRegular() {
		return Result{}, ErrSourceNotFound
	}
	if cancelled() {
		return Result{}, ErrCancelled
	}
	if err := os.MkdirAll(req.ThumbDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("mkdir thumbnails: %w", err)
	}
	if cancelled() {
		return Result{}, ErrCancelled
	}

	src, err := c.encoder.Open(req.SourcePath)
	if err != nil {
		return Result{}, err
	}

	logger := c.logger.With("source", filepath.Base(req.SourcePath), "target_kb", req.TargetKB)
	target := req.TargetKB * 1024
	limit := target * Tolerance

	s := searchState{width: src.Width, height: src.Height, quality: InitialQuality}
	var accepted []byte
	attempt := 0
	for attempt < MaxAttempts {
		if cancelled() {
			return Result{}, ErrCancelled
		}

		attempt++
		data, err := c.encoder.Encode(src, img.EncodeSpec{Width: s.width, Height: s.height, Quality: s.quality})
		if cancelled() {
			return Result{}, ErrCancelled
		}
		if err != nil {
			return Result{}, fmt.Errorf("encode attempt %d: %w", attempt, err)
		}

		size := float64(len(data))
		logger.Debug("encode attempt", "attempt", attempt, "width", s.width, "height", s.height, "quality", s.quality, "bytes", len(data))
		if size <= limit || attempt == MaxAttempts {
			accepted = data
			break
		}
		s = s.next(target / size)
	}

	removed, err := removeStale(req.ThumbDir, img.ThumbPrefix(req.SourcePath))
	if err != nil {
		return Result{}, err
	}

	name := img.ThumbName(req.SourcePath, c.now().UnixMilli())
	path := filepath.Join(req.ThumbDir, name)
	if err := os.WriteFile(path, accepted, 0o644); err != nil {
		return Result{}, fmt.Errorf("write thumbnail: %w", err)
	}

	c.metrics.EncodeAttempts(attempt)
	logger.Info("thumbnail written", "thumbnail", name, "bytes", len(accepted), "attempts", attempt, "quality", s.quality)

	return Result{
		FinalSize:   int64(len(accepted)),
		Width:       src.Width,
		Height:      src.Height,
		ThumbnailID: name,
		Path:        path,
		Attempts:    attempt,
		Quality:     s.quality,
		Removed:     removed,
	}, nil
}

type searchState struct {
	width, height, quality int
}

// next adjusts the encode parameters from the ratio target/currentSize.
func (s searchState) next(ratio float64) searchState {
	switch {
	case ratio < 0.6:
		scale := math.Sqrt(ratio)
		s.width = max(MinWidth, int(math.Round(float64(s.width)*scale)))
		s.height = max(MinHeight, int(math.Round(float64(s.height)*scale)))
		s.quality = max(MinQuality, int(math.Round(float64(s.quality)*0.8)))
	case ratio < 0.8:
		s.quality = max(MinQuality, int(math.Round(float64(s.quality)*0.7)))
	default:
		s.quality = max(MinQuality, int(math.Round(float64(s.quality)*math.Sqrt(ratio)*0.9)))
	}
	return s
}

// removeStale deletes every file in dir whose name starts with prefix.
func removeStale(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list thumbnails: %w", err)
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove stale thumbnail %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
