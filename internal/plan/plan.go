// Package plan computes per-image target file sizes for a compression batch.
package plan

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// MinTarget is the lowest target any measurable image is given, unless its
// bounding original is smaller still.
const MinTarget int64 = 10 * 1024

// Strategy selects how naive per-image targets are aggregated.
type Strategy string

const (
	// StrategyBest gives every image the same target: the largest naive target,
	// capped at the smallest original in the batch.
	StrategyBest Strategy = "best"
	// StrategyWorst applies the smallest naive target to every image, capped at
	// each image's own original.
	StrategyWorst Strategy = "worst"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyBest:
		return StrategyBest, nil
	case StrategyWorst:
		return StrategyWorst, nil
	default:
		return "", fmt.Errorf("unknown compression strategy %q (want best or worst)", s)
	}
}

// Input is one image to plan for. Original is zero when the source could not
// be measured.
type Input struct {
	ImageID  string
	Original int64
}

// Entry is the computed target for a single image.
type Entry struct {
	Target   int64
	Original int64
}

// Missing reports whether the source file could not be measured.
func (e Entry) Missing() bool { return e.Original == 0 }

// Plan maps image IDs to their targets.
type Plan map[string]Entry

// Compute builds the plan for inputs at the given percentage. Every input ID is
// present in the result; unmeasurable images keep a zero target.
func Compute(inputs []Input, percentage int, strategy Strategy) Plan {
	out := make(Plan, len(inputs))

	var valid []Input
	for _, in := range inputs {
		out[in.ImageID] = Entry{Original: in.Original}
		if in.Original > 0 {
			valid = append(valid, in)
		}
	}
	if len(valid) == 0 {
		return out
	}

	naive := func(original int64) int64 { return original * int64(percentage) / 100 }

	maxNaive, minNaive := naive(valid[0].Original), naive(valid[0].Original)
	minOriginal := valid[0].Original
	for _, in := range valid[1:] {
		n := naive(in.Original)
		maxNaive = max(maxNaive, n)
		minNaive = min(minNaive, n)
		minOriginal = min(minOriginal, in.Original)
	}

	switch strategy {
	case StrategyWorst:
		for _, in := range valid {
			out[in.ImageID] = Entry{Target: clamp(minNaive, MinTarget, in.Original), Original: in.Original}
		}
	default:
		target := clamp(maxNaive, MinTarget, minOriginal)
		for _, in := range valid {
			out[in.ImageID] = Entry{Target: target, Original: in.Original}
		}
	}
	return out
}

// clamp raises v to lo, then caps it at hi. hi wins when hi < lo.
func clamp(v, lo, hi int64) int64 {
	return min(max(v, lo), hi)
}

// Canceller is checked between file measurements.
type Canceller interface {
	Cancelled() bool
}

// ErrCancelled is returned by Measure when the canceller fired mid-way.
var ErrCancelled = errors.New("planning cancelled")

// Source names the file backing one image.
type Source struct {
	ImageID string
	Path    string
}

// Measure stats every source in order. Files that cannot be stat'ed, or that
// are not regular files, are reported with a zero original size.
func Measure(sources []Source, c Canceller) ([]Input, error) {
	inputs := make([]Input, 0, len(sources))
	for _, s := range sources {
		if c != nil && c.Cancelled() {
			return nil, ErrCancelled
		}
		var size int64
		if info, err := os.Stat(s.Path); err == nil && info.Mode().IsRegular() {
			size = info.Size()
		}
		inputs = append(inputs, Input{ImageID: s.ImageID, Original: size})
	}
	return inputs, nil
}
