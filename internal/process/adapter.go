// internal/process/adapter.go
package process

import "math"

// JobStatus represents the lifecycle state of a compression job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusError     JobStatus = "error"
)

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusError
}

// CompressionStat is the per-image outcome recorded in the ledger.
type CompressionStat struct {
	ImageName       string `json:"imageName"`
	OriginalSize    int64  `json:"originalSize"`
	FinalSize       int64  `json:"finalSize"`
	TargetSize      int64  `json:"targetSize"`
	CompressionRate int    `json:"compressionRate"`
	Error           string `json:"error,omitempty"`
}

// NewStat builds a successful stat and derives its compression rate.
func NewStat(name string, original, final, target int64) CompressionStat {
	return CompressionStat{
		ImageName:       name,
		OriginalSize:    original,
		FinalSize:       final,
		TargetSize:      target,
		CompressionRate: CompressionRate(original, final),
	}
}

// FailedStat records an image that produced no thumbnail.
func FailedStat(name string, original, target int64, err error) CompressionStat {
	stat := CompressionStat{
		ImageName:    name,
		OriginalSize: original,
		TargetSize:   target,
	}
	if err != nil {
		stat.Error = err.Error()
	}
	return stat
}

// CompressionRate is (original-final)/original*100 rounded half up, or 0 for
// an empty original.
func CompressionRate(original, final int64) int {
	if original <= 0 {
		return 0
	}
	return int(math.Floor(float64(original-final)*100/float64(original) + 0.5))
}

// Record captures the progress of one job as seen by pollers.
type Record struct {
	TotalImages      int                        `json:"totalImages"`
	ProcessedImages  int                        `json:"processedImages"`
	CurrentImage     string                     `json:"currentImage,omitempty"`
	Status           JobStatus                  `json:"status"`
	Error            string                     `json:"error,omitempty"`
	CompressionStats map[string]CompressionStat `json:"compressionStats"`
}

func (r *Record) clone() Record {
	out := *r
	out.CompressionStats = make(map[string]CompressionStat, len(r.CompressionStats))
	for k, v := range r.CompressionStats {
		out.CompressionStats[k] = v
	}
	return out
}
