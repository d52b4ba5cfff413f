package process

import (
	"sync"
	"time"
)

// Update is a partial change to a job record. Nil fields are left untouched.
type Update struct {
	Processed    *int
	Total        *int
	CurrentImage *string
	Status       JobStatus
	Error        string
}

// Ledger is the process-wide store of job progress, keyed by job ID.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*Record
	timers  map[string]*time.Timer
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[string]*Record),
		timers:  make(map[string]*time.Timer),
	}
}

// Init creates, or resets, a running record for jobID.
func (l *Ledger) Init(jobID string, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.timers[jobID]; ok {
		t.Stop()
		delete(l.timers, jobID)
	}
	l.records[jobID] = &Record{
		TotalImages:      total,
		Status:           JobStatusRunning,
		CompressionStats: make(map[string]CompressionStat),
	}
}

// Update merges u into the record for jobID. Processed never moves backwards
// or past the total, and a terminal status is never replaced. It reports
// false when no record exists.
func (l *Ledger) Update(jobID string, u Update) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[jobID]
	if !ok {
		return false
	}
	if u.Total != nil && *u.Total > rec.TotalImages {
		rec.TotalImages = *u.Total
	}
	if u.Processed != nil && *u.Processed > rec.ProcessedImages {
		rec.ProcessedImages = min(*u.Processed, rec.TotalImages)
	}
	if u.CurrentImage != nil {
		rec.CurrentImage = *u.CurrentImage
	}
	if u.Status != "" && !rec.Status.Terminal() {
		rec.Status = u.Status
		if u.Status == JobStatusError {
			rec.Error = u.Error
		}
	}
	return true
}

// AddStat merges one image stat into the record. Stats arriving after the
// record reached a terminal status are dropped.
func (l *Ledger) AddStat(jobID, imageID string, stat CompressionStat) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[jobID]
	if !ok || rec.Status.Terminal() {
		return false
	}
	rec.CompressionStats[imageID] = stat
	return true
}

// Get returns a copy of the record for jobID.
func (l *Ledger) Get(jobID string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[jobID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Clear deletes the record for jobID.
func (l *Ledger) Clear(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.timers[jobID]; ok {
		t.Stop()
		delete(l.timers, jobID)
	}
	delete(l.records, jobID)
}

// ClearAfter deletes the record for jobID once d has elapsed. A later Init
// for the same ID cancels the pending deletion.
func (l *Ledger) ClearAfter(jobID string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.timers[jobID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.timers[jobID] != t {
			return
		}
		delete(l.timers, jobID)
		delete(l.records, jobID)
	})
	l.timers[jobID] = t
}

// Len returns the number of tracked jobs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Int returns a pointer to v, for building Updates.
func Int(v int) *int { return &v }

// String returns a pointer to v, for building Updates.
func String(v string) *string { return &v }
