package scheduler

import (
	"sync"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/google/uuid"
)

// Statuses recorded for completed job runs.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExecutionEntry is the outcome of one job run.
type ExecutionEntry struct {
	RunID       string    `json:"run_id"`
	JobID       string    `json:"job_id"`
	ScheduledAt time.Time `json:"scheduled_run_time"`
	FinishedAt  time.Time `json:"finished_at"`
	Status      string    `json:"status"`
	Summary     string    `json:"retval,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// History is a bounded ring of execution entries shared between the job
// runner and the status API; the oldest entry is evicted past capacity.
type History struct {
	clk      clock.Clock
	capacity int

	mu      sync.Mutex
	entries []ExecutionEntry
}

// NewHistory returns a history bounded to capacity entries.
func NewHistory(capacity int, clk clock.Clock) *History {
	if clk == nil {
		clk = clock.C
	}
	return &History{clk: clk, capacity: capacity}
}

// Record appends a completed run, evicting the oldest entry when full.
func (h *History) Record(jobID string, scheduledAt time.Time, summary string, err error) ExecutionEntry {
	entry := ExecutionEntry{
		RunID:       uuid.NewString(),
		JobID:       jobID,
		ScheduledAt: scheduledAt,
		FinishedAt:  h.clk.Now(),
		Status:      StatusSuccess,
		Summary:     summary,
	}
	if err != nil {
		entry.Status = StatusError
		entry.Error = err.Error()
		entry.Summary = ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
	return entry
}

// Recent returns up to n newest entries, newest last.
func (h *History) Recent(n int) []ExecutionEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]ExecutionEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// PruneOlderThan drops entries that finished before the cutoff and returns
// how many were removed. The daily cleanup job calls this.
func (h *History) PruneOlderThan(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.entries[:0]
	for _, e := range h.entries {
		if e.FinishedAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(h.entries) - len(kept)
	h.entries = kept
	return removed
}

// Clock exposes the history's time source for the cleanup job.
func (h *History) Clock() clock.Clock {
	return h.clk
}
