package concepts

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

// Run states. A run is created running and makes exactly one terminal
// transition, to completed or failed.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunCounts aggregates per-kind reconcile outcomes for one run. A run with
// a non-zero Failed count still completes; failed is reserved for aborts
// that prevent the terminal bookkeeping step.
type RunCounts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Failed    int `json:"failed"`
}

// Total returns the number of reconcile outcomes counted.
func (c RunCounts) Total() int {
	return c.Inserted + c.Updated + c.Unchanged + c.Deleted + c.Failed
}

// Add accumulates one outcome of the given kind.
func (c *RunCounts) Add(kind ChangeKind) {
	switch kind {
	case ChangeInsert:
		c.Inserted++
	case ChangeUpdate:
		c.Updated++
	case ChangeDelete:
		c.Deleted++
	case ChangeNone:
		c.Unchanged++
	}
}

// BatchRun records one end-to-end execution of the harvesting pipeline.
// It is created at harvest start and mutated exactly once, at completion.
type BatchRun struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Status    RunStatus `json:"status"`
	Counts    RunCounts `json:"counts"`
	Error     string    `json:"error,omitempty"`
}

// NewBatchRun starts a new run in the running state.
func NewBatchRun(now time.Time) *BatchRun {
	return &BatchRun{
		ID:        uuid.NewString(),
		StartedAt: now,
		Status:    RunRunning,
	}
}

// Complete marks the run's terminal success transition. Per-entity failures
// may still be present in the counters.
func (r *BatchRun) Complete(now time.Time) {
	r.EndedAt = now
	r.Status = RunCompleted
}

// Fail marks the run's terminal failure transition with the triggering error.
func (r *BatchRun) Fail(now time.Time, err error) {
	r.EndedAt = now
	r.Status = RunFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns the elapsed run time, or time-since-start for a run
// still in flight at the given instant.
func (r *BatchRun) Duration(now time.Time) time.Duration {
	if r.EndedAt.IsZero() {
		return now.Sub(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}
