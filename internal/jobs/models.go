package jobs

import (
	"time"

	"shelfpair/internal/insight"
)

// State represents the lifecycle of a pairing job.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var stateSet = map[State]struct{}{
	StatePending:    {},
	StateProcessing: {},
	StateCompleted:  {},
	StateFailed:     {},
}

// Valid reports whether the state is one of the known lifecycle states.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// Terminal reports whether the job has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is the persistent record of one pairing run. Images holds the input
// identifiers in submission order; Insights accumulates classification
// output across invocations; AccessCredential is cleared the moment the job
// reaches a terminal state.
type Job struct {
	ID               string
	Owner            string
	State            State
	TotalImages      int
	ProcessedCount   int
	Images           []string
	Insights         []insight.ImageInsight
	ResultJSON       string
	ErrorMessage     string
	AccessCredential string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        time.Time
}

// Done reports whether every image has been classified.
func (j *Job) Done() bool {
	return j.ProcessedCount >= j.TotalImages
}

// Expired reports whether the job has outlived its retention window.
func (j *Job) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}
