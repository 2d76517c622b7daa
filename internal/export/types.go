// Package export runs render plans against the codec engine. One
// orchestrator owns one engine adapter; export jobs serialize through it.
package export

import (
	"errors"
	"time"
)

type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StatePlanning   State = "planning"
	StateExecuting  State = "executing"
	StateFinalizing State = "finalizing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

var (
	ErrBusy        = errors.New("an export is already running")
	ErrJobNotFound = errors.New("export job not found")
	ErrNotRunning  = errors.New("export job is not running")
)

// Job is the persisted record of one export.
type Job struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	State      State     `json:"state"`
	Progress   float64   `json:"progress"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Artifact is a finished export delivered to the caller.
type Artifact struct {
	Bytes           []byte
	DurationSeconds float64
	SizeBytes       int64
	Format          string
}

// Callbacks are invoked from the job goroutine. Implementations must be
// cheap; OnProgress in particular is called once per engine progress report.
type Callbacks struct {
	OnProgress func(ratio float64, state State)
	OnComplete func(Artifact)
	OnError    func(error)
}
