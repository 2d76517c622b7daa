// Package engine wraps the external codec engine behind a narrow adapter:
// lifecycle, a virtual filesystem of named buffers, and command execution
// with out-of-band progress. Everything above this package is engine-agnostic.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotLoaded   = errors.New("engine not loaded")
	ErrFileMissing = errors.New("engine file not found")
	ErrBadName     = errors.New("invalid engine file name")
)

// Progress is a single progress report from a running engine command.
type Progress struct {
	Ratio   float64 // completion in [0,1]; best-effort when no duration hint
	Elapsed time.Duration
}

// ProgressFunc receives progress reports. Called from the adapter's reader
// goroutine; implementations must be cheap and must not block.
type ProgressFunc func(Progress)

// ExecSpec describes one engine command invocation.
type ExecSpec struct {
	Args []string

	// ExpectedDuration is the output media duration in seconds, used to
	// convert the engine's elapsed-output-time reports into a ratio.
	// Zero disables ratio estimation.
	ExpectedDuration float64

	OnProgress ProgressFunc
}

// ProbeResult holds intrinsic metadata extracted from a media file.
type ProbeResult struct {
	Duration   float64
	Width      int
	Height     int
	FrameRate  float64
	VideoCodec string
	AudioCodec string
	SampleRate int
	Channels   int
	HasVideo   bool
	HasAudio   bool
}

// Adapter is the boundary to the codec engine. One adapter instance is a
// single-worker resource: callers must not interleave Execute calls for
// independent jobs.
type Adapter interface {
	// Load initialises the engine. Idempotent; concurrent calls share one
	// in-flight load.
	Load(ctx context.Context) error
	IsLoaded() bool

	// Virtual filesystem of named buffers scoped to this adapter instance.
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	// DeleteFile removes a named buffer. Deleting an absent name is not an
	// error.
	DeleteFile(name string) error
	ListFiles() ([]string, error)

	// Execute runs one engine command to completion.
	Execute(ctx context.Context, spec ExecSpec) error

	// Probe extracts metadata from a host file path.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// Thumbnail writes a still frame from path at the given offset.
	Thumbnail(ctx context.Context, path, outPath string, offset float64) error

	Close() error
}

// Error wraps a failed engine operation with the raw diagnostic text the
// engine produced, so callers can surface it unmodified.
type Error struct {
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("engine %s: %v: %s", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
