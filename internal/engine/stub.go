package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StubAdapter is an in-memory Adapter for tests. Execute treats the final
// argument of each command as its output name and materialises it in the
// virtual filesystem, mirroring the engine's output-last argument convention.
type StubAdapter struct {
	mu       sync.Mutex
	loaded   bool
	files    map[string][]byte
	executed [][]string

	// FailLoadTimes makes the next N Load calls fail.
	FailLoadTimes int
	// FailAtCommand makes Execute fail on the given zero-based call index;
	// negative disables.
	FailAtCommand int
	// ProbeResults maps a path to its canned probe result.
	ProbeResults map[string]*ProbeResult
	// ExecuteDelay simulates command runtime, checked against ctx.
	ExecuteDelay time.Duration
	// BlockExecute, when non-nil, is closed by the test to release a pending
	// Execute call.
	BlockExecute chan struct{}
}

func NewStubAdapter() *StubAdapter {
	return &StubAdapter{
		files:         make(map[string][]byte),
		FailAtCommand: -1,
		ProbeResults:  make(map[string]*ProbeResult),
	}
}

func (s *StubAdapter) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLoadTimes > 0 {
		s.FailLoadTimes--
		return &Error{Op: "load", Err: fmt.Errorf("stubbed load failure")}
	}
	s.loaded = true
	return nil
}

func (s *StubAdapter) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *StubAdapter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return nil
}

func (s *StubAdapter) WriteFile(name string, data []byte) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return ErrBadName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	return nil
}

func (s *StubAdapter) ReadFile(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
	}
	return append([]byte(nil), data...), nil
}

func (s *StubAdapter) DeleteFile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

func (s *StubAdapter) ListFiles() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

func (s *StubAdapter) Execute(ctx context.Context, spec ExecSpec) error {
	if !s.IsLoaded() {
		return ErrNotLoaded
	}
	if len(spec.Args) == 0 {
		return &Error{Op: "execute", Err: fmt.Errorf("empty argument list")}
	}

	if s.BlockExecute != nil {
		select {
		case <-s.BlockExecute:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.ExecuteDelay > 0 {
		select {
		case <-time.After(s.ExecuteDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	index := len(s.executed)
	s.executed = append(s.executed, append([]string(nil), spec.Args...))
	fail := s.FailAtCommand >= 0 && index == s.FailAtCommand
	// "-" is the null muxer sentinel, not a file.
	if output := spec.Args[len(spec.Args)-1]; !fail && output != "-" {
		s.files[output] = []byte(fmt.Sprintf("stub output %d", index))
	}
	s.mu.Unlock()

	if fail {
		return &Error{Op: "execute", Detail: "stubbed command failure", Err: fmt.Errorf("exit status 1")}
	}

	if spec.OnProgress != nil {
		spec.OnProgress(Progress{Ratio: 0.5, Elapsed: time.Millisecond})
		spec.OnProgress(Progress{Ratio: 1, Elapsed: 2 * time.Millisecond})
	}
	return nil
}

func (s *StubAdapter) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if !s.IsLoaded() {
		return nil, ErrNotLoaded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if result, ok := s.ProbeResults[path]; ok {
		cp := *result
		return &cp, nil
	}
	return nil, &Error{Op: "probe", Detail: "no canned result", Err: fmt.Errorf("unknown path %s", path)}
}

func (s *StubAdapter) Thumbnail(ctx context.Context, path, outPath string, offset float64) error {
	return nil
}

// Executed returns a copy of all argument lists Execute has received.
func (s *StubAdapter) Executed() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.executed))
	for i, args := range s.executed {
		out[i] = append([]string(nil), args...)
	}
	return out
}
