package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const stderrTailBytes = 8 * 1024

// CommandAdapter drives a host ffmpeg/ffprobe install as the codec engine.
// Its virtual filesystem is a sandboxed workspace directory; file names are
// workspace-relative and command args reference them relative to that
// directory.
type CommandAdapter struct {
	workspace string
	binHint   string
	timeout   time.Duration
	logger    *slog.Logger

	mu          sync.Mutex
	loaded      bool
	inflight    chan struct{} // non-nil while a load is running
	ffmpegPath  string
	ffprobePath string
}

type CommandConfig struct {
	// Workspace is the directory backing the virtual filesystem. Created on
	// Load if absent.
	Workspace string
	// Binary optionally pins the ffmpeg binary path; empty means PATH lookup.
	Binary string
	// Timeout bounds a single Execute call; zero means no bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewCommandAdapter(cfg CommandConfig) *CommandAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandAdapter{
		workspace: cfg.Workspace,
		binHint:   cfg.Binary,
		timeout:   cfg.Timeout,
		logger:    logger.With("component", "engine"),
	}
}

// Load resolves the engine binaries and prepares the workspace. Concurrent
// callers share one in-flight load; later calls return immediately once
// loaded.
func (a *CommandAdapter) Load(ctx context.Context) error {
	a.mu.Lock()
	if a.loaded {
		a.mu.Unlock()
		return nil
	}
	if a.inflight != nil {
		ch := a.inflight
		a.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.loaded {
			return &Error{Op: "load", Err: fmt.Errorf("shared load failed")}
		}
		return nil
	}
	ch := make(chan struct{})
	a.inflight = ch
	a.mu.Unlock()

	err := a.doLoad(ctx)

	a.mu.Lock()
	a.inflight = nil
	a.loaded = err == nil
	a.mu.Unlock()
	close(ch)
	return err
}

func (a *CommandAdapter) doLoad(ctx context.Context) error {
	ffmpegPath := a.binHint
	var err error
	if ffmpegPath == "" {
		ffmpegPath, err = exec.LookPath("ffmpeg")
		if err != nil {
			return &Error{Op: "load", Err: fmt.Errorf("ffmpeg not found in PATH: %w", err)}
		}
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		// Some installs ship ffprobe next to a pinned ffmpeg binary.
		candidate := filepath.Join(filepath.Dir(ffmpegPath), "ffprobe")
		if _, statErr := os.Stat(candidate); statErr != nil {
			return &Error{Op: "load", Err: fmt.Errorf("ffprobe not found: %w", err)}
		}
		ffprobePath = candidate
	}

	if err := os.MkdirAll(a.workspace, 0755); err != nil {
		return &Error{Op: "load", Err: fmt.Errorf("cannot create workspace: %w", err)}
	}

	probe := exec.CommandContext(ctx, ffmpegPath, "-version")
	out, err := probe.CombinedOutput()
	if err != nil {
		return &Error{Op: "load", Detail: tail(out), Err: fmt.Errorf("version probe failed: %w", err)}
	}

	a.ffmpegPath = ffmpegPath
	a.ffprobePath = ffprobePath
	a.logger.Info("engine loaded",
		"ffmpeg", ffmpegPath,
		"workspace", a.workspace,
		"version", firstLine(out),
	)
	return nil
}

func (a *CommandAdapter) IsLoaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

func (a *CommandAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loaded = false
	return nil
}

func (a *CommandAdapter) resolve(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") {
		return "", ErrBadName
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return "", ErrBadName
		}
	}
	return filepath.Join(a.workspace, filepath.FromSlash(name)), nil
}

func (a *CommandAdapter) WriteFile(name string, data []byte) error {
	path, err := a.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &Error{Op: "write", Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &Error{Op: "write", Err: err}
	}
	return nil
}

func (a *CommandAdapter) ReadFile(name string) ([]byte, error) {
	path, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return nil, &Error{Op: "read", Err: err}
	}
	return data, nil
}

func (a *CommandAdapter) DeleteFile(name string) error {
	path, err := a.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

func (a *CommandAdapter) ListFiles() ([]string, error) {
	var names []string
	err := filepath.WalkDir(a.workspace, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			rel, relErr := filepath.Rel(a.workspace, p)
			if relErr == nil {
				names = append(names, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	return names, nil
}

// Execute runs one engine command in the workspace, streaming progress
// parsed from the engine's machine-readable progress output.
func (a *CommandAdapter) Execute(ctx context.Context, spec ExecSpec) error {
	if !a.IsLoaded() {
		return ErrNotLoaded
	}
	if len(spec.Args) == 0 {
		return &Error{Op: "execute", Err: fmt.Errorf("empty argument list")}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	args := append([]string{"-y", "-hide_banner", "-nostdin", "-progress", "pipe:2"}, spec.Args...)

	a.logger.Debug("executing engine command", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	cmd.Dir = a.workspace

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &Error{Op: "execute", Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &Error{Op: "execute", Err: fmt.Errorf("failed to start engine: %w", err)}
	}

	tailBuf := a.streamProgress(stderr, start, spec)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Op: "execute", Detail: tail(tailBuf.Bytes()), Err: err}
	}

	if spec.OnProgress != nil {
		spec.OnProgress(Progress{Ratio: 1, Elapsed: time.Since(start)})
	}
	return nil
}

// streamProgress consumes the engine's stderr, emitting a progress report at
// the end of every progress block and keeping a bounded tail for diagnostics.
func (a *CommandAdapter) streamProgress(r io.Reader, start time.Time, spec ExecSpec) *bytes.Buffer {
	var tailBuf bytes.Buffer
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var outTimeUs int64
	for scanner.Scan() {
		line := scanner.Text()

		if tailBuf.Len() < stderrTailBytes {
			tailBuf.WriteString(line)
			tailBuf.WriteByte('\n')
		}

		switch {
		case strings.HasPrefix(line, "out_time_us="):
			if v, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_us="), 10, 64); err == nil {
				outTimeUs = v
			}
		case strings.HasPrefix(line, "progress="):
			if spec.OnProgress == nil {
				continue
			}
			ratio := 0.0
			if spec.ExpectedDuration > 0 {
				ratio = float64(outTimeUs) / 1e6 / spec.ExpectedDuration
				if ratio > 1 {
					ratio = 1
				}
				if ratio < 0 {
					ratio = 0
				}
			}
			spec.OnProgress(Progress{Ratio: ratio, Elapsed: time.Since(start)})
		}
	}
	return &tailBuf
}

// Probe extracts stream metadata using the probe binary's JSON output.
func (a *CommandAdapter) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if !a.IsLoaded() {
		return nil, ErrNotLoaded
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, a.ffprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		detail := ""
		if ee, ok := err.(*exec.ExitError); ok {
			detail = tail(ee.Stderr)
		}
		return nil, &Error{Op: "probe", Detail: detail, Err: err}
	}

	return parseProbeOutput(out)
}

// Thumbnail writes a single still frame from path at the given offset.
func (a *CommandAdapter) Thumbnail(ctx context.Context, path, outPath string, offset float64) error {
	if !a.IsLoaded() {
		return ErrNotLoaded
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return &Error{Op: "thumbnail", Err: err}
	}

	args := []string{
		"-y", "-hide_banner", "-nostdin",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", "scale=320:-1",
		outPath,
	}

	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &Error{Op: "thumbnail", Detail: tail(out), Err: err}
	}
	return nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailBytes {
		s = s[len(s)-stderrTailBytes:]
	}
	return s
}
