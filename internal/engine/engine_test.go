package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "12.480000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2}
		]
	}`)

	result, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if !result.HasVideo || !result.HasAudio {
		t.Fatalf("stream flags wrong: %+v", result)
	}
	if result.Duration != 12.48 {
		t.Fatalf("duration = %v, want 12.48", result.Duration)
	}
	if result.Width != 1920 || result.Height != 1080 || result.VideoCodec != "h264" {
		t.Fatalf("video stream wrong: %+v", result)
	}
	if math.Abs(result.FrameRate-29.97) > 0.01 {
		t.Fatalf("frame rate = %v, want ~29.97", result.FrameRate)
	}
	if result.AudioCodec != "aac" || result.SampleRate != 48000 || result.Channels != 2 {
		t.Fatalf("audio stream wrong: %+v", result)
	}
}

func TestParseProbeOutput_AudioOnly(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "3.5"},
		"streams": [
			{"codec_type": "audio", "codec_name": "mp3", "sample_rate": "44100", "channels": 2}
		]
	}`)

	result, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput: %v", err)
	}
	if result.HasVideo {
		t.Fatal("audio-only file reported a video stream")
	}
	if !result.HasAudio || result.SampleRate != 44100 {
		t.Fatalf("audio stream wrong: %+v", result)
	}
}

func TestParseProbeOutput_Malformed(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Fatal("expected an error for malformed probe output")
	}
}

func TestParseFrameRate(t *testing.T) {
	cases := map[string]float64{
		"30/1":       30,
		"30000/1001": 29.97002997002997,
		"25":         25,
		"0/0":        0,
		"bogus":      0,
	}
	for in, want := range cases {
		if got := parseFrameRate(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("parseFrameRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCommandAdapter_VFSRoundTrip(t *testing.T) {
	a := NewCommandAdapter(CommandConfig{Workspace: t.TempDir()})

	if err := a.WriteFile("out/seg_v_000.mp4", []byte("payload")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := a.ReadFile("out/seg_v_000.mp4")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}

	names, err := a.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(names) != 1 || names[0] != "out/seg_v_000.mp4" {
		t.Fatalf("names = %v", names)
	}

	if err := a.DeleteFile("out/seg_v_000.mp4"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := a.DeleteFile("out/seg_v_000.mp4"); err != nil {
		t.Fatalf("deleting an absent file must not error, got %v", err)
	}
	if _, err := a.ReadFile("out/seg_v_000.mp4"); !errors.Is(err, ErrFileMissing) {
		t.Fatalf("expected ErrFileMissing, got %v", err)
	}
}

func TestCommandAdapter_RejectsEscapingNames(t *testing.T) {
	a := NewCommandAdapter(CommandConfig{Workspace: t.TempDir()})

	for _, name := range []string{"", "/etc/passwd", "../outside", "a/../../b"} {
		if err := a.WriteFile(name, []byte("x")); !errors.Is(err, ErrBadName) {
			t.Fatalf("WriteFile(%q) = %v, want ErrBadName", name, err)
		}
	}
}

func TestCommandAdapter_ExecuteRequiresLoad(t *testing.T) {
	a := NewCommandAdapter(CommandConfig{Workspace: t.TempDir()})

	err := a.Execute(context.Background(), ExecSpec{Args: []string{"-i", "x", "y"}})
	if !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	if _, err := a.Probe(context.Background(), "/tmp/x.mp4"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded from Probe, got %v", err)
	}
}

func TestStreamProgress(t *testing.T) {
	a := NewCommandAdapter(CommandConfig{Workspace: t.TempDir()})

	stderr := strings.Join([]string{
		"frame=100",
		"out_time_us=2500000",
		"progress=continue",
		"frame=200",
		"out_time_us=5000000",
		"progress=end",
	}, "\n")

	var ratios []float64
	spec := ExecSpec{
		ExpectedDuration: 10,
		OnProgress: func(p Progress) {
			ratios = append(ratios, p.Ratio)
		},
	}
	a.streamProgress(strings.NewReader(stderr), time.Now(), spec)

	if len(ratios) != 2 {
		t.Fatalf("expected 2 reports, got %v", ratios)
	}
	if ratios[0] != 0.25 || ratios[1] != 0.5 {
		t.Fatalf("ratios = %v, want [0.25 0.5]", ratios)
	}
}

func TestStreamProgress_ClampsRatio(t *testing.T) {
	a := NewCommandAdapter(CommandConfig{Workspace: t.TempDir()})

	stderr := "out_time_us=20000000\nprogress=end\n"
	var ratio float64
	spec := ExecSpec{
		ExpectedDuration: 10,
		OnProgress:       func(p Progress) { ratio = p.Ratio },
	}
	a.streamProgress(strings.NewReader(stderr), time.Now(), spec)

	if ratio != 1 {
		t.Fatalf("ratio = %v, want clamp to 1", ratio)
	}
}

func TestStubAdapter_ExecuteMaterialisesOutput(t *testing.T) {
	stub := NewStubAdapter()
	if err := stub.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var ratios []float64
	spec := ExecSpec{
		Args:       []string{"-i", "in.mp4", "out.mp4"},
		OnProgress: func(p Progress) { ratios = append(ratios, p.Ratio) },
	}
	if err := stub.Execute(context.Background(), spec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := stub.ReadFile("out.mp4"); err != nil {
		t.Fatalf("output not materialised: %v", err)
	}
	if len(ratios) != 2 || ratios[1] != 1 {
		t.Fatalf("progress reports = %v", ratios)
	}
	if got := stub.Executed(); len(got) != 1 || got[0][2] != "out.mp4" {
		t.Fatalf("executed log wrong: %v", got)
	}
}

func TestStubAdapter_NullMuxerLeavesNoFile(t *testing.T) {
	stub := NewStubAdapter()
	if err := stub.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// A two-pass analysis command ends in the null muxer sentinel.
	spec := ExecSpec{Args: []string{"-i", "in.mp4", "-pass", "1", "-an", "-f", "null", "-"}}
	if err := stub.Execute(context.Background(), spec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := stub.ReadFile("-"); err == nil {
		t.Fatal("null muxer sentinel must not become a file")
	}
	names, _ := stub.ListFiles()
	if len(names) != 0 {
		t.Fatalf("no files expected, got %v", names)
	}
}

func TestStubAdapter_FailLoadTimes(t *testing.T) {
	stub := NewStubAdapter()
	stub.FailLoadTimes = 1

	if err := stub.Load(context.Background()); err == nil {
		t.Fatal("first load should fail")
	}
	if err := stub.Load(context.Background()); err != nil {
		t.Fatalf("second load should succeed, got %v", err)
	}
	if !stub.IsLoaded() {
		t.Fatal("adapter should report loaded")
	}
}

func TestStubAdapter_FailAtCommand(t *testing.T) {
	stub := NewStubAdapter()
	stub.FailAtCommand = 1
	if err := stub.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := stub.Execute(context.Background(), ExecSpec{Args: []string{"a.mp4"}}); err != nil {
		t.Fatalf("first command should succeed, got %v", err)
	}
	err := stub.Execute(context.Background(), ExecSpec{Args: []string{"b.mp4"}})
	var engErr *Error
	if !errors.As(err, &engErr) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if _, readErr := stub.ReadFile("b.mp4"); readErr == nil {
		t.Fatal("failed command must not materialise its output")
	}
}

func TestStubAdapter_ExecuteHonoursContext(t *testing.T) {
	stub := NewStubAdapter()
	stub.ExecuteDelay = time.Minute
	if err := stub.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- stub.Execute(ctx, ExecSpec{Args: []string{"slow.mp4"}})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled execute did not return")
	}
}
