package render

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/framecut/framecut-agent/internal/compose"
	"github.com/framecut/framecut-agent/internal/media"
	"github.com/framecut/framecut-agent/internal/timeline"
)

func newTestProject(t *testing.T) (*timeline.Project, *timeline.Track) {
	t.Helper()
	p := timeline.NewProject("demo", 1280, 720, 30, timeline.Settings{Container: "mp4"})
	p.AddAsset(&media.Asset{ID: "asset-1", Path: "/media/a.mp4", Duration: 120, Width: 1280, Height: 720})
	track, err := p.AddTrack(timeline.TrackVideo, "")
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	return p, track
}

func addClip(t *testing.T, p *timeline.Project, trackID string, kind timeline.ClipKind, start, duration, in float64) *timeline.Clip {
	t.Helper()
	clip, err := p.AddClip(trackID, timeline.Clip{
		Kind:     kind,
		AssetID:  "asset-1",
		Start:    start,
		Duration: duration,
		In:       in,
		Out:      in + duration,
	})
	if err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	return clip
}

func commandsOfKind(plan *RenderPlan, kind CommandKind) []Command {
	var out []Command
	for _, cmd := range plan.Commands {
		if cmd.Kind == kind {
			out = append(out, cmd)
		}
	}
	return out
}

func TestPlan_EmptyTimeline(t *testing.T) {
	p, _ := newTestProject(t)

	_, err := NewPlanner(nil).Plan(p)
	var planErr *PlanError
	if !errors.As(err, &planErr) || planErr.Kind != PlanEmptyTimeline {
		t.Fatalf("expected empty timeline error, got %v", err)
	}
}

func TestPlan_SingleClip(t *testing.T) {
	p, track := newTestProject(t)
	addClip(t, p, track.ID, timeline.ClipVideo, 0, 10, 5)

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// One clip covering the whole timeline needs only its segment and the mux.
	if len(plan.Commands) != 2 {
		t.Fatalf("expected 2 commands, got %d: %+v", len(plan.Commands), plan.Commands)
	}
	if plan.Commands[0].Kind != CommandSegment || plan.Commands[1].Kind != CommandMux {
		t.Fatalf("unexpected command kinds: %v, %v", plan.Commands[0].Kind, plan.Commands[1].Kind)
	}

	seg := plan.Commands[0]
	argStr := strings.Join(seg.Args, " ")
	if !strings.Contains(argStr, "-ss 5 -t 10 -i /media/a.mp4") {
		t.Fatalf("segment does not trim the source interval: %q", argStr)
	}

	mux := plan.Commands[1]
	if mux.Output != "export.mp4" || plan.OutputName != "export.mp4" {
		t.Fatalf("mux output = %q, plan output = %q", mux.Output, plan.OutputName)
	}
	if plan.Duration != 10 {
		t.Fatalf("plan duration = %v, want 10", plan.Duration)
	}
}

func TestPlan_MissingAsset(t *testing.T) {
	p, track := newTestProject(t)
	clip := addClip(t, p, track.ID, timeline.ClipVideo, 0, 10, 0)
	delete(p.Assets, "asset-1")

	_, err := NewPlanner(nil).Plan(p)
	var planErr *PlanError
	if !errors.As(err, &planErr) || planErr.Kind != PlanMissingAsset {
		t.Fatalf("expected missing asset error, got %v", err)
	}
	if planErr.ClipID != clip.ID {
		t.Fatalf("error should name the clip: %+v", planErr)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	p, track := newTestProject(t)
	a := addClip(t, p, track.ID, timeline.ClipVideo, 0, 5, 0)
	addClip(t, p, track.ID, timeline.ClipVideo, 5, 5, 10)
	if _, err := p.AddTransition(a.ID, timeline.Transition{
		Kind: timeline.TransitionCrossDissolve, Edge: timeline.EdgeEnd, Duration: 1,
	}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	planner := NewPlanner(nil)
	first, err := planner.Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	second, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan again: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical snapshots must produce identical plans")
	}
}

func TestPlan_FilterOrderPreserved(t *testing.T) {
	p, track := newTestProject(t)
	clip := addClip(t, p, track.ID, timeline.ClipVideo, 0, 10, 0)

	if _, err := p.AddFilter(clip.ID, timeline.Filter{Kind: timeline.FilterCrop, Params: timeline.CropParams{Width: 640, Height: 360}}); err != nil {
		t.Fatalf("AddFilter crop: %v", err)
	}
	if _, err := p.AddFilter(clip.ID, timeline.Filter{Kind: timeline.FilterGrayscale, Params: timeline.GrayscaleParams{}}); err != nil {
		t.Fatalf("AddFilter grayscale: %v", err)
	}
	if _, err := p.AddFilter(clip.ID, timeline.Filter{Kind: timeline.FilterBrightness, Params: timeline.BrightnessParams{Level: 0.2}}); err != nil {
		t.Fatalf("AddFilter brightness: %v", err)
	}

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	seg := commandsOfKind(plan, CommandSegment)[0]
	var vf string
	for i, arg := range seg.Args {
		if arg == "-vf" {
			vf = seg.Args[i+1]
		}
	}
	cropIdx := strings.Index(vf, "crop=640:360")
	grayIdx := strings.Index(vf, "hue=s=0")
	brightIdx := strings.Index(vf, "eq=brightness=0.2")
	if cropIdx < 0 || grayIdx < 0 || brightIdx < 0 {
		t.Fatalf("filters missing from chain: %q", vf)
	}
	if !(cropIdx < grayIdx && grayIdx < brightIdx) {
		t.Fatalf("authored filter order not preserved: %q", vf)
	}
}

func TestPlan_TransitionXfade(t *testing.T) {
	p, track := newTestProject(t)
	a := addClip(t, p, track.ID, timeline.ClipVideo, 0, 5, 0)
	addClip(t, p, track.ID, timeline.ClipVideo, 5, 5, 10)
	if _, err := p.AddTransition(a.ID, timeline.Transition{
		Kind: timeline.TransitionCrossDissolve, Edge: timeline.EdgeEnd, Duration: 1,
	}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	transitions := commandsOfKind(plan, CommandTransition)
	if len(transitions) != 1 {
		t.Fatalf("expected one transition command, got %d", len(transitions))
	}
	filter := strings.Join(transitions[0].Args, " ")
	if !strings.Contains(filter, "xfade=transition=fade:duration=1:offset=0") {
		t.Fatalf("xfade parameters wrong: %q", filter)
	}
	// The window covers exactly the outgoing clip's last second.
	if transitions[0].ExpectedDuration != 1 {
		t.Fatalf("window duration = %v, want 1", transitions[0].ExpectedDuration)
	}
	if plan.Duration != 10 {
		t.Fatalf("plan duration = %v, want 10 (timeline length is unchanged)", plan.Duration)
	}
	// The window replaces the outgoing tail in place; nothing shifts, so no
	// filler is needed.
	if gaps := commandsOfKind(plan, CommandGap); len(gaps) != 0 {
		t.Fatalf("expected no gap commands, got %d", len(gaps))
	}
}

func TestPlan_TransitionKeepsTimelinePositions(t *testing.T) {
	p, track := newTestProject(t)
	a := addClip(t, p, track.ID, timeline.ClipVideo, 0, 5, 0)
	addClip(t, p, track.ID, timeline.ClipVideo, 5, 5, 10)
	if _, err := p.AddTransition(a.ID, timeline.Transition{
		Kind: timeline.TransitionCrossDissolve, Edge: timeline.EdgeEnd, Duration: 1,
	}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// Playback resolves the window inside the outgoing clip's tail with the
	// incoming clip held at its in point; the plan must cut the same way.
	fc := compose.ResolveAt(p, 4.5)
	if len(fc.Video) != 2 {
		t.Fatalf("expected outgoing and incoming layers at 4.5, got %d", len(fc.Video))
	}
	if fc.Video[1].SourceTime != 10 {
		t.Fatalf("incoming layer source time = %v, want its in point 10", fc.Video[1].SourceTime)
	}

	var sawBody, sawTail, sawIncoming, sawHeldFrame bool
	for _, seg := range commandsOfKind(plan, CommandSegment) {
		s := strings.Join(seg.Args, " ")
		switch {
		case strings.Contains(s, "-ss 0 -t 4 -i /media/a.mp4"):
			sawBody = true
		case strings.Contains(s, "-ss 4 -t 1 -i /media/a.mp4"):
			sawTail = true
		case strings.Contains(s, "-ss 10 -t 5 -i /media/a.mp4"):
			sawIncoming = true
		case strings.Contains(s, "-frames:v 1"):
			if !strings.Contains(s, "-ss 10 ") {
				t.Fatalf("held frame must come from the incoming in point: %q", s)
			}
			sawHeldFrame = true
		}
	}
	if !sawBody || !sawTail || !sawIncoming || !sawHeldFrame {
		t.Fatalf("missing pieces: body=%v tail=%v incoming=%v held=%v",
			sawBody, sawTail, sawIncoming, sawHeldFrame)
	}

	// Body [0,4), window [4,5), incoming [5,10): contiguous, full length.
	concats := commandsOfKind(plan, CommandConcat)
	if len(concats) != 1 {
		t.Fatalf("expected one concat, got %d", len(concats))
	}
	if len(concats[0].Inputs) != 3 {
		t.Fatalf("concat should join body, window, incoming; got %d inputs", len(concats[0].Inputs))
	}
	if concats[0].ExpectedDuration != 10 {
		t.Fatalf("track duration = %v, want 10", concats[0].ExpectedDuration)
	}
}

func TestPlan_AudioJunctionFadesInPlace(t *testing.T) {
	p, _ := newTestProject(t)
	audio, _ := p.AddTrack(timeline.TrackAudio, "")
	a, err := p.AddClip(audio.ID, timeline.Clip{
		Kind: timeline.ClipAudio, AssetID: "asset-1",
		Start: 0, Duration: 5, In: 0, Out: 5,
	})
	if err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	if _, err := p.AddClip(audio.ID, timeline.Clip{
		Kind: timeline.ClipAudio, AssetID: "asset-1",
		Start: 5, Duration: 5, In: 10, Out: 15,
	}); err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	if _, err := p.AddTransition(a.ID, timeline.Transition{
		Kind: timeline.TransitionCrossDissolve, Edge: timeline.EdgeEnd, Duration: 2,
	}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// The outgoing clip fades out across the window; the incoming clip is
	// delayed to its own start, so the mix length never contracts.
	var sawFade bool
	for _, cmd := range commandsOfKind(plan, CommandSegment) {
		s := strings.Join(cmd.Args, " ")
		if strings.Contains(s, "afade=t=out:st=3:d=2") {
			sawFade = true
		}
	}
	if !sawFade {
		t.Fatal("outgoing audio clip should fade out over the window")
	}
	mix := commandsOfKind(plan, CommandAudioMix)[0]
	filter := strings.Join(mix.Args, " ")
	if !strings.Contains(filter, "adelay=5000|5000") {
		t.Fatalf("incoming audio piece should stay at its timeline start: %q", filter)
	}
}

func TestPlan_GapFiller(t *testing.T) {
	p, track := newTestProject(t)
	addClip(t, p, track.ID, timeline.ClipVideo, 2, 5, 0)
	addClip(t, p, track.ID, timeline.ClipVideo, 10, 5, 10)

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	// Leading gap [0,2) and middle gap [7,10); the last clip ends the timeline.
	gaps := commandsOfKind(plan, CommandGap)
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gap commands, got %d", len(gaps))
	}
	if gaps[0].ExpectedDuration != 2 || gaps[1].ExpectedDuration != 3 {
		t.Fatalf("gap durations = %v, %v; want 2, 3", gaps[0].ExpectedDuration, gaps[1].ExpectedDuration)
	}

	concats := commandsOfKind(plan, CommandConcat)
	if len(concats) != 1 {
		t.Fatalf("expected one concat, got %d", len(concats))
	}
	if len(concats[0].Inputs) != 4 {
		t.Fatalf("concat should join 4 pieces, got %d", len(concats[0].Inputs))
	}
}

func TestPlan_OverlayTrack(t *testing.T) {
	p, base := newTestProject(t)
	addClip(t, p, base.ID, timeline.ClipVideo, 0, 10, 0)

	upper, _ := p.AddTrack(timeline.TrackVideo, "overlay")
	if _, err := p.AddClip(upper.ID, timeline.Clip{
		Kind: timeline.ClipVideo, AssetID: "asset-1",
		Start: 2, Duration: 4, In: 0, Out: 4,
		Opacity: 0.5,
	}); err != nil {
		t.Fatalf("AddClip upper: %v", err)
	}

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	overlays := commandsOfKind(plan, CommandOverlay)
	if len(overlays) != 1 {
		t.Fatalf("expected one overlay command, got %d", len(overlays))
	}
	filter := strings.Join(overlays[0].Args, " ")
	if !strings.Contains(filter, "enable='between(t,2,6)'") {
		t.Fatalf("overlay not windowed to the clip interval: %q", filter)
	}
	if !strings.Contains(filter, "colorchannelmixer=aa=0.5") {
		t.Fatalf("clip opacity not applied: %q", filter)
	}
}

func TestPlan_AudioMix(t *testing.T) {
	p, track := newTestProject(t)
	addClip(t, p, track.ID, timeline.ClipVideo, 0, 10, 0)

	audio, _ := p.AddTrack(timeline.TrackAudio, "")
	if _, err := p.AddClip(audio.ID, timeline.Clip{
		Kind: timeline.ClipAudio, AssetID: "asset-1",
		Start: 3, Duration: 5, In: 0, Out: 5,
		Volume: 0.5,
	}); err != nil {
		t.Fatalf("AddClip audio: %v", err)
	}

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	mixes := commandsOfKind(plan, CommandAudioMix)
	if len(mixes) != 1 {
		t.Fatalf("expected one audio mix, got %d", len(mixes))
	}
	filter := strings.Join(mixes[0].Args, " ")
	if !strings.Contains(filter, "adelay=3000|3000") {
		t.Fatalf("audio piece not delayed to its start: %q", filter)
	}
	if !strings.Contains(filter, "volume=0.5") {
		t.Fatalf("clip gain not applied: %q", filter)
	}

	mux := commandsOfKind(plan, CommandMux)[0]
	muxArgs := strings.Join(mux.Args, " ")
	if !strings.Contains(muxArgs, "-c:a aac") {
		t.Fatalf("mux should encode the mixed audio: %q", muxArgs)
	}
}

func TestPlan_UnsupportedFilterPlacement(t *testing.T) {
	p, track := newTestProject(t)
	clip := addClip(t, p, track.ID, timeline.ClipVideo, 0, 10, 0)
	// A volume filter is valid on the model but has no video compilation.
	if _, err := p.AddFilter(clip.ID, timeline.Filter{Kind: timeline.FilterVolume, Params: timeline.VolumeParams{Gain: 0.5}}); err != nil {
		t.Fatalf("AddFilter: %v", err)
	}

	_, err := NewPlanner(nil).Plan(p)
	var planErr *PlanError
	if !errors.As(err, &planErr) || planErr.Kind != PlanUnsupportedFilter {
		t.Fatalf("expected unsupported filter error, got %v", err)
	}
}

func TestPlan_WeightsSumToOne(t *testing.T) {
	p, track := newTestProject(t)
	addClip(t, p, track.ID, timeline.ClipVideo, 2, 5, 0)
	addClip(t, p, track.ID, timeline.ClipVideo, 10, 5, 10)

	audio, _ := p.AddTrack(timeline.TrackAudio, "")
	if _, err := p.AddClip(audio.ID, timeline.Clip{
		Kind: timeline.ClipAudio, AssetID: "asset-1",
		Start: 0, Duration: 8, In: 0, Out: 8,
	}); err != nil {
		t.Fatalf("AddClip audio: %v", err)
	}

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	var sum float64
	for _, cmd := range plan.Commands {
		if cmd.Weight <= 0 {
			t.Fatalf("command %d has non-positive weight %v", cmd.Index, cmd.Weight)
		}
		sum += cmd.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
}

func TestPlan_TwoPassMux(t *testing.T) {
	p, track := newTestProject(t)
	p.Settings.TwoPass = true
	addClip(t, p, track.ID, timeline.ClipVideo, 0, 10, 0)

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	muxes := commandsOfKind(plan, CommandMux)
	if len(muxes) != 2 {
		t.Fatalf("two-pass should emit 2 mux commands, got %d", len(muxes))
	}
	pass1 := strings.Join(muxes[0].Args, " ")
	pass2 := strings.Join(muxes[1].Args, " ")
	if !strings.Contains(pass1, "-pass 1") || !strings.Contains(pass1, "-f null") {
		t.Fatalf("first pass wrong: %q", pass1)
	}
	if !strings.Contains(pass2, "-pass 2") || muxes[1].Output != "export.mp4" {
		t.Fatalf("second pass wrong: %q", pass2)
	}

	// Both passes pin the stats log to a planned name so the log and its
	// mbtree sidecar are swept with the other intermediates.
	if !strings.Contains(pass1, "-passlogfile passlog") || !strings.Contains(pass2, "-passlogfile passlog") {
		t.Fatalf("passes do not pin the stats log: %q / %q", pass1, pass2)
	}
	names := plan.Intermediates()
	want := map[string]bool{"passlog-0.log": false, "passlog-0.log.mbtree": false}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("intermediates missing analysis file %s: %v", name, names)
		}
	}
}

func TestPlan_Intermediates(t *testing.T) {
	p, track := newTestProject(t)
	addClip(t, p, track.ID, timeline.ClipVideo, 2, 5, 0)

	plan, err := NewPlanner(nil).Plan(p)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	names := plan.Intermediates()
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			t.Fatalf("duplicate intermediate %q", name)
		}
		seen[name] = true
	}
	if !seen[plan.OutputName] {
		t.Fatal("final output missing from intermediates")
	}
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{
		1:        "1",
		0.5:      "0.5",
		4:        "4",
		29.97:    "29.97",
		0:        "0",
		1.234567: "1.234567",
	}
	for in, want := range cases {
		if got := formatFloat(in); got != want {
			t.Fatalf("formatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestAtempoChain(t *testing.T) {
	if got := atempoChain(1.5); !reflect.DeepEqual(got, []string{"atempo=1.5"}) {
		t.Fatalf("atempoChain(1.5) = %v", got)
	}
	if got := atempoChain(5); !reflect.DeepEqual(got, []string{"atempo=2", "atempo=2", "atempo=1.25"}) {
		t.Fatalf("atempoChain(5) = %v", got)
	}
	if got := atempoChain(0.2); !reflect.DeepEqual(got, []string{"atempo=0.5", "atempo=0.5", "atempo=0.8"}) {
		t.Fatalf("atempoChain(0.2) = %v", got)
	}
}
