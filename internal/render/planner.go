package render

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/framecut/framecut-agent/internal/timeline"
)

// Intermediate segments are encoded with a fast, near-lossless mezzanine
// profile; quality decisions happen once, at the final mux.
const (
	mezzanineCodec  = "libx264"
	mezzaninePreset = "veryfast"
	mezzanineCRF    = "18"
)

type Planner struct {
	logger *slog.Logger
}

func NewPlanner(logger *slog.Logger) *Planner {
	return &Planner{logger: logger}
}

// plannerState accumulates commands and name counters while a plan is built.
type plannerState struct {
	project  *timeline.Project
	width    int
	height   int
	fps      float64
	commands []Command
	counters map[string]int
}

// piece is a materialised stretch of one track: a segment, a gap, or a
// transition-merged run, positioned on the project timeline.
type piece struct {
	name     string
	start    float64
	duration float64
	opacity  float64
	x, y     float64
}

// Plan translates a project snapshot into an ordered command sequence. The
// result is deterministic for a given snapshot.
func (pl *Planner) Plan(p *timeline.Project) (*RenderPlan, error) {
	total := p.Duration()
	if total <= 0 {
		return nil, &PlanError{Kind: PlanEmptyTimeline, Detail: "project has no clips"}
	}

	settings := p.Settings
	width, height := settings.Width, settings.Height
	if width <= 0 || height <= 0 {
		width, height = p.Width, p.Height
	}
	if width <= 0 || height <= 0 {
		return nil, &PlanError{Kind: PlanInvalidSettings, Detail: "no output dimensions"}
	}
	fps := settings.FrameRate
	if fps <= 0 {
		fps = p.FrameRate
	}
	if fps <= 0 {
		fps = 30
	}
	container := settings.Container
	if container == "" {
		container = "mp4"
	}

	if err := validateTimeline(p); err != nil {
		return nil, err
	}

	st := &plannerState{
		project:  p,
		width:    width,
		height:   height,
		fps:      fps,
		counters: make(map[string]int),
	}

	baseName, err := pl.planVideo(st, total)
	if err != nil {
		return nil, err
	}

	mixName, err := pl.planAudio(st, total)
	if err != nil {
		return nil, err
	}

	outputName := "export." + container
	pl.planMux(st, baseName, mixName, outputName, total, settings, container)

	plan := &RenderPlan{
		ProjectID:  p.ID,
		OutputName: outputName,
		Format:     container,
		Duration:   total,
		Commands:   st.commands,
	}
	finalizeWeights(plan)

	if pl.logger != nil {
		pl.logger.Info("render plan built",
			"project_id", p.ID,
			"commands", len(plan.Commands),
			"duration", total,
		)
	}
	return plan, nil
}

// validateTimeline re-checks the model invariants the planner depends on.
// The mutation API enforces them already; a corrupted document must fail
// planning rather than produce a broken artifact.
func validateTimeline(p *timeline.Project) error {
	for _, track := range p.Tracks {
		for i, clip := range track.Clips {
			if clip.Kind == timeline.ClipVideo || clip.Kind == timeline.ClipAudio {
				if clip.AssetID == "" {
					return &PlanError{Kind: PlanMissingAsset, ClipID: clip.ID, Detail: "clip has no source asset"}
				}
				if _, ok := p.Assets[clip.AssetID]; !ok {
					return &PlanError{
						Kind:   PlanMissingAsset,
						ClipID: clip.ID,
						Detail: fmt.Sprintf("asset %s not in project pool", clip.AssetID),
					}
				}
			}
			for j := i + 1; j < len(track.Clips); j++ {
				other := track.Clips[j]
				if clip.Start < other.End() && other.Start < clip.End() {
					return &PlanError{
						Kind:   PlanInvalidTimeline,
						ClipID: clip.ID,
						Detail: fmt.Sprintf("overlaps clip %s on track %s", other.ID, track.ID),
					}
				}
			}
		}
	}
	return nil
}

func (st *plannerState) nextName(prefix, ext string) string {
	n := st.counters[prefix]
	st.counters[prefix] = n + 1
	return fmt.Sprintf("%s_%03d.%s", prefix, n, ext)
}

func (st *plannerState) add(cmd Command) string {
	cmd.Index = len(st.commands)
	st.commands = append(st.commands, cmd)
	return cmd.Output
}

// planVideo materialises every visible video track and reduces them to one
// base stream: the bottom track (with gap filler) establishes the full
// duration, upper tracks are painted on via overlay passes.
func (pl *Planner) planVideo(st *plannerState, total float64) (string, error) {
	var tracks []*timeline.Track
	for _, track := range st.project.Tracks {
		if track.Kind == timeline.TrackVideo && track.Visible && len(track.Clips) > 0 {
			tracks = append(tracks, track)
		}
	}

	if len(tracks) == 0 {
		// Audio-only project: the canvas stays black for the full duration.
		return st.add(pl.gapCommand(st, total)), nil
	}

	pieces, err := pl.trackPieces(st, tracks[0])
	if err != nil {
		return "", err
	}
	base, err := pl.assembleBase(st, pieces, total)
	if err != nil {
		return "", err
	}

	for _, track := range tracks[1:] {
		upper, err := pl.trackPieces(st, track)
		if err != nil {
			return "", err
		}
		for _, pc := range upper {
			base = st.add(pl.overlayCommand(st, base, pc, total))
		}
	}

	return base, nil
}

// trackPieces builds one track's pieces in timeline order. A junction
// transition splits the outgoing clip into a body and a blend window: the
// window cross-fades the outgoing tail against the incoming clip's first
// frame held still, because at those instants the incoming clip has not
// started yet. Every piece keeps its timeline position, so the track's
// length never changes and playback resolution places the same content at
// the same times.
func (pl *Planner) trackPieces(st *plannerState, track *timeline.Track) ([]piece, error) {
	var pieces []piece
	clips := track.Clips
	for i, clip := range clips {
		var w float64
		var kind timeline.TransitionKind
		if i+1 < len(clips) && nearlyAdjacent(clip.End(), clips[i+1].Start) {
			w, kind, _ = junctionTransition(clip, clips[i+1])
		}

		body := clip.Duration - w
		if body > gapEpsilon {
			cmd, err := pl.videoSegmentCommand(st, clip, 0, body)
			if err != nil {
				return nil, err
			}
			st.add(cmd)
			pieces = append(pieces, piece{
				name:     cmd.Output,
				start:    clip.Start,
				duration: body,
				opacity:  clip.Opacity,
				x:        clip.X,
				y:        clip.Y,
			})
		}

		if w > 0 {
			tail, err := pl.videoSegmentCommand(st, clip, clip.Duration-w, w)
			if err != nil {
				return nil, err
			}
			st.add(tail)
			hold, err := pl.holdSegmentCommand(st, clips[i+1], w)
			if err != nil {
				return nil, err
			}
			merged, err := pl.transitionCommand(st,
				piece{name: tail.Output, duration: w},
				piece{name: hold, duration: w},
				w, kind, clips[i+1].ID)
			if err != nil {
				return nil, err
			}
			st.add(merged)
			pieces = append(pieces, piece{
				name:     merged.Output,
				start:    clip.End() - w,
				duration: w,
				opacity:  1,
			})
		}
	}
	return pieces, nil
}

// assembleBase fills timeline gaps around the bottom track's pieces with
// black and concatenates everything into a stream covering [0, total).
func (pl *Planner) assembleBase(st *plannerState, pieces []piece, total float64) (string, error) {
	var ordered []piece
	cursor := 0.0
	for _, pc := range pieces {
		if pc.start > cursor+gapEpsilon {
			gap := pl.gapCommand(st, pc.start-cursor)
			st.add(gap)
			ordered = append(ordered, piece{name: gap.Output, start: cursor, duration: pc.start - cursor})
		}
		ordered = append(ordered, pc)
		cursor = pc.start + pc.duration
	}
	if total > cursor+gapEpsilon {
		gap := pl.gapCommand(st, total-cursor)
		st.add(gap)
		ordered = append(ordered, piece{name: gap.Output, start: cursor, duration: total - cursor})
	}

	if len(ordered) == 1 {
		return ordered[0].name, nil
	}

	inputs := make([]string, 0, len(ordered))
	var args []string
	var labels strings.Builder
	for i, pc := range ordered {
		args = append(args, "-i", pc.name)
		inputs = append(inputs, pc.name)
		fmt.Fprintf(&labels, "[%d:v]", i)
	}
	filter := fmt.Sprintf("%sconcat=n=%d:v=1:a=0[v]", labels.String(), len(ordered))
	args = append(args,
		"-filter_complex", filter,
		"-map", "[v]",
		"-c:v", mezzanineCodec, "-preset", mezzaninePreset, "-crf", mezzanineCRF,
	)

	output := st.nextName("track", "mp4")
	args = append(args, output)
	st.add(Command{
		Kind:             CommandConcat,
		Args:             args,
		Inputs:           inputs,
		Output:           output,
		ExpectedDuration: total,
	})
	return output, nil
}

const gapEpsilon = 1e-3

// videoSegmentCommand materialises duration seconds of the clip beginning
// offset seconds past its start, both in timeline time. A speed filter widens
// the trimmed source window proportionally; its setpts stage maps it back.
func (pl *Planner) videoSegmentCommand(st *plannerState, clip *timeline.Clip, offset, duration float64) (Command, error) {
	chain, err := compileVideoFilters(clip)
	if err != nil {
		return Command{}, err
	}
	chain = append(chain, clipGeometry(clip)...)
	chain = append(chain, normalizeChain(st.width, st.height, st.fps)...)

	output := st.nextName("seg_v", "mp4")
	var args []string
	var inputs []string

	switch clip.Kind {
	case timeline.ClipVideo:
		asset := st.project.Assets[clip.AssetID]
		rate := clip.SpeedRate()
		args = append(args,
			"-ss", formatFloat(clip.In+offset*rate),
			"-t", formatFloat(duration*rate),
			"-i", asset.Path,
		)
		inputs = append(inputs, asset.Path)
	case timeline.ClipImage:
		asset, ok := st.project.Assets[clip.AssetID]
		if !ok {
			return Command{}, &PlanError{Kind: PlanMissingAsset, ClipID: clip.ID, Detail: "image clip has no source asset"}
		}
		args = append(args,
			"-loop", "1",
			"-t", formatFloat(duration),
			"-i", asset.Path,
		)
		inputs = append(inputs, asset.Path)
	case timeline.ClipText:
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%s:d=%s",
				st.width, st.height, formatFloat(st.fps), formatFloat(duration)),
		)
		chain = append([]string{drawText(clip.Text)}, chain...)
	default:
		return Command{}, &PlanError{
			Kind:   PlanInvalidTimeline,
			ClipID: clip.ID,
			Detail: fmt.Sprintf("clip kind %s on a video track", clip.Kind),
		}
	}

	args = append(args,
		"-vf", strings.Join(chain, ","),
		"-an",
		"-c:v", mezzanineCodec, "-preset", mezzaninePreset, "-crf", mezzanineCRF,
		output,
	)
	return Command{
		Kind:             CommandSegment,
		ClipID:           clip.ID,
		Args:             args,
		Inputs:           inputs,
		Output:           output,
		ExpectedDuration: duration,
	}, nil
}

// holdSegmentCommand materialises the incoming clip's first frame held for
// the blend window. Playback resolution shows the incoming clip frozen at
// its in point until the clip starts; the export reproduces that. Temporal
// filters (speed, fade) have no effect on a still and are skipped.
func (pl *Planner) holdSegmentCommand(st *plannerState, clip *timeline.Clip, duration float64) (string, error) {
	held := *clip
	held.Filters = nil
	for _, f := range clip.Filters {
		switch f.Params.(type) {
		case timeline.SpeedParams, timeline.FadeParams:
		default:
			held.Filters = append(held.Filters, f)
		}
	}
	chain, err := compileVideoFilters(&held)
	if err != nil {
		return "", err
	}
	chain = append(chain, clipGeometry(clip)...)
	chain = append(chain, normalizeChain(st.width, st.height, st.fps)...)

	output := st.nextName("seg_v", "mp4")
	var args []string
	var inputs []string

	switch clip.Kind {
	case timeline.ClipVideo:
		asset := st.project.Assets[clip.AssetID]
		frame := st.nextName("hold", "png")
		st.add(Command{
			Kind:             CommandSegment,
			ClipID:           clip.ID,
			Args:             []string{"-ss", formatFloat(clip.In), "-i", asset.Path, "-frames:v", "1", frame},
			Inputs:           []string{asset.Path},
			Output:           frame,
			ExpectedDuration: 1 / st.fps,
		})
		args = append(args, "-loop", "1", "-t", formatFloat(duration), "-i", frame)
		inputs = append(inputs, frame)
	case timeline.ClipImage:
		asset, ok := st.project.Assets[clip.AssetID]
		if !ok {
			return "", &PlanError{Kind: PlanMissingAsset, ClipID: clip.ID, Detail: "image clip has no source asset"}
		}
		args = append(args, "-loop", "1", "-t", formatFloat(duration), "-i", asset.Path)
		inputs = append(inputs, asset.Path)
	case timeline.ClipText:
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%s:d=%s",
				st.width, st.height, formatFloat(st.fps), formatFloat(duration)),
		)
		chain = append([]string{drawText(clip.Text)}, chain...)
	default:
		return "", &PlanError{
			Kind:   PlanInvalidTimeline,
			ClipID: clip.ID,
			Detail: fmt.Sprintf("clip kind %s on a video track", clip.Kind),
		}
	}

	args = append(args,
		"-vf", strings.Join(chain, ","),
		"-an",
		"-c:v", mezzanineCodec, "-preset", mezzaninePreset, "-crf", mezzanineCRF,
		output,
	)
	st.add(Command{
		Kind:             CommandSegment,
		ClipID:           clip.ID,
		Args:             args,
		Inputs:           inputs,
		Output:           output,
		ExpectedDuration: duration,
	})
	return output, nil
}

func (pl *Planner) gapCommand(st *plannerState, duration float64) Command {
	output := st.nextName("gap", "mp4")
	return Command{
		Kind: CommandGap,
		Args: []string{
			"-f", "lavfi",
			"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%s:d=%s",
				st.width, st.height, formatFloat(st.fps), formatFloat(duration)),
			"-c:v", mezzanineCodec, "-preset", mezzaninePreset, "-crf", mezzanineCRF,
			output,
		},
		Output:           output,
		ExpectedDuration: duration,
	}
}

func (pl *Planner) transitionCommand(st *plannerState, a, b piece, duration float64, kind timeline.TransitionKind, clipID string) (Command, error) {
	name, ok := xfadeName(kind)
	if !ok {
		return Command{}, &PlanError{
			Kind:   PlanUnsupportedFilter,
			ClipID: clipID,
			Detail: fmt.Sprintf("transition %s has no engine equivalent", kind),
		}
	}

	offset := a.duration - duration
	if offset < 0 {
		offset = 0
	}
	output := st.nextName("xfade", "mp4")
	filter := fmt.Sprintf("[0:v][1:v]xfade=transition=%s:duration=%s:offset=%s[v]",
		name, formatFloat(duration), formatFloat(offset))
	return Command{
		Kind:   CommandTransition,
		ClipID: clipID,
		Args: []string{
			"-i", a.name,
			"-i", b.name,
			"-filter_complex", filter,
			"-map", "[v]",
			"-c:v", mezzanineCodec, "-preset", mezzaninePreset, "-crf", mezzanineCRF,
			output,
		},
		Inputs:           []string{a.name, b.name},
		Output:           output,
		ExpectedDuration: a.duration + b.duration - duration,
	}, nil
}

func (pl *Planner) overlayCommand(st *plannerState, base string, pc piece, total float64) Command {
	output := st.nextName("base", "mp4")

	prep := fmt.Sprintf("[1:v]setpts=PTS+%s/TB", formatFloat(pc.start))
	if pc.opacity > 0 && pc.opacity < 1 {
		prep = fmt.Sprintf("[1:v]format=rgba,colorchannelmixer=aa=%s,setpts=PTS+%s/TB",
			formatFloat(pc.opacity), formatFloat(pc.start))
	}
	filter := fmt.Sprintf("%s[ov];[0:v][ov]overlay=%s:%s:enable='between(t,%s,%s)'[v]",
		prep,
		formatFloat(pc.x), formatFloat(pc.y),
		formatFloat(pc.start), formatFloat(pc.start+pc.duration))

	return Command{
		Kind: CommandOverlay,
		Args: []string{
			"-i", base,
			"-i", pc.name,
			"-filter_complex", filter,
			"-map", "[v]",
			"-c:v", mezzanineCodec, "-preset", mezzaninePreset, "-crf", mezzanineCRF,
			output,
		},
		Inputs:           []string{base, pc.name},
		Output:           output,
		ExpectedDuration: total,
	}
}

// planAudio materialises every unmuted audio track's clips and sums them
// into one mix with per-input delay and gain plus a limiter so many-track
// summation cannot overflow. A junction window fades the outgoing clip out
// across its tail; the incoming clip starts at full gain at its own start,
// so every piece keeps its timeline position.
func (pl *Planner) planAudio(st *plannerState, total float64) (string, error) {
	type audioPiece struct {
		piece
		gain float64
	}

	var pieces []audioPiece
	for _, track := range st.project.Tracks {
		if track.Kind != timeline.TrackAudio || track.Muted || len(track.Clips) == 0 {
			continue
		}

		for i, clip := range track.Clips {
			var fadeOut float64
			if i+1 < len(track.Clips) && nearlyAdjacent(clip.End(), track.Clips[i+1].Start) {
				fadeOut, _, _ = junctionTransition(clip, track.Clips[i+1])
			}
			cmd, err := pl.audioSegmentCommand(st, clip, fadeOut)
			if err != nil {
				return "", err
			}
			st.add(cmd)
			pieces = append(pieces, audioPiece{
				piece: piece{name: cmd.Output, start: clip.Start, duration: clip.Duration},
				gain:  clip.Volume * track.Volume,
			})
		}
	}

	if len(pieces) == 0 {
		return "", nil
	}

	var args []string
	var inputs []string
	var filters []string
	var labels strings.Builder
	for i, pc := range pieces {
		args = append(args, "-i", pc.name)
		inputs = append(inputs, pc.name)
		delayMs := int(math.Round(pc.start * 1000))
		filters = append(filters, fmt.Sprintf("[%d:a]adelay=%d|%d,volume=%s[a%d]",
			i, delayMs, delayMs, formatFloat(pc.gain), i))
		fmt.Fprintf(&labels, "[a%d]", i)
	}
	mixFilter := fmt.Sprintf("%s;%samix=inputs=%d:normalize=0,alimiter=limit=0.96[aout]",
		strings.Join(filters, ";"), labels.String(), len(pieces))

	output := st.nextName("mix", "wav")
	args = append(args,
		"-filter_complex", mixFilter,
		"-map", "[aout]",
		output,
	)
	st.add(Command{
		Kind:             CommandAudioMix,
		Args:             args,
		Inputs:           inputs,
		Output:           output,
		ExpectedDuration: total,
	})
	return output, nil
}

func (pl *Planner) audioSegmentCommand(st *plannerState, clip *timeline.Clip, fadeOut float64) (Command, error) {
	if clip.Kind != timeline.ClipAudio {
		return Command{}, &PlanError{
			Kind:   PlanInvalidTimeline,
			ClipID: clip.ID,
			Detail: fmt.Sprintf("clip kind %s on an audio track", clip.Kind),
		}
	}
	asset := st.project.Assets[clip.AssetID]

	chain, err := compileAudioFilters(clip)
	if err != nil {
		return Command{}, err
	}
	if fadeOut > 0 {
		// Fade in output time, after any atempo remapping.
		chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s",
			formatFloat(clip.Duration-fadeOut), formatFloat(fadeOut)))
	}

	span := clip.Out - clip.In
	output := st.nextName("seg_a", "wav")
	args := []string{
		"-ss", formatFloat(clip.In),
		"-t", formatFloat(span),
		"-i", asset.Path,
		"-vn", "-ac", "2", "-ar", "48000",
	}
	if len(chain) > 0 {
		args = append(args, "-af", strings.Join(chain, ","))
	}
	args = append(args, output)
	return Command{
		Kind:             CommandSegment,
		ClipID:           clip.ID,
		Args:             args,
		Inputs:           []string{asset.Path},
		Output:           output,
		ExpectedDuration: clip.Duration,
	}, nil
}

// planMux emits the final encode. Two-pass encoding becomes an analysis pass
// into the null muxer followed by the real pass.
func (pl *Planner) planMux(st *plannerState, baseName, mixName, outputName string, total float64, settings timeline.Settings, container string) {
	videoCodec := settings.VideoCodec
	if videoCodec == "" {
		videoCodec = "libx264"
	}
	audioCodec := settings.AudioCodec
	if audioCodec == "" {
		audioCodec = "aac"
	}
	preset := settings.Preset
	if preset == "" {
		preset = "medium"
	}

	quality := []string{"-crf", fmt.Sprintf("%d", settings.CRF)}
	if settings.CRF <= 0 {
		quality = []string{"-crf", "23"}
	}
	if settings.BitrateKbps > 0 {
		quality = []string{"-b:v", fmt.Sprintf("%dk", settings.BitrateKbps)}
	}

	common := []string{"-i", baseName}
	inputs := []string{baseName}
	if mixName != "" {
		common = append(common, "-i", mixName)
		inputs = append(inputs, mixName)
	}

	encode := append([]string{"-map", "0:v:0"}, "-c:v", videoCodec, "-preset", preset)
	encode = append(encode, quality...)
	encode = append(encode, "-r", formatFloat(st.fps))

	// The analysis pass writes its stats under a name we choose, so the log
	// and its mbtree sidecar can be cleaned up with the other intermediates.
	const passLogPrefix = "passlog"
	passLogs := []string{passLogPrefix + "-0.log", passLogPrefix + "-0.log.mbtree"}

	if settings.TwoPass {
		pass1 := append(append([]string(nil), common...), encode...)
		pass1 = append(pass1, "-passlogfile", passLogPrefix, "-pass", "1", "-an", "-f", "null", "-")
		st.add(Command{
			Kind:             CommandMux,
			Args:             pass1,
			Inputs:           inputs,
			SideFiles:        passLogs,
			ExpectedDuration: total,
		})
	}

	final := append(append([]string(nil), common...), encode...)
	if settings.TwoPass {
		final = append(final, "-passlogfile", passLogPrefix, "-pass", "2")
	}
	if mixName != "" {
		final = append(final, "-map", "1:a:0", "-c:a", audioCodec, "-b:a", "192k")
	} else {
		final = append(final, "-an")
	}
	if container == "mp4" {
		final = append(final, "-movflags", "+faststart")
	}
	final = append(final, "-t", formatFloat(total), outputName)
	st.add(Command{
		Kind:             CommandMux,
		Args:             final,
		Inputs:           inputs,
		Output:           outputName,
		ExpectedDuration: total,
	})
}

// junctionTransition reconciles the transitions declared at the junction of
// two adjacent clips: the larger declared duration wins, clipped to the
// shorter of the two clips. Mirrors the compositor's window rule.
func junctionTransition(a, b *timeline.Clip) (float64, timeline.TransitionKind, bool) {
	var duration float64
	var kind timeline.TransitionKind
	for _, tr := range a.Transitions {
		if tr.Edge == timeline.EdgeEnd {
			duration = tr.Duration
			kind = tr.Kind
		}
	}
	for _, tr := range b.Transitions {
		if tr.Edge == timeline.EdgeStart && tr.Duration > duration {
			duration = tr.Duration
			kind = tr.Kind
		}
	}
	if duration <= 0 {
		return 0, "", false
	}
	if duration > a.Duration {
		duration = a.Duration
	}
	if duration > b.Duration {
		duration = b.Duration
	}
	return duration, kind, true
}

func nearlyAdjacent(a, b float64) bool {
	return math.Abs(a-b) < gapEpsilon
}

func clipGeometry(clip *timeline.Clip) []string {
	var chain []string
	if clip.Scale > 0 && clip.Scale != 1 {
		chain = append(chain, fmt.Sprintf("scale=iw*%s:ih*%s", formatFloat(clip.Scale), formatFloat(clip.Scale)))
	}
	if clip.Rotation != 0 {
		chain = append(chain, fmt.Sprintf("rotate=%s", formatFloat(clip.Rotation*math.Pi/180)))
	}
	return chain
}

func drawText(text string) string {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	escaped = strings.ReplaceAll(escaped, `:`, `\:`)
	return fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=48:x=(w-text_w)/2:y=(h-text_h)/2", escaped)
}

// finalizeWeights converts per-command processed seconds into shares of the
// whole job so progress aggregation can weight each command.
func finalizeWeights(plan *RenderPlan) {
	var totalSeconds float64
	for _, cmd := range plan.Commands {
		totalSeconds += cmd.ExpectedDuration
	}
	if totalSeconds <= 0 {
		share := 1.0 / float64(len(plan.Commands))
		for i := range plan.Commands {
			plan.Commands[i].Weight = share
		}
		return
	}
	for i := range plan.Commands {
		plan.Commands[i].Weight = plan.Commands[i].ExpectedDuration / totalSeconds
	}
}
