// Package compose resolves the timeline at a single instant: which clips are
// visible, in what stacking order, at what source time, and with what blend
// state. Resolution is pure and safe for concurrent preview calls.
package compose

import (
	"math"

	"github.com/framecut/framecut-agent/internal/timeline"
)

// Role marks a layer's part in a transition window.
type Role string

const (
	RoleSolo     Role = "solo"
	RoleOutgoing Role = "outgoing"
	RoleIncoming Role = "incoming"
)

// Blend is the transition state of one layer at the resolved instant.
type Blend struct {
	Kind   timeline.TransitionKind `json:"kind"`
	Factor float64                 `json:"factor"` // 0 at window start, 1 at window end
	Role   Role                    `json:"role"`
}

// Layer is one video clip's contribution, bottom-to-top by track index.
type Layer struct {
	TrackID    string            `json:"track_id"`
	TrackIndex int               `json:"track_index"`
	Clip       *timeline.Clip    `json:"clip"`
	SourceTime float64           `json:"source_time"`
	Opacity    float64           `json:"opacity"`
	Filters    []timeline.Filter `json:"filters,omitempty"`
	Blend      *Blend            `json:"blend,omitempty"`
}

// AudioInput is one audio clip's contribution before summation.
type AudioInput struct {
	TrackID    string         `json:"track_id"`
	Clip       *timeline.Clip `json:"clip"`
	SourceTime float64        `json:"source_time"`
	Gain       float64        `json:"gain"`
}

// FrameComposition is the full resolved state at one instant. Video layers
// stack in ascending track order (last paints on top); audio inputs sum.
type FrameComposition struct {
	Time       float64      `json:"time"`
	Video      []Layer      `json:"video"`
	Audio      []AudioInput `json:"audio"`
	MasterGain float64      `json:"master_gain"`
}

// Empty reports whether nothing is active at the instant (black + silence).
func (fc *FrameComposition) Empty() bool {
	return len(fc.Video) == 0 && len(fc.Audio) == 0
}

// ResolveAt computes the composition at project time t. Times outside
// [0, project duration) resolve to an empty composition.
func ResolveAt(p *timeline.Project, t float64) FrameComposition {
	fc := FrameComposition{Time: t, MasterGain: 1}
	if t < 0 || t >= p.Duration() {
		return fc
	}

	for index, track := range p.Tracks {
		switch track.Kind {
		case timeline.TrackVideo:
			if !track.Visible {
				continue
			}
			fc.Video = append(fc.Video, resolveVideoTrack(track, index, t)...)
		case timeline.TrackAudio:
			if track.Muted {
				continue
			}
			fc.Audio = append(fc.Audio, resolveAudioTrack(track, t)...)
		}
	}

	fc.MasterGain = masterGain(fc.Audio)
	return fc
}

// resolveVideoTrack finds the track's active clip at t and expands any
// transition window into outgoing/incoming layer pairs. Intervals within a
// track never overlap, so at most one clip is active.
func resolveVideoTrack(track *timeline.Track, index int, t float64) []Layer {
	active := activeClip(track, t)
	if active == nil {
		return nil
	}

	layer := Layer{
		TrackID:    track.ID,
		TrackIndex: index,
		Clip:       active,
		SourceTime: active.SourceTimeAt(t),
		Opacity:    active.Opacity,
		Filters:    active.Filters,
	}

	// Junction with the following clip: the window occupies the last
	// effective-duration seconds of the outgoing clip.
	if next := adjacentAfter(track, active); next != nil {
		if window, ok := junctionWindow(active, next); ok && t >= active.End()-window.duration {
			b := window.curve.Apply((t - (active.End() - window.duration)) / window.duration)
			layer.Opacity = active.Opacity * (1 - b)
			layer.Blend = &Blend{Kind: window.kind, Factor: b, Role: RoleOutgoing}

			incoming := Layer{
				TrackID:    track.ID,
				TrackIndex: index,
				Clip:       next,
				SourceTime: next.SourceTimeAt(t),
				Opacity:    next.Opacity * b,
				Filters:    next.Filters,
				Blend:      &Blend{Kind: window.kind, Factor: b, Role: RoleIncoming},
			}
			return []Layer{layer, incoming}
		}
	}

	// Edge transitions without an adjacent clip fade against black.
	if tr := transitionOn(active, timeline.EdgeStart); tr != nil && adjacentBefore(track, active) == nil {
		if t < active.Start+tr.Duration {
			b := tr.Curve.Apply((t - active.Start) / tr.Duration)
			layer.Opacity = active.Opacity * b
			layer.Blend = &Blend{Kind: tr.Kind, Factor: b, Role: RoleIncoming}
		}
	}
	if tr := transitionOn(active, timeline.EdgeEnd); tr != nil && adjacentAfter(track, active) == nil {
		if t >= active.End()-tr.Duration {
			b := tr.Curve.Apply((t - (active.End() - tr.Duration)) / tr.Duration)
			layer.Opacity = active.Opacity * (1 - b)
			layer.Blend = &Blend{Kind: tr.Kind, Factor: b, Role: RoleOutgoing}
		}
	}

	return []Layer{layer}
}

func resolveAudioTrack(track *timeline.Track, t float64) []AudioInput {
	active := activeClip(track, t)
	if active == nil {
		return nil
	}

	gain := active.Volume * track.Volume

	// Audio transitions crossfade gains over the same window video uses.
	if next := adjacentAfter(track, active); next != nil {
		if window, ok := junctionWindow(active, next); ok && t >= active.End()-window.duration {
			b := window.curve.Apply((t - (active.End() - window.duration)) / window.duration)
			return []AudioInput{
				{TrackID: track.ID, Clip: active, SourceTime: active.SourceTimeAt(t), Gain: gain * (1 - b)},
				{TrackID: track.ID, Clip: next, SourceTime: next.SourceTimeAt(t), Gain: next.Volume * track.Volume * b},
			}
		}
	}

	return []AudioInput{
		{TrackID: track.ID, Clip: active, SourceTime: active.SourceTimeAt(t), Gain: gain},
	}
}

// junctionWindow reconciles the transitions declared at a junction: outgoing
// transition of a and incoming transition of b. The larger declared duration
// wins, clipped to the shorter of the two clips.
type window struct {
	duration float64
	kind     timeline.TransitionKind
	curve    timeline.TransitionCurve
}

func junctionWindow(a, b *timeline.Clip) (window, bool) {
	out := transitionOn(a, timeline.EdgeEnd)
	in := transitionOn(b, timeline.EdgeStart)
	if out == nil && in == nil {
		return window{}, false
	}

	w := window{curve: timeline.CurveLinear}
	if out != nil {
		w.duration = out.Duration
		w.kind = out.Kind
		w.curve = out.Curve
	}
	if in != nil && in.Duration > w.duration {
		w.duration = in.Duration
		w.kind = in.Kind
		w.curve = in.Curve
	}

	if w.duration > a.Duration {
		w.duration = a.Duration
	}
	if w.duration > b.Duration {
		w.duration = b.Duration
	}
	if w.duration <= 0 {
		return window{}, false
	}
	return w, true
}

func activeClip(track *timeline.Track, t float64) *timeline.Clip {
	for _, clip := range track.Clips {
		if clip.Contains(t) {
			return clip
		}
	}
	return nil
}

func transitionOn(clip *timeline.Clip, edge timeline.TransitionEdge) *timeline.Transition {
	for i := range clip.Transitions {
		if clip.Transitions[i].Edge == edge {
			return &clip.Transitions[i]
		}
	}
	return nil
}

const adjacencyEpsilon = 1e-6

func adjacentAfter(track *timeline.Track, clip *timeline.Clip) *timeline.Clip {
	for _, other := range track.Clips {
		if other.ID != clip.ID && math.Abs(other.Start-clip.End()) < adjacencyEpsilon {
			return other
		}
	}
	return nil
}

func adjacentBefore(track *timeline.Track, clip *timeline.Clip) *timeline.Clip {
	for _, other := range track.Clips {
		if other.ID != clip.ID && math.Abs(other.End()-clip.Start) < adjacencyEpsilon {
			return other
		}
	}
	return nil
}

// masterGain soft-clamps the summed audio bus. Below unity total gain the
// sum passes through; above it the bus is scaled by tanh(total)/total so
// stacking many tracks can never overflow the sample range.
func masterGain(inputs []AudioInput) float64 {
	var total float64
	for _, in := range inputs {
		total += in.Gain
	}
	if total <= 1 {
		return 1
	}
	return math.Tanh(total) / total
}
