package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// spanEpsilon tolerates float drift between a clip's timeline duration and
// its speed-adjusted source span.
const spanEpsilon = 1e-3

// AddTrack appends a new track lane. Video tracks later in the list paint on
// top; audio tracks sum.
func (p *Project) AddTrack(kind TrackKind, name string) (*Track, error) {
	if kind != TrackVideo && kind != TrackAudio {
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}
	if name == "" {
		name = fmt.Sprintf("%s %d", kind, countTracks(p, kind)+1)
	}
	track := &Track{
		ID:      uuid.NewString(),
		Kind:    kind,
		Name:    name,
		Visible: true,
		Volume:  1,
	}
	p.Tracks = append(p.Tracks, track)
	p.touch()
	return track, nil
}

// RemoveTrack deletes a track and cascades to its clips.
func (p *Project) RemoveTrack(trackID string) error {
	for i, track := range p.Tracks {
		if track.ID == trackID {
			p.Tracks = append(p.Tracks[:i], p.Tracks[i+1:]...)
			p.touch()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
}

// AddClip validates and places a clip on a track. The input is taken by
// value; the committed clip (with assigned ID and defaults) is returned.
func (p *Project) AddClip(trackID string, clip Clip) (*Clip, error) {
	track := p.Track(trackID)
	if track == nil {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	if track.Locked {
		return nil, fmt.Errorf("%w: %s", ErrTrackLocked, trackID)
	}

	if clip.ID == "" {
		clip.ID = uuid.NewString()
	}
	applyClipDefaults(&clip)

	for i := range clip.Filters {
		if clip.Filters[i].ID == "" {
			clip.Filters[i].ID = uuid.NewString()
		}
		if err := validateFilter(clip.Filters[i]); err != nil {
			return nil, &InvalidFilterError{ClipID: clip.ID, Kind: clip.Filters[i].Kind, Reason: err.Error()}
		}
	}

	if err := p.validatePlacement(track, &clip, ""); err != nil {
		return nil, err
	}

	committed := clip
	track.Clips = append(track.Clips, &committed)
	sortClips(track)
	p.touch()
	return &committed, nil
}

// RemoveClip deletes a clip from its track.
func (p *Project) RemoveClip(clipID string) error {
	for _, track := range p.Tracks {
		for i, clip := range track.Clips {
			if clip.ID == clipID {
				if track.Locked {
					return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
				}
				track.Clips = append(track.Clips[:i], track.Clips[i+1:]...)
				p.touch()
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
}

// MoveClip shifts a clip to a new start time, re-validating overlap.
func (p *Project) MoveClip(clipID string, newStart float64) error {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}

	candidate := *clip
	candidate.Start = newStart
	if err := p.validatePlacement(track, &candidate, clip.ID); err != nil {
		return err
	}

	clip.Start = newStart
	sortClips(track)
	p.touch()
	return nil
}

// TrackSpec carries optional track flag updates; nil leaves a field
// unchanged.
type TrackSpec struct {
	Muted   *bool
	Locked  *bool
	Visible *bool
	Volume  *float64
}

// UpdateTrack sets track flags. The lock flag is itself editable here; a
// lock only guards clip mutations.
func (p *Project) UpdateTrack(trackID string, spec TrackSpec) error {
	track := p.Track(trackID)
	if track == nil {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	if spec.Volume != nil && *spec.Volume < 0 {
		return fmt.Errorf("%w: track volume must be non-negative", ErrInvalidEdit)
	}
	if spec.Muted != nil {
		track.Muted = *spec.Muted
	}
	if spec.Locked != nil {
		track.Locked = *spec.Locked
	}
	if spec.Visible != nil {
		track.Visible = *spec.Visible
	}
	if spec.Volume != nil {
		track.Volume = *spec.Volume
	}
	p.touch()
	return nil
}

// SetClipVolume sets the clip's linear gain multiplier.
func (p *Project) SetClipVolume(clipID string, gain float64) error {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}
	if gain < 0 {
		return fmt.Errorf("%w: clip volume must be non-negative", ErrInvalidEdit)
	}
	clip.Volume = gain
	p.touch()
	return nil
}

// SetClipOpacity sets the clip's opacity in [0, 1].
func (p *Project) SetClipOpacity(clipID string, opacity float64) error {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}
	if opacity < 0 || opacity > 1 {
		return fmt.Errorf("%w: clip opacity must be in [0, 1]", ErrInvalidEdit)
	}
	clip.Opacity = opacity
	p.touch()
	return nil
}

// TrimSpec carries the optional fields of a trim edit; nil leaves a field
// unchanged.
type TrimSpec struct {
	In       *float64
	Out      *float64
	Start    *float64
	Duration *float64
}

// TrimClip adjusts a clip's source interval and/or timeline placement as one
// validated edit.
func (p *Project) TrimClip(clipID string, spec TrimSpec) error {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}

	candidate := *clip
	if spec.In != nil {
		candidate.In = *spec.In
	}
	if spec.Out != nil {
		candidate.Out = *spec.Out
	}
	if spec.Start != nil {
		candidate.Start = *spec.Start
	}
	if spec.Duration != nil {
		candidate.Duration = *spec.Duration
	} else if spec.In != nil || spec.Out != nil {
		// Trimming the source without an explicit duration keeps the clip's
		// speed and follows the new span.
		candidate.Duration = (candidate.Out - candidate.In) / clip.SpeedRate()
	}

	candidate.Transitions = clampTransitions(candidate.Transitions, candidate.Duration)

	if err := p.validatePlacement(track, &candidate, clip.ID); err != nil {
		return err
	}

	*clip = candidate
	sortClips(track)
	p.touch()
	return nil
}

// SplitClip cuts a clip at project time `at`. The left part keeps the
// original ID; the right part is newly created. The source interval
// partitions exactly at the speed-mapped cut point, so composition output at
// any time is unchanged by the split. Start-edge transitions stay with the
// left part, end-edge transitions move to the right part.
func (p *Project) SplitClip(clipID string, at float64) (*Clip, *Clip, error) {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return nil, nil, fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}
	if at <= clip.Start+timeEpsilon || at >= clip.End()-timeEpsilon {
		return nil, nil, fmt.Errorf("split time %.3f outside clip interval (%.3f, %.3f)", at, clip.Start, clip.End())
	}

	cut := clip.SourceTimeAt(at)
	end := clip.End()

	right := *clip
	right.ID = uuid.NewString()
	right.Start = at
	right.Duration = end - at
	right.In = cut
	right.Filters = cloneFilters(clip.Filters)
	right.Transitions = clampTransitions(transitionsForEdge(clip.Transitions, EdgeEnd), right.Duration)

	clip.Duration = at - clip.Start
	clip.Out = cut
	clip.Transitions = clampTransitions(transitionsForEdge(clip.Transitions, EdgeStart), clip.Duration)

	committed := right
	track.Clips = append(track.Clips, &committed)
	sortClips(track)
	p.touch()
	return clip, &committed, nil
}

// AddFilter appends a filter to the clip's ordered list.
func (p *Project) AddFilter(clipID string, f Filter) (Filter, error) {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return Filter{}, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return Filter{}, fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if err := validateFilter(f); err != nil {
		return Filter{}, &InvalidFilterError{ClipID: clipID, Kind: f.Kind, Reason: err.Error()}
	}

	if _, ok := f.Params.(SpeedParams); ok {
		// A speed filter changes the clip's time mapping; the timeline
		// duration must keep matching the remapped source span.
		candidate := *clip
		candidate.Filters = append(cloneFilters(clip.Filters), f)
		candidate.Duration = (candidate.Out - candidate.In) / candidate.SpeedRate()
		candidate.Transitions = clampTransitions(candidate.Transitions, candidate.Duration)
		if err := p.validatePlacement(track, &candidate, clip.ID); err != nil {
			return Filter{}, err
		}
		*clip = candidate
		sortClips(track)
		p.touch()
		return f, nil
	}

	clip.Filters = append(clip.Filters, f)
	p.touch()
	return f, nil
}

// RemoveFilter deletes a filter by ID, preserving the order of the rest.
func (p *Project) RemoveFilter(clipID, filterID string) error {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}
	for i, f := range clip.Filters {
		if f.ID == filterID {
			if _, ok := f.Params.(SpeedParams); ok {
				candidate := *clip
				candidate.Filters = append(cloneFilters(clip.Filters[:i]), clip.Filters[i+1:]...)
				candidate.Duration = (candidate.Out - candidate.In) / candidate.SpeedRate()
				candidate.Transitions = clampTransitions(candidate.Transitions, candidate.Duration)
				if err := p.validatePlacement(track, &candidate, clip.ID); err != nil {
					return err
				}
				*clip = candidate
				sortClips(track)
			} else {
				clip.Filters = append(clip.Filters[:i], clip.Filters[i+1:]...)
			}
			p.touch()
			return nil
		}
	}
	return fmt.Errorf("filter %s not found on clip %s", filterID, clipID)
}

// ReorderFilters rewrites the filter order. orderedIDs must be a permutation
// of the clip's current filter IDs.
func (p *Project) ReorderFilters(clipID string, orderedIDs []string) error {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}
	if len(orderedIDs) != len(clip.Filters) {
		return fmt.Errorf("reorder list has %d entries, clip has %d filters", len(orderedIDs), len(clip.Filters))
	}

	byID := make(map[string]Filter, len(clip.Filters))
	for _, f := range clip.Filters {
		byID[f.ID] = f
	}

	reordered := make([]Filter, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		f, ok := byID[id]
		if !ok {
			return fmt.Errorf("filter %s not found on clip %s", id, clipID)
		}
		delete(byID, id)
		reordered = append(reordered, f)
	}

	clip.Filters = reordered
	p.touch()
	return nil
}

// AddTransition anchors a transition to one edge of a clip.
func (p *Project) AddTransition(clipID string, tr Transition) (Transition, error) {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return Transition{}, fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return Transition{}, fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}

	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.Curve == "" {
		tr.Curve = CurveLinear
	}
	if !validTransitionKind(tr.Kind) {
		return Transition{}, &InvalidTransitionError{ClipID: clipID, Reason: fmt.Sprintf("unknown kind %q", tr.Kind)}
	}
	if tr.Edge != EdgeStart && tr.Edge != EdgeEnd {
		return Transition{}, &InvalidTransitionError{ClipID: clipID, Reason: fmt.Sprintf("unknown edge %q", tr.Edge)}
	}
	if tr.Duration <= 0 {
		return Transition{}, &InvalidTransitionError{ClipID: clipID, Reason: "duration must be positive"}
	}
	if tr.Duration > clip.Duration+timeEpsilon {
		return Transition{}, &InvalidTransitionError{
			ClipID: clipID,
			Reason: fmt.Sprintf("duration %.3f exceeds clip duration %.3f", tr.Duration, clip.Duration),
		}
	}
	for _, existing := range clip.Transitions {
		if existing.Edge == tr.Edge {
			return Transition{}, &InvalidTransitionError{
				ClipID: clipID,
				Reason: fmt.Sprintf("edge %s already has a transition", tr.Edge),
			}
		}
	}

	clip.Transitions = append(clip.Transitions, tr)
	p.touch()
	return tr, nil
}

// RemoveTransition deletes a transition by ID.
func (p *Project) RemoveTransition(clipID, transitionID string) error {
	clip, track := p.Clip(clipID)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if track.Locked {
		return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
	}
	for i, tr := range clip.Transitions {
		if tr.ID == transitionID {
			clip.Transitions = append(clip.Transitions[:i], clip.Transitions[i+1:]...)
			p.touch()
			return nil
		}
	}
	return fmt.Errorf("transition %s not found on clip %s", transitionID, clipID)
}

// validatePlacement enforces the clip invariants: track/clip kind
// compatibility, a positive timeline interval, no overlap within the track,
// and a consistent source interval for asset-backed clips.
func (p *Project) validatePlacement(track *Track, clip *Clip, excludeID string) error {
	switch track.Kind {
	case TrackVideo:
		if clip.Kind == ClipAudio {
			return fmt.Errorf("%w: audio clip on video track", ErrKindMismatch)
		}
	case TrackAudio:
		if clip.Kind != ClipAudio {
			return fmt.Errorf("%w: %s clip on audio track", ErrKindMismatch, clip.Kind)
		}
	}

	if clip.Start < 0 {
		return &InvalidSourceRangeError{ClipID: clip.ID, Reason: "start time must be non-negative"}
	}
	if clip.Duration <= 0 {
		return &InvalidSourceRangeError{ClipID: clip.ID, Reason: "duration must be positive"}
	}

	if clip.AssetID != "" && (clip.Kind == ClipVideo || clip.Kind == ClipAudio) {
		asset, ok := p.Assets[clip.AssetID]
		if !ok {
			return &InvalidSourceRangeError{ClipID: clip.ID, Reason: fmt.Sprintf("asset %s not in project pool", clip.AssetID)}
		}
		if clip.In < 0 || clip.In >= clip.Out {
			return &InvalidSourceRangeError{ClipID: clip.ID, Reason: "requires 0 <= in < out"}
		}
		if clip.Out > asset.Duration+timeEpsilon {
			return &InvalidSourceRangeError{
				ClipID: clip.ID,
				Reason: fmt.Sprintf("out point %.3f exceeds asset duration %.3f", clip.Out, asset.Duration),
			}
		}
		span := clip.Out - clip.In
		expected := span / clip.SpeedRate()
		if math.Abs(clip.Duration-expected) > spanEpsilon {
			return &InvalidSourceRangeError{
				ClipID: clip.ID,
				Reason: fmt.Sprintf("duration %.3f does not match source span %.3f at speed %.2fx", clip.Duration, span, clip.SpeedRate()),
			}
		}
	}

	end := clip.End()
	for _, existing := range track.Clips {
		if existing.ID == excludeID || existing.ID == clip.ID {
			continue
		}
		if clip.Start < existing.End()-timeEpsilon && existing.Start < end-timeEpsilon {
			return &OverlapError{TrackID: track.ID, ClipID: existing.ID, Start: clip.Start, End: end}
		}
	}

	return nil
}

func applyClipDefaults(clip *Clip) {
	if clip.Volume == 0 {
		clip.Volume = 1
	}
	if clip.Opacity == 0 {
		clip.Opacity = 1
	}
	if clip.Scale == 0 {
		clip.Scale = 1
	}
}

func sortClips(track *Track) {
	sort.SliceStable(track.Clips, func(i, j int) bool {
		return track.Clips[i].Start < track.Clips[j].Start
	})
}

func countTracks(p *Project, kind TrackKind) int {
	n := 0
	for _, track := range p.Tracks {
		if track.Kind == kind {
			n++
		}
	}
	return n
}

func cloneFilters(filters []Filter) []Filter {
	if len(filters) == 0 {
		return nil
	}
	return append([]Filter(nil), filters...)
}

// clampTransitions bounds every transition to the clip's duration, so an
// edit that shrinks a clip shrinks its transitions with it. Returns a fresh
// slice when anything changes; failed edits must not touch the original.
func clampTransitions(transitions []Transition, duration float64) []Transition {
	needed := false
	for _, tr := range transitions {
		if tr.Duration > duration+timeEpsilon {
			needed = true
			break
		}
	}
	if !needed {
		return transitions
	}
	clamped := append([]Transition(nil), transitions...)
	for i := range clamped {
		if clamped[i].Duration > duration {
			clamped[i].Duration = duration
		}
	}
	return clamped
}

func transitionsForEdge(transitions []Transition, edge TransitionEdge) []Transition {
	var kept []Transition
	for _, tr := range transitions {
		if tr.Edge == edge {
			kept = append(kept, tr)
		}
	}
	return kept
}
