package timeline

import (
	"errors"
	"fmt"
)

var (
	ErrTrackNotFound = errors.New("track not found")
	ErrClipNotFound  = errors.New("clip not found")
	ErrTrackLocked   = errors.New("track is locked")
	ErrKindMismatch  = errors.New("clip kind not allowed on this track")
	ErrInvalidEdit   = errors.New("invalid edit")
)

// OverlapError rejects a clip placement that would overlap an existing clip
// on the same track.
type OverlapError struct {
	TrackID    string
	ClipID     string // the existing clip that would be overlapped
	Start, End float64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("interval [%.3f, %.3f) overlaps clip %s on track %s",
		e.Start, e.End, e.ClipID, e.TrackID)
}

// InvalidSourceRangeError rejects a clip whose source interval violates the
// asset bounds or whose timeline duration disagrees with its source span.
type InvalidSourceRangeError struct {
	ClipID string
	Reason string
}

func (e *InvalidSourceRangeError) Error() string {
	if e.ClipID != "" {
		return fmt.Sprintf("invalid source range for clip %s: %s", e.ClipID, e.Reason)
	}
	return fmt.Sprintf("invalid source range: %s", e.Reason)
}

// InvalidTransitionError rejects a transition whose window violates the
// duration or adjacency rules.
type InvalidTransitionError struct {
	ClipID string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition on clip %s: %s", e.ClipID, e.Reason)
}

// InvalidFilterError rejects a filter with out-of-range parameters.
type InvalidFilterError struct {
	ClipID string
	Kind   FilterKind
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s filter on clip %s: %s", e.Kind, e.ClipID, e.Reason)
}

// AssetInUseError rejects removing a pool asset still referenced by a clip.
type AssetInUseError struct {
	AssetID string
	ClipID  string
}

func (e *AssetInUseError) Error() string {
	return fmt.Sprintf("asset %s is still referenced by clip %s", e.AssetID, e.ClipID)
}
