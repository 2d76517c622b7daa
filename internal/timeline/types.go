// Package timeline holds the editable project model: tracks of
// non-overlapping clips with ordered filters and edge-anchored transitions.
// All mutations validate before committing; invalid edits leave the project
// untouched.
package timeline

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/framecut/framecut-agent/internal/media"
)

// timeEpsilon absorbs float drift when comparing clip boundaries.
const timeEpsilon = 1e-6

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

type ClipKind string

const (
	ClipVideo ClipKind = "video"
	ClipAudio ClipKind = "audio"
	ClipImage ClipKind = "image"
	ClipText  ClipKind = "text"
)

// Settings is the project's export configuration.
type Settings struct {
	Container   string  `json:"container"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
	VideoCodec  string  `json:"video_codec"`
	AudioCodec  string  `json:"audio_codec"`
	CRF         int     `json:"crf,omitempty"`
	BitrateKbps int     `json:"bitrate_kbps,omitempty"`
	Preset      string  `json:"preset,omitempty"`
	TwoPass     bool    `json:"two_pass,omitempty"`
}

// Project is the top-level editable unit. It exclusively owns its tracks and
// its media pool entries; assets in the pool are referenced by ID from clips
// and never duplicated.
type Project struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Width     int                     `json:"width"`
	Height    int                     `json:"height"`
	FrameRate float64                 `json:"frame_rate"`
	Tracks    []*Track                `json:"tracks"`
	Assets    map[string]*media.Asset `json:"assets"`
	Settings  Settings                `json:"settings"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type Track struct {
	ID      string    `json:"id"`
	Kind    TrackKind `json:"kind"`
	Name    string    `json:"name"`
	Muted   bool      `json:"muted"`
	Locked  bool      `json:"locked"`
	Visible bool      `json:"visible"`
	Volume  float64   `json:"volume"`
	Clips   []*Clip   `json:"clips"`
}

// Clip places a media asset (or inline text) on a track. Its timeline
// interval is [Start, Start+Duration) in project time; its source interval is
// [In, Out) in asset-local time.
type Clip struct {
	ID      string   `json:"id"`
	Kind    ClipKind `json:"kind"`
	AssetID string   `json:"asset_id,omitempty"`
	Name    string   `json:"name,omitempty"`

	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	In       float64 `json:"in"`
	Out      float64 `json:"out"`

	Volume   float64 `json:"volume"`
	Opacity  float64 `json:"opacity"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
	Text     string  `json:"text,omitempty"`

	Filters     []Filter     `json:"filters,omitempty"`
	Transitions []Transition `json:"transitions,omitempty"`
}

// End returns the exclusive end of the clip's timeline interval.
func (c *Clip) End() float64 {
	return c.Start + c.Duration
}

// Contains reports whether project time t falls inside the clip's interval.
func (c *Clip) Contains(t float64) bool {
	return t >= c.Start-timeEpsilon && t < c.End()-timeEpsilon
}

// SpeedRate returns the active time-remap rate, or 1 when no speed filter is
// present. With rate r, one second of timeline consumes r seconds of source.
func (c *Clip) SpeedRate() float64 {
	for _, f := range c.Filters {
		if p, ok := f.Params.(SpeedParams); ok && p.Rate > 0 {
			return p.Rate
		}
	}
	return 1
}

// SourceTimeAt maps project time t into the clip's asset-local time,
// accounting for any active time remap.
func (c *Clip) SourceTimeAt(t float64) float64 {
	if c.Duration <= 0 {
		return c.In
	}
	span := c.Out - c.In
	local := c.In + (t-c.Start)*span/c.Duration
	if local < c.In {
		local = c.In
	}
	if local > c.Out {
		local = c.Out
	}
	return local
}

// NewProject creates an empty project with the given canvas and settings.
func NewProject(name string, width, height int, frameRate float64, settings Settings) *Project {
	now := time.Now()
	return &Project{
		ID:        uuid.NewString(),
		Name:      name,
		Width:     width,
		Height:    height,
		FrameRate: frameRate,
		Assets:    make(map[string]*media.Asset),
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Duration is the derived project length: the maximum clip end over all
// tracks. Never stored; always recomputed.
func (p *Project) Duration() float64 {
	var max float64
	for _, track := range p.Tracks {
		for _, clip := range track.Clips {
			if end := clip.End(); end > max {
				max = end
			}
		}
	}
	return max
}

// Track returns the track with the given ID, or nil.
func (p *Project) Track(id string) *Track {
	for _, track := range p.Tracks {
		if track.ID == id {
			return track
		}
	}
	return nil
}

// Clip returns the clip with the given ID and its track, or (nil, nil).
func (p *Project) Clip(id string) (*Clip, *Track) {
	for _, track := range p.Tracks {
		for _, clip := range track.Clips {
			if clip.ID == id {
				return clip, track
			}
		}
	}
	return nil, nil
}

// AddAsset places an asset into the project's media pool.
func (p *Project) AddAsset(asset *media.Asset) {
	p.Assets[asset.ID] = asset
	p.touch()
}

// RemoveAsset removes a pool entry. Rejected while any clip references it.
func (p *Project) RemoveAsset(assetID string) error {
	for _, track := range p.Tracks {
		for _, clip := range track.Clips {
			if clip.AssetID == assetID {
				return &AssetInUseError{AssetID: assetID, ClipID: clip.ID}
			}
		}
	}
	delete(p.Assets, assetID)
	p.touch()
	return nil
}

// ReferencesAsset reports whether any clip uses the asset.
func (p *Project) ReferencesAsset(assetID string) bool {
	for _, track := range p.Tracks {
		for _, clip := range track.Clips {
			if clip.AssetID == assetID {
				return true
			}
		}
	}
	return false
}

func (p *Project) touch() {
	p.UpdatedAt = time.Now()
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < timeEpsilon
}
