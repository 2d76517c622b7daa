package timeline

import (
	"encoding/json"
	"fmt"
)

// FilterKind discriminates the filter parameter union.
type FilterKind string

const (
	FilterCrop       FilterKind = "crop"
	FilterScale      FilterKind = "scale"
	FilterRotate     FilterKind = "rotate"
	FilterSpeed      FilterKind = "speed"
	FilterBrightness FilterKind = "brightness"
	FilterContrast   FilterKind = "contrast"
	FilterSaturation FilterKind = "saturation"
	FilterGrayscale  FilterKind = "grayscale"
	FilterVolume     FilterKind = "volume"
	FilterFade       FilterKind = "fade"
)

// FilterParams is the closed set of per-kind parameter payloads.
type FilterParams interface {
	filterParams()
}

type CropParams struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

type ScaleParams struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type RotateParams struct {
	Degrees float64 `json:"degrees"`
}

// SpeedParams remaps clip time: rate 2 plays the source twice as fast.
type SpeedParams struct {
	Rate float64 `json:"rate"`
}

type BrightnessParams struct {
	// Level in [-1, 1]; 0 is unchanged.
	Level float64 `json:"level"`
}

type ContrastParams struct {
	// Level in [-2, 2]; 1 is unchanged.
	Level float64 `json:"level"`
}

type SaturationParams struct {
	// Level in [0, 3]; 1 is unchanged.
	Level float64 `json:"level"`
}

type GrayscaleParams struct{}

type VolumeParams struct {
	// Gain is a linear multiplier; 1 is unchanged.
	Gain float64 `json:"gain"`
}

// FadeParams fades video in or out over the leading/trailing seconds of the
// clip's source interval.
type FadeParams struct {
	In       bool    `json:"in"`
	Duration float64 `json:"duration"`
}

func (CropParams) filterParams()       {}
func (ScaleParams) filterParams()      {}
func (RotateParams) filterParams()     {}
func (SpeedParams) filterParams()      {}
func (BrightnessParams) filterParams() {}
func (ContrastParams) filterParams()   {}
func (SaturationParams) filterParams() {}
func (GrayscaleParams) filterParams()  {}
func (VolumeParams) filterParams()     {}
func (FadeParams) filterParams()       {}

// Filter is one ordered, per-clip transform. List order is authored order
// and is semantically significant; nothing may reorder filters.
type Filter struct {
	ID     string
	Kind   FilterKind
	Params FilterParams
}

type filterJSON struct {
	ID     string          `json:"id"`
	Kind   FilterKind      `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (f Filter) MarshalJSON() ([]byte, error) {
	var params json.RawMessage
	if f.Params != nil {
		data, err := json.Marshal(f.Params)
		if err != nil {
			return nil, err
		}
		params = data
	}
	return json.Marshal(filterJSON{ID: f.ID, Kind: f.Kind, Params: params})
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw filterJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	params, err := decodeFilterParams(raw.Kind, raw.Params)
	if err != nil {
		return err
	}

	f.ID = raw.ID
	f.Kind = raw.Kind
	f.Params = params
	return nil
}

func decodeFilterParams(kind FilterKind, raw json.RawMessage) (FilterParams, error) {
	decode := func(v FilterParams, out func() FilterParams) (FilterParams, error) {
		if len(raw) == 0 {
			return out(), nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("invalid %s params: %w", kind, err)
		}
		return out(), nil
	}

	switch kind {
	case FilterCrop:
		var p CropParams
		return decode(&p, func() FilterParams { return p })
	case FilterScale:
		var p ScaleParams
		return decode(&p, func() FilterParams { return p })
	case FilterRotate:
		var p RotateParams
		return decode(&p, func() FilterParams { return p })
	case FilterSpeed:
		var p SpeedParams
		return decode(&p, func() FilterParams { return p })
	case FilterBrightness:
		var p BrightnessParams
		return decode(&p, func() FilterParams { return p })
	case FilterContrast:
		var p ContrastParams
		return decode(&p, func() FilterParams { return p })
	case FilterSaturation:
		var p SaturationParams
		return decode(&p, func() FilterParams { return p })
	case FilterGrayscale:
		return GrayscaleParams{}, nil
	case FilterVolume:
		var p VolumeParams
		return decode(&p, func() FilterParams { return p })
	case FilterFade:
		var p FadeParams
		return decode(&p, func() FilterParams { return p })
	default:
		return nil, fmt.Errorf("unknown filter kind %q", kind)
	}
}

// validateFilter checks a filter's parameters against its kind.
func validateFilter(f Filter) error {
	switch p := f.Params.(type) {
	case CropParams:
		if p.Width <= 0 || p.Height <= 0 || p.X < 0 || p.Y < 0 {
			return fmt.Errorf("crop requires positive dimensions and non-negative offsets")
		}
	case ScaleParams:
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("scale requires positive dimensions")
		}
	case SpeedParams:
		if p.Rate <= 0 {
			return fmt.Errorf("speed rate must be positive")
		}
	case BrightnessParams:
		if p.Level < -1 || p.Level > 1 {
			return fmt.Errorf("brightness level must be in [-1, 1]")
		}
	case ContrastParams:
		if p.Level < -2 || p.Level > 2 {
			return fmt.Errorf("contrast level must be in [-2, 2]")
		}
	case SaturationParams:
		if p.Level < 0 || p.Level > 3 {
			return fmt.Errorf("saturation level must be in [0, 3]")
		}
	case VolumeParams:
		if p.Gain < 0 {
			return fmt.Errorf("volume gain must be non-negative")
		}
	case FadeParams:
		if p.Duration <= 0 {
			return fmt.Errorf("fade duration must be positive")
		}
	case RotateParams, GrayscaleParams:
	case nil:
		return fmt.Errorf("filter %s has no parameters", f.Kind)
	}
	return nil
}
