package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/framecut/framecut-agent/internal/timeline"
)

// compileVideoFilters maps a clip's authored filter chain into the engine's
// video filter syntax, preserving list order exactly. The mapping is
// exhaustive over the filter union; a kind the engine cannot express on
// video fails the plan rather than being dropped.
func compileVideoFilters(clip *timeline.Clip) ([]string, error) {
	var chain []string
	for _, f := range clip.Filters {
		switch p := f.Params.(type) {
		case timeline.CropParams:
			chain = append(chain, fmt.Sprintf("crop=%d:%d:%d:%d", p.Width, p.Height, p.X, p.Y))
		case timeline.ScaleParams:
			chain = append(chain, fmt.Sprintf("scale=%d:%d", p.Width, p.Height))
		case timeline.RotateParams:
			chain = append(chain, fmt.Sprintf("rotate=%s", formatFloat(p.Degrees*math.Pi/180)))
		case timeline.SpeedParams:
			chain = append(chain, fmt.Sprintf("setpts=PTS/%s", formatFloat(p.Rate)))
		case timeline.BrightnessParams:
			chain = append(chain, fmt.Sprintf("eq=brightness=%s", formatFloat(p.Level)))
		case timeline.ContrastParams:
			chain = append(chain, fmt.Sprintf("eq=contrast=%s", formatFloat(p.Level)))
		case timeline.SaturationParams:
			chain = append(chain, fmt.Sprintf("eq=saturation=%s", formatFloat(p.Level)))
		case timeline.GrayscaleParams:
			chain = append(chain, "hue=s=0")
		case timeline.FadeParams:
			span := clip.Out - clip.In
			if p.In {
				chain = append(chain, fmt.Sprintf("fade=t=in:st=0:d=%s", formatFloat(p.Duration)))
			} else {
				st := span - p.Duration
				if st < 0 {
					st = 0
				}
				chain = append(chain, fmt.Sprintf("fade=t=out:st=%s:d=%s", formatFloat(st), formatFloat(p.Duration)))
			}
		case timeline.VolumeParams:
			return nil, &PlanError{
				Kind:   PlanUnsupportedFilter,
				ClipID: clip.ID,
				Detail: "volume filter cannot apply to a video-track clip",
			}
		default:
			return nil, &PlanError{
				Kind:   PlanUnsupportedFilter,
				ClipID: clip.ID,
				Detail: fmt.Sprintf("filter %s has no video compilation", f.Kind),
			}
		}
	}
	return chain, nil
}

// compileAudioFilters maps an audio clip's filter chain into audio filter
// syntax. Only speed, volume, and fade have audio semantics.
func compileAudioFilters(clip *timeline.Clip) ([]string, error) {
	var chain []string
	for _, f := range clip.Filters {
		switch p := f.Params.(type) {
		case timeline.VolumeParams:
			chain = append(chain, fmt.Sprintf("volume=%s", formatFloat(p.Gain)))
		case timeline.SpeedParams:
			chain = append(chain, atempoChain(p.Rate)...)
		case timeline.FadeParams:
			span := clip.Out - clip.In
			if p.In {
				chain = append(chain, fmt.Sprintf("afade=t=in:st=0:d=%s", formatFloat(p.Duration)))
			} else {
				st := span - p.Duration
				if st < 0 {
					st = 0
				}
				chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s", formatFloat(st), formatFloat(p.Duration)))
			}
		default:
			return nil, &PlanError{
				Kind:   PlanUnsupportedFilter,
				ClipID: clip.ID,
				Detail: fmt.Sprintf("filter %s has no audio compilation", f.Kind),
			}
		}
	}
	return chain, nil
}

// atempoChain expresses an arbitrary positive rate as a chain of atempo
// stages, each within the engine's supported [0.5, 2] range.
func atempoChain(rate float64) []string {
	var stages []string
	for rate > 2 {
		stages = append(stages, "atempo=2")
		rate /= 2
	}
	for rate < 0.5 {
		stages = append(stages, "atempo=0.5")
		rate /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%s", formatFloat(rate)))
	return stages
}

// xfadeName maps a transition kind to the engine's xfade transition names.
func xfadeName(kind timeline.TransitionKind) (string, bool) {
	switch kind {
	case timeline.TransitionCrossDissolve:
		return "fade", true
	case timeline.TransitionFadeBlack:
		return "fadeblack", true
	case timeline.TransitionWipeLeft:
		return "wipeleft", true
	case timeline.TransitionWipeRight:
		return "wiperight", true
	case timeline.TransitionSlideUp:
		return "slideup", true
	case timeline.TransitionSlideDown:
		return "slidedown", true
	}
	return "", false
}

// normalizeChain conforms a segment to the project canvas and frame rate so
// concatenation and cross-fades operate on uniform streams.
func normalizeChain(width, height int, frameRate float64) []string {
	return []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height),
		fmt.Sprintf("fps=%s", formatFloat(frameRate)),
		"format=yuv420p",
	}
}

// formatFloat renders a float without trailing zeros, keeping generated
// filter graphs stable and readable.
func formatFloat(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
