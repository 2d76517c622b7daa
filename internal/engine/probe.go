package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// probeOutput matches the probe binary's JSON structure.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, &Error{Op: "probe", Err: fmt.Errorf("cannot parse probe output: %w", err)}
	}

	result := &ProbeResult{}

	if dur, err := strconv.ParseFloat(po.Format.Duration, 64); err == nil {
		result.Duration = dur
	}

	for _, stream := range po.Streams {
		switch stream.CodecType {
		case "video":
			result.HasVideo = true
			result.Width = stream.Width
			result.Height = stream.Height
			result.VideoCodec = stream.CodecName
			if stream.RFrameRate != "" {
				result.FrameRate = parseFrameRate(stream.RFrameRate)
			}
		case "audio":
			result.HasAudio = true
			result.AudioCodec = stream.CodecName
			result.Channels = stream.Channels
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				result.SampleRate = sr
			}
		}
	}

	return result, nil
}

// parseFrameRate converts a rational rate string like "30000/1001" to a float.
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 1 {
		v, _ := strconv.ParseFloat(parts[0], 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
