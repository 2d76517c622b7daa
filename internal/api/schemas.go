package api

import (
	"time"

	"github.com/framecut/framecut-agent/internal/export"
	"github.com/framecut/framecut-agent/internal/media"
	"github.com/framecut/framecut-agent/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State         string             `json:"state"`
	AssetsCount   int                `json:"assets_count"`
	ProjectsCount int                `json:"projects_count"`
	ActiveExport  *ExportJobResponse `json:"active_export,omitempty"`
	LastError     string             `json:"last_error,omitempty"`
}

type IngestRequest struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name,omitempty"`
}

type AssetResponse struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"display_name"`
	Path          string  `json:"path"`
	Size          int64   `json:"size"`
	Duration      float64 `json:"duration"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	FrameRate     float64 `json:"frame_rate,omitempty"`
	VideoCodec    string  `json:"video_codec,omitempty"`
	AudioCodec    string  `json:"audio_codec,omitempty"`
	SampleRate    int     `json:"sample_rate,omitempty"`
	Channels      int     `json:"channels,omitempty"`
	ThumbnailPath string  `json:"thumbnail_path,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

type CreateProjectRequest struct {
	Name      string            `json:"name"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	FrameRate float64           `json:"frame_rate"`
	Settings  timeline.Settings `json:"settings"`
}

type ProjectsResponse struct {
	Projects []ProjectSummaryResponse `json:"projects"`
}

type ProjectSummaryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type AddTrackRequest struct {
	Kind timeline.TrackKind `json:"kind"`
	Name string             `json:"name,omitempty"`
}

type AddClipRequest struct {
	TrackID  string            `json:"track_id"`
	Kind     timeline.ClipKind `json:"kind"`
	AssetID  string            `json:"asset_id,omitempty"`
	Name     string            `json:"name,omitempty"`
	Start    float64           `json:"start"`
	Duration float64           `json:"duration"`
	In       float64           `json:"in,omitempty"`
	Out      float64           `json:"out,omitempty"`
	Text     string            `json:"text,omitempty"`
}

// PatchClipRequest carries a combined move/trim/level edit; absent fields
// stay unchanged.
type PatchClipRequest struct {
	Start    *float64 `json:"start,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	In       *float64 `json:"in,omitempty"`
	Out      *float64 `json:"out,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
}

type PatchTrackRequest struct {
	Muted   *bool    `json:"muted,omitempty"`
	Locked  *bool    `json:"locked,omitempty"`
	Visible *bool    `json:"visible,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
}

type SplitClipRequest struct {
	At float64 `json:"at"`
}

type SplitClipResponse struct {
	Left  *timeline.Clip `json:"left"`
	Right *timeline.Clip `json:"right"`
}

type ReorderFiltersRequest struct {
	FilterIDs []string `json:"filter_ids"`
}

type ExportStartResponse struct {
	JobID string `json:"job_id"`
}

type ExportJobResponse struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	State      string  `json:"state"`
	Progress   float64 `json:"progress"`
	OutputPath string  `json:"output_path,omitempty"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type ExportJobsResponse struct {
	Jobs []ExportJobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func AssetToResponse(a *media.Asset) AssetResponse {
	return AssetResponse{
		ID:            a.ID,
		DisplayName:   a.DisplayName,
		Path:          a.Path,
		Size:          a.Size,
		Duration:      a.Duration,
		Width:         a.Width,
		Height:        a.Height,
		FrameRate:     a.FrameRate,
		VideoCodec:    a.VideoCodec,
		AudioCodec:    a.AudioCodec,
		SampleRate:    a.SampleRate,
		Channels:      a.Channels,
		ThumbnailPath: a.ThumbnailPath,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

func ExportJobToResponse(j *export.Job) ExportJobResponse {
	return ExportJobResponse{
		ID:         j.ID,
		ProjectID:  j.ProjectID,
		State:      string(j.State),
		Progress:   j.Progress,
		OutputPath: j.OutputPath,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}
