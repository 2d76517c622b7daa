package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

const fingerprintSize = 64 * 1024

// Asset is an ingested source file. Immutable once created; clips reference
// assets by ID and never copy them.
type Asset struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	Path          string    `json:"path"`
	Size          int64     `json:"size"`
	Fingerprint   string    `json:"fingerprint"`
	Duration      float64   `json:"duration"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	FrameRate     float64   `json:"frame_rate,omitempty"`
	VideoCodec    string    `json:"video_codec,omitempty"`
	AudioCodec    string    `json:"audio_codec,omitempty"`
	SampleRate    int       `json:"sample_rate,omitempty"`
	Channels      int       `json:"channels,omitempty"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasVideo reports whether the asset carries a video stream.
func (a *Asset) HasVideo() bool {
	return a.Width > 0 && a.Height > 0
}

// HasAudio reports whether the asset carries an audio stream.
func (a *Asset) HasAudio() bool {
	return a.SampleRate > 0
}

// Fingerprint hashes the first 64 KiB of the file together with its size.
// Cheap enough to run on ingest, strong enough to deduplicate re-ingests of
// identical content.
func Fingerprint(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	h := sha256.New()
	if _, err := io.CopyN(h, f, fingerprintSize); err != nil && err != io.EOF {
		return "", 0, err
	}
	fmt.Fprintf(h, ":%d", info.Size())

	return hex.EncodeToString(h.Sum(nil)), info.Size(), nil
}
