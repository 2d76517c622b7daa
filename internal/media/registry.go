// Package media owns the asset registry: ingesting source files, extracting
// intrinsic metadata through the codec engine, and caching it for the
// compositor and planner.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/framecut/framecut-agent/internal/engine"
)

// Prober is the slice of the engine adapter the registry needs.
type Prober interface {
	Probe(ctx context.Context, path string) (*engine.ProbeResult, error)
	Thumbnail(ctx context.Context, path, outPath string, offset float64) error
}

// ReferenceChecker reports which projects reference an asset. Satisfied by
// the project store; injected to keep deletion referentially safe without a
// package cycle.
type ReferenceChecker interface {
	ProjectsReferencing(ctx context.Context, assetID string) ([]string, error)
}

type Registry struct {
	repo          Repository
	prober        Prober
	refs          ReferenceChecker
	thumbnailsDir string
	logger        *slog.Logger
}

func NewRegistry(repo Repository, prober Prober, thumbnailsDir string, logger *slog.Logger) *Registry {
	return &Registry{
		repo:          repo,
		prober:        prober,
		thumbnailsDir: thumbnailsDir,
		logger:        logger,
	}
}

// SetReferenceChecker wires the project store in after construction; the
// store itself needs the registry to resolve assets.
func (r *Registry) SetReferenceChecker(refs ReferenceChecker) {
	r.refs = refs
}

// Ingest probes a source file and registers it as an immutable asset.
// Re-ingesting identical content returns the existing asset.
func (r *Registry) Ingest(ctx context.Context, path, displayName string) (*Asset, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a media file")
	}

	fp, size, err := Fingerprint(absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot fingerprint file: %w", err)
	}

	if existing, err := r.repo.GetAssetByFingerprint(ctx, fp); err != nil {
		return nil, err
	} else if existing != nil {
		if r.logger != nil {
			r.logger.Info("ingest deduplicated", "asset_id", existing.ID, "path", absPath)
		}
		return existing, nil
	}

	probe, err := r.prober.Probe(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !probe.HasVideo && !probe.HasAudio {
		return nil, fmt.Errorf("%w: no decodable streams", ErrUnsupportedFormat)
	}
	if probe.Duration <= 0 {
		return nil, fmt.Errorf("%w: probing produced no valid duration", ErrCorruptFile)
	}

	if displayName == "" {
		displayName = filepath.Base(absPath)
	}

	asset := &Asset{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Path:        absPath,
		Size:        size,
		Fingerprint: fp,
		Duration:    probe.Duration,
		Width:       probe.Width,
		Height:      probe.Height,
		FrameRate:   probe.FrameRate,
		VideoCodec:  probe.VideoCodec,
		AudioCodec:  probe.AudioCodec,
		SampleRate:  probe.SampleRate,
		Channels:    probe.Channels,
		CreatedAt:   time.Now(),
	}

	if probe.HasVideo && r.thumbnailsDir != "" {
		thumbPath := filepath.Join(r.thumbnailsDir, asset.ID+".jpg")
		// Best effort; an asset without a thumbnail is still usable.
		if err := r.prober.Thumbnail(ctx, absPath, thumbPath, thumbnailOffset(probe.Duration)); err != nil {
			if r.logger != nil {
				r.logger.Warn("thumbnail generation failed", "asset_id", asset.ID, "error", err)
			}
		} else {
			asset.ThumbnailPath = thumbPath
		}
	}

	if err := r.repo.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}

	if r.logger != nil {
		r.logger.Info("asset ingested",
			"asset_id", asset.ID,
			"duration", asset.Duration,
			"width", asset.Width,
			"height", asset.Height,
		)
	}
	return asset, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*Asset, error) {
	asset, err := r.repo.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return asset, nil
}

func (r *Registry) List(ctx context.Context) ([]*Asset, error) {
	return r.repo.ListAssets(ctx)
}

// Delete removes an asset. Rejected with InUseError while any project still
// references it; callers must detach referencing clips first.
func (r *Registry) Delete(ctx context.Context, id string) error {
	asset, err := r.repo.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if r.refs != nil {
		projectIDs, err := r.refs.ProjectsReferencing(ctx, id)
		if err != nil {
			return err
		}
		if len(projectIDs) > 0 {
			return &InUseError{AssetID: id, ProjectIDs: projectIDs}
		}
	}

	if asset.ThumbnailPath != "" {
		os.Remove(asset.ThumbnailPath)
	}
	return r.repo.DeleteAsset(ctx, id)
}

// thumbnailOffset picks a representative frame time, avoiding black lead-in
// on very short files.
func thumbnailOffset(duration float64) float64 {
	if duration < 2 {
		return 0
	}
	if duration < 20 {
		return 1
	}
	return duration * 0.1
}
