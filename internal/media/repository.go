package media

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id string) (*Asset, error)
	GetAssetByFingerprint(ctx context.Context, fingerprint string) (*Asset, error)
	ListAssets(ctx context.Context) ([]*Asset, error)
	DeleteAsset(ctx context.Context, id string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const assetColumns = `id, display_name, path, size, fingerprint, duration,
	width, height, frame_rate, video_codec, audio_codec, sample_rate, channels,
	thumbnail_path, created_at`

func (r *SQLiteRepository) CreateAsset(ctx context.Context, a *Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.DisplayName, a.Path, a.Size, a.Fingerprint, a.Duration,
		a.Width, a.Height, a.FrameRate, a.VideoCodec, a.AudioCodec, a.SampleRate, a.Channels,
		a.ThumbnailPath, a.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetAsset(ctx context.Context, id string) (*Asset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	return scanAsset(row)
}

func (r *SQLiteRepository) GetAssetByFingerprint(ctx context.Context, fingerprint string) (*Asset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE fingerprint = ?`, fingerprint)
	return scanAsset(row)
}

func (r *SQLiteRepository) ListAssets(ctx context.Context) ([]*Asset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		var a Asset
		var createdAt string
		if err := rows.Scan(&a.ID, &a.DisplayName, &a.Path, &a.Size, &a.Fingerprint, &a.Duration,
			&a.Width, &a.Height, &a.FrameRate, &a.VideoCodec, &a.AudioCodec, &a.SampleRate, &a.Channels,
			&a.ThumbnailPath, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	return err
}

func scanAsset(row *sql.Row) (*Asset, error) {
	var a Asset
	var createdAt string
	err := row.Scan(&a.ID, &a.DisplayName, &a.Path, &a.Size, &a.Fingerprint, &a.Duration,
		&a.Width, &a.Height, &a.FrameRate, &a.VideoCodec, &a.AudioCodec, &a.SampleRate, &a.Channels,
		&a.ThumbnailPath, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}
