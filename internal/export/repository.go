package export

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	UpdateJobState(ctx context.Context, id string, state State, errMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress float64) error
	SetJobOutput(ctx context.Context, id, outputPath string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, project_id, state, progress, output_path, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, job *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.ProjectID, string(job.State), job.Progress, job.OutputPath, job.Error,
		job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM export_jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var j Job
		var state, createdAt, updatedAt string
		if err := rows.Scan(&j.ID, &j.ProjectID, &state, &j.Progress, &j.OutputPath, &j.Error,
			&createdAt, &updatedAt); err != nil {
			return nil, err
		}
		j.State = State(state)
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobState(ctx context.Context, id string, state State, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET state = ?, error = ?, updated_at = ? WHERE id = ?
	`, string(state), errMsg, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) SetJobOutput(ctx context.Context, id, outputPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET output_path = ?, updated_at = ? WHERE id = ?
	`, outputPath, time.Now().Format(time.RFC3339), id)
	return err
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var state, createdAt, updatedAt string
	err := row.Scan(&j.ID, &j.ProjectID, &state, &j.Progress, &j.OutputPath, &j.Error,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.State = State(state)
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}
