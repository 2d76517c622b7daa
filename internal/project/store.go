// Package project persists timeline documents and mediates concurrent
// access to them. Each open project carries its own mutex; callers mutate
// through Update so edits serialize per project without blocking others.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/framecut/framecut-agent/internal/timeline"
)

var ErrNotFound = errors.New("project not found")

type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	project *timeline.Project
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		open:   make(map[string]*entry),
	}
}

// Create persists a new project document and places it in the cache.
func (s *Store) Create(ctx context.Context, name string, width, height int, frameRate float64, settings timeline.Settings) (*timeline.Project, error) {
	p := timeline.NewProject(name, width, height, frameRate, settings)
	doc, err := timeline.Marshal(p)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, string(doc),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	s.mu.Lock()
	s.open[p.ID] = &entry{project: p}
	s.mu.Unlock()

	s.logger.Info("project created", "project_id", p.ID, "name", name)
	return timeline.Snapshot(p)
}

// Get returns a point-in-time copy of the document, loading it from the
// database on first access. The copy is taken under the entry lock, so
// callers may read it while edits continue. Mutate only through Update.
func (s *Store) Get(ctx context.Context, id string) (*timeline.Project, error) {
	e, err := s.entryFor(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return timeline.Snapshot(e.project)
}

// Update applies fn to the document under its lock and persists the result.
// A failed fn leaves both the cache and the stored document untouched. The
// returned project is a copy taken before the lock is released.
func (s *Store) Update(ctx context.Context, id string, fn func(*timeline.Project) error) (*timeline.Project, error) {
	e, err := s.entryFor(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e.project); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		return nil, err
	}
	return timeline.Snapshot(e.project)
}

// Snapshot returns a deep copy of the document, safe to hand to an export
// job while editing continues.
func (s *Store) Snapshot(ctx context.Context, id string) (*timeline.Project, error) {
	e, err := s.entryFor(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return timeline.Snapshot(e.project)
}

// Summary is the listing row for a project.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) List(ctx context.Context) ([]*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		var sum Summary
		var createdAt, updatedAt string
		if err := rows.Scan(&sum.ID, &sum.Name, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	s.mu.Lock()
	delete(s.open, id)
	s.mu.Unlock()

	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// ProjectsReferencing reports which projects have a clip using the asset.
// Satisfies the media registry's reference checker.
func (s *Store) ProjectsReferencing(ctx context.Context, assetID string) ([]string, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, sum := range summaries {
		p, err := s.Get(ctx, sum.ID)
		if err != nil {
			return nil, err
		}
		if p.ReferencesAsset(assetID) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (s *Store) entryFor(ctx context.Context, id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.open[id]; ok {
		return e, nil
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	e := &entry{project: p}
	s.open[id] = e
	return e, nil
}

func (s *Store) load(ctx context.Context, id string) (*timeline.Project, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM projects WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p, err := timeline.Unmarshal([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) persist(ctx context.Context, p *timeline.Project) error {
	doc, err := timeline.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, document = ?, updated_at = ? WHERE id = ?
	`, p.Name, string(doc), p.UpdatedAt.Format(time.RFC3339), p.ID)
	return err
}
