package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Component is one stored landing page.
type Component struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary describes a component without its content.
type Summary struct {
	ID            string    `json:"id"`
	Version       int       `json:"version"`
	ContentLength int       `json:"contentLength"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newID() string {
	return "comp_" + uuid.Must(uuid.NewV7()).String()
}

// Create stores content as a new component at version 1.
func (s *Store) Create(ctx context.Context, content string) (*Component, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	c := &Component{
		ID:        newID(),
		Content:   content,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO components (id, content, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Content, c.Version, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert component: %w", err)
	}

	s.log.Info("Component created", zap.String("id", c.ID), zap.Int("bytes", len(content)))
	return c, nil
}

// Get returns the component with id.
func (s *Store) Get(ctx context.Context, id string) (*Component, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, version, created_at, updated_at
		FROM components WHERE id = ?`, id)

	var (
		c                  Component
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.Content, &c.Version, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read component %s: %w", id, err)
	}
	c.CreatedAt = time.UnixMilli(created).UTC()
	c.UpdatedAt = time.UnixMilli(updated).UTC()
	return &c, nil
}

// Update replaces the content of id and returns the new version.
func (s *Store) Update(ctx context.Context, id, content string) (int, error) {
	now := s.now().UTC().Truncate(time.Millisecond)

	var version int
	err := s.db.QueryRowContext(ctx,
		`UPDATE components SET content = ?, version = version + 1, updated_at = ?
		WHERE id = ? RETURNING version`,
		content, now.UnixMilli(), id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to update component %s: %w", id, err)
	}

	s.log.Debug("Component updated", zap.String("id", id), zap.Int("version", version))
	return version, nil
}

// Delete removes id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete component %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete component %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.log.Info("Component deleted", zap.String("id", id))
	return nil
}

// List summarizes every component, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, length(content), created_at, updated_at
		FROM components ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	result := []Summary{}
	for rows.Next() {
		var (
			c                Summary
			created, updated int64
		)
		if err := rows.Scan(&c.ID, &c.Version, &c.ContentLength, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created).UTC()
		c.UpdatedAt = time.UnixMilli(updated).UTC()
		result = append(result, c)
	}
	return result, rows.Err()
}

// Persist saves an editor serialization over an existing component.
func (s *Store) Persist(ctx context.Context, id, content string) error {
	_, err := s.Update(ctx, id, content)
	return err
}
