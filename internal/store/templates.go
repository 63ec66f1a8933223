package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkforty/linkforty/internal/domain"
)

// TemplateStore is the data access contract for templates.
type TemplateStore interface {
	Create(ctx context.Context, tmpl *domain.Template) error
	GetBySlug(ctx context.Context, slug string) (*domain.Template, error)
}

type pgxTemplateStore struct {
	pool *pgxpool.Pool
}

// NewPgxTemplateStore returns a pgx-backed TemplateStore.
func NewPgxTemplateStore(pool *pgxpool.Pool) TemplateStore {
	return &pgxTemplateStore{pool: pool}
}

func (s *pgxTemplateStore) Create(ctx context.Context, tmpl *domain.Template) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO templates (id, slug, name) VALUES ($1, $2, $3)
		RETURNING created_at
	`, tmpl.ID, tmpl.Slug, tmpl.Name)

	if err := row.Scan(&tmpl.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: create template: %w", errors.New("duplicate slug"))
		}
		return fmt.Errorf("store: create template: %w", err)
	}
	return nil
}

func (s *pgxTemplateStore) GetBySlug(ctx context.Context, slug string) (*domain.Template, error) {
	var t domain.Template
	err := s.pool.QueryRow(ctx, `SELECT id, slug, name, created_at FROM templates WHERE slug = $1`, slug).
		Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("store: get template by slug: %w", err)
	}
	return &t, nil
}
