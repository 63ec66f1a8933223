package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkforty/linkforty/internal/domain"
)

// InAppEventStore is the append-only data access contract for in-app
// (conversion) events, children of an install event.
type InAppEventStore interface {
	Create(ctx context.Context, event *domain.InAppEvent) error
}

type pgxInAppEventStore struct {
	pool *pgxpool.Pool
}

// NewPgxInAppEventStore returns a pgx-backed InAppEventStore.
func NewPgxInAppEventStore(pool *pgxpool.Pool) InAppEventStore {
	return &pgxInAppEventStore{pool: pool}
}

func (s *pgxInAppEventStore) Create(ctx context.Context, e *domain.InAppEvent) error {
	propsRaw, _ := json.Marshal(e.Properties)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO in_app_events (id, install_id, event_name, properties, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.InstallID, e.EventName, propsRaw, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("store: create in-app event: %w", err)
	}
	return nil
}
