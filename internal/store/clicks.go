package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkforty/linkforty/internal/domain"
)

// ClickStore is the append-only data access contract for click events:
// click_events rows are immutable once inserted.
type ClickStore interface {
	Create(ctx context.Context, click *domain.ClickEvent) error
}

type pgxClickStore struct {
	pool *pgxpool.Pool
}

// NewPgxClickStore returns a pgx-backed ClickStore.
func NewPgxClickStore(pool *pgxpool.Pool) ClickStore {
	return &pgxClickStore{pool: pool}
}

func (s *pgxClickStore) Create(ctx context.Context, c *domain.ClickEvent) error {
	utmRaw, _ := json.Marshal(c.UTM)
	geoRaw, _ := json.Marshal(c.Geo)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO click_events (
			id, link_id, clicked_at, ip, user_agent, device_type, platform,
			geo, utm, referrer
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, c.ID, c.LinkID, c.ClickedAt, c.IP, c.UserAgent, c.Device, c.Platform, geoRaw, utmRaw, c.Referrer)
	if err != nil {
		return fmt.Errorf("store: create click event: %w", err)
	}
	return nil
}
