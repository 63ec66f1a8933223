package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkforty/linkforty/internal/domain"
)

// FingerprintStore is the append-only data access contract for device
// fingerprints, 1:1 with a click event.
type FingerprintStore interface {
	Create(ctx context.Context, fp *domain.DeviceFingerprint) error
	RecentCandidates(ctx context.Context) ([]CandidateClick, error)
}

type pgxFingerprintStore struct {
	pool *pgxpool.Pool
}

// NewPgxFingerprintStore returns a pgx-backed FingerprintStore.
func NewPgxFingerprintStore(pool *pgxpool.Pool) FingerprintStore {
	return &pgxFingerprintStore{pool: pool}
}

func (s *pgxFingerprintStore) Create(ctx context.Context, fp *domain.DeviceFingerprint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO device_fingerprints (
			id, click_id, fingerprint_hash, ip, user_agent, timezone, language,
			screen_width, screen_height, platform_name, platform_version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, fp.ID, fp.ClickID, fp.Hash, fp.IP, fp.UserAgent, fp.Timezone, fp.Language,
		fp.ScreenWidth, fp.ScreenHeight, fp.PlatformName, fp.PlatformVersion)
	if err != nil {
		return fmt.Errorf("store: create device fingerprint: %w", err)
	}
	return nil
}

// CandidateClick is one row of the join of click_events + device_fingerprints
// + links, used by the attribution engine's candidate query.
type CandidateClick struct {
	ClickID               string
	LinkID                string
	ClickedAt             time.Time
	AttributionWindowHours int
	Signals               domain.FingerprintSignals
}

// RecentCandidates returns recent click_events joined to device_fingerprints
// and links, ordered by click time descending, limited to 1000 rows, and
// bounded by the largest allowed attribution window — the exact candidate
// set the attribution engine scores against.
func (s *pgxFingerprintStore) RecentCandidates(ctx context.Context) ([]CandidateClick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.link_id, c.clicked_at, l.attribution_window_hours,
		       f.ip, f.user_agent, f.timezone, f.language, f.screen_width, f.screen_height,
		       f.platform_name, f.platform_version
		FROM click_events c
		JOIN device_fingerprints f ON f.click_id = c.id
		JOIN links l ON l.id = c.link_id
		WHERE c.clicked_at > now() - ($1 || ' hours')::interval
		ORDER BY c.clicked_at DESC
		LIMIT 1000
	`, domain.MaxAttributionWindowHours)
	if err != nil {
		return nil, fmt.Errorf("store: recent candidates: %w", err)
	}
	defer rows.Close()

	var out []CandidateClick
	for rows.Next() {
		var c CandidateClick
		if err := rows.Scan(
			&c.ClickID, &c.LinkID, &c.ClickedAt, &c.AttributionWindowHours,
			&c.Signals.IP, &c.Signals.UserAgent, &c.Signals.Timezone, &c.Signals.Language,
			&c.Signals.ScreenWidth, &c.Signals.ScreenHeight,
			&c.Signals.PlatformName, &c.Signals.PlatformVersion,
		); err != nil {
			return nil, fmt.Errorf("store: recent candidates: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
