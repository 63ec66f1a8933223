package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkforty/linkforty/internal/domain"
)

// InstallStore is the data access contract for install events. Installs
// are mutable only once, to attach the resolved deep-link payload.
type InstallStore interface {
	Create(ctx context.Context, install *domain.InstallEvent) error
	AttachDeepLink(ctx context.Context, id string, payload map[string]any) error
	GetByID(ctx context.Context, id string) (*domain.InstallEvent, error)
	GetLatestByFingerprint(ctx context.Context, hash string) (*domain.InstallEvent, error)
}

type pgxInstallStore struct {
	pool *pgxpool.Pool
}

// NewPgxInstallStore returns a pgx-backed InstallStore.
func NewPgxInstallStore(pool *pgxpool.Pool) InstallStore {
	return &pgxInstallStore{pool: pool}
}

const installColumns = `
	id, link_id, click_id, fingerprint_hash, confidence_score,
	installed_at, first_open_at, attribution_window_hours,
	signals, device_id, deep_link_payload, retrieved, created_at
`

func scanInstall(row pgx.Row) (*domain.InstallEvent, error) {
	var i domain.InstallEvent
	var signalsRaw, payloadRaw []byte

	err := row.Scan(
		&i.ID, &i.LinkID, &i.ClickID, &i.FingerprintHash, &i.ConfidenceScore,
		&i.InstalledAt, &i.FirstOpenAt, &i.AttributionWindowHours,
		&signalsRaw, &i.DeviceID, &payloadRaw, &i.Retrieved, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(signalsRaw) > 0 {
		_ = json.Unmarshal(signalsRaw, &i.Signals)
	}
	if len(payloadRaw) > 0 {
		_ = json.Unmarshal(payloadRaw, &i.DeepLinkPayload)
	}
	return &i, nil
}

func (s *pgxInstallStore) Create(ctx context.Context, install *domain.InstallEvent) error {
	signalsRaw, _ := json.Marshal(install.Signals)
	payloadRaw, _ := json.Marshal(install.DeepLinkPayload)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO install_events (
			id, link_id, click_id, fingerprint_hash, confidence_score,
			installed_at, first_open_at, attribution_window_hours,
			signals, device_id, deep_link_payload, retrieved
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at
	`, install.ID, install.LinkID, install.ClickID, install.FingerprintHash, install.ConfidenceScore,
		install.InstalledAt, install.FirstOpenAt, install.AttributionWindowHours,
		signalsRaw, install.DeviceID, payloadRaw, install.Retrieved)

	if err := row.Scan(&install.CreatedAt); err != nil {
		return fmt.Errorf("store: create install event: %w", err)
	}
	return nil
}

// AttachDeepLink is the one allowed mutation of an install event.
func (s *pgxInstallStore) AttachDeepLink(ctx context.Context, id string, payload map[string]any) error {
	payloadRaw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: marshal deep link payload: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE install_events SET deep_link_payload = $2, retrieved = true WHERE id = $1
	`, id, payloadRaw)
	if err != nil {
		return fmt.Errorf("store: attach deep link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInstallNotFound
	}
	return nil
}

func (s *pgxInstallStore) GetByID(ctx context.Context, id string) (*domain.InstallEvent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+installColumns+` FROM install_events WHERE id = $1`, id)
	install, err := scanInstall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstallNotFound
		}
		return nil, fmt.Errorf("store: get install by id: %w", err)
	}
	return install, nil
}

// GetLatestByFingerprint supports GET /api/sdk/v1/attribution/{fingerprint_hex}.
func (s *pgxInstallStore) GetLatestByFingerprint(ctx context.Context, hash string) (*domain.InstallEvent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+installColumns+` FROM install_events
		WHERE fingerprint_hash = $1
		ORDER BY installed_at DESC
		LIMIT 1
	`, hash)
	install, err := scanInstall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstallNotFound
		}
		return nil, fmt.Errorf("store: get install by fingerprint: %w", err)
	}
	return install, nil
}
