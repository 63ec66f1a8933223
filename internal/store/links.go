package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linkforty/linkforty/internal/cache"
	"github.com/linkforty/linkforty/internal/domain"
)

// LinkStore is the data access contract for links.
type LinkStore interface {
	Create(ctx context.Context, link *domain.Link) error
	GetByCode(ctx context.Context, code string) (*domain.Link, error)
	GetBySlugAndCode(ctx context.Context, slug, code string) (*domain.Link, error)
	GetByID(ctx context.Context, id string) (*domain.Link, error)
	Update(ctx context.Context, link *domain.Link) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]domain.Link, error)
}

type pgxLinkStore struct {
	pool  *pgxpool.Pool
	cache cache.LinkCache
}

// NewPgxLinkStore returns a pgx-backed LinkStore for the hot path. linkCache
// may be nil, in which case Update/Delete skip invalidation entirely (the
// cache simply serves stale entries until their TTL expires).
func NewPgxLinkStore(pool *pgxpool.Pool, linkCache cache.LinkCache) LinkStore {
	return &pgxLinkStore{pool: pool, cache: linkCache}
}

const linkColumns = `
	id, short_code, template_id, owner_id, origin_url,
	ios_app_store_url, android_play_url, web_fallback_url,
	ios_universal_link, android_app_link,
	uri_scheme, deep_link_path, deep_link_params,
	og_title, og_description, og_image_url,
	utm, targeting,
	attribution_window_hours, is_active, expires_at,
	created_at, updated_at
`

func scanLink(row pgx.Row) (*domain.Link, error) {
	var l domain.Link
	var utmRaw, targetingRaw, paramsRaw []byte

	err := row.Scan(
		&l.ID, &l.ShortCode, &l.TemplateID, &l.OwnerID, &l.OriginURL,
		&l.IOSAppStoreURL, &l.AndroidPlayURL, &l.WebFallbackURL,
		&l.IOSUniversalLink, &l.AndroidAppLink,
		&l.URIScheme, &l.DeepLinkPath, &paramsRaw,
		&l.OGTitle, &l.OGDescription, &l.OGImageURL,
		&utmRaw, &targetingRaw,
		&l.AttributionWindowHours, &l.IsActive, &l.ExpiresAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(utmRaw) > 0 {
		_ = json.Unmarshal(utmRaw, &l.UTM)
	}
	if len(targetingRaw) > 0 {
		_ = json.Unmarshal(targetingRaw, &l.Targeting)
	}
	if len(paramsRaw) > 0 {
		_ = json.Unmarshal(paramsRaw, &l.DeepLinkParams)
	}

	return &l, nil
}

// GetByCode returns the link, filtered by active/non-expired at the store
// layer ("is_active AND (expires_at IS NULL OR expires_at > now())").
// Callers that need the raw record regardless of lifecycle state should
// use GetByID.
func (s *pgxLinkStore) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE short_code = $1 AND is_active AND (expires_at IS NULL OR expires_at > now())
	`, code)

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("store: get link by code: %w", err)
	}
	return link, nil
}

// GetBySlugAndCode validates that the link's template matches the given
// slug.
func (s *pgxLinkStore) GetBySlugAndCode(ctx context.Context, slug, code string) (*domain.Link, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE short_code = $1
		  AND template_id = (SELECT id FROM templates WHERE slug = $2)
		  AND is_active AND (expires_at IS NULL OR expires_at > now())
	`, code, slug)

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("store: get link by slug+code: %w", err)
	}
	return link, nil
}

// GetByID loads a link regardless of active/expiry state, used by
// management-adjacent flows (e.g. cache invalidation, webhook payload
// composition) that need the raw record.
func (s *pgxLinkStore) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("store: get link by id: %w", err)
	}
	return link, nil
}

// Create inserts a link in a single attempt. A unique violation on the
// short code returns ErrDuplicateCode; Create does not retry with a new
// code. A zero AttributionWindowHours is stored as
// domain.DefaultAttributionWindowHours.
func (s *pgxLinkStore) Create(ctx context.Context, link *domain.Link) error {
	if link.AttributionWindowHours == 0 {
		link.AttributionWindowHours = domain.DefaultAttributionWindowHours
	}
	utmRaw, _ := json.Marshal(link.UTM)
	targetingRaw, _ := json.Marshal(link.Targeting)
	paramsRaw, _ := json.Marshal(link.DeepLinkParams)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO links (
			id, short_code, template_id, owner_id, origin_url,
			ios_app_store_url, android_play_url, web_fallback_url,
			ios_universal_link, android_app_link,
			uri_scheme, deep_link_path, deep_link_params,
			og_title, og_description, og_image_url,
			utm, targeting,
			attribution_window_hours, is_active, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING created_at, updated_at
	`,
		link.ID, link.ShortCode, link.TemplateID, link.OwnerID, link.OriginURL,
		link.IOSAppStoreURL, link.AndroidPlayURL, link.WebFallbackURL,
		link.IOSUniversalLink, link.AndroidAppLink,
		link.URIScheme, link.DeepLinkPath, paramsRaw,
		link.OGTitle, link.OGDescription, link.OGImageURL,
		utmRaw, targetingRaw,
		link.AttributionWindowHours, link.IsActive, link.ExpiresAt,
	)

	if err := row.Scan(&link.CreatedAt, &link.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("store: create link: %w", err)
	}
	return nil
}

// Update persists mutable link fields. The core's link-update path also
// invalidates the cache entry for this link so stale reads never survive
// a successful update; see internal/cache.
func (s *pgxLinkStore) Update(ctx context.Context, link *domain.Link) error {
	utmRaw, _ := json.Marshal(link.UTM)
	targetingRaw, _ := json.Marshal(link.Targeting)
	paramsRaw, _ := json.Marshal(link.DeepLinkParams)

	tag, err := s.pool.Exec(ctx, `
		UPDATE links SET
			origin_url = $2, ios_app_store_url = $3, android_play_url = $4,
			web_fallback_url = $5, ios_universal_link = $6, android_app_link = $7,
			uri_scheme = $8, deep_link_path = $9, deep_link_params = $10,
			og_title = $11, og_description = $12, og_image_url = $13,
			utm = $14, targeting = $15,
			attribution_window_hours = $16, is_active = $17, expires_at = $18,
			updated_at = now()
		WHERE id = $1
	`,
		link.ID, link.OriginURL, link.IOSAppStoreURL, link.AndroidPlayURL,
		link.WebFallbackURL, link.IOSUniversalLink, link.AndroidAppLink,
		link.URIScheme, link.DeepLinkPath, paramsRaw,
		link.OGTitle, link.OGDescription, link.OGImageURL,
		utmRaw, targetingRaw,
		link.AttributionWindowHours, link.IsActive, link.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("store: update link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	s.invalidate(ctx, link.ShortCode, link.TemplateID)
	return nil
}

func (s *pgxLinkStore) Delete(ctx context.Context, id string) error {
	// Fetched before the delete so the cache keys (which are keyed by
	// short code + template slug, not id) can still be invalidated
	// afterward.
	link, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	s.invalidate(ctx, link.ShortCode, link.TemplateID)
	return nil
}

// invalidate clears the cache entries for a link after a successful
// mutation. Cache failures here are logged by the LinkCache implementation
// itself and never surfaced to the caller, consistent with this package's
// treatment of cache errors as non-fatal.
func (s *pgxLinkStore) invalidate(ctx context.Context, shortCode string, templateID *string) {
	if s.cache == nil {
		return
	}

	slug := ""
	if templateID != nil {
		row := s.pool.QueryRow(ctx, `SELECT slug FROM templates WHERE id = $1`, *templateID)
		_ = row.Scan(&slug)
	}

	s.cache.Invalidate(ctx, shortCode, slug)
}

func (s *pgxLinkStore) List(ctx context.Context, limit, offset int) ([]domain.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+linkColumns+` FROM links ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list links: %w", err)
	}
	defer rows.Close()

	var out []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list links: scan: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
