package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate provisions the hot-path tables queried directly by the pgx
// stores in this package. The gorm-backed webhook/delivery tables are
// migrated separately through GormModels + postgres.AutoMigrate; these
// tables never go through gorm since nothing here needs its ORM
// features, only raw SQL on the hot path.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS links (
	id                       TEXT PRIMARY KEY,
	short_code               TEXT NOT NULL UNIQUE,
	template_id              TEXT REFERENCES templates(id),
	owner_id                 TEXT,
	origin_url               TEXT NOT NULL,
	ios_app_store_url        TEXT,
	android_play_url         TEXT,
	web_fallback_url         TEXT,
	ios_universal_link       TEXT,
	android_app_link         TEXT,
	uri_scheme               TEXT,
	deep_link_path           TEXT,
	deep_link_params         JSONB,
	og_title                 TEXT,
	og_description           TEXT,
	og_image_url             TEXT,
	utm                      JSONB,
	targeting                JSONB,
	attribution_window_hours INTEGER NOT NULL DEFAULT 168,
	is_active                BOOLEAN NOT NULL DEFAULT true,
	expires_at               TIMESTAMPTZ,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id);

CREATE TABLE IF NOT EXISTS click_events (
	id          TEXT PRIMARY KEY,
	link_id     TEXT NOT NULL REFERENCES links(id),
	clicked_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	ip          TEXT,
	user_agent  TEXT,
	device_type TEXT,
	platform    TEXT,
	geo         JSONB,
	utm         JSONB,
	referrer    TEXT
);

CREATE INDEX IF NOT EXISTS idx_click_events_link_id ON click_events(link_id);
CREATE INDEX IF NOT EXISTS idx_click_events_clicked_at ON click_events(clicked_at);

CREATE TABLE IF NOT EXISTS device_fingerprints (
	id                TEXT PRIMARY KEY,
	click_id          TEXT NOT NULL UNIQUE REFERENCES click_events(id),
	fingerprint_hash  TEXT NOT NULL,
	ip                TEXT,
	user_agent        TEXT,
	timezone          TEXT,
	language          TEXT,
	screen_width      INTEGER,
	screen_height     INTEGER,
	platform_name     TEXT,
	platform_version  TEXT
);

CREATE INDEX IF NOT EXISTS idx_device_fingerprints_hash ON device_fingerprints(fingerprint_hash);

CREATE TABLE IF NOT EXISTS install_events (
	id                       TEXT PRIMARY KEY,
	link_id                  TEXT REFERENCES links(id),
	click_id                 TEXT REFERENCES click_events(id),
	fingerprint_hash         TEXT NOT NULL,
	confidence_score         INTEGER,
	installed_at             TIMESTAMPTZ NOT NULL,
	first_open_at            TIMESTAMPTZ,
	attribution_window_hours INTEGER,
	signals                  JSONB,
	device_id                TEXT,
	deep_link_payload        JSONB,
	retrieved                BOOLEAN NOT NULL DEFAULT false,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_install_events_fingerprint ON install_events(fingerprint_hash);

CREATE TABLE IF NOT EXISTS in_app_events (
	id          TEXT PRIMARY KEY,
	install_id  TEXT NOT NULL REFERENCES install_events(id),
	event_name  TEXT NOT NULL,
	properties  JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_in_app_events_install_id ON in_app_events(install_id);
`
