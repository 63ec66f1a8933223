// Package store implements the core's Postgres access layer: pgx-backed
// raw SQL for the latency-critical hot path (link lookup, click/
// fingerprint/install inserts) and gorm-backed helpers for the
// CRUD-adjacent surface (webhooks, delivery logs) that the core still
// needs read access to (e.g. loading a webhook's secret to sign a
// delivery).
package store

import "errors"

// Sentinel errors surfaced by store operations, unwrapped with errors.Is
// at each component's call site.
var (
	ErrLinkNotFound     = errors.New("store: link not found")
	ErrTemplateNotFound = errors.New("store: template not found")
	ErrInstallNotFound  = errors.New("store: install not found")
	ErrWebhookNotFound  = errors.New("store: webhook not found")
	ErrDuplicateCode    = errors.New("store: duplicate short code")
)

// GormModels returns the gorm row types that need AutoMigrate, kept here
// since gormWebhook/gormDeliveryLog are package-private to this package.
func GormModels() []interface{} {
	return []interface{}{&gormWebhook{}, &gormDeliveryLog{}}
}
