package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkforty/linkforty/internal/domain"
	"gorm.io/gorm"
)

// gormWebhook is the GORM row shape for webhooks, kept separate from
// domain.Webhook so the domain package stays persistence-agnostic.
type gormWebhook struct {
	ID      string  `gorm:"primaryKey;size:36"`
	OwnerID *string `gorm:"index"`

	Name string
	URL  string
	Secret string

	EventsJSON string `gorm:"column:events"`

	IsActive    bool `gorm:"index"`
	MaxAttempts int
	TimeoutMS   int
	HeadersJSON string `gorm:"column:headers"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gormWebhook) TableName() string { return "webhooks" }

// WebhookStore is the data access contract for webhooks. The core reads
// webhooks constantly (event subscription fan-out) so the read side
// lives here, and the synchronous test-delivery endpoint loads its webhook
// through GetByID; the mutation methods exist for completeness.
type WebhookStore interface {
	Create(ctx context.Context, wh *domain.Webhook) error
	GetByID(ctx context.Context, id string) (*domain.Webhook, error)
	ListSubscribed(ctx context.Context, ownerID *string, evt domain.EventType) ([]domain.Webhook, error)
	RotateSecret(ctx context.Context, id, newSecret string) error
}

type gormWebhookStore struct {
	db *gorm.DB
}

// NewGormWebhookStore returns a gorm-backed WebhookStore.
func NewGormWebhookStore(db *gorm.DB) WebhookStore {
	return &gormWebhookStore{db: db}
}

func toGormWebhook(wh *domain.Webhook) (*gormWebhook, error) {
	eventsRaw, err := marshalEvents(wh.Events)
	if err != nil {
		return nil, err
	}
	headersRaw, err := marshalHeaders(wh.Headers)
	if err != nil {
		return nil, err
	}
	return &gormWebhook{
		ID: wh.ID, OwnerID: wh.OwnerID, Name: wh.Name, URL: wh.URL, Secret: wh.Secret,
		EventsJSON: eventsRaw, IsActive: wh.IsActive, MaxAttempts: wh.MaxAttempts,
		TimeoutMS: wh.TimeoutMS, HeadersJSON: headersRaw,
	}, nil
}

func fromGormWebhook(g *gormWebhook) domain.Webhook {
	return domain.Webhook{
		ID: g.ID, OwnerID: g.OwnerID, Name: g.Name, URL: g.URL, Secret: g.Secret,
		Events: unmarshalEvents(g.EventsJSON), IsActive: g.IsActive,
		MaxAttempts: g.MaxAttempts, TimeoutMS: g.TimeoutMS,
		Headers:   unmarshalHeaders(g.HeadersJSON),
		CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
	}
}

func (s *gormWebhookStore) Create(ctx context.Context, wh *domain.Webhook) error {
	row, err := toGormWebhook(wh)
	if err != nil {
		return fmt.Errorf("store: marshal webhook: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("store: create webhook: %w", err)
	}
	wh.CreatedAt, wh.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (s *gormWebhookStore) GetByID(ctx context.Context, id string) (*domain.Webhook, error) {
	var row gormWebhook
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("store: get webhook: %w", err)
	}
	wh := fromGormWebhook(&row)
	return &wh, nil
}

// ListSubscribed returns active webhooks subscribed to evt for ownerID.
// A nil ownerID is a no-op: it returns no rows rather than every owner's.
func (s *gormWebhookStore) ListSubscribed(ctx context.Context, ownerID *string, evt domain.EventType) ([]domain.Webhook, error) {
	if ownerID == nil {
		return nil, nil
	}

	var rows []gormWebhook
	if err := s.db.WithContext(ctx).
		Where("is_active AND owner_id = ?", *ownerID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list subscribed webhooks: %w", err)
	}

	out := make([]domain.Webhook, 0, len(rows))
	for _, r := range rows {
		wh := fromGormWebhook(&r)
		if wh.Subscribes(evt) {
			out = append(out, wh)
		}
	}
	return out, nil
}

func (s *gormWebhookStore) RotateSecret(ctx context.Context, id, newSecret string) error {
	tx := s.db.WithContext(ctx).Model(&gormWebhook{}).Where("id = ?", id).Update("secret", newSecret)
	if tx.Error != nil {
		return fmt.Errorf("store: rotate webhook secret: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrWebhookNotFound
	}
	return nil
}
