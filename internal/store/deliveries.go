package store

import (
	"context"
	"fmt"
	"time"

	"github.com/linkforty/linkforty/internal/domain"
	"gorm.io/gorm"
)

// gormDeliveryLog is the GORM row shape for webhook_deliveries, the
// structured per-attempt delivery history.
type gormDeliveryLog struct {
	ID        string `gorm:"primaryKey;size:36"`
	WebhookID string `gorm:"index"`
	EventID   string `gorm:"index"`
	EventType string

	Attempt        int
	Success        bool
	ResponseStatus int
	ResponseBody   string
	Error          string

	AttemptedAt time.Time `gorm:"index"`
}

func (gormDeliveryLog) TableName() string { return "webhook_deliveries" }

// DeliveryLogStore persists webhook delivery attempt outcomes.
type DeliveryLogStore interface {
	Create(ctx context.Context, log *domain.DeliveryLog) error
}

type gormDeliveryLogStore struct {
	db *gorm.DB
}

// NewGormDeliveryLogStore returns a gorm-backed DeliveryLogStore.
func NewGormDeliveryLogStore(db *gorm.DB) DeliveryLogStore {
	return &gormDeliveryLogStore{db: db}
}

func (s *gormDeliveryLogStore) Create(ctx context.Context, log *domain.DeliveryLog) error {
	row := gormDeliveryLog{
		ID: log.ID, WebhookID: log.WebhookID, EventID: log.EventID, EventType: string(log.EventType),
		Attempt: log.Attempt, Success: log.Success, ResponseStatus: log.ResponseStatus,
		ResponseBody: log.ResponseBody, Error: log.Error, AttemptedAt: log.AttemptedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: create delivery log: %w", err)
	}
	return nil
}
