package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// Notification is a persisted per-customer message produced by the effects
// worker from outbox events.
type Notification struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	Kind       enums.NotificationKind `gorm:"column:kind;type:text;not null"`
	Title      string                 `gorm:"column:title;not null"`
	Body       string                 `gorm:"column:body;not null"`
	ReadAt     *time.Time             `gorm:"column:read_at"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}
