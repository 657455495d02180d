package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SyncItemStatus is the lifecycle of one queued outbound write.
type SyncItemStatus string

const (
	SyncPending   SyncItemStatus = "pending"
	SyncCompleted SyncItemStatus = "completed"
	SyncFailed    SyncItemStatus = "failed"
)

// SyncItem is one durably queued submission to the authoritative store.
// While Status is pending, Attempts stays below MaxAttempts; once the retry
// budget is exhausted the item goes failed and stays there until an explicit
// manual reset.
type SyncItem struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Type        string         `gorm:"type:text;not null;default:'resource_submission'" json:"type"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"not null;default:3" json:"max_attempts"`
	Status      SyncItemStatus `gorm:"type:text;not null;default:'pending';index" json:"status"`
	LastError   string         `gorm:"type:text;not null;default:''" json:"last_error,omitempty"`

	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (SyncItem) TableName() string { return "sync_item" }
