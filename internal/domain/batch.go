package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BatchStatus is the workflow position of one herb batch.
type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusProcessing BatchStatus = "processing"
	StatusProcessed  BatchStatus = "processed"
	StatusTesting    BatchStatus = "testing"
	StatusTested     BatchStatus = "tested"
	StatusApproved   BatchStatus = "approved"
	StatusRejected   BatchStatus = "rejected"
	StatusCompleted  BatchStatus = "completed"
)

// StatusChange is one append-only entry of a batch's status history.
type StatusChange struct {
	Status    BatchStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	ActorRole Role        `json:"actorRole"`
	Notes     string      `json:"notes,omitempty"`
}

// Batch is the workflow record for one traceable unit of herb material.
// StatusHistory is monotonically non-decreasing in time and its last entry
// always matches Status.
type Batch struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	QRCode        string         `gorm:"type:text;not null;uniqueIndex" json:"qr_code"`
	Species       string         `gorm:"type:text;not null;default:''" json:"species"`
	Status        BatchStatus    `gorm:"type:text;not null;default:'pending';index" json:"status"`
	StatusHistory datatypes.JSON `gorm:"not null;default:'[]'" json:"status_history"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Batch) TableName() string { return "batch" }

// NewBatch opens a workflow record at pending with a seeded history entry.
func NewBatch(qrCode, species string, actor Role, now time.Time) (*Batch, error) {
	b := &Batch{
		ID:        uuid.New(),
		QRCode:    qrCode,
		Species:   species,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.SetHistory([]StatusChange{{
		Status:    StatusPending,
		Timestamp: now,
		ActorRole: actor,
		Notes:     "batch created",
	}}); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Batch) History() ([]StatusChange, error) {
	if len(b.StatusHistory) == 0 {
		return []StatusChange{}, nil
	}
	var out []StatusChange
	if err := json.Unmarshal(b.StatusHistory, &out); err != nil {
		return nil, fmt.Errorf("decode status history: %w", err)
	}
	return out, nil
}

func (b *Batch) SetHistory(history []StatusChange) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode status history: %w", err)
	}
	b.StatusHistory = datatypes.JSON(raw)
	return nil
}

// AppendStatus records a transition. History timestamps never move backwards:
// an earlier clock reading is clamped to the previous entry's time.
func (b *Batch) AppendStatus(change StatusChange) error {
	history, err := b.History()
	if err != nil {
		return err
	}
	if n := len(history); n > 0 && change.Timestamp.Before(history[n-1].Timestamp) {
		change.Timestamp = history[n-1].Timestamp
	}
	history = append(history, change)
	if err := b.SetHistory(history); err != nil {
		return err
	}
	b.Status = change.Status
	b.UpdatedAt = change.Timestamp
	return nil
}

// BatchResource is the stored row for one immutable Resource, keeping the
// kind tag and the canonical JSON payload. Seq is the table's integer key:
// a monotonic insertion sequence that breaks timestamp ties deterministically
// even when independent clients have skewed clocks.
type BatchResource struct {
	Seq         int64          `gorm:"primaryKey;autoIncrement" json:"seq"`
	ResourceID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"resource_id"`
	BatchID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"batch_id"`
	Kind        ResourceKind   `gorm:"type:text;not null" json:"kind"`
	PerformedAt time.Time      `gorm:"not null;index" json:"performed_at"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (BatchResource) TableName() string { return "batch_resource" }

// Decode rebuilds the tagged variant stored in Payload.
func (r *BatchResource) Decode() (Resource, error) {
	return DecodeResource(r.Kind, r.Payload)
}
