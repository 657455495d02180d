package syncitems

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

// Counts aggregates queue state per item status.
type Counts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type SyncItemRepo interface {
	Create(dbc dbctx.Context, row *domain.SyncItem) (*domain.SyncItem, error)
	GetByID(dbc dbctx.Context, id int64) (*domain.SyncItem, error)

	// PendingDue returns pending items whose retry delay has elapsed, in
	// FIFO queue order.
	PendingDue(dbc dbctx.Context, now time.Time) ([]*domain.SyncItem, error)

	Counts(dbc dbctx.Context) (Counts, error)

	MarkCompleted(dbc dbctx.Context, id int64, at time.Time) error

	// RecordFailure re-reads the row, increments attempts, and either
	// schedules the next retry or marks the item failed once the budget
	// is exhausted.
	RecordFailure(dbc dbctx.Context, id int64, cause string, at, nextRetry time.Time) (*domain.SyncItem, error)

	ResetFailed(dbc dbctx.Context) (int64, error)
	DeleteCompleted(dbc dbctx.Context) (int64, error)
}

type syncItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSyncItemRepo(db *gorm.DB, baseLog *logger.Logger) SyncItemRepo {
	return &syncItemRepo{db: db, log: baseLog.With("repo", "SyncItemRepo")}
}

func (r *syncItemRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *syncItemRepo) Create(dbc dbctx.Context, row *domain.SyncItem) (*domain.SyncItem, error) {
	if row == nil {
		return nil, fmt.Errorf("nil sync item")
	}
	if err := r.conn(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *syncItemRepo) GetByID(dbc dbctx.Context, id int64) (*domain.SyncItem, error) {
	var out domain.SyncItem
	err := r.conn(dbc).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *syncItemRepo) PendingDue(dbc dbctx.Context, now time.Time) ([]*domain.SyncItem, error) {
	var out []*domain.SyncItem
	if err := r.conn(dbc).
		Where("status = ?", domain.SyncPending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *syncItemRepo) Counts(dbc dbctx.Context) (Counts, error) {
	var counts Counts
	type row struct {
		Status domain.SyncItemStatus
		N      int64
	}
	var rows []row
	if err := r.conn(dbc).
		Model(&domain.SyncItem{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return Counts{}, err
	}
	for _, rw := range rows {
		counts.Total += rw.N
		switch rw.Status {
		case domain.SyncPending:
			counts.Pending = rw.N
		case domain.SyncCompleted:
			counts.Completed = rw.N
		case domain.SyncFailed:
			counts.Failed = rw.N
		}
	}
	return counts, nil
}

func (r *syncItemRepo) MarkCompleted(dbc dbctx.Context, id int64, at time.Time) error {
	return r.conn(dbc).
		Model(&domain.SyncItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          domain.SyncCompleted,
			"last_error":      "",
			"completed_at":    at,
			"last_attempt_at": at,
			"updated_at":      at,
		}).Error
}

func (r *syncItemRepo) RecordFailure(dbc dbctx.Context, id int64, cause string, at, nextRetry time.Time) (*domain.SyncItem, error) {
	// Read the latest row first: another callback may have touched the
	// item between the transmission attempt and this bookkeeping.
	item, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("sync item %d not found", id)
	}

	item.Attempts++
	item.LastError = cause
	item.LastAttemptAt = &at
	item.UpdatedAt = at
	if item.Attempts >= item.MaxAttempts {
		item.Status = domain.SyncFailed
		item.NextRetryAt = nil
	} else {
		item.Status = domain.SyncPending
		item.NextRetryAt = &nextRetry
	}

	if err := r.conn(dbc).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *syncItemRepo) ResetFailed(dbc dbctx.Context) (int64, error) {
	res := r.conn(dbc).
		Model(&domain.SyncItem{}).
		Where("status = ?", domain.SyncFailed).
		Updates(map[string]interface{}{
			"status":        domain.SyncPending,
			"attempts":      0,
			"last_error":    "",
			"next_retry_at": nil,
			"updated_at":    time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *syncItemRepo) DeleteCompleted(dbc dbctx.Context) (int64, error) {
	res := r.conn(dbc).
		Where("status = ?", domain.SyncCompleted).
		Delete(&domain.SyncItem{})
	return res.RowsAffected, res.Error
}
