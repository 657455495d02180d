package batches

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

type BatchRepo interface {
	Create(dbc dbctx.Context, row *domain.Batch) (*domain.Batch, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Batch, error)
	GetByQRCode(dbc dbctx.Context, qrCode string) (*domain.Batch, error)
	GetAll(dbc dbctx.Context) ([]*domain.Batch, error)

	// Save persists the full row. Callers must re-read the latest row
	// immediately before mutating to avoid lost updates across
	// interleaved callbacks.
	Save(dbc dbctx.Context, row *domain.Batch) error

	AddResource(dbc dbctx.Context, row *domain.BatchResource) (*domain.BatchResource, error)
	GetResources(dbc dbctx.Context, batchID uuid.UUID) ([]*domain.BatchResource, error)
}

type batchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRepo(db *gorm.DB, baseLog *logger.Logger) BatchRepo {
	return &batchRepo{db: db, log: baseLog.With("repo", "BatchRepo")}
}

func (r *batchRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *batchRepo) Create(dbc dbctx.Context, row *domain.Batch) (*domain.Batch, error) {
	if row == nil {
		return nil, fmt.Errorf("nil batch")
	}
	if err := r.conn(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *batchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Batch, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out domain.Batch
	err := r.conn(dbc).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *batchRepo) GetByQRCode(dbc dbctx.Context, qrCode string) (*domain.Batch, error) {
	if qrCode == "" {
		return nil, nil
	}
	var out domain.Batch
	err := r.conn(dbc).Where("qr_code = ?", qrCode).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *batchRepo) GetAll(dbc dbctx.Context) ([]*domain.Batch, error) {
	var out []*domain.Batch
	if err := r.conn(dbc).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *batchRepo) Save(dbc dbctx.Context, row *domain.Batch) error {
	if row == nil || row.ID == uuid.Nil {
		return fmt.Errorf("batch row without id")
	}
	return r.conn(dbc).Save(row).Error
}

func (r *batchRepo) AddResource(dbc dbctx.Context, row *domain.BatchResource) (*domain.BatchResource, error) {
	if row == nil {
		return nil, fmt.Errorf("nil batch resource")
	}
	if err := r.conn(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *batchRepo) GetResources(dbc dbctx.Context, batchID uuid.UUID) ([]*domain.BatchResource, error) {
	var out []*domain.BatchResource
	if batchID == uuid.Nil {
		return out, nil
	}
	if err := r.conn(dbc).
		Where("batch_id = ?", batchID).
		Order("performed_at ASC, seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
