package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/clients/authstore"
	"github.com/herbtrace/herbtrace-backend/internal/data/repos/batches"
	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/notify"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/syncq"
	"github.com/herbtrace/herbtrace-backend/internal/workflow"
)

// SubmitOutcome reports one resource submission. When Validation.Valid is
// false nothing else happened: no workflow write, no queue entry, no
// notification.
type SubmitOutcome struct {
	Validation domain.ValidationResult `json:"validation"`
	Batch      *domain.Batch           `json:"batch,omitempty"`
	SyncItemID int64                   `json:"sync_item_id,omitempty"`
}

// TrackingService is the write path of the core: a role submits a resource,
// the workflow gates it, the resource row and queue entry are persisted, and
// other sessions are notified.
type TrackingService struct {
	batches  batches.BatchRepo
	workflow *workflow.Service
	engine   *syncq.Engine
	hub      *notify.Hub
	bus      *notify.RedisBus
	log      *logger.Logger
	now      func() time.Time
}

func NewTrackingService(
	batchRepo batches.BatchRepo,
	workflowSvc *workflow.Service,
	engine *syncq.Engine,
	hub *notify.Hub,
	bus *notify.RedisBus,
	baseLog *logger.Logger,
) *TrackingService {
	return &TrackingService{
		batches:  batchRepo,
		workflow: workflowSvc,
		engine:   engine,
		hub:      hub,
		bus:      bus,
		log:      baseLog.With("service", "TrackingService"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitResource runs the full write path for one resource. Validation and
// access failures return before any side effect; transport failures are
// absorbed by the sync queue and never surface here.
func (s *TrackingService) SubmitResource(ctx context.Context, role domain.Role, qrCode string, resource domain.Resource) (*SubmitOutcome, error) {
	validation := resource.Validate()
	if !validation.Valid {
		return &SubmitOutcome{Validation: validation}, nil
	}

	dbc := dbctx.From(ctx)
	batch, err := s.batches.GetByQRCode(dbc, qrCode)
	if err != nil {
		return nil, fmt.Errorf("load batch %q: %w", qrCode, err)
	}
	if batch == nil {
		if role != domain.RoleCollector || resource.Kind() != domain.KindCollection {
			return nil, fmt.Errorf("%w: qr code %q", workflow.ErrBatchNotFound, qrCode)
		}
		batch, err = s.openBatch(dbc, qrCode, resource)
		if err != nil {
			return nil, err
		}
	}

	if err := s.linkPriorResource(dbc, batch, resource); err != nil {
		return nil, err
	}

	batch, err = s.advanceFor(ctx, qrCode, batch, role, resource)
	if err != nil {
		return nil, err
	}

	row, err := s.persistResource(dbc, batch, resource)
	if err != nil {
		return nil, err
	}

	submission := s.buildSubmission(batch, resource)
	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	itemID, err := s.engine.Enqueue(ctx, "resource_submission", payload)
	if err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, batch)
	s.log.Info("resource submitted",
		"qrCode", qrCode,
		"kind", resource.Kind(),
		"role", role,
		"seq", row.Seq,
		"syncItemID", itemID,
	)
	return &SubmitOutcome{Validation: validation, Batch: batch, SyncItemID: itemID}, nil
}

func (s *TrackingService) openBatch(dbc dbctx.Context, qrCode string, resource domain.Resource) (*domain.Batch, error) {
	species := ""
	if col, ok := resource.(*domain.CollectionEvent); ok {
		species = col.BotanicalName
	}
	batch, err := domain.NewBatch(qrCode, species, domain.RoleCollector, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.batches.Create(dbc, batch); err != nil {
		return nil, fmt.Errorf("create batch %q: %w", qrCode, err)
	}
	s.log.Info("batch opened", "qrCode", qrCode, "species", species)
	return batch, nil
}

// linkPriorResource defaults an unset chain link to the batch's latest
// resource, so every non-head record points at the one that produced its
// input.
func (s *TrackingService) linkPriorResource(dbc dbctx.Context, batch *domain.Batch, resource domain.Resource) error {
	if resource.Kind() == domain.KindCollection || resource.PriorRef() != nil {
		return nil
	}
	rows, err := s.batches.GetResources(dbc, batch.ID)
	if err != nil {
		return fmt.Errorf("load resources for chain link: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	prior := rows[len(rows)-1].ResourceID
	switch res := resource.(type) {
	case *domain.ProcessingStep:
		res.PriorResourceRef = &prior
	case *domain.QualityTest:
		res.PriorResourceRef = &prior
	}
	return nil
}

// advanceFor maps the submitted resource kind onto the workflow transitions
// it drives. A quality test submitted against a processed batch first opens
// the testing stage, then closes it.
func (s *TrackingService) advanceFor(ctx context.Context, qrCode string, batch *domain.Batch, role domain.Role, resource domain.Resource) (*domain.Batch, error) {
	switch resource.Kind() {
	case domain.KindCollection:
		return s.workflow.Advance(ctx, qrCode, domain.StatusProcessing, role, "collection recorded")
	case domain.KindProcessing:
		return s.workflow.Advance(ctx, qrCode, domain.StatusProcessed, role, "processing recorded")
	case domain.KindTest:
		if batch.Status == domain.StatusProcessed {
			if _, err := s.workflow.Advance(ctx, qrCode, domain.StatusTesting, role, "testing started"); err != nil {
				return nil, err
			}
		}
		return s.workflow.Advance(ctx, qrCode, domain.StatusTested, role, "test results recorded")
	}
	return nil, fmt.Errorf("unsupported resource kind %q", resource.Kind())
}

func (s *TrackingService) persistResource(dbc dbctx.Context, batch *domain.Batch, resource domain.Resource) (*domain.BatchResource, error) {
	payload, err := resource.CanonicalJSON()
	if err != nil {
		return nil, fmt.Errorf("serialize resource: %w", err)
	}
	row := &domain.BatchResource{
		ResourceID:  resource.ResourceID(),
		BatchID:     batch.ID,
		Kind:        resource.Kind(),
		PerformedAt: resource.PerformedTime(),
		Payload:     payload,
		CreatedAt:   s.now(),
	}
	if _, err := s.batches.AddResource(dbc, row); err != nil {
		return nil, fmt.Errorf("persist resource: %w", err)
	}
	return row, nil
}

func (s *TrackingService) buildSubmission(batch *domain.Batch, resource domain.Resource) authstore.Submission {
	sub := authstore.Submission{
		QRCode:       batch.QRCode,
		CollectionID: resource.ResourceID().String(),
		Timestamp:    resource.PerformedTime(),
		Herb:         authstore.HerbPayload{BotanicalName: batch.Species},
	}
	if col, ok := resource.(*domain.CollectionEvent); ok {
		sub.Farmer = authstore.FarmerPayload{
			Name:     col.Farmer.Name,
			Phone:    col.Farmer.Phone,
			FarmerID: col.Farmer.FarmerID,
			Village:  col.Farmer.Village,
			District: col.Farmer.District,
			State:    col.Farmer.State,
		}
		sub.Herb = authstore.HerbPayload{
			BotanicalName: col.BotanicalName,
			CommonName:    col.CommonName,
			PartUsed:      col.PartUsed,
			Quantity:      col.Qty.Value,
			Unit:          col.Qty.Unit,
		}
		sub.Location = authstore.LocationPayload{
			Latitude:  col.Location.Latitude,
			Longitude: col.Location.Longitude,
			Accuracy:  col.Location.Accuracy,
			Timestamp: col.Location.CapturedAt,
		}
	}
	return sub
}

// ReviewBatch is the regulator's verdict on a tested batch.
func (s *TrackingService) ReviewBatch(ctx context.Context, role domain.Role, qrCode string, approve bool, notes string) (*domain.Batch, error) {
	verdict := domain.StatusRejected
	if approve {
		verdict = domain.StatusApproved
	}
	batch, err := s.workflow.Advance(ctx, qrCode, verdict, role, notes)
	if err != nil {
		return nil, err
	}
	s.publishUpdate(ctx, batch)
	return batch, nil
}

// CompleteBatch closes an approved batch's traceability record.
func (s *TrackingService) CompleteBatch(ctx context.Context, role domain.Role, qrCode string, notes string) (*domain.Batch, error) {
	batch, err := s.workflow.Advance(ctx, qrCode, domain.StatusCompleted, role, notes)
	if err != nil {
		return nil, err
	}
	s.publishUpdate(ctx, batch)
	return batch, nil
}

// GetBatchByQRCode is the read interface used by every portal screen.
func (s *TrackingService) GetBatchByQRCode(ctx context.Context, qrCode string) (*domain.Batch, error) {
	return s.batches.GetByQRCode(dbctx.From(ctx), qrCode)
}

func (s *TrackingService) GetAllBatches(ctx context.Context) ([]*domain.Batch, error) {
	return s.batches.GetAll(dbctx.From(ctx))
}

// SubscribeToBatchUpdates registers a session callback on the hub.
func (s *TrackingService) SubscribeToBatchUpdates(fn func(notify.BatchUpdate)) func() {
	return s.hub.Subscribe(fn)
}

// publishUpdate reloads the collection and broadcasts it. Publishing after
// the local commit means a session either sees the notification or finds
// the state on its next explicit fetch; nothing is lost either way.
func (s *TrackingService) publishUpdate(ctx context.Context, batch *domain.Batch) {
	all, err := s.batches.GetAll(dbctx.From(ctx))
	if err != nil {
		s.log.Warn("skipping batch update broadcast", "error", err)
		return
	}
	snapshots := make([]notify.BatchSnapshot, 0, len(all))
	for _, b := range all {
		snapshots = append(snapshots, notify.BatchSnapshot{
			ID:      b.ID.String(),
			QRCode:  b.QRCode,
			Species: b.Species,
			Status:  b.Status,
		})
	}
	update := notify.BatchUpdate{
		QRCode:    batch.QRCode,
		Status:    batch.Status,
		ChangedAt: s.now(),
		Batches:   snapshots,
	}
	s.hub.Publish(update)
	if s.bus != nil {
		if err := s.bus.Publish(ctx, update); err != nil {
			s.log.Warn("redis batch update publish failed", "error", err)
		}
	}
}

// SetNow overrides the clock; tests only.
func (s *TrackingService) SetNow(now func() time.Time) { s.now = now }
