package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/data/repos/batches"
	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

// AccessType distinguishes read-only lookups from edit-intent checks. Both
// use the same stage-ordering rules; the type is recorded for audit logs.
type AccessType string

const (
	AccessView AccessType = "view"
	AccessEdit AccessType = "edit"
)

// AccessDecision is the outcome of a role's access check against a batch.
// HasBeenProcessed means the batch moved past the role's stage: the role
// already acted or was skipped, so the record is view-only for it.
type AccessDecision struct {
	AccessAllowed    bool          `json:"access_allowed"`
	CanEdit          bool          `json:"can_edit"`
	HasBeenProcessed bool          `json:"has_been_processed"`
	Batch            *domain.Batch `json:"batch,omitempty"`
	Reason           string        `json:"reason,omitempty"`
}

// Service gates batch writes by role and stage and owns status advancement.
type Service struct {
	repo batches.BatchRepo
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo batches.BatchRepo, baseLog *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  baseLog.With("service", "WorkflowService"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CheckAccess resolves the batch behind qrCode and positions the role's
// designated stage window against the batch's current status. Pure read; no
// side effects regardless of outcome.
func (s *Service) CheckAccess(ctx context.Context, role domain.Role, qrCode string, accessType AccessType) (AccessDecision, error) {
	batch, err := s.repo.GetByQRCode(dbctx.From(ctx), qrCode)
	if err != nil {
		return AccessDecision{}, fmt.Errorf("load batch %q: %w", qrCode, err)
	}
	if batch == nil {
		if role == domain.RoleCollector {
			// Nothing recorded yet: the collector opens the chain.
			return AccessDecision{AccessAllowed: true, CanEdit: true}, nil
		}
		return AccessDecision{
			Reason: fmt.Sprintf("no batch found for QR code %q", qrCode),
		}, nil
	}

	first, last, ok := stageWindow(role)
	if !ok {
		return AccessDecision{
			Batch:  batch,
			Reason: fmt.Sprintf("role %q has no designated workflow stage", role),
		}, nil
	}

	current := stageOrder[batch.Status]
	decision := AccessDecision{Batch: batch}
	switch {
	case current < first:
		decision.Reason = fmt.Sprintf("batch is %s; not yet ready for %s", batch.Status, role)
	case current > last || IsTerminal(batch.Status):
		// Terminal statuses have no outgoing transitions, so they are
		// view-only even when their rank falls inside the role's window
		// (rejected shares a rank with approved).
		decision.AccessAllowed = true
		decision.HasBeenProcessed = true
	default:
		decision.AccessAllowed = true
		decision.CanEdit = true
	}

	s.log.Debug("access checked",
		"qrCode", qrCode,
		"role", role,
		"accessType", accessType,
		"batchStatus", batch.Status,
		"allowed", decision.AccessAllowed,
		"canEdit", decision.CanEdit,
	)
	return decision, nil
}

// Advance validates that newStatus is a legal successor driven by actorRole,
// appends to the status history, and persists. The batch row is re-read
// inside the call immediately before the write so interleaved callbacks
// never overwrite each other's history entries.
func (s *Service) Advance(ctx context.Context, qrCode string, newStatus domain.BatchStatus, actorRole domain.Role, notes string) (*domain.Batch, error) {
	dbc := dbctx.From(ctx)
	batch, err := s.repo.GetByQRCode(dbc, qrCode)
	if err != nil {
		return nil, fmt.Errorf("load batch %q: %w", qrCode, err)
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: qr code %q", ErrBatchNotFound, qrCode)
	}

	if !IsLegalTransition(batch.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, batch.Status, newStatus)
	}
	if !OwnsTransition(actorRole, batch.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s may not move %s -> %s", ErrAccessDenied, actorRole, batch.Status, newStatus)
	}

	if err := batch.AppendStatus(domain.StatusChange{
		Status:    newStatus,
		Timestamp: s.now(),
		ActorRole: actorRole,
		Notes:     notes,
	}); err != nil {
		return nil, err
	}
	if err := s.repo.Save(dbc, batch); err != nil {
		return nil, fmt.Errorf("persist batch %q: %w", qrCode, err)
	}

	s.log.Info("batch advanced",
		"qrCode", qrCode,
		"status", newStatus,
		"actorRole", actorRole,
	)
	return batch, nil
}

// SetNow overrides the clock; tests only.
func (s *Service) SetNow(now func() time.Time) { s.now = now }
