package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/data/repos/batches"
	"github.com/herbtrace/herbtrace-backend/internal/data/repos/testutil"
	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
)

func serviceNow() time.Time { return time.Now().UTC() }

func newServiceUnderTest(t *testing.T) (*Service, batches.BatchRepo, dbctx.Context) {
	t.Helper()
	handle := testutil.DB(t)
	repo := batches.NewBatchRepo(handle, testutil.Logger(t))
	svc := NewService(repo, testutil.Logger(t))
	return svc, repo, dbctx.Context{Ctx: context.Background()}
}

func seed(t *testing.T, repo batches.BatchRepo, dbc dbctx.Context, qr string, status domain.BatchStatus) *domain.Batch {
	t.Helper()
	b, err := domain.NewBatch(qr, "Withania somnifera", domain.RoleCollector, serviceNow())
	if err != nil {
		t.Fatalf("new batch: %v", err)
	}
	if status != domain.StatusPending {
		if err := b.AppendStatus(domain.StatusChange{Status: status, Timestamp: serviceNow(), ActorRole: domain.RoleCollector, Notes: "seeded"}); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}
	if _, err := repo.Create(dbc, b); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return b
}

func TestCheckAccessBeforeRoleStage(t *testing.T) {
	svc, repo, dbc := newServiceUnderTest(t)
	seed(t, repo, dbc, "QR_BEFORE", domain.StatusProcessing)

	dec, err := svc.CheckAccess(dbc.Ctx, domain.RoleLaboratory, "QR_BEFORE", AccessEdit)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if dec.AccessAllowed {
		t.Fatalf("laboratory must be denied while batch is processing")
	}
	if dec.Reason == "" {
		t.Fatalf("denial must carry a reason")
	}
}

func TestCheckAccessAtRoleStage(t *testing.T) {
	svc, repo, dbc := newServiceUnderTest(t)
	seed(t, repo, dbc, "QR_AT", domain.StatusProcessing)

	dec, err := svc.CheckAccess(dbc.Ctx, domain.RoleProcessor, "QR_AT", AccessEdit)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !dec.AccessAllowed || !dec.CanEdit || dec.HasBeenProcessed {
		t.Fatalf("decision = %+v", dec)
	}
}

func TestCheckAccessAfterRoleStage(t *testing.T) {
	svc, repo, dbc := newServiceUnderTest(t)
	seed(t, repo, dbc, "QR_AFTER", domain.StatusTested)

	dec, err := svc.CheckAccess(dbc.Ctx, domain.RoleProcessor, "QR_AFTER", AccessView)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !dec.AccessAllowed || dec.CanEdit || !dec.HasBeenProcessed {
		t.Fatalf("decision = %+v", dec)
	}
}

func TestCheckAccessTerminalStatusIsViewOnly(t *testing.T) {
	svc, repo, dbc := newServiceUnderTest(t)
	seed(t, repo, dbc, "QR_REJ", domain.StatusRejected)
	seed(t, repo, dbc, "QR_DONE", domain.StatusCompleted)

	// rejected shares a path rank with approved, but there is no legal
	// write out of it for anyone, the regulator included.
	dec, err := svc.CheckAccess(dbc.Ctx, domain.RoleRegulator, "QR_REJ", AccessEdit)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !dec.AccessAllowed || dec.CanEdit || !dec.HasBeenProcessed {
		t.Fatalf("decision = %+v", dec)
	}

	dec, err = svc.CheckAccess(dbc.Ctx, domain.RoleRegulator, "QR_DONE", AccessEdit)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !dec.AccessAllowed || dec.CanEdit || !dec.HasBeenProcessed {
		t.Fatalf("decision = %+v", dec)
	}
}

func TestCheckAccessUnknownBatch(t *testing.T) {
	svc, _, dbc := newServiceUnderTest(t)

	dec, err := svc.CheckAccess(dbc.Ctx, domain.RoleCollector, "QR_NEW", AccessEdit)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if !dec.AccessAllowed || !dec.CanEdit {
		t.Fatalf("collector must be able to open a new chain, got %+v", dec)
	}

	dec, err = svc.CheckAccess(dbc.Ctx, domain.RoleProcessor, "QR_NEW", AccessEdit)
	if err != nil {
		t.Fatalf("check access: %v", err)
	}
	if dec.AccessAllowed {
		t.Fatalf("processor must not act before a batch exists")
	}
}

func TestAdvanceHappyPath(t *testing.T) {
	svc, repo, dbc := newServiceUnderTest(t)
	seed(t, repo, dbc, "QR_ADV", domain.StatusPending)

	b, err := svc.Advance(dbc.Ctx, "QR_ADV", domain.StatusProcessing, domain.RoleCollector, "collection recorded")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if b.Status != domain.StatusProcessing {
		t.Fatalf("status = %s", b.Status)
	}

	reloaded, err := repo.GetByQRCode(dbc, "QR_ADV")
	if err != nil || reloaded == nil {
		t.Fatalf("reload: %v", err)
	}
	history, err := reloaded.History()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[1].Status != domain.StatusProcessing || history[1].Notes != "collection recorded" {
		t.Fatalf("history = %+v", history)
	}
}

func TestAdvanceRejectsWrongRole(t *testing.T) {
	svc, repo, dbc := newServiceUnderTest(t)
	seed(t, repo, dbc, "QR_ROLE", domain.StatusPending)

	_, err := svc.Advance(dbc.Ctx, "QR_ROLE", domain.StatusProcessing, domain.RoleRegulator, "")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}

	// Denied calls leave no trace in history.
	reloaded, _ := repo.GetByQRCode(dbc, "QR_ROLE")
	history, _ := reloaded.History()
	if len(history) != 1 {
		t.Fatalf("history grew on denied advance: %+v", history)
	}
}

func TestAdvanceRejectsIllegalTransition(t *testing.T) {
	svc, repo, dbc := newServiceUnderTest(t)
	seed(t, repo, dbc, "QR_ILL", domain.StatusPending)

	_, err := svc.Advance(dbc.Ctx, "QR_ILL", domain.StatusTested, domain.RoleLaboratory, "")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
}

func TestAdvanceUnknownBatch(t *testing.T) {
	svc, _, dbc := newServiceUnderTest(t)
	_, err := svc.Advance(dbc.Ctx, "QR_MISSING", domain.StatusProcessing, domain.RoleCollector, "")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("err = %v, want ErrBatchNotFound", err)
	}
}
