package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/data/repos/batches"
	"github.com/herbtrace/herbtrace-backend/internal/data/repos/syncitems"
	"github.com/herbtrace/herbtrace-backend/internal/data/repos/testutil"
	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/notify"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/syncq"
	"github.com/herbtrace/herbtrace-backend/internal/workflow"
)

// okTransport accepts everything; queue behavior itself is covered by the
// syncq tests.
type okTransport struct {
	mu   sync.Mutex
	sent []int64
}

func (t *okTransport) Send(_ context.Context, item *domain.SyncItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, item.ID)
	return nil
}

type trackingHarness struct {
	svc       *TrackingService
	batches   batches.BatchRepo
	syncItems syncitems.SyncItemRepo
	transport *okTransport
	hub       *notify.Hub
}

func newTrackingHarness(t *testing.T) *trackingHarness {
	t.Helper()
	log := testutil.Logger(t)
	handle := testutil.DB(t)

	batchRepo := batches.NewBatchRepo(handle, log)
	syncRepo := syncitems.NewSyncItemRepo(handle, log)
	transport := &okTransport{}
	engine := syncq.NewEngine(syncRepo, transport, log, nil, syncq.Config{})
	hub := notify.NewHub(log)
	workflowSvc := workflow.NewService(batchRepo, log)

	return &trackingHarness{
		svc:       NewTrackingService(batchRepo, workflowSvc, engine, hub, nil, log),
		batches:   batchRepo,
		syncItems: syncRepo,
		transport: transport,
		hub:       hub,
	}
}

func validCollection() *domain.CollectionEvent {
	return domain.NewCollectionEvent(domain.CollectionParams{
		BotanicalName: "Withania somnifera",
		CommonName:    "Ashwagandha",
		PartUsed:      "root",
		Qty:           domain.Quantity{Value: 5, Unit: "kg"},
		Farmer:        domain.FarmerInfo{Name: "R. Sharma", FarmerID: "FARM-001", Village: "Neemuch"},
		Location:      domain.GeoPoint{Latitude: 24.47, Longitude: 74.87, Accuracy: 5},
		PerformedAt:   time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
	})
}

func validProcessing() *domain.ProcessingStep {
	return domain.NewProcessingStep(domain.ProcessingParams{
		Method:      "shade drying",
		InputQty:    domain.Quantity{Value: 5, Unit: "kg"},
		OutputQty:   domain.Quantity{Value: 1.2, Unit: "kg"},
		FacilityRef: "FAC-22",
		PerformedAt: time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC),
	})
}

func validTest() *domain.QualityTest {
	return domain.NewQualityTest(domain.TestParams{
		TestTypes:   []string{"moisture"},
		Results:     map[string]string{"moisture": "7.2%"},
		Passed:      true,
		LabRef:      "LAB-IND-04",
		PerformedAt: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC),
	})
}

func TestSubmitInvalidResourceHasNoSideEffects(t *testing.T) {
	h := newTrackingHarness(t)
	ctx := context.Background()

	broken := validCollection()
	broken.BotanicalName = ""
	broken.Farmer.Name = ""

	out, err := h.svc.SubmitResource(ctx, domain.RoleCollector, "QR_NEW", broken)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Validation.Valid || len(out.Validation.Errors) != 2 {
		t.Fatalf("validation = %+v", out.Validation)
	}

	if b, _ := h.batches.GetByQRCode(dbctx.Background(), "QR_NEW"); b != nil {
		t.Fatalf("invalid submission created a batch")
	}
	counts, err := h.syncItems.Counts(dbctx.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Total != 0 {
		t.Fatalf("invalid submission enqueued %d items", counts.Total)
	}
}

func TestFirstCollectionOpensBatchAndNotifies(t *testing.T) {
	h := newTrackingHarness(t)
	ctx := context.Background()

	var updates []notify.BatchUpdate
	h.hub.Subscribe(func(u notify.BatchUpdate) { updates = append(updates, u) })

	out, err := h.svc.SubmitResource(ctx, domain.RoleCollector, "QR_COL_1", validCollection())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Validation.Valid {
		t.Fatalf("validation = %+v", out.Validation)
	}
	if out.Batch == nil || out.Batch.Status != domain.StatusProcessing {
		t.Fatalf("batch = %+v", out.Batch)
	}
	if out.SyncItemID == 0 {
		t.Fatalf("no sync item enqueued")
	}

	batch, err := h.batches.GetByQRCode(dbctx.Background(), "QR_COL_1")
	if err != nil || batch == nil {
		t.Fatalf("batch lookup: %v %v", batch, err)
	}
	if batch.Species != "Withania somnifera" {
		t.Fatalf("species = %q", batch.Species)
	}
	rows, err := h.batches.GetResources(dbctx.Background(), batch.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("resources = %d, err = %v", len(rows), err)
	}
	if rows[0].Kind != domain.KindCollection {
		t.Fatalf("kind = %s", rows[0].Kind)
	}

	if len(updates) != 1 || updates[0].QRCode != "QR_COL_1" || updates[0].Status != domain.StatusProcessing {
		t.Fatalf("updates = %+v", updates)
	}
	if len(updates[0].Batches) != 1 {
		t.Fatalf("snapshot count = %d", len(updates[0].Batches))
	}
}

func TestNonCollectorCannotOpenBatch(t *testing.T) {
	h := newTrackingHarness(t)

	_, err := h.svc.SubmitResource(context.Background(), domain.RoleProcessor, "QR_MISSING", validProcessing())
	if !errors.Is(err, workflow.ErrBatchNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestOutOfOrderSubmissionRejected(t *testing.T) {
	h := newTrackingHarness(t)
	ctx := context.Background()

	if _, err := h.svc.SubmitResource(ctx, domain.RoleCollector, "QR_ORD", validCollection()); err != nil {
		t.Fatalf("collection: %v", err)
	}

	// Batch is at processing; a quality test needs processed first.
	_, err := h.svc.SubmitResource(ctx, domain.RoleLaboratory, "QR_ORD", validTest())
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("err = %v", err)
	}

	batch, _ := h.batches.GetByQRCode(dbctx.Background(), "QR_ORD")
	rows, _ := h.batches.GetResources(dbctx.Background(), batch.ID)
	if len(rows) != 1 {
		t.Fatalf("rejected submission persisted a resource: %d rows", len(rows))
	}
}

func TestFullChainLinksPriorResources(t *testing.T) {
	h := newTrackingHarness(t)
	ctx := context.Background()

	if _, err := h.svc.SubmitResource(ctx, domain.RoleCollector, "QR_CHAIN", validCollection()); err != nil {
		t.Fatalf("collection: %v", err)
	}
	procOut, err := h.svc.SubmitResource(ctx, domain.RoleProcessor, "QR_CHAIN", validProcessing())
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if procOut.Batch.Status != domain.StatusProcessed {
		t.Fatalf("status after processing = %s", procOut.Batch.Status)
	}

	// A quality test on a processed batch opens and closes testing in one
	// submission.
	testOut, err := h.svc.SubmitResource(ctx, domain.RoleLaboratory, "QR_CHAIN", validTest())
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if testOut.Batch.Status != domain.StatusTested {
		t.Fatalf("status after test = %s", testOut.Batch.Status)
	}

	batch, _ := h.batches.GetByQRCode(dbctx.Background(), "QR_CHAIN")
	rows, err := h.batches.GetResources(dbctx.Background(), batch.ID)
	if err != nil || len(rows) != 3 {
		t.Fatalf("resources = %d, err = %v", len(rows), err)
	}

	proc, err := rows[1].Decode()
	if err != nil {
		t.Fatalf("decode processing: %v", err)
	}
	if ref := proc.PriorRef(); ref == nil || *ref != rows[0].ResourceID {
		t.Fatalf("processing prior ref = %v, want %s", ref, rows[0].ResourceID)
	}
	qt, err := rows[2].Decode()
	if err != nil {
		t.Fatalf("decode test: %v", err)
	}
	if ref := qt.PriorRef(); ref == nil || *ref != rows[1].ResourceID {
		t.Fatalf("test prior ref = %v, want %s", ref, rows[1].ResourceID)
	}
}

func TestReviewAndCompleteBatch(t *testing.T) {
	h := newTrackingHarness(t)
	ctx := context.Background()

	if _, err := h.svc.SubmitResource(ctx, domain.RoleCollector, "QR_REV", validCollection()); err != nil {
		t.Fatalf("collection: %v", err)
	}
	if _, err := h.svc.SubmitResource(ctx, domain.RoleProcessor, "QR_REV", validProcessing()); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if _, err := h.svc.SubmitResource(ctx, domain.RoleLaboratory, "QR_REV", validTest()); err != nil {
		t.Fatalf("test: %v", err)
	}

	// Only the regulator may deliver the verdict.
	if _, err := h.svc.ReviewBatch(ctx, domain.RoleLaboratory, "QR_REV", true, ""); !errors.Is(err, workflow.ErrAccessDenied) {
		t.Fatalf("lab verdict err = %v", err)
	}

	batch, err := h.svc.ReviewBatch(ctx, domain.RoleRegulator, "QR_REV", true, "meets pharmacopoeia limits")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if batch.Status != domain.StatusApproved {
		t.Fatalf("status = %s", batch.Status)
	}

	batch, err = h.svc.CompleteBatch(ctx, domain.RoleRegulator, "QR_REV", "released")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if batch.Status != domain.StatusCompleted {
		t.Fatalf("status = %s", batch.Status)
	}
}

func TestRejectedBatchIsTerminal(t *testing.T) {
	h := newTrackingHarness(t)
	ctx := context.Background()

	if _, err := h.svc.SubmitResource(ctx, domain.RoleCollector, "QR_REJ", validCollection()); err != nil {
		t.Fatalf("collection: %v", err)
	}
	if _, err := h.svc.SubmitResource(ctx, domain.RoleProcessor, "QR_REJ", validProcessing()); err != nil {
		t.Fatalf("processing: %v", err)
	}
	failing := validTest()
	failing.Passed = false
	if _, err := h.svc.SubmitResource(ctx, domain.RoleLaboratory, "QR_REJ", failing); err != nil {
		t.Fatalf("test: %v", err)
	}

	batch, err := h.svc.ReviewBatch(ctx, domain.RoleRegulator, "QR_REJ", false, "heavy metals over limit")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if batch.Status != domain.StatusRejected {
		t.Fatalf("status = %s", batch.Status)
	}

	if _, err := h.svc.CompleteBatch(ctx, domain.RoleRegulator, "QR_REJ", ""); !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("complete on rejected err = %v", err)
	}
}
