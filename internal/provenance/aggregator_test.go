package provenance

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
)

var t0 = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func collectionAt(ts time.Time) *domain.CollectionEvent {
	return domain.NewCollectionEvent(domain.CollectionParams{
		BotanicalName: "Withania somnifera",
		PartUsed:      "root",
		Qty:           domain.Quantity{Value: 5, Unit: "kg"},
		Farmer:        domain.FarmerInfo{Name: "R. Sharma", FarmerID: "FARM-001", Village: "Neemuch"},
		Location:      domain.GeoPoint{Latitude: 24.47, Longitude: 74.87},
		PerformedAt:   ts,
		Docs: domain.DocRefs{
			Photos:       []string{"p1.jpg"},
			Certificates: []string{"organic.pdf"},
			Reports:      []string{"harvest.pdf"},
			Notes:        "morning harvest",
		},
	})
}

func processingAt(ts time.Time, prior uuid.UUID) *domain.ProcessingStep {
	return domain.NewProcessingStep(domain.ProcessingParams{
		Method:           "sun-drying",
		InputQty:         domain.Quantity{Value: 5, Unit: "kg"},
		OutputQty:        domain.Quantity{Value: 4.2, Unit: "kg"},
		FacilityRef:      "FAC-09",
		PerformedAt:      ts,
		PriorResourceRef: &prior,
		Docs: domain.DocRefs{
			Photos:       []string{"dry.jpg"},
			Certificates: []string{"gmp.pdf"},
			Reports:      []string{"drying.pdf"},
			Notes:        "48h",
		},
	})
}

func testAt(ts time.Time, prior uuid.UUID) *domain.QualityTest {
	return domain.NewQualityTest(domain.TestParams{
		TestTypes:         []string{"moisture"},
		Results:           map[string]string{"moisture": "8.1%"},
		Passed:            true,
		LabRef:            "LAB-22",
		CertificateNumber: "CERT-881",
		PerformedAt:       ts,
		PriorResourceRef:  &prior,
		Docs: domain.DocRefs{
			Photos:       []string{"sample.jpg"},
			Certificates: []string{"coa.pdf"},
			Reports:      []string{"results.pdf"},
			Notes:        "within limits",
		},
	})
}

func TestAddEventKeepsTimelineSorted(t *testing.T) {
	agg := NewAggregator("QR_SORT")

	col := collectionAt(t0)
	proc := processingAt(t0.Add(48*time.Hour), col.ID)
	qt := testAt(t0.Add(24*time.Hour), proc.ID)

	// Insert out of order; the timeline must re-sort after every call.
	agg.AddEvent(proc)
	if got := agg.Events(); len(got) != 1 || got[0].Kind != domain.KindProcessing {
		t.Fatalf("events = %+v", got)
	}
	agg.AddEvent(qt)
	agg.AddEvent(col)

	events := agg.Events()
	if len(events) != 3 {
		t.Fatalf("events = %d", len(events))
	}
	want := []domain.ResourceKind{domain.KindCollection, domain.KindTest, domain.KindProcessing}
	for i, k := range want {
		if events[i].Kind != k {
			t.Fatalf("events[%d].Kind = %s, want %s", i, events[i].Kind, k)
		}
	}

	period := agg.OccurredPeriod()
	if !period.Start.Equal(t0) || !period.End.Equal(t0.Add(48*time.Hour)) {
		t.Fatalf("period = %+v", period)
	}
}

func TestAddEventBreaksTimestampTiesByInsertionOrder(t *testing.T) {
	agg := NewAggregator("QR_TIES")

	col := collectionAt(t0)
	first := processingAt(t0, col.ID)
	second := processingAt(t0, col.ID)

	agg.AddEvent(first)
	agg.AddEvent(second)

	events := agg.Events()
	if events[0].ResourceID != first.ID || events[1].ResourceID != second.ID {
		t.Fatalf("tie not broken by insertion order: %+v", events)
	}
	if events[0].Seq >= events[1].Seq {
		t.Fatalf("seq not monotonic: %+v", events)
	}
}

func TestCompletenessCountsDistinctRequiredKinds(t *testing.T) {
	agg := NewAggregator("QR_COMP")
	col := collectionAt(t0)
	agg.AddEvent(col)
	if got := agg.Completeness(); got < 33.3 || got > 33.4 {
		t.Fatalf("completeness = %v", got)
	}
	// A second collection adds no new kind.
	agg.AddEvent(collectionAt(t0.Add(time.Hour)))
	if got := agg.Completeness(); got < 33.3 || got > 33.4 {
		t.Fatalf("completeness after duplicate kind = %v", got)
	}

	proc := processingAt(t0.Add(2*time.Hour), col.ID)
	agg.AddEvent(proc)
	agg.AddEvent(testAt(t0.Add(3*time.Hour), proc.ID))
	if got := agg.Completeness(); got != 100 {
		t.Fatalf("completeness = %v", got)
	}
}

func TestAccuracyCountsValidResources(t *testing.T) {
	agg := NewAggregator("QR_ACC")
	if got := agg.Accuracy(); got != 0 {
		t.Fatalf("accuracy of empty bundle = %v", got)
	}

	agg.AddEvent(collectionAt(t0))
	agg.AddEvent(domain.NewProcessingStep(domain.ProcessingParams{PerformedAt: t0.Add(time.Hour)}))
	if got := agg.Accuracy(); got != 50 {
		t.Fatalf("accuracy = %v", got)
	}
}

func TestPerfectBundleScoresExactly100(t *testing.T) {
	agg := NewAggregator("QR_PERFECT")
	// All events at the same instant: timeliness delay 0.
	col := collectionAt(t0)
	proc := processingAt(t0, col.ID)
	qt := testAt(t0, proc.ID)
	agg.AddEvent(col)
	agg.AddEvent(proc)
	agg.AddEvent(qt)

	s := agg.ScoreBreakdown()
	if s.Completeness != 100 || s.Accuracy != 100 || s.Timeliness != 0 || s.Transparency != 100 || s.Verifiability != 100 {
		t.Fatalf("breakdown = %+v", s)
	}
	if got := agg.Score(); got != 100 {
		t.Fatalf("score = %v, want exactly 100", got)
	}
}

func TestTimelinessGrowsWithMeanDelay(t *testing.T) {
	agg := NewAggregator("QR_TIME")
	col := collectionAt(t0)
	agg.AddEvent(col)
	if got := agg.Timeliness(); got != 0 {
		t.Fatalf("single event timeliness = %v", got)
	}

	agg.AddEvent(processingAt(t0.Add(15*24*time.Hour), col.ID))
	if got := agg.Timeliness(); got != 50 {
		t.Fatalf("timeliness = %v, want 50", got)
	}

	// Composite inverts timeliness: more delay, lower score.
	fast := NewAggregator("QR_FAST")
	fcol := collectionAt(t0)
	fast.AddEvent(fcol)
	fast.AddEvent(processingAt(t0.Add(time.Hour), fcol.ID))
	if fast.Score() <= agg.Score() {
		t.Fatalf("faster chain should outscore slower: %v vs %v", fast.Score(), agg.Score())
	}
}

func TestTransparencyCountsDocSubFields(t *testing.T) {
	agg := NewAggregator("QR_DOC")
	bare := domain.NewCollectionEvent(domain.CollectionParams{
		BotanicalName: "Withania somnifera",
		PartUsed:      "root",
		Qty:           domain.Quantity{Value: 5, Unit: "kg"},
		Farmer:        domain.FarmerInfo{Name: "R. Sharma", FarmerID: "FARM-001"},
		Location:      domain.GeoPoint{Latitude: 24.47, Longitude: 74.87},
		PerformedAt:   t0,
		Docs:          domain.DocRefs{Photos: []string{"p1.jpg"}, Notes: "ok"},
	})
	agg.AddEvent(bare)
	if got := agg.Transparency(); got != 50 {
		t.Fatalf("transparency = %v, want 50", got)
	}
}

func TestThreeStageScenario(t *testing.T) {
	agg := NewAggregator("QR_COL_TEST1")
	col := collectionAt(t0)
	proc := processingAt(t0.Add(24*time.Hour), col.ID)
	qt := testAt(t0.Add(48*time.Hour), proc.ID)
	agg.AddEvent(col)
	agg.AddEvent(proc)
	agg.AddEvent(qt)

	if got := agg.Completeness(); got != 100 {
		t.Fatalf("completeness = %v", got)
	}
	events := agg.Events()
	if len(events) != 3 {
		t.Fatalf("events = %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].PerformedAt.Before(events[i-1].PerformedAt) {
			t.Fatalf("timeline out of order at %d", i)
		}
	}
	if events[0].Summary != "Collected 5 kg of Withania somnifera from Neemuch" {
		t.Fatalf("summary = %q", events[0].Summary)
	}
}
