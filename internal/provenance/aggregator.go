package provenance

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
)

// Event is one entry of a batch's ordered provenance timeline. Seq is a
// monotonic insertion counter that breaks PerformedAt ties deterministically;
// wall clocks on independent clients are not trusted for ordering alone.
type Event struct {
	ResourceID  uuid.UUID           `json:"resource_id"`
	Kind        domain.ResourceKind `json:"kind"`
	Summary     string              `json:"summary"`
	PerformedAt time.Time           `json:"performed_at"`
	Seq         int64               `json:"seq"`
}

// Period is the closed interval covered by a bundle's events.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Scores are the five trust sub-scores, each in [0,100]. Timeliness is a
// delay measure: lower is better, and the composite inverts it.
type Scores struct {
	Completeness  float64 `json:"completeness"`
	Accuracy      float64 `json:"accuracy"`
	Timeliness    float64 `json:"timeliness"`
	Transparency  float64 `json:"transparency"`
	Verifiability float64 `json:"verifiability"`
}

// Bundle is the aggregated provenance record handed to portals: the ordered
// timeline plus derived trust scores for one final product.
type Bundle struct {
	TargetRef      string  `json:"target_ref"`
	Events         []Event `json:"events"`
	OccurredPeriod Period  `json:"occurred_period"`
	Scores         Scores  `json:"scores"`
	Composite      float64 `json:"composite"`
}

// Aggregator merges the resources of one batch into an ordered event
// timeline and computes the trust scores over them.
type Aggregator struct {
	targetRef string
	events    []Event
	resources []domain.Resource
	period    Period
	nextSeq   int64
}

func NewAggregator(targetRef string) *Aggregator {
	return &Aggregator{
		targetRef: targetRef,
		events:    []Event{},
		resources: []domain.Resource{},
	}
}

// AddEvent inserts a summary of resource into the timeline, keeping events
// sorted ascending by PerformedAt with insertion order breaking ties, and
// recomputes the occurrence period.
func (a *Aggregator) AddEvent(resource domain.Resource) {
	a.nextSeq++
	a.resources = append(a.resources, resource)
	a.events = append(a.events, Event{
		ResourceID:  resource.ResourceID(),
		Kind:        resource.Kind(),
		Summary:     resource.Summary(),
		PerformedAt: resource.PerformedTime(),
		Seq:         a.nextSeq,
	})

	sort.SliceStable(a.events, func(i, j int) bool {
		if a.events[i].PerformedAt.Equal(a.events[j].PerformedAt) {
			return a.events[i].Seq < a.events[j].Seq
		}
		return a.events[i].PerformedAt.Before(a.events[j].PerformedAt)
	})

	a.period = Period{
		Start: a.events[0].PerformedAt,
		End:   a.events[len(a.events)-1].PerformedAt,
	}
}

// Events returns a copy of the ordered timeline.
func (a *Aggregator) Events() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

func (a *Aggregator) OccurredPeriod() Period { return a.period }

// Bundle snapshots the aggregator into the exported provenance record.
func (a *Aggregator) Bundle() Bundle {
	return Bundle{
		TargetRef:      a.targetRef,
		Events:         a.Events(),
		OccurredPeriod: a.period,
		Scores:         a.ScoreBreakdown(),
		Composite:      a.Score(),
	}
}
