package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResourceKind tags the three supply-chain activity records. Aggregation and
// scoring switch exhaustively on it instead of dispatching on raw strings.
type ResourceKind string

const (
	KindCollection ResourceKind = "collection"
	KindProcessing ResourceKind = "processing"
	KindTest       ResourceKind = "test"
)

// RequiredKinds is the set a fully-documented batch must cover.
var RequiredKinds = []ResourceKind{KindCollection, KindProcessing, KindTest}

// ValidationResult lists every missing or invalid mandatory field as a
// human-readable message. It is a value, never an error: callers branch on
// Valid and show Errors inline.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func (v ValidationResult) merge(msgs ...string) ValidationResult {
	out := ValidationResult{Valid: v.Valid, Errors: append([]string{}, v.Errors...)}
	for _, m := range msgs {
		if m != "" {
			out.Errors = append(out.Errors, m)
			out.Valid = false
		}
	}
	return out
}

func newValidationResult() ValidationResult {
	return ValidationResult{Valid: true, Errors: []string{}}
}

// DocRefs holds the documentation attached to a resource. Each sub-field
// feeds the transparency score independently.
type DocRefs struct {
	Photos       []string `json:"photos"`
	Certificates []string `json:"certificates"`
	Reports      []string `json:"reports"`
	Notes        string   `json:"notes"`
}

func (d DocRefs) normalized() DocRefs {
	if d.Photos == nil {
		d.Photos = []string{}
	}
	if d.Certificates == nil {
		d.Certificates = []string{}
	}
	if d.Reports == nil {
		d.Reports = []string{}
	}
	return d
}

// FilledFields reports how many of the documentation sub-fields carry data,
// and how many were examined.
func (d DocRefs) FilledFields() (filled, examined int) {
	examined = 4
	if len(d.Photos) > 0 {
		filled++
	}
	if len(d.Certificates) > 0 {
		filled++
	}
	if len(d.Reports) > 0 {
		filled++
	}
	if d.Notes != "" {
		filled++
	}
	return filled, examined
}

// GeoPoint is a GPS fix captured at collection time.
type GeoPoint struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	CapturedAt time.Time `json:"capturedAt"`
}

func (g GeoPoint) IsZero() bool {
	return g.Latitude == 0 && g.Longitude == 0
}

// Quantity is an amount plus its unit of measure.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Resource is one immutable supply-chain activity record. Status changes
// happen on the parent Batch; a Resource is never mutated after creation.
type Resource interface {
	ResourceID() uuid.UUID
	Kind() ResourceKind
	PerformedTime() time.Time
	Performer() Role
	PriorRef() *uuid.UUID
	Validate() ValidationResult
	Summary() string
	DocumentationRefs() DocRefs
	CanonicalJSON() ([]byte, error)
}

// DecodeResource rebuilds a tagged variant from its stored canonical JSON.
func DecodeResource(kind ResourceKind, payload []byte) (Resource, error) {
	switch kind {
	case KindCollection:
		var r CollectionEvent
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode collection resource: %w", err)
		}
		r.Docs = r.Docs.normalized()
		return &r, nil
	case KindProcessing:
		var r ProcessingStep
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode processing resource: %w", err)
		}
		r.Docs = r.Docs.normalized()
		return &r, nil
	case KindTest:
		var r QualityTest
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode test resource: %w", err)
		}
		r.Docs = r.Docs.normalized()
		if r.Results == nil {
			r.Results = map[string]string{}
		}
		return &r, nil
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}

func ensureID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}
