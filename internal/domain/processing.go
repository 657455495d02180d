package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProcessingStep records one transformation of batch material (drying,
// grinding, extraction). PriorResourceRef links to the resource that
// produced its input, forming the batch's chain.
type ProcessingStep struct {
	ID               uuid.UUID  `json:"id"`
	Method           string     `json:"method"`
	InputQty         Quantity   `json:"inputQuantity"`
	OutputQty        Quantity   `json:"outputQuantity"`
	FacilityRef      string     `json:"facilityRef"`
	TemperatureC     float64    `json:"temperatureC"`
	DurationMinutes  int        `json:"durationMinutes"`
	PerformedAt      time.Time  `json:"performedAt"`
	PerformerRole    Role       `json:"performerRole"`
	Docs             DocRefs    `json:"documentationRefs"`
	PriorResourceRef *uuid.UUID `json:"priorResourceRef"`
}

type ProcessingParams struct {
	ID               uuid.UUID
	Method           string
	InputQty         Quantity
	OutputQty        Quantity
	FacilityRef      string
	TemperatureC     float64
	DurationMinutes  int
	PerformedAt      time.Time
	Docs             DocRefs
	PriorResourceRef *uuid.UUID
}

func NewProcessingStep(p ProcessingParams) *ProcessingStep {
	performedAt := p.PerformedAt
	if performedAt.IsZero() {
		performedAt = time.Now().UTC()
	}
	return &ProcessingStep{
		ID:               ensureID(p.ID),
		Method:           p.Method,
		InputQty:         p.InputQty,
		OutputQty:        p.OutputQty,
		FacilityRef:      p.FacilityRef,
		TemperatureC:     p.TemperatureC,
		DurationMinutes:  p.DurationMinutes,
		PerformedAt:      performedAt,
		PerformerRole:    RoleProcessor,
		Docs:             p.Docs.normalized(),
		PriorResourceRef: p.PriorResourceRef,
	}
}

func (s *ProcessingStep) ResourceID() uuid.UUID      { return s.ID }
func (s *ProcessingStep) Kind() ResourceKind         { return KindProcessing }
func (s *ProcessingStep) PerformedTime() time.Time   { return s.PerformedAt }
func (s *ProcessingStep) Performer() Role            { return s.PerformerRole }
func (s *ProcessingStep) PriorRef() *uuid.UUID       { return s.PriorResourceRef }
func (s *ProcessingStep) DocumentationRefs() DocRefs { return s.Docs }

func (s *ProcessingStep) Validate() ValidationResult {
	res := newValidationResult()
	if s.Method == "" {
		res = res.merge("processing method is required")
	}
	if s.InputQty.Value <= 0 {
		res = res.merge("input quantity must be greater than zero")
	}
	if s.OutputQty.Value <= 0 {
		res = res.merge("output quantity must be greater than zero")
	}
	if s.FacilityRef == "" {
		res = res.merge("processing facility reference is required")
	}
	if s.PerformedAt.IsZero() {
		res = res.merge("processing timestamp is required")
	}
	return res
}

func (s *ProcessingStep) Summary() string {
	return fmt.Sprintf("Processed %g %s into %g %s by %s",
		s.InputQty.Value, s.InputQty.Unit, s.OutputQty.Value, s.OutputQty.Unit, s.Method)
}

func (s *ProcessingStep) CanonicalJSON() ([]byte, error) {
	return json.Marshal(s)
}
