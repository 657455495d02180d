package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QualityTest records a laboratory analysis of batch material.
type QualityTest struct {
	ID                uuid.UUID         `json:"id"`
	TestTypes         []string          `json:"testTypes"`
	Results           map[string]string `json:"results"`
	Passed            bool              `json:"passed"`
	LabRef            string            `json:"labRef"`
	CertificateNumber string            `json:"certificateNumber"`
	PerformedAt       time.Time         `json:"performedAt"`
	PerformerRole     Role              `json:"performerRole"`
	Docs              DocRefs           `json:"documentationRefs"`
	PriorResourceRef  *uuid.UUID        `json:"priorResourceRef"`
}

type TestParams struct {
	ID                uuid.UUID
	TestTypes         []string
	Results           map[string]string
	Passed            bool
	LabRef            string
	CertificateNumber string
	PerformedAt       time.Time
	Docs              DocRefs
	PriorResourceRef  *uuid.UUID
}

func NewQualityTest(p TestParams) *QualityTest {
	performedAt := p.PerformedAt
	if performedAt.IsZero() {
		performedAt = time.Now().UTC()
	}
	types := p.TestTypes
	if types == nil {
		types = []string{}
	}
	results := p.Results
	if results == nil {
		results = map[string]string{}
	}
	return &QualityTest{
		ID:                ensureID(p.ID),
		TestTypes:         types,
		Results:           results,
		Passed:            p.Passed,
		LabRef:            p.LabRef,
		CertificateNumber: p.CertificateNumber,
		PerformedAt:       performedAt,
		PerformerRole:     RoleLaboratory,
		Docs:              p.Docs.normalized(),
		PriorResourceRef:  p.PriorResourceRef,
	}
}

func (t *QualityTest) ResourceID() uuid.UUID      { return t.ID }
func (t *QualityTest) Kind() ResourceKind         { return KindTest }
func (t *QualityTest) PerformedTime() time.Time   { return t.PerformedAt }
func (t *QualityTest) Performer() Role            { return t.PerformerRole }
func (t *QualityTest) PriorRef() *uuid.UUID       { return t.PriorResourceRef }
func (t *QualityTest) DocumentationRefs() DocRefs { return t.Docs }

func (t *QualityTest) Validate() ValidationResult {
	res := newValidationResult()
	if len(t.TestTypes) == 0 {
		res = res.merge("at least one test type is required")
	}
	if len(t.Results) == 0 {
		res = res.merge("test results are required")
	}
	if t.LabRef == "" {
		res = res.merge("laboratory reference is required")
	}
	if t.PerformedAt.IsZero() {
		res = res.merge("test timestamp is required")
	}
	return res
}

func (t *QualityTest) Summary() string {
	verdict := "failed"
	if t.Passed {
		verdict = "passed"
	}
	types := strings.Join(t.TestTypes, ", ")
	if types == "" {
		types = "quality"
	}
	return fmt.Sprintf("Tested (%s) at %s: %s", types, t.LabRef, verdict)
}

// CanonicalJSON relies on encoding/json emitting struct fields in
// declaration order and map keys sorted, so output is byte-stable.
func (t *QualityTest) CanonicalJSON() ([]byte, error) {
	return json.Marshal(t)
}
