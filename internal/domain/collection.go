package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FarmerInfo identifies the collecting farmer as reported at the source.
type FarmerInfo struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	FarmerID string `json:"farmerId"`
	Village  string `json:"village"`
	District string `json:"district"`
	State    string `json:"state"`
}

// CollectionEvent records the harvest of raw herb material. It is the head
// of a batch's resource chain, so PriorResourceRef is nil.
type CollectionEvent struct {
	ID            uuid.UUID  `json:"id"`
	BotanicalName string     `json:"botanicalName"`
	CommonName    string     `json:"commonName"`
	PartUsed      string     `json:"partUsed"`
	Qty           Quantity   `json:"quantity"`
	Farmer        FarmerInfo `json:"farmer"`
	Location      GeoPoint   `json:"location"`
	PerformedAt   time.Time  `json:"performedAt"`
	PerformerRole Role       `json:"performerRole"`
	Docs          DocRefs    `json:"documentationRefs"`
}

type CollectionParams struct {
	ID            uuid.UUID
	BotanicalName string
	CommonName    string
	PartUsed      string
	Qty           Quantity
	Farmer        FarmerInfo
	Location      GeoPoint
	PerformedAt   time.Time
	Docs          DocRefs
}

// NewCollectionEvent fills typed defaults for every unset optional field so
// nothing downstream ever sees a nil slice or map.
func NewCollectionEvent(p CollectionParams) *CollectionEvent {
	performedAt := p.PerformedAt
	if performedAt.IsZero() {
		performedAt = time.Now().UTC()
	}
	return &CollectionEvent{
		ID:            ensureID(p.ID),
		BotanicalName: p.BotanicalName,
		CommonName:    p.CommonName,
		PartUsed:      p.PartUsed,
		Qty:           p.Qty,
		Farmer:        p.Farmer,
		Location:      p.Location,
		PerformedAt:   performedAt,
		PerformerRole: RoleCollector,
		Docs:          p.Docs.normalized(),
	}
}

func (c *CollectionEvent) ResourceID() uuid.UUID      { return c.ID }
func (c *CollectionEvent) Kind() ResourceKind         { return KindCollection }
func (c *CollectionEvent) PerformedTime() time.Time   { return c.PerformedAt }
func (c *CollectionEvent) Performer() Role            { return c.PerformerRole }
func (c *CollectionEvent) PriorRef() *uuid.UUID       { return nil }
func (c *CollectionEvent) DocumentationRefs() DocRefs { return c.Docs }

func (c *CollectionEvent) Validate() ValidationResult {
	res := newValidationResult()
	if c.BotanicalName == "" {
		res = res.merge("botanical name is required")
	}
	if c.PartUsed == "" {
		res = res.merge("part used is required")
	}
	if c.Qty.Value <= 0 {
		res = res.merge("collected quantity must be greater than zero")
	}
	if c.Qty.Unit == "" {
		res = res.merge("quantity unit is required")
	}
	if c.Farmer.Name == "" {
		res = res.merge("farmer name is required")
	}
	if c.Farmer.FarmerID == "" {
		res = res.merge("farmer id is required")
	}
	if c.Location.IsZero() {
		res = res.merge("collection location coordinates are required")
	}
	if c.PerformedAt.IsZero() {
		res = res.merge("collection timestamp is required")
	}
	return res
}

func (c *CollectionEvent) Summary() string {
	place := c.Farmer.Village
	if place == "" {
		place = c.Farmer.District
	}
	if place == "" {
		place = "unrecorded location"
	}
	name := c.BotanicalName
	if name == "" {
		name = c.CommonName
	}
	return fmt.Sprintf("Collected %g %s of %s from %s", c.Qty.Value, c.Qty.Unit, name, place)
}

func (c *CollectionEvent) CanonicalJSON() ([]byte, error) {
	return json.Marshal(c)
}
