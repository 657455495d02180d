package provenance

import (
	"context"
	"fmt"

	"github.com/herbtrace/herbtrace-backend/internal/data/repos/batches"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
	"github.com/herbtrace/herbtrace-backend/internal/workflow"
)

// Service rebuilds provenance bundles from the persisted batch collection.
type Service struct {
	repo batches.BatchRepo
	log  *logger.Logger
}

func NewService(repo batches.BatchRepo, baseLog *logger.Logger) *Service {
	return &Service{repo: repo, log: baseLog.With("service", "ProvenanceService")}
}

// BundleForBatch loads every stored resource of the batch behind qrCode,
// decodes the tagged payloads, and aggregates them into a bundle. Rows come
// back in (performed_at, seq) order, so replaying them through the
// aggregator reproduces the persisted timeline exactly.
func (s *Service) BundleForBatch(ctx context.Context, qrCode string) (*Bundle, error) {
	dbc := dbctx.From(ctx)
	batch, err := s.repo.GetByQRCode(dbc, qrCode)
	if err != nil {
		return nil, fmt.Errorf("load batch %q: %w", qrCode, err)
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: qr code %q", workflow.ErrBatchNotFound, qrCode)
	}

	rows, err := s.repo.GetResources(dbc, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("load resources for %q: %w", qrCode, err)
	}

	agg := NewAggregator(qrCode)
	for _, row := range rows {
		resource, err := row.Decode()
		if err != nil {
			s.log.Warn("skipping undecodable resource row",
				"qrCode", qrCode,
				"seq", row.Seq,
				"kind", row.Kind,
				"error", err,
			)
			continue
		}
		agg.AddEvent(resource)
	}

	bundle := agg.Bundle()
	return &bundle, nil
}
