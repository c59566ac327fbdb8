package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/inference"
	"github.com/Harshitk-cp/factgate/internal/lifecycle"
)

// ErrNoLedger is returned by Provenance when the fact store keeps no ledger.
var ErrNoLedger = lifecycle.ErrNoLedger

// Provenance lists ledger records matching filter.
func (g *Gateway) Provenance(ctx context.Context, filter domain.ProvenanceFilter) ([]domain.ProvenanceRecord, error) {
	records, err := g.graphs.Provenance(ctx, filter)
	if err != nil {
		if errors.Is(err, lifecycle.ErrNoLedger) {
			return nil, err
		}
		return nil, storeFault(err)
	}
	return records, nil
}

// recordSubmission writes the asserted facts of an admitted submission and
// the facts they newly entail.
func (g *Gateway) recordSubmission(ctx context.Context, res *domain.SubmitResult, proposed *domain.Graph) {
	now := time.Now().UTC()
	base := domain.ProvenanceRecord{
		Producer:       res.Producer,
		Event:          domain.EventSubmission,
		EventID:        res.ID,
		RuleSetVersion: g.ruleSetVersion,
		RecordedAt:     now,
	}

	records := make([]domain.ProvenanceRecord, 0, proposed.Len()+len(res.Derived))
	for _, f := range proposed.Facts() {
		r := base
		r.Fact, r.Origin, r.Graph = f, domain.OriginAsserted, domain.ConsensusGraph
		records = append(records, r)
	}
	for _, d := range res.Derived {
		r := base
		r.Fact, r.Origin, r.RuleIDs = d.Fact, domain.OriginDerived, d.RuleIDs
		records = append(records, r)
	}
	g.record(ctx, domain.EventSubmission, res.ID, records)
}

// recordCommit writes every derived fact a committed cycle stored, in main or
// in quarantine.
func (g *Gateway) recordCommit(ctx context.Context, res *domain.CommitResult, all inference.Result, quarantined *domain.Graph) {
	now := time.Now().UTC()
	base := domain.ProvenanceRecord{
		Origin:         domain.OriginDerived,
		Event:          domain.EventCommit,
		EventID:        res.CycleID,
		RuleSetVersion: g.ruleSetVersion,
		RecordedAt:     now,
	}

	var records []domain.ProvenanceRecord
	for _, d := range res.Derived {
		r := base
		r.Fact, r.RuleIDs, r.Graph = d.Fact, d.RuleIDs, domain.MainGraph
		records = append(records, r)
	}
	for _, d := range all.Derived {
		if !quarantined.Contains(d.Fact) {
			continue
		}
		r := base
		r.Fact, r.RuleIDs, r.Graph = d.Fact, d.RuleIDs, domain.QuarantineGraph
		records = append(records, r)
	}
	g.record(ctx, domain.EventCommit, res.CycleID, records)
}

// record appends to the ledger after the decision has been stored. A failed
// append is logged and counted; the decision stands.
func (g *Gateway) record(ctx context.Context, event domain.ProvenanceEvent, id uuid.UUID, records []domain.ProvenanceRecord) {
	if !g.graphs.HasLedger() || len(records) == 0 {
		return
	}
	if err := g.graphs.RecordProvenance(ctx, records); err != nil {
		provenanceWritesTotal.WithLabelValues(string(event), "error").Inc()
		g.logger.Error("failed to record provenance",
			zap.String("event", string(event)),
			zap.String("event_id", id.String()),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
		return
	}
	provenanceWritesTotal.WithLabelValues(string(event), "ok").Inc()
}
