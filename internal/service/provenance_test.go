package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/inference"
	"github.com/Harshitk-cp/factgate/internal/lifecycle"
	"github.com/Harshitk-cp/factgate/internal/rules"
	"github.com/Harshitk-cp/factgate/internal/store"
)

func TestAdmittedSubmissionRecordsProvenance(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, nil)

	res, err := gw.Submit(ctx, "ingest", dubaiFacts())
	require.NoError(t, err)
	require.Equal(t, domain.StatusAdmitted, res.Status)
	require.NotEmpty(t, res.Derived)

	asserted, err := gw.Provenance(ctx, domain.ProvenanceFilter{EventID: res.ID, Origin: domain.OriginAsserted})
	require.NoError(t, err)
	got := make([]domain.Fact, 0, len(asserted))
	for _, r := range asserted {
		assert.Equal(t, "ingest", r.Producer)
		assert.Equal(t, domain.EventSubmission, r.Event)
		assert.Equal(t, domain.ConsensusGraph, r.Graph)
		assert.Empty(t, r.RuleIDs)
		assert.NotEmpty(t, r.RuleSetVersion)
		got = append(got, r.Fact)
	}
	assert.ElementsMatch(t, dubaiFacts(), got)

	derived, err := gw.Provenance(ctx, domain.ProvenanceFilter{EventID: res.ID, Origin: domain.OriginDerived})
	require.NoError(t, err)
	require.Len(t, derived, len(res.Derived))
	for i, r := range derived {
		assert.Equal(t, res.Derived[i].Fact, r.Fact)
		assert.Equal(t, res.Derived[i].RuleIDs, r.RuleIDs)
		assert.Equal(t, "ingest", r.Producer)
		assert.Empty(t, r.Graph, "derived facts are not stored on admission")
	}
}

func TestRejectedSubmissionRecordsNothing(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, nil)

	res, err := gw.Submit(ctx, "collect", []domain.Fact{hotelRating})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, res.Status)

	records, err := gw.Provenance(ctx, domain.ProvenanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommitRecordsDerivedProvenance(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, nil)

	_, err := gw.Submit(ctx, "ingest", dubaiFacts())
	require.NoError(t, err)
	res, err := gw.CommitCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.CommitCommitted, res.State)
	require.NotEmpty(t, res.Derived)

	records, err := gw.Provenance(ctx, domain.ProvenanceFilter{EventID: res.CycleID})
	require.NoError(t, err)
	require.Len(t, records, len(res.Derived))
	for i, r := range records {
		assert.Equal(t, res.Derived[i].Fact, r.Fact)
		assert.Equal(t, res.Derived[i].RuleIDs, r.RuleIDs)
		assert.Equal(t, domain.OriginDerived, r.Origin)
		assert.Equal(t, domain.EventCommit, r.Event)
		assert.Equal(t, domain.MainGraph, r.Graph)
		assert.Empty(t, r.Producer)
	}
}

func TestCommitRecordsQuarantinedDerivations(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	museum := "tourism:MuseumX"
	_, err := gw.Submit(ctx, "ingest", []domain.Fact{
		domain.TypeFact(museum, "tourism:Attraction"),
		domain.NewFact(museum, "tourism:hasMinAge", domain.NewInteger(16)),
	})
	require.NoError(t, err)
	_, err = gw.CommitCycle(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, domain.ConsensusGraph, []domain.Fact{
		domain.NewFact(museum, "tourism:hasAmenity", domain.NewString("Playground")),
	}))
	res, err := gw.CommitCycle(ctx)
	require.NoError(t, err)
	require.Len(t, res.Quarantined, 1)

	records, err := gw.Provenance(ctx, domain.ProvenanceFilter{EventID: res.CycleID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TypeFact(museum, "tourism:FamilyFriendlyAttraction"), records[0].Fact)
	assert.Equal(t, domain.QuarantineGraph, records[0].Graph)
	assert.Equal(t, []string{"family-friendly-playground"}, records[0].RuleIDs)
}

func TestProvenanceWithoutLedger(t *testing.T) {
	gw := NewGateway(lifecycle.NewManager(new(MockFactStore), zap.NewNop()), rules.Default(), 0, nil, zap.NewNop())

	_, err := gw.Provenance(context.Background(), domain.ProvenanceFilter{})
	assert.True(t, errors.Is(err, ErrNoLedger))
}

// failingLedger stores graphs but refuses every ledger append.
type failingLedger struct {
	*store.MemoryStore
}

func (f failingLedger) AppendProvenance(context.Context, []domain.ProvenanceRecord) error {
	return errors.New("ledger disk full")
}

func TestFailedProvenanceAppendKeepsDecision(t *testing.T) {
	ctx := context.Background()
	s := failingLedger{store.NewMemoryStore()}
	gw := NewGateway(lifecycle.NewManager(s, zap.NewNop()), rules.Default(),
		inference.DefaultMaxIterations, nil, zap.NewNop())

	failed := testutil.ToFloat64(provenanceWritesTotal.WithLabelValues("submission", "error"))

	res, err := gw.Submit(ctx, "ingest", []domain.Fact{aquariumType, aquariumRating})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAdmitted, res.Status)
	assert.True(t, readGraph(t, s, domain.ConsensusGraph).Equal(domain.NewGraph(aquariumType, aquariumRating)))
	assert.Equal(t, failed+1, testutil.ToFloat64(provenanceWritesTotal.WithLabelValues("submission", "error")))

	records, err := gw.Provenance(ctx, domain.ProvenanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}
