package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/inference"
	"github.com/Harshitk-cp/factgate/internal/lifecycle"
	"github.com/Harshitk-cp/factgate/internal/rules"
	"github.com/Harshitk-cp/factgate/internal/store"
)

func newTestGateway(t *testing.T, rs *domain.RuleSet) (*Gateway, *store.MemoryStore) {
	t.Helper()
	if rs == nil {
		rs = rules.Default()
	}
	s := store.NewMemoryStore()
	lm := lifecycle.NewManager(s, zap.NewNop())
	return NewGateway(lm, rs, inference.DefaultMaxIterations, NewEventHub(4, zap.NewNop()), zap.NewNop()), s
}

func mustRules(t *testing.T, yaml string) *domain.RuleSet {
	t.Helper()
	rs, err := rules.Parse([]byte(yaml))
	require.NoError(t, err)
	return rs
}

func readGraph(t *testing.T, s domain.FactStore, id domain.GraphID) *domain.Graph {
	t.Helper()
	facts, err := s.ReadAll(context.Background(), id)
	require.NoError(t, err)
	return domain.NewGraph(facts...)
}

var (
	aquariumType   = domain.TypeFact("tourism:DubaiAquarium", "tourism:Attraction")
	aquariumRating = domain.NewFact("tourism:DubaiAquarium", "tourism:hasRating", domain.NewDecimal(4.6))
	hotelRating    = domain.NewFact("tourism:HotelX", "tourism:hasRating", domain.NewDecimal(6.0))
	hotelFamilyNo  = domain.NewFact("tourism:HotelX", "tourism:isFamilyFriendly", domain.NewBoolean(false))
	hotelFamilyYes = domain.NewFact("tourism:HotelX", "tourism:isFamilyFriendly", domain.NewBoolean(true))
)

func dubaiFacts() []domain.Fact {
	return []domain.Fact{
		domain.TypeFact("tourism:Dubai", "tourism:City"),
		domain.NewFact("tourism:Dubai", "tourism:hasName", domain.NewString("Dubai")),
		domain.NewFact("tourism:Dubai", "tourism:isCoastal", domain.NewBoolean(true)),
		aquariumType,
		domain.NewFact("tourism:DubaiAquarium", "tourism:locatedIn", domain.NewRef("tourism:Dubai")),
		domain.NewFact("tourism:DubaiAquarium", "tourism:hasAmenity", domain.NewString("Playground")),
		aquariumRating,
	}
}

func TestSubmitScenarioAAdmitsValidAttraction(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	admitted := testutil.ToFloat64(submissionsTotal.WithLabelValues("ADMITTED", ""))

	res, err := gw.Submit(ctx, "ingest", []domain.Fact{aquariumType, aquariumRating})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAdmitted, res.Status)
	assert.Equal(t, domain.ReasonNone, res.Reason)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Contradictions)
	assert.Equal(t, 2, res.Proposed)

	assert.True(t, readGraph(t, s, domain.ConsensusGraph).Equal(domain.NewGraph(aquariumType, aquariumRating)))
	assert.Zero(t, readGraph(t, s, domain.WorkspaceGraph("ingest")).Len())
	assert.Zero(t, readGraph(t, s, domain.MainGraph).Len())
	assert.Equal(t, admitted+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("ADMITTED", "")))
}

func TestSubmitScenarioBRejectsOutOfRangeRating(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	res, err := gw.Submit(ctx, "collect", []domain.Fact{hotelRating})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Status)
	assert.Equal(t, domain.ReasonShapeViolation, res.Reason)
	require.Len(t, res.Violations, 1)

	v := res.Violations[0]
	assert.Equal(t, "tourism:HotelX", v.Subject)
	assert.Equal(t, "tourism:hasRating", v.Property)
	assert.Equal(t, "rating-range", v.ConstraintID)
	assert.Equal(t, "hasRating 6.0 exceeds maximum 5", v.Reason)

	assert.Zero(t, readGraph(t, s, domain.ConsensusGraph).Len())
	assert.Zero(t, readGraph(t, s, domain.WorkspaceGraph("collect")).Len(), "workspace is cleared after a decision")
}

func TestSubmitScenarioCRejectsContradiction(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	res, err := gw.Submit(ctx, "collect", []domain.Fact{hotelFamilyNo})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAdmitted, res.Status)

	res, err = gw.Submit(ctx, "reason", []domain.Fact{hotelFamilyYes})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Status)
	assert.Equal(t, domain.ReasonContradiction, res.Reason)
	assert.Empty(t, res.Violations)
	require.Len(t, res.Contradictions, 1)

	c := res.Contradictions[0]
	assert.Equal(t, "family-friendly-functional", c.RuleID)
	assert.True(t, c.Involves(hotelFamilyNo))
	assert.True(t, c.Involves(hotelFamilyYes))

	assert.True(t, readGraph(t, s, domain.ConsensusGraph).Equal(domain.NewGraph(hotelFamilyNo)))
}

func TestSubmitRejectsContradictionEnabledByDerivation(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	museum := "tourism:MuseumX"
	_, err := gw.Submit(ctx, "ingest", []domain.Fact{
		domain.TypeFact(museum, "tourism:Attraction"),
		domain.NewFact(museum, "tourism:hasMinAge", domain.NewInteger(16)),
	})
	require.NoError(t, err)
	before := readGraph(t, s, domain.ConsensusGraph)

	// The playground makes the museum family friendly, which the derived
	// not-family-friendly classification excludes. Neither type fact is
	// proposed.
	res, err := gw.Submit(ctx, "collect", []domain.Fact{
		domain.NewFact(museum, "tourism:hasAmenity", domain.NewString("Playground")),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Status)
	require.Len(t, res.Contradictions, 1)
	assert.Equal(t, "family-friendly-disjoint", res.Contradictions[0].RuleID)
	assert.True(t, readGraph(t, s, domain.ConsensusGraph).Equal(before))
}

func TestSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	first, err := gw.Submit(ctx, "ingest", dubaiFacts())
	require.NoError(t, err)
	require.Equal(t, domain.StatusAdmitted, first.Status)
	assert.Len(t, first.Derived, 6)
	consensus := readGraph(t, s, domain.ConsensusGraph)

	second, err := gw.Submit(ctx, "ingest", dubaiFacts())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAdmitted, second.Status)
	assert.Empty(t, second.Derived)
	assert.True(t, readGraph(t, s, domain.ConsensusGraph).Equal(consensus))
}

func TestRejectedSubmissionLeavesSharedGraphsUntouched(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	_, err := gw.Submit(ctx, "ingest", dubaiFacts())
	require.NoError(t, err)
	_, err = gw.CommitCycle(ctx)
	require.NoError(t, err)
	_, err = gw.Submit(ctx, "collect", []domain.Fact{hotelFamilyNo})
	require.NoError(t, err)

	main := readGraph(t, s, domain.MainGraph)
	consensus := readGraph(t, s, domain.ConsensusGraph)

	bad := []domain.Fact{
		hotelRating,
		domain.NewFact("tourism:DubaiAquarium", "tourism:locatedIn", domain.NewRef("tourism:AbuDhabi")),
	}
	res, err := gw.Submit(ctx, "reason", bad)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, res.Status)
	// Both the range violation and the class violation on the new location
	// are reported together with the functional contradiction.
	assert.Len(t, res.Violations, 2)
	assert.NotEmpty(t, res.Contradictions)

	assert.Equal(t, main.Facts(), readGraph(t, s, domain.MainGraph).Facts())
	assert.Equal(t, consensus.Facts(), readGraph(t, s, domain.ConsensusGraph).Facts())
}

func TestSubmitEvaluatesWholeWorkspace(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	require.NoError(t, gw.Stage(ctx, "ingest", []domain.Fact{aquariumType}))
	require.NoError(t, gw.Stage(ctx, "ingest", []domain.Fact{aquariumRating}))

	ws, err := gw.Workspace(ctx, "ingest")
	require.NoError(t, err)
	assert.Equal(t, 2, ws.Len())

	res, err := gw.Submit(ctx, "ingest", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAdmitted, res.Status)
	assert.Equal(t, 2, res.Proposed)
	assert.Equal(t, 2, readGraph(t, s, domain.ConsensusGraph).Len())
}

func TestSubmitEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("empty submission", func(t *testing.T) {
		gw, _ := newTestGateway(t, nil)
		res, err := gw.Submit(ctx, "ingest", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, res.Status)
		assert.Equal(t, domain.ReasonEmptySubmission, res.Reason)
	})

	t.Run("invalid fact is rejected before staging", func(t *testing.T) {
		gw, s := newTestGateway(t, nil)
		res, err := gw.Submit(ctx, "ingest", []domain.Fact{
			aquariumType,
			domain.NewFact("tourism:HotelX", "", domain.NewDecimal(4)),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, res.Status)
		assert.Equal(t, domain.ReasonInvalidFact, res.Reason)
		assert.NotEmpty(t, res.Detail)
		assert.Zero(t, readGraph(t, s, domain.WorkspaceGraph("ingest")).Len())
	})

	t.Run("missing producer", func(t *testing.T) {
		gw, _ := newTestGateway(t, nil)
		_, err := gw.Submit(ctx, "", []domain.Fact{aquariumType})
		assert.True(t, errors.Is(err, ErrInvalidProducer))

		err = gw.Stage(ctx, "", []domain.Fact{aquariumType})
		assert.True(t, errors.Is(err, ErrInvalidProducer))
	})

	t.Run("stage rejects invalid facts", func(t *testing.T) {
		gw, _ := newTestGateway(t, nil)
		err := gw.Stage(ctx, "ingest", []domain.Fact{domain.NewFact("", "tourism:hasName", domain.NewString("x"))})
		assert.True(t, errors.Is(err, ErrInvalidFact))
	})
}

const runawayRules = `
name: runaway
rules:
  - id: chain
    when:
      - ?n rdf:type ex:Node
    then:
      - ex:S_{n} rdf:type ex:Node
`

func TestSubmitEngineFault(t *testing.T) {
	ctx := context.Background()
	rs := mustRules(t, runawayRules)
	s := store.NewMemoryStore()
	gw := NewGateway(lifecycle.NewManager(s, zap.NewNop()), rs, 3, NewEventHub(1, zap.NewNop()), zap.NewNop())

	seed := domain.TypeFact("ex:A", "ex:Node")
	res, err := gw.Submit(ctx, "ingest", []domain.Fact{seed})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEngineFault))
	assert.True(t, errors.Is(err, inference.ErrIterationBound))
	assert.NotEmpty(t, errors.GetAllHints(err))

	require.NotNil(t, res)
	assert.Equal(t, domain.StatusRejected, res.Status)
	assert.Equal(t, domain.ReasonEngineFault, res.Reason)
	assert.Zero(t, readGraph(t, s, domain.ConsensusGraph).Len())
	// Faults are not decisions; the staged facts stay for a retry.
	assert.True(t, readGraph(t, s, domain.WorkspaceGraph("ingest")).Contains(seed))
}

func TestSubmitStoreFault(t *testing.T) {
	ctx := context.Background()
	ms := new(MockFactStore)
	ws := domain.WorkspaceGraph("ingest")

	ms.On("Add", mock.Anything, ws, mock.Anything).Return(nil)
	ms.On("ReadAll", mock.Anything, ws).Return([]domain.Fact{aquariumType}, nil)
	ms.On("ReadAll", mock.Anything, domain.ConsensusGraph).Return(nil, errors.New("connection refused"))

	gw := NewGateway(lifecycle.NewManager(ms, zap.NewNop()), rules.Default(), 0, nil, zap.NewNop())

	res, err := gw.Submit(ctx, "ingest", []domain.Fact{aquariumType})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreFault))
	assert.Equal(t, domain.StatusRejected, res.Status)
	assert.Equal(t, domain.ReasonStoreFault, res.Reason)

	ms.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
	ms.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything)
	ms.AssertExpectations(t)
}

func TestSubmitAdmitFailureIsStoreFault(t *testing.T) {
	ctx := context.Background()
	ms := new(MockFactStore)
	ws := domain.WorkspaceGraph("ingest")

	ms.On("Add", mock.Anything, ws, mock.Anything).Return(nil)
	ms.On("ReadAll", mock.Anything, ws).Return([]domain.Fact{aquariumType}, nil)
	ms.On("ReadAll", mock.Anything, domain.ConsensusGraph).Return([]domain.Fact{}, nil)
	ms.On("ReadAll", mock.Anything, domain.MainGraph).Return([]domain.Fact{}, nil)
	ms.On("Apply", mock.Anything, mock.Anything).Return(errors.New("transaction aborted"))

	gw := NewGateway(lifecycle.NewManager(ms, zap.NewNop()), rules.Default(), 0, nil, zap.NewNop())

	res, err := gw.Submit(ctx, "ingest", []domain.Fact{aquariumType})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreFault))
	assert.Equal(t, domain.StatusRejected, res.Status)
	assert.Empty(t, res.Derived)
	ms.AssertExpectations(t)
}

func TestConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	gw, s := newTestGateway(t, nil)

	const producers = 8
	var wg sync.WaitGroup
	results := make([]*domain.SubmitResult, producers)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("agent-%d", i)
			subject := fmt.Sprintf("tourism:Attraction%d", i)
			facts := []domain.Fact{
				domain.TypeFact(subject, "tourism:Attraction"),
				domain.NewFact(subject, "tourism:hasRating", domain.NewDecimal(float64(i%5))),
			}
			assert.NoError(t, gw.Stage(ctx, p, facts[:1]))
			res, err := gw.Submit(ctx, p, facts[1:])
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.NotNil(t, res, i)
		assert.Equal(t, domain.StatusAdmitted, res.Status, i)
		assert.Equal(t, 2, res.Proposed, i)
	}
	assert.Equal(t, 2*producers, readGraph(t, s, domain.ConsensusGraph).Len())
}
