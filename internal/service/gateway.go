package service

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/inference"
	"github.com/Harshitk-cp/factgate/internal/lifecycle"
	"github.com/Harshitk-cp/factgate/internal/shape"
)

// Gateway admits producer submissions into consensus and promotes consensus
// into main. Submit and CommitCycle run one at a time system-wide; staging
// only serializes per producer.
type Gateway struct {
	graphs    *lifecycle.Manager
	validator *shape.Validator
	engine    *inference.Engine
	events    *EventHub
	logger    *zap.Logger

	ruleSetVersion string

	mu sync.Mutex
}

func NewGateway(graphs *lifecycle.Manager, rs *domain.RuleSet, maxIterations int, events *EventHub, logger *zap.Logger) *Gateway {
	return &Gateway{
		graphs:    graphs,
		validator: shape.NewValidator(rs.Constraints),
		engine:    inference.NewEngine(rs, maxIterations),
		events:    events,
		logger:    logger,

		ruleSetVersion: rs.Version,
	}
}

func (g *Gateway) Events() *EventHub {
	return g.events
}

func (g *Gateway) Graphs() *lifecycle.Manager {
	return g.graphs
}

func checkInput(producer string, facts []domain.Fact) error {
	if producer == "" {
		return ErrInvalidProducer
	}
	for i, f := range facts {
		if err := f.Validate(); err != nil {
			return errors.Mark(errors.Wrapf(err, "fact %d", i), ErrInvalidFact)
		}
	}
	return nil
}

// Stage writes facts to the producer's workspace without evaluating them.
func (g *Gateway) Stage(ctx context.Context, producer string, facts []domain.Fact) error {
	if err := checkInput(producer, facts); err != nil {
		return err
	}
	if err := g.graphs.Stage(ctx, producer, facts); err != nil {
		return storeFault(err)
	}
	return nil
}

// Workspace returns the facts currently staged by producer.
func (g *Gateway) Workspace(ctx context.Context, producer string) (*domain.Graph, error) {
	if producer == "" {
		return nil, ErrInvalidProducer
	}
	ws, err := g.graphs.Workspace(ctx, producer)
	if err != nil {
		return nil, storeFault(err)
	}
	return ws, nil
}

// evaluation is the outcome of validating and reasoning over a proposal.
type evaluation struct {
	report         domain.ValidationReport
	closure        *domain.Graph
	derived        inference.Result
	baseline       *domain.Graph
	contradictions []domain.Contradiction
}

// evaluate validates union and derives both union and baseline closures.
// The three computations share no mutable state and run concurrently.
func (g *Gateway) evaluate(union, baseline *domain.Graph) (*evaluation, error) {
	ev := &evaluation{}
	var eg errgroup.Group

	eg.Go(func() error {
		ev.report = g.validator.Validate(union)
		return nil
	})
	eg.Go(func() error {
		closure, res, err := g.engine.Closure(union)
		if err != nil {
			return err
		}
		ev.closure, ev.derived = closure, res
		ev.contradictions = g.engine.FindContradictions(closure)
		return nil
	})
	if baseline != nil {
		eg.Go(func() error {
			closure, _, err := g.engine.Closure(baseline)
			if err != nil {
				return err
			}
			ev.baseline = closure
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, engineFault(err)
	}
	return ev, nil
}

// Submit stages facts, then decides on everything in the producer's
// workspace. The proposal is admitted into consensus only when no violation
// touches a proposed subject and no contradiction stems from the proposal.
// A REJECTED result leaves consensus and main unchanged. Store and engine
// faults return a REJECTED result together with the error.
func (g *Gateway) Submit(ctx context.Context, producer string, facts []domain.Fact) (*domain.SubmitResult, error) {
	start := time.Now()
	res := &domain.SubmitResult{
		ID:             uuid.New(),
		Producer:       producer,
		Status:         domain.StatusReceived,
		Violations:     []domain.Violation{},
		Contradictions: []domain.Contradiction{},
		Derived:        []domain.DerivedFact{},
	}

	if err := checkInput(producer, facts); err != nil {
		if errors.Is(err, ErrInvalidProducer) {
			return nil, err
		}
		res.Proposed = len(facts)
		return g.reject(res, start, domain.ReasonInvalidFact, err.Error()), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	unlock := g.graphs.LockWorkspace(producer)
	defer unlock()

	if err := g.graphs.StageLocked(ctx, producer, facts); err != nil {
		return g.fault(res, start, domain.ReasonStoreFault, storeFault(err))
	}

	proposed, consensus, main, err := g.readSubmissionState(ctx, producer)
	if err != nil {
		return g.fault(res, start, domain.ReasonStoreFault, storeFault(err))
	}
	res.Proposed = proposed.Len()
	res.Status = domain.StatusValidating

	if proposed.Len() == 0 {
		return g.reject(res, start, domain.ReasonEmptySubmission, "no facts proposed"), nil
	}

	baseline := consensus.Union(main)
	ev, err := g.evaluate(baseline.Union(proposed), baseline)
	if err != nil {
		g.logger.Error("inference engine fault, check rule set configuration",
			zap.String("producer", producer),
			zap.Error(err),
		)
		return g.fault(res, start, domain.ReasonEngineFault, err)
	}
	res.Iterations = ev.derived.Iterations
	inferenceIterations.WithLabelValues("submit").Observe(float64(ev.derived.Iterations))

	subjects := proposed.Subjects()
	res.Violations = ev.report.Filter(func(v domain.Violation) bool {
		_, ok := subjects[v.Subject]
		return ok
	}).Violations
	res.Contradictions = introducedContradictions(ev, proposed)

	for _, d := range ev.derived.Derived {
		if !ev.baseline.Contains(d.Fact) {
			res.Derived = append(res.Derived, d)
		}
	}

	switch {
	case len(res.Violations) > 0:
		return g.rejectAndClear(ctx, res, start, domain.ReasonShapeViolation)
	case len(res.Contradictions) > 0:
		return g.rejectAndClear(ctx, res, start, domain.ReasonContradiction)
	}

	if err := g.graphs.Admit(ctx, producer, proposed.Facts()); err != nil {
		res.Derived = []domain.DerivedFact{}
		return g.fault(res, start, domain.ReasonStoreFault, storeFault(err))
	}

	res.Status = domain.StatusAdmitted
	g.finishSubmit(res, start)
	g.recordSubmission(ctx, res, proposed)
	return res, nil
}

func (g *Gateway) readSubmissionState(ctx context.Context, producer string) (proposed, consensus, main *domain.Graph, err error) {
	if proposed, err = g.graphs.Workspace(ctx, producer); err != nil {
		return nil, nil, nil, err
	}
	if consensus, err = g.graphs.Consensus(ctx); err != nil {
		return nil, nil, nil, err
	}
	if main, err = g.graphs.Main(ctx); err != nil {
		return nil, nil, nil, err
	}
	return proposed, consensus, main, nil
}

// introducedContradictions keeps contradictions that involve a proposed fact
// or that the baseline closure does not already hold. Contradiction rules
// relate pairs of facts, so a pair is pre-existing exactly when both facts
// are in the baseline closure.
func introducedContradictions(ev *evaluation, proposed *domain.Graph) []domain.Contradiction {
	out := []domain.Contradiction{}
	for _, c := range ev.contradictions {
		if proposed.Contains(c.A) || proposed.Contains(c.B) ||
			!ev.baseline.Contains(c.A) || !ev.baseline.Contains(c.B) {
			out = append(out, c)
		}
	}
	return out
}

func (g *Gateway) rejectAndClear(ctx context.Context, res *domain.SubmitResult, start time.Time, reason domain.RejectReason) (*domain.SubmitResult, error) {
	if err := g.graphs.ClearWorkspace(ctx, res.Producer); err != nil {
		return g.fault(res, start, domain.ReasonStoreFault, storeFault(err))
	}
	return g.reject(res, start, reason, ""), nil
}

func (g *Gateway) reject(res *domain.SubmitResult, start time.Time, reason domain.RejectReason, detail string) *domain.SubmitResult {
	res.Status = domain.StatusRejected
	res.Reason = reason
	res.Detail = detail
	g.finishSubmit(res, start)
	return res
}

func (g *Gateway) fault(res *domain.SubmitResult, start time.Time, reason domain.RejectReason, err error) (*domain.SubmitResult, error) {
	res.Status = domain.StatusRejected
	res.Reason = reason
	res.Detail = err.Error()
	g.finishSubmit(res, start)
	if reason == domain.ReasonStoreFault {
		g.logger.Error("fact store fault during submission",
			zap.String("producer", res.Producer),
			zap.Error(err),
		)
	}
	return res, err
}

func (g *Gateway) finishSubmit(res *domain.SubmitResult, start time.Time) {
	res.Duration = time.Since(start)
	submissionsTotal.WithLabelValues(string(res.Status), string(res.Reason)).Inc()
	admissionDuration.WithLabelValues("submit").Observe(res.Duration.Seconds())

	g.logger.Info("submission decided",
		zap.String("submission_id", res.ID.String()),
		zap.String("producer", res.Producer),
		zap.String("decision", string(res.Status)),
		zap.String("reason", string(res.Reason)),
		zap.Int("proposed", res.Proposed),
		zap.Int("violations", len(res.Violations)),
		zap.Int("contradictions", len(res.Contradictions)),
		zap.Int("derived", len(res.Derived)),
		zap.Duration("duration", res.Duration),
	)
}
