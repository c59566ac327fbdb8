package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
	"github.com/Harshitk-cp/factgate/internal/lifecycle"
)

// CommitCycle promotes consensus into main together with everything the rules
// derive from the merged graph. A violation on a consensus subject or a
// contradiction involving a consensus fact rolls the cycle back, leaving
// consensus equal to its snapshot and main untouched. Contradictions formed
// only by derived facts, or by a main fact and a derived fact, quarantine
// the derived facts and the cycle proceeds; facts derivable only through a
// quarantined fact are withheld from main as well.
//
// Once the snapshot is taken the cycle ignores cancellation of ctx so that it
// always ends COMMITTED or ROLLED_BACK.
func (g *Gateway) CommitCycle(ctx context.Context) (*domain.CommitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	res := &domain.CommitResult{
		CycleID:        uuid.New(),
		State:          domain.CommitCommitting,
		Violations:     []domain.Violation{},
		Contradictions: []domain.Contradiction{},
		Quarantined:    []domain.Contradiction{},
		Added:          []domain.Fact{},
		Derived:        []domain.DerivedFact{},
		Withheld:       []domain.DerivedFact{},
	}

	if err := g.recoverSnapshot(ctx); err != nil {
		return g.abort(res, start, domain.ReasonStoreFault, storeFault(err))
	}

	snap, err := g.graphs.Snapshot(ctx)
	if err != nil {
		return g.abort(res, start, domain.ReasonStoreFault, storeFault(err))
	}
	ctx = context.WithoutCancel(ctx)

	consensus := snap.Graph()
	if consensus.Len() == 0 {
		if err := g.graphs.Release(snap); err != nil {
			return g.abort(res, start, domain.ReasonStoreFault, err)
		}
		res.State = domain.CommitCommitted
		g.finishCommit(res, start)
		return res, nil
	}

	main, err := g.graphs.Main(ctx)
	if err != nil {
		return g.rollback(ctx, snap, res, start, domain.ReasonStoreFault, storeFault(err))
	}

	ev, err := g.evaluate(main.Union(consensus), nil)
	if err != nil {
		g.logger.Error("inference engine fault, check rule set configuration",
			zap.String("cycle_id", res.CycleID.String()),
			zap.Error(err),
		)
		return g.rollback(ctx, snap, res, start, domain.ReasonEngineFault, err)
	}
	res.Iterations = ev.derived.Iterations
	inferenceIterations.WithLabelValues("commit").Observe(float64(ev.derived.Iterations))

	subjects := consensus.Subjects()
	res.Violations = ev.report.Filter(func(v domain.Violation) bool {
		_, ok := subjects[v.Subject]
		return ok
	}).Violations

	derived := ev.derived.Graph()
	quarantined := domain.NewGraph()
	for _, c := range ev.contradictions {
		switch {
		case consensus.Contains(c.A) || consensus.Contains(c.B):
			res.Contradictions = append(res.Contradictions, c)
		case derived.Contains(c.A) || derived.Contains(c.B):
			for _, f := range []domain.Fact{c.A, c.B} {
				if derived.Contains(f) {
					quarantined.Add(f)
				}
			}
			res.Quarantined = append(res.Quarantined, c)
		default:
			g.logger.Warn("contradiction between main facts",
				zap.Stringer("fact_a", c.A),
				zap.Stringer("fact_b", c.B),
				zap.String("rule_id", c.RuleID),
			)
		}
	}

	switch {
	case len(res.Violations) > 0:
		return g.rollback(ctx, snap, res, start, domain.ReasonShapeViolation, nil)
	case len(res.Contradictions) > 0:
		return g.rollback(ctx, snap, res, start, domain.ReasonContradiction, nil)
	}

	promoted := ev.derived
	if quarantined.Len() > 0 {
		// Derive again with the quarantined facts absent so that nothing
		// reached only through them is promoted.
		promoted, err = g.engine.DeriveExcluding(main.Union(consensus), quarantined)
		if err != nil {
			return g.rollback(ctx, snap, res, start, domain.ReasonEngineFault, engineFault(err))
		}
		kept := promoted.Graph()
		for _, d := range ev.derived.Derived {
			if !kept.Contains(d.Fact) && !quarantined.Contains(d.Fact) {
				res.Withheld = append(res.Withheld, d)
			}
		}
	}

	toMain := consensus.Union(promoted.Graph())
	for _, f := range toMain.Facts() {
		if !main.Contains(f) {
			res.Added = append(res.Added, f)
		}
	}
	res.Derived = append(res.Derived, promoted.Derived...)

	if err := g.graphs.Promote(ctx, snap, toMain.Facts(), quarantined.Facts()); err != nil {
		res.Added = []domain.Fact{}
		res.Derived = []domain.DerivedFact{}
		res.Withheld = []domain.DerivedFact{}
		return g.rollback(ctx, snap, res, start, domain.ReasonStoreFault, storeFault(err))
	}

	res.State = domain.CommitCommitted
	quarantinedFactsTotal.Add(float64(quarantined.Len()))
	g.finishCommit(res, start)
	g.recordCommit(ctx, res, ev.derived, quarantined)
	g.publish(res)
	return res, nil
}

// recoverSnapshot restores a snapshot left outstanding by an earlier cycle
// whose restore failed.
func (g *Gateway) recoverSnapshot(ctx context.Context) error {
	pending := g.graphs.Outstanding()
	if pending == nil {
		return nil
	}
	g.logger.Warn("restoring snapshot left by a failed cycle",
		zap.String("snapshot_id", pending.ID.String()),
	)
	return g.graphs.Restore(ctx, pending)
}

func (g *Gateway) rollback(ctx context.Context, snap *lifecycle.Snapshot, res *domain.CommitResult, start time.Time, reason domain.RejectReason, cause error) (*domain.CommitResult, error) {
	res.Quarantined = []domain.Contradiction{}
	res.Withheld = []domain.DerivedFact{}
	if err := g.graphs.Restore(ctx, snap); err != nil {
		g.logger.Error("failed to restore consensus snapshot",
			zap.String("cycle_id", res.CycleID.String()),
			zap.String("snapshot_id", snap.ID.String()),
			zap.Error(err),
		)
		restoreErr := storeFault(errors.Wrap(err, "restore snapshot"))
		if cause == nil {
			return g.abort(res, start, domain.ReasonStoreFault, restoreErr)
		}
		cause = errors.WithSecondaryError(cause, restoreErr)
	}
	if cause != nil {
		return g.abort(res, start, reason, cause)
	}
	res.State = domain.CommitRolledBack
	res.Reason = reason
	g.finishCommit(res, start)
	return res, nil
}

func (g *Gateway) abort(res *domain.CommitResult, start time.Time, reason domain.RejectReason, err error) (*domain.CommitResult, error) {
	res.State = domain.CommitRolledBack
	res.Reason = reason
	res.Detail = err.Error()
	if reason == domain.ReasonStoreFault {
		g.logger.Error("fact store fault during commit cycle",
			zap.String("cycle_id", res.CycleID.String()),
			zap.Error(err),
		)
	}
	g.finishCommit(res, start)
	return res, err
}

func (g *Gateway) finishCommit(res *domain.CommitResult, start time.Time) {
	res.Duration = time.Since(start)
	commitCyclesTotal.WithLabelValues(string(res.State), string(res.Reason)).Inc()
	admissionDuration.WithLabelValues("commit").Observe(res.Duration.Seconds())

	g.logger.Info("commit cycle resolved",
		zap.String("cycle_id", res.CycleID.String()),
		zap.String("state", string(res.State)),
		zap.String("reason", string(res.Reason)),
		zap.Int("added", len(res.Added)),
		zap.Int("derived", len(res.Derived)),
		zap.Int("quarantined", len(res.Quarantined)),
		zap.Int("withheld", len(res.Withheld)),
		zap.Int("violations", len(res.Violations)),
		zap.Int("contradictions", len(res.Contradictions)),
		zap.Duration("duration", res.Duration),
	)
}

func (g *Gateway) publish(res *domain.CommitResult) {
	if g.events == nil || (len(res.Added) == 0 && len(res.Quarantined) == 0) {
		return
	}
	g.events.Publish(domain.CommitEvent{
		ID:          uuid.New(),
		CycleID:     res.CycleID,
		At:          time.Now().UTC(),
		Added:       res.Added,
		Derived:     res.Derived,
		Quarantined: res.Quarantined,
	})
}
