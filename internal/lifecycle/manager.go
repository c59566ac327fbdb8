// Package lifecycle manages the workspace, consensus, main and quarantine
// graphs and the snapshot taken before each commit attempt.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

var (
	ErrSnapshotOutstanding = errors.New("a consensus snapshot is already outstanding")
	ErrNoSnapshot          = errors.New("no outstanding consensus snapshot")
	ErrUnknownSnapshot     = errors.New("snapshot is not the outstanding one")
	ErrNoLedger            = errors.New("fact store keeps no provenance ledger")
)

// Snapshot is an immutable copy of consensus taken before a commit attempt.
type Snapshot struct {
	ID      uuid.UUID
	TakenAt time.Time
	graph   *domain.Graph
}

// Graph returns a copy of the snapshot contents.
func (s *Snapshot) Graph() *domain.Graph {
	return s.graph.Clone()
}

func (s *Snapshot) Len() int {
	return s.graph.Len()
}

// Manager mediates every graph write so that each role invariant holds:
// a workspace is written only through Stage and cleared by admission
// decisions, consensus only by Admit, Promote and Restore, and main only by
// Promote.
type Manager struct {
	store  domain.FactStore
	ledger domain.ProvenanceStore
	logger *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*sync.Mutex
	snapshot   *Snapshot
}

// NewManager wraps store. When store also implements
// domain.ProvenanceStore it backs the provenance ledger.
func NewManager(store domain.FactStore, logger *zap.Logger) *Manager {
	ledger, _ := store.(domain.ProvenanceStore)
	return &Manager{
		store:      store,
		ledger:     ledger,
		logger:     logger,
		workspaces: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) workspaceLock(producer string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.workspaces[producer]
	if !ok {
		l = &sync.Mutex{}
		m.workspaces[producer] = l
	}
	return l
}

// LockWorkspace serializes access to one producer's workspace. Distinct
// producers never contend. It returns the unlock function.
func (m *Manager) LockWorkspace(producer string) func() {
	l := m.workspaceLock(producer)
	l.Lock()
	return l.Unlock
}

// Stage adds facts to the producer's workspace.
func (m *Manager) Stage(ctx context.Context, producer string, facts []domain.Fact) error {
	unlock := m.LockWorkspace(producer)
	defer unlock()
	return m.StageLocked(ctx, producer, facts)
}

// StageLocked is Stage for callers already holding the workspace lock.
func (m *Manager) StageLocked(ctx context.Context, producer string, facts []domain.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	if err := m.store.Add(ctx, domain.WorkspaceGraph(producer), facts); err != nil {
		return errors.Wrapf(err, "stage workspace %s", producer)
	}
	return nil
}

func (m *Manager) Workspace(ctx context.Context, producer string) (*domain.Graph, error) {
	return m.read(ctx, domain.WorkspaceGraph(producer))
}

// ClearWorkspace empties the producer's workspace. Callers hold the
// workspace lock.
func (m *Manager) ClearWorkspace(ctx context.Context, producer string) error {
	if err := m.store.Replace(ctx, domain.WorkspaceGraph(producer), nil); err != nil {
		return errors.Wrapf(err, "clear workspace %s", producer)
	}
	return nil
}

func (m *Manager) Consensus(ctx context.Context) (*domain.Graph, error) {
	return m.read(ctx, domain.ConsensusGraph)
}

func (m *Manager) Main(ctx context.Context) (*domain.Graph, error) {
	return m.read(ctx, domain.MainGraph)
}

func (m *Manager) Quarantine(ctx context.Context) (*domain.Graph, error) {
	return m.read(ctx, domain.QuarantineGraph)
}

func (m *Manager) read(ctx context.Context, id domain.GraphID) (*domain.Graph, error) {
	facts, err := m.store.ReadAll(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "read graph %s", id)
	}
	return domain.NewGraph(facts...), nil
}

// Admit moves proposed facts into consensus and clears the producer's
// workspace in one atomic write.
func (m *Manager) Admit(ctx context.Context, producer string, proposed []domain.Fact) error {
	err := m.store.Apply(ctx,
		domain.GraphWrite{Graph: domain.ConsensusGraph, Mode: domain.WriteAdd, Facts: proposed},
		domain.GraphWrite{Graph: domain.WorkspaceGraph(producer), Mode: domain.WriteReplace},
	)
	if err != nil {
		return errors.Wrapf(err, "admit workspace %s", producer)
	}
	return nil
}

// Snapshot captures consensus. Only one snapshot may be outstanding; it is
// resolved by Promote, Restore or Release.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	if m.snapshot != nil {
		m.mu.Unlock()
		return nil, errors.WithDetailf(ErrSnapshotOutstanding, "snapshot %s taken at %s",
			m.snapshot.ID, m.snapshot.TakenAt.Format(time.RFC3339Nano))
	}
	// Reserve the slot before reading so a concurrent caller fails fast.
	s := &Snapshot{ID: uuid.New(), TakenAt: time.Now().UTC()}
	m.snapshot = s
	m.mu.Unlock()

	g, err := m.Consensus(ctx)
	if err != nil {
		m.mu.Lock()
		m.snapshot = nil
		m.mu.Unlock()
		return nil, errors.Wrap(err, "snapshot consensus")
	}
	s.graph = g

	m.logger.Debug("consensus snapshot taken",
		zap.String("snapshot_id", s.ID.String()),
		zap.Int("facts", g.Len()),
	)
	return s, nil
}

// Outstanding reports the snapshot awaiting resolution, if any.
func (m *Manager) Outstanding() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *Manager) checkOutstanding(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return ErrNoSnapshot
	}
	if s == nil || m.snapshot.ID != s.ID {
		return ErrUnknownSnapshot
	}
	return nil
}

// Release resolves the snapshot without touching consensus.
func (m *Manager) Release(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return ErrNoSnapshot
	}
	if s == nil || m.snapshot.ID != s.ID {
		return ErrUnknownSnapshot
	}
	m.snapshot = nil
	return nil
}

// Promote commits a cycle: toMain is added to main, quarantined to the
// quarantine graph, and consensus is emptied, all in one atomic write. The
// snapshot is released on success and stays outstanding on failure so the
// caller can restore it.
func (m *Manager) Promote(ctx context.Context, s *Snapshot, toMain, quarantined []domain.Fact) error {
	if err := m.checkOutstanding(s); err != nil {
		return err
	}

	writes := []domain.GraphWrite{
		{Graph: domain.MainGraph, Mode: domain.WriteAdd, Facts: toMain},
	}
	if len(quarantined) > 0 {
		writes = append(writes, domain.GraphWrite{Graph: domain.QuarantineGraph, Mode: domain.WriteAdd, Facts: quarantined})
	}
	writes = append(writes, domain.GraphWrite{Graph: domain.ConsensusGraph, Mode: domain.WriteReplace})

	if err := m.store.Apply(ctx, writes...); err != nil {
		return errors.Wrap(err, "promote consensus")
	}
	return m.Release(s)
}

// Restore makes consensus equal to the snapshot again and resolves it. The
// write is skipped when consensus already matches.
func (m *Manager) Restore(ctx context.Context, s *Snapshot) error {
	if err := m.checkOutstanding(s); err != nil {
		return err
	}

	current, err := m.Consensus(ctx)
	if err == nil && current.Equal(s.graph) {
		return m.Release(s)
	}
	if err := m.store.Replace(ctx, domain.ConsensusGraph, s.graph.Facts()); err != nil {
		return errors.Wrap(err, "restore consensus")
	}

	m.logger.Info("consensus restored from snapshot",
		zap.String("snapshot_id", s.ID.String()),
		zap.Int("facts", s.graph.Len()),
	)
	return m.Release(s)
}

// Sizes returns the number of facts in the shared graphs.
func (m *Manager) Sizes(ctx context.Context) (map[domain.GraphID]int, error) {
	out := make(map[domain.GraphID]int, 3)
	for _, id := range []domain.GraphID{domain.MainGraph, domain.ConsensusGraph, domain.QuarantineGraph} {
		n, err := m.store.Count(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "count graph %s", id)
		}
		out[id] = n
	}
	return out, nil
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

func (m *Manager) HasLedger() bool {
	return m.ledger != nil
}

// RecordProvenance appends records to the ledger.
func (m *Manager) RecordProvenance(ctx context.Context, records []domain.ProvenanceRecord) error {
	if m.ledger == nil {
		return ErrNoLedger
	}
	if len(records) == 0 {
		return nil
	}
	if err := m.ledger.AppendProvenance(ctx, records); err != nil {
		return errors.Wrap(err, "record provenance")
	}
	return nil
}

func (m *Manager) Provenance(ctx context.Context, filter domain.ProvenanceFilter) ([]domain.ProvenanceRecord, error) {
	if m.ledger == nil {
		return nil, ErrNoLedger
	}
	records, err := m.ledger.ListProvenance(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list provenance")
	}
	return records, nil
}
