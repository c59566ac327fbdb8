package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

const (
	defaultCommitInterval = 30 * time.Second
	commitTimeout         = 30 * time.Second
)

// Committer runs one commit cycle.
type Committer interface {
	CommitCycle(ctx context.Context) (*domain.CommitResult, error)
}

// CommitScheduler triggers commit cycles on a fixed interval.
type CommitScheduler struct {
	committer Committer
	logger    *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCommitScheduler(c Committer, logger *zap.Logger) *CommitScheduler {
	return &CommitScheduler{
		committer: c,
		logger:    logger,
		interval:  defaultCommitInterval,
		stopCh:    make(chan struct{}),
	}
}

func (s *CommitScheduler) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs commit cycles on a periodic schedule in a background goroutine.
func (s *CommitScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("commit scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("commit scheduler stopped")
				return
			}
		}
	}()
}

// Stop waits for an in-flight cycle to finish.
func (s *CommitScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *CommitScheduler) run(ctx context.Context) {
	res, err := s.committer.CommitCycle(ctx)
	if err != nil {
		s.logger.Error("scheduled commit cycle failed", zap.Error(err))
		return
	}
	if res.State == domain.CommitRolledBack {
		s.logger.Warn("scheduled commit cycle rolled back",
			zap.String("cycle_id", res.CycleID.String()),
			zap.String("reason", string(res.Reason)),
		)
	}
}
