package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/marqueewinq/shooter/internal/capture"
)

// PoolScheduler runs scheduled groups on a capture pool in the background.
// Task state reaches the store through the pool's done callback, not through
// the scheduler.
type PoolScheduler struct {
	logger *zap.Logger
	pool   *capture.Pool
	ctx    context.Context
	wg     sync.WaitGroup
}

var _ Scheduler = (*PoolScheduler)(nil)

// NewPoolScheduler binds the pool to a base context; cancelling it stops all
// in-flight groups.
func NewPoolScheduler(ctx context.Context, logger *zap.Logger, pool *capture.Pool) *PoolScheduler {
	return &PoolScheduler{
		logger: logger.Named("scheduler"),
		pool:   pool,
		ctx:    ctx,
	}
}

// Schedule launches the group asynchronously.
func (ps *PoolScheduler) Schedule(groupID string, jobs []capture.Job) {
	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		outcomes := ps.pool.Run(ps.ctx, jobs)

		var failed int
		for _, out := range outcomes {
			if out.Err != nil {
				failed++
			}
		}
		ps.logger.Info("capture group finished",
			zap.String("group_id", groupID),
			zap.Int("total", len(outcomes)),
			zap.Int("failed", failed))
	}()
}

// Wait blocks until every scheduled group has finished, for graceful
// shutdown.
func (ps *PoolScheduler) Wait() {
	ps.wg.Wait()
}
