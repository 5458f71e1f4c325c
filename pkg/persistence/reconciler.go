package persistence

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"video-digest/pkg/worker"
)

// Reconciler backfills history for every record owner, either once or on an interval.
type Reconciler struct {
	coord    *Coordinator
	pool     *worker.Pool
	interval time.Duration
	log      *zap.Logger
}

func NewReconciler(coord *Coordinator, pool *worker.Pool, interval time.Duration, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{coord: coord, pool: pool, interval: interval, log: log}
}

// ReconcileAll reconciles every owner and returns how many entries were backfilled.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	owners, err := r.coord.repo.ListOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	var backfilled int64
	_, err = r.pool.Run(ctx, owners, worker.ProcessorFunc(func(ctx context.Context, owner string) error {
		n, err := r.coord.Reconcile(ctx, owner)
		atomic.AddInt64(&backfilled, int64(n))
		return err
	}))
	return int(backfilled), err
}

// Run reconciles on every tick until ctx is cancelled. A zero interval disables it.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reconciler started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			n, err := r.ReconcileAll(ctx)
			if err != nil {
				r.log.Warn("reconcile pass failed", zap.Error(err))
				continue
			}
			r.log.Debug("reconcile pass done", zap.Int("backfilled", n))
		}
	}
}
