// Package worker runs independent jobs over a bounded set of goroutines.
package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Processor handles one job. Jobs are independent; a failure never stops the others.
type Processor interface {
	Process(ctx context.Context, item string) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, item string) error

func (f ProcessorFunc) Process(ctx context.Context, item string) error {
	return f(ctx, item)
}

// Stats summarizes a run.
type Stats struct {
	Success int
	Errors  int
	Failed  map[string]error
}

// Pool distributes jobs to a fixed number of workers.
type Pool struct {
	workerCount int
	log         *zap.Logger
}

// NewPool creates a pool. workerCount below 1 means one worker.
func NewPool(workerCount int, log *zap.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{workerCount: workerCount, log: log}
}

// Run processes every item and returns the counts. It returns an error only
// when every item failed.
func (p *Pool) Run(ctx context.Context, items []string, proc Processor) (Stats, error) {
	stats := Stats{Failed: make(map[string]error)}
	if len(items) == 0 {
		return stats, nil
	}

	jobChan := make(chan string, len(items))
	for _, item := range items {
		jobChan <- item
	}
	close(jobChan)

	type result struct {
		item     string
		workerID int
		err      error
	}
	resultsChan := make(chan result, len(items))

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range jobChan {
				err := ctx.Err()
				if err == nil {
					err = proc.Process(ctx, item)
				}
				resultsChan <- result{item: item, workerID: workerID, err: err}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for res := range resultsChan {
		if res.err == nil {
			stats.Success++
			if stats.Success%100 == 0 {
				p.log.Info("progress", zap.Int("success", stats.Success), zap.Int("errors", stats.Errors))
			}
			continue
		}
		stats.Errors++
		stats.Failed[res.item] = res.err
		p.log.Warn("job failed", zap.Int("worker", res.workerID), zap.String("item", res.item), zap.Error(res.err))
	}

	p.log.Info("completed",
		zap.Int("success", stats.Success),
		zap.Int("errors", stats.Errors),
		zap.Int("total", len(items)))

	if stats.Errors > 0 && stats.Success == 0 {
		return stats, fmt.Errorf("all %d jobs failed", stats.Errors)
	}
	return stats, nil
}
