package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultReindexInterval = 30 * time.Minute

// Reindexer pushes the whole field catalog into the search index.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// CatalogReindexJob periodically rebuilds the field index so that writes
// whose field.changed event was lost still reach search.
type CatalogReindexJob struct {
	reindexer Reindexer
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
	running   sync.Mutex
}

func NewCatalogReindexJob(reindexer Reindexer, interval time.Duration) *CatalogReindexJob {
	if interval <= 0 {
		interval = DefaultReindexInterval
	}
	return &CatalogReindexJob{
		reindexer: reindexer,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval.
func (j *CatalogReindexJob) Start(ctx context.Context) {
	slog.Info("Starting catalog reindex job", "interval", j.interval)

	j.ticker = time.NewTicker(j.interval)

	go j.run(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.run(ctx)
			case <-ctx.Done():
				j.Stop()
				return
			case <-j.done:
				slog.Info("Catalog reindex job stopped")
				return
			}
		}
	}()
}

func (j *CatalogReindexJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
}

// run skips the pass when the previous one is still going.
func (j *CatalogReindexJob) run(ctx context.Context) {
	if !j.running.TryLock() {
		slog.Debug("Previous reindex still running, skipping")
		return
	}
	defer j.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.interval)
	defer cancel()

	start := time.Now()
	n, err := j.reindexer.Reindex(ctx)
	if err != nil {
		slog.Error("Failed to reindex field catalog", "error", err)
		return
	}
	slog.Info("Field catalog reindexed", "fields", n, "elapsed", time.Since(start).String())
}
