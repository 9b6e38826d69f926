/*
janitor.go - Background pruning of snapshot history

PURPOSE:
  Every mutation appends a revision, so the snapshots table grows without
  bound. The janitor wakes on a ticker and prunes all but the newest Keep
  revisions.

USAGE:
  j := sqlite.NewJanitor(store, 500)
  j.Start()
  defer j.Stop()
*/
package sqlite

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/lending-engine/log"
)

// Janitor prunes snapshot history on an interval.
type Janitor struct {
	Store    *Store
	Keep     int
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewJanitor keeps the newest keep revisions, checking hourly.
func NewJanitor(store *Store, keep int) *Janitor {
	return &Janitor{
		Store:    store,
		Keep:     keep,
		Interval: time.Hour,
	}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker != nil {
		return
	}
	j.ticker = time.NewTicker(j.Interval)
	j.stop = make(chan struct{})
	j.wg.Add(1)
	go j.run(j.ticker.C, j.stop)

	log.Info(context.Background(), "snapshot janitor started",
		slog.Duration("interval", j.Interval), slog.Int("keep", j.Keep))
}

// Stop ends the loop and waits for an in-flight prune.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker == nil {
		return
	}
	j.ticker.Stop()
	close(j.stop)
	j.wg.Wait()
	j.ticker = nil
	log.Info(context.Background(), "snapshot janitor stopped")
}

func (j *Janitor) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer j.wg.Done()

	// Run immediately on start
	j.RunOnce(context.Background())

	for {
		select {
		case <-tick:
			j.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce prunes once and returns the number of removed revisions.
func (j *Janitor) RunOnce(ctx context.Context) int64 {
	n, err := j.Store.Prune(ctx, j.Keep)
	if err != nil {
		log.Error(ctx, "snapshot prune failed", log.Err("error", err))
		return 0
	}
	if n > 0 {
		log.Info(ctx, "snapshot history pruned", slog.Int64("removed", n), slog.Int("kept", j.Keep))
	}
	return n
}
