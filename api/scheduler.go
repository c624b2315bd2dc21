/*
scheduler.go - Periodic yield runs

PURPOSE:
  Re-runs the yield engine over the stored canonical inventory on a fixed
  interval, so decisions follow inventory uploads without a manual trigger.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Uses the default configuration and matrix
  - Shares the handler's run lock, so scheduled and HTTP runs never overlap
  - Every run is recorded in the run log by yield.Service
  - No stored inventory yet is not an error; the tick is skipped

USAGE:
  scheduler := NewRunScheduler(handler, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunYield endpoint (manual run)
  - yield/service.go: Service.Run
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/yield-engine/yield"
)

// RunScheduler triggers yield runs periodically.
type RunScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Timeout       time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a scheduler. A non-positive interval disables it.
func NewRunScheduler(handler *Handler, interval time.Duration) *RunScheduler {
	return &RunScheduler{
		Handler:       handler,
		CheckInterval: interval,
		Timeout:       5 * time.Minute,
		Enabled:       interval > 0,
	}
}

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	log := rs.Handler.Logger
	if !rs.Enabled {
		log.Info("[Scheduler] Disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run()

	log.Info("[Scheduler] Started with interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight run.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Handler.Logger.Info("[Scheduler] Stopped")
	}
}

func (rs *RunScheduler) run() {
	defer rs.wg.Done()

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow()
		case <-rs.stop:
			return
		}
	}
}

// RunNow performs one scheduled run and reports whether decisions were written.
func (rs *RunScheduler) RunNow() bool {
	h := rs.Handler
	ctx, cancel := context.WithTimeout(context.Background(), rs.Timeout)
	defer cancel()

	h.runMu.Lock()
	defer h.runMu.Unlock()

	rep, err := h.Service.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
	switch {
	case errors.Is(err, yield.ErrNoInventory):
		h.Logger.Info("[Scheduler] No canonical inventory yet, skipping")
		return false
	case err != nil:
		h.Logger.Error("[Scheduler] Run failed: %v", err)
		return false
	}
	h.Logger.Info("[Scheduler] Run %s completed: %d allocated, %d skipped",
		rep.ID, len(rep.Result.Allocations), rep.Result.Skipped)
	return true
}
