// Package poller drives the processor on a fixed interval and sweeps the
// dedup ledger hourly.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/processor"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/store"
)

// cleanupInterval is how often the retention sweep runs
const cleanupInterval = time.Hour

// Runner runs one poll cycle across all accounts
type Runner interface {
	ProcessAllAccounts(ctx context.Context) []processor.Result
}

// Ledger is the slice of the dedup store the poller maintains
type Ledger interface {
	DeleteOldRecords(ctx context.Context, retentionDays int) (int64, error)
	GetStats(ctx context.Context) (*store.Stats, error)
}

// Poller serializes poll cycles: the next cycle is armed only after the
// current one finishes, so cycles can never overlap even when one runs
// long. A cycle's failure never kills the loop.
type Poller struct {
	runner        Runner
	ledger        Ledger
	interval      time.Duration
	retentionDays int
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a poller
func New(runner Runner, ledger Ledger, interval time.Duration, retentionDays int, logger *slog.Logger) *Poller {
	return &Poller{
		runner:        runner,
		ledger:        ledger,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger.With("component", "poller"),
	}
}

// Start runs an immediate cleanup pass, arms the hourly cleanup, performs
// one immediate poll and then keeps polling. Calling Start on a running
// poller is a no-op with a warning.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.logger.Warn("poller already running")
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.logger.Info("poller starting", "poll_interval", p.interval, "retention_days", p.retentionDays)

	p.Cleanup()

	p.wg.Add(2)
	go p.cleanupLoop()
	go p.pollLoop()
}

// Stop is idempotent; it halts both loops and waits for them to exit
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("poller stopped")
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()
	for {
		p.Poll()

		// Chained scheduling: the wait starts only after the cycle ends.
		select {
		case <-time.After(p.interval):
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) cleanupLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Cleanup()
		case <-p.stopCh:
			return
		}
	}
}

// Poll runs one cycle and logs a summary. Nothing escaping the cycle may
// kill the scheduler.
func (p *Poller) Poll() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll cycle panicked", "panic", r)
		}
	}()

	ctx := context.Background()
	start := time.Now()
	results := p.runner.ProcessAllAccounts(ctx)

	var processed, skipped, errs int
	for _, r := range results {
		processed += r.Processed
		skipped += r.Skipped
		errs += r.Errors
	}

	if processed > 0 || errs > 0 {
		p.logger.Info("poll cycle complete",
			"processed", processed, "skipped", skipped, "errors", errs,
			"accounts", len(results), "duration", time.Since(start))
	} else {
		p.logger.Debug("poll cycle complete, nothing to do",
			"skipped", skipped, "accounts", len(results), "duration", time.Since(start))
	}

	if p.logger.Enabled(ctx, slog.LevelDebug) {
		if stats, err := p.ledger.GetStats(ctx); err == nil {
			p.logger.Debug("dedup ledger stats", "total", stats.Total, "by_account", stats.ByAccount)
		}
	}
}

// Cleanup sweeps dedup records beyond the retention window; failures are
// logged and never fatal
func (p *Poller) Cleanup() {
	deleted, err := p.ledger.DeleteOldRecords(context.Background(), p.retentionDays)
	if err != nil {
		p.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("deleted old dedup records", "deleted", deleted, "retention_days", p.retentionDays)
	}
}
