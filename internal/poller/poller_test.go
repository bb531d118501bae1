package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/processor"
	"github.com/Polyrhythm-Inc/message-aggregator-sub000/internal/store"
)

type fakeRunner struct {
	mu     sync.Mutex
	cycles int
	panics bool
}

func (f *fakeRunner) ProcessAllAccounts(ctx context.Context) []processor.Result {
	f.mu.Lock()
	f.cycles++
	panics := f.panics
	f.mu.Unlock()
	if panics {
		panic("cycle blew up")
	}
	return []processor.Result{{Account: "work", Processed: 1}}
}

func (f *fakeRunner) cycleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cycles
}

type fakeLedger struct {
	mu       sync.Mutex
	sweeps   int
	deleted  int64
	sweepErr error
}

func (f *fakeLedger) DeleteOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.deleted, f.sweepErr
}

func (f *fakeLedger) GetStats(ctx context.Context) (*store.Stats, error) {
	return &store.Stats{}, nil
}

func (f *fakeLedger) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStartPollsImmediatelyAndRepeats(t *testing.T) {
	runner := &fakeRunner{}
	ledger := &fakeLedger{}
	p := New(runner, ledger, 10*time.Millisecond, 30, discardLogger())

	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return runner.cycleCount() >= 3 })
}

func TestStartRunsCleanupFirst(t *testing.T) {
	runner := &fakeRunner{}
	ledger := &fakeLedger{deleted: 5}
	p := New(runner, ledger, time.Hour, 30, discardLogger())

	p.Start()
	defer p.Stop()

	if ledger.sweepCount() != 1 {
		t.Errorf("sweeps = %d, want immediate cleanup on start", ledger.sweepCount())
	}
}

func TestStopHaltsPolling(t *testing.T) {
	runner := &fakeRunner{}
	p := New(runner, &fakeLedger{}, 10*time.Millisecond, 30, discardLogger())

	p.Start()
	waitFor(t, func() bool { return runner.cycleCount() >= 1 })
	p.Stop()

	n := runner.cycleCount()
	time.Sleep(50 * time.Millisecond)
	if runner.cycleCount() != n {
		t.Error("cycles continued after Stop")
	}
}

func TestDoubleStartIsNoOp(t *testing.T) {
	runner := &fakeRunner{}
	ledger := &fakeLedger{}
	p := New(runner, ledger, time.Hour, 30, discardLogger())

	p.Start()
	p.Start()
	defer p.Stop()

	if ledger.sweepCount() != 1 {
		t.Errorf("sweeps = %d, second Start must not rearm", ledger.sweepCount())
	}
}

func TestDoubleStopIsSafe(t *testing.T) {
	p := New(&fakeRunner{}, &fakeLedger{}, time.Hour, 30, discardLogger())

	p.Start()
	p.Stop()
	p.Stop()
}

func TestPanickingCycleDoesNotKillLoop(t *testing.T) {
	runner := &fakeRunner{panics: true}
	p := New(runner, &fakeLedger{}, 10*time.Millisecond, 30, discardLogger())

	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return runner.cycleCount() >= 3 })
}

func TestCleanupErrorIsSwallowed(t *testing.T) {
	ledger := &fakeLedger{sweepErr: errors.New("database is locked")}
	p := New(&fakeRunner{}, ledger, time.Hour, 30, discardLogger())

	p.Start()
	p.Stop()

	if ledger.sweepCount() != 1 {
		t.Errorf("sweeps = %d", ledger.sweepCount())
	}
}

func TestRestartAfterStop(t *testing.T) {
	runner := &fakeRunner{}
	p := New(runner, &fakeLedger{}, 10*time.Millisecond, 30, discardLogger())

	p.Start()
	waitFor(t, func() bool { return runner.cycleCount() >= 1 })
	p.Stop()

	n := runner.cycleCount()
	p.Start()
	defer p.Stop()
	waitFor(t, func() bool { return runner.cycleCount() > n })
}
