package campaign

import (
	"context"
	"sync"
	"testing"
	"time"

	"agentcluster/internal/retry"
)

// Distinct nanosecond timings so a sleeper can tell steps apart.
func testTimings() Timings {
	return Timings{
		Initialize:     1,
		Architecture:   2,
		Scan:           3,
		GapAnalysis:    4,
		Fragment:       5,
		ToolActivation: 6,
		Assimilate:     7,
		Line:           8,
		Correction:     9,
		Package:        10,
		Intent:         11,
	}
}

func testConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Timings:          testTimings(),
		Retry:            retry.Policy{MaxRetries: 2, Base: 12, Max: 12},
		SubscriberBuffer: 256,
	}
}

func instantSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// gate blocks the nth sleep of a given duration until released.
type gate struct {
	on        time.Duration
	nth       int
	honorCtx  bool
	reached   chan struct{}
	release   chan struct{}
	mu        sync.Mutex
	seen      int
	signalled bool
}

func newGate(on time.Duration, nth int, honorCtx bool) *gate {
	return &gate{
		on:       on,
		nth:      nth,
		honorCtx: honorCtx,
		reached:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gate) Sleep(ctx context.Context, d time.Duration) error {
	if d != g.on {
		return ctx.Err()
	}
	g.mu.Lock()
	g.seen++
	hit := g.seen == g.nth && !g.signalled
	if hit {
		g.signalled = true
	}
	g.mu.Unlock()
	if !hit {
		return ctx.Err()
	}

	close(g.reached)
	if g.honorCtx {
		select {
		case <-g.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-g.release
	return nil
}

func (g *gate) await(t *testing.T) {
	t.Helper()
	select {
	case <-g.reached:
	case <-time.After(5 * time.Second):
		t.Fatal("gate never reached")
	}
}

func (g *gate) open() {
	select {
	case <-g.release:
	default:
		close(g.release)
	}
}

// memoryRecorder collects run records.
type memoryRecorder struct {
	mu      sync.Mutex
	records []RunRecord
}

func (m *memoryRecorder) Record(_ context.Context, rec RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryRecorder) all() []RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunRecord(nil), m.records...)
}

func newTestOrchestrator(t *testing.T, sleep Sleeper) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(testConfig())
	o.SetSleeper(sleep)
	t.Cleanup(o.Close)
	return o
}

func messages(s Snapshot) []string {
	out := make([]string, len(s.BuildLog))
	for i, e := range s.BuildLog {
		out[i] = e.Message
	}
	return out
}

// assertSubsequence checks that want appears in got in order.
func assertSubsequence(t *testing.T, got, want []string) {
	t.Helper()
	i := 0
	for _, m := range got {
		if i < len(want) && m == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Fatalf("log is missing %q (matched %d of %d)\nlog: %q", want[i], i, len(want), got)
	}
}
