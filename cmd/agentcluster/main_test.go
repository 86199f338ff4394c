package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"agentcluster/cmd/agentcluster/ui"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/campaign"
	"agentcluster/internal/config"
	"agentcluster/internal/console"
	"agentcluster/internal/journal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInstantOrchestrator(t *testing.T) *campaign.Orchestrator {
	t.Helper()
	oc := campaign.DefaultConfig()
	oc.Timings = campaign.Timings{}
	o := campaign.NewOrchestrator(oc)
	t.Cleanup(o.Close)
	return o
}

func TestOrchestratorConfig_MapsYAML(t *testing.T) {
	c := config.DefaultConfig()
	c.Timings.Line = "5ms"
	c.Timings.Package = "not-a-duration"
	c.Retry = config.RetryConfig{MaxRetries: 7, BackoffBase: "10ms", BackoffMax: "40ms"}
	c.Server.StreamBuffer = 8

	oc := orchestratorConfig(c)
	assert.Equal(t, 5*time.Millisecond, oc.Timings.Line)
	assert.Equal(t, 2*time.Second, oc.Timings.Package, "unparseable values fall back to the default")
	assert.Equal(t, 7, oc.Retry.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, oc.Retry.Base)
	assert.Equal(t, 40*time.Millisecond, oc.Retry.Max)
	assert.Equal(t, 8, oc.SubscriberBuffer)
}

func TestJournalPath(t *testing.T) {
	workspace = "/srv/ws"
	c := config.DefaultConfig()
	assert.Equal(t, "/srv/ws/.agentcluster/journal.db", journalPath(c))

	c.Journal.Path = "/var/lib/agentcluster.db"
	assert.Equal(t, "/var/lib/agentcluster.db", journalPath(c))
}

func TestFollowRun_EmitsEveryEntryOnce(t *testing.T) {
	o := newInstantOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := o.Subscribe(ctx)
	require.NoError(t, o.Start("Build a Gmail client"))
	runID := o.Snapshot().RunID

	seen := map[uint64]int{}
	final, err := followRun(context.Background(), o.Stop, updates, runID, func(e buildlog.Entry) {
		seen[e.ID]++
	})
	require.NoError(t, err)

	assert.Equal(t, campaign.PhaseComplete, final.Phase)
	assert.Len(t, seen, len(final.BuildLog))
	for id, n := range seen {
		assert.Equal(t, 1, n, "entry %d emitted more than once", id)
	}
}

func TestFollowRun_CancelStops(t *testing.T) {
	o := newInstantOrchestrator(t)
	o.SetSleeper(func(ctx context.Context, _ time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	})

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	updates := o.Subscribe(subCtx)
	require.NoError(t, o.Start("Build a CRM"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := followRun(ctx, o.Stop, updates, o.Snapshot().RunID, func(buildlog.Entry) {})
	require.NoError(t, err)
	assert.Equal(t, campaign.PhaseStopped, final.Phase)
	assert.False(t, final.Running)
}

func TestFollowRun_ClosedStream(t *testing.T) {
	ch := make(chan campaign.Snapshot)
	close(ch)
	_, err := followRun(context.Background(), func() {}, ch, "run", func(buildlog.Entry) {})
	assert.ErrorIs(t, err, errClusterClosed)
}

func TestConsoleLoop(t *testing.T) {
	o := newInstantOrchestrator(t)
	c := console.New(o, 80)

	var out bytes.Buffer
	in := strings.NewReader("/status\n\ncreate a new file and lint it\n/exit\n/status\n")
	require.NoError(t, consoleLoop(context.Background(), in, &out, ui.NewStyles(ui.LightTheme()), c))

	text := out.String()
	assert.Contains(t, text, "Phase: idle")
	assert.Contains(t, text, "lint_code(")
	assert.Equal(t, 1, strings.Count(text, "Phase: idle"), "input after /exit is not read")
}

func TestPrintHistory(t *testing.T) {
	styles := ui.NewStyles(ui.LightTheme())

	var empty bytes.Buffer
	printHistory(&empty, styles, nil)
	assert.Contains(t, empty.String(), "No runs journaled yet.")

	var out bytes.Buffer
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	printHistory(&out, styles, []journal.Summary{{
		RunID:       "run-1",
		Requirement: "Build a Gmail client",
		FinalPhase:  campaign.PhaseComplete,
		StartedAt:   start,
		FinishedAt:  start.Add(90 * time.Second),
		EntryCount:  42,
	}})
	assert.Contains(t, out.String(), "run-1")
	assert.Contains(t, out.String(), "42 entries")
	assert.Contains(t, out.String(), "1m30s")
}

func TestReloadInto_SkipsInvalid(t *testing.T) {
	logger = zap.NewNop()
	o := newInstantOrchestrator(t)

	bad := config.DefaultConfig()
	bad.Retry.MaxRetries = 0
	reloadInto(o)(bad)

	good := config.DefaultConfig()
	good.Timings = config.TimingsConfig{
		Initialize: "0s", Architecture: "0s", Scan: "0s", GapAnalysis: "0s",
		Fragment: "0s", ToolActivation: "0s", Assimilate: "0s", Line: "0s",
		Correction: "0s", Package: "0s", Intent: "0s",
	}
	reloadInto(o)(good)

	require.NoError(t, o.Start("Build a CRM"))
	o.Wait()
	assert.Equal(t, campaign.PhaseComplete, o.Snapshot().Phase)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
