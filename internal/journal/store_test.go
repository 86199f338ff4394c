package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"agentcluster/internal/buildlog"
	"agentcluster/internal/campaign"
	"agentcluster/internal/metrics"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id string, phase campaign.Phase, finished time.Time) campaign.RunRecord {
	return campaign.RunRecord{
		RunID:       id,
		Requirement: "Build " + id,
		FinalPhase:  phase,
		StartedAt:   finished.Add(-15 * time.Second),
		FinishedAt:  finished,
		Metrics:     metrics.Metrics{LinesProcessed: 50, ErrorsFound: 7, ErrorsCorrected: 7, ValidationCycles: 16},
		Entries: []buildlog.Entry{
			{ID: 1, Timestamp: finished.Add(-15 * time.Second), Message: "Starting adaptive agent cluster build process...", Type: buildlog.TypeSystem},
			{ID: 2, Timestamp: finished, Message: "Application package ready for download", Type: buildlog.TypeSuccess, AgentID: ""},
		},
	}
}

func TestRecordAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := record("run-a", campaign.PhaseComplete, base)
	require.NoError(t, s.Record(ctx, want))

	got, err := s.Get(ctx, "run-a")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := newTestStore(t).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, record("old", campaign.PhaseStopped, base)))
	require.NoError(t, s.Record(ctx, record("new", campaign.PhaseComplete, base.Add(100*time.Millisecond))))
	require.NoError(t, s.Record(ctx, record("mid", campaign.PhaseFailed, base.Add(10*time.Millisecond))))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})
	assert.Equal(t, campaign.PhaseFailed, all[1].FinalPhase)
	assert.Equal(t, 2, all[0].EntryCount)
	assert.Equal(t, 15*time.Second, all[0].Duration())
	assert.Equal(t, 7, all[0].Metrics.ErrorsFound)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].RunID)
}

func TestRecord_ReplacesSameRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, record("r", campaign.PhaseStopped, base)))
	require.NoError(t, s.Record(ctx, record("r", campaign.PhaseComplete, base)))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, campaign.PhaseComplete, all[0].FinalPhase)
}

func TestStore_RecordsOrchestratorRuns(t *testing.T) {
	s := newTestStore(t)

	cfg := campaign.DefaultConfig()
	cfg.Timings = campaign.Timings{}
	o := campaign.NewOrchestrator(cfg)
	defer o.Close()
	o.SetRecorder(s)

	require.NoError(t, o.Start("Build a custom gateway"))
	o.Wait()

	runs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, campaign.PhaseComplete, runs[0].FinalPhase)
	assert.Equal(t, 1, runs[0].Metrics.ToolsGenerated)

	rec, err := s.Get(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, "Application package ready for download", rec.Entries[len(rec.Entries)-1].Message)
}
