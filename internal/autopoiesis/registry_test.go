package autopoiesis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agentcluster/internal/buildlog"
	"agentcluster/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type logLine struct {
	msg string
	typ buildlog.EntryType
}

// fakeRun records committed effects and can be cancelled between steps.
type fakeRun struct {
	mu        sync.Mutex
	live      bool
	lines     []logLine
	activated int
	sleeps    []time.Duration
	onSleep   func()
}

func newFakeRun() *fakeRun { return &fakeRun{live: true} }

func (f *fakeRun) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	hook := f.onSleep
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (f *fakeRun) Commit(fn func(Effects)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live {
		return errors.New("run cancelled")
	}
	fn(f)
	return nil
}

func (f *fakeRun) Log(msg string, typ buildlog.EntryType, _ string) {
	f.lines = append(f.lines, logLine{msg, typ})
}

func (f *fakeRun) ToolActivated() { f.activated++ }

func (f *fakeRun) cancel() {
	f.mu.Lock()
	f.live = false
	f.mu.Unlock()
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "mcp://dynamic-custom-xml-handler", Endpoint("Custom XML Handler"))
	assert.Equal(t, "mcp://dynamic-a-b", Endpoint("A \t\n B"))
}

func TestGenerate_Activates(t *testing.T) {
	r := NewRegistry()
	r.Configure(2*time.Second, retry.Policy{})
	run := newFakeRun()

	tool, err := r.Generate(context.Background(), run, "Custom XML Handler", "Handle XML", "tool-fusion")
	require.NoError(t, err)

	assert.Equal(t, StatusActive, tool.Status)
	assert.Equal(t, []string{"parse", "validate", "transform"}, tool.Capabilities)
	assert.Equal(t, "mcp://dynamic-custom-xml-handler", tool.Endpoint)
	assert.Regexp(t, `^tool-[0-9a-f-]{36}$`, tool.ID)
	assert.False(t, tool.ActivatedAt.IsZero())

	assert.Equal(t, []logLine{
		{"Generating dynamic tool: Custom XML Handler", buildlog.TypeTool},
		{"Dynamic tool ready: Custom XML Handler", buildlog.TypeSuccess},
	}, run.lines)
	assert.Equal(t, 1, run.activated)
	assert.Equal(t, []time.Duration{2 * time.Second}, run.sleeps)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestGenerate_NoDeduplication(t *testing.T) {
	r := NewRegistry()
	r.Configure(0, retry.Policy{})

	a, err := r.Generate(context.Background(), newFakeRun(), "Same", "p", "tool-fusion")
	require.NoError(t, err)
	b, err := r.Generate(context.Background(), newFakeRun(), "Same", "p", "tool-fusion")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, r.ActiveCount())
}

func TestGenerate_CancelledDuringActivation(t *testing.T) {
	r := NewRegistry()
	run := newFakeRun()
	run.onSleep = run.cancel

	_, err := r.Generate(context.Background(), run, "Late", "p", "tool-fusion")
	require.Error(t, err)

	tools := r.List()
	require.Len(t, tools, 1)
	assert.Equal(t, StatusGenerating, tools[0].Status, "activation must not land after cancellation")
	assert.Equal(t, 0, r.ActiveCount())
	assert.Equal(t, 0, run.activated)
}

func TestGenerate_RetryThenSuccess(t *testing.T) {
	r := NewRegistry()
	r.Configure(0, retry.Policy{MaxRetries: 2, Base: time.Millisecond})
	calls := 0
	r.SetBuilder(BuilderFunc(func(context.Context, DynamicTool) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}))
	run := newFakeRun()

	tool, err := r.Generate(context.Background(), run, "Flaky", "p", "tool-fusion")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, tool.Status)
	assert.Equal(t, 2, calls)
	assert.Equal(t, buildlog.TypeWarning, run.lines[1].typ)
}

func TestGenerate_RetryExhausted(t *testing.T) {
	r := NewRegistry()
	r.Configure(0, retry.Policy{MaxRetries: 1, Base: time.Millisecond})
	r.SetBuilder(BuilderFunc(func(context.Context, DynamicTool) error {
		return errors.New("compile error")
	}))
	run := newFakeRun()

	tool, err := r.Generate(context.Background(), run, "Broken", "p", "tool-fusion")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, StatusFailed, tool.Status)
	assert.Equal(t, 0, run.activated)
	assert.Equal(t, buildlog.TypeError, run.lines[len(run.lines)-1].typ)
}

func TestGet_Unknown(t *testing.T) {
	_, err := NewRegistry().Get("tool-missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestList_ReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Configure(0, retry.Policy{})
	_, err := r.Generate(context.Background(), newFakeRun(), "X", "p", "tool-fusion")
	require.NoError(t, err)

	list := r.List()
	list[0].Capabilities[0] = "mutated"
	assert.Equal(t, "parse", r.List()[0].Capabilities[0])
}
