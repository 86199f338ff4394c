package campaign

import (
	"context"
	"errors"
	"time"

	"agentcluster/internal/agents"
	"agentcluster/internal/autopoiesis"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/intent"
	"agentcluster/internal/mcp"
	"agentcluster/internal/metrics"
	"agentcluster/internal/retry"
)

var (
	ErrEmptyRequirement = errors.New("requirement is empty")
	ErrAlreadyRunning   = errors.New("a build is already running")
	ErrEmptyPrompt      = errors.New("prompt is empty")
	ErrClosed           = errors.New("orchestrator is closed")
	// ErrRetryBudgetExhausted is matched by errors.Is on any failed run.
	ErrRetryBudgetExhausted = retry.ErrExhausted

	// errRunInactive means the run token was cancelled or superseded; the
	// pending effect is dropped.
	errRunInactive = errors.New("run no longer active")
)

// Phase is a stage of the build state machine.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseInitializing         Phase = "initializing"
	PhasePlanningArchitecture Phase = "planning-architecture"
	PhaseScanningTools        Phase = "scanning-tools"
	PhaseAnalyzingGaps        Phase = "analyzing-gaps"
	PhaseFragmenting          Phase = "fragmentation"
	PhaseAssimilating         Phase = "assimilation"
	PhaseBuilding             Phase = "building"
	PhaseFinalizing           Phase = "finalizing"
	PhaseComplete             Phase = "complete"
	PhaseStopped              Phase = "stopped"
	PhaseFailed               Phase = "failed"
)

// Terminal reports whether no further transitions happen without a new Start.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseStopped, PhaseFailed:
		return true
	}
	return false
}

// TotalLines is the length of the Building-phase validation cycle.
const TotalLines = 50

// Specialists are visited in this order during fragmentation.
var Specialists = []string{
	"Parser Specialist",
	"Integration Specialist",
	"Validation Specialist",
	"Security Specialist",
}

// Timings are the named suspensions between steps.
type Timings struct {
	Initialize     time.Duration
	Architecture   time.Duration
	Scan           time.Duration
	GapAnalysis    time.Duration
	Fragment       time.Duration
	ToolActivation time.Duration
	Assimilate     time.Duration
	Line           time.Duration
	Correction     time.Duration
	Package        time.Duration
	Intent         time.Duration
}

// DefaultTimings returns the stock durations.
func DefaultTimings() Timings {
	return Timings{
		Initialize:     time.Second,
		Architecture:   1500 * time.Millisecond,
		Scan:           800 * time.Millisecond,
		GapAnalysis:    time.Second,
		Fragment:       500 * time.Millisecond,
		ToolActivation: 2 * time.Second,
		Assimilate:     1500 * time.Millisecond,
		Line:           200 * time.Millisecond,
		Correction:     300 * time.Millisecond,
		Package:        2 * time.Second,
		Intent:         750 * time.Millisecond,
	}
}

// OrchestratorConfig is captured at Start and holds for the whole run.
type OrchestratorConfig struct {
	Timings Timings
	Retry   retry.Policy
	// SubscriberBuffer is the channel capacity handed out by Subscribe.
	SubscriberBuffer int
}

// DefaultConfig returns the stock orchestrator configuration.
func DefaultConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Timings:          DefaultTimings(),
		Retry:            retry.Policy{MaxRetries: 3, Base: 250 * time.Millisecond, Max: 5 * time.Second},
		SubscriberBuffer: 64,
	}
}

// Sleeper suspends the run goroutine. Tests inject one to drive time.
type Sleeper func(ctx context.Context, d time.Duration) error

// Validator checks the code window [from, to] during the Building cycle.
type Validator interface {
	Validate(ctx context.Context, from, to int) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, from, to int) error

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, from, to int) error { return f(ctx, from, to) }

type simulatedValidator struct{}

func (simulatedValidator) Validate(context.Context, int, int) error { return nil }

// RunRecord summarizes a run that reached a terminal phase.
type RunRecord struct {
	RunID       string           `json:"run_id"`
	Requirement string           `json:"requirement"`
	FinalPhase  Phase            `json:"final_phase"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Metrics     metrics.Metrics  `json:"metrics"`
	Entries     []buildlog.Entry `json:"entries"`
}

// RunRecorder persists finished runs.
type RunRecorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// Snapshot is a copy of the observable orchestrator state.
type Snapshot struct {
	RunID        string                    `json:"run_id,omitempty"`
	Requirement  string                    `json:"requirement,omitempty"`
	Phase        Phase                     `json:"phase"`
	Running      bool                      `json:"running"`
	Agents       []agents.Agent            `json:"agents"`
	MCPServers   []mcp.Server              `json:"mcp_servers"`
	DynamicTools []autopoiesis.DynamicTool `json:"dynamic_tools"`
	BuildLog     []buildlog.Entry          `json:"build_log"`
	Metrics      metrics.Metrics           `json:"metrics"`
	IntentResult *intent.Result            `json:"intent_result,omitempty"`
	IntentTools  []intent.Tool             `json:"intent_tools"`
}

// Count returns the number of log entries of the given type.
func (s Snapshot) Count(typ buildlog.EntryType) int {
	n := 0
	for _, e := range s.BuildLog {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// Agent returns the named agent from the snapshot.
func (s Snapshot) Agent(id string) (agents.Agent, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return agents.Agent{}, false
}
