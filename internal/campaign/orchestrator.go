// Package campaign drives the agent cluster through a build run: a phase
// state machine executed as a sequence of timed steps on a single goroutine.
//
// Every step suspends first, then takes the state lock, checks that its run
// is still the live one, and applies all of its effects in one transaction.
// Stop flips the state synchronously and cancels the run, so nothing the old
// run had scheduled can land afterwards.
package campaign

import (
	"context"
	"strings"
	"sync"
	"time"

	"agentcluster/internal/agents"
	"agentcluster/internal/autopoiesis"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/intent"
	"agentcluster/internal/logging"
	"agentcluster/internal/metrics"
	"agentcluster/internal/retry"

	"github.com/google/uuid"
)

// run is the cancellation token for one accepted Start.
type run struct {
	id          string
	requirement string
	startedAt   time.Time
	cfg         OrchestratorConfig
	ctx         context.Context
	cancel      context.CancelFunc

	// final is set in the transaction that ends the run.
	final *RunRecord
}

// Orchestrator owns the agents, log, tools and metrics of the cluster.
type Orchestrator struct {
	mu sync.Mutex

	agents   *agents.Registry
	log      *buildlog.Log
	tools    *autopoiesis.Registry
	metrics  *metrics.Aggregator
	compiler *intent.Compiler

	config    OrchestratorConfig
	sleep     Sleeper
	validator Validator
	recorder  RunRecorder

	phase   Phase
	running bool
	current *run

	intentSeq    uint64
	intentResult *intent.Result

	subs map[chan Snapshot]struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		agents:     agents.New(),
		log:        buildlog.New(),
		tools:      autopoiesis.NewRegistry(),
		metrics:    metrics.New(),
		compiler:   intent.NewCompiler(nil),
		config:     cfg,
		sleep:      retry.Sleep,
		validator:  simulatedValidator{},
		phase:      PhaseIdle,
		subs:       make(map[chan Snapshot]struct{}),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	logging.CampaignDebug("Orchestrator created")
	return o
}

// SetSleeper replaces the step timer.
func (o *Orchestrator) SetSleeper(s Sleeper) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s == nil {
		s = retry.Sleep
	}
	o.sleep = s
}

// SetValidator replaces the Building-cycle validator; nil restores the simulated one.
func (o *Orchestrator) SetValidator(v Validator) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v == nil {
		v = simulatedValidator{}
	}
	o.validator = v
}

// SetBuilder replaces the dynamic tool builder.
func (o *Orchestrator) SetBuilder(b autopoiesis.Builder) {
	o.tools.SetBuilder(b)
}

// SetRecorder attaches a journal for finished runs.
func (o *Orchestrator) SetRecorder(r RunRecorder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorder = r
}

// SetIntentCompiler replaces the intent rule table.
func (o *Orchestrator) SetIntentCompiler(c *intent.Compiler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.compiler = c
}

// SetConfig replaces the configuration. A run already in progress keeps the
// configuration it started with.
func (o *Orchestrator) SetConfig(cfg OrchestratorConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.config = cfg
	logging.Campaign("Configuration updated; applies from the next run")
}

// Metrics exposes the aggregator for gauge registration.
func (o *Orchestrator) Metrics() *metrics.Aggregator {
	return o.metrics
}

// Start accepts a requirement and launches a run.
func (o *Orchestrator) Start(requirement string) error {
	if strings.TrimSpace(requirement) == "" {
		logging.Get(logging.CategoryCampaign).Warn("Start rejected: %v", ErrEmptyRequirement)
		return ErrEmptyRequirement
	}

	o.mu.Lock()
	if o.baseCtx.Err() != nil {
		o.mu.Unlock()
		logging.Get(logging.CategoryCampaign).Warn("Start rejected: %v", ErrClosed)
		return ErrClosed
	}
	if o.running {
		o.mu.Unlock()
		logging.Get(logging.CategoryCampaign).Warn("Start rejected: %v", ErrAlreadyRunning)
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(o.baseCtx)
	r := &run{
		id:          uuid.NewString(),
		requirement: requirement,
		startedAt:   time.Now(),
		cfg:         o.config,
		ctx:         ctx,
		cancel:      cancel,
	}
	o.tools.Configure(r.cfg.Timings.ToolActivation, r.cfg.Retry)

	o.current = r
	o.running = true
	o.log.Clear()
	o.metrics.Reset()
	o.phase = PhaseInitializing
	o.appendLog("Starting adaptive agent cluster build process...", buildlog.TypeSystem, "")
	o.setAgent(agents.Orchestrator, "analyzing requirements", true)
	o.appendLog("Parsing project requirements and creating specifications", buildlog.TypeInfo, agents.Orchestrator)
	o.notifyLocked()

	o.wg.Add(1)
	o.mu.Unlock()

	logging.Campaign("Run %s started: %q", r.id, requirement)
	go o.execute(r)
	return nil
}

// Wait blocks until the run goroutine and any pending intent have exited.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close stops any run, abandons pending intents and closes subscriptions.
func (o *Orchestrator) Close() {
	o.Stop()
	o.baseCancel()
	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subs {
		delete(o.subs, ch)
		close(ch)
	}
}

// live reports whether r may still apply effects. Caller holds o.mu.
func (o *Orchestrator) live(r *run) bool {
	return o.running && o.current == r && r.ctx.Err() == nil
}

// apply runs fn as one transaction of r, or drops it if r is no longer live.
func (o *Orchestrator) apply(r *run, fn func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.live(r) {
		return errRunInactive
	}
	fn()
	o.notifyLocked()
	return nil
}

// step suspends for d and then applies fn.
func (o *Orchestrator) step(r *run, d time.Duration, fn func()) error {
	if err := o.wait(r.ctx, d); err != nil {
		return err
	}
	return o.apply(r, fn)
}

func (o *Orchestrator) wait(ctx context.Context, d time.Duration) error {
	o.mu.Lock()
	sleep := o.sleep
	o.mu.Unlock()
	return sleep(ctx, d)
}

// appendLog records an entry and mirrors it to the buildlog category. Caller holds o.mu.
func (o *Orchestrator) appendLog(message string, typ buildlog.EntryType, agentID string) {
	e := o.log.Append(message, typ, agentID)
	logging.Get(logging.CategoryBuildLog).Info("#%d [%s] %s", e.ID, e.Type, e.Message)
}

// setAgent updates an agent status. Caller holds o.mu.
func (o *Orchestrator) setAgent(id, status string, active bool) {
	if err := o.agents.SetStatus(id, status, active); err != nil {
		logging.Get(logging.CategoryAgents).Error("Status update failed: %v", err)
	}
}

// recordLocked captures the final state of r. Caller holds o.mu.
func (o *Orchestrator) recordLocked(r *run) {
	r.final = &RunRecord{
		RunID:       r.id,
		Requirement: r.requirement,
		FinalPhase:  o.phase,
		StartedAt:   r.startedAt,
		FinishedAt:  time.Now(),
		Metrics:     o.metrics.Snapshot(),
		Entries:     o.log.Entries(),
	}
}
