package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentcluster/internal/agents"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("agentcluster/campaign")

// execute is the body of the run goroutine.
func (o *Orchestrator) execute(r *run) {
	defer o.wg.Done()
	timer := logging.StartTimer(logging.CategoryCampaign, "run "+r.id)
	_, span := tracer.Start(context.Background(), "build.run", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.Bool("run.tool_gap", HasToolGap(r.requirement)),
	))
	defer span.End()

	err := o.runPhases(r)
	switch {
	case err == nil:
		logging.Campaign("Run %s complete", r.id)
	case errors.Is(err, errRunInactive), errors.Is(err, context.Canceled):
		logging.Campaign("Run %s ended early: %v", r.id, err)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.fail(r, err)
	}
	timer.Stop()

	o.mu.Lock()
	rec, recorder := r.final, o.recorder
	o.mu.Unlock()
	if rec != nil {
		span.SetAttributes(
			attribute.String("run.final_phase", string(rec.FinalPhase)),
			attribute.Int("run.lines_processed", rec.Metrics.LinesProcessed),
			attribute.Int("run.tools_generated", rec.Metrics.ToolsGenerated),
		)
	}
	if rec != nil && recorder != nil {
		if err := recorder.Record(context.Background(), *rec); err != nil {
			logging.Get(logging.CategoryJournal).Error("Failed to record run %s: %v", r.id, err)
		}
	}
}

func (o *Orchestrator) runPhases(r *run) error {
	t := r.cfg.Timings

	if err := o.step(r, t.Initialize, func() {
		o.phase = PhasePlanningArchitecture
		o.setAgent(agents.Architecture, "designing system", true)
		o.appendLog("Designing system architecture and technology stack", buildlog.TypeInfo, agents.Architecture)
	}); err != nil {
		return err
	}

	if err := o.step(r, t.Architecture, func() {
		o.phase = PhaseScanningTools
		o.setAgent(agents.MCPManager, "scanning servers", true)
		o.appendLog("Scanning available MCP servers for required tools", buildlog.TypeInfo, agents.MCPManager)
	}); err != nil {
		return err
	}

	if err := o.step(r, t.Scan, func() {
		o.phase = PhaseAnalyzingGaps
		o.appendLog("Identifying tool gaps for specialized requirements...", buildlog.TypeWarning, agents.MCPManager)
	}); err != nil {
		return err
	}

	gap := HasToolGap(r.requirement)
	if err := o.step(r, t.GapAnalysis, func() {
		if !gap {
			return
		}
		o.appendLog("Tool gap identified: No existing MCP server for this requirement", buildlog.TypeWarning, agents.MCPManager)
		o.appendLog("Initiating collaborative re-fragmentation...", buildlog.TypeSystem, "")
		o.phase = PhaseFragmenting
	}); err != nil {
		return err
	}

	if gap {
		if err := o.fragment(r); err != nil {
			return err
		}
	}

	if err := o.build(r); err != nil {
		return err
	}
	return o.finalize(r)
}

// HasToolGap reports whether a requirement needs a dynamically generated tool.
func HasToolGap(requirement string) bool {
	lowered := strings.ToLower(requirement)
	return strings.Contains(lowered, "custom") || strings.Contains(lowered, "specialized")
}

func (o *Orchestrator) finalize(r *run) error {
	if err := o.apply(r, func() {
		o.phase = PhaseFinalizing
		o.appendLog("Build process completed successfully!", buildlog.TypeSuccess, "")
		o.appendLog("Generating downloadable application package...", buildlog.TypeInfo, "")
	}); err != nil {
		return err
	}

	return o.step(r, r.cfg.Timings.Package, func() {
		o.appendLog("Application package ready for download", buildlog.TypeSuccess, "")
		o.phase = PhaseComplete
		o.running = false
		o.agents.ResetAll(agents.StatusComplete, false)
		o.recordLocked(r)
	})
}

// fail ends r in PhaseFailed if it is still live.
func (o *Orchestrator) fail(r *run, cause error) {
	logging.Get(logging.CategoryCampaign).Error("Run %s failed: %v", r.id, cause)
	_ = o.apply(r, func() {
		o.appendLog(fmt.Sprintf("Build failed: %v", cause), buildlog.TypeError, "")
		o.phase = PhaseFailed
		o.running = false
		o.agents.ResetAll(agents.StatusIdle, false)
		o.recordLocked(r)
	})
	r.cancel()
}
