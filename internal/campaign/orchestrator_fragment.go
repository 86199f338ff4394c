package campaign

import (
	"context"
	"time"

	"agentcluster/internal/agents"
	"agentcluster/internal/autopoiesis"
	"agentcluster/internal/buildlog"
)

// fragment splits the tool-fusion agent into micro-specialists, generates a
// tool for the requirement and reassembles.
func (o *Orchestrator) fragment(r *run) error {
	t := r.cfg.Timings

	for _, specialist := range Specialists {
		if err := o.apply(r, func() {
			o.appendLog("Fragmenting into "+specialist, buildlog.TypeFragment, agents.ToolFusion)
		}); err != nil {
			return err
		}
		if err := o.wait(r.ctx, t.Fragment); err != nil {
			return err
		}
	}

	name := "Custom " + r.requirement + " Handler"
	purpose := "Handle " + r.requirement + " requirements"
	if _, err := o.tools.Generate(r.ctx, runHandle{o: o, r: r}, name, purpose, agents.ToolFusion); err != nil {
		return err
	}

	if err := o.apply(r, func() {
		o.appendLog("Re-assembling specialized knowledge...", buildlog.TypeSystem, "")
		o.phase = PhaseAssimilating
	}); err != nil {
		return err
	}

	return o.step(r, t.Assimilate, func() {
		o.appendLog("Collaborative tool assimilation complete", buildlog.TypeSuccess, agents.ToolFusion)
	})
}

// runHandle lets the tool registry schedule effects inside a run.
type runHandle struct {
	o *Orchestrator
	r *run
}

func (h runHandle) Sleep(ctx context.Context, d time.Duration) error {
	return h.o.wait(ctx, d)
}

func (h runHandle) Commit(fn func(autopoiesis.Effects)) error {
	return h.o.apply(h.r, func() { fn(runEffects{h.o}) })
}

// runEffects is only handed out while o.mu is held.
type runEffects struct {
	o *Orchestrator
}

func (e runEffects) Log(message string, typ buildlog.EntryType, agentID string) {
	e.o.appendLog(message, typ, agentID)
}

func (e runEffects) ToolActivated() {
	e.o.metrics.IncToolsGenerated()
}
