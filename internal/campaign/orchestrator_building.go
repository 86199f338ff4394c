package campaign

import (
	"context"
	"fmt"
	"strings"

	"agentcluster/internal/agents"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/metrics"
	"agentcluster/internal/retry"
)

var developmentAgents = []string{agents.Frontend, agents.Backend, agents.Database}

// build runs the Building phase: TotalLines validation steps with scripted
// syntax errors every seventh line.
func (o *Orchestrator) build(r *run) error {
	if err := o.apply(r, func() {
		o.phase = PhaseBuilding
		for _, id := range developmentAgents {
			o.setAgent(id, "generating code", true)
			o.appendLog(capitalize(id)+" agent starting development", buildlog.TypeInfo, id)
		}
		o.setAgent(agents.Validation, "validating code", true)
		o.setAgent(agents.ErrorCorrection, "monitoring", true)
	}); err != nil {
		return err
	}

	t := r.cfg.Timings
	for line := 1; line <= TotalLines; line++ {
		if err := o.wait(r.ctx, t.Line); err != nil {
			return err
		}

		if line%7 == 0 {
			if err := o.apply(r, func() {
				o.progress(line)
				o.appendLog(fmt.Sprintf("Syntax error detected on line %d", line), buildlog.TypeError, agents.Validation)
				o.metrics.IncErrorsFound()
			}); err != nil {
				return err
			}
			if err := o.step(r, t.Correction, func() {
				o.appendLog("Error corrected automatically", buildlog.TypeSuccess, agents.ErrorCorrection)
				o.metrics.IncErrorsCorrected()
				o.integration(line)
			}); err != nil {
				return err
			}
			continue
		}

		if line%5 == 0 {
			if err := o.validateWindow(r, line-4, line); err != nil {
				return err
			}
		}
		if err := o.apply(r, func() {
			o.progress(line)
			if line%5 == 0 {
				o.appendLog(fmt.Sprintf("Code validation passed for lines %d-%d", line-4, line), buildlog.TypeSuccess, agents.Validation)
			}
			o.integration(line)
		}); err != nil {
			return err
		}
	}
	return nil
}

// validateWindow runs the validator with retries. Each failed attempt is
// logged as a warning.
func (o *Orchestrator) validateWindow(r *run, from, to int) error {
	o.mu.Lock()
	v := o.validator
	o.mu.Unlock()

	return retry.Do(r.ctx, r.cfg.Retry, retry.SleepFunc(o.wait),
		func(ctx context.Context) error { return v.Validate(ctx, from, to) },
		func(f retry.Failure) error {
			return o.apply(r, func() {
				o.appendLog(fmt.Sprintf("Validation attempt %d for lines %d-%d failed: %v", f.Attempt, from, to, f.Err),
					buildlog.TypeWarning, agents.Validation)
			})
		})
}

// progress updates the per-line counters. Caller holds o.mu.
func (o *Orchestrator) progress(line int) {
	o.metrics.Merge(metrics.Partial{
		LinesProcessed:   metrics.Int(line),
		ValidationCycles: metrics.Int(line / 3),
	})
}

// integration logs the integration test cycle every tenth line. Caller holds o.mu.
func (o *Orchestrator) integration(line int) {
	if line%10 == 0 {
		o.appendLog(fmt.Sprintf("Integration test cycle %d completed", line/10), buildlog.TypeInfo, agents.Validation)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
