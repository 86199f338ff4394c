package campaign

import (
	"fmt"
	"strings"

	"agentcluster/internal/agents"
	"agentcluster/internal/buildlog"
	"agentcluster/internal/logging"
)

// Stop cancels the active run. The phase, agents and log change before Stop
// returns. Calling Stop with no active run does nothing.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running || o.current == nil {
		return
	}
	r := o.current
	logging.Campaign("Stopping run %s in phase %s", r.id, o.phase)

	o.running = false
	o.phase = PhaseStopped
	o.agents.ResetAll(agents.StatusIdle, false)
	o.appendLog("Build process stopped by user", buildlog.TypeWarning, "")
	o.recordLocked(r)
	r.cancel()
	o.notifyLocked()
}

// SubmitIntent compiles prompt after the intent delay and publishes the
// result. It is accepted whether or not a build is running; if several
// prompts are in flight only the most recent one is published and each
// earlier one logs that it was superseded.
func (o *Orchestrator) SubmitIntent(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		logging.Get(logging.CategoryIntent).Warn("Intent rejected: %v", ErrEmptyPrompt)
		return ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.baseCtx.Err() != nil {
		o.mu.Unlock()
		logging.Get(logging.CategoryIntent).Warn("Intent rejected: %v", ErrClosed)
		return ErrClosed
	}
	o.intentSeq++
	seq := o.intentSeq
	delay := o.config.Timings.Intent
	compiler := o.compiler
	o.appendLog(fmt.Sprintf("Received prompt: %q", prompt), buildlog.TypeInfo, agents.GodCodeRX)
	o.setAgent(agents.GodCodeRX, "processing prompt", true)
	o.notifyLocked()
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()

		res := compiler.Compile(prompt)
		if err := o.wait(o.baseCtx, delay); err != nil {
			logging.IntentDebug("Intent %d abandoned: %v", seq, err)
			return
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		if seq != o.intentSeq {
			logging.IntentDebug("Intent %d superseded by %d", seq, o.intentSeq)
			o.appendLog(fmt.Sprintf("Output for prompt %q superseded by a newer prompt", prompt), buildlog.TypeInfo, agents.GodCodeRX)
			o.notifyLocked()
			return
		}
		o.intentResult = &res
		o.appendLog("Generated output for prompt", buildlog.TypeSuccess, agents.GodCodeRX)
		o.setAgent(agents.GodCodeRX, agents.StatusIdle, false)
		o.notifyLocked()
	}()
	return nil
}
