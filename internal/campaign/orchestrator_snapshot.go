package campaign

import (
	"context"

	"agentcluster/internal/intent"
	"agentcluster/internal/mcp"
)

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		Phase:        o.phase,
		Running:      o.running,
		Agents:       o.agents.List(),
		MCPServers:   mcp.Catalog(),
		DynamicTools: o.tools.List(),
		BuildLog:     o.log.Entries(),
		Metrics:      o.metrics.Snapshot(),
		IntentTools:  intent.Tools(),
	}
	if o.current != nil {
		s.RunID = o.current.id
		s.Requirement = o.current.requirement
	}
	if o.intentResult != nil {
		res := *o.intentResult
		res.Calls = append([]string(nil), res.Calls...)
		s.IntentResult = &res
	}
	return s
}

// Subscribe returns a channel that receives a snapshot after every applied
// step, starting with the current state. A slow reader loses the oldest
// pending snapshot rather than blocking the run. The channel is closed when
// ctx is done or the orchestrator is closed.
func (o *Orchestrator) Subscribe(ctx context.Context) <-chan Snapshot {
	o.mu.Lock()
	size := o.config.SubscriberBuffer
	if size <= 0 {
		size = 1
	}
	ch := make(chan Snapshot, size)
	ch <- o.snapshotLocked()
	o.subs[ch] = struct{}{}
	o.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-o.baseCtx.Done():
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// notifyLocked pushes the current state to subscribers. Caller holds o.mu.
func (o *Orchestrator) notifyLocked() {
	if len(o.subs) == 0 {
		return
	}
	snap := o.snapshotLocked()
	for ch := range o.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the oldest pending snapshot and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
