// Package agents tracks the fixed roster of logical agents that make up the
// build cluster and their current status labels.
package agents

import (
	"errors"
	"fmt"
	"sync"

	"agentcluster/internal/logging"
)

// ErrAgentNotFound is returned when an unknown agent id is addressed.
var ErrAgentNotFound = errors.New("agent not found")

// Well-known agent ids.
const (
	Orchestrator    = "orchestrator"
	GodCodeRX       = "godcoderx"
	Architecture    = "architecture"
	Frontend        = "frontend"
	Backend         = "backend"
	Database        = "database"
	Validation      = "validation"
	ErrorCorrection = "error-correction"
	MCPManager      = "mcp-manager"
	ToolFusion      = "tool-fusion"
)

// Status labels used by the orchestrator. Status is free text; these are
// the labels the cluster itself assigns.
const (
	StatusIdle     = "idle"
	StatusComplete = "complete"
)

// Agent is a named logical role with a status label.
type Agent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Status    string `json:"status"`
	Active    bool   `json:"active"`
}

// DefaultRoster is the canonical agent set, in display order.
var DefaultRoster = []Agent{
	{ID: Orchestrator, Name: "Orchestrator Agent", Specialty: "Coordination"},
	{ID: GodCodeRX, Name: "GodCodeRX Agent", Specialty: "Tool-Based Execution"},
	{ID: Architecture, Name: "Architecture Agent", Specialty: "System Design"},
	{ID: Frontend, Name: "Frontend Agent", Specialty: "UI/UX"},
	{ID: Backend, Name: "Backend Agent", Specialty: "API/Logic"},
	{ID: Database, Name: "Database Agent", Specialty: "Data Layer"},
	{ID: Validation, Name: "Real-Time Validation Agent", Specialty: "Code Testing"},
	{ID: ErrorCorrection, Name: "Error Correction Agent", Specialty: "Bug Fixing"},
	{ID: MCPManager, Name: "MCP Server Manager", Specialty: "Tool Management"},
	{ID: ToolFusion, Name: "Tool Fusion Agent", Specialty: "Dynamic Tools"},
}

// Registry holds the agent roster. The set of ids never changes after New.
type Registry struct {
	mu     sync.RWMutex
	agents []Agent
	index  map[string]int
}

// New seeds a registry with DefaultRoster, every agent idle and inactive.
func New() *Registry {
	r := &Registry{
		agents: make([]Agent, len(DefaultRoster)),
		index:  make(map[string]int, len(DefaultRoster)),
	}
	for i, a := range DefaultRoster {
		a.Status = StatusIdle
		a.Active = false
		r.agents[i] = a
		r.index[a.ID] = i
	}
	return r
}

// SetStatus updates one agent. Unknown ids yield ErrAgentNotFound.
func (r *Registry) SetStatus(id, status string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		logging.Get(logging.CategoryAgents).Error("SetStatus on unknown agent %q", id)
		return fmt.Errorf("set status %q: %w: %s", status, ErrAgentNotFound, id)
	}
	r.agents[i].Status = status
	r.agents[i].Active = active
	logging.AgentsDebug("%s -> %s (active=%v)", id, status, active)
	return nil
}

// ResetAll applies the same status to every agent.
func (r *Registry) ResetAll(status string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.agents {
		r.agents[i].Status = status
		r.agents[i].Active = active
	}
	logging.Agents("All agents reset to %s (active=%v)", status, active)
}

// Get returns a copy of one agent.
func (r *Registry) Get(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return r.agents[i], nil
}

// List returns a copy of the roster in display order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// ActiveIDs returns the ids of agents currently marked active.
func (r *Registry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, a := range r.agents {
		if a.Active {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Len returns the number of agents in the roster.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
