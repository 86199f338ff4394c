// Package autopoiesis owns the dynamically generated tools a run creates
// when no catalog server covers its requirement.
package autopoiesis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"agentcluster/internal/buildlog"
	"agentcluster/internal/logging"
	"agentcluster/internal/retry"

	"github.com/google/uuid"
)

// ErrToolNotFound is returned for unknown tool ids.
var ErrToolNotFound = errors.New("tool not found")

// ToolStatus is the lifecycle state of a dynamic tool.
type ToolStatus string

const (
	StatusGenerating ToolStatus = "generating"
	StatusActive     ToolStatus = "active"
	StatusFailed     ToolStatus = "failed"
)

// DefaultCapabilities are granted to every tool on activation.
var DefaultCapabilities = []string{"parse", "validate", "transform"}

// DefaultActivationDelay is how long a tool stays generating.
const DefaultActivationDelay = 2 * time.Second

// DynamicTool is a tool synthesized during a run.
type DynamicTool struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Purpose      string     `json:"purpose"`
	CreatedBy    string     `json:"created_by"`
	Status       ToolStatus `json:"status"`
	Capabilities []string   `json:"capabilities"`
	Endpoint     string     `json:"endpoint"`
	CreatedAt    time.Time  `json:"created_at"`
	ActivatedAt  time.Time  `json:"activated_at,omitzero"`
}

func (t DynamicTool) clone() DynamicTool {
	if t.Capabilities != nil {
		t.Capabilities = append([]string(nil), t.Capabilities...)
	}
	return t
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Endpoint derives the MCP endpoint for a tool name.
func Endpoint(name string) string {
	return "mcp://dynamic-" + whitespaceRun.ReplaceAllString(strings.ToLower(name), "-")
}

// Builder performs the work that turns a generating tool into an active one.
type Builder interface {
	Build(ctx context.Context, tool DynamicTool) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, tool DynamicTool) error

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, tool DynamicTool) error { return f(ctx, tool) }

type simulatedBuilder struct{}

func (simulatedBuilder) Build(context.Context, DynamicTool) error { return nil }

// Effects are the side effects a generation step may apply to the owning run.
// Implementations are only handed out while the run's state lock is held.
type Effects interface {
	Log(message string, typ buildlog.EntryType, agentID string)
	ToolActivated()
}

// Run is the owning build run as seen by Generate.
type Run interface {
	// Sleep suspends for d or until the run is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
	// Commit applies fn atomically with the rest of the run's state, or
	// returns an error without calling fn if the run is no longer live.
	Commit(fn func(Effects)) error
}

// Registry holds every dynamic tool ever generated, in creation order.
type Registry struct {
	mu              sync.RWMutex
	tools           []DynamicTool
	index           map[string]int
	builder         Builder
	policy          retry.Policy
	activationDelay time.Duration
	now             func() time.Time
}

// NewRegistry creates an empty registry with the simulated builder.
func NewRegistry() *Registry {
	return &Registry{
		index:           make(map[string]int),
		builder:         simulatedBuilder{},
		activationDelay: DefaultActivationDelay,
		now:             time.Now,
	}
}

// SetBuilder replaces the builder; nil restores the simulated one.
func (r *Registry) SetBuilder(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b == nil {
		b = simulatedBuilder{}
	}
	r.builder = b
}

// Configure sets the activation delay and retry policy used by Generate.
func (r *Registry) Configure(activationDelay time.Duration, policy retry.Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activationDelay = activationDelay
	r.policy = policy
}

// Generate creates a tool in the generating state, waits out the activation
// delay and builds it, then activates it. Every state change goes through
// run.Commit, so nothing lands once the run has been cancelled. Identical
// names are not deduplicated.
func (r *Registry) Generate(ctx context.Context, run Run, name, purpose, createdBy string) (DynamicTool, error) {
	r.mu.RLock()
	builder, policy, delay := r.builder, r.policy, r.activationDelay
	r.mu.RUnlock()

	var tool DynamicTool
	if err := run.Commit(func(fx Effects) {
		tool = r.add(name, purpose, createdBy)
		fx.Log("Generating dynamic tool: "+name, buildlog.TypeTool, createdBy)
	}); err != nil {
		return DynamicTool{}, err
	}
	logging.Autopoiesis("Generating tool %s (%s)", tool.ID, name)

	if err := run.Sleep(ctx, delay); err != nil {
		return tool, err
	}

	err := retry.Do(ctx, policy, run.Sleep,
		func(ctx context.Context) error { return builder.Build(ctx, tool) },
		func(f retry.Failure) error {
			return run.Commit(func(fx Effects) {
				if f.Final {
					r.setStatus(tool.ID, StatusFailed)
					fx.Log(fmt.Sprintf("Tool generation failed after %d attempts: %s", f.Attempt, name), buildlog.TypeError, createdBy)
					return
				}
				fx.Log(fmt.Sprintf("Tool build attempt %d failed: %v", f.Attempt, f.Err), buildlog.TypeWarning, createdBy)
			})
		})
	if err != nil {
		logging.Get(logging.CategoryAutopoiesis).Warn("Tool %s not activated: %v", tool.ID, err)
		return r.getOrZero(tool.ID), fmt.Errorf("generate %q: %w", name, err)
	}

	if err := run.Commit(func(fx Effects) {
		tool = r.activate(tool.ID)
		fx.Log("Dynamic tool ready: "+name, buildlog.TypeSuccess, createdBy)
		fx.ToolActivated()
	}); err != nil {
		return tool, err
	}
	logging.Autopoiesis("Tool %s active at %s", tool.ID, tool.Endpoint)
	return tool, nil
}

func (r *Registry) add(name, purpose, createdBy string) DynamicTool {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool := DynamicTool{
		ID:           "tool-" + uuid.NewString(),
		Name:         name,
		Purpose:      purpose,
		CreatedBy:    createdBy,
		Status:       StatusGenerating,
		Capabilities: []string{},
		Endpoint:     Endpoint(name),
		CreatedAt:    r.now(),
	}
	r.index[tool.ID] = len(r.tools)
	r.tools = append(r.tools, tool)
	return tool.clone()
}

func (r *Registry) activate(id string) DynamicTool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index[id]
	r.tools[i].Status = StatusActive
	r.tools[i].Capabilities = append([]string(nil), DefaultCapabilities...)
	r.tools[i].ActivatedAt = r.now()
	return r.tools[i].clone()
}

func (r *Registry) setStatus(id string, status ToolStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[id]; ok {
		r.tools[i].Status = status
	}
}

func (r *Registry) getOrZero(id string) DynamicTool {
	t, _ := r.Get(id)
	return t
}

// Get returns a copy of the tool with the given id.
func (r *Registry) Get(id string) (DynamicTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return DynamicTool{}, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	return r.tools[i].clone(), nil
}

// List returns copies of all tools in creation order.
func (r *Registry) List() []DynamicTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DynamicTool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.clone()
	}
	return out
}

// ActiveCount returns the number of active tools.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tools {
		if t.Status == StatusActive {
			n++
		}
	}
	return n
}

// Len returns the number of tools in any state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
