// Package console implements the terminal surface of the cluster: slash
// directives handled locally and free text routed to the intent compiler.
package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"agentcluster/internal/buildlog"
	"agentcluster/internal/campaign"
	"agentcluster/internal/logging"

	"github.com/charmbracelet/glamour"
)

// Role labels a transcript line.
type Role string

const (
	RoleUser    Role = "User"
	RoleSystem  Role = "System"
	RoleSuccess Role = "Success"
	RoleError   Role = "Error"
)

// Line is one transcript entry.
type Line struct {
	Role Role
	Text string
}

func (l Line) String() string {
	return fmt.Sprintf("[%s] %s", l.Role, l.Text)
}

// Cluster is the orchestrator surface the console drives.
type Cluster interface {
	Start(requirement string) error
	Stop()
	SubmitIntent(prompt string) error
	Snapshot() campaign.Snapshot
	Subscribe(ctx context.Context) <-chan campaign.Snapshot
}

const helpMarkdown = `## Console directives

| Directive | Description |
|-----------|-------------|
| /help | Show this help |
| /clear | Clear the terminal |
| /status | System status |
| /build <requirement> | Start a build |
| /stop | Stop the running build |

Anything else is compiled as an intent.
`

// Console keeps a transcript and dispatches input lines.
type Console struct {
	cluster Cluster
	render  func(markdown string) (string, error)

	mu         sync.Mutex
	transcript []Line
}

// New creates a console over cluster. Help is rendered with glamour at the
// given word-wrap width.
func New(cluster Cluster, width int) *Console {
	if width <= 0 {
		width = 80
	}
	return &Console{
		cluster: cluster,
		render: func(md string) (string, error) {
			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(width),
			)
			if err != nil {
				return "", err
			}
			return r.Render(md)
		},
	}
}

// SetRenderer replaces the markdown renderer.
func (c *Console) SetRenderer(render func(markdown string) (string, error)) {
	c.render = render
}

// Transcript returns a copy of every line since the last /clear.
func (c *Console) Transcript() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.transcript...)
}

// Execute handles one input line and returns the lines it produced, the
// echoed user line first. Intents block until their result is published or
// ctx is done.
func (c *Console) Execute(ctx context.Context, input string) []Line {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	out := []Line{{Role: RoleUser, Text: input}}
	if strings.HasPrefix(input, "/") {
		out = append(out, c.directive(input)...)
	} else {
		out = append(out, c.intent(ctx, input)...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(out) == 2 && out[1].Role == roleCleared {
		c.transcript = nil
		return nil
	}
	c.transcript = append(c.transcript, out...)
	return out
}

// roleCleared marks a /clear result; it never reaches the transcript.
const roleCleared Role = "cleared"

func (c *Console) directive(input string) []Line {
	args := strings.Fields(input[1:])
	if len(args) == 0 {
		return []Line{{Role: RoleError, Text: "Unknown directive: "}}
	}
	name := strings.ToLower(args[0])
	logging.Get(logging.CategoryConsole).Debug("Directive %s", name)

	switch name {
	case "clear":
		return []Line{{Role: roleCleared}}

	case "help":
		text, err := c.render(helpMarkdown)
		if err != nil {
			logging.Get(logging.CategoryConsole).Warn("Help render failed: %v", err)
			text = helpMarkdown
		}
		return []Line{{Role: RoleSystem, Text: text}}

	case "status":
		return []Line{{Role: RoleSystem, Text: Status(c.cluster.Snapshot())}}

	case "build":
		requirement := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input[1:]), args[0]))
		if err := c.cluster.Start(requirement); err != nil {
			return []Line{{Role: RoleError, Text: fmt.Sprintf("Build rejected: %v", err)}}
		}
		return []Line{{Role: RoleSuccess, Text: fmt.Sprintf("Build started: %s", requirement)}}

	case "stop":
		c.cluster.Stop()
		return []Line{{Role: RoleSystem, Text: "Stop requested."}}

	default:
		return []Line{{Role: RoleError, Text: "Unknown directive: " + name}}
	}
}

func (c *Console) intent(ctx context.Context, prompt string) []Line {
	out := []Line{{Role: RoleSystem, Text: "Analyzing intent..."}}

	// Subscribe first so the published result cannot be missed.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := c.cluster.Subscribe(subCtx)
	before := lastEntryID(<-updates)

	if err := c.cluster.SubmitIntent(prompt); err != nil {
		return append(out, Line{Role: RoleError, Text: fmt.Sprintf("Execution Failed: %v", err)})
	}

	for {
		select {
		case <-ctx.Done():
			return append(out, Line{Role: RoleError, Text: fmt.Sprintf("Execution Failed: %v", ctx.Err())})
		case snap, ok := <-updates:
			if !ok {
				return append(out, Line{Role: RoleError, Text: "Execution Failed: cluster closed"})
			}
			if !published(snap, before) || snap.IntentResult == nil {
				continue
			}
			role := RoleSystem
			if snap.IntentResult.Matched {
				role = RoleSuccess
			}
			return append(out, Line{Role: role, Text: snap.IntentResult.Output})
		}
	}
}

func lastEntryID(s campaign.Snapshot) uint64 {
	if len(s.BuildLog) == 0 {
		return 0
	}
	return s.BuildLog[len(s.BuildLog)-1].ID
}

// published reports whether an intent result was logged after entry id after.
func published(s campaign.Snapshot, after uint64) bool {
	for i := len(s.BuildLog) - 1; i >= 0; i-- {
		e := s.BuildLog[i]
		if e.ID <= after {
			return false
		}
		if e.Type == buildlog.TypeSuccess && e.Message == "Generated output for prompt" {
			return true
		}
	}
	return false
}

// Status renders a one-paragraph phase and metrics summary.
func Status(s campaign.Snapshot) string {
	var b strings.Builder
	state := "idle"
	if s.Running {
		state = "running"
	}
	fmt.Fprintf(&b, "Phase: %s (%s)\n", s.Phase, state)
	if s.Requirement != "" {
		fmt.Fprintf(&b, "Requirement: %s\n", s.Requirement)
	}
	m := s.Metrics
	fmt.Fprintf(&b, "Lines: %d/%d  Validation cycles: %d\n", m.LinesProcessed, campaign.TotalLines, m.ValidationCycles)
	fmt.Fprintf(&b, "Errors found/corrected: %d/%d  Tools generated: %d\n", m.ErrorsFound, m.ErrorsCorrected, m.ToolsGenerated)

	active := 0
	for _, a := range s.Agents {
		if a.Active {
			active++
		}
	}
	fmt.Fprintf(&b, "Active agents: %d/%d  MCP servers: %d  Dynamic tools: %d", active, len(s.Agents), len(s.MCPServers), len(s.DynamicTools))
	return b.String()
}
