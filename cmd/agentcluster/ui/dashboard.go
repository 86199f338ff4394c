package ui

import (
	"fmt"
	"strings"

	"agentcluster/internal/autopoiesis"
	"agentcluster/internal/campaign"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SnapshotMsg carries a new orchestrator snapshot into the dashboard.
type SnapshotMsg campaign.Snapshot

// streamClosedMsg is sent when the snapshot channel closes.
type streamClosedMsg struct{}

// WaitForSnapshot reads the next snapshot from ch.
func WaitForSnapshot(ch <-chan campaign.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return SnapshotMsg(s)
	}
}

// Dashboard is the live build view used by the watch command.
type Dashboard struct {
	width    int
	height   int
	viewport viewport.Model
	progress progress.Model
	styles   Styles

	updates <-chan campaign.Snapshot
	onStop  func()
	snap    campaign.Snapshot
	closed  bool
}

// NewDashboard creates a dashboard fed by updates. onStop runs when the
// user presses s.
func NewDashboard(updates <-chan campaign.Snapshot, onStop func()) Dashboard {
	vp := viewport.New(80, 12)
	vp.SetContent("")
	return Dashboard{
		width:    80,
		height:   24,
		viewport: vp,
		progress: progress.New(progress.WithDefaultGradient()),
		styles:   DefaultStyles(),
		updates:  updates,
		onStop:   onStop,
	}
}

func (m Dashboard) Init() tea.Cmd {
	return WaitForSnapshot(m.updates)
}

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			if m.onStop != nil {
				m.onStop()
			}
		case "k", "up":
			m.viewport.LineUp(1)
		case "j", "down":
			m.viewport.LineDown(1)
		}
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
	case SnapshotMsg:
		m.snap = campaign.Snapshot(msg)
		m.refreshLog()
		cmds = append(cmds, WaitForSnapshot(m.updates))
	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// SetSize fits the log viewport below the fixed header panels.
func (m *Dashboard) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.progress.Width = max(w-4, 10)
	m.viewport.Width = w
	m.viewport.Height = max(h-16, 4)
}

func (m *Dashboard) refreshLog() {
	lines := make([]string, 0, len(m.snap.BuildLog))
	for _, e := range m.snap.BuildLog {
		lines = append(lines, m.styles.FormatEntry(e))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Dashboard) View() string {
	s := m.snap
	var sb strings.Builder

	title := m.styles.Header.Render(" agentcluster ")
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", m.styles.PhaseBadge(s.Phase))
	sb.WriteString(header + "\n")
	if s.Requirement != "" {
		sb.WriteString(m.styles.Muted.Render(s.Requirement) + "\n")
	}
	sb.WriteString("\n")

	ratio := float64(s.Metrics.LinesProcessed) / float64(campaign.TotalLines)
	sb.WriteString(m.styles.Bold.Render("Lines") + fmt.Sprintf(" %d/%d\n", s.Metrics.LinesProcessed, campaign.TotalLines))
	sb.WriteString(m.progress.ViewAs(min(ratio, 1)) + "\n\n")

	sb.WriteString(m.styles.Info.Render(fmt.Sprintf(
		"Errors: %d  |  Corrected: %d  |  Tools: %d  |  Validations: %d",
		s.Metrics.ErrorsFound, s.Metrics.ErrorsCorrected, s.Metrics.ToolsGenerated, s.Metrics.ValidationCycles,
	)) + "\n\n")

	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.agentsPanel(), " ", m.toolsPanel()) + "\n")
	sb.WriteString(m.viewport.View() + "\n")
	sb.WriteString(m.styles.Muted.Render("[s] stop  [j/k] scroll  [q] quit"))
	return sb.String()
}

func (m Dashboard) agentsPanel() string {
	var lines []string
	for _, a := range m.snap.Agents {
		icon := "○"
		style := m.styles.Muted
		if a.Active {
			icon = "▶"
			style = m.styles.Info
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s %-28s %s", icon, a.Name, a.Status)))
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.Muted.Render("no agents"))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n"))
}

func (m Dashboard) toolsPanel() string {
	var lines []string
	for _, t := range m.snap.DynamicTools {
		style := m.styles.Tool
		switch t.Status {
		case autopoiesis.StatusActive:
			style = m.styles.Success
		case autopoiesis.StatusFailed:
			style = m.styles.Error
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s [%s]", t.Name, t.Status)))
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.Muted.Render("no dynamic tools"))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n"))
}
