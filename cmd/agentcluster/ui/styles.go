// Package ui renders build state for the agentcluster terminal commands.
package ui

import (
	"os"
	"strconv"
	"strings"

	"agentcluster/internal/buildlog"
	"agentcluster/internal/campaign"

	"github.com/charmbracelet/lipgloss"
)

var (
	lightForeground = lipgloss.Color("#101F38")
	lightPrimary    = lipgloss.Color("#101F38")
	lightMuted      = lipgloss.Color("#6a737d")
	lightBorder     = lipgloss.Color("#dce0e5")

	darkForeground = lipgloss.Color("#f2f2f2")
	darkPrimary    = lipgloss.Color("#8BC34A")
	darkMuted      = lipgloss.Color("#8a94a6")
	darkBorder     = lipgloss.Color("#2a3850")

	colorError   = lipgloss.Color("#e53935")
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
	colorTool    = lipgloss.Color("#ab47bc")
	colorFrag    = lipgloss.Color("#4db6ac")
)

// Theme is the foreground palette for one terminal background.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme is the default palette.
func LightTheme() Theme {
	return Theme{Foreground: lightForeground, Primary: lightPrimary, Muted: lightMuted, Border: lightBorder}
}

// DarkTheme is used on dark backgrounds.
func DarkTheme() Theme {
	return Theme{Foreground: darkForeground, Primary: darkPrimary, Muted: darkMuted, Border: darkBorder, IsDark: true}
}

// DetectTheme picks a theme from COLORFGBG or AGENTCLUSTER_DARK_MODE.
func DetectTheme() Theme {
	if fgbg := os.Getenv("COLORFGBG"); fgbg != "" {
		parts := strings.Split(fgbg, ";")
		if len(parts) == 2 {
			// 0-6 and 8 are dark ANSI backgrounds
			if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
				return DarkTheme()
			}
		}
	}
	if os.Getenv("AGENTCLUSTER_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the lipgloss styles used by the CLI.
type Styles struct {
	Theme Theme

	Header lipgloss.Style
	Title  lipgloss.Style
	Muted  lipgloss.Style
	Panel  lipgloss.Style
	Bold   lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Tool    lipgloss.Style
	Frag    lipgloss.Style
}

// NewStyles builds the style set for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme:  theme,
		Header: lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Padding(0, 1),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(theme.Foreground),
		Muted:  lipgloss.NewStyle().Foreground(theme.Muted),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		Bold: lipgloss.NewStyle().Bold(true),

		Success: lipgloss.NewStyle().Foreground(colorSuccess),
		Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Info:    lipgloss.NewStyle().Foreground(colorInfo),
		Tool:    lipgloss.NewStyle().Foreground(colorTool),
		Frag:    lipgloss.NewStyle().Foreground(colorFrag),
	}
}

// DefaultStyles uses the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// ForEntry returns the style for a log entry type.
func (s Styles) ForEntry(typ buildlog.EntryType) lipgloss.Style {
	switch typ {
	case buildlog.TypeSuccess:
		return s.Success
	case buildlog.TypeWarning:
		return s.Warning
	case buildlog.TypeError:
		return s.Error
	case buildlog.TypeTool:
		return s.Tool
	case buildlog.TypeFragment:
		return s.Frag
	case buildlog.TypeSystem:
		return s.Muted
	default:
		return s.Info
	}
}

// FormatEntry renders one build log line.
func (s Styles) FormatEntry(e buildlog.Entry) string {
	ts := s.Muted.Render(e.Timestamp.Format("15:04:05"))
	tag := s.ForEntry(e.Type).Render(strings.ToUpper(string(e.Type)))
	line := ts + " " + tag + " " + e.Message
	if e.AgentID != "" {
		line += " " + s.Muted.Render("("+e.AgentID+")")
	}
	return line
}

// PhaseBadge renders the phase label, coloured by outcome.
func (s Styles) PhaseBadge(p campaign.Phase) string {
	switch p {
	case campaign.PhaseComplete:
		return s.Success.Bold(true).Render(string(p))
	case campaign.PhaseFailed:
		return s.Error.Render(string(p))
	case campaign.PhaseStopped:
		return s.Warning.Bold(true).Render(string(p))
	case campaign.PhaseIdle:
		return s.Muted.Render(string(p))
	default:
		return s.Info.Bold(true).Render(string(p))
	}
}
