package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lessonsmith/lessonsmith/internal/agent"
)

// AgentPaneModel renders the agent catalog with live status and health.
// It is refreshed from engine status snapshots, not reconstructed from events.
type AgentPaneModel struct {
	agents  []*agent.Agent
	width   int
	height  int
	focused bool
}

// NewAgentPaneModel creates a new agent pane model.
func NewAgentPaneModel() AgentPaneModel {
	return AgentPaneModel{}
}

// Update handles messages for the agent pane.
func (m AgentPaneModel) Update(msg tea.Msg) (AgentPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case statusMsg:
		agents := append([]*agent.Agent(nil), msg.status.Agents...)
		sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
		m.agents = agents
	}

	return m, nil
}

// View renders the agent pane.
func (m AgentPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Agents")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.agents) == 0 {
		b.WriteString(StyleStatusOffline.Render("No agents registered"))
	} else {
		for _, a := range m.agents {
			name := a.Name
			if maxName := m.width - 22; maxName > 3 && len(name) > maxName {
				name = name[:maxName-3] + "..."
			}
			b.WriteString(fmt.Sprintf("%s %-s\n", m.statusIcon(a.Status), name))
			b.WriteString(fmt.Sprintf("  %s %d\n", healthBar(a.HealthScore), a.HealthScore))
		}
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// statusIcon returns a styled status indicator.
func (m AgentPaneModel) statusIcon(status agent.Status) string {
	switch status {
	case agent.StatusBusy:
		return StyleStatusBusy.Render("●")
	case agent.StatusIdle:
		return StyleStatusIdle.Render("✓")
	case agent.StatusError:
		return StyleStatusError.Render("✗")
	default:
		return StyleStatusOffline.Render("○")
	}
}

// healthBar renders a ten-cell bar for a 0-100 score.
func healthBar(score int) string {
	filled := score / 10
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	if score < 50 {
		return StyleHealthLow.Render(bar)
	}
	return StyleHealthGood.Render(bar)
}

// SetSize updates the pane dimensions.
func (m *AgentPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *AgentPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
