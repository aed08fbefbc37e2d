package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/lessonsmith/lessonsmith/internal/events"
)

// maxLogLines caps the in-memory event log.
const maxLogLines = 500

// LogPaneModel is a scrollable log of engine events.
type LogPaneModel struct {
	lines    []string
	viewport viewport.Model
	width    int
	height   int
	focused  bool
}

// NewLogPaneModel creates a new log pane model.
func NewLogPaneModel() LogPaneModel {
	return LogPaneModel{
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		m.viewport, cmd = m.viewport.Update(msg)

	case events.Event:
		if line, ok := formatEvent(msg); ok {
			m.appendLine(line)
		}
	}

	return m, cmd
}

// formatEvent renders one event as a log line. Progress events are skipped;
// the task pane already shows the counts.
func formatEvent(ev events.Event) (string, bool) {
	stamp := ev.At().Format("15:04:05")

	switch e := ev.(type) {
	case events.TaskStartedEvent:
		return fmt.Sprintf("%s  %s %s -> %s", stamp, e.Type, e.ID, e.AgentID), true
	case events.TaskCompletedEvent:
		return fmt.Sprintf("%s  %s %s completed in %v (cost %.2f)", stamp, e.Type, e.ID, e.Duration.Round(1e6), e.Cost), true
	case events.TaskFailedEvent:
		return fmt.Sprintf("%s  %s %s failed: %v", stamp, e.Type, e.ID, e.Err), true
	case events.TaskCancelledEvent:
		return fmt.Sprintf("%s  task %s cancelled", stamp, e.ID), true
	case events.AgentStatusEvent:
		return fmt.Sprintf("%s  agent %s is now %s", stamp, e.AgentID, e.Status), true
	case events.HealthWarningEvent:
		return fmt.Sprintf("%s  health warning: %s at %d", stamp, e.AgentID, e.Score), true
	case events.PipelineStartedEvent:
		return fmt.Sprintf("%s  pipeline %s started for %q", stamp, e.RunID, e.Workflow), true
	case events.PipelinePhaseEvent:
		return fmt.Sprintf("%s  pipeline %s finished %s phase", stamp, e.RunID, e.Phase), true
	case events.PipelineCompletedEvent:
		return fmt.Sprintf("%s  pipeline %s completed in %v", stamp, e.RunID, e.Duration.Round(1e6)), true
	case events.PipelineFailedEvent:
		return fmt.Sprintf("%s  pipeline %s failed in %s phase: %v", stamp, e.RunID, e.Phase, e.Err), true
	default:
		return "", false
	}
}

func (m *LogPaneModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View renders the log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := StyleTitle.Render("Events")
	content := title + "\n" + m.viewport.View()

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m *LogPaneModel) resizeViewport() {
	w := m.width - 4
	h := m.height - 4
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
}

// SetSize updates the pane dimensions.
func (m *LogPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *LogPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
