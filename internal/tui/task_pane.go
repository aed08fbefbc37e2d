package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lessonsmith/lessonsmith/internal/events"
)

// TaskPaneModel shows aggregate task counts and a progress bar.
type TaskPaneModel struct {
	pending   int
	running   int
	completed int
	failed    int
	cancelled int
	width     int
	height    int
	focused   bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.TaskProgressEvent:
		m.pending = msg.Pending
		m.running = msg.Running
		m.completed = msg.Completed
		m.failed = msg.Failed
		m.cancelled = msg.Cancelled
	}

	return m, nil
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	total := m.pending + m.running + m.completed + m.failed + m.cancelled
	b.WriteString(fmt.Sprintf("Total:     %d\n", total))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusIdle.Render(fmt.Sprintf("%d", m.completed))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusBusy.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusError.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Cancelled: %s\n", StyleStatusOffline.Render(fmt.Sprintf("%d", m.cancelled))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusOffline.Render(fmt.Sprintf("%d", m.pending))))

	b.WriteString("\n")

	if total > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / total
		failedWidth := (m.failed * barWidth) / total
		runningWidth := (m.running * barWidth) / total
		pendingWidth := barWidth - completedWidth - failedWidth - runningWidth

		bar := StyleStatusIdle.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusError.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusBusy.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusOffline.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.completed, total))
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

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
