// Package tui is the terminal dashboard: live agent health, task counts,
// and a scrolling event log, with a settings overlay.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lessonsmith/lessonsmith/internal/config"
	"github.com/lessonsmith/lessonsmith/internal/events"
	"github.com/lessonsmith/lessonsmith/internal/orchestrator"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneAgents PaneID = iota
	PaneTasks
	PaneLog
)

// statusRefreshInterval paces engine snapshot polls.
const statusRefreshInterval = time.Second

// statusMsg carries a fresh engine snapshot to the panes.
type statusMsg struct {
	status orchestrator.Status
}

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	agentPane         AgentPaneModel
	taskPane          TaskPaneModel
	logPane           LogPaneModel
	settingsPane      SettingsPaneModel
	focusedPane       PaneID
	eventSub          <-chan events.Event
	statusFn          func() orchestrator.Status
	width             int
	height            int
	quitting          bool
	showSettings      bool
	config            *config.EngineConfig
	globalConfigPath  string
	projectConfigPath string
}

// New creates the dashboard model. It subscribes to every engine event and
// polls Status for the agent pane.
func New(engine *orchestrator.Orchestrator, cfg *config.EngineConfig, globalPath, projectPath string) Model {
	return Model{
		agentPane:         NewAgentPaneModel(),
		taskPane:          NewTaskPaneModel(),
		logPane:           NewLogPaneModel(),
		settingsPane:      NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:       PaneAgents,
		eventSub:          engine.Bus().SubscribeAll(256),
		statusFn:          engine.Status,
		config:            cfg,
		globalConfigPath:  globalPath,
		projectConfigPath: projectPath,
	}
}

// Init initializes the model and returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), statusTick(m.statusFn))
}

// waitForEvent returns a command that waits for the next engine event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// statusTick returns a command that delivers an engine snapshot after the
// refresh interval.
func statusTick(fn func() orchestrator.Status) tea.Cmd {
	return tea.Tick(statusRefreshInterval, func(time.Time) tea.Msg {
		return statusMsg{status: fn()}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Settings panel is modal; it sees every key while open
		if m.showSettings {
			switch msg.String() {
			case KeySettings, "esc":
				m.showSettings = false
				m.settingsPane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.settingsPane, cmd = m.settingsPane.Update(msg)
				cmds = append(cmds, cmd)

				if !m.settingsPane.IsVisible() {
					m.showSettings = false
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % 3
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + 2) % 3
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneAgents
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneLog
			m.updateFocusStates()

		default:
			// Remaining keys scroll the log when it has focus
			if m.focusedPane == PaneLog {
				var cmd tea.Cmd
				m.logPane, cmd = m.logPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case statusMsg:
		var cmd tea.Cmd
		m.agentPane, cmd = m.agentPane.Update(msg)
		cmds = append(cmds, cmd, statusTick(m.statusFn))

	case events.Event:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	leftPane := m.agentPane.View()
	rightTop := m.taskPane.View()
	rightBottom := m.logPane.View()

	rightPane := lipgloss.JoinVertical(lipgloss.Left, rightTop, rightBottom)
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	helpBar := HelpView()
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 35) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1
	rightTopHeight := (availableHeight * 35) / 100
	rightBottomHeight := availableHeight - rightTopHeight

	m.agentPane.SetSize(leftWidth, availableHeight)
	m.taskPane.SetSize(rightWidth, rightTopHeight)
	m.logPane.SetSize(rightWidth, rightBottomHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.agentPane.SetFocused(m.focusedPane == PaneAgents)
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.logPane.SetFocused(m.focusedPane == PaneLog)
}
