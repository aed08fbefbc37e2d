package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/lessonsmith/lessonsmith/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.EngineConfig
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget    string
	concurrency   string
	taskTimeout   string
	interval      string
	warnThreshold string
	journalPath   string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.EngineConfig, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,

		saveTarget:    "global",
		concurrency:   strconv.Itoa(cfg.Scheduler.Concurrency),
		taskTimeout:   strconv.Itoa(cfg.Scheduler.TaskTimeoutSeconds),
		interval:      strconv.Itoa(cfg.Health.IntervalSeconds),
		warnThreshold: strconv.Itoa(cfg.Health.WarnThreshold),
		journalPath:   cfg.Journal.Path,
	}

	m.buildForm()
	return m
}

// validateInt rejects non-numeric or negative form input.
func validateInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.lessonsmith/config.json)", "global"),
					huh.NewOption("Project (.lessonsmith/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("concurrency").
				Title("Max Concurrent Tasks").
				Value(&m.concurrency).
				Validate(validateInt).
				Placeholder("5"),

			huh.NewInput().
				Key("taskTimeout").
				Title("Task Timeout (seconds, 0 disables)").
				Value(&m.taskTimeout).
				Validate(validateInt).
				Placeholder("0"),
		).Title("Scheduler"),

		huh.NewGroup(
			huh.NewInput().
				Key("interval").
				Title("Health Check Interval (seconds)").
				Value(&m.interval).
				Validate(validateInt).
				Placeholder("60"),

			huh.NewInput().
				Key("warnThreshold").
				Title("Health Warning Threshold").
				Value(&m.warnThreshold).
				Validate(validateInt).
				Placeholder("50"),
		).Title("Health Monitor"),

		huh.NewGroup(
			huh.NewInput().
				Key("journalPath").
				Title("Journal Database Path (empty disables)").
				Value(&m.journalPath),
		).Title("Persistence"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Cancel without saving
			m.visible = false
			m.saved = false
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.applyFormToConfig()

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
		}

		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
// Fields are pre-validated by the form, so Atoi failures fall back to the
// current value.
func (m *SettingsPaneModel) applyFormToConfig() {
	if n, err := strconv.Atoi(m.concurrency); err == nil {
		m.config.Scheduler.Concurrency = n
	}
	if n, err := strconv.Atoi(m.taskTimeout); err == nil {
		m.config.Scheduler.TaskTimeoutSeconds = n
	}
	if n, err := strconv.Atoi(m.interval); err == nil {
		m.config.Health.IntervalSeconds = n
	}
	if n, err := strconv.Atoi(m.warnThreshold); err == nil {
		m.config.Health.WarnThreshold = n
	}
	m.config.Journal.Path = m.journalPath
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string

	if m.saved && m.form.State == huh.StateCompleted {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true).
			Render("✓ Settings saved successfully!")
	} else if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	body := style.Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild the form to reset its completion state
	if v && m.form != nil {
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}
