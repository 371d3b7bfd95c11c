package client

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// probeStage tracks how far the current run has progressed
type probeStage int

const (
	stageForecast probeStage = iota
	stageAlerts
	stageDone
)

// forecastMsg carries the result of the forecast call
type forecastMsg struct {
	text string
	err  error
}

// alertsMsg carries the result of the alerts call
type alertsMsg struct {
	text string
	err  error
}

// probeModel is the bubbletea model for the interactive probe. The alerts
// call is only issued after the forecast result has arrived.
type probeModel struct {
	ctx      context.Context
	app      *app
	target   Target
	stage    probeStage
	forecast string
	alerts   string
	errText  string
	runs     int
	width    int
	height   int
}

func newProbeModel(ctx context.Context, a *app, target Target) probeModel {
	return probeModel{
		ctx:    ctx,
		app:    a,
		target: target,
		stage:  stageForecast,
	}
}

// Init starts the first run
func (m probeModel) Init() tea.Cmd {
	return m.fetchForecast()
}

func (m probeModel) fetchForecast() tea.Cmd {
	return func() tea.Msg {
		text, err := m.app.weather.GetForecast(m.ctx, m.target.Latitude, m.target.Longitude)
		return forecastMsg{text: text, err: err}
	}
}

func (m probeModel) fetchAlerts() tea.Cmd {
	return func() tea.Msg {
		text, err := m.app.weather.GetAlerts(m.ctx, m.target.Area)
		return alertsMsg{text: text, err: err}
	}
}

// Update handles messages for the probe view
func (m probeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case forecastMsg:
		if m.stage != stageForecast {
			return m, nil
		}
		m.forecast = msg.text
		if msg.err != nil {
			// Strict runs stop at the first failed call, as on stdout
			m.errText = msg.err.Error()
			m.alerts = "Skipped, the forecast call failed."
			m.stage = stageDone
			m.runs++
			return m, nil
		}
		m.stage = stageAlerts
		return m, m.fetchAlerts()

	case alertsMsg:
		if m.stage != stageAlerts {
			return m, nil
		}
		m.alerts = msg.text
		if msg.err != nil {
			if m.errText != "" {
				m.errText += "\n"
			}
			m.errText += msg.err.Error()
		}
		m.stage = stageDone
		m.runs++
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit

		case "r":
			// Refresh only once the current run has finished
			if m.stage != stageDone {
				return m, nil
			}
			m.stage = stageForecast
			m.forecast = ""
			m.alerts = ""
			m.errText = ""
			return m, m.fetchForecast()
		}
	}

	return m, nil
}

// View renders the probe view
func (m probeModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(colorPurple).
		Bold(true)

	headingStyle := lipgloss.NewStyle().
		Foreground(colorCyan).
		Bold(true)

	bodyStyle := lipgloss.NewStyle().
		Foreground(colorForeground)

	pendingStyle := lipgloss.NewStyle().
		Foreground(colorComment).
		Italic(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(colorRed)

	statusStyle := lipgloss.NewStyle().
		Foreground(colorGreen)

	helpStyle := lipgloss.NewStyle().
		Foreground(colorComment)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorSelection).
		Padding(0, 1)
	if m.width > 4 {
		boxStyle = boxStyle.Width(m.width - 4)
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("WEATHER PROBE"))
	b.WriteString("  ")
	b.WriteString(helpStyle.Render(m.app.nws.BaseURL()))
	b.WriteString("\n\n")

	b.WriteString(headingStyle.Render(fmt.Sprintf("Forecast for %s", m.target.Location())))
	b.WriteString("\n")
	if m.stage == stageForecast {
		b.WriteString(pendingStyle.Render("Getting forecast..."))
	} else {
		b.WriteString(bodyStyle.Render(strings.TrimSpace(m.forecast)))
	}
	b.WriteString("\n\n")

	b.WriteString(headingStyle.Render(fmt.Sprintf("Alerts for %s", m.target.Region())))
	b.WriteString("\n")
	switch m.stage {
	case stageForecast:
		b.WriteString(pendingStyle.Render("Waiting for forecast..."))
	case stageAlerts:
		b.WriteString(pendingStyle.Render("Getting alerts..."))
	default:
		b.WriteString(bodyStyle.Render(strings.TrimSpace(m.alerts)))
	}

	if m.errText != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render("✗ " + m.errText))
	} else if m.stage == stageDone {
		b.WriteString("\n\n")
		b.WriteString(statusStyle.Render(fmt.Sprintf("✓ run %d complete", m.runs)))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("r: refresh • q/Esc: quit"))

	return boxStyle.Render(b.String())
}

// runTUI launches the interactive probe
func runTUI(ctx context.Context, a *app) error {
	m := newProbeModel(ctx, a, TargetFromConfig(a.config))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
