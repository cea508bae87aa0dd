package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/kennedymwaniki/resource-explorer/internal/logtail"
)

func (m Model) handleLogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Retry):
		return m, readLogsCmd(m.logPath)
	case key.Matches(msg, m.keys.ToggleDebug):
		m.logDebug = !m.logDebug
		m.updateLogViewport()
	case key.Matches(msg, m.keys.Up):
		m.logsViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.logsViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.Top):
		m.logsViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logsViewport.GotoBottom()
	}
	return m, nil
}

func (m *Model) resizeLogs() {
	m.logsViewport.Width = m.width
	height := m.height - chromeLines - 2
	if height < 3 {
		height = 3
	}
	m.logsViewport.Height = height
	m.updateLogViewport()
}

func (m *Model) updateLogViewport() {
	m.logsViewport.SetContent(m.logContent())
}

func (m Model) logContent() string {
	styles := m.theme.Styles()
	switch {
	case m.logErr != nil:
		return "  " + styles.DangerText.Render("Could not read log: ") + styles.MutedText.Render(m.logErr.Error())
	case strings.TrimSpace(m.logPath) == "":
		return "  " + styles.MutedText.Render("File logging is disabled.")
	}

	entries := m.logs
	if !m.logDebug {
		entries = logtail.AtLeast(entries, zapcore.InfoLevel)
	}
	if len(entries) == 0 {
		return "  " + styles.MutedText.Render("No log lines yet.")
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ts := "        "
		if !e.Time.IsZero() {
			ts = e.Time.Local().Format("15:04:05")
		}
		line := fmt.Sprintf("  %s %s %s", styles.FaintText.Render(ts), m.levelStyle(e.Level).Render(padRight(e.Level.CapitalString(), 5)), e.Message)
		if fields := e.FieldString(); fields != "" {
			line += " " + styles.MutedText.Render(fields)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) levelStyle(level zapcore.Level) lipgloss.Style {
	styles := m.theme.Styles()
	switch {
	case level >= zapcore.ErrorLevel:
		return styles.DangerText
	case level == zapcore.WarnLevel:
		return styles.WarningText
	case level == zapcore.DebugLevel:
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	title := "  " + styles.AccentText.Bold(true).Render("Log")
	if m.logPath != "" {
		title += " " + styles.FaintText.Render(m.logPath)
	}
	if m.logDebug {
		title += " " + styles.InfoText.Render("(debug)")
	}
	return title + "\n\n" + m.logsViewport.View()
}
