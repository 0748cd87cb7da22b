package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"mediagrab/pkg/router"
)

// Message types for the TUI

// QueuedMsg adds a URL to the dashboard
type QueuedMsg struct {
	ID         string
	URL        string
	Identifier string
	Platform   string
}

// StateMsg carries a router transition
type StateMsg struct {
	Event router.Event
}

// CompletedMsg is sent when a download produced media
type CompletedMsg struct {
	ID       string
	Strategy string
	Files    int
	Size     int64
	Duration time.Duration
}

// FailedMsg is sent when a download fails
type FailedMsg struct {
	ID       string
	Err      error
	Duration time.Duration
}

// AccountsMsg updates the account pool gauge
type AccountsMsg struct {
	Available int
	Total     int
}

// BatchDoneMsg is sent once every URL has a result
type BatchDoneMsg struct{}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case QueuedMsg:
		m.AddDownload(msg.ID, msg.URL, msg.Identifier, msg.Platform)
		return m, nil

	case StateMsg:
		if item := m.ApplyEvent(msg.Event); item != nil && msg.Event.Strategy != "" {
			text := fmt.Sprintf("%s: trying %s", item.URL, msg.Event.Strategy)
			if msg.Event.Account != "" {
				text += " as " + msg.Event.Account
			}
			m.AddLogMessage("INFO", text)
		}
		return m, nil

	case CompletedMsg:
		m.CompleteDownload(msg.ID, msg.Strategy, msg.Files, msg.Size, msg.Duration)
		m.AddLogMessage("SUCCESS", fmt.Sprintf("Completed %s via %s (%d files, %s)",
			m.urlOf(msg.ID), msg.Strategy, msg.Files, FormatBytes(msg.Size)))
		return m, nil

	case FailedMsg:
		m.FailDownload(msg.ID, msg.Err, msg.Duration)
		m.AddLogMessage("ERROR", fmt.Sprintf("Failed %s: %v", m.urlOf(msg.ID), msg.Err))
		return m, nil

	case AccountsMsg:
		m.UpdateAccounts(msg.Available, msg.Total)
		return m, nil

	case BatchDoneMsg:
		m.finished = true
		m.AddLogMessage("INFO", fmt.Sprintf("Batch finished: %d completed, %d failed. Press q to exit.",
			m.totalCompleted, m.totalFailed))
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) urlOf(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if item, ok := m.downloads[id]; ok {
		return item.URL
	}
	return id
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd refreshes elapsed time and ETA
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
