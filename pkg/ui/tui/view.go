package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderRightColumn()
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, leftColumn, "  ", rightColumn))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderHeader renders the title and the overall batch progress
func (m *Model) renderHeader() string {
	title := logoStyle.Render("MEDIAGRAB")
	p := m.progress
	p.Width = m.width - 4
	if p.Width > 80 {
		p.Width = 80
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, p.ViewAs(m.Progress()))
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderActiveDownloadsPanel(width),
		m.renderQueuePanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderAccountsPanel(width),
		m.renderLogsPanel(width),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" BATCH ")
	eta := m.ETA()

	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := m.now().Sub(m.sessionStartTime)
	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Workers:"), statsValueStyle.Render(fmt.Sprintf("%d", m.workers))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Completed:"), successStyle.Render(fmt.Sprintf("%d / %d", m.totalCompleted, len(m.downloads)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", m.totalFailed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Downloaded:"), statsValueStyle.Render(FormatBytes(m.totalSize))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(eta))),
	}
	if m.finished {
		stats = append(stats, successStyle.Render("✓ DONE"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderActiveDownloadsPanel(width int) string {
	title := titleStyle.Render(" ACTIVE ")
	active := m.GetActiveDownloads()

	if len(active) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No active downloads")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var rows []string
	for _, item := range active {
		rows = append(rows, m.renderDownloadItem(item, width-6))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

// renderDownloadItem shows the URL and the router stage it is in
func (m *Model) renderDownloadItem(item *DownloadItem, width int) string {
	stage := stageLabel(item)
	info := fmt.Sprintf("%s %s", m.spinner.View(), queueItemActiveStyle.Render(truncate(item.URL, width-4)))
	detail := fmt.Sprintf("    %s %s",
		stageStyle.Render(stage),
		lipgloss.NewStyle().Foreground(dimWhite).Render(formatDuration(m.now().Sub(item.StartTime))),
	)
	return lipgloss.JoinVertical(lipgloss.Left, info, detail)
}

func stageLabel(item *DownloadItem) string {
	if item.Stage == "" {
		return "starting"
	}
	label := strings.ToLower(strings.ReplaceAll(string(item.Stage), "_", " "))
	if item.Strategy != "" {
		label += " · " + item.Strategy
		if item.Account != "" {
			label += " (" + item.Account + ")"
		}
	}
	return label
}

func (m *Model) renderQueuePanel(width int) string {
	title := titleStyle.Render(" QUEUE ")

	pending := m.GetPendingDownloads()
	completed := m.GetCompletedDownloads()
	failed := m.GetFailedDownloads()

	var items []string
	if n := len(pending); n > 0 {
		items = append(items, warningStyle.Render(fmt.Sprintf("⏳ %d pending", n)))
		for i := 0; i < 3 && i < n; i++ {
			items = append(items, queueItemStyle.Render("• "+truncate(pending[i].URL, width-8)))
		}
		if n > 3 {
			items = append(items, lipgloss.NewStyle().Foreground(dimWhite).Render(fmt.Sprintf("  ... and %d more", n-3)))
		}
	}

	if n := len(completed); n > 0 {
		items = append(items, "", successStyle.Render(fmt.Sprintf("✓ %d completed", n)))
		for _, item := range completed[max(0, n-3):] {
			line := fmt.Sprintf("✓ %s · %s · %s", truncate(item.URL, width-30), item.Strategy, FormatBytes(item.Size))
			items = append(items, queueItemCompletedStyle.Render(line))
		}
	}

	if n := len(failed); n > 0 {
		items = append(items, "", errorStyle.Render(fmt.Sprintf("✗ %d failed", n)))
		for _, item := range failed[max(0, n-3):] {
			items = append(items, queueItemStyle.Render("✗ "+truncate(item.URL, width-8)))
		}
	}

	if len(items) == 0 {
		items = append(items, lipgloss.NewStyle().Foreground(dimWhite).Render("Queue is empty"))
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

// renderAccountsPanel shows how many accounts are out of quarantine
func (m *Model) renderAccountsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" ACCOUNTS ")
	if m.accountsTotal == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No accounts configured (public downloads only)")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	health := float64(m.accountsAvailable) / float64(m.accountsTotal) * 100
	barWidth := width - 8
	if barWidth < 1 {
		barWidth = 1
	}
	filled := int(health * float64(barWidth) / 100)

	barStyle := GetAccountHealthStyle(health)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Available:"),
			barStyle.Render(fmt.Sprintf("%d/%d", m.accountsAvailable, m.accountsTotal))),
		bar,
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))
		message := logMessageStyle.Render(truncate(entry.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}
	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit (running downloads are cancelled)
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Stages:
    check existing      - looking for files already on disk
    probe               - asking yt-dlp what the post contains
    try authenticated   - using a pool account
    try unauthenticated - public strategies
`
	return panelStyle.Width(m.width).Render(help)
}

// truncate shortens s to n runes with an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
