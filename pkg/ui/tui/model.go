package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"mediagrab/pkg/router"
)

// DownloadState represents the state of a download
type DownloadState int

const (
	DownloadPending DownloadState = iota
	DownloadActive
	DownloadCompleted
	DownloadFailed
)

// DownloadItem is one URL of the batch
type DownloadItem struct {
	ID         string
	URL        string
	Identifier string
	Platform   string
	State      DownloadState
	// Stage is the last router state seen for the item
	Stage     router.State
	Strategy  string
	Account   string
	Files     int
	Size      int64
	StartTime time.Time
	Duration  time.Duration
	Error     error
}

// Model represents the TUI model
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	downloads     map[string]*DownloadItem
	downloadOrder []string
	// byIdentifier maps router identifiers back to item ids
	byIdentifier    map[string]string
	activeDownloads int
	workers         int

	totalCompleted   int
	totalFailed      int
	totalSize        int64
	sessionStartTime time.Time
	finished         bool

	accountsAvailable int
	accountsTotal     int

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	now func() time.Time
	mu  sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model for a batch run with the given worker count
func NewModel(workers int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		spinner:          s,
		progress:         progress.New(progress.WithDefaultGradient()),
		downloads:        make(map[string]*DownloadItem),
		downloadOrder:    []string{},
		byIdentifier:     make(map[string]string),
		workers:          workers,
		sessionStartTime: time.Now(),
		logMessages:      []LogMessage{},
		maxLogMessages:   50,
		now:              time.Now,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// AddDownload queues a URL. identifier may be empty when the platform
// does not report router events.
func (m *Model) AddDownload(id, url, identifier, platform string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.downloads[id]; ok {
		return
	}
	m.downloads[id] = &DownloadItem{
		ID:         id,
		URL:        url,
		Identifier: identifier,
		Platform:   platform,
		State:      DownloadPending,
	}
	m.downloadOrder = append(m.downloadOrder, id)
	if identifier != "" {
		m.byIdentifier[identifier] = id
	}
}

// StartDownload marks a download as active
func (m *Model) StartDownload(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked(id)
}

func (m *Model) startLocked(id string) *DownloadItem {
	item, ok := m.downloads[id]
	if !ok {
		return nil
	}
	if item.State == DownloadPending {
		item.State = DownloadActive
		item.StartTime = m.now()
		m.activeDownloads++
	}
	return item
}

// ApplyEvent records a router transition. Events for unknown identifiers
// are ignored. It returns the item the event belongs to.
func (m *Model) ApplyEvent(ev router.Event) *DownloadItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byIdentifier[ev.Identifier]
	if !ok {
		return nil
	}
	item := m.startLocked(id)
	if item == nil || ev.State.Terminal() {
		// terminal states are settled by the download result
		return item
	}
	item.Stage = ev.State
	if ev.Strategy != "" {
		item.Strategy = ev.Strategy
		item.Account = ev.Account
	}
	return item
}

// CompleteDownload marks a download as completed
func (m *Model) CompleteDownload(id, strategy string, files int, size int64, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.finishLocked(id, d)
	if item == nil {
		return
	}
	item.State = DownloadCompleted
	item.Stage = router.StateSuccess
	if strategy != "" {
		item.Strategy = strategy
	}
	item.Files = files
	item.Size = size
	m.totalCompleted++
	m.totalSize += size
}

// FailDownload marks a download as failed
func (m *Model) FailDownload(id string, err error, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.finishLocked(id, d)
	if item == nil {
		return
	}
	item.State = DownloadFailed
	item.Stage = router.StateFailed
	item.Error = err
	m.totalFailed++
}

func (m *Model) finishLocked(id string, d time.Duration) *DownloadItem {
	item, ok := m.downloads[id]
	if !ok || item.State == DownloadCompleted || item.State == DownloadFailed {
		return nil
	}
	if item.State == DownloadActive {
		m.activeDownloads--
	}
	item.Duration = d
	return item
}

// UpdateAccounts updates the account pool gauge
func (m *Model) UpdateAccounts(available, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accountsAvailable = available
	m.accountsTotal = total
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = errorRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

func (m *Model) itemsIn(state DownloadState) []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*DownloadItem
	for _, id := range m.downloadOrder {
		if item := m.downloads[id]; item != nil && item.State == state {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out
}

// GetActiveDownloads returns copies of the running downloads
func (m *Model) GetActiveDownloads() []*DownloadItem { return m.itemsIn(DownloadActive) }

// GetPendingDownloads returns copies of the queued downloads
func (m *Model) GetPendingDownloads() []*DownloadItem { return m.itemsIn(DownloadPending) }

// GetCompletedDownloads returns copies of the finished downloads
func (m *Model) GetCompletedDownloads() []*DownloadItem { return m.itemsIn(DownloadCompleted) }

// GetFailedDownloads returns copies of the failed downloads
func (m *Model) GetFailedDownloads() []*DownloadItem { return m.itemsIn(DownloadFailed) }

// Progress returns the finished fraction of the batch
func (m *Model) Progress() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.downloads) == 0 {
		return 0
	}
	return float64(m.totalCompleted+m.totalFailed) / float64(len(m.downloads))
}

// ETA estimates the time left from the average duration of finished items
func (m *Model) ETA() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	done := m.totalCompleted + m.totalFailed
	remaining := len(m.downloads) - done
	if done == 0 || remaining == 0 {
		return 0
	}
	perItem := m.now().Sub(m.sessionStartTime) / time.Duration(done)
	return perItem * time.Duration(remaining)
}

// FormatBytes formats bytes to a human readable size
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
