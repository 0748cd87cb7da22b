// Package tui is a bubbletea dashboard for batch downloads. It shows each
// URL moving through the router states, the account pool and a log.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mediagrab/pkg/router"
)

// TUI wraps the bubbletea program
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard for a batch run with the given worker count
func NewTUI(workers int, opts ...tea.ProgramOption) *TUI {
	model := NewModel(workers)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
	}
}

// Run blocks until the user quits or ctx is cancelled
func (t *TUI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.program.Quit()
	}()
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI. It blocks until the program is running.
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Observer forwards router transitions to the dashboard
func (t *TUI) Observer() router.Observer {
	return func(ev router.Event) {
		go t.Send(StateMsg{Event: ev})
	}
}

// Queue adds a URL to the dashboard
func (t *TUI) Queue(id, url, identifier, platform string) {
	t.Send(QueuedMsg{ID: id, URL: url, Identifier: identifier, Platform: platform})
}

// Complete marks a URL as downloaded
func (t *TUI) Complete(id, strategy string, files int, size int64, d time.Duration) {
	t.Send(CompletedMsg{ID: id, Strategy: strategy, Files: files, Size: size, Duration: d})
}

// Fail marks a URL as failed
func (t *TUI) Fail(id string, err error, d time.Duration) {
	t.Send(FailedMsg{ID: id, Err: err, Duration: d})
}

// UpdateAccounts refreshes the account gauge
func (t *TUI) UpdateAccounts(available, total int) {
	t.Send(AccountsMsg{Available: available, Total: total})
}

// Done tells the dashboard the batch is over
func (t *TUI) Done() {
	t.Send(BatchDoneMsg{})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}
