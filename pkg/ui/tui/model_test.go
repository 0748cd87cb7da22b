package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mediagrab/pkg/router"
)

func newTestModel() *Model {
	m := NewModel(2)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	m.sessionStartTime = clock.Add(-10 * time.Second)
	return &m
}

func TestModel(t *testing.T) {
	model := newTestModel()

	model.AddDownload("0", "https://www.instagram.com/p/AAA/", "AAA", "instagram")
	model.AddDownload("1", "https://youtu.be/abc", "", "youtube")
	model.AddDownload("0", "https://www.instagram.com/p/AAA/", "AAA", "instagram")

	if len(model.downloads) != 2 {
		t.Errorf("Expected 2 downloads, got %d", len(model.downloads))
	}
	if len(model.GetPendingDownloads()) != 2 {
		t.Errorf("Expected 2 pending downloads")
	}

	// router events start the item and record the stage
	model.ApplyEvent(router.Event{Identifier: "AAA", State: router.StateProbe})
	if model.activeDownloads != 1 {
		t.Errorf("Expected 1 active download, got %d", model.activeDownloads)
	}
	model.ApplyEvent(router.Event{Identifier: "AAA", State: router.StateTryAuthenticated, Strategy: "yt-dlp", Account: "alice"})
	item := model.downloads["0"]
	if item.Stage != router.StateTryAuthenticated || item.Strategy != "yt-dlp" || item.Account != "alice" {
		t.Errorf("Unexpected item after event: %+v", item)
	}
	if got := stageLabel(item); got != "try authenticated · yt-dlp (alice)" {
		t.Errorf("Unexpected stage label %q", got)
	}

	// events for unknown identifiers are ignored
	if model.ApplyEvent(router.Event{Identifier: "ZZZ", State: router.StateProbe}) != nil {
		t.Error("Expected unknown identifier to be ignored")
	}

	model.CompleteDownload("0", "yt-dlp", 1, 2048, 3*time.Second)
	if model.activeDownloads != 0 {
		t.Errorf("Expected 0 active downloads, got %d", model.activeDownloads)
	}
	if model.totalCompleted != 1 || model.totalSize != 2048 {
		t.Errorf("Unexpected totals: %d completed, %d bytes", model.totalCompleted, model.totalSize)
	}

	// a second result for the same item is ignored
	model.FailDownload("0", errors.New("late"), time.Second)
	if model.totalFailed != 0 {
		t.Errorf("Expected finished item to stay completed")
	}

	if got := model.Progress(); got != 0.5 {
		t.Errorf("Expected progress 0.5, got %v", got)
	}
	if got := model.ETA(); got != 10*time.Second {
		t.Errorf("Expected ETA 10s, got %v", got)
	}

	// items without router events go straight from pending to failed
	model.FailDownload("1", errors.New("Video unavailable"), time.Second)
	if model.totalFailed != 1 || len(model.GetFailedDownloads()) != 1 {
		t.Errorf("Expected 1 failed download")
	}
	if model.activeDownloads != 0 {
		t.Errorf("Expected active count to stay at 0, got %d", model.activeDownloads)
	}
	if model.ETA() != 0 {
		t.Errorf("Expected no ETA once every item finished")
	}
}

func TestLogMessagesAreCapped(t *testing.T) {
	model := newTestModel()
	for i := 0; i < 60; i++ {
		model.AddLogMessage("INFO", "message")
	}
	if len(model.logMessages) != 50 {
		t.Errorf("Expected 50 log messages, got %d", len(model.logMessages))
	}
	if model.logMessages[0].Color != neonCyan {
		t.Errorf("Expected INFO messages in cyan")
	}
}

func TestUpdateMessages(t *testing.T) {
	model := newTestModel()

	model.Update(QueuedMsg{ID: "0", URL: "https://www.instagram.com/reel/AAA/", Identifier: "AAA", Platform: "instagram"})
	model.Update(StateMsg{Event: router.Event{Identifier: "AAA", State: router.StateTryUnauthenticated, Strategy: "proxy"}})
	model.Update(AccountsMsg{Available: 1, Total: 3})
	model.Update(CompletedMsg{ID: "0", Strategy: "proxy", Files: 1, Size: 1024})
	model.Update(BatchDoneMsg{})

	if model.totalCompleted != 1 {
		t.Errorf("Expected 1 completed download")
	}
	if model.accountsAvailable != 1 || model.accountsTotal != 3 {
		t.Errorf("Unexpected account gauge %d/%d", model.accountsAvailable, model.accountsTotal)
	}
	if !model.finished {
		t.Error("Expected batch to be finished")
	}

	var sawAttempt, sawDone bool
	for _, msg := range model.logMessages {
		if strings.Contains(msg.Message, "trying proxy") {
			sawAttempt = true
		}
		if strings.Contains(msg.Message, "1 completed, 0 failed") {
			sawDone = true
		}
	}
	if !sawAttempt || !sawDone {
		t.Errorf("Missing log lines: %+v", model.logMessages)
	}

	if _, cmd := model.Update(TickMsg(time.Now())); cmd != nil {
		t.Error("Expected ticking to stop after the batch finished")
	}
	if _, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Error("Expected q to quit")
	}
}

func TestView(t *testing.T) {
	model := newTestModel()
	if model.View() != "Initializing..." {
		t.Error("Expected placeholder before the first window size")
	}

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 50})
	model.AddDownload("0", "https://www.instagram.com/p/AAA/", "AAA", "instagram")
	model.StartDownload("0")

	view := model.View()
	for _, want := range []string{"MEDIAGRAB", "ACTIVE", "ACCOUNTS", "instagram.com/p/AAA"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
		{-1, "0 B"},
	}

	for _, test := range tests {
		if result := FormatBytes(test.bytes); result != test.expected {
			t.Errorf("FormatBytes(%d) = %s, expected %s", test.bytes, result, test.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("Unexpected truncation %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("Unexpected truncation %q", got)
	}
}
