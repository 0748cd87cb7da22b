package ui

import "time"

// Reporter follows a batch download. *tui.TUI and *ProgressDisplay
// implement it.
type Reporter interface {
	Queue(id, url, identifier, platform string)
	Complete(id, strategy string, files int, size int64, d time.Duration)
	Fail(id string, err error, d time.Duration)
	UpdateAccounts(available, total int)
	Done()
}
