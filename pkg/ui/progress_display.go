package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressDisplay prints a one-line progress summary for batch downloads,
// or one line per result in verbose mode
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	urls       map[string]string
	total      int
	completed  int
	failed     int
	bytes      int64
	accounts   string
	startTime  time.Time
	verbose    bool
	now        func() time.Time
	lineLength int
}

// NewProgressDisplay creates a display writing to out
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		urls:      make(map[string]string),
		startTime: time.Now(),
		verbose:   verbose,
		now:       time.Now,
	}
}

// Queue registers a URL
func (p *ProgressDisplay) Queue(id, url, identifier, platform string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.urls[id]; ok {
		return
	}
	p.urls[id] = url
	p.total++
}

// Complete records a successful download
func (p *ProgressDisplay) Complete(id, strategy string, files int, size int64, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	p.bytes += size
	if p.verbose {
		p.printf("%s %s • %s • %d files • %s • %s\n",
			Green("✓"), p.urls[id], strategy, files, humanize.IBytes(uint64(size)), d.Round(time.Millisecond))
		return
	}
	p.printProgress()
}

// Fail records a failed download
func (p *ProgressDisplay) Fail(id string, err error, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	if p.verbose {
		p.printf("%s %s • %v\n", Red("✗"), p.urls[id], err)
		return
	}
	p.printProgress()
}

// UpdateAccounts notes the account pool state for the progress line
func (p *ProgressDisplay) UpdateAccounts(available, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total == 0 {
		p.accounts = ""
		return
	}
	p.accounts = fmt.Sprintf("%d/%d accounts", available, total)
}

// Done prints the summary
func (p *ProgressDisplay) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.startTime)
	if !p.verbose && p.lineLength > 0 {
		p.printf("\n")
	}
	p.printf("\n%s Downloaded %d of %d URLs\n", Green("✓"), p.completed, p.total)
	p.printf("  %s %s in %s\n", Dim("•"), humanize.IBytes(uint64(p.bytes)), formatElapsed(elapsed))
	if p.failed > 0 {
		p.printf("  %s %d downloads failed\n", Dim("•"), p.failed)
	}
}

func (p *ProgressDisplay) printProgress() {
	done := p.completed + p.failed
	progress := 0.0
	if p.total > 0 {
		progress = float64(done) / float64(p.total)
	}
	const barWidth = 20
	filled := int(progress * barWidth)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("[%s] %d/%d • %s", bar, done, p.total, humanize.IBytes(uint64(p.bytes)))
	if p.accounts != "" {
		line += " • " + p.accounts
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}

	pad := ""
	if n := p.lineLength - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.lineLength = len(line)
	p.printf("\r%s%s", line, pad)
}

func (p *ProgressDisplay) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
