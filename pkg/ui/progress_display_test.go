package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressDisplayVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, true)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.startTime = start
	p.now = func() time.Time { return start.Add(90 * time.Second) }

	p.Queue("0", "https://www.instagram.com/p/AAA/", "AAA", "instagram")
	p.Queue("1", "https://youtu.be/abc", "", "youtube")
	p.Queue("1", "https://youtu.be/abc", "", "youtube")
	p.Complete("0", "proxy", 2, 2048, 1500*time.Millisecond)
	p.Fail("1", errors.New("Video unavailable"), time.Second)
	p.Done()

	out := buf.String()
	assert.Contains(t, out, "https://www.instagram.com/p/AAA/ • proxy • 2 files • 2.0 KiB • 1.5s")
	assert.Contains(t, out, "https://youtu.be/abc • Video unavailable")
	assert.Contains(t, out, "Downloaded 1 of 2 URLs")
	assert.Contains(t, out, "2.0 KiB in 1m30s")
	assert.Contains(t, out, "1 downloads failed")
}

func TestProgressDisplayLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, false)

	p.Queue("0", "u0", "", "instagram")
	p.Queue("1", "u1", "", "instagram")
	p.UpdateAccounts(1, 2)
	p.Complete("0", "yt-dlp", 1, 1024, time.Second)

	out := buf.String()
	assert.Contains(t, out, "\r[━━━━━━━━━━──────────] 1/2 • 1.0 KiB • 1/2 accounts")
	assert.NotContains(t, out, "failed")
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return errors.New("no desktop")
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	defer func() { Output = prev }()

	sender := &recordingSender{}
	n := NewNotifierWithSender(sender)
	n.SendSuccess("Batch complete", "3 downloaded")
	n.SendError("Batch failed", "0 downloaded")

	assert.Equal(t, []string{"Batch complete", "Batch failed"}, sender.titles)
	assert.Contains(t, buf.String(), "3 downloaded")
}

func TestAppleScriptString(t *testing.T) {
	assert.Equal(t, `"say \"hi\" \\ bye"`, appleScriptString(`say "hi" \ bye`))
}
