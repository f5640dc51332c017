package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 32

// ProgressBar draws a transfer's completion on one terminal line.
// Transfers report whole percentages; size, when known, labels the line.
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	title   string
	size    int64
	percent int
	drawn   bool
}

// NewProgressBar returns a bar that has not drawn anything yet. size may
// be 0 when the transfer length is unknown.
func NewProgressBar(w io.Writer, title string, size int64) *ProgressBar {
	return &ProgressBar{w: w, title: title, size: size, percent: -1}
}

// Percent redraws the bar. Values are clamped to 0..100; repeats are not
// redrawn.
func (p *ProgressBar) Percent(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	percent = max(0, min(percent, 100))
	if percent == p.percent {
		return
	}
	p.percent = percent
	p.draw()
}

// Finish ends the line. A completed transfer is shown at 100%; a bar that
// never drew stays silent.
func (p *ProgressBar) Finish(completed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.drawn {
		return
	}
	if completed && p.percent != 100 {
		p.percent = 100
		p.draw()
	}
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) draw() {
	filled := barWidth * p.percent / 100
	line := fmt.Sprintf("\r%s [%s%s] %3d%%", p.title,
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), p.percent)
	if p.size > 0 {
		line += fmt.Sprintf(" of %s", FormatBytes(p.size))
	}
	io.WriteString(p.w, line)
	p.drawn = true
}

// FormatBytes renders a byte count with a binary unit: "512 B", "1.5 KB".
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v, unit := float64(b)/1024, 0
	for v >= 1024 && unit < 5 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %cB", v, "KMGTPE"[unit])
}
