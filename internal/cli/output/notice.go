package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/dataglove/glovectl/internal/client/notice"
)

// NoticePrinter writes notices one per line, colored by level when the
// destination is a terminal.
type NoticePrinter struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[notice.Level]*color.Color
	tty    bool
}

// NewNoticePrinter creates a printer. colored is normally IsTerminal of
// the destination.
func NewNoticePrinter(w io.Writer, colored bool) *NoticePrinter {
	styles := map[notice.Level]*color.Color{
		notice.LevelInfo:    color.New(color.FgCyan),
		notice.LevelSuccess: color.New(color.FgGreen),
		notice.LevelWarn:    color.New(color.FgYellow),
		notice.LevelError:   color.New(color.FgRed, color.Bold),
	}
	for _, c := range styles {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &NoticePrinter{w: w, styles: styles, tty: colored}
}

var noticeMarks = map[notice.Level]string{
	notice.LevelInfo:    "i",
	notice.LevelSuccess: "✓",
	notice.LevelWarn:    "!",
	notice.LevelError:   "✗",
}

// Notify implements notice.Notifier.
func (p *NoticePrinter) Notify(n notice.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mark := p.styles[n.Level].Sprint(noticeMarks[n.Level])
	if p.tty {
		// Clear a spinner or progress line left on the terminal.
		fmt.Fprint(p.w, "\r\033[K")
	}
	fmt.Fprintf(p.w, "%s %s\n", mark, n.Message)
}
