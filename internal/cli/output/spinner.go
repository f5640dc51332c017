package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const spinnerInterval = 100 * time.Millisecond

// Spinner displays a progress animation.
type Spinner struct {
	w       io.Writer
	message string
	frames  []string
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the spinner and clears the line. Only the first call has an
// effect; Stop must follow Start.
func (s *Spinner) Stop() {
	s.finish("\r\033[K")
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	s.finish(fmt.Sprintf("\r\033[K✓ %s\n", message))
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.finish(fmt.Sprintf("\r\033[K✗ %s\n", message))
}

func (s *Spinner) finish(final string) {
	s.once.Do(func() {
		close(s.done)
		<-s.stopped
		fmt.Fprint(s.w, final)
	})
}

// Activity shows one spinner while any call is in flight. It implements
// the pipeline's progress port: overlapping calls share the spinner, which
// stops when the last of them ends.
type Activity struct {
	w       io.Writer
	enabled bool

	mu      sync.Mutex
	active  int
	spinner *Spinner
}

// NewActivity creates an indicator writing to w. A disabled indicator only
// keeps count.
func NewActivity(w io.Writer, enabled bool) *Activity {
	return &Activity{w: w, enabled: enabled}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Begin marks a call as started and returns the function that ends it.
// Calling the returned function more than once is harmless.
func (a *Activity) Begin(label string) func() {
	if label == "" {
		label = "loading..."
	}

	a.mu.Lock()
	a.active++
	if a.active == 1 && a.enabled {
		a.spinner = NewSpinner(a.w, label)
		a.spinner.Start()
	}
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(a.end)
	}
}

func (a *Activity) end() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active--
	if a.active == 0 && a.spinner != nil {
		a.spinner.Stop()
		a.spinner = nil
	}
}

// Active returns the number of calls in flight.
func (a *Activity) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}
