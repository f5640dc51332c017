package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrUnterminatedQuote is returned for a line whose quote never closes.
	ErrUnterminatedQuote = errors.New("unterminated quote")

	// ErrNotRunning is returned by ReadLine outside Run.
	ErrNotRunning = errors.New("repl: not running")
)

// ExecFunc runs one command line split into arguments.
type ExecFunc func(ctx context.Context, args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
	exec      ExecFunc
	prompt    func() string

	// Set while Run is active.
	lines   chan string
	readErr chan error
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithPrompt sets the function producing the prompt before each line.
func WithPrompt(fn func() string) Option {
	return func(r *REPL) {
		r.prompt = fn
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// WithCompleter sets the completer used by the "complete" built-in.
func WithCompleter(c *Completer) Option {
	return func(r *REPL) {
		r.completer = c
	}
}

// New creates a REPL that hands every line to exec.
func New(exec ExecFunc, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		completer: NewCompleter(nil, nil),
		history:   NewHistory("", 0),
		exec:      exec,
		prompt:    func() string { return "glovectl> " },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until exit, end of input or ctx ends. Command errors are
// printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	r.lines, r.readErr = lines, readErr
	go func() {
		scanner := bufio.NewScanner(r.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(r.output, r.prompt())

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.output)
			return nil
		case err := <-readErr:
			fmt.Fprintln(r.output)
			return err
		case line = <-lines:
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		switch line {
		case "exit", "quit":
			return nil
		case "history":
			for i, entry := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
			}
			continue
		}
		if prefix, ok := strings.CutPrefix(line, "complete "); ok {
			for _, s := range r.completer.Complete(prefix) {
				fmt.Fprintln(r.output, s)
			}
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
		}
	}
}

// ReadLine prints prompt and returns the next input line without recording
// it in the history. Commands use it to ask for values such as passwords
// while the shell owns the input.
func (r *REPL) ReadLine(ctx context.Context, prompt string) (string, error) {
	if r.lines == nil {
		return "", ErrNotRunning
	}
	fmt.Fprint(r.output, prompt)
	select {
	case line := <-r.lines:
		return line, nil
	case err := <-r.readErr:
		// Leave the end of input for the main loop too.
		r.readErr <- err
		if err == nil {
			err = io.EOF
		}
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	args, err := SplitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 || r.exec == nil {
		return nil
	}
	return r.exec(ctx, args)
}

// SplitArgs splits a line on whitespace, honoring single and double quotes
// and backslash escapes outside single quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, c := range line {
		switch {
		case escaped:
			cur.WriteRune(c)
			escaped = false
		case c == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(c)
			inArg = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
