package repl

import (
	"slices"
	"strings"
)

// pathCommands take a page path as their argument.
var pathCommands = []string{"open"}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
	paths    func() []string
}

// NewCompleter creates a Completer over commands; paths, when set, supplies
// the page paths offered after "open".
func NewCompleter(commands []string, paths func() []string) *Completer {
	cmds := append(slices.Clone(commands), "help", "history", "exit", "quit")
	slices.Sort(cmds)
	return &Completer{
		commands: slices.Compact(cmds),
		paths:    paths,
	}
}

// Complete returns completion suggestions for the given prefix.
func (c *Completer) Complete(prefix string) []string {
	for _, cmd := range pathCommands {
		arg, ok := strings.CutPrefix(prefix, cmd+" ")
		if !ok || c.paths == nil {
			continue
		}
		var suggestions []string
		for _, p := range c.paths() {
			if strings.HasPrefix(p, strings.TrimSpace(arg)) {
				suggestions = append(suggestions, cmd+" "+p)
			}
		}
		return suggestions
	}

	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
