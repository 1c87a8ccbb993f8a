package repl

import (
	"sort"
	"strings"
)

// Completer suggests command names.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over the given names.
func NewCompleter(commands []string) *Completer {
	sorted := append([]string(nil), commands...)
	sort.Strings(sorted)
	return &Completer{commands: sorted}
}

// Complete returns the commands starting with prefix. When none do, it
// falls back to commands that prefix starts with, so "getx" suggests "get".
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	if len(suggestions) > 0 {
		return suggestions
	}
	for _, cmd := range c.commands {
		if strings.HasPrefix(prefix, cmd) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
