// Package repl provides the interactive shell loop of kvwait-cli.
//
// The loop reads a line, splits it into words (double quotes group words
// and allow \" and \\ escapes), records it in the history and hands it to
// an Executor. help, history, exit and quit are handled by the loop.
package repl
