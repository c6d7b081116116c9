// Package dirlog is the thin logging helper used outside the core: the
// command-line front end, the checkpoint sweeper, and the WAL writer. The
// core itself never logs (it surfaces errors to its caller instead); this
// package exists so those ambient callers don't scatter ad hoc fmt.Fprintf(os.Stderr, ...)
// calls the way a smaller program would.
package dirlog

import (
	"log"
	"os"
)

// Logger wraps a standard log.Logger with a component prefix.
type Logger struct {
	l *log.Logger
}

// New returns a Logger writing to w (os.Stderr if w is nil) with messages
// prefixed by "[component] ".
func New(component string, w *os.File) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{l: log.New(w, "["+component+"] ", log.LstdFlags)}
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.l.Printf(format, args...)
}

// Errorf logs an error. It never swallows the error on the caller's
// behalf; callers still return it up the stack where that is possible.
func (l *Logger) Errorf(format string, args ...any) {
	l.l.Printf(format, args...)
}
