// Package corelog is the store's only logging dependency: a thin
// wrapper around the standard library's log.Logger. The store never
// logs on a successful query or insert path; the only message it
// emits is a summary after each GC pass.
package corelog

import (
	"log"
	"os"
)

// Logger is satisfied by *log.Logger; embedders may substitute their
// own implementation (e.g. to route into a structured sink) without
// this package depending on anything beyond the standard library.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Default writes to stderr; store.DefaultConfig supplies it. A store
// built with a nil Logger uses Nop instead.
var Default Logger = log.New(os.Stderr, "loglake: ", log.LstdFlags)

// Nop discards everything; useful in tests that don't want log noise.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}
