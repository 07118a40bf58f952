package zune

import (
	"io"

	"github.com/charmbracelet/log"
)

// LogCallback mirrors the host callback contract: a single human-readable
// line per call, prefixed by component name. Components get their own
// charmbracelet/log logger so CLI output stays readable, but every line is
// also handed to the caller's callback so GUI/CLI host glue keeps working
// exactly like it did against the reference library's log_callback.
type LogCallback func(message string)

// callbackWriter adapts a LogCallback to an io.Writer so it can be used as
// a charmbracelet/log output sink.
type callbackWriter struct {
	cb LogCallback
}

func (w callbackWriter) Write(p []byte) (int, error) {
	if w.cb != nil {
		w.cb(string(p))
	}
	return len(p), nil
}

// NewComponentLogger builds a logger scoped to component, writing to w (or
// discarding output if w is nil) and additionally invoking cb for every
// line if cb is non-nil.
func NewComponentLogger(component string, w io.Writer, cb LogCallback) *log.Logger {
	var out io.Writer = io.Discard
	switch {
	case w != nil && cb != nil:
		out = io.MultiWriter(w, callbackWriter{cb: cb})
	case w != nil:
		out = w
	case cb != nil:
		out = callbackWriter{cb: cb}
	}

	var logger = log.NewWithOptions(out, log.Options{
		Prefix:          component,
		ReportTimestamp: true,
	})

	return logger
}
