// Package logging builds the structured, contextual zerolog logger used
// across the platform. The teacher's package-global logrus singleton,
// initialised by an init() reading LOG_LEVEL, is replaced here by
// constructor-injected per-component loggers: every component that logs
// receives its logger explicitly as a constructor argument, never
// reaches for a global.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing JSON records with RFC3339Nano
// timestamps to w, tagged with a "component" field so records from the
// Gateway, Ingestion Worker, Retrieval Worker, Document Store and MCP
// Surface can be told apart in a shared log stream.
func New(w io.Writer, component string, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Caller().
		Logger()
}

// NewDefault builds a logger writing to stdout at info level, for a
// component that hasn't been given explicit logging configuration.
func NewDefault(component string) zerolog.Logger {
	return New(os.Stdout, component, zerolog.InfoLevel)
}

// Multi combines stdout with an additional sink (e.g. a rotating file),
// mirroring the teacher's stdout+file dual-write without a hardcoded
// filename or a package-level log file handle.
func Multi(component string, level zerolog.Level, extra io.Writer) zerolog.Logger {
	return New(io.MultiWriter(os.Stdout, extra), component, level)
}
