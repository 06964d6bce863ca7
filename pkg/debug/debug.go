// Package debug provides conditional debug logging for catalogtree.
//
// Debug logging is enabled by setting the CATALOGTREE_DEBUG environment variable:
//
//	CATALOGTREE_DEBUG=1 catalogtree -data catalog.json -filter roads
//
// Messages go to stderr with timestamps. When disabled (default) every
// function here is a no-op.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// EnvVar is the environment variable that switches debug logging on.
const EnvVar = "CATALOGTREE_DEBUG"

const prefix = "[CATALOGTREE] "

var (
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv(EnvVar) != "" {
		enabled = true
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output. Tests use it to capture log lines.
func SetOutput(w io.Writer) {
	logger = log.New(w, prefix, log.Ltime|log.Lmicroseconds)
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogIf writes a debug message only if cond holds.
func LogIf(cond bool, format string, args ...any) {
	if !enabled || !cond {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes how long the named operation took.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogEnterExit logs function entry and exit with timing:
//
//	defer debug.LogEnterExit("catalog.Filter")()
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Trace is an alias for LogEnterExit.
var Trace = LogEnterExit

// Dump logs a value with its type.
func Dump(name string, v any) {
	if !enabled {
		return
	}
	logger.Printf("%s: %T = %+v", name, v, v)
}

// Section logs a section header.
func Section(name string) {
	if !enabled {
		return
	}
	logger.Printf("=== %s ===", name)
}

// Errorf logs an error with context and returns it wrapped, so call sites can
// log and propagate in one line.
func Errorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf(format+": %w", append(args, err)...)
	if enabled {
		logger.Print(wrapped)
	}
	return wrapped
}
