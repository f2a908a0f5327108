// Package log wraps the uhppoted-lib levelled logger with a success level and a run
// identifier tag, so that all the lines of a single cron invocation can be correlated.
package log

import (
	"fmt"
	"io"
	syslog "log"
	"os"
	"sync"

	lib "github.com/uhppoted/uhppoted-lib/log"
)

var state = struct {
	sync.Mutex
	out    io.Writer
	tag    string
	logger *syslog.Logger
}{
	out: os.Stdout,
}

func init() {
	state.Lock()
	defer state.Unlock()

	reset()
}

func SetOutput(w io.Writer) {
	state.Lock()
	defer state.Unlock()

	state.out = w
	reset()
}

func SetDebug(enabled bool) {
	lib.SetDebug(enabled)
}

// SetTag prefixes every subsequent log message with the tag, e.g. the run ID. An empty
// string clears the tag.
func SetTag(tag string) {
	state.Lock()
	defer state.Unlock()

	state.tag = tag
	reset()
}

func Debugf(format string, args ...any) {
	lib.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	lib.Infof(format, args...)
}

// Successf logs the successful completion of a pipeline stage.
func Successf(format string, args ...any) {
	state.Lock()
	logger := state.logger
	state.Unlock()

	logger.Printf("%-5v  %v", "OK", fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	lib.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	lib.Errorf(format, args...)
}

// reset replaces the uhppoted-lib logger. Caller must hold the state lock.
func reset() {
	prefix := ""
	if state.tag != "" {
		prefix = state.tag + "  "
	}

	state.logger = syslog.New(state.out, prefix, syslog.LstdFlags|syslog.Lmsgprefix)

	lib.SetLogger(state.logger)
}
