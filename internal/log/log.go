// Package log holds the leveled loggers used across workchan. Until
// Initialize is called every logger discards its output, so the library is
// silent inside a host program that does not opt in.
package log

import (
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jzx17/workchan/pkg/types"
)

var (
	WarningLog = log.New(io.Discard, "", 0)
	InfoLog    = log.New(io.Discard, "", 0)
	ErrorLog   = log.New(io.Discard, "", 0)
	DebugLog   = log.New(io.Discard, "", 0)
)

var debugEnabled = os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1"

const flags = log.Ldate | log.Ltime | log.Lmicroseconds

// Initialize points the loggers at w. It should be called once, before any
// worker is spawned. Debug output additionally needs DEBUG=1 or SetDebug.
func Initialize(w io.Writer, prefix string) {
	if w == nil {
		w = os.Stderr
	}
	InfoLog = log.New(w, prefix+"INFO: ", flags)
	WarningLog = log.New(w, prefix+"WARNING: ", flags)
	ErrorLog = log.New(w, prefix+"ERROR: ", flags)
	if debugEnabled {
		DebugLog = log.New(w, prefix+"DEBUG: ", flags)
	} else {
		DebugLog = log.New(io.Discard, "", 0)
	}
}

// SetDebug overrides the DEBUG environment variable. Call it before Initialize.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// Every is used to log at most once every interval.
type Every struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	started  bool
	clock    types.Clock
}

// NewEvery creates an Every on the real clock
func NewEvery(interval time.Duration) *Every {
	return NewEveryWithClock(interval, nil)
}

// NewEveryWithClock creates an Every measuring time with clock
func NewEveryWithClock(interval time.Duration, clock types.Clock) *Every {
	return &Every{interval: interval, clock: types.OrRealClock(clock)}
}

// ShouldLog returns true on the first call and then once the interval has
// passed since the last true.
func (e *Every) ShouldLog() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if e.started && now.Sub(e.last) < e.interval {
		return false
	}
	e.started = true
	e.last = now
	return true
}
