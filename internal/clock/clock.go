// Package clock provides the controller's notion of wall-clock time
// and the "has this box acquired network time" gate the selector's
// summer heuristic depends on (spec §4.7 step 5 requires a
// `valid_time` flag; on an embedded box the RTC may still be at its
// epoch default right after boot, before NTP has synced).
package clock

import "time"

// Clock is the narrow time interface the pipeline depends on, so
// tests can inject a fixed instant instead of depending on time.Now.
type Clock interface {
	Now() time.Time
	// TimeValid reports whether the system clock is believed to be
	// correct (network time has been acquired at least once).
	TimeValid() bool
}

// System is the production Clock, backed by the OS wall clock. A
// clock is considered valid once its year is plausibly "now" — the
// original treats any year before the release year as unsynced; here
// we use a configurable epoch boundary so it keeps working in the
// future.
type System struct {
	// NotBefore is the earliest instant considered "network time
	// acquired". Any observed time before this is treated as an
	// unsynchronized RTC default.
	NotBefore time.Time
}

// NewSystem builds a System clock with the given acquired-by-floor.
func NewSystem(notBefore time.Time) *System {
	return &System{NotBefore: notBefore}
}

func (s *System) Now() time.Time { return time.Now().UTC() }

func (s *System) TimeValid() bool {
	return time.Now().UTC().After(s.NotBefore)
}

// Fixed is a Clock that always returns the same instant; used in
// tests and to freeze "now" for the duration of a single pipeline
// iteration.
type Fixed struct {
	At    time.Time
	Valid bool
}

func (f Fixed) Now() time.Time   { return f.At }
func (f Fixed) TimeValid() bool  { return f.Valid }
