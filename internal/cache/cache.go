// Package cache implements the request cache: named slots holding a
// value plus an "ok-until" and a "failed-until" expiry, so a source
// adapter's transient failure can still be served stale data rather
// than stopping actuation. Modeled on the teacher's
// config.CachedConfigProvider decorator (pkg/config/provider.go),
// generalized from a single whole-config cache to many independently
// named, independently timed slots.
package cache

import (
	"sync"
	"time"
)

// Mode selects which expiry a Get checks.
type Mode int

const (
	// ModeOK only returns content while it is fresh.
	ModeOK Mode = iota
	// ModeFailed returns content up to the longer failed-until
	// deadline, used as a fallback once a source adapter fails.
	ModeFailed
)

// Entry is one named cache slot.
type Entry struct {
	StaleAfterOK     time.Time
	StaleAfterFailed time.Time
	Content          any
}

// Policy is the per-cache-name configuration: how long a freshly
// fetched value is considered "ok", and how much longer it may still
// be served as "failed"-mode fallback. Durations are measured from
// the content's own timestamp, not from fetch time, per spec §4.2.
type Policy struct {
	OKAfter     time.Duration
	FailedAfter time.Duration
}

// Cache is a process-wide map from cache name to Entry, guarded by a
// mutex since the controller's single-threaded loop can still be
// entered from a concurrent fan-out inside one iteration (see
// internal/fusion's errgroup use).
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	policies map[string]Policy
}

// New builds a Cache configured with the given per-name policies.
func New(policies map[string]Policy) *Cache {
	return &Cache{
		entries:  make(map[string]Entry),
		policies: policies,
	}
}

// Get returns the cached content for name under the given mode, or
// (nil, false) if there is no entry or it has expired for that mode.
func (c *Cache) Get(name string, mode Mode, now time.Time) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	deadline := e.StaleAfterOK
	if mode == ModeFailed {
		deadline = e.StaleAfterFailed
	}
	if now.After(deadline) {
		return nil, false
	}
	return e.Content, true
}

// Put stores content for name, computing its ok/failed deadlines from
// contentTime using the name's configured Policy. Unknown names get a
// zero policy (always stale), which effectively disables caching for
// them rather than panicking.
func (c *Cache) Put(name string, contentTime time.Time, content any) {
	p := c.policies[name]
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = Entry{
		StaleAfterOK:     contentTime.Add(p.OKAfter),
		StaleAfterFailed: contentTime.Add(p.FailedAfter),
		Content:          content,
	}
}

// Reset clears all cached entries.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// DefaultPolicies is the per-source cache configuration table from
// spec §4.2.
func DefaultPolicies() map[string]Policy {
	m := func(okMin, failedMin int) Policy {
		return Policy{
			OKAfter:     time.Duration(okMin) * time.Minute,
			FailedAfter: time.Duration(failedMin) * time.Minute,
		}
	}
	return map[string]Policy{
		"outside_raw":   m(25, 120),
		"weather_obs":   m(15, 120),
		"inside":        m(15, 120),
		"forecast_fmi":  m(60, 2880),
		"dew_point":     m(60, 120),
		"forecast_yr":   m(60, 2880),
		"owm":           m(50, 120),
		"smartthings":   m(15, 120),
	}
}

// Fetch is the signature every cache-wrapped source adapter shares:
// produce a value plus the instant it is timestamped at, or (nil,
// zero, err) on failure.
type Fetch[T any] func() (T, time.Time, error)

// Caching wraps a Fetch so that: an "ok" cache hit returns the cached
// value without calling fetch; otherwise fetch is invoked; on success
// the result is stored and returned; on failure (err != nil) the
// "failed" cache window is consulted as a fallback, and if that is
// also empty the call returns the zero value and ok=false. This is
// the Go analogue of the original's `@caching("name")` decorator
// (spec §9 Design Notes: "a small combinator... no process-wide
// mutable map"), parameterized over a *Cache instance the pipeline
// owns rather than a package-level global.
func Caching[T any](c *Cache, name string, now time.Time, fetch Fetch[T]) (T, bool) {
	if v, ok := c.Get(name, ModeOK, now); ok {
		return v.(T), true
	}

	value, ts, err := fetch()
	if err == nil {
		c.Put(name, ts, value)
		return value, true
	}

	if v, ok := c.Get(name, ModeFailed, now); ok {
		return v.(T), true
	}

	var zero T
	return zero, false
}
