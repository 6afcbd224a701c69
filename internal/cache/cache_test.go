package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPutOKWindow(t *testing.T) {
	c := New(map[string]Policy{"x": {OKAfter: 10 * time.Minute, FailedAfter: time.Hour}})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Put("x", base, 42)

	v, ok := c.Get("x", ModeOK, base.Add(5*time.Minute))
	require.True(t, ok, "expected a hit within the ok window")
	assert.Equal(t, 42, v)

	_, ok = c.Get("x", ModeOK, base.Add(11*time.Minute))
	assert.False(t, ok, "expected a miss past the ok window")
}

func TestGetFailedWindowOutlivesOKWindow(t *testing.T) {
	c := New(map[string]Policy{"x": {OKAfter: 10 * time.Minute, FailedAfter: 2 * time.Hour}})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Put("x", base, 7)

	past := base.Add(30 * time.Minute)
	_, ok := c.Get("x", ModeOK, past)
	assert.False(t, ok, "expected ModeOK to have expired by 30 minutes")

	v, ok := c.Get("x", ModeFailed, past)
	require.True(t, ok, "expected ModeFailed to still serve the stale value")
	assert.Equal(t, 7, v)

	_, ok = c.Get("x", ModeFailed, base.Add(3*time.Hour))
	assert.False(t, ok, "expected ModeFailed to also expire eventually")
}

func TestGetUnknownName(t *testing.T) {
	c := New(DefaultPolicies())
	_, ok := c.Get("nonexistent", ModeOK, time.Now())
	assert.False(t, ok, "expected a miss for a name with no entry")
}

func TestReset(t *testing.T) {
	c := New(map[string]Policy{"x": {OKAfter: time.Hour, FailedAfter: time.Hour}})
	now := time.Now()
	c.Put("x", now, 1)
	c.Reset()
	_, ok := c.Get("x", ModeOK, now)
	assert.False(t, ok, "expected Reset to clear all entries")
}

func TestCachingServesFreshValueWithoutRefetch(t *testing.T) {
	c := New(map[string]Policy{"x": {OKAfter: time.Hour, FailedAfter: 2 * time.Hour}})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	calls := 0
	fetch := func() (int, time.Time, error) {
		calls++
		return 99, now, nil
	}

	v1, ok1 := Caching(c, "x", now, fetch)
	v2, ok2 := Caching(c, "x", now.Add(time.Minute), fetch)

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, 99, v1)
	assert.Equal(t, 99, v2)
	assert.Equal(t, 1, calls, "expected fetch to be called once while the cache is fresh")
}

func TestCachingFallsBackToFailedWindowOnFetchError(t *testing.T) {
	c := New(map[string]Policy{"x": {OKAfter: time.Minute, FailedAfter: time.Hour}})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	good := func() (int, time.Time, error) { return 5, now, nil }
	Caching(c, "x", now, good)

	failing := func() (int, time.Time, error) { return 0, time.Time{}, errors.New("source down") }
	v, ok := Caching(c, "x", now.Add(10*time.Minute), failing)

	require.True(t, ok, "expected the failed-window fallback to serve the stale value")
	assert.Equal(t, 5, v)
}

func TestCachingReturnsZeroWhenNothingToFallBackTo(t *testing.T) {
	c := New(map[string]Policy{"x": {OKAfter: time.Minute, FailedAfter: time.Minute}})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	failing := func() (int, time.Time, error) { return 0, time.Time{}, errors.New("source down") }
	v, ok := Caching(c, "x", now, failing)

	assert.False(t, ok, "expected a failure with no fallback")
	assert.Equal(t, 0, v)
}
