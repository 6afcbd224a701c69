package decimalkit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMedianOddCount(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []TimedValue{
		{Value: d("5"), At: base},
		{Value: d("1"), At: base.Add(time.Minute)},
		{Value: d("3"), At: base.Add(2 * time.Minute)},
	}

	v, at := Median(samples)
	require.NotNil(t, v)
	require.NotNil(t, at)
	assert.True(t, v.Equal(d("3")), "expected median 3, got %s", v)
	assert.True(t, at.Equal(base.Add(2*time.Minute)), "expected the middle sample's own timestamp, got %v", at)
}

func TestMedianEvenCountIsMidpoint(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []TimedValue{
		{Value: d("10"), At: base},
		{Value: d("20"), At: base.Add(2 * time.Hour)},
	}

	v, at := Median(samples)
	require.NotNil(t, v)
	require.NotNil(t, at)
	assert.True(t, v.Equal(d("15")), "expected average of the two middle values (15), got %s", v)
	assert.True(t, at.Equal(base.Add(time.Hour)), "expected a timestamp splitting the gap, got %v", at)
}

func TestMedianIsOrderIndependent(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := []TimedValue{
		{Value: d("7"), At: base},
		{Value: d("2"), At: base.Add(time.Minute)},
		{Value: d("9"), At: base.Add(2 * time.Minute)},
		{Value: d("4"), At: base.Add(3 * time.Minute)},
	}
	b := []TimedValue{a[3], a[1], a[0], a[2]}

	v1, _ := Median(a)
	v2, _ := Median(b)
	require.NotNil(t, v1)
	require.NotNil(t, v2)
	assert.True(t, v1.Equal(*v2), "median should not depend on input order: %s != %s", v1, v2)
}

func TestMedianEmpty(t *testing.T) {
	v, at := Median(nil)
	assert.Nil(t, v)
	assert.Nil(t, at)
}

func TestRoundPreservesNil(t *testing.T) {
	assert.Nil(t, Round(nil, 1))
}

func TestRoundIsIdempotent(t *testing.T) {
	tests := []string{"1.05", "-1.05", "0.125", "19.999", "-0.5"}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			v := d(s)
			once := Round(&v, 1)
			twice := Round(once, 1)
			require.NotNil(t, once)
			require.NotNil(t, twice)
			assert.True(t, once.Equal(*twice), "rounding %s twice should be stable: %s != %s", s, once, twice)
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		v    decimal.Decimal
		lo   decimal.Decimal
		hi   decimal.Decimal
		want decimal.Decimal
	}{
		{name: "within range", v: d("5"), lo: d("0"), hi: d("10"), want: d("5")},
		{name: "below floor", v: d("-5"), lo: d("0"), hi: d("10"), want: d("0")},
		{name: "above ceiling", v: d("15"), lo: d("0"), hi: d("10"), want: d("10")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.v, tt.lo, tt.hi)
			assert.True(t, got.Equal(tt.want), "Clamp(%s, %s, %s) = %s, want %s", tt.v, tt.lo, tt.hi, got, tt.want)
		})
	}
}

func TestMaxMin(t *testing.T) {
	assert.True(t, Max(d("3"), d("5")).Equal(d("5")), "Max(3, 5) should be 5")
	assert.True(t, Min(d("3"), d("5")).Equal(d("3")), "Min(3, 5) should be 3")
}

func TestMean(t *testing.T) {
	got := Mean([]decimal.Decimal{d("1"), d("2"), d("3")})
	require.NotNil(t, got)
	assert.True(t, got.Equal(d("2")), "Mean([1,2,3]) = %s, want 2", got)
	assert.Nil(t, Mean(nil))
}
