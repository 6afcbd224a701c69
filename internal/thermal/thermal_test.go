package thermal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kimmoahola/ilp-commander/internal/model"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func flatCoefficients(rate string, bufferHours string) Coefficients {
	return Coefficients{
		CoolingRatePerHourPerDiff: d(rate),
		BufferHours:               ConstantBufferHours(d(bufferHours)),
	}
}

func TestTargetInsideTemperatureAtLeastFloorAndMinimum(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	coef := flatCoefficients("0.02", "12")
	outside := model.Sample{Temp: d("-20"), TS: now}

	target := TargetInsideTemperature(coef, outside, d("5"), d("18"), nil)

	assert.Falsef(t, target.LessThan(d("5")), "target %s is below the allowed floor 5", target)
	assert.Falsef(t, target.LessThan(d("18")), "target %s is below the configured minimum 18", target)
}

func TestTargetInsideTemperatureNonDecreasingAsOutsideDrops(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	coef := flatCoefficients("0.02", "12")

	warm := TargetInsideTemperature(coef, model.Sample{Temp: d("0"), TS: now}, d("5"), d("5"), nil)
	cold := TargetInsideTemperature(coef, model.Sample{Temp: d("-25"), TS: now}, d("5"), d("5"), nil)

	assert.Falsef(t, cold.LessThan(warm), "colder outside temperature should never lower the target: warm=%s cold=%s", warm, cold)
}

func TestGetBufferAtFloorIsZero(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	coef := flatCoefficients("0.02", "12")
	outside := model.Sample{Temp: d("-10"), TS: now}

	buffer := GetBuffer(coef, d("5"), outside, d("5"), nil)
	assert.Equal(t, 0, buffer, "GetBuffer at the floor should return 0")

	belowFloor := GetBuffer(coef, d("2"), outside, d("5"), nil)
	assert.Equal(t, 0, belowFloor, "GetBuffer below the floor should return 0")
}

func TestGetBufferInfiniteWhenOutsideAtOrAboveFloor(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	coef := flatCoefficients("0.02", "12")
	outside := model.Sample{Temp: d("10"), TS: now}

	buffer := GetBuffer(coef, d("20"), outside, d("5"), nil)
	assert.Equal(t, Infinite, buffer, "GetBuffer with outside >= floor should be Infinite")
}

func TestGetBufferFiniteWhenOutsideBelowFloor(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	coef := flatCoefficients("0.05", "12")
	outside := model.Sample{Temp: d("-10"), TS: now}

	buffer := GetBuffer(coef, d("20"), outside, d("5"), nil)
	assert.Falsef(t, buffer == Infinite || buffer <= 0, "expected a finite positive number of hours, got %d", buffer)
}

func TestQuadraticBufferHoursFloorsAtTen(t *testing.T) {
	bufferFn := QuadraticBufferHours(d("0"), d("0"), d("1"))
	got := bufferFn(d("-20"), nil)
	assert.True(t, got.Equal(d("10")), "QuadraticBufferHours should floor at 10, got %s", got)
}
