package rates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertSelfIdentity(t *testing.T) {
	// Same currency needs no lookup, even when absent from the table.
	got, rate := Convert(123.45, "XYZ", "XYZ", Table{})
	assert.Equal(t, 123.45, got)
	assert.Equal(t, 1.0, rate)
}

func TestConvertBasic(t *testing.T) {
	rates := Table{"USD": 32.0, "TWD": 1.0}

	got, rate := Convert(100, "USD", "TWD", rates)
	assert.Equal(t, 3200.0, got)
	assert.Equal(t, 32.0, rate)
}

func TestConvertRoundTripWithinTolerance(t *testing.T) {
	rates := Table{"USD": 32.0, "TWD": 1.0}

	there, rate := Convert(100, "USD", "TWD", rates)
	assert.NotZero(t, rate)
	back, rate := Convert(there, "TWD", "USD", rates)
	assert.NotZero(t, rate)

	assert.InDelta(t, 100, back, 0.01)
}

func TestConvertMissingCurrencyIsSentinel(t *testing.T) {
	rates := Table{"TWD": 1.0}

	got, rate := Convert(50, "USD", "TWD", rates)
	assert.Equal(t, 50.0, got)
	assert.Equal(t, 0.0, rate)

	got, rate = Convert(50, "TWD", "USD", rates)
	assert.Equal(t, 50.0, got)
	assert.Equal(t, 0.0, rate)
}

func TestConvertRoundsToTwoDecimals(t *testing.T) {
	rates := Table{"JPY": 0.21, "TWD": 1.0}

	got, _ := Convert(333, "JPY", "TWD", rates)
	assert.Equal(t, 69.93, got)

	got, _ = Convert(1, "TWD", "JPY", rates)
	assert.Equal(t, 4.76, got) // 1/0.21 = 4.7619...
}

func TestConvertDoesNotMutateTable(t *testing.T) {
	rates := Table{"USD": 32.0, "TWD": 1.0}
	Convert(10, "USD", "TWD", rates)

	assert.Equal(t, Table{"USD": 32.0, "TWD": 1.0}, rates)
}
