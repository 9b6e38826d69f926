package lending_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/lending"
)

func TestParseDate_FixedWidthOnly(t *testing.T) {
	for _, bad := range []string{"2024-3-1", "2024-03-01T10:00:00", "01/03/2024", "2024-02-30", ""} {
		_, err := lending.ParseDate(bad)
		assert.ErrorIs(t, err, lending.ErrInvalidInput, bad)
	}

	d, err := lending.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
}

func TestDate_Arithmetic(t *testing.T) {
	d := lending.MustParseDate("2024-02-27")

	assert.Equal(t, "2024-03-05", d.AddDays(7).String())
	assert.Equal(t, 7, d.DaysUntil(d.AddDays(7)))
	assert.Equal(t, -2, d.DaysUntil(lending.MustParseDate("2024-02-25")))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.BeforeOrEqual(d))
	assert.True(t, d.AfterOrEqual(d))
}

func TestDate_TextRoundTrip(t *testing.T) {
	var d lending.Date
	require.NoError(t, d.UnmarshalText([]byte("2024-03-10")))
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", string(b))

	var zero lending.Date
	require.NoError(t, zero.UnmarshalText(nil))
	assert.True(t, zero.IsZero())
}

func TestYearMonth(t *testing.T) {
	ym, err := lending.ParseYearMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, lending.YearMonth{Year: 2024, Month: time.March}, ym)
	assert.Equal(t, "2024-03", ym.String())

	_, err = lending.ParseYearMonth("2024-3")
	assert.ErrorIs(t, err, lending.ErrInvalidInput)
}

func TestClockTime(t *testing.T) {
	c := lending.ClockOf(time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC))
	assert.Equal(t, "09:05:07", c.String())

	parsed, err := lending.ParseClockTime("09:05:07")
	require.NoError(t, err)
	assert.Equal(t, c, parsed)

	assert.Equal(t, "", lending.ClockTime{}.String())
}

func TestFixedClock(t *testing.T) {
	clock := &lending.FixedClock{}
	clock.Set(lending.MustParseDate("2024-03-01"))
	clock.Advance(3)

	assert.Equal(t, "2024-03-04", lending.DateOf(clock.Now()).String())
	assert.Equal(t, 10, clock.Now().Hour())
}
