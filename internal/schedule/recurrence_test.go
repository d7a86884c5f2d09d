package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 2, 10, 30, 0, 0, time.UTC)

	rec := Every(15 * time.Minute)
	require.NoError(t, rec.Validate())
	assert.True(t, rec.IsInterval())
	assert.Equal(t, now.Add(15*time.Minute), rec.Next(now))
}

func TestNamedCadences(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Minute, EveryMinute().Interval())
	assert.Equal(t, 15*time.Minute, EveryFifteenMinutes().Interval())
	assert.Equal(t, 12*time.Hour, TwiceDaily().Interval())
}

func TestDailyAt(t *testing.T) {
	t.Parallel()

	rec, err := DailyAt("06:30")
	require.NoError(t, err)
	require.NoError(t, rec.Validate())
	assert.False(t, rec.IsInterval())

	t.Run("before the scheduled time", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2025, time.June, 2, 5, 0, 0, 0, time.UTC)
		want := time.Date(2025, time.June, 2, 6, 30, 0, 0, time.UTC)
		assert.Equal(t, want, rec.Next(now))
	})

	t.Run("after the scheduled time rolls to next day", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2025, time.June, 2, 7, 0, 0, 0, time.UTC)
		want := time.Date(2025, time.June, 3, 6, 30, 0, 0, time.UTC)
		assert.Equal(t, want, rec.Next(now))
	})

	t.Run("exactly at the scheduled time rolls to next day", func(t *testing.T) {
		t.Parallel()
		// Next is strictly after now.
		now := time.Date(2025, time.June, 2, 6, 30, 0, 0, time.UTC)
		want := time.Date(2025, time.June, 3, 6, 30, 0, 0, time.UTC)
		assert.Equal(t, want, rec.Next(now))
	})
}

func TestAtTimes(t *testing.T) {
	t.Parallel()

	// Unsorted input; Next should pick the earliest upcoming occurrence.
	rec, err := AtTimes("18:00", "06:00")
	require.NoError(t, err)

	now := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	want := time.Date(2025, time.June, 2, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, want, rec.Next(now))

	now = time.Date(2025, time.June, 2, 19, 0, 0, 0, time.UTC)
	want = time.Date(2025, time.June, 3, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, want, rec.Next(now))
}

func TestAtTimesInvalid(t *testing.T) {
	t.Parallel()

	cases := []string{"", "25:00", "12:60", "noon", "12", "12:xx"}
	for _, s := range cases {
		_, err := AtTimes(s)
		assert.ErrorIs(t, err, ErrInvalidRecurrence, "AtTimes(%q)", s)
	}

	_, err := AtTimes()
	assert.ErrorIs(t, err, ErrInvalidRecurrence)
}

func TestCronRecurrence(t *testing.T) {
	t.Parallel()

	rec, err := Cron("*/15 * * * *")
	require.NoError(t, err)
	require.NoError(t, rec.Validate())

	now := time.Date(2025, time.June, 2, 10, 7, 30, 0, time.UTC)
	want := time.Date(2025, time.June, 2, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, want, rec.Next(now))

	// Starting exactly on a match still returns the next occurrence.
	now = time.Date(2025, time.June, 2, 10, 15, 0, 0, time.UTC)
	want = time.Date(2025, time.June, 2, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, want, rec.Next(now))
}

func TestCronNextWithNoRealDateIsZero(t *testing.T) {
	t.Parallel()

	// February 30 passes field validation but never occurs; the forward
	// scan exhausts its horizon and reports no occurrence.
	rec, err := Cron("0 0 30 2 *")
	require.NoError(t, err)

	now := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	assert.True(t, rec.Next(now).IsZero())
}

func TestCronRejectsInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := Cron("1-10/2 * * * *")
	assert.ErrorIs(t, err, ErrInvalidRecurrence)

	_, err = Cron("not a cron")
	assert.ErrorIs(t, err, ErrInvalidRecurrence)
}

func TestRecurrenceValidate(t *testing.T) {
	t.Parallel()

	var zero Recurrence
	assert.ErrorIs(t, zero.Validate(), ErrInvalidRecurrence)

	assert.NoError(t, Every(time.Minute).Validate())
}
