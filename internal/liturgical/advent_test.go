package liturgical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdventSundays(t *testing.T) {
	t.Run("2025", func(t *testing.T) {
		got := AdventSundays(2025, time.UTC)
		want := []time.Time{
			time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.December, 7, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.December, 14, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.December, 21, 0, 0, 0, 0, time.UTC),
		}
		for i := range want {
			assert.True(t, got[i].Equal(want[i]), "week %d: got %s", i+1, got[i])
		}
	})

	t.Run("christmas on a sunday is the fourth advent sunday", func(t *testing.T) {
		// Dec 25, 2022 was a Sunday.
		got := AdventSundays(2022, time.UTC)
		assert.Equal(t, time.Date(2022, time.December, 25, 0, 0, 0, 0, time.UTC), got[3])
		assert.Equal(t, time.Date(2022, time.December, 4, 0, 0, 0, 0, time.UTC), got[0])
	})

	t.Run("properties hold across years", func(t *testing.T) {
		for year := 1990; year <= 2060; year++ {
			got := AdventSundays(year, time.UTC)
			christmas := time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)

			for i, s := range got {
				assert.Equal(t, time.Sunday, s.Weekday(), "year %d week %d", year, i+1)
				if i > 0 {
					assert.Equal(t, 7*24*time.Hour, s.Sub(got[i-1]), "year %d spacing", year)
				}
			}
			fourth := got[3]
			assert.False(t, fourth.After(christmas), "year %d fourth after christmas", year)
			assert.LessOrEqual(t, christmas.Sub(fourth), 6*24*time.Hour, "year %d fourth too early", year)
		}
	})
}

func TestAdventWeek(t *testing.T) {
	week, ok := AdventWeek(time.Date(2025, time.December, 14, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 3, week)

	_, ok = AdventWeek(time.Date(2025, time.October, 5, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestAnnotationFor(t *testing.T) {
	t.Run("first advent week lights one candle", func(t *testing.T) {
		note, ok := AnnotationFor(time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC))
		require.True(t, ok)
		assert.Equal(t, "Advent Week 1 — Liturgist lights the Advent candle.", note)
	})

	t.Run("later weeks light cumulatively", func(t *testing.T) {
		note, ok := AnnotationFor(time.Date(2025, time.December, 14, 0, 0, 0, 0, time.UTC))
		require.True(t, ok)
		assert.Equal(t, "Advent Week 3 — Liturgist lights Advent candles 1, 2 and 3.", note)
	})

	t.Run("christmas eve is the five candle service", func(t *testing.T) {
		note, ok := AnnotationFor(time.Date(2025, time.December, 24, 0, 0, 0, 0, time.UTC))
		require.True(t, ok)
		assert.Contains(t, note, "Christ candle")
	})

	t.Run("ordinary sunday has no note", func(t *testing.T) {
		_, ok := AnnotationFor(time.Date(2025, time.October, 5, 0, 0, 0, 0, time.UTC))
		assert.False(t, ok)
	})
}
