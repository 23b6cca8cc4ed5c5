package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		w, err := ParseWindow("Q4-2025")
		require.NoError(t, err)
		assert.Equal(t, Window{Quarter: 4, Year: 2025}, w)
		assert.Equal(t, "Q4-2025", w.String())
	})

	t.Run("invalid", func(t *testing.T) {
		for _, s := range []string{"", "Q5-2025", "Q0-2025", "4-2025", "Q4_2025", "Q4-25"} {
			_, err := ParseWindow(s)
			assert.Error(t, err, "input %q", s)
		}
	})
}

func TestWindowBounds(t *testing.T) {
	w := Window{Quarter: 4, Year: 2025}
	startMonth, endMonth := w.Months()
	assert.Equal(t, time.October, startMonth)
	assert.Equal(t, time.December, endMonth)

	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), w.Start(time.UTC))
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), w.End(time.UTC))

	q1 := Window{Quarter: 1, Year: 2026}
	assert.Equal(t, time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), q1.End(time.UTC))
}

func TestWindowOf(t *testing.T) {
	assert.Equal(t, Window{Quarter: 4, Year: 2025}, WindowOf(time.Date(2025, time.December, 24, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Window{Quarter: 1, Year: 2026}, WindowOf(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, Window{Quarter: 2, Year: 2025}.Contains(time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)))
	assert.False(t, Window{Quarter: 2, Year: 2025}.Contains(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)))
}
