package period_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/stats"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDateRange_Formats(t *testing.T) {
	tests := []struct {
		in    string
		start time.Time
		end   time.Time
	}{
		{"Aug 24 - Sep 1, 2025", day(2025, 8, 24), day(2025, 9, 1)},
		{"Aug 24, 2025 - Sep 1, 2025", day(2025, 8, 24), day(2025, 9, 1)},
		{"2025-08-24 - 2025-09-01", day(2025, 8, 24), day(2025, 9, 1)},
		{"2025-08-24-2025-09-01", day(2025, 8, 24), day(2025, 9, 1)},
		{"24 Aug 2025 - 1 Sep 2025", day(2025, 8, 24), day(2025, 9, 1)},
		{"1 Oca 2024 - 31 Oca 2024", day(2024, 1, 1), day(2024, 1, 31)},
		{"3 Şub 2024 - 9 Şub 2024", day(2024, 2, 3), day(2024, 2, 9)},
		{"Aug 24 - Aug 30", day(2023, 8, 24), day(2023, 8, 30)},
		{"Dec 28 - Jan 3, 2025", day(2024, 12, 28), day(2025, 1, 3)},
		{"Dec 28, 2024 - Jan 3", day(2024, 12, 28), day(2025, 1, 3)},
		{"Nov 30 - Jan 2, 2025", day(2024, 11, 30), day(2025, 1, 2)},
		{"Dec 15, 2024 - Feb 1", day(2024, 12, 15), day(2025, 2, 1)},
		{"August 24 – August 30, 2025", day(2025, 8, 24), day(2025, 8, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := period.ParseDateRange(tt.in, 2023)
			require.NoError(t, err)
			assert.True(t, tt.start.Equal(r.Start), "start: got %s", r.Start)
			assert.True(t, tt.end.Equal(r.End), "end: got %s", r.End)
		})
	}
}

func TestParseDateRange_Errors(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"Aug 24",
		"Foo 1 - Bar 2, 2025",
		"Sep 1 - Aug 24, 2025",
		"Sep 1, 2025 - Aug 24",
		"Oct 1 - Jan 3, 2025",
		"Aug 1, 25 - Aug 7, 2025",
		"Aug 1, 1969 - Aug 7, 2025",
		"Aug 1, 2025 - Aug 7, 2201",
		"0001-01-01 - 2025-01-01",
		"2025-01-01 - 9999-12-31",
		"Feb 30 - Mar 2, 2025",
		"Feb 29 - Mar 2, 2025",
		"2025-13-01 - 2025-13-05",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := period.ParseDateRange(in, 2025)
			require.Error(t, err)
			assert.True(t, stats.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestParseDateRange_LeapDay(t *testing.T) {
	r, err := period.ParseDateRange("Feb 29 - Mar 2, 2024", 2025)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Days())
}

func TestDateRange_DaysAndString(t *testing.T) {
	r, err := period.ParseDateRange("Aug 24 - Sep 1, 2025", 2025)
	require.NoError(t, err)

	assert.Equal(t, 9, r.Days())
	assert.Equal(t, "Aug 24, 2025 - Sep 1, 2025", r.String())

	single, err := period.ParseDateRange("2025-08-24 - 2025-08-24", 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, single.Days())
}

func TestParseDateRange_DefaultYearOutOfBounds(t *testing.T) {
	_, err := period.ParseDateRange("Aug 1 - Aug 7", 1)
	require.Error(t, err)
	assert.True(t, stats.IsValidation(err))

	_, err = period.ParseDateRange("Dec 28 - Jan 3, 1970", 2025)
	require.Error(t, err)
	assert.True(t, stats.IsValidation(err))
}

func TestDateRange_DaysLongSpan(t *testing.T) {
	r, err := period.ParseDateRange("1970-01-01 - 2200-12-31", 2025)
	require.NoError(t, err)
	assert.Equal(t, 84371, r.Days())

	leap, err := period.ParseDateRange("2024-01-01 - 2024-12-31", 2025)
	require.NoError(t, err)
	assert.Equal(t, 366, leap.Days())
}
