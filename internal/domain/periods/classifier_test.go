package periods

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/adstack-go/internal/domain/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifySingleDay(t *testing.T) {
	now := day(2024, 3, 15)

	c := Classify(now, NewDateRange(day(2024, 3, 15), day(2024, 3, 15)))
	assert.True(t, c.Aligned)
	assert.True(t, c.IsCurrent)
	assert.Equal(t, PeriodDay, c.PeriodType)
	assert.Equal(t, "2024-03-15", c.PeriodID)

	c = Classify(now, NewDateRange(day(2024, 3, 14), day(2024, 3, 14)))
	assert.True(t, c.Aligned)
	assert.False(t, c.IsCurrent, "a day that has passed is historical")
}

func TestClassifyWholeWeek(t *testing.T) {
	now := day(2024, 3, 6) // Wednesday inside 2024-W10

	c := Classify(now, NewDateRange(day(2024, 3, 4), day(2024, 3, 10)))
	assert.True(t, c.Aligned)
	assert.True(t, c.IsCurrent)
	assert.Equal(t, PeriodWeek, c.PeriodType)
	assert.Equal(t, "2024-W10", c.PeriodID)

	// Same week viewed after it closed.
	c = Classify(day(2024, 3, 20), NewDateRange(day(2024, 3, 4), day(2024, 3, 10)))
	assert.True(t, c.Aligned)
	assert.False(t, c.IsCurrent)

	// A Tuesday-to-Monday span of seven days is not an ISO week.
	c = Classify(now, NewDateRange(day(2024, 3, 5), day(2024, 3, 11)))
	assert.False(t, c.Aligned)
}

func TestClassifyWholeMonth(t *testing.T) {
	now := day(2024, 3, 15)

	c := Classify(now, NewDateRange(day(2024, 3, 1), day(2024, 3, 31)))
	assert.True(t, c.Aligned)
	assert.True(t, c.IsCurrent)
	assert.Equal(t, PeriodMonth, c.PeriodType)
	assert.Equal(t, "2024-03", c.PeriodID)

	c = Classify(now, NewDateRange(day(2024, 2, 1), day(2024, 2, 29)))
	assert.True(t, c.Aligned)
	assert.False(t, c.IsCurrent, "a closed month is never current")

	// One day short of the month boundary.
	c = Classify(now, NewDateRange(day(2024, 3, 1), day(2024, 3, 30)))
	assert.False(t, c.Aligned)

	// Spanning two months.
	c = Classify(now, NewDateRange(day(2024, 2, 15), day(2024, 3, 15)))
	assert.False(t, c.Aligned)
}

func TestClassifyInvalidRange(t *testing.T) {
	c := Classify(day(2024, 3, 15), DateRange{Start: day(2024, 3, 10), End: day(2024, 3, 1)})
	assert.False(t, c.Aligned)
	assert.False(t, c.IsCurrent)
}

func TestKeyFor(t *testing.T) {
	key, c, ok := KeyFor("client-1", metrics.PlatformMeta, day(2024, 3, 15), NewDateRange(day(2024, 3, 1), day(2024, 3, 31)))
	require.True(t, ok)
	assert.True(t, c.IsCurrent)
	assert.Equal(t, "client-1", key.ClientID)
	assert.Equal(t, metrics.PlatformMeta, key.Platform)
	assert.Equal(t, PeriodMonth, key.PeriodType)
	assert.Equal(t, "2024-03", key.PeriodID)
	assert.Equal(t, "client-1:meta:month:2024-03", key.CacheKey())

	_, _, ok = KeyFor("client-1", metrics.PlatformMeta, day(2024, 3, 15), NewDateRange(day(2024, 3, 2), day(2024, 3, 9)))
	assert.False(t, ok)
}

func TestRangeForKeyRoundTrip(t *testing.T) {
	cases := []struct {
		periodType PeriodType
		periodID   string
		start, end time.Time
	}{
		{PeriodDay, "2024-03-15", day(2024, 3, 15), day(2024, 3, 15)},
		{PeriodWeek, "2024-W10", day(2024, 3, 4), day(2024, 3, 10)},
		{PeriodWeek, "2024-W01", day(2024, 1, 1), day(2024, 1, 7)},
		{PeriodMonth, "2024-02", day(2024, 2, 1), day(2024, 2, 29)},
	}

	for _, tc := range cases {
		r, err := RangeForKey(PeriodKey{ClientID: "c", Platform: metrics.PlatformMeta, PeriodType: tc.periodType, PeriodID: tc.periodID})
		require.NoError(t, err, tc.periodID)
		assert.Equal(t, tc.start, r.Start, tc.periodID)
		assert.Equal(t, tc.end, r.End, tc.periodID)
	}

	_, err := RangeForKey(PeriodKey{PeriodType: "quarter", PeriodID: "2024-Q1"})
	assert.Error(t, err)
}

func TestSplitByMonth(t *testing.T) {
	parts := SplitByMonth(NewDateRange(day(2024, 1, 15), day(2024, 3, 10)))
	require.Len(t, parts, 3)
	assert.Equal(t, day(2024, 1, 15), parts[0].Start)
	assert.Equal(t, day(2024, 1, 31), parts[0].End)
	assert.Equal(t, day(2024, 2, 1), parts[1].Start)
	assert.Equal(t, day(2024, 2, 29), parts[1].End)
	assert.Equal(t, day(2024, 3, 1), parts[2].Start)
	assert.Equal(t, day(2024, 3, 10), parts[2].End)

	parts = SplitByMonth(NewDateRange(day(2024, 3, 5), day(2024, 3, 20)))
	require.Len(t, parts, 1)

	assert.Nil(t, SplitByMonth(DateRange{Start: day(2024, 3, 10), End: day(2024, 3, 1)}))
}

func TestDateRangeDays(t *testing.T) {
	assert.Equal(t, 1, NewDateRange(day(2024, 3, 15), day(2024, 3, 15)).Days())
	assert.Equal(t, 31, NewDateRange(day(2024, 3, 1), day(2024, 3, 31)).Days())
}
