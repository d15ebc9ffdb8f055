package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutoff(t *testing.T) {
	now := time.Date(2024, 2, 15, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-16T12:30:00Z", Cutoff(now, 30))
}

func TestWeekKeyISOYearBoundary(t *testing.T) {
	// 2024-01-01 is a Monday and belongs to ISO week 1 of 2024.
	assert.Equal(t, "2024-W01", WeekKey(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	// 2023-01-01 is a Sunday and belongs to ISO week 52 of 2022.
	assert.Equal(t, "2022-W52", WeekKey(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	// Zero-padded week keys sort in calendar order.
	assert.Less(t, WeekKey(time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)),
		WeekKey(time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC)))
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, "2024-01-28", DateKey(time.Date(2024, 1, 28, 23, 59, 0, 0, time.UTC)))
}

func TestParse(t *testing.T) {
	got, ok := Parse("2024-01-28T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 28, 10, 0, 0, 0, time.UTC), got)

	_, ok = Parse("not a timestamp")
	assert.False(t, ok)
}

func TestGroupCapsNewestThenReturnsChronological(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC) }
	times := []time.Time{day(1), day(2), day(2), day(3), day(4)}

	buckets := Group(times, DateKey, 2)
	require.Len(t, buckets, 2)
	// The cap keeps the two newest dates; the result is oldest first.
	assert.Equal(t, "2024-01-03", buckets[0].Key)
	assert.Equal(t, "2024-01-04", buckets[1].Key)
	assert.Equal(t, 1, buckets[0].Count)
}

func TestGroupValuesSums(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC) }
	times := []time.Time{day(1), day(1), day(2)}
	values := []float64{2, 4, 9}

	buckets := GroupValues(times, values, DateKey, 0)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-01-01", buckets[0].Key)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 6.0, buckets[0].Sum)
	assert.Equal(t, 9.0, buckets[1].Sum)
}

func TestGroupEmpty(t *testing.T) {
	assert.Empty(t, Group(nil, DateKey, 10))
}

func TestReverse(t *testing.T) {
	s := []int{1, 2, 3, 4}
	Reverse(s)
	assert.Equal(t, []int{4, 3, 2, 1}, s)

	empty := []string{}
	Reverse(empty)
	assert.Empty(t, empty)
}
