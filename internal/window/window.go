// Package window resolves the time windows and calendar buckets shared by
// the metric aggregators: rolling N-day cutoffs, ISO-week and date bucket
// keys, and the newest-first-then-chronological trend convention.
package window

import (
	"fmt"
	"sort"
	"time"
)

// RollingDays is the lookback applied to every rolling-window statistic.
const RollingDays = 30

// Cutoff returns the RFC3339 timestamp N days before now. Stored timestamps
// are UTC RFC3339 strings, so the rolling window is a plain string
// comparison against this value.
func Cutoff(now time.Time, days int) string {
	return now.UTC().AddDate(0, 0, -days).Format(time.RFC3339)
}

// WeekKey maps a timestamp to its ISO (year, week) bucket, rendered as
// "2024-W05". Keys sort in calendar order because both fields are
// zero-padded.
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// DateKey maps a timestamp to its UTC calendar-date bucket, "2024-01-28".
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Parse reads a stored RFC3339 timestamp. Rows written by this module are
// always parseable; a zero time and false flag any foreign value so callers
// can skip the row instead of poisoning an aggregate.
func Parse(ts string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Bucket is one grouped trend data point.
type Bucket struct {
	Key   string
	Count int
	Sum   float64
}

// Group buckets timestamps with keyFn and returns the newest maxBuckets
// buckets in chronological order. The recency cap is applied on the
// descending key order, then the slice is reversed, so consumers always see
// oldest to newest.
func Group(times []time.Time, keyFn func(time.Time) string, maxBuckets int) []Bucket {
	counts := map[string]int{}
	for _, t := range times {
		counts[keyFn(t)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if maxBuckets > 0 && len(keys) > maxBuckets {
		keys = keys[:maxBuckets]
	}
	Reverse(keys)
	res := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		res = append(res, Bucket{Key: k, Count: counts[k]})
	}
	return res
}

// GroupValues buckets (timestamp, value) pairs with keyFn, keeping per-bucket
// count and value sum, newest maxBuckets buckets, chronological order.
func GroupValues(times []time.Time, values []float64, keyFn func(time.Time) string, maxBuckets int) []Bucket {
	counts := map[string]int{}
	sums := map[string]float64{}
	for i, t := range times {
		k := keyFn(t)
		counts[k]++
		sums[k] += values[i]
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if maxBuckets > 0 && len(keys) > maxBuckets {
		keys = keys[:maxBuckets]
	}
	Reverse(keys)
	res := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		res = append(res, Bucket{Key: k, Count: counts[k], Sum: sums[k]})
	}
	return res
}

// Reverse flips a slice in place. Aggregators query newest-first to apply
// recency caps and reverse before returning, so trend arrays are always
// chronological.
func Reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
