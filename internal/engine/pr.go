package engine

import (
	"context"
	"sort"
	"time"

	"devpulse/internal/assemble"
	"devpulse/internal/repo"
	"devpulse/internal/window"
)

const (
	volumeWeeksCap    = 12
	reviewTimeDateCap = 30
	agingThresholdDay = 2
)

// VolumeEntry is one week's pull-request count.
type VolumeEntry struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// PRVolume buckets the owner's pull requests by ISO week of creation, most
// recent 12 weeks, chronological order.
func (e Engine) PRVolume(ctx context.Context, scope repo.Scope) ([]VolumeEntry, error) {
	created, err := e.Repo.ListPRCreationTimes(ctx, scope)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(created))
	for _, ts := range created {
		if t, ok := window.Parse(ts); ok {
			times = append(times, t)
		}
	}
	buckets := window.Group(times, window.WeekKey, volumeWeeksCap)
	res := make([]VolumeEntry, 0, len(buckets))
	for _, b := range buckets {
		res = append(res, VolumeEntry{Week: b.Key, Count: b.Count})
	}
	return res, nil
}

// ReviewTrendEntry is one creation date's mean hours to merge.
type ReviewTrendEntry struct {
	Date     string  `json:"date" format:"date"`
	AvgHours float64 `json:"avg_hours"`
}

// ReviewTime summarizes hours from PR creation to merge: per-creation-date
// means for the most recent 30 dates, chronological, and an overall figure
// that is the mean of those daily means rather than a row-weighted mean.
type ReviewTime struct {
	AverageHours float64            `json:"average_hours"`
	Trend        []ReviewTrendEntry `json:"trend"`
}

func (e Engine) ReviewTime(ctx context.Context, scope repo.Scope) (ReviewTime, error) {
	spans, err := e.Repo.ListMergedPRTimes(ctx, scope)
	if err != nil {
		return ReviewTime{}, err
	}
	times := make([]time.Time, 0, len(spans))
	values := make([]float64, 0, len(spans))
	for _, s := range spans {
		from, ok1 := window.Parse(s.Start)
		to, ok2 := window.Parse(s.End)
		if !ok1 || !ok2 {
			continue
		}
		times = append(times, from)
		values = append(values, assemble.Hours(from, to))
	}
	buckets := window.GroupValues(times, values, window.DateKey, reviewTimeDateCap)

	trend := make([]ReviewTrendEntry, 0, len(buckets))
	daily := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		avg := b.Sum / float64(b.Count)
		daily = append(daily, avg)
		trend = append(trend, ReviewTrendEntry{Date: b.Key, AvgHours: assemble.Round1(avg)})
	}
	return ReviewTime{AverageHours: assemble.Mean(daily), Trend: trend}, nil
}

// AgingPR is an open pull request past the staleness threshold.
type AgingPR struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Author    *string `json:"author"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	AgeDays   int     `json:"age_days"`
}

// AgingPRs lists the owner's open pull requests older than two whole days,
// oldest (largest age) first.
func (e Engine) AgingPRs(ctx context.Context, scope repo.Scope) ([]AgingPR, error) {
	open, err := e.Repo.ListOpenPRs(ctx, scope)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	res := make([]AgingPR, 0, len(open))
	for _, p := range open {
		created, ok := window.Parse(p.CreatedAt)
		if !ok {
			continue
		}
		age := int(now.Sub(created).Hours() / 24)
		if age <= agingThresholdDay {
			continue
		}
		res = append(res, AgingPR{ID: p.ID, Title: p.Title, Author: p.Author, CreatedAt: p.CreatedAt, AgeDays: age})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].AgeDays > res[j].AgeDays })
	return res, nil
}

// ReviewerLoad is one reviewer's 30-day review count.
type ReviewerLoad struct {
	Name        string `json:"name"`
	ReviewCount int    `json:"review_count"`
}

func (e Engine) ReviewLoad(ctx context.Context, scope repo.Scope) ([]ReviewerLoad, error) {
	since := window.Cutoff(e.now(), window.RollingDays)
	rows, err := e.Repo.ReviewLoad(ctx, scope, since)
	if err != nil {
		return nil, err
	}
	res := make([]ReviewerLoad, 0, len(rows))
	for _, r := range rows {
		res = append(res, ReviewerLoad{Name: r.Reviewer, ReviewCount: r.Count})
	}
	return res, nil
}

// MergeRate is the all-time merged share of the owner's pull requests.
type MergeRate struct {
	Rate   float64 `json:"rate"`
	Total  int     `json:"total"`
	Merged int     `json:"merged"`
}

func (e Engine) MergeRate(ctx context.Context, scope repo.Scope) (MergeRate, error) {
	total, err := e.Repo.CountPRs(ctx, scope, "")
	if err != nil {
		return MergeRate{}, err
	}
	merged, err := e.Repo.CountPRs(ctx, scope, "merged")
	if err != nil {
		return MergeRate{}, err
	}
	return MergeRate{Rate: assemble.Rate(merged, total), Total: total, Merged: merged}, nil
}
