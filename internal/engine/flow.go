package engine

import (
	"context"
	"sort"

	"devpulse/internal/assemble"
	"devpulse/internal/repo"
	"devpulse/internal/window"
)

const (
	flowListCap   = 50
	throughputCap = 10
)

// FlowItem is one task in a lead-time or cycle-time listing.
type FlowItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Assignee *string `json:"assignee"`
	Hours    float64 `json:"hours"`
	Date     string  `json:"date" format:"date"`
}

// FlowTimes is the lead-time or cycle-time aggregate: the mean over the
// capped listing plus the items in chronological order.
type FlowTimes struct {
	AverageHours float64    `json:"average_hours"`
	Data         []FlowItem `json:"data"`
}

func (e Engine) flowTimes(rows []repo.FlowRow) FlowTimes {
	items := make([]FlowItem, 0, len(rows))
	hours := make([]float64, 0, len(rows))
	for _, r := range rows {
		from, ok1 := window.Parse(r.StartTS)
		to, ok2 := window.Parse(r.EndTS)
		if !ok1 || !ok2 {
			continue
		}
		h := assemble.Hours(from, to)
		hours = append(hours, h)
		items = append(items, FlowItem{
			ID:       r.ID,
			Title:    r.Title,
			Assignee: r.Assignee,
			Hours:    assemble.Round1(h),
			Date:     window.DateKey(to),
		})
	}
	// Rows arrive newest first so the cap keeps the most recent; flip to
	// chronological for the response.
	window.Reverse(items)
	return FlowTimes{AverageHours: assemble.Mean(hours), Data: items}
}

// LeadTime measures creation to deployment for the owner's deployed tasks,
// optionally restricted to one sprint, most recent deployments first
// internally, chronological in the response.
func (e Engine) LeadTime(ctx context.Context, scope repo.Scope, sprintID string) (FlowTimes, error) {
	rows, err := e.Repo.ListDeployedTasks(ctx, scope, sprintID, flowListCap)
	if err != nil {
		return FlowTimes{}, err
	}
	return e.flowTimes(rows), nil
}

// CycleTime measures start to completion for the owner's finished tasks.
func (e Engine) CycleTime(ctx context.Context, scope repo.Scope, sprintID string) (FlowTimes, error) {
	rows, err := e.Repo.ListCompletedTasks(ctx, scope, sprintID, flowListCap)
	if err != nil {
		return FlowTimes{}, err
	}
	return e.flowTimes(rows), nil
}

// ThroughputEntry is one sprint's completed-work rollup.
type ThroughputEntry struct {
	Sprint      string  `json:"sprint"`
	TaskCount   int     `json:"task_count"`
	TotalPoints float64 `json:"total_points"`
}

func (e Engine) Throughput(ctx context.Context, scope repo.Scope) ([]ThroughputEntry, error) {
	rows, err := e.Repo.Throughput(ctx, scope, throughputCap)
	if err != nil {
		return nil, err
	}
	res := make([]ThroughputEntry, 0, len(rows))
	for _, r := range rows {
		res = append(res, ThroughputEntry{Sprint: r.Sprint, TaskCount: r.TaskCount, TotalPoints: r.TotalPoints})
	}
	return res, nil
}

// WIPEntry is one in-progress status group.
type WIPEntry struct {
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Developers string `json:"developers"`
}

// WIPSummary is the work-in-progress aggregate: total active tasks plus the
// per-status breakdown.
type WIPSummary struct {
	Total     int        `json:"total"`
	Breakdown []WIPEntry `json:"breakdown"`
}

func (e Engine) WIP(ctx context.Context, scope repo.Scope) (WIPSummary, error) {
	rows, err := e.Repo.WIPByStatus(ctx, scope)
	if err != nil {
		return WIPSummary{}, err
	}
	sum := WIPSummary{Breakdown: make([]WIPEntry, 0, len(rows))}
	for _, r := range rows {
		sum.Total += r.Count
		sum.Breakdown = append(sum.Breakdown, WIPEntry{Status: r.Status, Count: r.Count, Developers: r.Developers})
	}
	return sum, nil
}

// StageReport is one workflow stage's dwell-time health.
type StageReport struct {
	Stage      string  `json:"stage"`
	EventCount int     `json:"event_count"`
	AvgHours   float64 `json:"avg_hours"`
	Status     string  `json:"status" enum:"Healthy,Warning,Critical"`
}

// Bottlenecks averages dwell time per workflow stage across all workspaces.
// Open intervals count up to now. Stages sort by average descending.
func (e Engine) Bottlenecks(ctx context.Context) ([]StageReport, error) {
	events, err := e.Repo.ListStageEvents(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()

	type agg struct {
		hours []float64
	}
	stages := map[string]*agg{}
	for _, ev := range events {
		entered, ok := window.Parse(ev.EnteredAt)
		if !ok {
			continue
		}
		exited := now
		if ev.ExitedAt != nil {
			if t, ok := window.Parse(*ev.ExitedAt); ok {
				exited = t
			}
		}
		a := stages[ev.StageName]
		if a == nil {
			a = &agg{}
			stages[ev.StageName] = a
		}
		a.hours = append(a.hours, assemble.Hours(entered, exited))
	}

	res := make([]StageReport, 0, len(stages))
	for name, a := range stages {
		avg := assemble.Mean(a.hours)
		res = append(res, StageReport{
			Stage:      name,
			EventCount: len(a.hours),
			AvgHours:   assemble.Round1(avg),
			Status:     assemble.StageHealth(avg),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].AvgHours != res[j].AvgHours {
			return res[i].AvgHours > res[j].AvgHours
		}
		return res[i].Stage < res[j].Stage
	})
	return res, nil
}
