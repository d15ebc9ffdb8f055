package engine

import (
	"context"

	"devpulse/internal/assemble"
	"devpulse/internal/repo"
	"devpulse/internal/window"
)

// DORAMetrics is the four-indicator delivery summary over the rolling
// 30-day window.
type DORAMetrics struct {
	DeploymentFrequency int     `json:"deployment_frequency"`
	LeadTimeHours       float64 `json:"lead_time_hours"`
	MTTRHours           float64 `json:"mttr_hours"`
	ChangeFailureRate   float64 `json:"change_failure_rate"`
}

func (e Engine) DORAMetrics(ctx context.Context, scope repo.Scope) (DORAMetrics, error) {
	since := window.Cutoff(e.now(), window.RollingDays)

	freq, err := e.Repo.CountDeployments(ctx, scope, since, "success")
	if err != nil {
		return DORAMetrics{}, err
	}

	prSpans, err := e.Repo.ListMergedPRSpans(ctx, scope, since)
	if err != nil {
		return DORAMetrics{}, err
	}
	leadTime := assemble.Mean(spanHours(prSpans))

	incSpans, err := e.Repo.ListResolvedIncidentSpans(ctx, scope, since)
	if err != nil {
		return DORAMetrics{}, err
	}
	mttr := assemble.Mean(spanHours(incSpans))

	total, err := e.Repo.CountDeployments(ctx, scope, since, "")
	if err != nil {
		return DORAMetrics{}, err
	}
	failed, err := e.Repo.CountDeployments(ctx, scope, since, "failure")
	if err != nil {
		return DORAMetrics{}, err
	}

	return DORAMetrics{
		DeploymentFrequency: freq,
		LeadTimeHours:       leadTime,
		MTTRHours:           mttr,
		ChangeFailureRate:   assemble.Rate(failed, total),
	}, nil
}

// spanHours converts timestamp spans to elapsed hours, skipping rows whose
// timestamps don't parse.
func spanHours(spans []repo.Span) []float64 {
	hours := make([]float64, 0, len(spans))
	for _, s := range spans {
		from, ok1 := window.Parse(s.Start)
		to, ok2 := window.Parse(s.End)
		if !ok1 || !ok2 {
			continue
		}
		hours = append(hours, assemble.Hours(from, to))
	}
	return hours
}
