package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"devpulse/internal/db"
	"devpulse/internal/domain"
	"devpulse/internal/engine"
	"devpulse/internal/migrate"
	"devpulse/internal/repo"
)

var testNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn)
	eng.Now = func() time.Time { return testNow }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func mustScope(t *testing.T, owner string) repo.Scope {
	t.Helper()
	scope, err := repo.NewScope(owner)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	return scope
}

func ts(offset time.Duration) string {
	return testNow.Add(offset).UTC().Format(time.RFC3339)
}

func insertTask(t *testing.T, env testEnv, task domain.Task) {
	t.Helper()
	tx, err := env.Engine.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := env.Engine.Repo.InsertTask(env.Ctx, tx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func insertSprint(t *testing.T, env testEnv, sprint domain.Sprint) {
	t.Helper()
	tx, err := env.Engine.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := env.Engine.Repo.InsertSprint(env.Ctx, tx, sprint); err != nil {
		t.Fatalf("insert sprint: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestLoginAutoRegisters(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Engine.Login(env.Ctx, "chris@x.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !first.IsNewUser {
		t.Fatalf("expected new user on first login")
	}
	if first.Developer.Name != "chris" || first.Developer.Role != "developer" {
		t.Fatalf("unexpected developer: %+v", first.Developer)
	}

	second, err := env.Engine.Login(env.Ctx, "chris@x.com")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.IsNewUser {
		t.Fatalf("second login must not report a new user")
	}
	if second.Developer.ID != first.Developer.ID {
		t.Fatalf("expected same developer, got %s and %s", first.Developer.ID, second.Developer.ID)
	}
}

func TestDORAScenario(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	for _, status := range []string{"success", "success", "failure"} {
		if _, err := env.Engine.RecordDeployment(env.Ctx, scope, engine.DeploymentOptions{Status: status}); err != nil {
			t.Fatalf("record deployment: %v", err)
		}
	}
	// Two merged PRs closed 48h and 24h after creation.
	for _, age := range []time.Duration{48 * time.Hour, 24 * time.Hour} {
		_, err := env.Engine.RecordPullRequest(env.Ctx, scope, engine.PROptions{
			Title:     "change",
			Status:    "merged",
			CreatedAt: ts(-age),
			MergedAt:  ts(0),
			ClosedAt:  ts(0),
		})
		if err != nil {
			t.Fatalf("record pr: %v", err)
		}
	}
	// One incident resolved four hours after it opened.
	if _, err := env.Engine.RecordIncident(env.Ctx, scope, engine.IncidentOptions{
		Description: "db down",
		ResolvedAt:  ts(4 * time.Hour),
	}); err != nil {
		t.Fatalf("record incident: %v", err)
	}

	m, err := env.Engine.DORAMetrics(env.Ctx, scope)
	if err != nil {
		t.Fatalf("dora metrics: %v", err)
	}
	if m.DeploymentFrequency != 2 {
		t.Fatalf("deployment frequency = %d, want 2", m.DeploymentFrequency)
	}
	if m.ChangeFailureRate < 33.2 || m.ChangeFailureRate > 33.4 {
		t.Fatalf("change failure rate = %v, want ~33.3", m.ChangeFailureRate)
	}
	if m.LeadTimeHours != 36 {
		t.Fatalf("lead time = %v, want 36", m.LeadTimeHours)
	}
	if m.MTTRHours != 4 {
		t.Fatalf("mttr = %v, want 4", m.MTTRHours)
	}
}

func TestDORAEmptyDefaultsToZero(t *testing.T) {
	env := newTestEnv(t)
	m, err := env.Engine.DORAMetrics(env.Ctx, mustScope(t, "owner-a"))
	if err != nil {
		t.Fatalf("dora metrics: %v", err)
	}
	if m.DeploymentFrequency != 0 || m.LeadTimeHours != 0 || m.MTTRHours != 0 || m.ChangeFailureRate != 0 {
		t.Fatalf("expected all-zero metrics, got %+v", m)
	}
}

func TestOwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	scopeA := mustScope(t, "owner-a")
	scopeB := mustScope(t, "owner-b")

	if _, err := env.Engine.RecordDeployment(env.Ctx, scopeA, engine.DeploymentOptions{}); err != nil {
		t.Fatalf("record deployment: %v", err)
	}
	item, err := env.Engine.CreateDebt(env.Ctx, scopeA, engine.DebtOptions{Title: "legacy auth"})
	if err != nil {
		t.Fatalf("create debt: %v", err)
	}

	m, err := env.Engine.DORAMetrics(env.Ctx, scopeB)
	if err != nil {
		t.Fatalf("dora metrics as B: %v", err)
	}
	if m.DeploymentFrequency != 0 {
		t.Fatalf("owner B sees owner A's deployments: %+v", m)
	}

	items, err := env.Engine.Repo.ListDebt(env.Ctx, scopeB)
	if err != nil {
		t.Fatalf("list debt as B: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("owner B sees owner A's debt: %+v", items)
	}

	// Cross-owner resolve is indistinguishable from a missing item.
	if err := env.Engine.ResolveDebt(env.Ctx, scopeB, item.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-owner resolve: got %v, want ErrNotFound", err)
	}
	if err := env.Engine.ResolveDebt(env.Ctx, scopeA, item.ID); err != nil {
		t.Fatalf("own resolve: %v", err)
	}
	items, err = env.Engine.Repo.ListDebt(env.Ctx, scopeA)
	if err != nil {
		t.Fatalf("list debt: %v", err)
	}
	if items[0].Status != "fixed" || items[0].FixedAt == nil {
		t.Fatalf("expected fixed item, got %+v", items[0])
	}
}

func TestLeadTimeAverageAndOrder(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	deployedLate := ts(-24 * time.Hour)
	deployedEarly := ts(-48 * time.Hour)
	insertTask(t, env, domain.Task{
		ID: "t-slow", Title: "slow", Type: "feature", Status: "deployed",
		OwnerID: "owner-a", CreatedAt: ts(-72 * time.Hour), DeployedAt: &deployedLate,
	})
	insertTask(t, env, domain.Task{
		ID: "t-fast", Title: "fast", Type: "feature", Status: "deployed",
		OwnerID: "owner-a", CreatedAt: ts(-72 * time.Hour), DeployedAt: &deployedEarly,
	})

	ft, err := env.Engine.LeadTime(env.Ctx, scope, "")
	if err != nil {
		t.Fatalf("lead time: %v", err)
	}
	if ft.AverageHours != 36 {
		t.Fatalf("average = %v, want 36", ft.AverageHours)
	}
	if len(ft.Data) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(ft.Data))
	}
	// Chronological by deploy time: the earlier deployment first.
	if ft.Data[0].ID != "t-fast" || ft.Data[1].ID != "t-slow" {
		t.Fatalf("unexpected order: %s, %s", ft.Data[0].ID, ft.Data[1].ID)
	}
	if ft.Data[0].Hours != 24 || ft.Data[1].Hours != 48 {
		t.Fatalf("unexpected hours: %v, %v", ft.Data[0].Hours, ft.Data[1].Hours)
	}
}

func TestFlowTimesSprintFilter(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	insertSprint(t, env, domain.Sprint{
		ID: "s1", Name: "Sprint 1", StartDate: "2024-01-15", EndDate: "2024-01-28",
		Status: "completed", OwnerID: "owner-a", CreatedAt: ts(-20 * 24 * time.Hour),
	})
	sprintID := "s1"
	deployed := ts(0)
	started := ts(-10 * time.Hour)
	completed := ts(0)
	insertTask(t, env, domain.Task{
		ID: "t-in", Title: "in sprint", Type: "feature", Status: "deployed",
		SprintID: &sprintID, OwnerID: "owner-a",
		CreatedAt: ts(-24 * time.Hour), StartedAt: &started, CompletedAt: &completed, DeployedAt: &deployed,
	})
	insertTask(t, env, domain.Task{
		ID: "t-out", Title: "no sprint", Type: "feature", Status: "deployed",
		OwnerID:   "owner-a",
		CreatedAt: ts(-48 * time.Hour), StartedAt: &started, CompletedAt: &completed, DeployedAt: &deployed,
	})

	all, err := env.Engine.LeadTime(env.Ctx, scope, "")
	if err != nil {
		t.Fatalf("lead time: %v", err)
	}
	if len(all.Data) != 2 || all.AverageHours != 36 {
		t.Fatalf("unfiltered = %+v, want 2 rows averaging 36", all)
	}

	filtered, err := env.Engine.LeadTime(env.Ctx, scope, "s1")
	if err != nil {
		t.Fatalf("filtered lead time: %v", err)
	}
	if len(filtered.Data) != 1 || filtered.Data[0].ID != "t-in" || filtered.AverageHours != 24 {
		t.Fatalf("filtered = %+v, want only t-in at 24h", filtered)
	}

	cycle, err := env.Engine.CycleTime(env.Ctx, scope, "s1")
	if err != nil {
		t.Fatalf("filtered cycle time: %v", err)
	}
	if len(cycle.Data) != 1 || cycle.Data[0].ID != "t-in" || cycle.AverageHours != 10 {
		t.Fatalf("filtered cycle = %+v, want only t-in at 10h", cycle)
	}
}

func TestCycleTime(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	started := ts(-10 * time.Hour)
	completed := ts(0)
	insertTask(t, env, domain.Task{
		ID: "t1", Title: "work", Type: "feature", Status: "done",
		OwnerID: "owner-a", CreatedAt: ts(-20 * time.Hour),
		StartedAt: &started, CompletedAt: &completed,
	})
	// Missing started_at keeps the row out of cycle time.
	insertTask(t, env, domain.Task{
		ID: "t2", Title: "untracked", Type: "feature", Status: "done",
		OwnerID: "owner-a", CreatedAt: ts(-20 * time.Hour), CompletedAt: &completed,
	})

	ft, err := env.Engine.CycleTime(env.Ctx, scope, "")
	if err != nil {
		t.Fatalf("cycle time: %v", err)
	}
	if len(ft.Data) != 1 || ft.AverageHours != 10 {
		t.Fatalf("got %+v, want one 10h row", ft)
	}
}

func TestThroughputGroupsNoSprint(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	insertSprint(t, env, domain.Sprint{
		ID: "s1", Name: "Sprint 1", StartDate: "2024-01-01", EndDate: "2024-01-14",
		Status: "completed", OwnerID: "owner-a", CreatedAt: ts(-30 * 24 * time.Hour),
	})
	sprintID := "s1"
	done := ts(-2 * time.Hour)
	insertTask(t, env, domain.Task{
		ID: "t1", Title: "a", Type: "feature", Points: 3, Status: "done",
		SprintID: &sprintID, OwnerID: "owner-a", CreatedAt: ts(-72 * time.Hour), CompletedAt: &done,
	})
	insertTask(t, env, domain.Task{
		ID: "t2", Title: "b", Type: "feature", Points: 5, Status: "done",
		SprintID: &sprintID, OwnerID: "owner-a", CreatedAt: ts(-72 * time.Hour), CompletedAt: &done,
	})
	insertTask(t, env, domain.Task{
		ID: "t3", Title: "c", Type: "chore", Points: 1, Status: "done",
		OwnerID: "owner-a", CreatedAt: ts(-72 * time.Hour), CompletedAt: &done,
	})

	entries, err := env.Engine.Throughput(env.Ctx, scope)
	if err != nil {
		t.Fatalf("throughput: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 groups, got %+v", entries)
	}
	if entries[0].Sprint != "Sprint 1" || entries[0].TaskCount != 2 || entries[0].TotalPoints != 8 {
		t.Fatalf("unexpected sprint group: %+v", entries[0])
	}
	if entries[1].Sprint != "No Sprint" || entries[1].TaskCount != 1 {
		t.Fatalf("unexpected sprintless group: %+v", entries[1])
	}
}

func TestWIPExcludesTerminalStatuses(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	for i, status := range []string{"in-progress", "in-progress", "review", "todo", "done", "deployed"} {
		insertTask(t, env, domain.Task{
			ID: fmt.Sprintf("t%d", i), Title: "w", Type: "feature", Status: status,
			OwnerID: "owner-a", CreatedAt: ts(-time.Hour),
		})
	}

	sum, err := env.Engine.WIP(env.Ctx, scope)
	if err != nil {
		t.Fatalf("wip: %v", err)
	}
	if sum.Total != 3 {
		t.Fatalf("total = %d, want 3", sum.Total)
	}
	counts := map[string]int{}
	for _, b := range sum.Breakdown {
		counts[b.Status] = b.Count
	}
	if counts["in-progress"] != 2 || counts["review"] != 1 {
		t.Fatalf("unexpected breakdown: %+v", sum.Breakdown)
	}
}

func TestBottlenecksClassifyAndSort(t *testing.T) {
	env := newTestEnv(t)

	record := func(stage string, hours time.Duration, open bool) {
		exited := ts(0)
		if open {
			exited = ""
		}
		if err := env.Engine.RecordStageEvent(env.Ctx, stage, ts(-hours), exited); err != nil {
			t.Fatalf("record stage event: %v", err)
		}
	}
	record("code-review", 25*time.Hour, false)
	record("qa", 10*time.Hour, false)
	record("dev", 5*time.Hour, false)
	// Still in stage: dwell counts up to now.
	record("dev", 5*time.Hour, true)

	reports, err := env.Engine.Bottlenecks(env.Ctx)
	if err != nil {
		t.Fatalf("bottlenecks: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 stages, got %+v", reports)
	}
	want := []struct {
		stage  string
		avg    float64
		count  int
		status string
	}{
		{"code-review", 25, 1, "Critical"},
		{"qa", 10, 1, "Warning"},
		{"dev", 5, 2, "Healthy"},
	}
	for i, w := range want {
		got := reports[i]
		if got.Stage != w.stage || got.AvgHours != w.avg || got.EventCount != w.count || got.Status != w.status {
			t.Fatalf("report[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestReviewTimeMeanOfDailyMeans(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	record := func(created time.Duration, mergeAfter time.Duration) {
		_, err := env.Engine.RecordPullRequest(env.Ctx, scope, engine.PROptions{
			Title:     "pr",
			Status:    "merged",
			CreatedAt: ts(created),
			MergedAt:  ts(created + mergeAfter),
		})
		if err != nil {
			t.Fatalf("record pr: %v", err)
		}
	}
	// Two PRs on one date averaging 3h, one PR the next date at 9h.
	record(-72*time.Hour, 2*time.Hour)
	record(-72*time.Hour, 4*time.Hour)
	record(-48*time.Hour, 9*time.Hour)

	rt, err := env.Engine.ReviewTime(env.Ctx, scope)
	if err != nil {
		t.Fatalf("review time: %v", err)
	}
	// Mean of the daily means, not a row-weighted mean (which would be 5).
	if rt.AverageHours != 6 {
		t.Fatalf("average = %v, want 6", rt.AverageHours)
	}
	if len(rt.Trend) != 2 {
		t.Fatalf("expected 2 trend points, got %+v", rt.Trend)
	}
	if rt.Trend[0].AvgHours != 3 || rt.Trend[1].AvgHours != 9 {
		t.Fatalf("unexpected trend: %+v", rt.Trend)
	}
	if rt.Trend[0].Date >= rt.Trend[1].Date {
		t.Fatalf("trend not chronological: %+v", rt.Trend)
	}
}

func TestPRVolumeChronological(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	for _, created := range []time.Duration{0, 0, -7 * 24 * time.Hour, -14 * 24 * time.Hour} {
		_, err := env.Engine.RecordPullRequest(env.Ctx, scope, engine.PROptions{
			Title: "pr", CreatedAt: ts(created),
		})
		if err != nil {
			t.Fatalf("record pr: %v", err)
		}
	}

	entries, err := env.Engine.PRVolume(env.Ctx, scope)
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 weeks, got %+v", entries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Week >= entries[i].Week {
			t.Fatalf("weeks not ascending: %+v", entries)
		}
	}
	if entries[2].Count != 2 {
		t.Fatalf("newest week count = %d, want 2", entries[2].Count)
	}
}

func TestAgingPRs(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	for title, age := range map[string]time.Duration{
		"five days old":  5 * 24 * time.Hour,
		"three days old": 3 * 24 * time.Hour,
		"fresh":          24 * time.Hour,
	} {
		_, err := env.Engine.RecordPullRequest(env.Ctx, scope, engine.PROptions{
			Title: title, CreatedAt: ts(-age),
		})
		if err != nil {
			t.Fatalf("record pr: %v", err)
		}
	}

	prs, err := env.Engine.AgingPRs(env.Ctx, scope)
	if err != nil {
		t.Fatalf("aging: %v", err)
	}
	if len(prs) != 2 {
		t.Fatalf("expected 2 aging PRs, got %+v", prs)
	}
	if prs[0].AgeDays != 5 || prs[1].AgeDays != 3 {
		t.Fatalf("unexpected ages: %+v", prs)
	}
}

func TestMergeRate(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	mr, err := env.Engine.MergeRate(env.Ctx, scope)
	if err != nil {
		t.Fatalf("merge rate: %v", err)
	}
	if mr.Rate != 0 || mr.Total != 0 {
		t.Fatalf("empty merge rate = %+v, want zeros", mr)
	}

	if _, err := env.Engine.RecordPullRequest(env.Ctx, scope, engine.PROptions{Title: "a", Status: "merged", MergedAt: ts(0)}); err != nil {
		t.Fatalf("record pr: %v", err)
	}
	if _, err := env.Engine.RecordPullRequest(env.Ctx, scope, engine.PROptions{Title: "b"}); err != nil {
		t.Fatalf("record pr: %v", err)
	}

	mr, err = env.Engine.MergeRate(env.Ctx, scope)
	if err != nil {
		t.Fatalf("merge rate: %v", err)
	}
	if mr.Rate != 50 || mr.Total != 2 || mr.Merged != 1 {
		t.Fatalf("merge rate = %+v, want 50%% of 2", mr)
	}
}

func TestReviewLoad(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	alice, err := env.Engine.Login(env.Ctx, "alice@x.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	bob, err := env.Engine.Login(env.Ctx, "bob@x.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	pr, err := env.Engine.RecordPullRequest(env.Ctx, scope, engine.PROptions{Title: "pr"})
	if err != nil {
		t.Fatalf("record pr: %v", err)
	}
	for _, reviewer := range []string{alice.Developer.ID, alice.Developer.ID, bob.Developer.ID} {
		if _, err := env.Engine.RecordPRReview(env.Ctx, scope, pr.ID, reviewer, ""); err != nil {
			t.Fatalf("record review: %v", err)
		}
	}

	load, err := env.Engine.ReviewLoad(env.Ctx, scope)
	if err != nil {
		t.Fatalf("review load: %v", err)
	}
	if len(load) != 2 {
		t.Fatalf("expected 2 reviewers, got %+v", load)
	}
	if load[0].Name != "alice" || load[0].ReviewCount != 2 {
		t.Fatalf("busiest reviewer = %+v, want alice with 2", load[0])
	}

	// A review on a foreign owner's PR is invisible and rejected.
	scopeB := mustScope(t, "owner-b")
	if _, err := env.Engine.RecordPRReview(env.Ctx, scopeB, pr.ID, bob.Developer.ID, ""); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-owner review: got %v, want ErrNotFound", err)
	}
}

func TestCreateSprintTaskOwnership(t *testing.T) {
	env := newTestEnv(t)
	scopeA := mustScope(t, "owner-a")
	scopeB := mustScope(t, "owner-b")

	sprint, err := env.Engine.CreateSprint(env.Ctx, scopeA, engine.SprintCreateOptions{
		Name: "Sprint 1", StartDate: "2024-02-01", EndDate: "2024-02-14",
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}

	task, err := env.Engine.CreateSprintTask(env.Ctx, scopeA, engine.TaskCreateOptions{
		SprintID: sprint.ID, Title: "build it", Points: 3,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "todo" {
		t.Fatalf("new task status = %s, want todo", task.Status)
	}

	// A foreign sprint and a missing one produce the same error, so the
	// response never reveals whether the id exists elsewhere.
	foreignErr := func() error {
		_, err := env.Engine.CreateSprintTask(env.Ctx, scopeB, engine.TaskCreateOptions{
			SprintID: sprint.ID, Title: "steal it",
		})
		return err
	}()
	if !errors.Is(foreignErr, engine.ErrNotOwned) {
		t.Fatalf("foreign sprint: got %v, want ErrNotOwned", foreignErr)
	}

	missingErr := func() error {
		_, err := env.Engine.CreateSprintTask(env.Ctx, scopeB, engine.TaskCreateOptions{
			SprintID: "missing", Title: "nowhere",
		})
		return err
	}()
	if !errors.Is(missingErr, engine.ErrNotOwned) {
		t.Fatalf("missing sprint: got %v, want ErrNotOwned", missingErr)
	}
	if foreignErr.Error() != missingErr.Error() {
		t.Fatalf("foreign and missing sprints are distinguishable: %q vs %q", foreignErr, missingErr)
	}
}

func TestActiveSprint(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	if _, err := env.Engine.Repo.ActiveSprint(env.Ctx, scope); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no active sprint")
	}

	insertSprint(t, env, domain.Sprint{
		ID: "s1", Name: "Live", StartDate: "2024-01-29", EndDate: "2024-02-11",
		Status: "active", OwnerID: "owner-a", CreatedAt: ts(0),
	})
	sprint, err := env.Engine.Repo.ActiveSprint(env.Ctx, scope)
	if err != nil {
		t.Fatalf("active sprint: %v", err)
	}
	if sprint.ID != "s1" {
		t.Fatalf("unexpected sprint: %+v", sprint)
	}
}

func TestDeploymentDefaults(t *testing.T) {
	env := newTestEnv(t)
	scope := mustScope(t, "owner-a")

	d, err := env.Engine.RecordDeployment(env.Ctx, scope, engine.DeploymentOptions{})
	if err != nil {
		t.Fatalf("record deployment: %v", err)
	}
	if d.Environment != "production" || d.Status != "success" || d.DurationSeconds != 300 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if d.DeployedAt != ts(0) {
		t.Fatalf("deployed_at = %s, want injected now", d.DeployedAt)
	}

	in, err := env.Engine.RecordIncident(env.Ctx, scope, engine.IncidentOptions{Description: "x"})
	if err != nil {
		t.Fatalf("record incident: %v", err)
	}
	if in.Severity != "major" || in.Status != "open" || in.ResolvedAt != nil {
		t.Fatalf("unexpected defaults: %+v", in)
	}
}
