package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"devpulse/internal/domain"
	"devpulse/internal/events"
	"devpulse/internal/repo"
)

// ErrNotOwned reports an attempt to attach work to a resource outside the
// caller's workspace. A missing resource reports the same error, so the
// response never confirms that an id exists in another workspace.
var ErrNotOwned = errors.New("not found or access denied")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowTS() string {
	return e.now().UTC().Format(time.RFC3339)
}

// LoginResult is the outcome of an identity lookup. IsNewUser is true only
// on the request that created the developer row.
type LoginResult struct {
	Developer domain.Developer
	IsNewUser bool
}

// Login resolves a developer by email, registering one on first contact.
// The generated name is the local part of the email address.
func (e Engine) Login(ctx context.Context, email string) (LoginResult, error) {
	if email == "" {
		return LoginResult{}, errors.New("email is required")
	}
	d, err := e.Repo.GetDeveloperByEmail(ctx, email)
	if err == nil {
		return LoginResult{Developer: d}, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return LoginResult{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return LoginResult{}, err
	}
	defer tx.Rollback()

	name := email
	if i := strings.Index(email, "@"); i > 0 {
		name = email[:i]
	}
	d = domain.Developer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      "developer",
		CreatedAt: e.nowTS(),
	}
	if err := e.Repo.InsertDeveloper(ctx, tx, d); err != nil {
		return LoginResult{}, fmt.Errorf("insert developer: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "developer.registered", d.ID, "developer", d.ID,
		events.EventPayload{"email": d.Email}); err != nil {
		return LoginResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Developer: d, IsNewUser: true}, nil
}

// SprintCreateOptions are parameters for creating a sprint.
type SprintCreateOptions struct {
	Name      string
	StartDate string
	EndDate   string
	Goal      string
}

func (e Engine) CreateSprint(ctx context.Context, scope repo.Scope, opts SprintCreateOptions) (domain.Sprint, error) {
	if opts.Name == "" {
		return domain.Sprint{}, errors.New("name is required")
	}
	if opts.StartDate == "" || opts.EndDate == "" {
		return domain.Sprint{}, errors.New("start_date and end_date are required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sprint{}, err
	}
	defer tx.Rollback()

	s := domain.Sprint{
		ID:        uuid.NewString(),
		Name:      opts.Name,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
		Goal:      opts.Goal,
		Status:    "planned",
		OwnerID:   scope.OwnerID(),
		CreatedAt: e.nowTS(),
	}
	if err := e.Repo.InsertSprint(ctx, tx, s); err != nil {
		return domain.Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "sprint.created", s.OwnerID, "sprint", s.ID,
		events.EventPayload{"name": s.Name}); err != nil {
		return domain.Sprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sprint{}, err
	}
	return s, nil
}

// TaskCreateOptions are parameters for creating a task in a sprint.
type TaskCreateOptions struct {
	SprintID   string
	Title      string
	Type       string
	Points     float64
	AssigneeID string
}

// CreateSprintTask adds a task to one of the caller's sprints. A sprint
// that is missing or belongs to another workspace yields ErrNotOwned either
// way.
func (e Engine) CreateSprintTask(ctx context.Context, scope repo.Scope, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.Type == "" {
		opts.Type = "feature"
	}
	if _, err := e.Repo.GetSprint(ctx, scope, opts.SprintID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, ErrNotOwned
		}
		return domain.Task{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t := domain.Task{
		ID:        uuid.NewString(),
		Title:     opts.Title,
		Type:      opts.Type,
		Points:    opts.Points,
		Status:    "todo",
		SprintID:  &opts.SprintID,
		OwnerID:   scope.OwnerID(),
		CreatedAt: e.nowTS(),
	}
	if opts.AssigneeID != "" {
		t.AssigneeID = &opts.AssigneeID
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.OwnerID, "task", t.ID,
		events.EventPayload{"title": t.Title, "sprint_id": opts.SprintID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeploymentOptions are parameters for recording a deployment. Zero values
// take server-side defaults.
type DeploymentOptions struct {
	Environment     string
	Status          string
	DurationSeconds int
	DeployedAt      string
}

func (e Engine) RecordDeployment(ctx context.Context, scope repo.Scope, opts DeploymentOptions) (domain.Deployment, error) {
	if opts.Environment == "" {
		opts.Environment = "production"
	}
	if opts.Status == "" {
		opts.Status = "success"
	}
	if opts.DurationSeconds == 0 {
		opts.DurationSeconds = 300
	}
	if opts.DeployedAt == "" {
		opts.DeployedAt = e.nowTS()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deployment{}, err
	}
	defer tx.Rollback()

	d := domain.Deployment{
		ID:              uuid.NewString(),
		Environment:     opts.Environment,
		Status:          opts.Status,
		DurationSeconds: opts.DurationSeconds,
		DeployedAt:      opts.DeployedAt,
		OwnerID:         scope.OwnerID(),
	}
	if err := e.Repo.InsertDeployment(ctx, tx, d); err != nil {
		return domain.Deployment{}, fmt.Errorf("insert deployment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "deployment.recorded", d.OwnerID, "deployment", d.ID,
		events.EventPayload{"environment": d.Environment, "status": d.Status}); err != nil {
		return domain.Deployment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Deployment{}, err
	}
	return d, nil
}

// IncidentOptions are parameters for reporting an incident. Zero values
// take server-side defaults.
type IncidentOptions struct {
	Description string
	Severity    string
	Status      string
	ResolvedAt  string
}

func (e Engine) RecordIncident(ctx context.Context, scope repo.Scope, opts IncidentOptions) (domain.Incident, error) {
	if opts.Description == "" {
		return domain.Incident{}, errors.New("description is required")
	}
	if opts.Severity == "" {
		opts.Severity = "major"
	}
	if opts.Status == "" {
		opts.Status = "open"
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Incident{}, err
	}
	defer tx.Rollback()

	in := domain.Incident{
		ID:          uuid.NewString(),
		Description: opts.Description,
		Severity:    opts.Severity,
		Status:      opts.Status,
		CreatedAt:   e.nowTS(),
		OwnerID:     scope.OwnerID(),
	}
	if opts.ResolvedAt != "" {
		in.ResolvedAt = &opts.ResolvedAt
		in.Status = "resolved"
	}
	if err := e.Repo.InsertIncident(ctx, tx, in); err != nil {
		return domain.Incident{}, fmt.Errorf("insert incident: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "incident.reported", in.OwnerID, "incident", in.ID,
		events.EventPayload{"severity": in.Severity}); err != nil {
		return domain.Incident{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Incident{}, err
	}
	return in, nil
}

// DebtOptions are parameters for logging a technical debt item.
type DebtOptions struct {
	Title                string
	Description          string
	Priority             string
	RelatedRepo          string
	EstimatedEffortHours float64
}

func (e Engine) CreateDebt(ctx context.Context, scope repo.Scope, opts DebtOptions) (domain.DebtItem, error) {
	if opts.Title == "" {
		return domain.DebtItem{}, errors.New("title is required")
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DebtItem{}, err
	}
	defer tx.Rollback()

	d := domain.DebtItem{
		ID:                   uuid.NewString(),
		Title:                opts.Title,
		Description:          opts.Description,
		Priority:             opts.Priority,
		RelatedRepo:          opts.RelatedRepo,
		EstimatedEffortHours: opts.EstimatedEffortHours,
		Status:               "identified",
		CreatedAt:            e.nowTS(),
		OwnerID:              scope.OwnerID(),
	}
	if err := e.Repo.InsertDebt(ctx, tx, d); err != nil {
		return domain.DebtItem{}, fmt.Errorf("insert debt item: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "debt.created", d.OwnerID, "debt", d.ID,
		events.EventPayload{"title": d.Title, "priority": d.Priority}); err != nil {
		return domain.DebtItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DebtItem{}, err
	}
	return d, nil
}

// ResolveDebt marks one of the caller's debt items fixed. A missing item
// and a foreign owner's item both report repo.ErrNotFound.
func (e Engine) ResolveDebt(ctx context.Context, scope repo.Scope, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.ResolveDebt(ctx, tx, scope, id, e.nowTS()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "debt.resolved", scope.OwnerID(), "debt", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// PROptions are parameters for recording a pull request.
type PROptions struct {
	Title     string
	AuthorID  string
	Status    string
	CreatedAt string
	MergedAt  string
	ClosedAt  string
}

func (e Engine) RecordPullRequest(ctx context.Context, scope repo.Scope, opts PROptions) (domain.PullRequest, error) {
	if opts.Title == "" {
		return domain.PullRequest{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = "open"
	}
	if opts.CreatedAt == "" {
		opts.CreatedAt = e.nowTS()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PullRequest{}, err
	}
	defer tx.Rollback()

	pr := domain.PullRequest{
		ID:        uuid.NewString(),
		Title:     opts.Title,
		Status:    opts.Status,
		CreatedAt: opts.CreatedAt,
		OwnerID:   scope.OwnerID(),
	}
	if opts.AuthorID != "" {
		pr.AuthorID = &opts.AuthorID
	}
	if opts.MergedAt != "" {
		pr.MergedAt = &opts.MergedAt
	}
	if opts.ClosedAt != "" {
		pr.ClosedAt = &opts.ClosedAt
	}
	if err := e.Repo.InsertPullRequest(ctx, tx, pr); err != nil {
		return domain.PullRequest{}, fmt.Errorf("insert pull request: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "pr.recorded", pr.OwnerID, "pull_request", pr.ID,
		events.EventPayload{"title": pr.Title, "status": pr.Status}); err != nil {
		return domain.PullRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PullRequest{}, err
	}
	return pr, nil
}

func (e Engine) RecordPRReview(ctx context.Context, scope repo.Scope, prID, reviewerID, reviewedAt string) (domain.PRReview, error) {
	if prID == "" || reviewerID == "" {
		return domain.PRReview{}, errors.New("pr_id and reviewer_id are required")
	}
	if reviewedAt == "" {
		reviewedAt = e.nowTS()
	}
	// The parent PR must be in the caller's workspace.
	var exists int
	if err := e.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pull_requests WHERE id=? AND owner_id=?`,
		prID, scope.OwnerID()).Scan(&exists); err != nil {
		return domain.PRReview{}, err
	}
	if exists == 0 {
		return domain.PRReview{}, repo.ErrNotFound
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PRReview{}, err
	}
	defer tx.Rollback()

	rv := domain.PRReview{
		ID:         uuid.NewString(),
		PRID:       prID,
		ReviewerID: reviewerID,
		ReviewedAt: reviewedAt,
	}
	if err := e.Repo.InsertPRReview(ctx, tx, rv); err != nil {
		return domain.PRReview{}, fmt.Errorf("insert review: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "pr.reviewed", scope.OwnerID(), "pr_review", rv.ID,
		events.EventPayload{"pr_id": prID}); err != nil {
		return domain.PRReview{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PRReview{}, err
	}
	return rv, nil
}

// RecordStageEvent appends a workflow stage interval. Stage events feed the
// cross-workspace bottleneck statistic and need no scope.
func (e Engine) RecordStageEvent(ctx context.Context, stageName, enteredAt, exitedAt string) error {
	if stageName == "" {
		return errors.New("stage_name is required")
	}
	if enteredAt == "" {
		enteredAt = e.nowTS()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	se := domain.StageEvent{StageName: stageName, EnteredAt: enteredAt}
	if exitedAt != "" {
		se.ExitedAt = &exitedAt
	}
	if err := e.Repo.InsertStageEvent(ctx, tx, se); err != nil {
		return fmt.Errorf("insert stage event: %w", err)
	}
	return tx.Commit()
}
