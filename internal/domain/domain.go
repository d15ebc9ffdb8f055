package domain

type Developer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Sprint struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date" format:"date"`
	EndDate   string `json:"end_date" format:"date"`
	Goal      string `json:"goal,omitempty"`
	Status    string `json:"status" enum:"planned,active,completed"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Task lifecycle timestamps satisfy, when set,
// created_at <= started_at <= completed_at <= deployed_at.
type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	Points      float64 `json:"points"`
	Status      string  `json:"status"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	SprintID    *string `json:"sprint_id,omitempty"`
	OwnerID     string  `json:"owner_id"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	StartedAt   *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	DeployedAt  *string `json:"deployed_at,omitempty" format:"date-time"`
}

type Deployment struct {
	ID              string `json:"id"`
	Environment     string `json:"environment"`
	Status          string `json:"status" enum:"success,failure"`
	DurationSeconds int    `json:"duration_seconds"`
	DeployedAt      string `json:"deployed_at" format:"date-time"`
	OwnerID         string `json:"owner_id"`
}

type Incident struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Status      string  `json:"status" enum:"open,resolved"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	ResolvedAt  *string `json:"resolved_at,omitempty" format:"date-time"`
	OwnerID     string  `json:"owner_id"`
}

type PullRequest struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	AuthorID  *string `json:"author_id,omitempty"`
	Status    string  `json:"status" enum:"open,merged,closed"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	MergedAt  *string `json:"merged_at,omitempty" format:"date-time"`
	ClosedAt  *string `json:"closed_at,omitempty" format:"date-time"`
	OwnerID   string  `json:"owner_id"`
}

type PRReview struct {
	ID         string `json:"id"`
	PRID       string `json:"pr_id"`
	ReviewerID string `json:"reviewer_id"`
	ReviewedAt string `json:"reviewed_at" format:"date-time"`
}

// StageEvent records work passing through a named workflow stage. ExitedAt
// nil means the work is still in the stage. Stage events carry no owner:
// the bottleneck statistic is computed across all workspaces.
type StageEvent struct {
	ID        int64   `json:"id"`
	StageName string  `json:"stage_name"`
	EnteredAt string  `json:"entered_at" format:"date-time"`
	ExitedAt  *string `json:"exited_at,omitempty" format:"date-time"`
}

type DebtItem struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Description          string  `json:"description,omitempty"`
	Priority             string  `json:"priority"`
	RelatedRepo          string  `json:"related_repo,omitempty"`
	EstimatedEffortHours float64 `json:"estimated_effort_hours"`
	Status               string  `json:"status" enum:"identified,fixed"`
	FixedAt              *string `json:"fixed_at,omitempty" format:"date-time"`
	CreatedAt            string  `json:"created_at" format:"date-time"`
	OwnerID              string  `json:"owner_id"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OwnerID    string `json:"owner_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
