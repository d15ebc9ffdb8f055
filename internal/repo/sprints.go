package repo

import (
	"context"
	"database/sql"

	"devpulse/internal/domain"
)

func scanSprint(scan func(...any) error) (domain.Sprint, error) {
	var s domain.Sprint
	var goal sql.NullString
	err := scan(&s.ID, &s.Name, &s.StartDate, &s.EndDate, &goal, &s.Status, &s.OwnerID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if goal.Valid {
		s.Goal = goal.String
	}
	return s, err
}

const sprintCols = `id,name,start_date,end_date,goal,status,owner_id,created_at`

func (r Repo) InsertSprint(ctx context.Context, tx *sql.Tx, s domain.Sprint) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sprints(`+sprintCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.Name, s.StartDate, s.EndDate, nullable(s.Goal), s.Status, s.OwnerID, s.CreatedAt)
	return err
}

// ListSprints returns the owner's sprints, newest start date first.
func (r Repo) ListSprints(ctx context.Context, scope Scope) ([]domain.Sprint, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+sprintCols+` FROM sprints WHERE owner_id=? ORDER BY start_date DESC`, scope.OwnerID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Sprint
	for rows.Next() {
		s, err := scanSprint(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// GetSprint fetches one sprint; a sprint belonging to a different owner is
// indistinguishable from a missing one.
func (r Repo) GetSprint(ctx context.Context, scope Scope, id string) (domain.Sprint, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+sprintCols+` FROM sprints WHERE id=? AND owner_id=?`, id, scope.OwnerID())
	return scanSprint(row.Scan)
}

// ActiveSprint returns the owner's active sprint, ErrNotFound if none.
func (r Repo) ActiveSprint(ctx context.Context, scope Scope) (domain.Sprint, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+sprintCols+` FROM sprints WHERE status='active' AND owner_id=? LIMIT 1`, scope.OwnerID())
	return scanSprint(row.Scan)
}

const taskCols = `id,title,type,points,status,assignee_id,sprint_id,owner_id,created_at,started_at,completed_at,deployed_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var assignee, sprint, started, completed, deployed sql.NullString
	err := scan(&t.ID, &t.Title, &t.Type, &t.Points, &t.Status, &assignee, &sprint, &t.OwnerID,
		&t.CreatedAt, &started, &completed, &deployed)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	if sprint.Valid {
		t.SprintID = &sprint.String
	}
	if started.Valid {
		t.StartedAt = &started.String
	}
	if completed.Valid {
		t.CompletedAt = &completed.String
	}
	if deployed.Valid {
		t.DeployedAt = &deployed.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Type, t.Points, t.Status, nullableStringPtr(t.AssigneeID), nullableStringPtr(t.SprintID),
		t.OwnerID, t.CreatedAt, nullableStringPtr(t.StartedAt), nullableStringPtr(t.CompletedAt), nullableStringPtr(t.DeployedAt))
	return err
}

// ListSprintTasks returns the owner's tasks in a sprint.
func (r Repo) ListSprintTasks(ctx context.Context, scope Scope, sprintID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE sprint_id=? AND owner_id=? ORDER BY created_at ASC`,
		sprintID, scope.OwnerID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// FlowRow is one task in a lead-time or cycle-time listing: the interval
// endpoints plus display fields, joined with the assignee's name.
type FlowRow struct {
	ID       string
	Title    string
	Assignee *string
	StartTS  string
	EndTS    string
}

func (r Repo) listFlowRows(ctx context.Context, query string, args []any) ([]FlowRow, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []FlowRow
	for rows.Next() {
		var fr FlowRow
		var assignee sql.NullString
		if err := rows.Scan(&fr.ID, &fr.Title, &assignee, &fr.StartTS, &fr.EndTS); err != nil {
			return nil, err
		}
		if assignee.Valid {
			fr.Assignee = &assignee.String
		}
		res = append(res, fr)
	}
	return res, rows.Err()
}

// ListDeployedTasks returns deployed tasks newest deploy first, capped to
// limit, optionally restricted to a sprint. StartTS/EndTS are
// created_at/deployed_at.
func (r Repo) ListDeployedTasks(ctx context.Context, scope Scope, sprintID string, limit int) ([]FlowRow, error) {
	query := `SELECT t.id, t.title, d.name, t.created_at, t.deployed_at
FROM tasks t LEFT JOIN developers d ON t.assignee_id = d.id
WHERE t.deployed_at IS NOT NULL AND t.owner_id=?`
	args := []any{scope.OwnerID()}
	if sprintID != "" {
		query += ` AND t.sprint_id=?`
		args = append(args, sprintID)
	}
	query += ` ORDER BY t.deployed_at DESC LIMIT ?`
	args = append(args, limit)
	return r.listFlowRows(ctx, query, args)
}

// ListCompletedTasks returns started-and-completed tasks newest completion
// first, capped to limit. StartTS/EndTS are started_at/completed_at.
func (r Repo) ListCompletedTasks(ctx context.Context, scope Scope, sprintID string, limit int) ([]FlowRow, error) {
	query := `SELECT t.id, t.title, d.name, t.started_at, t.completed_at
FROM tasks t LEFT JOIN developers d ON t.assignee_id = d.id
WHERE t.started_at IS NOT NULL AND t.completed_at IS NOT NULL AND t.owner_id=?`
	args := []any{scope.OwnerID()}
	if sprintID != "" {
		query += ` AND t.sprint_id=?`
		args = append(args, sprintID)
	}
	query += ` ORDER BY t.completed_at DESC LIMIT ?`
	args = append(args, limit)
	return r.listFlowRows(ctx, query, args)
}

// ThroughputRow is one sprint's completed-work rollup.
type ThroughputRow struct {
	Sprint      string
	TaskCount   int
	TotalPoints float64
}

// Throughput groups finished tasks by sprint, sprintless tasks under
// "No Sprint", newest sprint end date first (NULL end dates sort last under
// DESC in SQLite, matching the source bucket's placement), capped to limit.
func (r Repo) Throughput(ctx context.Context, scope Scope, limit int) ([]ThroughputRow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT COALESCE(s.name, 'No Sprint'), COUNT(t.id), COALESCE(SUM(t.points), 0)
FROM tasks t LEFT JOIN sprints s ON t.sprint_id = s.id
WHERE (t.status = 'done' OR t.completed_at IS NOT NULL) AND t.owner_id=?
GROUP BY s.id, s.name
ORDER BY s.end_date DESC
LIMIT ?`, scope.OwnerID(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ThroughputRow
	for rows.Next() {
		var tr ThroughputRow
		if err := rows.Scan(&tr.Sprint, &tr.TaskCount, &tr.TotalPoints); err != nil {
			return nil, err
		}
		res = append(res, tr)
	}
	return res, rows.Err()
}

// WIPRow is one in-progress status group.
type WIPRow struct {
	Status     string
	Count      int
	Developers string
}

// WIPByStatus groups the owner's active tasks (neither todo, done, nor
// deployed) by status with the concatenated assignee names per group.
func (r Repo) WIPByStatus(ctx context.Context, scope Scope) ([]WIPRow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT t.status, COUNT(t.id), COALESCE(GROUP_CONCAT(d.name), '')
FROM tasks t LEFT JOIN developers d ON t.assignee_id = d.id
WHERE t.status NOT IN ('todo', 'done', 'deployed') AND t.owner_id=?
GROUP BY t.status`, scope.OwnerID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []WIPRow
	for rows.Next() {
		var wr WIPRow
		if err := rows.Scan(&wr.Status, &wr.Count, &wr.Developers); err != nil {
			return nil, err
		}
		res = append(res, wr)
	}
	return res, rows.Err()
}
