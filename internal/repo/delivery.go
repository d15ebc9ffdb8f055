package repo

import (
	"context"
	"database/sql"

	"devpulse/internal/domain"
)

func (r Repo) InsertDeployment(ctx context.Context, tx *sql.Tx, d domain.Deployment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO deployments(id,environment,status,duration_seconds,deployed_at,owner_id) VALUES (?,?,?,?,?,?)`,
		d.ID, d.Environment, d.Status, d.DurationSeconds, d.DeployedAt, d.OwnerID)
	return err
}

// CountDeployments counts the owner's deployments on or after the cutoff,
// filtered to a status when one is given.
func (r Repo) CountDeployments(ctx context.Context, scope Scope, since, status string) (int, error) {
	query := `SELECT COUNT(*) FROM deployments WHERE owner_id=? AND deployed_at>=?`
	args := []any{scope.OwnerID(), since}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	var n int
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (r Repo) InsertIncident(ctx context.Context, tx *sql.Tx, in domain.Incident) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO incidents(id,description,severity,status,created_at,resolved_at,owner_id) VALUES (?,?,?,?,?,?,?)`,
		in.ID, in.Description, in.Severity, in.Status, in.CreatedAt, nullableStringPtr(in.ResolvedAt), in.OwnerID)
	return err
}

// Span is a pair of timestamps bounding a measured interval.
type Span struct {
	Start string
	End   string
}

// ListResolvedIncidentSpans returns created/resolved pairs for the owner's
// resolved incidents opened on or after the cutoff.
func (r Repo) ListResolvedIncidentSpans(ctx context.Context, scope Scope, since string) ([]Span, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT created_at, resolved_at FROM incidents WHERE owner_id=? AND created_at>=? AND resolved_at IS NOT NULL`,
		scope.OwnerID(), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSpans(rows)
}

func collectSpans(rows *sql.Rows) ([]Span, error) {
	var res []Span
	for rows.Next() {
		var s Span
		if err := rows.Scan(&s.Start, &s.End); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

const debtCols = `id,title,description,priority,related_repo,estimated_effort_hours,status,fixed_at,created_at,owner_id`

func scanDebt(scan func(...any) error) (domain.DebtItem, error) {
	var d domain.DebtItem
	var desc, repo, fixed sql.NullString
	err := scan(&d.ID, &d.Title, &desc, &d.Priority, &repo, &d.EstimatedEffortHours, &d.Status, &fixed, &d.CreatedAt, &d.OwnerID)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if desc.Valid {
		d.Description = desc.String
	}
	if repo.Valid {
		d.RelatedRepo = repo.String
	}
	if fixed.Valid {
		d.FixedAt = &fixed.String
	}
	return d, nil
}

func (r Repo) InsertDebt(ctx context.Context, tx *sql.Tx, d domain.DebtItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO technical_debt(`+debtCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Title, nullable(d.Description), d.Priority, nullable(d.RelatedRepo),
		d.EstimatedEffortHours, d.Status, nullableStringPtr(d.FixedAt), d.CreatedAt, d.OwnerID)
	return err
}

// ListDebt returns the owner's debt items, newest first.
func (r Repo) ListDebt(ctx context.Context, scope Scope) ([]domain.DebtItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+debtCols+` FROM technical_debt WHERE owner_id=? ORDER BY created_at DESC`, scope.OwnerID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DebtItem
	for rows.Next() {
		d, err := scanDebt(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// ResolveDebt marks a debt item fixed. A foreign owner's item matches no
// row and reports ErrNotFound, same as a missing id.
func (r Repo) ResolveDebt(ctx context.Context, tx *sql.Tx, scope Scope, id, fixedAt string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE technical_debt SET status='fixed', fixed_at=? WHERE id=? AND owner_id=?`,
		fixedAt, id, scope.OwnerID())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
