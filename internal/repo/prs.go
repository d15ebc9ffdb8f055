package repo

import (
	"context"
	"database/sql"

	"devpulse/internal/domain"
)

func (r Repo) InsertPullRequest(ctx context.Context, tx *sql.Tx, pr domain.PullRequest) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pull_requests(id,title,author_id,status,created_at,merged_at,closed_at,owner_id) VALUES (?,?,?,?,?,?,?,?)`,
		pr.ID, pr.Title, nullableStringPtr(pr.AuthorID), pr.Status, pr.CreatedAt,
		nullableStringPtr(pr.MergedAt), nullableStringPtr(pr.ClosedAt), pr.OwnerID)
	return err
}

func (r Repo) InsertPRReview(ctx context.Context, tx *sql.Tx, rv domain.PRReview) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pr_reviews(id,pr_id,reviewer_id,reviewed_at) VALUES (?,?,?,?)`,
		rv.ID, rv.PRID, rv.ReviewerID, rv.ReviewedAt)
	return err
}

// ListMergedPRSpans returns created/closed pairs for the owner's merged and
// closed-out pull requests created on or after the cutoff.
func (r Repo) ListMergedPRSpans(ctx context.Context, scope Scope, since string) ([]Span, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT created_at, closed_at FROM pull_requests WHERE owner_id=? AND status='merged' AND closed_at IS NOT NULL AND created_at>=?`,
		scope.OwnerID(), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSpans(rows)
}

// ListMergedPRTimes returns created/merged pairs for the owner's merged pull
// requests, newest creation first.
func (r Repo) ListMergedPRTimes(ctx context.Context, scope Scope) ([]Span, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT created_at, merged_at FROM pull_requests WHERE owner_id=? AND status='merged' AND merged_at IS NOT NULL ORDER BY created_at DESC`,
		scope.OwnerID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSpans(rows)
}

// ListPRCreationTimes returns creation timestamps of all the owner's pull
// requests, newest first.
func (r Repo) ListPRCreationTimes(ctx context.Context, scope Scope) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT created_at FROM pull_requests WHERE owner_id=? ORDER BY created_at DESC`, scope.OwnerID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		res = append(res, ts)
	}
	return res, rows.Err()
}

// CountPRs counts the owner's pull requests, filtered to a status when one
// is given.
func (r Repo) CountPRs(ctx context.Context, scope Scope, status string) (int, error) {
	query := `SELECT COUNT(*) FROM pull_requests WHERE owner_id=?`
	args := []any{scope.OwnerID()}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	var n int
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// OpenPR is an open pull request with the author's display name resolved.
type OpenPR struct {
	ID        string
	Title     string
	Author    *string
	CreatedAt string
}

// ListOpenPRs returns the owner's open pull requests, oldest first.
func (r Repo) ListOpenPRs(ctx context.Context, scope Scope) ([]OpenPR, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT p.id, p.title, d.name, p.created_at
FROM pull_requests p LEFT JOIN developers d ON p.author_id = d.id
WHERE p.status = 'open' AND p.owner_id=?
ORDER BY p.created_at ASC`, scope.OwnerID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []OpenPR
	for rows.Next() {
		var p OpenPR
		var author sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &author, &p.CreatedAt); err != nil {
			return nil, err
		}
		if author.Valid {
			p.Author = &author.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ReviewLoadRow is one reviewer's review count.
type ReviewLoadRow struct {
	Reviewer string
	Count    int
}

// ReviewLoad counts reviews per reviewer on the owner's pull requests since
// the cutoff, busiest reviewer first.
func (r Repo) ReviewLoad(ctx context.Context, scope Scope, since string) ([]ReviewLoadRow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT d.name, COUNT(r.id)
FROM pr_reviews r
JOIN pull_requests p ON r.pr_id = p.id
JOIN developers d ON r.reviewer_id = d.id
WHERE p.owner_id=? AND r.reviewed_at>=?
GROUP BY r.reviewer_id, d.name
ORDER BY COUNT(r.id) DESC`, scope.OwnerID(), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReviewLoadRow
	for rows.Next() {
		var rl ReviewLoadRow
		if err := rows.Scan(&rl.Reviewer, &rl.Count); err != nil {
			return nil, err
		}
		res = append(res, rl)
	}
	return res, rows.Err()
}

func (r Repo) InsertStageEvent(ctx context.Context, tx *sql.Tx, se domain.StageEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO workflow_stages(stage_name,entered_at,exited_at) VALUES (?,?,?)`,
		se.StageName, se.EnteredAt, nullableStringPtr(se.ExitedAt))
	return err
}

// ListStageEvents returns every workflow stage event. Stage rows are not
// owner-scoped; see domain.StageEvent.
func (r Repo) ListStageEvents(ctx context.Context) ([]domain.StageEvent, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, stage_name, entered_at, exited_at FROM workflow_stages ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StageEvent
	for rows.Next() {
		var se domain.StageEvent
		var exited sql.NullString
		if err := rows.Scan(&se.ID, &se.StageName, &se.EnteredAt, &exited); err != nil {
			return nil, err
		}
		if exited.Valid {
			se.ExitedAt = &exited.String
		}
		res = append(res, se)
	}
	return res, rows.Err()
}
