package repo

import (
	"context"
	"database/sql"
	"errors"

	"devpulse/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Scope carries a resolved workspace owner. It is the only way to reach an
// owner-filtered query: every scoped method conjoins owner_id from the Scope,
// so an endpoint cannot omit the isolation filter.
type Scope struct {
	ownerID string
}

var ErrNoOwner = errors.New("owner id required")

// NewScope builds a Scope from a resolved owner id. An empty id is rejected
// before any query can be issued.
func NewScope(ownerID string) (Scope, error) {
	if ownerID == "" {
		return Scope{}, ErrNoOwner
	}
	return Scope{ownerID: ownerID}, nil
}

func (s Scope) OwnerID() string { return s.ownerID }

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func (r Repo) GetDeveloperByEmail(ctx context.Context, email string) (domain.Developer, error) {
	var d domain.Developer
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,created_at FROM developers WHERE email=?`, email).
		Scan(&d.ID, &d.Name, &d.Email, &d.Role, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) GetDeveloper(ctx context.Context, id string) (domain.Developer, error) {
	var d domain.Developer
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,created_at FROM developers WHERE id=?`, id).
		Scan(&d.ID, &d.Name, &d.Email, &d.Role, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) InsertDeveloper(ctx context.Context, tx *sql.Tx, d domain.Developer) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO developers(id,name,email,role,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Name, d.Email, d.Role, d.CreatedAt)
	return err
}

// EventsAfter returns audit events with IDs greater than the cursor in
// ascending order, used by the webhook dispatcher.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,COALESCE(owner_id,''),entity_kind,COALESCE(entity_id,''),COALESCE(payload_json,'') FROM events WHERE id>? ORDER BY id ASC LIMIT ?`,
		cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OwnerID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent audit event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// LatestEvents returns the newest audit events for an owner, newest first.
func (r Repo) LatestEvents(ctx context.Context, scope Scope, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,COALESCE(owner_id,''),entity_kind,COALESCE(entity_id,''),COALESCE(payload_json,'') FROM events WHERE owner_id=? ORDER BY id DESC LIMIT ?`,
		scope.OwnerID(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OwnerID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
