package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed audit store.
func NewPGStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Insert(ctx context.Context, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO audit_log (actor_kind, actor_name, action, resource_type, resource_id, method, path, route,
	status, ip, user_agent, request_id, metadata)
VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''),
	NULLIF($11, ''), NULLIF($12, ''), $13)`,
		e.ActorKind, e.ActorName, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Route,
		e.Status, e.IP, e.UserAgent, e.RequestID, metadata)
	return err
}

func (s *pgStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, actor_kind, COALESCE(actor_name, ''), action, resource_type, COALESCE(resource_id, ''), method,
	path, COALESCE(route, ''), status, COALESCE(ip, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''),
	metadata, created_at
FROM audit_log
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e        Entry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorName, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method,
			&e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata = metadata
		out = append(out, e)
	}
	return out, rows.Err()
}
