package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
)

// AnnounceServer inserts or replaces a server.
func (s *Store) AnnounceServer(ctx context.Context, srv *cluster.Server) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobrow_servers (id, data, last_heartbeat)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			last_heartbeat = EXCLUDED.last_heartbeat`,
		srv.ID, srv.Data, srv.LastHeartbeat.UTC(),
	)
	if err != nil {
		return fmt.Errorf("jobrow/postgres: announce server: %w", err)
	}
	return nil
}

// HeartbeatServer refreshes the last heartbeat of a server.
func (s *Store) HeartbeatServer(ctx context.Context, serverID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobrow_servers SET last_heartbeat = $2 WHERE id = $1`,
		serverID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("jobrow/postgres: heartbeat server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobrow.ErrServerNotFound
	}
	return nil
}

// RemoveServer deletes a server.
func (s *Store) RemoveServer(ctx context.Context, serverID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM jobrow_servers WHERE id = $1`, serverID); err != nil {
		return fmt.Errorf("jobrow/postgres: remove server: %w", err)
	}
	return nil
}

// RemoveTimedOutServers deletes servers that stopped heartbeating.
func (s *Store) RemoveTimedOutServers(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobrow_servers WHERE last_heartbeat < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("jobrow/postgres: remove timed out servers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListServers returns all servers ordered by ID.
func (s *Store) ListServers(ctx context.Context) ([]*cluster.Server, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, data, last_heartbeat FROM jobrow_servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list servers: %w", err)
	}
	defer rows.Close()

	result := make([]*cluster.Server, 0)
	for rows.Next() {
		var srv cluster.Server
		if err := rows.Scan(&srv.ID, &srv.Data, &srv.LastHeartbeat); err != nil {
			return nil, fmt.Errorf("jobrow/postgres: scan server: %w", err)
		}
		srv.LastHeartbeat = srv.LastHeartbeat.UTC()
		result = append(result, &srv)
	}
	return result, rows.Err()
}
