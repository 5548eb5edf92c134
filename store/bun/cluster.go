package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
)

// AnnounceServer inserts or replaces a server.
func (s *Store) AnnounceServer(ctx context.Context, srv *cluster.Server) error {
	m, err := toServerModel(srv)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("last_heartbeat = EXCLUDED.last_heartbeat").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobrow/bun: announce server: %w", err)
	}
	return nil
}

// HeartbeatServer refreshes the last heartbeat of a server.
func (s *Store) HeartbeatServer(ctx context.Context, serverID string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*serverModel)(nil)).
		Set("last_heartbeat = ?", at.UTC()).
		Where("id = ?", serverID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobrow/bun: heartbeat server: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return fmt.Errorf("jobrow/bun: heartbeat server: %w", err)
	}
	if n == 0 {
		return jobrow.ErrServerNotFound
	}
	return nil
}

// RemoveServer deletes a server.
func (s *Store) RemoveServer(ctx context.Context, serverID string) error {
	_, err := s.db.NewDelete().Model((*serverModel)(nil)).
		Where("id = ?", serverID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobrow/bun: remove server: %w", err)
	}
	return nil
}

// RemoveTimedOutServers deletes servers that stopped heartbeating.
func (s *Store) RemoveTimedOutServers(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.NewDelete().Model((*serverModel)(nil)).
		Where("last_heartbeat < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobrow/bun: remove timed out servers: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return 0, fmt.Errorf("jobrow/bun: remove timed out servers: %w", err)
	}
	return int(n), nil
}

// ListServers returns all servers ordered by ID.
func (s *Store) ListServers(ctx context.Context) ([]*cluster.Server, error) {
	var models []serverModel
	if err := s.db.NewSelect().Model(&models).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrow/bun: list servers: %w", err)
	}

	result := make([]*cluster.Server, 0, len(models))
	for i := range models {
		srv, err := fromServerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, srv)
	}
	return result, nil
}
