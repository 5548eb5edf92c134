package cluster

import (
	"context"
	"time"
)

// Store defines the persistence contract for the server registry.
type Store interface {
	// AnnounceServer inserts or replaces a server and stamps its heartbeat.
	AnnounceServer(ctx context.Context, s *Server) error

	// HeartbeatServer sets the last heartbeat of a server to at.
	HeartbeatServer(ctx context.Context, serverID string, at time.Time) error

	// RemoveServer deletes a server. Unknown IDs are ignored.
	RemoveServer(ctx context.Context, serverID string) error

	// RemoveTimedOutServers deletes servers whose last heartbeat is before
	// the given time and returns how many were removed.
	RemoveTimedOutServers(ctx context.Context, before time.Time) (int, error)

	// ListServers returns all servers ordered by ID.
	ListServers(ctx context.Context) ([]*Server, error)
}
