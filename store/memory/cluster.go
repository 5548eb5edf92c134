package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
)

func copyServer(s *cluster.Server) *cluster.Server {
	cp := *s
	cp.Data.Queues = slices.Clone(s.Data.Queues)
	return &cp
}

// AnnounceServer inserts or replaces a server.
func (m *Store) AnnounceServer(_ context.Context, s *cluster.Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[s.ID] = copyServer(s)
	return nil
}

// HeartbeatServer refreshes the last heartbeat of a server.
func (m *Store) HeartbeatServer(_ context.Context, serverID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.servers[serverID]
	if !ok {
		return jobrow.ErrServerNotFound
	}
	s.LastHeartbeat = at.UTC()
	return nil
}

// RemoveServer deletes a server.
func (m *Store) RemoveServer(_ context.Context, serverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, serverID)
	return nil
}

// RemoveTimedOutServers deletes servers that stopped heartbeating.
func (m *Store) RemoveTimedOutServers(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, s := range m.servers {
		if s.TimedOut(before) {
			delete(m.servers, key)
			removed++
		}
	}
	return removed, nil
}

// ListServers returns all servers ordered by ID.
func (m *Store) ListServers(_ context.Context) ([]*cluster.Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*cluster.Server, 0, len(m.servers))
	for _, s := range m.servers {
		result = append(result, copyServer(s))
	}
	slices.SortFunc(result, func(a, b *cluster.Server) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}
