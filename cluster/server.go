package cluster

import (
	"strings"
	"time"
)

// Server is one registered processing server.
type Server struct {
	ID            string    `json:"id"`
	Data          Data      `json:"data"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Data is the metadata a server announces.
type Data struct {
	WorkerCount int       `json:"worker_count"`
	Queues      []string  `json:"queues"`
	StartedAt   time.Time `json:"started_at"`
}

// Hostname returns the host part of a "host:suffix" server ID.
func (s *Server) Hostname() string {
	host, _, _ := strings.Cut(s.ID, ":")
	return host
}

// TimedOut reports whether the last heartbeat is older than before.
func (s *Server) TimedOut(before time.Time) bool {
	return s.LastHeartbeat.Before(before)
}
