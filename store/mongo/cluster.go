package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
)

// AnnounceServer inserts or replaces a server.
// Uses upsert to handle re-announcement.
func (s *Store) AnnounceServer(ctx context.Context, srv *cluster.Server) error {
	_, err := s.db.Collection(colServers).UpdateOne(ctx,
		bson.M{"_id": srv.ID},
		bson.M{"$set": bson.M{
			"data":           toServerDataModel(srv.Data),
			"last_heartbeat": srv.LastHeartbeat.UTC(),
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("jobrow/mongo: announce server: %w", err)
	}
	return nil
}

// HeartbeatServer refreshes the last heartbeat of a server.
func (s *Store) HeartbeatServer(ctx context.Context, serverID string, at time.Time) error {
	res, err := s.db.Collection(colServers).UpdateOne(ctx,
		bson.M{"_id": serverID},
		bson.M{"$set": bson.M{"last_heartbeat": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("jobrow/mongo: heartbeat server: %w", err)
	}
	if res.MatchedCount == 0 {
		return jobrow.ErrServerNotFound
	}
	return nil
}

// RemoveServer deletes a server.
func (s *Store) RemoveServer(ctx context.Context, serverID string) error {
	if _, err := s.db.Collection(colServers).DeleteOne(ctx, bson.M{"_id": serverID}); err != nil {
		return fmt.Errorf("jobrow/mongo: remove server: %w", err)
	}
	return nil
}

// RemoveTimedOutServers deletes servers that stopped heartbeating.
func (s *Store) RemoveTimedOutServers(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.Collection(colServers).DeleteMany(ctx,
		bson.M{"last_heartbeat": bson.M{"$lt": before.UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("jobrow/mongo: remove timed out servers: %w", err)
	}
	return int(res.DeletedCount), nil
}

// ListServers returns all servers ordered by ID.
func (s *Store) ListServers(ctx context.Context) ([]*cluster.Server, error) {
	cursor, err := s.db.Collection(colServers).Find(ctx, bson.M{},
		findOpts(bson.D{{Key: "_id", Value: 1}}, 0, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list servers: %w", err)
	}
	models, err := decodeAll[serverModel](ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("jobrow/mongo: list servers decode: %w", err)
	}

	servers := make([]*cluster.Server, 0, len(models))
	for i := range models {
		servers = append(servers, fromServerModel(&models[i]))
	}
	return servers, nil
}
