// README: Last known representative positions kept in Redis GEO.
package route

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldforce/internal/types"
)

const (
	liveGeoKey      = "route:live"
	liveAtKeyPrefix = "route:live:%s:recorded_at"
	// Positions older than this are treated as unknown.
	liveTTL = 12 * time.Hour
)

type LiveStore struct {
	redis *redis.Client
}

func NewLiveStore(redis *redis.Client) *LiveStore {
	return &LiveStore{redis: redis}
}

func (s *LiveStore) Publish(ctx context.Context, p RoutePoint) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, liveGeoKey, &redis.GeoLocation{
		Name:      string(p.RepresentativeID),
		Longitude: p.Position.Lng,
		Latitude:  p.Position.Lat,
	})
	pipe.Set(ctx, liveAtKey(p.RepresentativeID), p.RecordedAt.UTC().Format(time.RFC3339Nano), liveTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns ErrNoPosition when the representative has no fresh position.
func (s *LiveStore) Get(ctx context.Context, repID types.ID) (LivePosition, error) {
	at, err := s.redis.Get(ctx, liveAtKey(repID)).Result()
	if err == redis.Nil {
		return LivePosition{}, ErrNoPosition
	}
	if err != nil {
		return LivePosition{}, err
	}
	recordedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return LivePosition{}, fmt.Errorf("parse live timestamp: %w", err)
	}

	positions, err := s.redis.GeoPos(ctx, liveGeoKey, string(repID)).Result()
	if err != nil {
		return LivePosition{}, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return LivePosition{}, ErrNoPosition
	}
	return LivePosition{
		RepresentativeID: repID,
		Position:         types.Point{Lat: positions[0].Latitude, Lng: positions[0].Longitude},
		RecordedAt:       recordedAt,
	}, nil
}

func liveAtKey(repID types.ID) string {
	return fmt.Sprintf(liveAtKeyPrefix, string(repID))
}
