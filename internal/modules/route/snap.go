// README: Road snapping of recorded routes through the Google Maps Roads API.
package route

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"fieldforce/internal/types"
)

// The Roads API accepts at most 100 points per request.
const snapChunkSize = 100

type Snapper interface {
	Snap(ctx context.Context, path []types.Point) ([]types.Point, error)
}

type roadsClient interface {
	SnapToRoad(ctx context.Context, r *maps.SnapToRoadRequest) (*maps.SnapToRoadResponse, error)
}

type RoadSnapper struct {
	client roadsClient
}

func NewRoadSnapper(apiKey string) (*RoadSnapper, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RoadSnapper{client: client}, nil
}

func (s *RoadSnapper) Snap(ctx context.Context, path []types.Point) ([]types.Point, error) {
	out := make([]types.Point, 0, len(path))
	for start := 0; start < len(path); start += snapChunkSize {
		end := min(start+snapChunkSize, len(path))
		req := &maps.SnapToRoadRequest{Path: make([]maps.LatLng, 0, end-start)}
		for _, p := range path[start:end] {
			req.Path = append(req.Path, maps.LatLng{Lat: p.Lat, Lng: p.Lng})
		}
		resp, err := s.client.SnapToRoad(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("roads api error: %w", err)
		}
		for _, sp := range resp.SnappedPoints {
			out = append(out, types.Point{Lat: sp.Location.Lat, Lng: sp.Location.Lng})
		}
	}
	return out, nil
}
