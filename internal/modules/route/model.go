// README: Route samples and persisted route points for a visit.
package route

import (
	"errors"
	"time"

	"fieldforce/internal/types"
)

var (
	ErrTrackerStopped = errors.New("route tracker stopped")
	ErrNotTracking    = errors.New("visit is not being tracked")
	ErrInvalidSample  = errors.New("invalid location sample")
	ErrNoPosition     = errors.New("no known position")
)

// Sample is one raw location report from a representative's device.
type Sample struct {
	Position   types.Point
	RecordedAt time.Time
}

// SamplePayload is the wire form of a Sample on HTTP and MQTT.
type SamplePayload struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (p SamplePayload) Sample() Sample {
	return Sample{Position: types.Point{Lat: p.Lat, Lng: p.Lng}, RecordedAt: p.RecordedAt}
}

func (s Sample) Validate() error {
	if s.Position.Lat < -90 || s.Position.Lat > 90 || s.Position.Lng < -180 || s.Position.Lng > 180 {
		return ErrInvalidSample
	}
	return nil
}

// RoutePoint is an accepted sample bound to its visit. Points are append-only.
type RoutePoint struct {
	ID               types.ID
	VisitID          types.ID
	RepresentativeID types.ID
	Position         types.Point
	RecordedAt       time.Time
}

type LivePosition struct {
	RepresentativeID types.ID
	Position         types.Point
	RecordedAt       time.Time
}

type Playback struct {
	VisitID types.ID
	Points  []RoutePoint
	// Snapped is set only when road snapping was requested and available.
	Snapped []types.Point
}
