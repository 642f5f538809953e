package route

import (
	"math"
	"testing"

	"fieldforce/internal/types"
)

func TestHaversineMeters_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantM     float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 25.033, Lng: 121.565},
			b:         types.Point{Lat: 25.033, Lng: 121.565},
			wantM:     0,
			tolerance: 0.01,
		},
		{
			name:      "one thousandth of a degree of latitude (~111m)",
			a:         types.Point{Lat: 30.0000, Lng: 31.0},
			b:         types.Point{Lat: 30.0010, Lng: 31.0},
			wantM:     111.2,
			tolerance: 0.5,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantM:     3944000,
			tolerance: 50000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineMeters(tt.a, tt.b)
			if math.Abs(got-tt.wantM) > tt.tolerance {
				t.Errorf("haversineMeters() = %f, want %f (±%f)", got, tt.wantM, tt.tolerance)
			}
		})
	}
}

func TestHaversineMeters_Symmetry(t *testing.T) {
	a := types.Point{Lat: 25.0, Lng: 121.0}
	b := types.Point{Lat: 26.0, Lng: 122.0}
	if d1, d2 := haversineMeters(a, b), haversineMeters(b, a); math.Abs(d1-d2) > 0.001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}
