package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"rsumon/internal/types"
)

// maxLocationsPerRequest stays under the Elevation API's per-request limit.
const maxLocationsPerRequest = 256

type elevationClient interface {
	Elevation(ctx context.Context, r *maps.ElevationRequest) ([]maps.ElevationResult, error)
}

// ElevationService handles elevation lookups against the Google Maps API.
type ElevationService struct {
	client elevationClient
}

// NewElevationService creates a new ElevationService with the given API Key.
func NewElevationService(apiKey string) (*ElevationService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &ElevationService{client: client}, nil
}

// Elevations returns ground elevation in meters for each point, in order.
func (s *ElevationService) Elevations(ctx context.Context, points []types.Point) ([]float64, error) {
	out := make([]float64, 0, len(points))
	for start := 0; start < len(points); start += maxLocationsPerRequest {
		end := min(start+maxLocationsPerRequest, len(points))
		req := &maps.ElevationRequest{Locations: make([]maps.LatLng, 0, end-start)}
		for _, p := range points[start:end] {
			req.Locations = append(req.Locations, maps.LatLng{Lat: p.Lat, Lng: p.Lng})
		}

		results, err := s.client.Elevation(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("maps api error: %w", err)
		}
		if len(results) != end-start {
			return nil, fmt.Errorf("maps api returned %d elevations for %d locations", len(results), end-start)
		}
		for _, r := range results {
			out = append(out, r.Elevation)
		}
	}
	return out, nil
}
