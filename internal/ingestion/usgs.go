package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

type seismicPayload struct {
	Magnitude  float64   `json:"magnitude"`
	DepthKM    float64   `json:"depth_km"`
	Place      string    `json:"place"`
	OccurredAt time.Time `json:"occurred_at"`
}

type usgsResponse struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string         `json:"id"`
	Properties usgsProperties `json:"properties"`
	Geometry   usgsGeometry   `json:"geometry"`
}
type usgsProperties struct {
	Mag   float64 `json:"mag"`
	Place string  `json:"place"`
	Time  int64   `json:"time"` // unix millis
}
type usgsGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

// Rough bounding box for Kenya and its seismically linked surroundings
// (the East African Rift does not respect county lines).
const (
	usgsMinLat = -5.5
	usgsMaxLat = 6.0
	usgsMinLng = 33.0
	usgsMaxLng = 42.5
)

// SeismicAdapter reads the USGS earthquake feed and keeps events inside the
// monitored bounding box.
type SeismicAdapter struct {
	url    string
	client *http.Client
}

func NewSeismicAdapter(url string, timeout time.Duration) *SeismicAdapter {
	return &SeismicAdapter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *SeismicAdapter) Kind() models.SourceKind { return models.SourceSeismic }
func (a *SeismicAdapter) Scope() Scope            { return ScopeGlobal }

func (a *SeismicAdapter) Fetch(ctx context.Context, _ *models.Region) ([]Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data usgsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	readings := make([]Reading, 0, len(data.Features))
	for _, f := range data.Features {
		if len(f.Geometry.Coordinates) < 3 {
			continue
		}
		lng, lat, depth := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], f.Geometry.Coordinates[2]
		if lat < usgsMinLat || lat > usgsMaxLat || lng < usgsMinLng || lng > usgsMaxLng {
			continue
		}
		readings = append(readings, Reading{
			Source:    models.SourceSeismic,
			Latitude:  lat,
			Longitude: lng,
			Located:   true,
			Payload: seismicPayload{
				Magnitude:  f.Properties.Mag,
				DepthKM:    depth,
				Place:      f.Properties.Place,
				OccurredAt: time.UnixMilli(f.Properties.Time).UTC(),
			},
		})
	}

	return readings, nil
}
