package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

type firePayload struct {
	Brightness float64 `json:"brightness"`
	Confidence string  `json:"confidence"`
	DetectedAt string  `json:"detected_at"` // acquisition date + time as reported
}

// Kenya bounding box for the FIRMS area query: west,south,east,north.
const firmsKenyaBBox = "33.9,-4.7,41.9,5.5"

// FireAdapter reads NASA FIRMS VIIRS hotspot detections as CSV.
type FireAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFireAdapter(baseURL, apiKey string, timeout time.Duration) *FireAdapter {
	return &FireAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *FireAdapter) Kind() models.SourceKind { return models.SourceFire }
func (a *FireAdapter) Scope() Scope            { return ScopeGlobal }

func (a *FireAdapter) Fetch(ctx context.Context, _ *models.Region) ([]Reading, error) {
	// .../api/area/csv/<key>/VIIRS_SNPP_NRT/<bbox>/<days>
	url := fmt.Sprintf("%s/%s/VIIRS_SNPP_NRT/%s/1", a.baseURL, a.apiKey, firmsKenyaBBox)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

	return parseFIRMSCSV(resp.Body)
}

func parseFIRMSCSV(r io.Reader) ([]Reading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // FIRMS column sets vary by product version

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil // no hotspots today
	}
	if err != nil {
		return nil, fmt.Errorf("error reading FIRMS header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"latitude", "longitude"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("FIRMS response missing column %q", required)
		}
	}

	var readings []Reading
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading FIRMS record: %w", err)
		}

		lat, latErr := strconv.ParseFloat(field(record, col, "latitude"), 64)
		lng, lngErr := strconv.ParseFloat(field(record, col, "longitude"), 64)
		if latErr != nil || lngErr != nil {
			continue
		}
		brightness, _ := strconv.ParseFloat(field(record, col, "bright_ti4"), 64)

		readings = append(readings, Reading{
			Source:    models.SourceFire,
			Latitude:  lat,
			Longitude: lng,
			Located:   true,
			Payload: firePayload{
				Brightness: brightness,
				Confidence: field(record, col, "confidence"),
				DetectedAt: field(record, col, "acq_date") + " " + field(record, col, "acq_time"),
			},
		})
	}

	return readings, nil
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
