package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

type weatherPayload struct {
	TempC       float64 `json:"temp_c"`
	RainfallMM  float64 `json:"rainfall_mm"`
	HumidityPct float64 `json:"humidity_pct"`
	WindKPH     float64 `json:"wind_kph"`
}

type forecastPayload struct {
	Dates            []string  `json:"dates"`
	PrecipitationSum []float64 `json:"precipitation_sum"`
	TempMax          []float64 `json:"temperature_2m_max"`
}

type openMeteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Rain        float64 `json:"precipitation"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Time             []string  `json:"time"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		TempMax          []float64 `json:"temperature_2m_max"`
	} `json:"daily"`
}

// WeatherAdapter reads current conditions from Open-Meteo, one call per
// region centroid.
type WeatherAdapter struct {
	baseURL string
	client  *http.Client
}

func NewWeatherAdapter(baseURL string, timeout time.Duration) *WeatherAdapter {
	return &WeatherAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *WeatherAdapter) Kind() models.SourceKind { return models.SourceWeather }
func (a *WeatherAdapter) Scope() Scope            { return ScopePerRegion }

func (a *WeatherAdapter) Fetch(ctx context.Context, region *models.Region) ([]Reading, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", region.Latitude))
	params.Set("longitude", fmt.Sprintf("%.4f", region.Longitude))
	params.Set("current", "temperature_2m,precipitation,relative_humidity_2m,wind_speed_10m")
	params.Set("timezone", "Africa/Nairobi")

	data, err := fetchOpenMeteo(ctx, a.client, a.baseURL, params)
	if err != nil {
		return nil, err
	}

	return []Reading{{
		Source:    models.SourceWeather,
		RegionID:  region.ID,
		Latitude:  region.Latitude,
		Longitude: region.Longitude,
		Located:   true,
		Payload: weatherPayload{
			TempC:       data.Current.Temperature,
			RainfallMM:  data.Current.Rain,
			HumidityPct: data.Current.Humidity,
			WindKPH:     data.Current.WindSpeed,
		},
	}}, nil
}

// ForecastAdapter reads the 7-day daily forecast from Open-Meteo, one call
// per region centroid. Feeds the predictive warning engine only.
type ForecastAdapter struct {
	baseURL string
	client  *http.Client
}

func NewForecastAdapter(baseURL string, timeout time.Duration) *ForecastAdapter {
	return &ForecastAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *ForecastAdapter) Kind() models.SourceKind { return models.SourceForecast }
func (a *ForecastAdapter) Scope() Scope            { return ScopePerRegion }

func (a *ForecastAdapter) Fetch(ctx context.Context, region *models.Region) ([]Reading, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", region.Latitude))
	params.Set("longitude", fmt.Sprintf("%.4f", region.Longitude))
	params.Set("daily", "precipitation_sum,temperature_2m_max")
	params.Set("forecast_days", "7")
	params.Set("timezone", "Africa/Nairobi")

	data, err := fetchOpenMeteo(ctx, a.client, a.baseURL, params)
	if err != nil {
		return nil, err
	}

	return []Reading{{
		Source:    models.SourceForecast,
		RegionID:  region.ID,
		Latitude:  region.Latitude,
		Longitude: region.Longitude,
		Located:   true,
		Payload: forecastPayload{
			Dates:            data.Daily.Time,
			PrecipitationSum: data.Daily.PrecipitationSum,
			TempMax:          data.Daily.TempMax,
		},
	}}, nil
}

func fetchOpenMeteo(ctx context.Context, client *http.Client, baseURL string, params url.Values) (*openMeteoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return &data, nil
}
