// Package weather looks up current conditions for an already-validated
// coordinate via the Open-Meteo API. Callers must never pass an
// unvalidated location; the lookup is presentation-side garnish and its
// failures stay out of the conversation transcript.
package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"mapchat/internal/geo"
	"mapchat/internal/logging"
)

const defaultBaseURL = "https://api.open-meteo.com"

// Snapshot is one observation of current conditions.
type Snapshot struct {
	TemperatureC float64
	WindSpeedKmh float64
	Code         int
	Description  string
}

// Client fetches current conditions. Concurrent lookups for the same
// (rounded) coordinate are collapsed into a single upstream request.
type Client struct {
	http  *resty.Client
	group singleflight.Group
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.http.SetBaseURL(url) }
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// NewClient creates a weather client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type currentResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Current returns the current conditions at loc.
func (c *Client) Current(ctx context.Context, loc geo.Location) (*Snapshot, error) {
	if !loc.Valid() {
		return nil, fmt.Errorf("weather lookup requires a valid location, got %+v", loc)
	}

	// Two decimals (~1km) is plenty for deduplication.
	key := fmt.Sprintf("%.2f:%.2f", loc.Lat, loc.Lng)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *Client) fetch(ctx context.Context, loc geo.Location) (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryWeather, "Client.fetch")
	defer timer.Stop()

	var body currentResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":  fmt.Sprintf("%.4f", loc.Lat),
			"longitude": fmt.Sprintf("%.4f", loc.Lng),
			"current":   "temperature_2m,wind_speed_10m,weather_code",
		}).
		SetResult(&body).
		Get("/v1/forecast")
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather service returned %s", resp.Status())
	}

	snap := &Snapshot{
		TemperatureC: body.Current.Temperature,
		WindSpeedKmh: body.Current.WindSpeed,
		Code:         body.Current.WeatherCode,
		Description:  describeCode(body.Current.WeatherCode),
	}
	logging.Weather("Conditions at %.2f,%.2f: %.1f°C, %s", loc.Lat, loc.Lng, snap.TemperatureC, snap.Description)
	return snap, nil
}

// describeCode maps WMO weather interpretation codes to short labels.
func describeCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
