package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/sorairo/tenki/internal/httputil"
	"github.com/sorairo/tenki/internal/metrics"
	"github.com/sorairo/tenki/internal/models"
)

const (
	DefaultOWMBaseURL = "https://api.openweathermap.org"

	EndpointCurrent  = "data/2.5/weather"
	EndpointForecast = "data/2.5/forecast"
)

// FetchResult describes one upstream HTTP exchange for the ingest audit.
type FetchResult struct {
	HTTPStatus   int
	ResponseSize int
	RecordCount  int
	Latency      time.Duration
}

// OWMClient talks to the OpenWeatherMap 2.5 API.
// Requests are spaced by a shared limiter and retried on throttling or server errors.
type OWMClient struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxElapsed time.Duration
}

func NewOWMClient(apiKey string) *OWMClient {
	return &OWMClient{
		apiKey:     apiKey,
		baseURL:    DefaultOWMBaseURL,
		client:     httputil.NewClient(),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		maxElapsed: 2 * time.Minute,
	}
}

// SetBaseURL points the client at a different host, e.g. a test server.
func (c *OWMClient) SetBaseURL(u string) {
	c.baseURL = u
}

// SetRateLimit changes the request spacing. rate.Inf disables it.
func (c *OWMClient) SetRateLimit(r rate.Limit) {
	c.limiter = rate.NewLimiter(r, 1)
}

// SetMaxRetryTime bounds how long a single request is retried.
func (c *OWMClient) SetMaxRetryTime(d time.Duration) {
	c.maxElapsed = d
}

type owmWeather struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure"`
	Humidity  int     `json:"humidity"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
	Gust  float64 `json:"gust"`
}

// CurrentResponse is the /data/2.5/weather payload.
type CurrentResponse struct {
	Dt         int64        `json:"dt"`
	Name       string       `json:"name"`
	Timezone   int          `json:"timezone"`
	Weather    []owmWeather `json:"weather"`
	Main       owmMain      `json:"main"`
	Wind       owmWind      `json:"wind"`
	Visibility int          `json:"visibility"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

// ForecastResponse is the /data/2.5/forecast payload (5 days, 3-hourly).
type ForecastResponse struct {
	Cnt  int                `json:"cnt"`
	List []ForecastListItem `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

type ForecastListItem struct {
	Dt      int64        `json:"dt"`
	Main    owmMain      `json:"main"`
	Weather []owmWeather `json:"weather"`
	Wind    owmWind      `json:"wind"`
	Pop     float64      `json:"pop"`
	DtTxt   string       `json:"dt_txt"`
}

// FetchCurrent fetches current conditions for a location.
// The raw body is returned even when decoding fails so it can be archived.
func (c *OWMClient) FetchCurrent(ctx context.Context, loc models.Location) (*CurrentResponse, []byte, *FetchResult, error) {
	body, result, err := c.get(ctx, EndpointCurrent, loc)
	if err != nil {
		return nil, body, result, err
	}

	var data CurrentResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, body, result, fmt.Errorf("unmarshal current: %w", err)
	}
	if len(data.Weather) == 0 {
		return nil, body, result, fmt.Errorf("no weather entries for %s", loc.Key)
	}
	result.RecordCount = 1
	return &data, body, result, nil
}

// FetchForecast fetches the 5 day / 3 hour forecast for a location.
func (c *OWMClient) FetchForecast(ctx context.Context, loc models.Location) (*ForecastResponse, []byte, *FetchResult, error) {
	body, result, err := c.get(ctx, EndpointForecast, loc)
	if err != nil {
		return nil, body, result, err
	}

	var data ForecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, body, result, fmt.Errorf("unmarshal forecast: %w", err)
	}
	result.RecordCount = len(data.List)
	return &data, body, result, nil
}

func (c *OWMClient) endpointURL(endpoint string, loc models.Location) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "ja")
	return fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())
}

func (c *OWMClient) get(ctx context.Context, endpoint string, loc models.Location) ([]byte, *FetchResult, error) {
	reqURL := c.endpointURL(endpoint, loc)
	result := &FetchResult{}

	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", httputil.UserAgent)

		start := time.Now()
		resp, err := c.client.Do(req)
		result.Latency = time.Since(start)
		metrics.OWMAPILatency.WithLabelValues(loc.Key, endpoint).Observe(result.Latency.Seconds())
		if err != nil {
			metrics.OWMAPICallsTotal.WithLabelValues(loc.Key, endpoint, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
		}
		defer resp.Body.Close()

		result.HTTPStatus = resp.StatusCode
		metrics.OWMAPICallsTotal.WithLabelValues(loc.Key, endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		result.ResponseSize = len(b)

		if retryable(resp.StatusCode) {
			return fmt.Errorf("fetch %s: retryable status %d", endpoint, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			body = b
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, string(b)))
		}

		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return body, result, err
	}
	return body, result, nil
}

// retryable reports whether a status is worth retrying. OWM answers 401
// for keys that have not been activated yet, so it is treated like throttling.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return status >= 500
}
