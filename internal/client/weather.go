package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kjstillabower/company-portal/internal/circuitbreaker"
	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/observability"
)

// UpstreamWeather labels weather provider calls in metrics and errors.
const UpstreamWeather = "weather"

type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, coords models.Coordinates) (models.WeatherReport, error)
}

// OpenWeatherClient queries the OpenWeatherMap current weather endpoint by coordinates.
type OpenWeatherClient struct {
	apiKey         string
	apiURL         *url.URL
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.Breaker
}

// NewOpenWeatherClient returns a client that makes a single attempt per lookup.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, apiURL, timeout, 1, 100*time.Millisecond, 2*time.Second)
}

// NewOpenWeatherClientWithRetry returns a client that retries rate limits, 5xx and
// timeouts up to retryAttempts total attempts. An empty apiKey is accepted; lookups
// then fail with ErrMissingAPIKey without calling the provider.
func NewOpenWeatherClientWithRetry(apiKey, apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenWeatherClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid weather API URL %q", apiURL)
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}
	return &OpenWeatherClient{
		apiKey:         apiKey,
		apiURL:         u,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker guards provider calls with b. Pass nil to disable.
func (c *OpenWeatherClient) SetCircuitBreaker(b *circuitbreaker.Breaker) {
	c.breaker = b
}

type openWeatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Name string `json:"name"`
}

func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, coords models.Coordinates) (models.WeatherReport, error) {
	ctx, span := observability.Tracer("client").Start(ctx, "weather.current")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("geo.latitude", coords.Latitude),
		attribute.Float64("geo.longitude", coords.Longitude),
	)

	report, err := c.getWithRetry(ctx, coords)
	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(UpstreamWeather, string(CategorizeError(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "weather lookup failed")
		return models.WeatherReport{}, err
	}
	span.SetAttributes(attribute.String("weather.city", report.City))
	return report, nil
}

func (c *OpenWeatherClient) getWithRetry(ctx context.Context, coords models.Coordinates) (models.WeatherReport, error) {
	if c.apiKey == "" {
		return models.WeatherReport{}, &UpstreamError{Upstream: UpstreamWeather, Err: ErrMissingAPIKey}
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(UpstreamWeather).Inc()
			select {
			case <-ctx.Done():
				return models.WeatherReport{}, &UpstreamError{Upstream: UpstreamWeather, Err: ctx.Err()}
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		var report models.WeatherReport
		err := c.breaker.Call(func() error {
			var callErr error
			report, callErr = c.callAPI(ctx, coords)
			return callErr
		})
		if err == nil {
			return report, nil
		}
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return models.WeatherReport{}, &UpstreamError{Upstream: UpstreamWeather, Err: err}
		}

		lastErr = err
		if !isRetryable(err) {
			return models.WeatherReport{}, err
		}
	}
	if c.retryAttempts == 1 {
		return models.WeatherReport{}, lastErr
	}
	return models.WeatherReport{}, fmt.Errorf("exhausted %d attempts: %w", c.retryAttempts, lastErr)
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, coords models.Coordinates) (models.WeatherReport, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var apiResp openWeatherResponse
	if err := getJSON(reqCtx, c.client, UpstreamWeather, c.buildURL(coords), &apiResp); err != nil {
		return models.WeatherReport{}, err
	}
	return mapWeatherResponse(apiResp), nil
}

func (c *OpenWeatherClient) buildURL(coords models.Coordinates) string {
	u := *c.apiURL
	params := u.Query()
	params.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryable reports whether another attempt could succeed: rate limits,
// 5xx responses and timeouts. Missing keys, 4xx and parse failures are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if code := StatusCode(err); code >= 500 {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func mapWeatherResponse(apiResp openWeatherResponse) models.WeatherReport {
	condition := ""
	if len(apiResp.Weather) > 0 {
		condition = apiResp.Weather[0].Main
		if apiResp.Weather[0].Description != "" {
			condition = apiResp.Weather[0].Description
		}
	}
	return models.WeatherReport{
		City:        apiResp.Name,
		Temperature: apiResp.Main.Temp,
		Condition:   condition,
	}
}
