package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/company-portal/internal/client"
	"github.com/kjstillabower/company-portal/internal/geo"
	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/observability"
)

// WeatherService answers "how is your weather" for the calling client by
// geolocating its IP and querying the weather provider.
type WeatherService struct {
	locator geo.Locator
	client  client.WeatherClient
}

// NewWeatherService returns a WeatherService. A nil locator never resolves.
func NewWeatherService(locator geo.Locator, client client.WeatherClient) *WeatherService {
	if locator == nil {
		locator = geo.NopLocator{}
	}
	return &WeatherService{locator: locator, client: client}
}

// ForClient resolves the caller from header and remoteAddr and returns the current
// weather at its location. Fails with geo.ErrUnavailable when the caller cannot be
// located and with client.ErrUpstream when the provider fails.
func (s *WeatherService) ForClient(ctx context.Context, header http.Header, remoteAddr string) (models.WeatherReport, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	coords, err := geo.Resolve(s.locator, header, remoteAddr)
	if err != nil {
		logger.Debug("client location unavailable", zap.String("remote_addr", remoteAddr), zap.Error(err))
		return models.WeatherReport{}, err
	}

	report, err := s.client.GetCurrentWeather(ctx, coords)
	if err != nil {
		return models.WeatherReport{}, fmt.Errorf("weather at %.4f,%.4f: %w", coords.Latitude, coords.Longitude, err)
	}
	logger.Debug("weather served",
		zap.String("city", report.City),
		zap.Duration("duration", time.Since(start)))
	return report, nil
}
