package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/company-portal/internal/assets"
	"github.com/kjstillabower/company-portal/internal/circuitbreaker"
	"github.com/kjstillabower/company-portal/internal/client"
	"github.com/kjstillabower/company-portal/internal/config"
	"github.com/kjstillabower/company-portal/internal/employees"
	"github.com/kjstillabower/company-portal/internal/geo"
	httphandler "github.com/kjstillabower/company-portal/internal/http"
	"github.com/kjstillabower/company-portal/internal/lifecycle"
	"github.com/kjstillabower/company-portal/internal/observability"
	"github.com/kjstillabower/company-portal/internal/service"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	observability.RegisterBuildInfo(version)

	shutdownTracing, err := observability.InitTracing(cfg.ZipkinURL, version)
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}
	if cfg.ZipkinURL != "" {
		logger.Info("tracing enabled", zap.String("zipkin_url", cfg.ZipkinURL))
	}

	var locator geo.Locator = geo.NopLocator{}
	var maxmind *geo.MaxMindLocator
	if cfg.GeoDatabase != "" {
		maxmind, err = geo.OpenMaxMind(cfg.GeoDatabase)
		if err != nil {
			logger.Warn("geolocation database unavailable; weather lookups will answer 400",
				zap.String("path", cfg.GeoDatabase), zap.Error(err))
		} else {
			locator = maxmind
		}
	} else {
		logger.Warn("no geolocation database configured; weather lookups will answer 400")
	}

	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY not set; weather lookups will fail upstream")
	}
	weatherClient, err := client.NewOpenWeatherClientWithRetry(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	catalogClient, err := client.NewProductCatalogClient(cfg.CatalogAPIURL, cfg.CatalogAPITimeout, cfg.CatalogPages, cfg.CatalogPageSize)
	if err != nil {
		logger.Fatal("catalog client", zap.Error(err))
	}

	var breakers []*circuitbreaker.Breaker
	if cfg.CircuitBreakerEnabled {
		weatherBreaker := newBreaker(cfg, client.UpstreamWeather, logger)
		catalogBreaker := newBreaker(cfg, client.UpstreamCatalog, logger)
		weatherClient.SetCircuitBreaker(weatherBreaker)
		catalogClient.SetCircuitBreaker(catalogBreaker)
		breakers = append(breakers, weatherBreaker, catalogBreaker)
		logger.Info("circuit breakers enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	tracker := lifecycle.NewTracker()
	handler := httphandler.NewHandler(
		assets.NewDirServer(cfg.PagesDir, cfg.StylesDir),
		employees.NewRepository(cfg.EmployeesFile),
		service.NewProductService(catalogClient),
		service.NewWeatherService(locator, weatherClient),
		httphandler.Options{Lifecycle: tracker, Breakers: breakers, Version: version},
	)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		RateLimiter:    limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	addr, serveErr, err := startServer(srv, cfg.ListenAddr, tracker)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", cfg.ListenAddr), zap.Error(err))
	}
	logger.Info("server started", zap.String("addr", addr.String()), zap.String("version", version))
	go func() {
		if err := <-serveErr; err != nil {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	tracker.BeginDrain()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if maxmind != nil {
		if err := maxmind.Close(); err != nil {
			logger.Error("geolocation database close", zap.Error(err))
		}
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := observability.FlushTelemetry(flushCtx, logger, shutdownTracing); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newBreaker(cfg *config.Config, component string, logger *zap.Logger) *circuitbreaker.Breaker {
	observability.CircuitBreakerState.WithLabelValues(component).Set(0)
	return circuitbreaker.New(circuitbreaker.Config{
		Name:             component,
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		OpenTimeout:      cfg.CircuitBreakerTimeout,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String(), int(to))
			logger.Warn("circuit breaker state change",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// startServer binds addr, marks the tracker serving once the port is held, and serves in
// the background. The channel yields the terminal Serve error, nil after Shutdown.
func startServer(srv *http.Server, addr string, tracker *lifecycle.Tracker) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	tracker.MarkServing()
	errc := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()
	return ln.Addr(), errc, nil
}
