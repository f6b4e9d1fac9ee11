package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
// Built once at startup and passed to constructors; never mutated afterwards.
type Config struct {
	ListenAddr string

	PagesDir      string
	StylesDir     string
	EmployeesFile string
	GeoDatabase   string // empty disables geolocation; weather requests then answer 400

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	CatalogAPIURL     string
	CatalogAPITimeout time.Duration
	CatalogPages      int
	CatalogPageSize   int

	RequestTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int // 0 (default) disables rate limiting on /api routes
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	ZipkinURL string
}

type fileConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Content struct {
		PagesDir      string `yaml:"pages_dir"`
		StylesDir     string `yaml:"styles_dir"`
		EmployeesFile string `yaml:"employees_file"`
	} `yaml:"content"`

	Geo struct {
		Database string `yaml:"database"`
	} `yaml:"geo"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	CatalogAPI struct {
		URL      string `yaml:"url"`
		Timeout  string `yaml:"timeout"`
		Pages    int    `yaml:"pages"`
		PageSize int    `yaml:"page_size"`
	} `yaml:"catalog_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     *int   `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Tracing struct {
		ZipkinURL string `yaml:"zipkin_url"`
	} `yaml:"tracing"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

const (
	defaultListenAddr = "127.0.0.1:3000"
	defaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"
	defaultCatalogURL = "https://dummyjson.com/products"
)

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and the optional
// config/secrets.yaml under the working directory. The weather API key comes from
// WEATHER_API_KEY or the secrets file; a missing key is not an error here. Call from
// project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load with an explicit project root. Relative content paths are
// resolved against root.
func LoadFrom(root string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ListenAddr = firstNonEmpty(os.Getenv("LISTEN_ADDR"), fc.Server.Addr, defaultListenAddr)

	cfg.PagesDir = resolvePath(root, firstNonEmpty(fc.Content.PagesDir, "web/pages"))
	cfg.StylesDir = resolvePath(root, firstNonEmpty(fc.Content.StylesDir, "web/styles"))
	cfg.EmployeesFile = resolvePath(root, firstNonEmpty(fc.Content.EmployeesFile, "data/employees.json"))
	if db := strings.TrimSpace(firstNonEmpty(os.Getenv("GEOIP_DATABASE"), fc.Geo.Database)); db != "" {
		cfg.GeoDatabase = resolvePath(root, db)
	}

	cfg.WeatherAPIKey = strings.TrimSpace(os.Getenv("WEATHER_API_KEY"))
	if cfg.WeatherAPIKey == "" {
		key, err := loadAPIKeyFromSecrets(filepath.Join(root, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}

	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, defaultWeatherURL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)

	cfg.CatalogAPIURL = firstNonEmpty(fc.CatalogAPI.URL, defaultCatalogURL)
	cfg.CatalogAPITimeout = parseDurationOrZero(fc.CatalogAPI.Timeout, 5*time.Second)
	cfg.CatalogPages = fc.CatalogAPI.Pages
	if cfg.CatalogPages <= 0 {
		cfg.CatalogPages = 10
	}
	cfg.CatalogPageSize = fc.CatalogAPI.PageSize
	if cfg.CatalogPageSize <= 0 {
		cfg.CatalogPageSize = 10
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = 0
	if fc.Reliability.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.Reliability.RateLimitRPS
	}
	if cfg.RateLimitRPS < 0 {
		cfg.RateLimitRPS = 0
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 && cfg.RateLimitRPS > 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 15*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.ZipkinURL = strings.TrimSpace(firstNonEmpty(os.Getenv("ZIPKIN_URL"), fc.Tracing.ZipkinURL))

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKeyFromSecrets returns the key from the secrets file, or "" if the file does not exist.
func loadAPIKeyFromSecrets(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects non-positive upstream timeouts and oversized catalog fan-outs,
// and raises RequestTimeout above the slowest upstream timeout.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.CatalogAPITimeout <= 0 {
		return fmt.Errorf("catalog_api.timeout must be positive")
	}
	if n := cfg.CatalogPages * cfg.CatalogPageSize; n > 100 {
		return fmt.Errorf("catalog_api pages x page_size must not exceed 100, got %d", n)
	}
	slowest := cfg.WeatherAPITimeout
	if cfg.CatalogAPITimeout > slowest {
		slowest = cfg.CatalogAPITimeout
	}
	if cfg.RequestTimeout <= slowest {
		cfg.RequestTimeout = slowest + time.Second
	}
	return nil
}
