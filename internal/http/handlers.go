package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/company-portal/internal/assets"
	"github.com/kjstillabower/company-portal/internal/circuitbreaker"
	"github.com/kjstillabower/company-portal/internal/client"
	"github.com/kjstillabower/company-portal/internal/employees"
	"github.com/kjstillabower/company-portal/internal/geo"
	"github.com/kjstillabower/company-portal/internal/lifecycle"
	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/observability"
	"github.com/kjstillabower/company-portal/internal/service"
)

const (
	stylesPrefix = "/styles/"

	notFoundBody    = "404 Not Found"
	cssNotFoundBody = "404 CSS File Not Found"

	msgLocationUnavailable = "Could not determine location"
	msgWeatherUnavailable  = "Could not fetch weather data"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	assets    *assets.Server
	employees *employees.Repository
	products  *service.ProductService
	weather   *service.WeatherService
	lifecycle *lifecycle.Tracker
	breakers  []*circuitbreaker.Breaker
	version   string
}

// Options carries the optional parts of a Handler.
type Options struct {
	Lifecycle *lifecycle.Tracker        // nil reports healthy unconditionally
	Breakers  []*circuitbreaker.Breaker // reported under health checks
	Version   string
}

// NewHandler returns a new Handler.
func NewHandler(
	assetServer *assets.Server,
	repo *employees.Repository,
	products *service.ProductService,
	weather *service.WeatherService,
	opts Options,
) *Handler {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Handler{
		assets:    assetServer,
		employees: repo,
		products:  products,
		weather:   weather,
		lifecycle: opts.Lifecycle,
		breakers:  opts.Breakers,
		version:   opts.Version,
	}
}

// Page returns a handler serving the named HTML page.
func (h *Handler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h.assets.Page(name)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Error("page unavailable", zap.String("page", name), zap.Error(err))
			writeInternalError(w)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// Style serves /styles/<name>. Only the final path element of <name> is used.
// Missing and unreadable stylesheets both answer 404.
func (h *Handler) Style(w http.ResponseWriter, r *http.Request) {
	requested := strings.TrimPrefix(r.URL.Path, stylesPrefix)
	data, err := h.assets.Style(requested)
	if err != nil {
		logger := observability.LoggerFromContext(r.Context())
		if errors.Is(err, assets.ErrNotFound) {
			logger.Debug("stylesheet not found", zap.String("requested", requested), zap.Error(err))
		} else {
			logger.Error("stylesheet unreadable", zap.String("requested", requested), zap.Error(err))
		}
		writeText(w, http.StatusNotFound, cssNotFoundBody)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// EmployeeList handles /employeeList: every employee, salary removed.
func (h *Handler) EmployeeList(w http.ResponseWriter, r *http.Request) {
	list, ok := h.loadEmployees(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, employees.RedactSalary(list))
}

// OldestEmployee handles /oldestEmployee: the full record with the earliest hire date.
func (h *Handler) OldestEmployee(w http.ResponseWriter, r *http.Request) {
	list, ok := h.loadEmployees(w, r)
	if !ok {
		return
	}
	oldest, err := employees.FindOldest(list)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("oldest employee", zap.Error(err))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, oldest)
}

type averageSalaryResponse struct {
	AverageSalary string `json:"avarageSalary"`
}

// AverageSalary handles /avarageSalary.
func (h *Handler) AverageSalary(w http.ResponseWriter, r *http.Request) {
	list, ok := h.loadEmployees(w, r)
	if !ok {
		return
	}
	avg, err := employees.AverageSalary(list)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("average salary", zap.Error(err))
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, averageSalaryResponse{AverageSalary: avg})
}

// loadEmployees writes the 500 response itself and reports false on failure.
func (h *Handler) loadEmployees(w http.ResponseWriter, r *http.Request) ([]models.Employee, bool) {
	list, err := h.employees.Load(r.Context())
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("employee data unavailable",
			zap.String("path", h.employees.Path()),
			zap.Error(err))
		writeInternalError(w)
		return nil, false
	}
	return list, true
}

// TopProducts handles /api/top100products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.TopProducts(r.Context())
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn("catalog unavailable",
			zap.String("category", string(client.CategorizeError(err))),
			zap.Int("upstream_status", client.StatusCode(err)),
			zap.Error(err))
		writeInternalError(w)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// Weather handles /api/how-is-your-weather for the calling client's location.
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	report, err := h.weather.ForClient(r.Context(), r.Header, r.RemoteAddr)
	if err != nil {
		logger := observability.LoggerFromContext(r.Context())
		if errors.Is(err, geo.ErrUnavailable) {
			logger.Debug("weather: location unavailable", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, models.WeatherResponse{Success: false, Message: msgLocationUnavailable})
			return
		}
		logger.Warn("weather unavailable",
			zap.String("category", string(client.CategorizeError(err))),
			zap.Int("upstream_status", client.StatusCode(err)),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.WeatherResponse{Success: false, Message: msgWeatherUnavailable})
		return
	}
	writeJSON(w, http.StatusOK, models.WeatherResponse{Success: true, Data: &report})
}

type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Health handles /health: 200 while serving, 503 otherwise. Open circuit breakers are
// reported but do not fail the check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.lifecycle != nil && !h.lifecycle.Ready() {
		status, code = h.lifecycle.State().String(), http.StatusServiceUnavailable
	}
	resp := healthResponse{
		Status:    status,
		Service:   observability.ServiceName,
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.lifecycle != nil {
		resp.Uptime = h.lifecycle.Uptime().Round(time.Second).String()
	}
	if len(h.breakers) > 0 {
		resp.Checks = make(map[string]string, len(h.breakers))
		for _, b := range h.breakers {
			if b != nil {
				resp.Checks[b.Name()] = b.State().String()
			}
		}
	}
	writeJSON(w, code, resp)
}

// NotFound is the fallback for every path no route claims.
func NotFound(w http.ResponseWriter, r *http.Request) {
	observability.LoggerFromContext(r.Context()).Debug("no route", zap.String("path", r.URL.Path))
	writeText(w, http.StatusNotFound, notFoundBody)
}
