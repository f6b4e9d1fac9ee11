package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/company-portal/internal/observability"
)

// RouterConfig holds the cross-cutting settings applied by NewRouter.
type RouterConfig struct {
	Logger         *zap.Logger
	RateLimiter    *rate.Limiter // nil disables rate limiting on /api routes
	RequestTimeout time.Duration // deadline for /api routes; 0 disables
}

type route struct {
	name    string
	path    string
	prefix  bool // match by path prefix instead of exact path
	api     bool // rate limited and deadline bound
	handler http.Handler
}

// routes is the ordered dispatch table. Registration order is match order: the styles
// prefix must precede every exact path.
func (h *Handler) routes() []route {
	return []route{
		{name: "styles", path: stylesPrefix, prefix: true, handler: http.HandlerFunc(h.Style)},

		{name: "employeeList", path: "/employeeList", handler: http.HandlerFunc(h.EmployeeList)},
		{name: "oldestEmployee", path: "/oldestEmployee", handler: http.HandlerFunc(h.OldestEmployee)},
		{name: "avarageSalary", path: "/avarageSalary", handler: http.HandlerFunc(h.AverageSalary)},
		{name: "topProducts", path: "/api/top100products", api: true, handler: http.HandlerFunc(h.TopProducts)},
		{name: "weather", path: "/api/how-is-your-weather", api: true, handler: http.HandlerFunc(h.Weather)},

		{name: "index", path: "/", handler: h.Page("index.html")},
		{name: "home", path: "/home", handler: h.Page("index.html")},
		{name: "products", path: "/products", handler: h.Page("products.html")},
		{name: "connect", path: "/connect", handler: h.Page("connect.html")},

		{name: "health", path: "/health", handler: http.HandlerFunc(h.Health)},
		{name: "metrics", path: "/metrics", handler: observability.MetricsHandler()},
	}
}

// NewRouter registers the route table on a gorilla/mux router. Routes accept any method.
// Every response, the 404 fallback included, passes through correlation ID, metrics and
// panic recovery.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()
	// Style names are reduced to their last element by the handler; cleaning here would
	// redirect instead.
	r.SkipClean(true)

	common := []mux.MiddlewareFunc{
		CorrelationIDMiddleware(logger),
		MetricsMiddleware,
		RecoveryMiddleware,
	}
	r.Use(common...)

	limit := RateLimitMiddleware(cfg.RateLimiter)
	deadline := TimeoutMiddleware(cfg.RequestTimeout)

	for _, rt := range h.routes() {
		handler := rt.handler
		if rt.api {
			handler = limit(deadline(handler))
		}
		var m *mux.Route
		if rt.prefix {
			m = r.PathPrefix(rt.path)
		} else {
			m = r.Path(rt.path)
		}
		m.Name(rt.name).Handler(handler)
	}

	// mux applies Use middleware to matched routes only.
	var notFound http.Handler = http.HandlerFunc(NotFound)
	for i := len(common) - 1; i >= 0; i-- {
		notFound = common[i](notFound)
	}
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notFound

	return r
}
