package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/company-portal/internal/assets"
	"github.com/kjstillabower/company-portal/internal/circuitbreaker"
	"github.com/kjstillabower/company-portal/internal/client"
	"github.com/kjstillabower/company-portal/internal/employees"
	"github.com/kjstillabower/company-portal/internal/geo"
	"github.com/kjstillabower/company-portal/internal/lifecycle"
	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/service"
	"github.com/kjstillabower/company-portal/internal/testhelpers"
)

type fixtureConfig struct {
	locator     geo.Locator
	apiKey      string
	employees   []models.Employee
	noEmployees bool // point the repository at a file that does not exist
	limiter     *rate.Limiter
	breakers    []*circuitbreaker.Breaker
	logger      *zap.Logger
	prepStyles  func(stylesDir string) // runs after the default site is written
}

type fixture struct {
	router    *mux.Router
	catalog   *testhelpers.CatalogServer
	weather   *testhelpers.WeatherServer
	lifecycle *lifecycle.Tracker
}

func newFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	site := testhelpers.NewSite(t)
	if cfg.prepStyles != nil {
		cfg.prepStyles(site.StylesDir)
	}
	dataDir := t.TempDir()

	empPath := filepath.Join(dataDir, "missing.json")
	if !cfg.noEmployees {
		list := cfg.employees
		if list == nil {
			list = testhelpers.SampleEmployees()
		}
		empPath = testhelpers.WriteEmployees(t, dataDir, list)
	}

	catalogSrv := testhelpers.NewCatalogServer(t)
	weatherSrv := testhelpers.NewWeatherServer(t)

	catalog, err := client.NewProductCatalogClient(catalogSrv.URL, 2*time.Second, 10, 10)
	if err != nil {
		t.Fatalf("NewProductCatalogClient() error = %v", err)
	}
	weatherClient, err := client.NewOpenWeatherClient(cfg.apiKey, weatherSrv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	tracker := lifecycle.NewTracker()
	tracker.MarkServing()

	h := NewHandler(
		assets.NewDirServer(site.PagesDir, site.StylesDir),
		employees.NewRepository(empPath),
		service.NewProductService(catalog),
		service.NewWeatherService(cfg.locator, weatherClient),
		Options{Lifecycle: tracker, Breakers: cfg.breakers, Version: "test"},
	)
	return &fixture{
		router:    NewRouter(h, RouterConfig{Logger: cfg.logger, RateLimiter: cfg.limiter, RequestTimeout: 5 * time.Second}),
		catalog:   catalogSrv,
		weather:   weatherSrv,
		lifecycle: tracker,
	}
}

func (f *fixture) do(t *testing.T, method, path string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func fromAddr(addr string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func TestRouter_UnknownPathReturns404(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	for _, path := range []string{"/nope", "/api/unknown", "/home/extra", "/styles"} {
		w := f.do(t, http.MethodGet, path)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
		if got := w.Body.String(); got != "404 Not Found" {
			t.Errorf("GET %s body = %q, want %q", path, got, "404 Not Found")
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("GET %s Content-Type = %q, want text/plain", path, ct)
		}
		if w.Header().Get("X-Correlation-ID") == "" {
			t.Errorf("GET %s missing X-Correlation-ID on 404", path)
		}
	}
}

func TestRouter_Pages(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	cases := map[string]string{
		"/":         "index.html",
		"/home":     "index.html",
		"/products": "products.html",
		"/connect":  "connect.html",
	}
	for path, page := range cases {
		w := f.do(t, http.MethodGet, path)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
			continue
		}
		if !strings.Contains(w.Body.String(), page) {
			t.Errorf("GET %s body = %q, want page %s", path, w.Body.String(), page)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s Content-Type = %q, want text/html", path, ct)
		}
	}
}

func TestRouter_RoutesAcceptAnyMethod(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		if w := f.do(t, method, "/employeeList"); w.Code != http.StatusOK {
			t.Errorf("%s /employeeList status = %d, want 200", method, w.Code)
		}
	}
}

func TestRouter_Styles(t *testing.T) {
	f := newFixture(t, fixtureConfig{})

	w := f.do(t, http.MethodGet, "/styles/main.css")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q, want text/css", ct)
	}

	// Directory components are dropped, so nested requests resolve to the base name.
	if w := f.do(t, http.MethodGet, "/styles/deep/nested/main.css"); w.Code != http.StatusOK {
		t.Errorf("nested style status = %d, want 200", w.Code)
	}
}

func TestRouter_StylesUnreadableIsNotFound(t *testing.T) {
	f := newFixture(t, fixtureConfig{prepStyles: func(dir string) {
		if err := os.Mkdir(filepath.Join(dir, "sub.css"), 0o755); err != nil {
			t.Fatalf("mkdir sub.css: %v", err)
		}
	}})

	w := f.do(t, http.MethodGet, "/styles/sub.css")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if got := w.Body.String(); got != "404 CSS File Not Found" {
		t.Errorf("body = %q, want CSS not found body", got)
	}
}

func TestRouter_StylesMissingOrEscaping(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	for _, path := range []string{
		"/styles/missing.css",
		"/styles/",
		"/styles/../secret.txt",
		"/styles/..%2Fsecret.txt",
		"/styles/.hidden.css",
		"/styles/employeeList",
	} {
		w := f.do(t, http.MethodGet, path)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
		if got := w.Body.String(); got != "404 CSS File Not Found" {
			t.Errorf("GET %s body = %q, want CSS not found body", path, got)
		}
		if strings.Contains(w.Body.String(), "do not serve") {
			t.Errorf("GET %s leaked a file outside the styles directory", path)
		}
	}
}

func TestRouter_EmployeeListRedactsSalary(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	w := f.do(t, http.MethodGet, "/employeeList")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(testhelpers.SampleEmployees()) {
		t.Fatalf("len = %d, want %d", len(got), len(testhelpers.SampleEmployees()))
	}
	for i, e := range got {
		if _, ok := e["maas"]; ok {
			t.Errorf("employee %d exposes maas", i)
		}
		if e["isim"] != testhelpers.SampleEmployees()[i].FirstName {
			t.Errorf("employee %d isim = %v, order not preserved", i, e["isim"])
		}
	}
}

func TestRouter_OldestEmployee(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	w := f.do(t, http.MethodGet, "/oldestEmployee")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got models.Employee
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FirstName != "Ayse" || got.HireDate != "2012-03-01" || got.Salary != 20000 {
		t.Errorf("oldest = %+v, want Ayse hired 2012-03-01 with salary", got)
	}
}

func TestRouter_AverageSalary(t *testing.T) {
	f := newFixture(t, fixtureConfig{employees: []models.Employee{
		{FirstName: "A", HireDate: "2020-01-01", Salary: 100},
		{FirstName: "B", HireDate: "2021-01-01", Salary: 200},
	}})
	w := f.do(t, http.MethodGet, "/avarageSalary")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"avarageSalary":"150.00"}` {
		t.Errorf("body = %s, want {\"avarageSalary\":\"150.00\"}", got)
	}
}

func TestRouter_EmployeeEndpointsFailWithoutData(t *testing.T) {
	f := newFixture(t, fixtureConfig{noEmployees: true})
	for _, path := range []string{"/employeeList", "/oldestEmployee", "/avarageSalary"} {
		w := f.do(t, http.MethodGet, path)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("GET %s status = %d, want 500", path, w.Code)
		}
		if got := w.Body.String(); got != "500 Internal Server Error" {
			t.Errorf("GET %s body = %q, want plain 500 body", path, got)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("GET %s Content-Type = %q, want text/plain", path, ct)
		}
	}
}

func TestRouter_EmptyRosterIsInternalError(t *testing.T) {
	f := newFixture(t, fixtureConfig{employees: []models.Employee{}})
	if w := f.do(t, http.MethodGet, "/employeeList"); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("/employeeList = %d %q, want 200 []", w.Code, w.Body.String())
	}
	for _, path := range []string{"/oldestEmployee", "/avarageSalary"} {
		if w := f.do(t, http.MethodGet, path); w.Code != http.StatusInternalServerError {
			t.Errorf("GET %s status = %d, want 500", path, w.Code)
		}
	}
}

func TestRouter_TopProductsMergedInOrder(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	w := f.do(t, http.MethodGet, "/api/top100products")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var got []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	for i, p := range got {
		if p.ID != i+1 {
			t.Fatalf("product %d id = %d, want %d", i, p.ID, i+1)
		}
	}
	if calls := f.catalog.Calls(); calls != 10 {
		t.Errorf("catalog calls = %d, want 10", calls)
	}
}

func TestRouter_TopProductsFailsWholeOnOnePage(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	f.catalog.FailSkip = 30
	w := f.do(t, http.MethodGet, "/api/top100products")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := w.Body.String(); got != "500 Internal Server Error" {
		t.Errorf("body = %q, want plain 500 body with no partial array", got)
	}
}

func TestRouter_WeatherUnresolvableClient(t *testing.T) {
	f := newFixture(t, fixtureConfig{apiKey: "k", locator: testhelpers.FixedLocator{Coords: models.Coordinates{Latitude: 1, Longitude: 2}}})
	for _, addr := range []string{"127.0.0.1:5000", "10.1.2.3:5000", "[::1]:5000"} {
		w := f.do(t, http.MethodGet, "/api/how-is-your-weather", fromAddr(addr))
		if w.Code != http.StatusBadRequest {
			t.Errorf("from %s status = %d, want 400", addr, w.Code)
			continue
		}
		var resp models.WeatherResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Success || resp.Message != "Could not determine location" {
			t.Errorf("from %s response = %+v", addr, resp)
		}
	}
	if q := f.weather.LastQuery(); q != "" {
		t.Errorf("weather provider called for unresolvable clients: %s", q)
	}
}

func TestRouter_WeatherSuccess(t *testing.T) {
	loc := testhelpers.FixedLocator{Coords: models.Coordinates{Latitude: 39.93, Longitude: 32.85}}
	f := newFixture(t, fixtureConfig{apiKey: "secret", locator: loc})

	w := f.do(t, http.MethodGet, "/api/how-is-your-weather", fromAddr("10.0.0.1:1"), func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "81.214.10.1, 10.0.0.1")
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp models.WeatherResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data == nil {
		t.Fatalf("response = %+v, want success with data", resp)
	}
	if resp.Data.City != "Ankara" || resp.Data.Temperature != 21.5 || resp.Data.Condition != "clear sky" {
		t.Errorf("data = %+v", *resp.Data)
	}
	q := f.weather.LastQuery()
	for _, want := range []string{"lat=39.93", "lon=32.85", "appid=secret", "units=metric"} {
		if !strings.Contains(q, want) {
			t.Errorf("upstream query %q missing %s", q, want)
		}
	}
}

func TestRouter_WeatherUpstreamFailure(t *testing.T) {
	loc := testhelpers.FixedLocator{Coords: models.Coordinates{Latitude: 1, Longitude: 2}}
	f := newFixture(t, fixtureConfig{apiKey: "k", locator: loc})
	f.weather.Status = http.StatusServiceUnavailable
	f.weather.Body = `{"message":"down"}`

	w := f.do(t, http.MethodGet, "/api/how-is-your-weather", fromAddr("81.214.10.1:4000"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"success":false,"message":"Could not fetch weather data"}` {
		t.Errorf("body = %s", got)
	}
}

func TestRouter_WeatherMissingKeyDoesNotCallOut(t *testing.T) {
	loc := testhelpers.FixedLocator{Coords: models.Coordinates{Latitude: 1, Longitude: 2}}
	f := newFixture(t, fixtureConfig{locator: loc})

	w := f.do(t, http.MethodGet, "/api/how-is-your-weather", fromAddr("81.214.10.1:4000"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if q := f.weather.LastQuery(); q != "" {
		t.Errorf("provider called without an API key: %s", q)
	}
}

func TestRouter_RateLimitAppliesToAPIOnly(t *testing.T) {
	f := newFixture(t, fixtureConfig{limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})

	if w := f.do(t, http.MethodGet, "/api/top100products"); w.Code != http.StatusOK {
		t.Fatalf("first api request status = %d, want 200", w.Code)
	}
	w := f.do(t, http.MethodGet, "/api/how-is-your-weather")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second api request status = %d, want 429", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"success":false,"message":"Too many requests"}` {
		t.Errorf("429 body = %s", got)
	}
	if w := f.do(t, http.MethodGet, "/employeeList"); w.Code != http.StatusOK {
		t.Errorf("/employeeList status = %d while api limiter exhausted, want 200", w.Code)
	}
}

func TestRouter_HealthFollowsLifecycle(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "weather"})
	f := newFixture(t, fixtureConfig{breakers: []*circuitbreaker.Breaker{breaker}})

	w := f.do(t, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Version != "test" || body.Checks["weather"] != "closed" || body.Uptime == "" {
		t.Errorf("health = %+v", body)
	}

	f.lifecycle.BeginDrain()
	w = f.do(t, http.MethodGet, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("draining status = %d, want 503", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "draining" {
		t.Errorf("draining health status = %q", body.Status)
	}
}

func TestRouter_MetricsExposition(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	f.do(t, http.MethodGet, "/nope")
	f.do(t, http.MethodGet, "/styles/main.css")

	w := f.do(t, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	for _, want := range []string{"httpRequestsTotal", `route="unmatched"`, `route="/styles/"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
