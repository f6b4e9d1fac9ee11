package testhelpers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjstillabower/company-portal/internal/models"
)

// SampleEmployees returns a small roster whose oldest hire is Ayse (2012-03-01).
func SampleEmployees() []models.Employee {
	return []models.Employee{
		{FirstName: "Mehmet", LastName: "Kaya", Email: "mehmet@example.com", Position: "Engineer", HireDate: "2018-06-15", Salary: 12000},
		{FirstName: "Ayse", LastName: "Demir", Email: "ayse@example.com", Position: "Manager", HireDate: "2012-03-01", Salary: 20000},
		{FirstName: "Can", LastName: "Yilmaz", Email: "can@example.com", Position: "Analyst", HireDate: "2020-01-20", Salary: 10000},
	}
}

// WriteEmployees writes list as a JSON array under dir and returns the file path.
func WriteEmployees(t testing.TB, dir string, list []models.Employee) string {
	t.Helper()
	data, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal employees: %v", err)
	}
	return WriteFile(t, filepath.Join(dir, "employees.json"), string(data))
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Site is a throwaway pages/styles tree.
type Site struct {
	PagesDir  string
	StylesDir string
}

// NewSite writes the three pages and main.css under a temp dir. Each page body is
// "<page name>" so tests can tell them apart. A secret.txt sits beside the styles
// directory to catch escapes.
func NewSite(t testing.TB) Site {
	t.Helper()
	root := t.TempDir()
	s := Site{PagesDir: filepath.Join(root, "pages"), StylesDir: filepath.Join(root, "styles")}
	for _, name := range []string{"index.html", "products.html", "connect.html"} {
		WriteFile(t, filepath.Join(s.PagesDir, name), "<p>"+name+"</p>")
	}
	WriteFile(t, filepath.Join(s.StylesDir, "main.css"), "body { margin: 0; }")
	WriteFile(t, filepath.Join(root, "secret.txt"), "do not serve")
	return s
}
