package employees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kjstillabower/company-portal/internal/models"
	"github.com/kjstillabower/company-portal/internal/observability"
)

// ErrDataUnavailable is returned when the employee file cannot be read or parsed.
var ErrDataUnavailable = errors.New("employee data unavailable")

// Repository reads employee records from a JSON file. The file is read on every
// call; nothing is cached between requests.
type Repository struct {
	path string
}

// NewRepository returns a Repository backed by the JSON array at path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the data file location.
func (r *Repository) Path() string {
	return r.path
}

// Load reads and parses the data file. Any failure is reported as ErrDataUnavailable
// wrapping the underlying cause; no partial result is returned.
func (r *Repository) Load(ctx context.Context) ([]models.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		observability.EmployeeLoadsTotal.WithLabelValues("read_error").Inc()
		return nil, fmt.Errorf("%w: read %s: %w", ErrDataUnavailable, r.path, err)
	}
	var list []models.Employee
	if err := json.Unmarshal(data, &list); err != nil {
		observability.EmployeeLoadsTotal.WithLabelValues("parse_error").Inc()
		return nil, fmt.Errorf("%w: parse %s: %w", ErrDataUnavailable, r.path, err)
	}
	observability.EmployeeLoadsTotal.WithLabelValues("success").Inc()
	return list, nil
}
