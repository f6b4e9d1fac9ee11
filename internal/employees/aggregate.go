package employees

import (
	"errors"
	"strconv"

	"github.com/kjstillabower/company-portal/internal/models"
)

// ErrEmptyInput is returned by aggregations that have no meaning over zero records.
var ErrEmptyInput = errors.New("no employees")

// RedactSalary projects each employee onto a view without the salary field.
// Order and length are preserved.
func RedactSalary(list []models.Employee) []models.EmployeeView {
	out := make([]models.EmployeeView, 0, len(list))
	for _, e := range list {
		out = append(out, models.EmployeeView{
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Email:     e.Email,
			Position:  e.Position,
			HireDate:  e.HireDate,
		})
	}
	return out
}

// FindOldest returns the employee with the smallest hire date string.
// On ties the earliest record in input order wins.
func FindOldest(list []models.Employee) (models.Employee, error) {
	if len(list) == 0 {
		return models.Employee{}, ErrEmptyInput
	}
	oldest := list[0]
	for _, e := range list[1:] {
		if e.HireDate < oldest.HireDate {
			oldest = e
		}
	}
	return oldest, nil
}

// AverageSalary returns the mean salary formatted with two decimals, e.g. "150.00".
func AverageSalary(list []models.Employee) (string, error) {
	if len(list) == 0 {
		return "", ErrEmptyInput
	}
	var sum float64
	for _, e := range list {
		sum += e.Salary
	}
	return strconv.FormatFloat(sum/float64(len(list)), 'f', 2, 64), nil
}
