package models

// Employee is one record of the employee data file.
// HireDate is kept as a string; YYYY-MM-DD values order correctly when compared lexicographically.
type Employee struct {
	FirstName string  `json:"isim"`
	LastName  string  `json:"soyisim"`
	Email     string  `json:"email"`
	Position  string  `json:"pozisyon"`
	HireDate  string  `json:"iseGirisTarihi"`
	Salary    float64 `json:"maas"`
}

// EmployeeView is an Employee with the salary removed, safe to expose publicly.
type EmployeeView struct {
	FirstName string `json:"isim"`
	LastName  string `json:"soyisim"`
	Email     string `json:"email"`
	Position  string `json:"pozisyon"`
	HireDate  string `json:"iseGirisTarihi"`
}
