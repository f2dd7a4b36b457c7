package employee

import "time"

type Employee struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employeeId"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Title      string     `json:"title"`
	Department string     `json:"department"`
	Address    string     `json:"address"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	Role       string     `json:"role"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type UpsertInput struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Title      string `json:"title"`
	Department string `json:"department"`
	Address    string `json:"address"`
	StartDate  string `json:"startDate"`
	Role       string `json:"role"`
	Password   string `json:"password,omitempty"`
}
