package employee

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

var rosterHeader = []string{"employeeId", "name", "email", "title", "department", "address", "startDate", "role"}

// WriteRosterCSV writes the employee roster export.
func WriteRosterCSV(w io.Writer, employees []Employee) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(rosterHeader); err != nil {
		return err
	}
	for _, emp := range employees {
		startDate := ""
		if emp.StartDate != nil {
			startDate = emp.StartDate.Format("2006-01-02")
		}
		record := []string{
			emp.EmployeeID, emp.Name, emp.Email, emp.Title,
			emp.Department, emp.Address, startDate, emp.Role,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ParseRosterCSV reads a roster import. The header row is required and
// column order must match the export.
func ParseRosterCSV(r io.Reader) ([]UpsertInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 || !strings.EqualFold(strings.TrimSpace(header[0]), "employeeId") {
		return nil, fmt.Errorf("unexpected header: %v", header)
	}

	var out []UpsertInput
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		input := UpsertInput{EmployeeID: strings.TrimSpace(field(record, 0))}
		input.Name = strings.TrimSpace(field(record, 1))
		input.Email = strings.TrimSpace(field(record, 2))
		input.Title = strings.TrimSpace(field(record, 3))
		input.Department = strings.TrimSpace(field(record, 4))
		input.Address = strings.TrimSpace(field(record, 5))
		input.StartDate = strings.TrimSpace(field(record, 6))
		input.Role = strings.TrimSpace(field(record, 7))

		if input.EmployeeID == "" || input.Name == "" || input.Email == "" {
			return nil, fmt.Errorf("line %d: employeeId, name and email are required", line)
		}
		if input.StartDate != "" {
			if _, err := time.Parse("2006-01-02", input.StartDate); err != nil {
				return nil, fmt.Errorf("line %d: startDate must be YYYY-MM-DD", line)
			}
		}
		out = append(out, input)
	}
	return out, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
