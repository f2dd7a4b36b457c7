package employee

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriteAndParseRoster(t *testing.T) {
	start := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	employees := []Employee{
		{EmployeeID: "STI0042", Name: "Priya Sharma", Email: "priya@example.com", Title: "Engineer", Department: "Platform", StartDate: &start, Role: "user"},
		{EmployeeID: "STI0043", Name: "Rahul Verma", Email: "rahul@example.com", Role: "admin"},
	}

	var buf bytes.Buffer
	if err := WriteRosterCSV(&buf, employees); err != nil {
		t.Fatalf("write: %v", err)
	}

	parsed, err := ParseRosterCSV(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(parsed))
	}
	if parsed[0].EmployeeID != "STI0042" || parsed[0].StartDate != "2022-03-01" {
		t.Fatalf("unexpected first row: %+v", parsed[0])
	}
	if parsed[1].Email != "rahul@example.com" {
		t.Fatalf("unexpected second row: %+v", parsed[1])
	}
}

func TestParseRosterRejectsMissingRequiredFields(t *testing.T) {
	csvData := "employeeId,name,email\nSTI0042,,missing-name@example.com\n"
	if _, err := ParseRosterCSV(strings.NewReader(csvData)); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestParseRosterRejectsBadHeader(t *testing.T) {
	csvData := "id,full_name\n1,x\n"
	if _, err := ParseRosterCSV(strings.NewReader(csvData)); err == nil {
		t.Fatal("expected error for unexpected header")
	}
}

func TestParseRosterRejectsBadDate(t *testing.T) {
	csvData := "employeeId,name,email,title,department,address,startDate,role\nSTI0042,Priya,priya@example.com,,,,01/03/2022,user\n"
	if _, err := ParseRosterCSV(strings.NewReader(csvData)); err == nil {
		t.Fatal("expected error for bad start date")
	}
}
