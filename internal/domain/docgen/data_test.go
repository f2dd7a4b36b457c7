package docgen

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBuildTemplateDataDefaults(t *testing.T) {
	req := Request{
		LetterType:   "experience",
		EmployeeID:   "STI0042",
		EmployeeName: "Priya Sharma",
		RequestDate:  time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
	}

	data := BuildTemplateData(req, Employee{}, testNow)

	if data["EMPLOYEE_NAME"] != "Priya Sharma" {
		t.Fatalf("EMPLOYEE_NAME = %q", data["EMPLOYEE_NAME"])
	}
	if data["REQUEST_DATE"] != "May 20, 2025" {
		t.Fatalf("REQUEST_DATE = %q", data["REQUEST_DATE"])
	}
	if data["CURRENT_DATE"] != "June 1, 2025" {
		t.Fatalf("CURRENT_DATE = %q", data["CURRENT_DATE"])
	}

	for _, key := range []string{"SALARY", "DESTINATION", "CERTIFICATION_NAME", "PROJECT_NAME"} {
		if data[key] != "N/A" {
			t.Fatalf("expected %s to default to N/A, got %q", key, data[key])
		}
	}
}

func TestBuildTemplateDataDetailSpellings(t *testing.T) {
	req := Request{
		LetterType:  "travel_noc",
		EmployeeID:  "STI0042",
		RequestDate: testNow,
		Details: map[string]string{
			"destination_country": "Japan",
			"travel dates":        "1-15 July",
		},
	}

	data := BuildTemplateData(req, Employee{Name: "Dev"}, testNow)

	if data["DESTINATION"] != "Japan" {
		t.Fatalf("DESTINATION = %q", data["DESTINATION"])
	}
	if data["TRAVEL_DATES"] != "1-15 July" {
		t.Fatalf("TRAVEL_DATES = %q", data["TRAVEL_DATES"])
	}
}

func TestBuildTemplateDataEmployeeFallbacks(t *testing.T) {
	emp := Employee{
		Name:       "Rahul Verma",
		Title:      "Senior Engineer",
		Department: "Platform",
		StartDate:  "2021-04-01",
	}
	req := Request{LetterType: "experience", EmployeeID: "STI0007", RequestDate: testNow}

	data := BuildTemplateData(req, emp, testNow)

	if data["EMPLOYEE_NAME"] != "Rahul Verma" {
		t.Fatalf("EMPLOYEE_NAME = %q", data["EMPLOYEE_NAME"])
	}
	if data["POSITION"] != "Senior Engineer" {
		t.Fatalf("POSITION = %q", data["POSITION"])
	}
	if data["DEPARTMENT"] != "Platform" {
		t.Fatalf("DEPARTMENT = %q", data["DEPARTMENT"])
	}
	if data["START_DATE"] != "2021-04-01" {
		t.Fatalf("START_DATE = %q", data["START_DATE"])
	}
}

func TestBuildTemplateDataAliases(t *testing.T) {
	req := Request{
		LetterType:  "certification",
		EmployeeID:  "STI0042",
		RequestDate: testNow,
		Details: map[string]string{
			"certificationName": "AWS Solutions Architect",
			"certificationCost": "30000",
		},
	}

	data := BuildTemplateData(req, Employee{Name: "Dev"}, testNow)

	if data["certification_name"] != "AWS Solutions Architect" {
		t.Fatalf("snake alias missing: %q", data["certification_name"])
	}
	if data["CertificationName"] != "AWS Solutions Architect" {
		t.Fatalf("pascal alias missing: %q", data["CertificationName"])
	}
	if data["CourseName"] != "AWS Solutions Architect" {
		t.Fatalf("CourseName alias missing: %q", data["CourseName"])
	}
	if data["Amount"] != "30000" {
		t.Fatalf("Amount alias missing: %q", data["Amount"])
	}
}

func TestJoinDetailsReadableLabels(t *testing.T) {
	req := Request{
		LetterType:  "visa",
		EmployeeID:  "STI0042",
		RequestDate: testNow,
		Details: map[string]string{
			"travelDates": "1-15 July",
			"destination": "Japan",
		},
	}

	data := BuildTemplateData(req, Employee{}, testNow)
	joined := data["ADDITIONAL_DETAILS"]

	if !strings.Contains(joined, "Travel Dates: 1-15 July") {
		t.Fatalf("camelCase label not split: %q", joined)
	}
	if !strings.Contains(joined, "Destination: Japan") {
		t.Fatalf("missing detail line: %q", joined)
	}
}
