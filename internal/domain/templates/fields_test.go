package templates

import "testing"

func visaFields() []Field {
	return []Field{
		{Name: "destination", Type: FieldText, Required: true},
		{Name: "travelDates", Type: FieldText, Required: true},
		{Name: "visaCategory", Type: FieldSelect, Options: []string{"Business", "Tourist"}},
		{Name: "departureDate", Type: FieldDate},
	}
}

func TestValidateDetailsAccepts(t *testing.T) {
	details := map[string]string{
		"destination":   "Japan",
		"travelDates":   "1-15 July",
		"visaCategory":  "business",
		"departureDate": "2025-07-01",
	}
	if issues := ValidateDetails(visaFields(), details); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestValidateDetailsRequired(t *testing.T) {
	issues := ValidateDetails(visaFields(), map[string]string{"destination": "Japan"})
	if len(issues) != 1 || issues[0].Field != "travelDates" || issues[0].Reason != "required" {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestValidateDetailsRequiredBlank(t *testing.T) {
	issues := ValidateDetails(visaFields(), map[string]string{
		"destination": "  ",
		"travelDates": "1-15 July",
	})
	if len(issues) != 1 || issues[0].Field != "destination" {
		t.Fatalf("blank required field must fail: %v", issues)
	}
}

func TestValidateDetailsUnknownKey(t *testing.T) {
	issues := ValidateDetails(visaFields(), map[string]string{
		"destination": "Japan",
		"travelDates": "1-15 July",
		"favoriteDog": "corgi",
	})
	if len(issues) != 1 || issues[0].Field != "favoriteDog" || issues[0].Reason != "unknown field" {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestValidateDetailsBadDateAndOption(t *testing.T) {
	issues := ValidateDetails(visaFields(), map[string]string{
		"destination":   "Japan",
		"travelDates":   "1-15 July",
		"visaCategory":  "Diplomatic",
		"departureDate": "01/07/2025",
	})
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
}

func TestValidateDetailsNoFieldsRejectsEverything(t *testing.T) {
	issues := ValidateDetails(nil, map[string]string{"anything": "x"})
	if len(issues) != 1 || issues[0].Reason != "unknown field" {
		t.Fatalf("unexpected issues: %v", issues)
	}
}
