package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
)

// ServiceDateLayouts are the accepted service date formats, tried in order
var ServiceDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	time.RFC3339,
}

// ParseServiceDate parses a raw service date using ServiceDateLayouts.
// Dates that do not exist on the calendar (e.g. 2024-02-30) fail.
func ParseServiceDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range ServiceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid service date %q", raw)
}

func serviceDateRule() Rule {
	r := Rule{
		ID:          "invalid_service_date",
		Name:        "Invalid Service Date",
		Description: "Every service date must be a real calendar date",
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		var findings []model.Finding
		for _, raw := range data.ServiceDates {
			if _, err := ParseServiceDate(raw); err != nil {
				findings = append(findings, r.finding(model.SeverityCritical,
					fmt.Sprintf("Invalid service date: %q", raw),
					"dates",
					"Correct the date of service (YYYY-MM-DD or MM/DD/YYYY)",
					1.0))
			}
		}
		return findings, nil
	}

	return r
}
