package queue

import "github.com/maccolaco/claimsense/internal/model"

// Route reduces findings to a queue: any Critical goes to CriticalErrors,
// otherwise any Warning goes to WarningsOnly, otherwise ApprovedClaims.
// Info findings never affect placement.
func Route(findings []model.Finding) model.Queue {
	hasWarning := false
	for _, f := range findings {
		switch f.Severity {
		case model.SeverityCritical:
			return model.QueueCriticalErrors
		case model.SeverityWarning:
			hasWarning = true
		}
	}
	if hasWarning {
		return model.QueueWarningsOnly
	}
	return model.QueueApprovedClaims
}

// Highest returns the most severe severity present, and false for an empty list
func Highest(findings []model.Finding) (model.Severity, bool) {
	var highest model.Severity
	found := false
	for _, f := range findings {
		if !found || rank(f.Severity) > rank(highest) {
			highest = f.Severity
			found = true
		}
	}
	return highest, found
}

// HasCritical reports whether any finding is Critical
func HasCritical(findings []model.Finding) bool {
	for _, f := range findings {
		if f.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

// CountBySeverity tallies findings per severity
func CountBySeverity(findings []model.Finding) map[model.Severity]int {
	counts := map[model.Severity]int{
		model.SeverityCritical: 0,
		model.SeverityWarning:  0,
		model.SeverityInfo:     0,
	}
	for _, f := range findings {
		if f.Severity.Valid() {
			counts[f.Severity]++
		}
	}
	return counts
}

func rank(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return 3
	case model.SeverityWarning:
		return 2
	case model.SeverityInfo:
		return 1
	default:
		return 0
	}
}
