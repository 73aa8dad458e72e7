package model

import "fmt"

// Finding is the output of one rule firing against one claim
type Finding struct {
	RuleID       string   `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Field        string   `json:"field,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
	Confidence   float64  `json:"confidence"` // 0.0-1.0
}

// Severity ranks a finding. Critical > Warning > Info.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityWarning  Severity = "Warning"
	SeverityInfo     Severity = "Info"
)

// Valid reports whether s is one of the three known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// ParseSeverity converts a stored severity string back into a Severity
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

// Queue is the triage bucket a claim is placed in
type Queue string

const (
	QueueCriticalErrors Queue = "CriticalErrors"
	QueueWarningsOnly   Queue = "WarningsOnly"
	QueueApprovedClaims Queue = "ApprovedClaims"
)

// Queues lists every queue, most severe first
var Queues = []Queue{QueueCriticalErrors, QueueWarningsOnly, QueueApprovedClaims}

// Valid reports whether q is one of the three known queues
func (q Queue) Valid() bool {
	switch q {
	case QueueCriticalErrors, QueueWarningsOnly, QueueApprovedClaims:
		return true
	default:
		return false
	}
}

// ParseQueue converts a stored queue string back into a Queue
func ParseQueue(raw string) (Queue, error) {
	q := Queue(raw)
	if !q.Valid() {
		return "", fmt.Errorf("unknown queue %q", raw)
	}
	return q, nil
}
