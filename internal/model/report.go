package model

import "time"

// AnalyticsSnapshot is the aggregate computed over the claims in one window.
// It is recomputed on request and never persisted as ground truth.
type AnalyticsSnapshot struct {
	WindowStart time.Time `json:"window_start,omitempty"` // Zero when the window is open at the start
	WindowEnd   time.Time `json:"window_end,omitempty"`   // Zero when the window is open at the end
	Timezone    string    `json:"timezone"`               // Location used for day buckets

	TotalClaims        int              `json:"total_claims"`
	Queues             []QueueCount     `json:"queues"`               // Always all three queues, most severe first
	FindingsBySeverity map[Severity]int `json:"findings_by_severity"` // Critical, Warning and Info, zero-filled
	DenialRate         float64          `json:"denial_rate"`          // Claims with >=1 Critical finding / total (0.0-1.0)
	RevenueProtected   float64          `json:"revenue_protected"`    // Charges held in CriticalErrors and WarningsOnly
	TotalRevenue       float64          `json:"total_revenue"`        // Charges across every claim in the window
	Daily              []DailyStats     `json:"daily"`
	ErrorPatterns      []ErrorPattern   `json:"error_patterns"`
}

// QueueCount is the population of one queue
type QueueCount struct {
	Queue      Queue   `json:"queue"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // 0-100
}

// DailyStats is one point of the per-day series
type DailyStats struct {
	Date            string  `json:"date"` // YYYY-MM-DD in the snapshot timezone
	ClaimsProcessed int     `json:"claims_processed"`
	FindingsFound   int     `json:"findings_found"`
	Revenue         float64 `json:"revenue"`
}

// ErrorPattern counts how often one rule fired across the window
type ErrorPattern struct {
	RuleID   string   `json:"rule_id"`
	RuleName string   `json:"rule_name"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}

// QueueCount returns the count for q, or zero when the snapshot has no entry
func (s AnalyticsSnapshot) QueueCount(q Queue) int {
	for _, qc := range s.Queues {
		if qc.Queue == q {
			return qc.Count
		}
	}
	return 0
}

// ReviewerNote contains an optional LLM-generated note for a human reviewer
// CRITICAL: This never affects findings or queue placement
type ReviewerNote struct {
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	NoteMD    string    `json:"note_md,omitempty"`  // Markdown note
	Warnings  []string  `json:"warnings,omitempty"` // Any issues (e.g., truncated response)
	CreatedAt time.Time `json:"created_at"`
}
