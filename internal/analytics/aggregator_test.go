package analytics

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
)

var (
	critical = model.Finding{RuleID: "invalid_cpt_code", RuleName: "Invalid CPT Code", Severity: model.SeverityCritical, Confidence: 1}
	warning  = model.Finding{RuleID: "charge_anomaly", RuleName: "Charge Amount Anomaly", Severity: model.SeverityWarning, Confidence: 0.7}
	info     = model.Finding{RuleID: "note", RuleName: "Note", Severity: model.SeverityInfo, Confidence: 1}
)

func claim(id string, created time.Time, q model.Queue, charges []float64, findings ...model.Finding) *model.Claim {
	return &model.Claim{
		ID:        id,
		Queue:     q,
		Findings:  findings,
		Data:      model.ExtractedData{Charges: charges},
		CreatedAt: created,
	}
}

func day(d, h int) time.Time {
	return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC)
}

func sampleClaims() []*model.Claim {
	return []*model.Claim{
		claim("a", day(15, 9), model.QueueCriticalErrors, []float64{450.00}, critical, critical, warning),
		claim("b", day(15, 10), model.QueueWarningsOnly, []float64{850.00}, warning),
		claim("c", day(16, 11), model.QueueApprovedClaims, []float64{125.00}),
		claim("d", day(16, 12), model.QueueApprovedClaims, []float64{0.25, 0.5}, info),
		claim("e", day(17, 8), model.QueueApprovedClaims, []float64{300.00}, critical), // manually approved
	}
}

func TestAggregate_Empty(t *testing.T) {
	snap := Aggregate(nil, Window{})

	if snap.TotalClaims != 0 || snap.DenialRate != 0 || snap.RevenueProtected != 0 || snap.TotalRevenue != 0 {
		t.Errorf("Expected all-zero snapshot, got %+v", snap)
	}
	if len(snap.Queues) != 3 {
		t.Fatalf("Expected all three queues, got %+v", snap.Queues)
	}
	for _, q := range snap.Queues {
		if q.Count != 0 || q.Percentage != 0 || math.IsNaN(q.Percentage) {
			t.Errorf("Expected zero queue entry, got %+v", q)
		}
	}
	if math.IsNaN(snap.DenialRate) {
		t.Error("DenialRate must never be NaN")
	}
	if len(snap.Daily) != 0 || len(snap.ErrorPatterns) != 0 {
		t.Errorf("Expected empty series, got %+v / %+v", snap.Daily, snap.ErrorPatterns)
	}
	if snap.FindingsBySeverity[model.SeverityCritical] != 0 {
		t.Errorf("Unexpected severity counts: %v", snap.FindingsBySeverity)
	}
}

func TestAggregate_Counts(t *testing.T) {
	snap := Aggregate(sampleClaims(), Window{})

	if snap.TotalClaims != 5 {
		t.Fatalf("TotalClaims = %d, want 5", snap.TotalClaims)
	}

	sum := 0
	for _, q := range snap.Queues {
		sum += q.Count
	}
	if sum != snap.TotalClaims {
		t.Errorf("Queue counts sum to %d, want %d", sum, snap.TotalClaims)
	}

	if got := snap.QueueCount(model.QueueCriticalErrors); got != 1 {
		t.Errorf("CriticalErrors = %d, want 1", got)
	}
	if got := snap.QueueCount(model.QueueApprovedClaims); got != 3 {
		t.Errorf("ApprovedClaims = %d, want 3 (recorded label is used as-is)", got)
	}
	if snap.Queues[2].Percentage != 60 {
		t.Errorf("ApprovedClaims percentage = %v, want 60", snap.Queues[2].Percentage)
	}

	// a and e carry Critical findings
	if snap.DenialRate != 0.4 {
		t.Errorf("DenialRate = %v, want 0.4", snap.DenialRate)
	}
	if snap.RevenueProtected != 1300 {
		t.Errorf("RevenueProtected = %v, want 1300", snap.RevenueProtected)
	}
	if snap.FindingsBySeverity[model.SeverityCritical] != 3 || snap.FindingsBySeverity[model.SeverityWarning] != 2 || snap.FindingsBySeverity[model.SeverityInfo] != 1 {
		t.Errorf("Unexpected severity counts: %v", snap.FindingsBySeverity)
	}
}

func TestAggregate_DailySeries(t *testing.T) {
	snap := Aggregate(sampleClaims(), Window{})

	want := []model.DailyStats{
		{Date: "2024-01-15", ClaimsProcessed: 2, FindingsFound: 4, Revenue: 1300},
		{Date: "2024-01-16", ClaimsProcessed: 2, FindingsFound: 1, Revenue: 125.75},
		{Date: "2024-01-17", ClaimsProcessed: 1, FindingsFound: 1, Revenue: 300},
	}
	if !reflect.DeepEqual(snap.Daily, want) {
		t.Errorf("Daily = %+v\nwant %+v", snap.Daily, want)
	}
}

func TestAggregate_BoundedWindowFillsEmptyDays(t *testing.T) {
	w, err := NewWindow(day(14, 0), day(19, 0), "UTC")
	if err != nil {
		t.Fatal(err)
	}

	snap := Aggregate(sampleClaims(), w)

	if len(snap.Daily) != 5 {
		t.Fatalf("Expected 5 days (14th-18th), got %+v", snap.Daily)
	}
	if snap.Daily[0].Date != "2024-01-14" || snap.Daily[0].ClaimsProcessed != 0 {
		t.Errorf("Expected empty first day, got %+v", snap.Daily[0])
	}
	if snap.Daily[4].Date != "2024-01-18" {
		t.Errorf("Expected last day 2024-01-18, got %s", snap.Daily[4].Date)
	}
}

func TestAggregate_WindowIsHalfOpen(t *testing.T) {
	w := Window{Start: day(15, 10), End: day(16, 12)}
	snap := Aggregate(sampleClaims(), w)

	// b (15th 10:00) and c (16th 11:00) are in; d at exactly End is out
	if snap.TotalClaims != 2 {
		t.Errorf("TotalClaims = %d, want 2", snap.TotalClaims)
	}
}

func TestAggregate_DayBucketsUseWindowLocation(t *testing.T) {
	// 03:00 UTC on the 16th is still the 15th in New York
	claims := []*model.Claim{claim("late", time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC), model.QueueApprovedClaims, nil)}

	w, err := NewWindow(time.Time{}, time.Time{}, "America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	snap := Aggregate(claims, w)
	if len(snap.Daily) != 1 || snap.Daily[0].Date != "2024-01-15" {
		t.Errorf("Expected bucket 2024-01-15, got %+v", snap.Daily)
	}
	if snap.Timezone != "America/New_York" {
		t.Errorf("Timezone = %s", snap.Timezone)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	claims := sampleClaims()
	want := Aggregate(claims, Window{})

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		shuffled := append([]*model.Claim(nil), claims...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		if got := Aggregate(shuffled, Window{}); !reflect.DeepEqual(got, want) {
			t.Fatalf("Aggregate differs for shuffled input:\n%+v\n%+v", got, want)
		}
	}
}

func TestAggregate_ErrorPatterns(t *testing.T) {
	snap := Aggregate(sampleClaims(), Window{})

	want := []model.ErrorPattern{
		{RuleID: "invalid_cpt_code", RuleName: "Invalid CPT Code", Severity: model.SeverityCritical, Count: 3},
		{RuleID: "charge_anomaly", RuleName: "Charge Amount Anomaly", Severity: model.SeverityWarning, Count: 2},
		{RuleID: "note", RuleName: "Note", Severity: model.SeverityInfo, Count: 1},
	}
	if !reflect.DeepEqual(snap.ErrorPatterns, want) {
		t.Errorf("ErrorPatterns = %+v\nwant %+v", snap.ErrorPatterns, want)
	}
}

func TestAggregate_UnknownQueueLabelDoesNotBreakTotals(t *testing.T) {
	claims := []*model.Claim{
		claim("x", day(15, 9), model.Queue("Legacy"), []float64{10}, warning),
		nil,
	}

	snap := Aggregate(claims, Window{})
	if snap.TotalClaims != 1 || snap.QueueCount(model.QueueWarningsOnly) != 1 {
		t.Errorf("Expected the claim counted under its routed queue, got %+v", snap.Queues)
	}
}

func TestNewWindow(t *testing.T) {
	if _, err := NewWindow(day(16, 0), day(15, 0), ""); err == nil {
		t.Error("Expected error for inverted window")
	}
	if _, err := NewWindow(time.Time{}, time.Time{}, "Mars/Olympus_Mons"); err == nil {
		t.Error("Expected error for unknown timezone")
	}
	w, err := NewWindow(time.Time{}, time.Time{}, "")
	if err != nil || w.Location != time.UTC {
		t.Errorf("Expected UTC default, got %v, %v", w.Location, err)
	}
}

func TestNewWindow_SpanLimit(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewWindow(start, start.Add(MaxWindowSpan), ""); err != nil {
		t.Errorf("Window at the limit should be accepted: %v", err)
	}
	if _, err := NewWindow(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), ""); err == nil {
		t.Error("Expected error for a window spanning millennia")
	}
}

func TestAggregate_WideRangeListsObservedDaysOnly(t *testing.T) {
	claims := []*model.Claim{
		claim("a", time.Date(1, 1, 1, 12, 0, 0, 0, time.UTC), model.QueueApprovedClaims, []float64{10}),
		claim("b", time.Date(9999, 12, 30, 12, 0, 0, 0, time.UTC), model.QueueApprovedClaims, []float64{20}),
	}

	wide := Window{Start: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)}
	for _, w := range []Window{{}, wide} {
		snap := Aggregate(claims, w)
		if len(snap.Daily) != 2 {
			t.Fatalf("Expected 2 daily entries, got %d", len(snap.Daily))
		}
		if snap.Daily[0].Date != "0001-01-01" || snap.Daily[1].Date != "9999-12-30" {
			t.Errorf("Daily = %+v", snap.Daily)
		}
	}
}
