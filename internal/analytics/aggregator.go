package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/queue"
)

const dayLayout = "2006-01-02"

// MaxWindowSpan bounds the daily series a window may ask for (about ten years)
const MaxWindowSpan = 3660 * 24 * time.Hour

// Window selects claims by creation time. It is half-open, [Start, End);
// a zero bound is open on that side. Days are calendar days in Location
// (UTC when nil).
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// NewWindow builds a window from an IANA timezone name ("" means UTC)
func NewWindow(start, end time.Time, timezone string) (Window, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return Window{}, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return Window{}, fmt.Errorf("window start %s is not before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if !start.IsZero() && !end.IsZero() && end.Sub(start) > MaxWindowSpan {
		return Window{}, fmt.Errorf("window %s to %s is longer than %d days",
			start.Format(time.RFC3339), end.Format(time.RFC3339), int(MaxWindowSpan/(24*time.Hour)))
	}
	return Window{Start: start, End: end, Location: loc}, nil
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Bounded reports whether both ends of the window are set
func (w Window) Bounded() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Aggregator folds claims into an AnalyticsSnapshot
type Aggregator struct{}

// NewAggregator creates a new aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate computes the snapshot for the claims created inside w.
// Claims are folded in (CreatedAt, ID) order so the output does not depend on
// the order of the input. Each claim is counted under its recorded queue.
func (a *Aggregator) Aggregate(claims []*model.Claim, w Window) model.AnalyticsSnapshot {
	loc := w.location()

	selected := make([]*model.Claim, 0, len(claims))
	for _, c := range claims {
		if c != nil && w.Contains(c.CreatedAt) {
			selected = append(selected, c)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if !selected[i].CreatedAt.Equal(selected[j].CreatedAt) {
			return selected[i].CreatedAt.Before(selected[j].CreatedAt)
		}
		return selected[i].ID < selected[j].ID
	})

	snap := model.AnalyticsSnapshot{
		WindowStart:        w.Start,
		WindowEnd:          w.End,
		Timezone:           loc.String(),
		TotalClaims:        len(selected),
		FindingsBySeverity: queue.CountBySeverity(nil),
		Daily:              []model.DailyStats{},
		ErrorPatterns:      []model.ErrorPattern{},
	}

	queueCounts := make(map[model.Queue]int, len(model.Queues))
	denied := 0
	days := make(map[string]*model.DailyStats)
	patterns := make(map[string]*model.ErrorPattern)
	var patternOrder []string

	for _, c := range selected {
		q := recordedQueue(c)
		queueCounts[q]++

		charges := c.Data.TotalCharges()
		snap.TotalRevenue += charges
		if q == model.QueueCriticalErrors || q == model.QueueWarningsOnly {
			snap.RevenueProtected += charges
		}

		if queue.HasCritical(c.Findings) {
			denied++
		}

		for sev, n := range queue.CountBySeverity(c.Findings) {
			snap.FindingsBySeverity[sev] += n
		}

		key := c.CreatedAt.In(loc).Format(dayLayout)
		day, ok := days[key]
		if !ok {
			day = &model.DailyStats{Date: key}
			days[key] = day
		}
		day.ClaimsProcessed++
		day.FindingsFound += len(c.Findings)
		day.Revenue += charges

		for _, f := range c.Findings {
			p, ok := patterns[f.RuleID]
			if !ok {
				p = &model.ErrorPattern{RuleID: f.RuleID, RuleName: f.RuleName, Severity: f.Severity}
				patterns[f.RuleID] = p
				patternOrder = append(patternOrder, f.RuleID)
			}
			p.Count++
		}
	}

	for _, q := range model.Queues {
		snap.Queues = append(snap.Queues, model.QueueCount{
			Queue:      q,
			Count:      queueCounts[q],
			Percentage: percentage(queueCounts[q], snap.TotalClaims),
		})
	}

	if snap.TotalClaims > 0 {
		snap.DenialRate = float64(denied) / float64(snap.TotalClaims)
	}

	snap.Daily = dailySeries(days, w, loc)

	for _, id := range patternOrder {
		snap.ErrorPatterns = append(snap.ErrorPatterns, *patterns[id])
	}
	sort.SliceStable(snap.ErrorPatterns, func(i, j int) bool {
		if snap.ErrorPatterns[i].Count != snap.ErrorPatterns[j].Count {
			return snap.ErrorPatterns[i].Count > snap.ErrorPatterns[j].Count
		}
		return snap.ErrorPatterns[i].RuleID < snap.ErrorPatterns[j].RuleID
	})

	return snap
}

// Aggregate is a convenience wrapper around a zero Aggregator
func Aggregate(claims []*model.Claim, w Window) model.AnalyticsSnapshot {
	return NewAggregator().Aggregate(claims, w)
}

// recordedQueue returns the claim's queue label; a label outside the closed
// set is replaced by the queue its findings route to.
func recordedQueue(c *model.Claim) model.Queue {
	if c.Queue.Valid() {
		return c.Queue
	}
	return queue.Route(c.Findings)
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// dailySeries orders the day buckets. A bounded window emits every calendar
// day it touches, including empty ones; otherwise the series runs from the
// first to the last observed day. Ranges longer than MaxWindowSpan list
// only the observed days.
func dailySeries(days map[string]*model.DailyStats, w Window, loc *time.Location) []model.DailyStats {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var first, last time.Time
	if w.Bounded() {
		first = w.Start.In(loc)
		last = w.End.Add(-time.Nanosecond).In(loc)
	} else {
		if len(keys) == 0 {
			return []model.DailyStats{}
		}
		first, _ = time.ParseInLocation(dayLayout, keys[0], loc)
		last, _ = time.ParseInLocation(dayLayout, keys[len(keys)-1], loc)
	}

	if last.Sub(first) > MaxWindowSpan {
		series := make([]model.DailyStats, 0, len(keys))
		for _, k := range keys {
			series = append(series, *days[k])
		}
		return series
	}

	series := []model.DailyStats{}
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)
	for !day.After(end) {
		key := day.Format(dayLayout)
		if stats, ok := days[key]; ok {
			series = append(series, *stats)
		} else {
			series = append(series, model.DailyStats{Date: key})
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}

	return series
}
