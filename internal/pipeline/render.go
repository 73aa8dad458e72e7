package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maccolaco/claimsense/internal/model"
)

// WriteJSON writes v as indented JSON to path, or to stdout when path is "-"
func WriteJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteMarkdownFile renders with fn into path
func WriteMarkdownFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()
	return fn(f)
}

// RenderClaimsMarkdown writes one section per claim with its findings table
func RenderClaimsMarkdown(w io.Writer, claims []*model.Claim) error {
	var b strings.Builder

	b.WriteString("# Claim Validation Report\n\n")
	for _, c := range claims {
		fmt.Fprintf(&b, "## %s\n\n", displayName(c))
		fmt.Fprintf(&b, "- **Claim ID:** `%s`\n", c.ID)
		fmt.Fprintf(&b, "- **Queue:** %s\n", c.Queue)
		fmt.Fprintf(&b, "- **Status:** %s\n", c.Status)
		if c.Data.Payer != "" {
			fmt.Fprintf(&b, "- **Payer:** %s\n", c.Data.Payer)
		}
		fmt.Fprintf(&b, "- **Total charges:** $%.2f\n\n", c.Data.TotalCharges())

		if len(c.Findings) == 0 {
			b.WriteString("No findings.\n\n")
		} else {
			b.WriteString("| Severity | Rule | Message | Confidence |\n")
			b.WriteString("|---|---|---|---|\n")
			for _, f := range c.Findings {
				fmt.Fprintf(&b, "| %s | %s | %s | %.0f%% |\n",
					f.Severity, f.RuleName, escapeCell(f.Message), f.Confidence*100)
			}
			b.WriteString("\n")
		}

		if c.Note != nil {
			fmt.Fprintf(&b, "### Reviewer note (%s/%s)\n\n", c.Note.Provider, c.Note.Model)
			b.WriteString("> Generated text. It does not affect findings or queue placement.\n\n")
			b.WriteString(c.Note.NoteMD + "\n\n")
			for _, warning := range c.Note.Warnings {
				fmt.Fprintf(&b, "- ⚠ %s\n", warning)
			}
			if len(c.Note.Warnings) > 0 {
				b.WriteString("\n")
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderAnalyticsMarkdown writes the snapshot as a Markdown report
func RenderAnalyticsMarkdown(w io.Writer, s model.AnalyticsSnapshot) error {
	var b strings.Builder

	b.WriteString("# Claim Analytics\n\n")
	fmt.Fprintf(&b, "- **Window:** %s to %s (%s)\n", formatBound(s.WindowStart.IsZero(), s.WindowStart.Format("2006-01-02 15:04")),
		formatBound(s.WindowEnd.IsZero(), s.WindowEnd.Format("2006-01-02 15:04")), s.Timezone)
	fmt.Fprintf(&b, "- **Claims:** %d\n", s.TotalClaims)
	fmt.Fprintf(&b, "- **Denial rate:** %.1f%%\n", s.DenialRate*100)
	fmt.Fprintf(&b, "- **Revenue protected:** $%.2f of $%.2f\n\n", s.RevenueProtected, s.TotalRevenue)

	b.WriteString("## Queues\n\n| Queue | Claims | Share |\n|---|---|---|\n")
	for _, q := range s.Queues {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", q.Queue, q.Count, q.Percentage)
	}

	b.WriteString("\n## Findings by severity\n\n")
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityWarning, model.SeverityInfo} {
		fmt.Fprintf(&b, "- %s: %d\n", sev, s.FindingsBySeverity[sev])
	}

	if len(s.ErrorPatterns) > 0 {
		b.WriteString("\n## Top error patterns\n\n| Rule | Severity | Count |\n|---|---|---|\n")
		for _, p := range s.ErrorPatterns {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", p.RuleName, p.Severity, p.Count)
		}
	}

	if len(s.Daily) > 0 {
		b.WriteString("\n## Daily\n\n| Date | Claims | Findings | Revenue |\n|---|---|---|---|\n")
		for _, d := range s.Daily {
			fmt.Fprintf(&b, "| %s | %d | %d | $%.2f |\n", d.Date, d.ClaimsProcessed, d.FindingsFound, d.Revenue)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func displayName(c *model.Claim) string {
	if c.Filename != "" {
		return c.Filename
	}
	return c.ID
}

func formatBound(open bool, formatted string) string {
	if open {
		return "(open)"
	}
	return formatted
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
