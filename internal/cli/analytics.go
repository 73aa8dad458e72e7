package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maccolaco/claimsense/internal/analytics"
	"github.com/maccolaco/claimsense/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	fromFlag     string
	toFlag       string
	tzFlag       string
	analyticsOut string
	analyticsMD  string
)

// analyticsCmd represents the analytics command
var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Aggregate stored claims into queue, revenue and error-pattern statistics",
	Long: `Analytics aggregates the stored claims created inside a window.

--from and --to accept YYYY-MM-DD or RFC 3339 timestamps. Dates are read in
--tz; --to with a date includes that whole day. Omitted bounds are open.

Example:
  claimsense analytics
  claimsense analytics --from 2024-03-01 --to 2024-03-31 --tz America/New_York
  claimsense analytics --from 2024-03-01 --json - `,
	Args: cobra.NoArgs,
	RunE: runAnalytics,
}

func init() {
	rootCmd.AddCommand(analyticsCmd)

	analyticsCmd.Flags().StringVar(&fromFlag, "from", "", "window start (inclusive)")
	analyticsCmd.Flags().StringVar(&toFlag, "to", "", "window end (a date is inclusive, a timestamp exclusive)")
	analyticsCmd.Flags().StringVar(&tzFlag, "tz", "", "timezone for dates and day buckets (default analytics.timezone)")
	analyticsCmd.Flags().StringVar(&analyticsOut, "json", "", "write the snapshot as JSON (- for stdout)")
	analyticsCmd.Flags().StringVar(&analyticsMD, "md", "", "write the snapshot as Markdown")
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	p, cfg, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	tz := tzFlag
	if tz == "" {
		tz = cfg.Analytics.Timezone
	}
	w, err := parseWindow(fromFlag, toFlag, tz)
	if err != nil {
		return err
	}

	snap, err := p.Analytics(context.Background(), w)
	if err != nil {
		return err
	}

	if analyticsOut != "" {
		if err := pipeline.WriteJSON(snap, analyticsOut); err != nil {
			return err
		}
	}
	if analyticsMD != "" {
		err := pipeline.WriteMarkdownFile(analyticsMD, func(out io.Writer) error {
			return pipeline.RenderAnalyticsMarkdown(out, snap)
		})
		if err != nil {
			return err
		}
	}
	if analyticsOut == "" && analyticsMD == "" {
		return pipeline.RenderAnalyticsMarkdown(os.Stdout, snap)
	}
	return nil
}

// parseWindow builds the analytics window from flag values
func parseWindow(from, to, tz string) (analytics.Window, error) {
	loc := time.UTC
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return analytics.Window{}, fmt.Errorf("load timezone %q: %w", tz, err)
		}
	}

	start, _, err := parseBound(from, loc)
	if err != nil {
		return analytics.Window{}, fmt.Errorf("--from: %w", err)
	}
	end, dateOnly, err := parseBound(to, loc)
	if err != nil {
		return analytics.Window{}, fmt.Errorf("--to: %w", err)
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1)
	}

	return analytics.NewWindow(start, end, tz)
}

// parseBound parses a date or timestamp; dateOnly reports a bare YYYY-MM-DD
func parseBound(raw string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	return t, false, nil
}
