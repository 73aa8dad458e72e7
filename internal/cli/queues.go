package cli

import (
	"context"
	"fmt"

	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/store"
	"github.com/spf13/cobra"
)

var (
	queueFilter string
	queueLimit  int
)

// queuesCmd represents the queues command
var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Show how many stored claims sit in each queue",
	Long: `Queues prints the population of every queue. With --queue it lists the
claims in that queue, oldest first.

Example:
  claimsense queues
  claimsense queues --queue CriticalErrors --limit 20`,
	Args: cobra.NoArgs,
	RunE: runQueues,
}

func init() {
	rootCmd.AddCommand(queuesCmd)

	queuesCmd.Flags().StringVar(&queueFilter, "queue", "", "list claims in this queue (CriticalErrors, WarningsOnly, ApprovedClaims)")
	queuesCmd.Flags().IntVar(&queueLimit, "limit", 50, "maximum claims to list")
}

func runQueues(cmd *cobra.Command, args []string) error {
	p, _, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := context.Background()

	if queueFilter == "" {
		counts, err := p.QueueCounts(ctx)
		if err != nil {
			return err
		}
		for _, q := range model.Queues {
			fmt.Printf("%-16s %d\n", q, counts[q])
		}
		return nil
	}

	q, err := model.ParseQueue(queueFilter)
	if err != nil {
		return err
	}
	claims, err := p.List(ctx, store.Filter{Queue: q, Limit: queueLimit})
	if err != nil {
		return err
	}
	for _, c := range claims {
		fmt.Printf("%s  %-12s  %s  %d findings  %s\n",
			c.CreatedAt.Format("2006-01-02 15:04"), c.Status, c.ID, len(c.Findings), c.Filename)
	}
	return nil
}
