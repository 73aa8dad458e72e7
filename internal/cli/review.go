package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/pipeline"
	"github.com/maccolaco/claimsense/internal/worker"
	"github.com/spf13/cobra"
)

var (
	actor  string
	reason string
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored claim as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error) {
			return p.Get(ctx, args[0])
		})
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Manually approve a claim regardless of its findings",
	Long: `Approve moves a claim to ApprovedClaims and status Approved. Findings are
kept and the override is recorded with the actor and reason.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error) {
			return p.Approve(ctx, args[0], actor, reason)
		})
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error) {
			return p.Reject(ctx, args[0], actor, reason)
		})
	},
}

var revalidateCmd = &cobra.Command{
	Use:   "revalidate <id>",
	Short: "Re-run the current rules against a stored claim",
	Long:  `Revalidate replaces the findings, re-derives the queue and clears any manual override.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error) {
			return p.Revalidate(ctx, args[0], actor)
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <file>",
	Short: "Replace a claim's extracted data from a document file and revalidate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := worker.ReadDocumentsFromFile(args[1])
		if err != nil {
			return err
		}
		if len(docs) != 1 {
			return fmt.Errorf("%s must hold exactly one document, found %d", args[1], len(docs))
		}
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error) {
			return p.Edit(ctx, args[0], docs[0].Data, actor)
		})
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Add a reviewer comment to a claim",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error) {
			return p.Comment(ctx, args[0], actor, args[1])
		})
	},
}

var advanceCmd = &cobra.Command{
	Use:   "advance <id> <status>",
	Short: "Move a claim to the next lifecycle status (UnderReview, Submitted, Paid, ...)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		next := model.ClaimStatus(args[1])
		if !next.Valid() {
			return fmt.Errorf("unknown status %q", args[1])
		}
		return withPipeline(func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error) {
			return p.Advance(ctx, args[0], next, actor)
		})
	},
}

// withPipeline runs fn against an open pipeline and prints the resulting claim
func withPipeline(fn func(ctx context.Context, p *pipeline.Pipeline) (*model.Claim, error)) error {
	p, _, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	c, err := fn(context.Background(), p)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ %s: status %s, queue %s\n", c.ID, c.Status, c.Queue)
	return pipeline.WriteJSON(c, "-")
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func init() {
	for _, cmd := range []*cobra.Command{approveCmd, rejectCmd, revalidateCmd, editCmd, commentCmd, advanceCmd} {
		cmd.Flags().StringVar(&actor, "actor", defaultActor(), "who is making the change")
		rootCmd.AddCommand(cmd)
	}
	approveCmd.Flags().StringVar(&reason, "reason", "", "why the claim is approved despite its findings")
	rejectCmd.Flags().StringVar(&reason, "reason", "", "why the claim is rejected")
	rootCmd.AddCommand(showCmd)
}
