package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/pipeline"
	"github.com/maccolaco/claimsense/internal/worker"
	"github.com/spf13/cobra"
)

var (
	outJSON         string
	outMD           string
	saveClaims      bool
	failOnCritical  bool
	validateTimeout time.Duration
	llmProvider     string
	llmModel        string
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate extracted claim data and show the queue each claim lands in",
	Long: `Validate reads extracted claim documents (a JSON object, a JSON array,
or a .jsonl file), runs every rule and prints the findings and the queue
each claim is routed to.

Example:
  claimsense validate claim.json
  claimsense validate claims.jsonl --json results.json --md results.md
  claimsense validate claim.json --save --llm-provider openai`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&outJSON, "json", "", "write evaluated claims as JSON (- for stdout)")
	validateCmd.Flags().StringVar(&outMD, "md", "", "write a Markdown report")
	validateCmd.Flags().BoolVar(&saveClaims, "save", false, "persist evaluated claims to the store")
	validateCmd.Flags().BoolVar(&failOnCritical, "fail-on-critical", false, "exit non-zero when any claim lands in CriticalErrors")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 2*time.Minute, "overall timeout")
	addLLMFlags(validateCmd)
}

func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "reviewer note provider (openai, ollama); empty keeps the configured one")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "reviewer note model")
}

func applyLLMFlags(cfg *model.Config) {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()

	docs, err := worker.ReadDocumentsFromFile(args[0])
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no claim documents in %s", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)

	p, err := openPipelineWith(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	results := p.Ingest(ctx, docs, saveClaims)
	claims, failures := printResults(os.Stderr, results)

	if err := writeOutputs(claims, outJSON, outMD); err != nil {
		return err
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d claims could not be evaluated", failures, len(results))
	}
	if failOnCritical {
		for _, c := range claims {
			if c.Queue == model.QueueCriticalErrors {
				return fmt.Errorf("claim %s has critical findings", c.ID)
			}
		}
	}
	return nil
}

// printResults writes one line per claim plus its findings and returns the evaluated claims
func printResults(w io.Writer, results []*worker.ClaimResult) ([]*model.Claim, int) {
	claims := make([]*model.Claim, 0, len(results))
	failures := 0

	for _, r := range results {
		name := r.Claim.Filename
		if name == "" {
			name = fmt.Sprintf("#%d", r.Position+1)
		}
		if r.Error != nil {
			failures++
			fmt.Fprintf(w, "✗ %s: %v\n", name, r.Error)
			continue
		}

		claims = append(claims, r.Claim)
		fmt.Fprintf(w, "%s %s → %s (%d findings, id %s)\n", queueMark(r.Claim.Queue), name, r.Claim.Queue, len(r.Claim.Findings), r.Claim.ID)
		for _, f := range r.Claim.Findings {
			fmt.Fprintf(w, "    [%s] %s: %s\n", f.Severity, f.RuleID, f.Message)
		}
	}

	return claims, failures
}

func queueMark(q model.Queue) string {
	switch q {
	case model.QueueCriticalErrors:
		return "✗"
	case model.QueueWarningsOnly:
		return "⚠"
	default:
		return "✓"
	}
}

func writeOutputs(claims []*model.Claim, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := pipeline.WriteJSON(claims, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}
	if mdPath != "" {
		err := pipeline.WriteMarkdownFile(mdPath, func(w io.Writer) error {
			return pipeline.RenderClaimsMarkdown(w, claims)
		})
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
	}
	return nil
}
