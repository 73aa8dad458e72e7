package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	dryRun       bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Evaluate many claims in parallel and store them",
	Long: `Batch evaluates every claim document in a file concurrently:
- Read documents from a JSON array or a .jsonl file
- Evaluate claims in parallel with a configurable worker count
- Optionally throttle per payer (rate_limiting in the config)
- Store every evaluated claim for review and analytics

Example:
  claimsense batch claims.jsonl
  claimsense batch claims.jsonl --concurrency 8 --output-dir ./reports
  claimsense batch claims.json --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write claims.json and claims.md here")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate without storing")
	addLLMFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	printBanner("ClaimSense Batch Evaluation")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Store:        %s\n", storeLabel(cfg))
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	docs, err := worker.ReadDocumentsFromFile(file)
	if err != nil {
		return fmt.Errorf("read documents: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d documents\n\n", len(docs))

	p, err := openPipelineWith(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	results := p.Ingest(ctx, docs, !dryRun)
	claims, failures := printResults(os.Stderr, results)

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := writeOutputs(claims, filepath.Join(outputDir, "claims.json"), filepath.Join(outputDir, "claims.md")); err != nil {
			return err
		}
	}

	perQueue := make(map[model.Queue]int)
	for _, c := range claims {
		perQueue[c.Queue]++
	}

	printBanner("Batch Complete")
	fmt.Fprintf(os.Stderr, "  Total:           %d claims\n", len(results))
	for _, q := range model.Queues {
		fmt.Fprintf(os.Stderr, "  %-16s %d\n", string(q)+":", perQueue[q])
	}
	fmt.Fprintf(os.Stderr, "  Failures:        %d\n", failures)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Output:          %s\n", outputDir)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func storeLabel(cfg *model.Config) string {
	if dryRun {
		return "(dry run)"
	}
	return cfg.Store.Path
}
