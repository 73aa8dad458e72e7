package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maccolaco/claimsense/internal/logging"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Revalidator evaluates a claim in place
type Revalidator interface {
	Revalidate(c *model.Claim, actor string) error
}

// BatchActor is recorded on audit events produced by batch evaluation
const BatchActor = "batch"

// ClaimJob evaluates one claim of a batch
type ClaimJob struct {
	Position    int
	Claim       *model.Claim
	Revalidator Revalidator
	Limiter     *Limiter
}

// Execute evaluates the claim unless the batch was abandoned first
func (j *ClaimJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &ClaimResult{Position: j.Position, Claim: j.Claim, Error: err}
	}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Claim.Data.Payer); err != nil {
			return &ClaimResult{Position: j.Position, Claim: j.Claim, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	if err := j.Revalidator.Revalidate(j.Claim, BatchActor); err != nil {
		return &ClaimResult{Position: j.Position, Claim: j.Claim, Error: err}
	}

	return &ClaimResult{Position: j.Position, Claim: j.Claim}
}

// ClaimResult is the outcome of one ClaimJob
type ClaimResult struct {
	Position int
	Claim    *model.Claim
	Error    error
}

// Index returns the claim's position in the batch
func (r *ClaimResult) Index() int {
	return r.Position
}

// GetError returns the evaluation error, if any
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchProcessor evaluates many claims concurrently
type BatchProcessor struct {
	revalidator Revalidator
	concurrency int
	limiter     *Limiter
	logger      *logrus.Logger
}

// NewBatchProcessor creates a batch processor. requestsPerSecond <= 0 disables per-payer limiting.
func NewBatchProcessor(revalidator Revalidator, concurrency int, requestsPerSecond float64, burst int, logger *logrus.Logger) *BatchProcessor {
	var limiter *Limiter
	if requestsPerSecond > 0 {
		limiter = NewLimiter(requestsPerSecond, burst)
	}

	return &BatchProcessor{
		revalidator: revalidator,
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logging.OrDiscard(logger),
	}
}

// SetPayerRates throttles the named payers to their own rates, turning
// limiting on for them even when the default rate is unlimited.
func (b *BatchProcessor) SetPayerRates(rates map[string]float64, burst int) {
	if len(rates) == 0 {
		return
	}
	if b.limiter == nil {
		b.limiter = NewLimiter(float64(rate.Inf), burst)
	}
	for payer, rps := range rates {
		b.limiter.SetPayerRate(payer, rps, burst)
	}
}

// ProcessClaims evaluates every claim and returns one result per claim in input order.
// Claims not reached before ctx is done carry ctx's error and are left untouched.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []*model.Claim) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	jobs := make([]Job, len(claims))
	for i, c := range claims {
		jobs[i] = &ClaimJob{
			Position:    i,
			Claim:       c,
			Revalidator: b.revalidator,
			Limiter:     b.limiter,
		}
	}

	start := time.Now()
	pool := NewPoolWithContext(ctx, b.concurrency)

	collector := NewResultCollector(len(claims))
	for _, r := range pool.Run(jobs) {
		collector.Add(r)
	}

	results := make([]*ClaimResult, len(claims))
	failed := 0
	for i, r := range collector.Results() {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &ClaimResult{Position: i, Claim: claims[i], Error: err}
		} else {
			results[i] = r.(*ClaimResult)
		}
		if results[i].Error != nil {
			failed++
		}
	}

	b.logger.WithFields(logrus.Fields{
		"claims":   len(claims),
		"failed":   failed,
		"duration": time.Since(start).String(),
	}).Info("Batch evaluation complete")

	return results
}

// Document is one extracted claim as supplied by the extraction step
type Document struct {
	Filename  string              `json:"filename"`
	Data      model.ExtractedData `json:"extracted_data"`
	CreatedAt time.Time           `json:"created_at"`
}

// ReadDocumentsFromFile loads extracted claim documents from a JSON file.
// The file may hold a single document, an array of documents, or (with a
// .jsonl extension) one document per line. Blank lines and lines starting
// with # are skipped in JSON Lines files.
func ReadDocumentsFromFile(filePath string) ([]Document, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".jsonl") {
		return readJSONLines(filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []Document{}, nil
	}

	if data[0] == '[' {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		return docs, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	return []Document{doc}, nil
}

func readJSONLines(filePath string) ([]Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	docs := []Document{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var doc Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", filePath, lineNo, err)
		}
		docs = append(docs, doc)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return docs, nil
}
