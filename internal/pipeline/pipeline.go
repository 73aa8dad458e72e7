package pipeline

import (
	"context"
	"fmt"

	"github.com/maccolaco/claimsense/internal/analytics"
	"github.com/maccolaco/claimsense/internal/cache"
	"github.com/maccolaco/claimsense/internal/evaluate"
	"github.com/maccolaco/claimsense/internal/llm"
	"github.com/maccolaco/claimsense/internal/logging"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/review"
	"github.com/maccolaco/claimsense/internal/rules"
	"github.com/maccolaco/claimsense/internal/store"
	"github.com/maccolaco/claimsense/internal/worker"
	"github.com/sirupsen/logrus"
)

// Pipeline wires the rule catalog, lifecycle service, store and optional
// reviewer notes from one configuration.
type Pipeline struct {
	config     *model.Config
	logger     *logrus.Logger
	store      *store.SQLiteStore
	evaluator  *evaluate.Evaluator
	service    *review.Service
	batch      *worker.BatchProcessor
	annotator  *llm.Annotator
	aggregator *analytics.Aggregator
}

// New opens the claim store and builds every component described by cfg
func New(cfg *model.Config, logger *logrus.Logger) (*Pipeline, error) {
	logger = logging.OrDiscard(logger)

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	baseline, err := buildBaseline(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	catalog := rules.Default(rules.OptionsFromConfig(cfg.Rules, baseline))
	evaluator := evaluate.NewEvaluator(catalog, cfg.Concurrency.RuleWorkers, logger)
	service := review.NewService(evaluator, logger)

	// LLM is optional; a bad provider config only disables notes
	var provider llm.Provider
	if cfg.LLM.Provider != "" {
		provider, err = llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize LLM provider, reviewer notes disabled")
			provider = nil
		}
	}

	logger.WithFields(logrus.Fields{
		"rules": catalog.Len(),
		"store": cfg.Store.Path,
		"llm":   provider != nil,
	}).Debug("Pipeline ready")

	batch := worker.NewBatchProcessor(service, cfg.Concurrency.Workers,
		cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize, logger)
	batch.SetPayerRates(cfg.RateLimiting.Payers, cfg.RateLimiting.BurstSize)

	return &Pipeline{
		config:     cfg,
		logger:     logger,
		store:      st,
		evaluator:  evaluator,
		service:    service,
		batch:      batch,
		annotator:  llm.NewAnnotator(provider, cfg.LLM.MaxTokens, logger),
		aggregator: analytics.NewAggregator(),
	}, nil
}

// buildBaseline layers configured averages over historical ones from the store
func buildBaseline(cfg *model.Config, st *store.SQLiteStore, logger *logrus.Logger) (rules.Baseline, error) {
	var static rules.Baseline
	tables := []rules.StaticBaseline{rules.NewStaticBaseline(cfg.Baseline.Averages)}
	if cfg.Baseline.File != "" {
		fromFile, err := rules.LoadBaseline(cfg.Baseline.File)
		if err != nil {
			return nil, err
		}
		tables = append(tables, fromFile)
	}
	if merged := rules.MergeBaselines(tables...); len(merged) > 0 {
		static = merged
	}

	var history rules.Baseline
	if cfg.Baseline.FromHistory {
		history = cache.NewCachedBaseline(
			store.NewHistoryBaseline(st, cfg.Baseline.MinSamples),
			cache.New(cfg.Cache),
			cfg.Cache.TTL,
			logger,
		)
	}

	return rules.FirstOf(static, history), nil
}

// Close releases the store
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Catalog returns the rule catalog in evaluation order
func (p *Pipeline) Catalog() *rules.Catalog {
	return p.evaluator.Catalog()
}

// Ingest turns documents into claims, evaluates them concurrently, attaches
// reviewer notes when enabled and, if persist is set, saves every evaluated claim.
// Results are in document order; a failed claim never aborts the rest.
func (p *Pipeline) Ingest(ctx context.Context, docs []worker.Document, persist bool) []*worker.ClaimResult {
	claims := make([]*model.Claim, len(docs))
	for i, doc := range docs {
		claims[i] = p.service.NewClaim(doc.Filename, doc.Data)
		if !doc.CreatedAt.IsZero() {
			claims[i].CreatedAt = doc.CreatedAt.UTC()
			claims[i].UpdatedAt = claims[i].CreatedAt
		}
	}

	results := p.batch.ProcessClaims(ctx, claims)

	for _, r := range results {
		if r.Error != nil {
			continue
		}
		p.annotator.Annotate(ctx, r.Claim)
		if persist {
			if err := p.store.Save(ctx, r.Claim); err != nil {
				r.Error = fmt.Errorf("save: %w", err)
				p.logger.WithError(err).WithField("claim", r.Claim.ID).Warn("Failed to save claim")
			}
		}
	}

	return results
}

// Get loads a stored claim
func (p *Pipeline) Get(ctx context.Context, id string) (*model.Claim, error) {
	return p.store.Get(ctx, id)
}

// List loads stored claims matching f
func (p *Pipeline) List(ctx context.Context, f store.Filter) ([]*model.Claim, error) {
	return p.store.List(ctx, f)
}

// QueueCounts reports the stored population of each queue
func (p *Pipeline) QueueCounts(ctx context.Context) (map[model.Queue]int, error) {
	return p.store.QueueCounts(ctx)
}

// Approve manually approves a stored claim
func (p *Pipeline) Approve(ctx context.Context, id, actor, reason string) (*model.Claim, error) {
	return p.update(ctx, id, func(c *model.Claim) error {
		return p.service.ManualApprove(c, actor, reason)
	})
}

// Reject rejects a stored claim
func (p *Pipeline) Reject(ctx context.Context, id, actor, reason string) (*model.Claim, error) {
	return p.update(ctx, id, func(c *model.Claim) error {
		return p.service.Reject(c, actor, reason)
	})
}

// Revalidate re-runs the current catalog against a stored claim
func (p *Pipeline) Revalidate(ctx context.Context, id, actor string) (*model.Claim, error) {
	return p.update(ctx, id, func(c *model.Claim) error {
		if err := p.service.Revalidate(c, actor); err != nil {
			return err
		}
		c.Note = nil
		p.annotator.Annotate(ctx, c)
		return nil
	})
}

// Edit replaces a stored claim's extracted data and re-runs the rules
func (p *Pipeline) Edit(ctx context.Context, id string, data model.ExtractedData, actor string) (*model.Claim, error) {
	return p.update(ctx, id, func(c *model.Claim) error {
		if err := p.service.ApplyEdit(c, data, actor); err != nil {
			return err
		}
		c.Note = nil
		p.annotator.Annotate(ctx, c)
		return nil
	})
}

// Advance moves a stored claim along its lifecycle
func (p *Pipeline) Advance(ctx context.Context, id string, next model.ClaimStatus, actor string) (*model.Claim, error) {
	return p.update(ctx, id, func(c *model.Claim) error {
		return p.service.Advance(c, next, actor)
	})
}

// Comment adds reviewer commentary to a stored claim
func (p *Pipeline) Comment(ctx context.Context, id, author, content string) (*model.Claim, error) {
	return p.update(ctx, id, func(c *model.Claim) error {
		_, err := p.service.AddComment(c, author, content)
		return err
	})
}

func (p *Pipeline) update(ctx context.Context, id string, apply func(*model.Claim) error) (*model.Claim, error) {
	c, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	if err := p.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return c, nil
}

// Analytics aggregates the stored claims created inside w
func (p *Pipeline) Analytics(ctx context.Context, w analytics.Window) (model.AnalyticsSnapshot, error) {
	claims, err := p.store.List(ctx, store.Filter{From: w.Start, To: w.End})
	if err != nil {
		return model.AnalyticsSnapshot{}, fmt.Errorf("load claims: %w", err)
	}
	return p.aggregator.Aggregate(claims, w), nil
}
