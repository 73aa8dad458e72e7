package evaluate

import (
	"fmt"

	"github.com/maccolaco/claimsense/internal/logging"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/rules"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RuleFailureID is the rule id of the synthetic finding emitted when a rule fails
const RuleFailureID = "rule_failure"

// Evaluator runs every rule of a catalog against one claim.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	catalog     *rules.Catalog
	parallelism int
	logger      *logrus.Logger
}

// NewEvaluator creates an evaluator over catalog.
// parallelism <= 1 runs rules sequentially; larger values run up to that many rules at once.
func NewEvaluator(catalog *rules.Catalog, parallelism int, logger *logrus.Logger) *Evaluator {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Evaluator{
		catalog:     catalog,
		parallelism: parallelism,
		logger:      logging.OrDiscard(logger),
	}
}

// Catalog returns the catalog the evaluator was built with
func (e *Evaluator) Catalog() *rules.Catalog {
	return e.catalog
}

// Evaluate runs every rule against data and returns the findings in catalog
// order, then rule-internal order. A rule that errors or panics contributes a
// single Critical rule_failure finding; the remaining rules still run.
func (e *Evaluator) Evaluate(data model.ExtractedData) []model.Finding {
	ruleList := e.catalog.Rules()
	perRule := make([][]model.Finding, len(ruleList))

	if e.parallelism > 1 && len(ruleList) > 1 {
		var g errgroup.Group
		g.SetLimit(e.parallelism)
		for i, r := range ruleList {
			g.Go(func() error {
				perRule[i] = e.runRule(r, data)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, r := range ruleList {
			perRule[i] = e.runRule(r, data)
		}
	}

	findings := make([]model.Finding, 0)
	for _, f := range perRule {
		findings = append(findings, f...)
	}

	e.logger.WithFields(logrus.Fields{
		"rules":    len(ruleList),
		"findings": len(findings),
	}).Debug("Evaluated claim")

	return findings
}

// runRule invokes one rule on a private copy of data and converts any failure into a finding
func (e *Evaluator) runRule(r rules.Rule, data model.ExtractedData) (findings []model.Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			e.logger.WithError(err).WithField("rule", r.ID).Warn("Rule panicked")
			findings = []model.Finding{ruleFailure(r, err)}
		}
	}()

	out, err := r.Check(data.Clone())
	if err == nil {
		err = checkFindings(out)
	}
	if err != nil {
		e.logger.WithError(err).WithField("rule", r.ID).Warn("Failed to evaluate rule")
		return []model.Finding{ruleFailure(r, err)}
	}

	return out
}

// checkFindings rejects findings a rule should never produce
func checkFindings(findings []model.Finding) error {
	for _, f := range findings {
		if !f.Severity.Valid() {
			return fmt.Errorf("finding %q has unknown severity %q", f.RuleID, f.Severity)
		}
		if !(f.Confidence >= 0 && f.Confidence <= 1) {
			return fmt.Errorf("finding %q has confidence %v outside [0, 1]", f.RuleID, f.Confidence)
		}
	}
	return nil
}

func ruleFailure(r rules.Rule, err error) model.Finding {
	name := r.Name
	if name == "" {
		name = r.ID
	}
	return model.Finding{
		RuleID:       RuleFailureID,
		RuleName:     name,
		Severity:     model.SeverityCritical,
		Message:      fmt.Sprintf("Rule %s (%s) failed: %v", name, r.ID, err),
		SuggestedFix: "Re-run validation; if the failure persists the rule needs fixing",
		Confidence:   0.0,
	}
}
