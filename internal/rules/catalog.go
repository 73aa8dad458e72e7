package rules

import "github.com/maccolaco/claimsense/internal/model"

// CheckFunc inspects one claim's extracted data and returns zero or more findings.
// It must not mutate data.
type CheckFunc func(data model.ExtractedData) ([]model.Finding, error)

// Rule is one validation rule in the catalog
type Rule struct {
	ID          string
	Name        string
	Description string
	Check       CheckFunc
}

// Catalog is the ordered, immutable set of rules handed to the evaluator
type Catalog struct {
	rules []Rule
}

// NewCatalog creates a catalog holding rules in the given order.
// Rules without a Check function are dropped.
func NewCatalog(rules ...Rule) *Catalog {
	kept := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Check == nil {
			continue
		}
		kept = append(kept, r)
	}
	return &Catalog{rules: kept}
}

// Rules returns a copy of the ordered rule list
func (c *Catalog) Rules() []Rule {
	if c == nil {
		return nil
	}
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Len returns the number of rules
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// IDs returns the rule identifiers in catalog order
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, c.Len())
	for _, r := range c.Rules() {
		ids = append(ids, r.ID)
	}
	return ids
}

// Default builds the standard catalog for opts
func Default(opts Options) *Catalog {
	opts = opts.normalized()

	var rules []Rule
	if opts.CompletenessChecks {
		rules = append(rules, completenessRules()...)
	}

	rules = append(rules,
		codeValidityRule(opts.knownCodes()),
		duplicateCodeRule(),
		diagnosisLinkageRule(),
		serviceDateRule(),
		chargeCountRule(),
		chargeAnomalyRule(opts.Baseline, opts.ChargeMultiplier),
		modifierRule(opts.DistinguishingModifier, opts.ModifierPairs),
	)

	return NewCatalog(rules...)
}

// finding builds a finding attributed to rule r
func (r Rule) finding(severity model.Severity, message, field, fix string, confidence float64) model.Finding {
	return model.Finding{
		RuleID:       r.ID,
		RuleName:     r.Name,
		Severity:     severity,
		Message:      message,
		Field:        field,
		SuggestedFix: fix,
		Confidence:   confidence,
	}
}
