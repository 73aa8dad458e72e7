package rules

import (
	"strings"

	"github.com/maccolaco/claimsense/internal/model"
)

// DefaultChargeMultiplier is how far a charge may stray from its baseline average
const DefaultChargeMultiplier = 2.0

// Options configures the default catalog
type Options struct {
	// ChargeMultiplier is the anomaly threshold; values <= 1 fall back to DefaultChargeMultiplier
	ChargeMultiplier float64

	// KnownCodes restricts valid procedure codes; nil uses the built-in reference list
	KnownCodes []string

	// FormatOnly disables the known-code check, leaving only the format check
	FormatOnly bool

	// Baseline supplies average charges; nil makes the anomaly rule abstain
	Baseline Baseline

	// DistinguishingModifier is required when a configured pair is billed together
	DistinguishingModifier string
	ModifierPairs          []model.ModifierPair

	// CompletenessChecks adds the missing-field rules ahead of the core rules
	CompletenessChecks bool
}

// DefaultOptions returns the options matching model.DefaultConfig
func DefaultOptions() Options {
	return OptionsFromConfig(model.DefaultConfig().Rules, nil)
}

// OptionsFromConfig maps the rules section of the configuration onto Options
func OptionsFromConfig(cfg model.RulesConfig, baseline Baseline) Options {
	return Options{
		ChargeMultiplier:       cfg.ChargeMultiplier,
		KnownCodes:             cfg.KnownCodes,
		FormatOnly:             cfg.FormatOnly,
		Baseline:               baseline,
		DistinguishingModifier: cfg.DistinguishingModifier,
		ModifierPairs:          cfg.ModifierPairs,
		CompletenessChecks:     cfg.CompletenessChecks,
	}
}

func (o Options) normalized() Options {
	if o.ChargeMultiplier <= 1 {
		o.ChargeMultiplier = DefaultChargeMultiplier
	}
	o.DistinguishingModifier = normalizeModifier(o.DistinguishingModifier)
	if o.DistinguishingModifier == "" {
		o.DistinguishingModifier = "59"
	}
	pairs := make([]model.ModifierPair, 0, len(o.ModifierPairs))
	for _, p := range o.ModifierPairs {
		first, second := normalizeCode(p.First), normalizeCode(p.Second)
		if first == "" || second == "" {
			continue
		}
		pairs = append(pairs, model.ModifierPair{First: first, Second: second})
	}
	o.ModifierPairs = pairs
	return o
}

// knownCodes returns the whitelist to enforce, or nil when only the format is checked
func (o Options) knownCodes() map[string]bool {
	if o.FormatOnly {
		return nil
	}
	codes := o.KnownCodes
	if len(codes) == 0 {
		codes = ReferenceCodes
	}
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[normalizeCode(c)] = true
	}
	return set
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeModifier(mod string) string {
	return strings.TrimPrefix(normalizeCode(mod), "-")
}
