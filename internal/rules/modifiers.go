package rules

import (
	"fmt"
	"strconv"

	"github.com/maccolaco/claimsense/internal/model"
)

// IsEvaluationAndManagement reports whether code is in the 99201-99499 E/M range
func IsEvaluationAndManagement(code string) bool {
	code = normalizeCode(code)
	if len(code) != 5 {
		return false
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return n >= 99201 && n <= 99499
}

func modifierRule(distinguishing string, pairs []model.ModifierPair) Rule {
	r := Rule{
		ID:          "missing_modifier",
		Name:        "Missing Modifier",
		Description: "Procedures billed together that need a distinguishing modifier",
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		mods := make(map[string]bool, len(data.Modifiers))
		for _, m := range data.Modifiers {
			mods[normalizeModifier(m)] = true
		}

		codes := make(map[string]bool, len(data.CPTCodes))
		var emCodes []string
		hasProcedure := false
		for _, raw := range data.CPTCodes {
			code := normalizeCode(raw)
			if code == "" || codes[code] {
				continue
			}
			codes[code] = true
			if IsEvaluationAndManagement(code) {
				emCodes = append(emCodes, code)
			} else {
				hasProcedure = true
			}
		}

		var findings []model.Finding

		if hasProcedure && !mods["25"] {
			for _, code := range emCodes {
				findings = append(findings, r.finding(model.SeverityWarning,
					fmt.Sprintf("Multiple procedures on same day may require modifier 25 on E/M code %s", code),
					"modifiers",
					"Add modifier 25 if the E/M service was significant and separately identifiable",
					0.75))
			}
		}

		if !mods[distinguishing] {
			for _, p := range pairs {
				if codes[p.First] && codes[p.Second] {
					findings = append(findings, r.finding(model.SeverityWarning,
						fmt.Sprintf("CPT %s and %s billed together require modifier %s", p.First, p.Second, distinguishing),
						"modifiers",
						fmt.Sprintf("Add modifier %s to indicate a distinct procedural service", distinguishing),
						0.8))
				}
			}
		}

		return findings, nil
	}

	return r
}
