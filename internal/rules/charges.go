package rules

import (
	"fmt"

	"github.com/maccolaco/claimsense/internal/model"
)

// chargeCountRule flags claims whose charge list does not line up with the procedure list
func chargeCountRule() Rule {
	r := Rule{
		ID:          "charge_count_mismatch",
		Name:        "Charge Count Mismatch",
		Description: "Each procedure code must have exactly one charge",
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		if len(data.CPTCodes) == 0 || len(data.Charges) == 0 || len(data.CPTCodes) == len(data.Charges) {
			return nil, nil
		}
		return []model.Finding{r.finding(model.SeverityCritical,
			fmt.Sprintf("%d procedure code(s) but %d charge(s)", len(data.CPTCodes), len(data.Charges)),
			"charges",
			"Ensure every procedure line has exactly one charge amount",
			1.0)}, nil
	}

	return r
}

// chargeAnomalyRule compares each charge to the baseline average for its code.
// Only indexes present in both lists are paired; a nil baseline or a code with
// no average contributes nothing.
func chargeAnomalyRule(baseline Baseline, multiplier float64) Rule {
	r := Rule{
		ID:          "charge_anomaly",
		Name:        "Charge Amount Anomaly",
		Description: fmt.Sprintf("A charge more than %.2gx away from the historical average for its code", multiplier),
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		if baseline == nil {
			return nil, nil
		}

		n := len(data.CPTCodes)
		if len(data.Charges) < n {
			n = len(data.Charges)
		}

		var findings []model.Finding
		for i := 0; i < n; i++ {
			code := normalizeCode(data.CPTCodes[i])
			charge := data.Charges[i]
			if code == "" || charge <= 0 {
				continue
			}

			avg, ok := baseline.Average(code)
			if !ok || avg <= 0 {
				continue
			}

			var direction string
			var ratio float64
			switch {
			case charge/avg > multiplier:
				direction, ratio = "higher", charge/avg
			case avg/charge > multiplier:
				direction, ratio = "lower", avg/charge
			default:
				continue
			}

			findings = append(findings, r.finding(model.SeverityWarning,
				fmt.Sprintf("Charge amount $%.2f significantly %s than average $%.2f for CPT %s", charge, direction, avg, code),
				"charges",
				"Verify the billed amount against the fee schedule",
				AnomalyConfidence(ratio, multiplier)))
		}

		return findings, nil
	}

	return r
}

// AnomalyConfidence maps how far past the threshold a charge is onto [0.5, 0.95).
// ratio is the outlier ratio (>= 1) and must exceed multiplier.
func AnomalyConfidence(ratio, multiplier float64) float64 {
	return 0.5 + 0.45*(1-multiplier/ratio)
}
