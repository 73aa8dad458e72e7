package rules

import (
	"fmt"
	"regexp"

	"github.com/maccolaco/claimsense/internal/model"
)

// CPT category I is five digits, categories II/III are four digits plus F or T,
// HCPCS level II is a letter followed by four digits.
var procedureCodePattern = regexp.MustCompile(`^(\d{5}|\d{4}[FT]|[A-V]\d{4})$`)

// ReferenceCodes is the built-in list of procedure codes accepted when no list is configured
var ReferenceCodes = []string{
	// Office and outpatient E/M
	"99202", "99203", "99204", "99205",
	"99211", "99212", "99213", "99214", "99215",
	// Hospital inpatient and observation
	"99221", "99222", "99223", "99231", "99232", "99233", "99238", "99239",
	// Consultations
	"99242", "99243", "99244", "99245",
	// Emergency department
	"99281", "99282", "99283", "99284", "99285",
	// Preventive medicine
	"99381", "99382", "99383", "99384", "99385", "99386", "99387",
	"99391", "99392", "99393", "99394", "99395", "99396", "99397",
	"99406", "99497",
	// Laboratory
	"36415", "80048", "80053", "80061", "81002", "82947", "83036", "84443", "85025", "87880",
	// Radiology
	"71046", "73030", "73610", "74177",
	// Medicine
	"90471", "90686", "90791", "90832", "90834", "90837", "93000", "94640", "96127", "96372",
	// Physical medicine and rehabilitation
	"97110", "97112", "97140", "97161", "97162", "97530", "97035",
	// Surgery
	"11721", "12001", "20550", "20552", "20610", "29125",
	// HCPCS level II
	"G0438", "G0439", "J1100", "J3301",
}

func codeValidityRule(known map[string]bool) Rule {
	r := Rule{
		ID:          "invalid_cpt_code",
		Name:        "Invalid CPT Code",
		Description: "Every procedure code must be a well-formed CPT/HCPCS code on the known-code list",
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		var findings []model.Finding
		reported := make(map[string]bool)

		for _, raw := range data.CPTCodes {
			code := normalizeCode(raw)
			if reported[code] {
				continue
			}

			switch {
			case !procedureCodePattern.MatchString(code):
				reported[code] = true
				findings = append(findings, r.finding(model.SeverityCritical,
					fmt.Sprintf("Invalid CPT code format: %q", raw),
					"cpt_codes",
					"Ensure procedure codes are 5-character CPT or HCPCS codes",
					1.0))
			case known != nil && !known[code]:
				reported[code] = true
				findings = append(findings, r.finding(model.SeverityCritical,
					fmt.Sprintf("Unknown CPT code: %s", raw),
					"cpt_codes",
					"Verify the procedure code against the current CPT/HCPCS code set",
					1.0))
			}
		}

		return findings, nil
	}

	return r
}

func duplicateCodeRule() Rule {
	r := Rule{
		ID:          "duplicate_cpt_code",
		Name:        "Duplicate CPT Code",
		Description: "The same procedure code must not be billed more than once on a claim",
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		counts := make(map[string]int)
		var order []string
		for _, raw := range data.CPTCodes {
			code := normalizeCode(raw)
			if code == "" {
				continue
			}
			if counts[code] == 0 {
				order = append(order, code)
			}
			counts[code]++
		}

		var findings []model.Finding
		for _, code := range order {
			if counts[code] < 2 {
				continue
			}
			findings = append(findings,
				r.finding(model.SeverityCritical,
					fmt.Sprintf("CPT code %s appears %d times", code, counts[code]),
					"cpt_codes",
					"Remove the duplicate procedure line or merge the units",
					1.0),
				model.Finding{
					RuleID:       "duplicate_charge",
					RuleName:     "Duplicate Charge",
					Severity:     model.SeverityWarning,
					Message:      fmt.Sprintf("Same service billed twice for CPT %s - verify this is intentional", code),
					Field:        "charges",
					SuggestedFix: "Confirm both services were rendered and add a distinguishing modifier if so",
					Confidence:   0.9,
				})
		}

		return findings, nil
	}

	return r
}

func diagnosisLinkageRule() Rule {
	r := Rule{
		ID:          "missing_diagnosis_codes",
		Name:        "Missing Diagnosis Codes",
		Description: "A claim with procedure codes must carry at least one diagnosis code",
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		if countPresent(data.CPTCodes) == 0 || countPresent(data.DiagnosisCodes) > 0 {
			return nil, nil
		}
		return []model.Finding{r.finding(model.SeverityCritical,
			fmt.Sprintf("%d procedure code(s) billed without any diagnosis code", countPresent(data.CPTCodes)),
			"diagnosis_codes",
			"Add the ICD-10 diagnosis codes that support the billed procedures",
			1.0)}, nil
	}

	return r
}

// countPresent counts entries that are not blank
func countPresent(values []string) int {
	n := 0
	for _, v := range values {
		if normalizeCode(v) != "" {
			n++
		}
	}
	return n
}
