package rules

import (
	"strings"

	"github.com/maccolaco/claimsense/internal/model"
)

// completenessRules are the missing-field checks, enabled with Options.CompletenessChecks
func completenessRules() []Rule {
	return []Rule{
		presenceRule("missing_cpt_codes", "Missing CPT Codes", "cpt_codes", model.SeverityCritical, 1.0,
			"No CPT codes found in the claim", "Add appropriate CPT codes for the services provided",
			func(d model.ExtractedData) bool { return countPresent(d.CPTCodes) > 0 }),
		presenceRule("missing_patient_name", "Missing Patient Name", "patient_name", model.SeverityCritical, 0.9,
			"Patient name not found in the claim", "Add patient name to the claim",
			func(d model.ExtractedData) bool { return strings.TrimSpace(d.PatientName) != "" }),
		presenceRule("missing_provider_name", "Missing Provider Name", "provider_name", model.SeverityWarning, 0.8,
			"Provider name not found in the claim", "Add provider name to the claim",
			func(d model.ExtractedData) bool { return strings.TrimSpace(d.ProviderName) != "" }),
		presenceRule("missing_npi", "Missing Provider NPI", "provider_npi", model.SeverityCritical, 0.9,
			"Provider NPI not found in the claim", "Add valid 10-digit NPI to the claim",
			func(d model.ExtractedData) bool { return strings.TrimSpace(d.ProviderNPI) != "" }),
		npiRule(),
		presenceRule("missing_charges", "Missing Charges", "charges", model.SeverityCritical, 1.0,
			"No charges found in the claim", "Add service charges to the claim",
			func(d model.ExtractedData) bool { return len(d.Charges) > 0 }),
		presenceRule("missing_service_dates", "Missing Service Dates", "dates", model.SeverityWarning, 0.8,
			"No service dates found in the claim", "Add service dates to the claim",
			func(d model.ExtractedData) bool { return countPresent(d.ServiceDates) > 0 }),
		presenceRule("missing_payer", "Missing Payer Information", "payer", model.SeverityWarning, 0.7,
			"Payer information not found in the claim", "Add payer information to the claim",
			func(d model.ExtractedData) bool { return strings.TrimSpace(d.Payer) != "" }),
	}
}

func presenceRule(id, name, field string, severity model.Severity, confidence float64, message, fix string, present func(model.ExtractedData) bool) Rule {
	r := Rule{
		ID:          id,
		Name:        name,
		Description: message,
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		if present(data) {
			return nil, nil
		}
		return []model.Finding{r.finding(severity, message, field, fix, confidence)}, nil
	}

	return r
}

func npiRule() Rule {
	r := Rule{
		ID:          "invalid_npi",
		Name:        "Invalid Provider NPI",
		Description: "A provider NPI must be 10 digits with a valid check digit",
	}

	r.Check = func(data model.ExtractedData) ([]model.Finding, error) {
		npi := strings.TrimSpace(data.ProviderNPI)
		if npi == "" || ValidNPI(npi) {
			return nil, nil
		}
		return []model.Finding{r.finding(model.SeverityCritical,
			"Provider NPI is not a valid 10-digit NPI",
			"provider_npi",
			"Look up the provider in NPPES and correct the NPI",
			1.0)}, nil
	}

	return r
}

// ValidNPI checks the NPI length and its Luhn check digit, computed over the
// 80840 card-issuer prefix followed by the first nine digits.
func ValidNPI(npi string) bool {
	if len(npi) != 10 {
		return false
	}
	for _, c := range npi {
		if c < '0' || c > '9' {
			return false
		}
	}

	digits := "80840" + npi
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
