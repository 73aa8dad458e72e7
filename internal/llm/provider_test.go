package llm

import (
	"reflect"
	"strings"
	"testing"

	"github.com/maccolaco/claimsense/internal/evaluate"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/rules"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testClaim())

	for _, want := range []string{
		"CriticalErrors",
		"- 99213 $150.00",
		"Modifiers on the claim: 25",
		"- 99999 $80.00",
		"[Critical] Invalid CPT Code: Unknown CPT code: 99999",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	for _, leaked := range []string{"Jane Roe", "MRN-0042", "1234567893"} {
		if strings.Contains(prompt, leaked) {
			t.Errorf("prompt contains identifier %q", leaked)
		}
	}
}

func TestBuildPrompt_RedactsIdentifiersInFindings(t *testing.T) {
	opts := rules.DefaultOptions()
	opts.CompletenessChecks = true

	c := testClaim()
	c.Data.ProviderNPI = "1234567890"
	c.Data.ServiceDates = []string{"2024-01-15"}
	c.Data.DiagnosisCodes = []string{"J06.9"}
	c.Findings = evaluate.NewEvaluator(rules.Default(opts), 1, nil).Evaluate(c.Data)
	c.Findings = append(c.Findings, model.Finding{
		RuleID:   "custom",
		RuleName: "Custom",
		Severity: model.SeverityWarning,
		Message:  "Check Jane Roe (MRN-0042) against NPI 1234567890",
	})

	prompt := BuildPrompt(c)
	if !strings.Contains(prompt, "Invalid Provider NPI") {
		t.Errorf("prompt should include the invalid_npi finding:\n%s", prompt)
	}
	for _, leaked := range []string{"1234567890", "Jane Roe", "MRN-0042"} {
		if strings.Contains(prompt, leaked) {
			t.Errorf("prompt contains identifier %q:\n%s", leaked, prompt)
		}
	}
	if !strings.Contains(prompt, "Check [redacted] ([redacted]) against NPI [redacted]") {
		t.Errorf("identifiers should be redacted in finding text:\n%s", prompt)
	}
}

func TestBuildPrompt_ModifiersNotPairedWithLines(t *testing.T) {
	c := testClaim()
	c.Data.Modifiers = []string{"", "59"}

	prompt := BuildPrompt(c)
	if strings.Contains(prompt, "99999 modifier") || strings.Contains(prompt, "99213 modifier") {
		t.Errorf("modifiers should not be attached to procedure lines:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Modifiers on the claim: 59\n") {
		t.Errorf("prompt should list modifiers separately:\n%s", prompt)
	}
}

func TestBuildPrompt_Empty(t *testing.T) {
	prompt := BuildPrompt(&model.Claim{Queue: model.QueueApprovedClaims})
	if !strings.Contains(prompt, "(none extracted)") || !strings.Contains(prompt, "- (none)") {
		t.Errorf("empty claim prompt should say so:\n%s", prompt)
	}
}

func TestUnlistedCodes(t *testing.T) {
	c := testClaim()
	note := "Code 99213 looks fine. 99999 is unknown; maybe 99214 or G0438 was meant, or 99214 again. Charge $150.00."

	got := UnlistedCodes(note, c)
	want := []string{"99214", "G0438"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnlistedCodes() = %v, want %v", got, want)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	if err != nil || p != nil {
		t.Errorf("empty provider should disable notes, got %v, %v", p, err)
	}

	if _, err := NewProvider(Config{Provider: "bard"}); err == nil {
		t.Error("Expected error for unknown provider")
	}

	p, err = NewProvider(Config{Provider: "OpenAI", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewProvider(openai) error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %s, want openai", p.Name())
	}

	p, err = NewProvider(Config{Provider: "ollama", Model: "llama3.1"})
	if err != nil {
		t.Fatalf("NewProvider(ollama) error: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %s, want ollama", p.Name())
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k", Timeout: 10, MaxTokens: 200})
	if cfg.Provider != "openai" || cfg.Model != "gpt-4o-mini" || cfg.APIKey != "k" || cfg.Timeout != 10 || cfg.MaxTokens != 200 {
		t.Errorf("ConfigFromModel() = %+v", cfg)
	}
}
