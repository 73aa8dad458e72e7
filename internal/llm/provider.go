package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/maccolaco/claimsense/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// ReviewNote drafts a short note explaining a claim's findings to a human reviewer
	ReviewNote(ctx context.Context, req NoteRequest) (*NoteResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// NoteRequest contains the input for a reviewer note
type NoteRequest struct {
	// Claim is the evaluated claim. Only its findings, queue and procedure lines are sent.
	Claim *model.Claim

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// NoteResponse contains the generated note
type NoteResponse struct {
	Note       string
	Model      string
	TokensUsed int
	Truncated  bool // Generation stopped at the token limit
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (OpenAI-compatible gateways, Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 500,
	}
}

const systemPrompt = "You are assisting a medical billing reviewer. You explain automated claim validation findings. You never change or overrule them."

// BuildPrompt constructs the default reviewer-note prompt.
// Patient and provider identifiers are never included.
func BuildPrompt(c *model.Claim) string {
	var b strings.Builder

	fmt.Fprintf(&b, `A claim was placed in the %s queue by deterministic validation rules.

RULES FOR YOUR NOTE:
1. Explain the findings below in plain language for a billing reviewer.
2. Suggest what to check in the source document for each Critical or Warning finding.
3. DO NOT mention procedure codes that are not listed under Procedure lines.
4. DO NOT say the claim should be approved or rejected; the queue is already decided.

Procedure lines:
`, c.Queue)

	if len(c.Data.CPTCodes) == 0 {
		b.WriteString("- (none extracted)\n")
	}
	for i, code := range c.Data.CPTCodes {
		line := "- " + code
		if i < len(c.Data.Charges) {
			line += fmt.Sprintf(" $%.2f", c.Data.Charges[i])
		}
		b.WriteString(line + "\n")
	}

	// Modifiers are not tied to a line position
	var modifiers []string
	for _, m := range c.Data.Modifiers {
		if m = strings.TrimSpace(m); m != "" {
			modifiers = append(modifiers, m)
		}
	}
	if len(modifiers) > 0 {
		fmt.Fprintf(&b, "\nModifiers on the claim: %s\n", strings.Join(modifiers, ", "))
	}

	redact := identifierRedactor(c.Data)

	b.WriteString("\nFindings:\n")
	if len(c.Findings) == 0 {
		b.WriteString("- (none)\n")
	}
	for i, f := range c.Findings {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			fmt.Fprintf(&b, "... and %d more findings\n", len(c.Findings)-20)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Severity, f.RuleName, redact.Replace(f.Message))
	}

	b.WriteString("\nWrite at most 5 short Markdown bullet points.")
	return b.String()
}

// identifierRedactor masks patient and provider identifiers that rule messages may quote
func identifierRedactor(d model.ExtractedData) *strings.Replacer {
	var pairs []string
	for _, id := range []string{d.PatientName, d.PatientID, d.ProviderName, d.ProviderNPI} {
		if id = strings.TrimSpace(id); len(id) >= 3 {
			pairs = append(pairs, id, "[redacted]")
		}
	}
	return strings.NewReplacer(pairs...)
}

var notedCodePattern = regexp.MustCompile(`\b(\d{5}|\d{4}[FT]|[A-V]\d{4})\b`)

// UnlistedCodes returns procedure-like codes mentioned in note that are not on the claim, sorted
func UnlistedCodes(note string, c *model.Claim) []string {
	listed := make(map[string]bool, len(c.Data.CPTCodes))
	for _, code := range c.Data.CPTCodes {
		listed[strings.ToUpper(strings.TrimSpace(code))] = true
	}

	seen := make(map[string]bool)
	var unlisted []string
	for _, code := range notedCodePattern.FindAllString(note, -1) {
		if listed[code] || seen[code] {
			continue
		}
		seen[code] = true
		unlisted = append(unlisted, code)
	}
	sort.Strings(unlisted)
	return unlisted
}
