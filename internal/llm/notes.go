package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/maccolaco/claimsense/internal/logging"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/sirupsen/logrus"
)

// Annotator attaches reviewer notes to claims.
// CRITICAL: it only ever writes Claim.Note; findings, queue and status are untouched.
type Annotator struct {
	provider  Provider
	maxTokens int
	logger    *logrus.Logger
	Now       func() time.Time
}

// NewAnnotator creates an annotator. A nil provider makes Annotate a no-op.
func NewAnnotator(provider Provider, maxTokens int, logger *logrus.Logger) *Annotator {
	return &Annotator{
		provider:  provider,
		maxTokens: maxTokens,
		logger:    logging.OrDiscard(logger),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a provider is configured
func (a *Annotator) Enabled() bool {
	return a != nil && a.provider != nil
}

// Annotate requests a note for c and stores it on the claim.
// Failures are logged and leave the claim unchanged; it returns whether a note was attached.
func (a *Annotator) Annotate(ctx context.Context, c *model.Claim) bool {
	if !a.Enabled() || c == nil {
		return false
	}

	resp, err := a.provider.ReviewNote(ctx, NoteRequest{Claim: c, MaxTokens: a.maxTokens})
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"claim":    c.ID,
			"provider": a.provider.Name(),
		}).Warn("Reviewer note generation failed")
		return false
	}

	var warnings []string
	if resp.Truncated {
		warnings = append(warnings, "response truncated at the token limit")
	}
	for _, code := range UnlistedCodes(resp.Note, c) {
		warnings = append(warnings, fmt.Sprintf("note mentions code %s which is not on the claim", code))
	}

	c.Note = &model.ReviewerNote{
		Provider:  a.provider.Name(),
		Model:     resp.Model,
		NoteMD:    resp.Note,
		Warnings:  warnings,
		CreatedAt: a.Now(),
	}

	a.logger.WithFields(logrus.Fields{
		"claim":    c.ID,
		"provider": a.provider.Name(),
		"tokens":   resp.TokensUsed,
		"warnings": len(warnings),
	}).Debug("Reviewer note attached")
	return true
}
