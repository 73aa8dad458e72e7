package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maccolaco/claimsense/internal/logging"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/queue"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidTransition is returned when a status change is not allowed from the current status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLocked is returned when editing a claim that has already been submitted
	ErrLocked = errors.New("claim is locked")

	// ErrEmptyComment is returned for a blank comment
	ErrEmptyComment = errors.New("comment is empty")
)

// Evaluator produces findings for extracted data
type Evaluator interface {
	Evaluate(data model.ExtractedData) []model.Finding
}

// Service applies lifecycle transitions to claims. It never persists anything:
// callers save the claim after a successful transition.
type Service struct {
	evaluator Evaluator
	logger    *logrus.Logger

	// Now and NewID are injectable for tests
	Now   func() time.Time
	NewID func() string
}

// NewService creates a lifecycle service around evaluator
func NewService(evaluator Evaluator, logger *logrus.Logger) *Service {
	return &Service{
		evaluator: evaluator,
		logger:    logging.OrDiscard(logger),
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     func() string { return uuid.NewString() },
	}
}

// NewClaim creates an Uploaded claim holding a copy of data
func (s *Service) NewClaim(filename string, data model.ExtractedData) *model.Claim {
	now := s.Now()
	return &model.Claim{
		ID:        s.NewID(),
		Filename:  filename,
		Status:    model.StatusUploaded,
		Data:      data.Clone(),
		Findings:  []model.Finding{},
		Queue:     model.QueueApprovedClaims,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Revalidate re-runs every rule, replaces the findings and re-derives the queue.
// Any manual override is cleared. Claims not yet processed move to Processed.
func (s *Service) Revalidate(c *model.Claim, actor string) error {
	if c == nil {
		return errors.New("revalidate: nil claim")
	}

	c.Findings = s.evaluator.Evaluate(c.Data)
	c.Queue = queue.Route(c.Findings)
	c.Override = nil

	if c.Status == model.StatusUploaded || c.Status == model.StatusProcessing || c.Status == "" {
		c.Status = model.StatusProcessed
	}

	s.record(c, model.EventRevalidate, actor, "")

	s.logger.WithFields(logrus.Fields{
		"claim_id": c.ID,
		"findings": len(c.Findings),
		"queue":    c.Queue,
	}).Debug("Revalidated claim")

	return nil
}

// ManualApprove moves the claim to ApprovedClaims regardless of its findings.
// The findings are kept for audit and the override is recorded on the claim.
func (s *Service) ManualApprove(c *model.Claim, actor, reason string) error {
	if c == nil {
		return errors.New("manual approve: nil claim")
	}
	if !c.Status.CanTransition(model.StatusApproved) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, model.StatusApproved)
	}

	c.Status = model.StatusApproved
	c.Queue = model.QueueApprovedClaims
	c.Override = &model.Override{
		Queue:  model.QueueApprovedClaims,
		Actor:  actor,
		Reason: reason,
		At:     s.Now(),
	}

	s.record(c, model.EventManualApprove, actor, reason)

	s.logger.WithFields(logrus.Fields{
		"claim_id": c.ID,
		"actor":    actor,
		"findings": len(c.Findings),
		"routed":   queue.Route(c.Findings),
	}).Info("Claim manually approved")

	return nil
}

// Reject marks the claim Rejected. The queue stays derived from the findings.
func (s *Service) Reject(c *model.Claim, actor, reason string) error {
	if c == nil {
		return errors.New("reject: nil claim")
	}
	if !c.Status.CanTransition(model.StatusRejected) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, model.StatusRejected)
	}

	c.Status = model.StatusRejected
	s.record(c, model.EventReject, actor, reason)

	s.logger.WithFields(logrus.Fields{
		"claim_id": c.ID,
		"actor":    actor,
	}).Info("Claim rejected")

	return nil
}

// Advance moves the claim along the lifecycle graph. Approval and rejection
// have their own transitions and cannot be reached through Advance.
func (s *Service) Advance(c *model.Claim, next model.ClaimStatus, actor string) error {
	if c == nil {
		return errors.New("advance: nil claim")
	}
	if next == model.StatusApproved || next == model.StatusRejected {
		return fmt.Errorf("%w: use the dedicated %s transition", ErrInvalidTransition, next)
	}
	if !c.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
	}

	c.Status = next
	s.record(c, model.EventStatusChange, actor, "")
	return nil
}

// ApplyEdit replaces the extracted data with a copy of data and revalidates
func (s *Service) ApplyEdit(c *model.Claim, data model.ExtractedData, actor string) error {
	if c == nil {
		return errors.New("apply edit: nil claim")
	}
	if c.Status == model.StatusSubmitted || c.Status == model.StatusPaid {
		return fmt.Errorf("%w: status %s", ErrLocked, c.Status)
	}

	c.Data = data.Clone()
	s.record(c, model.EventEdit, actor, "")

	return s.Revalidate(c, actor)
}

// AddComment appends reviewer commentary to the claim
func (s *Service) AddComment(c *model.Claim, author, content string) (model.Comment, error) {
	if c == nil {
		return model.Comment{}, errors.New("add comment: nil claim")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, ErrEmptyComment
	}

	comment := model.Comment{
		ID:        s.NewID(),
		Author:    author,
		Content:   content,
		CreatedAt: s.Now(),
	}
	c.Comments = append(c.Comments, comment)
	c.UpdatedAt = comment.CreatedAt
	return comment, nil
}

// Consistent reports whether the recorded queue is what routing (or a recorded override) yields
func Consistent(c *model.Claim) bool {
	if c.Override != nil {
		return c.Queue == c.Override.Queue
	}
	return c.Queue == queue.Route(c.Findings)
}

func (s *Service) record(c *model.Claim, kind model.EventKind, actor, reason string) {
	now := s.Now()
	c.Events = append(c.Events, model.Event{
		Kind:     kind,
		Actor:    actor,
		Reason:   reason,
		Queue:    c.Queue,
		Status:   c.Status,
		Findings: len(c.Findings),
		At:       now,
	})
	c.UpdatedAt = now
}
