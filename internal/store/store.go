package store

import (
	"context"
	"errors"
	"time"

	"github.com/maccolaco/claimsense/internal/model"
)

// ErrNotFound is returned when a claim id does not exist
var ErrNotFound = errors.New("claim not found")

// Filter narrows List. Zero values match everything; the creation window is half-open [From, To).
type Filter struct {
	Queue  model.Queue
	Status model.ClaimStatus
	From   time.Time
	To     time.Time
	Limit  int
}

// ClaimStore persists claims keyed by id
type ClaimStore interface {
	Save(ctx context.Context, c *model.Claim) error
	Get(ctx context.Context, id string) (*model.Claim, error)
	List(ctx context.Context, f Filter) ([]*model.Claim, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
