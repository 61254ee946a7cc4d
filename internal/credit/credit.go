// Package credit enforces the per-user daily market fetch allowance with a
// fixed-window counter that resets when the calendar date rolls over.
package credit

import (
	"context"
	"errors"
	"time"
)

// DailyLimit is the default number of market fetches a user gets per day,
// used when no limit is configured.
const DailyLimit = 5

// ErrExhausted is returned when a user has no fetch credits left today.
var ErrExhausted = errors.New("daily fetch credit exhausted")

// Status describes a user's current allowance window.
type Status struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Repository defines the contract for credit storage. Consume must be atomic
// under concurrent calls for the same user: either the increment wins and the
// new used count comes back, or ErrExhausted.
type Repository interface {
	Consume(ctx context.Context, userID string, day time.Time, limit int) (used int, err error)
	Used(ctx context.Context, userID string, day time.Time) (int, error)
}

type Service struct {
	repo  Repository
	limit int
	now   func() time.Time
}

func NewService(repo Repository, limit int) *Service {
	if limit <= 0 {
		limit = DailyLimit
	}
	return &Service{repo: repo, limit: limit, now: time.Now}
}

// Consume spends one credit and returns how many remain. Returns
// ErrExhausted without side effects when the allowance is gone.
func (s *Service) Consume(ctx context.Context, userID string) (remaining int, err error) {
	used, err := s.repo.Consume(ctx, userID, s.today(), s.limit)
	if err != nil {
		return 0, err
	}
	return s.limit - used, nil
}

// Status reports the current window without consuming anything.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	used, err := s.repo.Used(ctx, userID, s.today())
	if err != nil {
		return Status{}, err
	}
	return Status{
		Used:      used,
		Remaining: s.limit - used,
		Limit:     s.limit,
		ResetsAt:  s.today().AddDate(0, 0, 1),
	}, nil
}

// today is the current UTC date at midnight, the window key.
func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}
