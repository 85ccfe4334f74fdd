// Package autoreply drives the per-tenant review reply loop: reply to every
// new, unanswered, in-scope review exactly once.
package autoreply

import (
	"context"
	"fmt"
	"log"

	"github.com/replyhero/backend/internal/gbp"
	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

// ReviewService is the review-platform collaborator (implemented by gbp.Client).
type ReviewService interface {
	ListReviews(ctx context.Context, accountID, locationID string) ([]gbp.Review, error)
	PostReply(ctx context.Context, accountID, locationID, reviewID, text string) error
}

// Composer generates reply text for one review. It has no fallback text: a
// generation failure fails that review's attempt.
type Composer interface {
	GenerateReply(ctx context.Context, review gbp.Review, tenantName, contact string) (string, error)
}

// ReviewOutcome is the per-review detail entry in a run summary.
type ReviewOutcome struct {
	ReviewID string `json:"reviewId"`
	Rating   int    `json:"rating"`
	Status   string `json:"status"` // "replied" or "failed"
	Error    string `json:"error,omitempty"`
}

// Result summarizes one run of the loop for one tenant.
type Result struct {
	Attempted int             `json:"attempted"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Details   []ReviewOutcome `json:"details"`
}

type Loop struct {
	Reviews        ReviewService
	Composer       Composer
	States         store.ReplyStateStore
	AllowedRatings map[int]bool
	Logger         *log.Logger
}

// ProcessPendingReviews replies to every candidate review for one tenant.
//
// Only an infrastructure failure (review-list fetch, reply-state load) is
// returned as an error; individual review failures are recorded in the result
// and retried on the next tick because their IDs never enter the reply-state
// set. The updated set is persisted once, after the whole pass: the set is
// cumulative in memory, so a persist failure just means the next successful
// persist carries the same IDs.
func (l *Loop) ProcessPendingReviews(ctx context.Context, tenant models.Tenant) (*Result, error) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}

	state, err := l.States.Get(ctx, tenant.ID, tenant.LocationID)
	if err != nil {
		return nil, fmt.Errorf("load reply state: %w", err)
	}

	reviews, err := l.Reviews.ListReviews(ctx, tenant.AccountID, tenant.LocationID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	result := &Result{}
	// Platform order is the de facto priority; no re-sort.
	for _, review := range reviews {
		if review.HasReply {
			continue
		}
		if l.AllowedRatings != nil && !l.AllowedRatings[review.Rating] {
			continue
		}
		if state.Contains(review.ID) {
			continue
		}

		result.Attempted++
		outcome := ReviewOutcome{ReviewID: review.ID, Rating: review.Rating}

		text, err := l.Composer.GenerateReply(ctx, review, tenant.Name, tenant.Contact)
		if err == nil {
			err = l.Reviews.PostReply(ctx, tenant.AccountID, tenant.LocationID, review.ID, text)
		}
		if err != nil {
			outcome.Status = "failed"
			outcome.Error = err.Error()
			result.Failed++
			logger.Printf("[AutoReply] tenant=%s review=%s failed: %v", tenant.ID, review.ID, err)
		} else {
			outcome.Status = "replied"
			result.Succeeded++
			state.Add(review.ID)
		}
		result.Details = append(result.Details, outcome)
	}

	if result.Succeeded > 0 {
		if err := l.States.Save(ctx, *state); err != nil {
			// Replies already posted are lost from the set only until the
			// next successful persist; surface it so the tick alerts.
			return result, fmt.Errorf("persist reply state: %w", err)
		}
	}

	if result.Attempted > 0 {
		logger.Printf("[AutoReply] tenant=%s attempted=%d succeeded=%d failed=%d",
			tenant.ID, result.Attempted, result.Succeeded, result.Failed)
	}
	return result, nil
}
