// Package history persists attempt records in an external document store.
// The core treats this collaborator as best-effort: callers isolate failures
// and keep their in-memory state usable.
package history

import (
	"context"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

// Store is the history port. Implementations scope every operation to a user
// and order listings most recent first.
type Store interface {
	List(ctx context.Context, userID string) ([]domain.AttemptRecord, error)
	Save(ctx context.Context, userID string, rec domain.AttemptRecord) error
	Delete(ctx context.Context, userID, recordID string) error
	Clear(ctx context.Context, userID string) error
}

// validateRecord rejects malformed stored records instead of tolerating them:
// a selections list that does not line up with the questions would corrupt
// every later review.
func validateRecord(rec domain.AttemptRecord) error {
	if rec.ID == "" {
		return errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("history: stored attempt with empty id"))
	}
	if len(rec.Selections) != len(rec.Questions) {
		return errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("history: attempt %s has %d selections for %d questions",
				rec.ID, len(rec.Selections), len(rec.Questions)))
	}
	if rec.TotalQuestions != len(rec.Questions) {
		return errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("history: attempt %s totalQuestions %d does not match %d questions",
				rec.ID, rec.TotalQuestions, len(rec.Questions)))
	}
	return nil
}
