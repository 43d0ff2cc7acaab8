package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/examdeck/examdeck/internal/domain"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	AttemptSubmitted struct {
		AttemptID   string `json:"attemptId"`
		ExamID      string `json:"examId"`
		ExamTitle   string `json:"examTitle"`
		ScaledScore int    `json:"scaledScore"`
		Passed      bool   `json:"passed"`
		Persisted   bool   `json:"persisted"`
	}
)

func (a *API) publishAttemptSubmitted(ctx context.Context, e domain.EventAttemptSubmitted) error {
	data := AttemptSubmitted{
		AttemptID:   e.Record.ID,
		ExamID:      e.Record.ExamID,
		ExamTitle:   e.Record.ExamTitle,
		ScaledScore: e.Record.ScaledScore,
		Passed:      e.Record.Passed(),
		Persisted:   e.Persisted,
	}

	return a.publishNotification(ctx, e.UserID, e.Name(), data)
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	if a.redis == nil {
		return nil
	}

	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, user), b).Err()
}
