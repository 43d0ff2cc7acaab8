package domain

const (
	EventNameAttemptSubmitted = "attempt.submitted"
	EventNameAttemptDeleted   = "attempt.deleted"
	EventNameHistoryCleared   = "history.cleared"
)

type EventAttemptSubmitted struct {
	UserID    string
	Record    AttemptRecord
	Persisted bool
}

func (EventAttemptSubmitted) Name() string { return EventNameAttemptSubmitted }

type EventAttemptDeleted struct {
	UserID   string
	RecordID string
}

func (EventAttemptDeleted) Name() string { return EventNameAttemptDeleted }

type EventHistoryCleared struct {
	UserID string
}

func (EventHistoryCleared) Name() string { return EventNameHistoryCleared }
