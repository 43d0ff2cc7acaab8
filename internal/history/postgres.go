package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

// PostgresStore keeps attempts as JSONB documents, one row per attempt.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	user_id     TEXT        NOT NULL,
	attempt_id  TEXT        NOT NULL,
	create_time TIMESTAMPTZ NOT NULL,
	record      JSONB       NOT NULL,
	PRIMARY KEY (user_id, attempt_id)
);
CREATE INDEX IF NOT EXISTS attempts_by_date ON attempts (user_id, create_time DESC);`

// EnsureSchema creates the attempts table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return persistErr("ensure schema", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, userID string, rec domain.AttemptRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Internal(fmt.Errorf("history: marshal attempt %s: %w", rec.ID, err))
	}

	const stmt = `
INSERT INTO attempts (user_id, attempt_id, create_time, record)
VALUES ($1, $2, $3, $4);`

	if _, err := s.db.Exec(ctx, stmt, userID, rec.ID, rec.Date, b); err != nil {
		return persistErr("save attempt", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	const stmt = `
SELECT record FROM attempts
WHERE user_id = $1
ORDER BY create_time DESC;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, persistErr("list attempts", err)
	}

	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.AttemptRecord, error) {
		var b []byte
		if err := r.Scan(&b); err != nil {
			return domain.AttemptRecord{}, err
		}

		var rec domain.AttemptRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return domain.AttemptRecord{}, errors.New(errors.CodeInvalidConfiguration,
				errors.WithMessagef("history: stored attempt is not valid JSON"),
				errors.WithCause(err))
		}
		if err := validateRecord(rec); err != nil {
			return domain.AttemptRecord{}, err
		}
		return rec, nil
	})
	if err != nil {
		if errors.Is(err, errors.CodeInvalidConfiguration) {
			return nil, err
		}
		return nil, persistErr("collect attempts", err)
	}

	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, recordID string) error {
	const stmt = `DELETE FROM attempts WHERE user_id = $1 AND attempt_id = $2;`
	if _, err := s.db.Exec(ctx, stmt, userID, recordID); err != nil {
		return persistErr("delete attempt", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) error {
	const stmt = `DELETE FROM attempts WHERE user_id = $1;`
	if _, err := s.db.Exec(ctx, stmt, userID); err != nil {
		return persistErr("clear attempts", err)
	}
	return nil
}
