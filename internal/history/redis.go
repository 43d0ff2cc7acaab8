package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

// RedisStore keeps each user's attempts in a hash of record JSON keyed by
// attempt id, with a companion sorted set indexing ids by attempt date for
// newest-first listing.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(r redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{redis: r, prefix: prefix}
}

func (s *RedisStore) Save(ctx context.Context, userID string, rec domain.AttemptRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Internal(fmt.Errorf("history: marshal attempt %s: %w", rec.ID, err))
	}

	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.recordsKey(userID), rec.ID, b)
		p.ZAdd(ctx, s.indexKey(userID), redis.Z{
			Score:  float64(rec.Date.UnixMilli()),
			Member: rec.ID,
		})
		return nil
	})
	if err != nil {
		return persistErr("save attempt", err)
	}

	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	ids, err := s.redis.ZRevRange(ctx, s.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, persistErr("list attempts", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := s.redis.HMGet(ctx, s.recordsKey(userID), ids...).Result()
	if err != nil {
		return nil, persistErr("load attempts", err)
	}

	out := make([]domain.AttemptRecord, 0, len(raw))
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			return nil, errors.New(errors.CodeInvalidConfiguration,
				errors.WithMessagef("history: attempt %s indexed but missing", ids[i]))
		}

		var rec domain.AttemptRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, errors.New(errors.CodeInvalidConfiguration,
				errors.WithMessagef("history: attempt %s is not valid JSON", ids[i]),
				errors.WithCause(err))
		}
		if err := validateRecord(rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID, recordID string) error {
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.recordsKey(userID), recordID)
		p.ZRem(ctx, s.indexKey(userID), recordID)
		return nil
	})
	if err != nil {
		return persistErr("delete attempt", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.recordsKey(userID), s.indexKey(userID)).Err(); err != nil {
		return persistErr("clear attempts", err)
	}
	return nil
}

func (s *RedisStore) recordsKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:attempts", s.prefix, userID)
}

func (s *RedisStore) indexKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:attempts:by-date", s.prefix, userID)
}

func persistErr(op string, err error) error {
	return errors.New(errors.CodePersistenceFailure,
		errors.WithMessagef("history: %s", op),
		errors.WithCause(err))
}
