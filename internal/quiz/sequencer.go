package quiz

import (
	"math/rand"
	"time"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

// Sample draws size questions without replacement from pool: an unbiased
// Fisher-Yates permutation of a copy, truncated to size. The pool itself is
// never mutated. A size outside 1..len(pool) is a catalog data bug and fails
// with InvalidConfiguration.
//
// rng may be nil, in which case a time-seeded source is used.
func Sample(pool []domain.Question, size int, rng *rand.Rand) ([]domain.Question, error) {
	if size <= 0 || size > len(pool) {
		return nil, errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("sample size %d outside 1..%d", size, len(pool)))
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	out := append([]domain.Question(nil), pool...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:size:size], nil
}
