package quiz_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/quiz"
)

// q builds a question whose correct options are the given indices out of five.
func q(correct ...int) domain.Question {
	question := domain.Question{Options: make([]domain.AnswerOption, 5)}
	for _, i := range correct {
		question.Options[i].Correct = true
	}
	return question
}

func TestScore(t *testing.T) {
	tests := map[string]struct {
		questions  []domain.Question
		selections []domain.OptionSet
		wantRaw    int
		wantScaled int
	}{
		"all correct": {
			questions:  []domain.Question{q(0), q(1), q(2)},
			selections: []domain.OptionSet{domain.NewOptionSet(0), domain.NewOptionSet(1), domain.NewOptionSet(2)},
			wantRaw:    3,
			wantScaled: 900,
		},
		"all wrong": {
			questions:  []domain.Question{q(0), q(1)},
			selections: []domain.OptionSet{domain.NewOptionSet(1), domain.NewOptionSet(0)},
			wantRaw:    0,
			wantScaled: 100,
		},
		"unanswered scores zero": {
			questions:  []domain.Question{q(0), q(1)},
			selections: []domain.OptionSet{domain.NewOptionSet(0), {}},
			wantRaw:    1,
			wantScaled: 500,
		},
		"68 of 90 scales to 704": {
			questions:  repeat(q(0), 90),
			selections: answers(90, 68),
			wantRaw:    68,
			wantScaled: 704,
		},
		"multi-select requires exact set": {
			questions: []domain.Question{q(0, 2)},
			selections: []domain.OptionSet{
				domain.NewOptionSet(0, 2),
			},
			wantRaw:    1,
			wantScaled: 900,
		},
		"partial multi-select scores zero": {
			questions:  []domain.Question{q(0, 2)},
			selections: []domain.OptionSet{domain.NewOptionSet(0)},
			wantRaw:    0,
			wantScaled: 100,
		},
		"over-selection scores zero": {
			questions:  []domain.Question{q(0, 2)},
			selections: []domain.OptionSet{domain.NewOptionSet(0, 1, 2)},
			wantRaw:    0,
			wantScaled: 100,
		},
		"question without correct options never scores": {
			questions:  []domain.Question{q(), q(0)},
			selections: []domain.OptionSet{domain.NewOptionSet(0), domain.NewOptionSet(0)},
			wantRaw:    1,
			wantScaled: 500,
		},
		"empty exam scales to the floor": {
			questions:  nil,
			selections: nil,
			wantRaw:    0,
			wantScaled: 100,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res := quiz.Score(tt.questions, tt.selections)

			require.Equal(t, tt.wantRaw, res.Correct)
			require.Equal(t, int64(tt.wantRaw), res.Raw.IntPart())
			require.Equal(t, len(tt.questions), res.Total)
			require.Equal(t, tt.wantScaled, res.Scaled)
		})
	}
}

func repeat(question domain.Question, n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = question
	}
	return out
}

// answers selects the correct option for the first k of n single-select
// questions built by q(0), and a wrong option for the rest.
func answers(n, k int) []domain.OptionSet {
	out := make([]domain.OptionSet, n)
	for i := range out {
		if i < k {
			out[i] = domain.NewOptionSet(0)
		} else {
			out[i] = domain.NewOptionSet(1)
		}
	}
	return out
}
