package quiz

import (
	"github.com/shopspring/decimal"

	"github.com/examdeck/examdeck/internal/domain"
)

// Scoring maps raw accuracy onto a fixed 100..900 display scale so scores are
// comparable across exams with different question counts.
var (
	scaleSpan = decimal.NewFromInt(800)
	scaleBase = decimal.NewFromInt(100)
)

// ScaledMin is the scaled score of an all-wrong (or empty) attempt.
const ScaledMin = 100

// Result is the outcome of scoring one attempt.
type Result struct {
	// Raw is the number of correct questions. Carried as a decimal so a
	// future partial-credit scheme does not change the record shape.
	Raw     decimal.Decimal
	Correct int
	Total   int
	Scaled  int
}

// Score grades an attempt with all-or-nothing set equality: question i counts
// as correct iff the set of its correct option indices equals selections[i]
// exactly. Partially or over-selected multi-select answers score zero. A
// question with no correct options defined never contributes a point.
func Score(questions []domain.Question, selections []domain.OptionSet) Result {
	correct := 0
	for i, q := range questions {
		want := q.CorrectOptions()
		if len(want) == 0 {
			continue
		}

		var got domain.OptionSet
		if i < len(selections) {
			got = selections[i]
		}
		if want.Equal(got) {
			correct++
		}
	}

	r := Result{
		Raw:     decimal.NewFromInt(int64(correct)),
		Correct: correct,
		Total:   len(questions),
	}
	r.Scaled = scale(correct, len(questions))
	return r
}

// scale computes round(correct/total*800 + 100); 100 for an empty exam.
func scale(correct, total int) int {
	if total == 0 {
		return ScaledMin
	}

	s := decimal.NewFromInt(int64(correct)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(scaleSpan).
		Add(scaleBase)
	return int(s.Round(0).IntPart())
}
