package quiz

import (
	"fmt"
	"regexp"
	"time"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

// Verdict classifies one recorded answer during review.
type Verdict string

const (
	VerdictCorrect    Verdict = "correct"
	VerdictIncorrect  Verdict = "incorrect"
	VerdictUnanswered Verdict = "unanswered"
)

// Classify re-derives the verdict for a question from its stored selection,
// using the same set-equality rule as scoring. It is a pure function of the
// stored data: classifying twice always yields the same verdict.
func Classify(q domain.Question, sel domain.OptionSet) Verdict {
	if len(sel) == 0 {
		return VerdictUnanswered
	}
	if want := q.CorrectOptions(); len(want) > 0 && want.Equal(sel) {
		return VerdictCorrect
	}
	return VerdictIncorrect
}

type ReviewFilter string

const (
	FilterAll ReviewFilter = "all"
	// FilterIncorrect keeps every question that did not score a point,
	// including answered-but-wrong and unanswered ones.
	FilterIncorrect ReviewFilter = "incorrect"
)

type ReviewItem struct {
	// Index is the question's position in the original attempt, preserved
	// across filtering.
	Index     int              `json:"index"`
	Question  domain.Question  `json:"question"`
	Selection domain.OptionSet `json:"selection"`
	Verdict   Verdict          `json:"verdict"`
}

type ReviewView struct {
	Record         domain.AttemptRecord `json:"record"`
	Items          []ReviewItem         `json:"items"`
	Feedback       Feedback             `json:"feedback"`
	ExportFilename string               `json:"exportFilename"`
}

// BuildReview produces the read-only review of a persisted attempt. The
// stored selections must line up one-to-one with the stored questions; a
// malformed record fails with InvalidConfiguration rather than being
// tolerated.
func BuildReview(rec domain.AttemptRecord, filter ReviewFilter) (*ReviewView, error) {
	if len(rec.Selections) != len(rec.Questions) {
		return nil, errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("attempt %s: %d selections for %d questions",
				rec.ID, len(rec.Selections), len(rec.Questions)))
	}

	v := &ReviewView{
		Record:         rec,
		Feedback:       FeedbackFor(rec.ScaledScore, rec.PassingScore),
		ExportFilename: ExportFilename(rec.ExamTitle, rec.Date),
	}

	for i, q := range rec.Questions {
		sel := rec.Selections[i]
		verdict := Classify(q, sel)
		if filter == FilterIncorrect && verdict == VerdictCorrect {
			continue
		}
		v.Items = append(v.Items, ReviewItem{
			Index:     i,
			Question:  q,
			Selection: sel,
			Verdict:   verdict,
		})
	}

	return v, nil
}

type FeedbackTier string

const (
	TierPassed FeedbackTier = "passed"
	TierClose  FeedbackTier = "close"
	TierReview FeedbackTier = "review"
)

// closeMargin is how far below the passing score still counts as "close".
const closeMargin = 150

type Feedback struct {
	Tier    FeedbackTier `json:"tier"`
	Message string       `json:"message"`
}

// FeedbackFor derives the feedback tier from the scaled score against the
// exam's passing score.
func FeedbackFor(scaled, passing int) Feedback {
	switch {
	case scaled >= passing:
		return Feedback{Tier: TierPassed, Message: "Congratulations, you passed!"}
	case scaled >= passing-closeMargin:
		return Feedback{Tier: TierClose, Message: "You're so close!"}
	default:
		return Feedback{Tier: TierReview, Message: "Keep reviewing the key concepts."}
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ExportFilename derives the file name the export collaborator writes a
// rendered review to: the exam title with non-alphanumerics replaced by
// underscores, suffixed with the attempt's ISO date.
func ExportFilename(examTitle string, date time.Time) string {
	safe := unsafeFilenameChars.ReplaceAllString(examTitle, "_")
	return fmt.Sprintf("%s_Review_%s.pdf", safe, date.Format("2006-01-02"))
}
