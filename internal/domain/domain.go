package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AnswerOption is a single choice within a question.
type AnswerOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Question is an immutable catalog entry. A question is multi-select when more
// than one of its options is correct.
type Question struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Options     []AnswerOption `json:"options"`
	Explanation string         `json:"explanation,omitempty"`
	ImageRef    string         `json:"imageRef,omitempty"`
}

// CorrectOptions returns the set of option indices marked correct.
func (q Question) CorrectOptions() OptionSet {
	s := OptionSet{}
	for i, opt := range q.Options {
		if opt.Correct {
			s.Add(i)
		}
	}
	return s
}

func (q Question) MultiSelect() bool {
	return len(q.CorrectOptions()) > 1
}

// Exam describes one entry of the static exam catalog. The icon and category
// are opaque display attributes resolved by the presentation layer.
type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Icon            string     `json:"icon,omitempty"`
	QuestionPool    []Question `json:"questions"`
	SampleSize      int        `json:"sampleSize"`
	DurationSeconds int        `json:"durationSeconds"`
	PassingScore    int        `json:"passingScore"`
}

// OptionSet is a set of selected option indices for one question.
// It serializes as a sorted JSON array, so a session's selections round-trip
// as an ordered list of index arrays, one per question.
type OptionSet map[int]struct{}

func NewOptionSet(indices ...int) OptionSet {
	s := OptionSet{}
	for _, i := range indices {
		s.Add(i)
	}
	return s
}

func (s OptionSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

func (s OptionSet) Add(i int)    { s[i] = struct{}{} }
func (s OptionSet) Remove(i int) { delete(s, i) }

// Equal reports set equality: same size, same members.
func (s OptionSet) Equal(o OptionSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !o.Has(i) {
			return false
		}
	}
	return true
}

// Indices returns the members in ascending order.
func (s OptionSet) Indices() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s OptionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Indices())
}

func (s *OptionSet) UnmarshalJSON(b []byte) error {
	var indices []int
	if err := json.Unmarshal(b, &indices); err != nil {
		return err
	}
	*s = NewOptionSet(indices...)
	return nil
}

// Phase is the lifecycle state of a quiz session.
type Phase string

const (
	// PhaseActive: the user is answering questions.
	PhaseActive Phase = "active"
	// PhaseFinalReview: the user stepped past the last question and is shown
	// the flagged/unanswered summary; navigating back re-enters Active.
	PhaseFinalReview Phase = "final_review"
	// PhaseSubmitted: terminal; the session is frozen into an AttemptRecord.
	PhaseSubmitted Phase = "submitted"
)

// AttemptRecord is the immutable outcome of one submitted session. Questions
// and selections are snapshotted so a past attempt reviews identically even if
// the catalog changes later.
type AttemptRecord struct {
	ID             string          `json:"id"`
	ExamID         string          `json:"examId"`
	ExamTitle      string          `json:"examTitle"`
	Date           time.Time       `json:"date"`
	Questions      []Question      `json:"questions"`
	Selections     []OptionSet     `json:"selections"`
	RawScore       decimal.Decimal `json:"rawScore"`
	TotalQuestions int             `json:"totalQuestions"`
	ScaledScore    int             `json:"scaledScore"`
	PassingScore   int             `json:"passingScore"`
}

func (r AttemptRecord) Passed() bool {
	return r.ScaledScore >= r.PassingScore
}

// Preferences are per-user display settings.
type Preferences struct {
	Theme string `json:"theme"`
}
