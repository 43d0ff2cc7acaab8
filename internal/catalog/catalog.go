package catalog

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

// Catalog is the static, read-only exam bank. It is loaded once at startup and
// never mutated by a session.
type Catalog struct {
	exams []domain.Exam
	byID  map[string]int
}

// Load reads and validates an exam catalog from a JSON file.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("catalog: read %s", path),
			errors.WithCause(err))
	}

	var exams []domain.Exam
	if err := json.Unmarshal(b, &exams); err != nil {
		return nil, errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("catalog: parse %s", path),
			errors.WithCause(err))
	}

	return New(exams)
}

// New builds a catalog from pre-loaded exams, validating every entry. Catalog
// defects are surfaced, never silently corrected.
func New(exams []domain.Exam) (*Catalog, error) {
	c := &Catalog{
		exams: exams,
		byID:  make(map[string]int, len(exams)),
	}

	for i, e := range exams {
		if err := validateExam(e); err != nil {
			return nil, err
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, errors.New(errors.CodeInvalidConfiguration,
				errors.WithMessagef("catalog: duplicate exam id %q", e.ID))
		}
		c.byID[e.ID] = i
	}

	return c, nil
}

func validateExam(e domain.Exam) error {
	fail := func(format string, args ...any) error {
		return errors.New(errors.CodeInvalidConfiguration, errors.WithMessagef(format, args...))
	}

	if e.ID == "" {
		return fail("catalog: exam with empty id")
	}
	if len(e.QuestionPool) == 0 {
		return fail("catalog: exam %q has no questions", e.ID)
	}
	if e.SampleSize <= 0 || e.SampleSize > len(e.QuestionPool) {
		return fail("catalog: exam %q sample size %d outside 1..%d", e.ID, e.SampleSize, len(e.QuestionPool))
	}
	if e.DurationSeconds <= 0 {
		return fail("catalog: exam %q duration %d not positive", e.ID, e.DurationSeconds)
	}

	for _, q := range e.QuestionPool {
		if q.ID == "" {
			return fail("catalog: exam %q has a question with empty id", e.ID)
		}
		if len(q.Options) == 0 {
			return fail("catalog: exam %q question %q has no options", e.ID, q.ID)
		}
		if len(q.CorrectOptions()) == 0 {
			return fail("catalog: exam %q question %q has no correct option", e.ID, q.ID)
		}
	}

	return nil
}

// Exams returns all catalog entries in load order.
func (c *Catalog) Exams() []domain.Exam {
	out := make([]domain.Exam, len(c.exams))
	copy(out, c.exams)
	return out
}

// Get returns the exam with the given id.
func (c *Catalog) Get(id string) (domain.Exam, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Exam{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("exam not found: %s", id))
	}
	return c.exams[i], nil
}

// Filter returns exams matching the category (empty or "All" matches every
// category) and a case-insensitive search over title and description.
func (c *Catalog) Filter(category, search string) []domain.Exam {
	search = strings.ToLower(search)

	var out []domain.Exam
	for _, e := range c.exams {
		if category != "" && category != "All" && e.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Title), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Categories returns the distinct exam categories, sorted.
func (c *Catalog) Categories() []string {
	seen := map[string]struct{}{}
	for _, e := range c.exams {
		seen[e.Category] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
