package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examdeck/examdeck/internal/catalog"
	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

func makeExam(id, category string) domain.Exam {
	return domain.Exam{
		ID:              id,
		Title:           "Title " + id,
		Description:     "Description of " + id,
		Category:        category,
		SampleSize:      1,
		DurationSeconds: 60,
		PassingScore:    700,
		QuestionPool: []domain.Question{
			{
				ID: id + "-q1",
				Options: []domain.AnswerOption{
					{Text: "right", Correct: true},
					{Text: "wrong"},
				},
			},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	tests := map[string]struct {
		mutate func(e *domain.Exam)
	}{
		"empty exam id":         {mutate: func(e *domain.Exam) { e.ID = "" }},
		"no questions":          {mutate: func(e *domain.Exam) { e.QuestionPool = nil }},
		"zero sample size":      {mutate: func(e *domain.Exam) { e.SampleSize = 0 }},
		"sample size over pool": {mutate: func(e *domain.Exam) { e.SampleSize = 2 }},
		"non-positive duration": {mutate: func(e *domain.Exam) { e.DurationSeconds = 0 }},
		"question without id": {mutate: func(e *domain.Exam) {
			e.QuestionPool[0].ID = ""
		}},
		"question without options": {mutate: func(e *domain.Exam) {
			e.QuestionPool[0].Options = nil
		}},
		"question without correct option": {mutate: func(e *domain.Exam) {
			e.QuestionPool[0].Options[0].Correct = false
		}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := makeExam("exam-1", "CompTIA")
			tt.mutate(&e)

			_, err := catalog.New([]domain.Exam{e})
			require.True(t, errors.Is(err, errors.CodeInvalidConfiguration))
		})
	}
}

func TestNew_DuplicateID(t *testing.T) {
	_, err := catalog.New([]domain.Exam{
		makeExam("exam-1", "CompTIA"),
		makeExam("exam-1", "Google Cloud"),
	})
	require.True(t, errors.Is(err, errors.CodeInvalidConfiguration))
}

func TestCatalog_Get(t *testing.T) {
	c, err := catalog.New([]domain.Exam{makeExam("exam-1", "CompTIA")})
	require.NoError(t, err)

	e, err := c.Get("exam-1")
	require.NoError(t, err)
	require.Equal(t, "exam-1", e.ID)

	_, err = c.Get("nope")
	require.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestCatalog_Filter(t *testing.T) {
	c, err := catalog.New([]domain.Exam{
		makeExam("sec", "CompTIA"),
		makeExam("net", "CompTIA"),
		makeExam("gcp", "Google Cloud"),
	})
	require.NoError(t, err)

	ids := func(exams []domain.Exam) []string {
		var out []string
		for _, e := range exams {
			out = append(out, e.ID)
		}
		return out
	}

	tests := map[string]struct {
		category string
		search   string
		want     []string
	}{
		"no filter":                  {want: []string{"sec", "net", "gcp"}},
		"All matches everything":     {category: "All", want: []string{"sec", "net", "gcp"}},
		"by category":                {category: "Google Cloud", want: []string{"gcp"}},
		"search is case-insensitive": {search: "TITLE NET", want: []string{"net"}},
		"search hits description":    {search: "description of gcp", want: []string{"gcp"}},
		"category and search":        {category: "CompTIA", search: "sec", want: []string{"sec"}},
		"no match":                   {search: "zzz", want: nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, ids(c.Filter(tt.category, tt.search)))
		})
	}
}

func TestCatalog_Categories(t *testing.T) {
	c, err := catalog.New([]domain.Exam{
		makeExam("sec", "CompTIA"),
		makeExam("net", "CompTIA"),
		makeExam("gcp", "Google Cloud"),
	})
	require.NoError(t, err)

	require.Equal(t, []string{"CompTIA", "Google Cloud"}, c.Categories())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "exams.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{
			"id": "exam-1",
			"title": "Security+",
			"category": "CompTIA",
			"sampleSize": 1,
			"durationSeconds": 60,
			"passingScore": 750,
			"questions": [
				{
					"id": "q1",
					"text": "Pick the right one.",
					"options": [
						{"text": "right", "isCorrect": true},
						{"text": "wrong", "isCorrect": false}
					]
				}
			]
		}
	]`), 0o600))

	c, err := catalog.Load(path)
	require.NoError(t, err)

	e, err := c.Get("exam-1")
	require.NoError(t, err)
	require.Equal(t, "Security+", e.Title)
	require.True(t, e.QuestionPool[0].Options[0].Correct)
}

func TestLoad_BadFile(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.True(t, errors.Is(err, errors.CodeInvalidConfiguration))

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = catalog.Load(path)
	require.True(t, errors.Is(err, errors.CodeInvalidConfiguration))
}
