package api_test

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/examdeck/examdeck/internal/api"
	"github.com/examdeck/examdeck/internal/auth"
	"github.com/examdeck/examdeck/internal/catalog"
	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/event"
	"github.com/examdeck/examdeck/internal/history"
	"github.com/examdeck/examdeck/internal/prefs"
	"github.com/examdeck/examdeck/internal/quiz"
)

type fixture struct {
	engine *gin.Engine
	quiz   *quiz.Service
}

func makeFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	r := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = r.Close() })

	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	as, err := auth.NewService(auth.Config{Secret: "test-secret"})
	require.NoError(t, err)

	cat, err := catalog.New([]domain.Exam{
		{
			ID:              "exam-1",
			Title:           "Security+ SY0-701",
			Description:     "Practice exam",
			Category:        "CompTIA",
			SampleSize:      2,
			DurationSeconds: 60,
			PassingScore:    750,
			QuestionPool: []domain.Question{
				{ID: "q1", Options: []domain.AnswerOption{{Text: "right", Correct: true}, {Text: "wrong"}}},
				{ID: "q2", Options: []domain.AnswerOption{{Text: "right", Correct: true}, {Text: "wrong"}}},
			},
		},
	})
	require.NoError(t, err)

	store := history.NewRedisStore(r, "examdeck")

	qs := quiz.NewService(quiz.Config{
		EventBus: eb,
		History:  store,
		Rand:     rand.New(rand.NewSource(1)),
	})
	t.Cleanup(qs.Close)

	e := gin.New()
	api.New(api.Config{
		Router:       e,
		EventBus:     eb,
		Auth:         as,
		Catalog:      cat,
		Quiz:         qs,
		History:      store,
		Prefs:        prefs.NewService(prefs.Config{Redis: r, Prefix: "examdeck"}),
		Redis:        r,
		PubsubPrefix: "examdeck",
	})

	return &fixture{engine: e, quiz: qs}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) signIn(t *testing.T) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/v1/auth/guest", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp auth.SignInResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestAPI_ExamCatalog(t *testing.T) {
	f := makeFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/exams", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Exams      []domain.Exam `json:"exams"`
		Categories []string      `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Exams, 1)
	require.Equal(t, []string{"CompTIA"}, resp.Categories)

	w = f.do(t, http.MethodGet, "/api/v1/exams?category=AWS", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Empty(t, resp.Exams)

	w = f.do(t, http.MethodGet, "/api/v1/exams/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_QuizFlow(t *testing.T) {
	f := makeFixture(t)
	token := f.signIn(t)

	w := f.do(t, http.MethodPost, "/api/v1/exams/exam-1/session", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var st quiz.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, domain.PhaseActive, st.Phase)
	require.Equal(t, 2, st.TotalQuestions)

	w = f.do(t, http.MethodPost, "/api/v1/session/answer", token, `{"questionIndex":0,"optionIndex":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/session/next", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/session/submit", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp quiz.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Persisted)
	require.Equal(t, 500, resp.Record.ScaledScore)

	// Submitting again conflicts.
	w = f.do(t, http.MethodPost, "/api/v1/session/submit", token, "")
	require.Equal(t, http.StatusConflict, w.Code)

	// The attempt landed in history.
	w = f.do(t, http.MethodGet, "/api/v1/attempts", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Attempts []domain.AttemptRecord `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Attempts, 1)
	require.Equal(t, resp.Record.ID, list.Attempts[0].ID)

	// Review of the stored attempt, incorrect-only.
	w = f.do(t, http.MethodGet, "/api/v1/attempts/"+resp.Record.ID+"/review?filter=incorrect", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var review quiz.ReviewView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &review))
	require.Len(t, review.Items, 1)

	// Delete it, history is empty again.
	w = f.do(t, http.MethodDelete, "/api/v1/attempts/"+resp.Record.ID, token, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/attempts", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Empty(t, list.Attempts)
}

func TestAPI_ClientIDFallback(t *testing.T) {
	f := makeFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/exam-1/session", strings.NewReader(""))
	req.Header.Set("X-Client-ID", "device-42")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// History endpoints never accept the fallback id.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/attempts", nil)
	req.Header.Set("X-Client-ID", "device-42")
	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_RequiresIdentity(t *testing.T) {
	f := makeFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/session", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/session", "garbage-token", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_Preferences(t *testing.T) {
	f := makeFixture(t)
	token := f.signIn(t)

	w := f.do(t, http.MethodGet, "/api/v1/me/preferences", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var p domain.Preferences
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, prefs.ThemeLight, p.Theme)

	w = f.do(t, http.MethodPut, "/api/v1/me/preferences", token, `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/me/preferences", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, prefs.ThemeDark, p.Theme)

	w = f.do(t, http.MethodPut, "/api/v1/me/preferences", token, `{"theme":"sepia"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPI_BadRequestBody(t *testing.T) {
	f := makeFixture(t)
	token := f.signIn(t)

	w := f.do(t, http.MethodPost, "/api/v1/exams/exam-1/session", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/session/answer", token, `{"questionIndex":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/session/answer", token, `{"questionIndex":99,"optionIndex":0}`)
	require.Equal(t, http.StatusConflict, w.Code)
}
