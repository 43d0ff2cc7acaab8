package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/examdeck/examdeck/internal/auth"
	"github.com/examdeck/examdeck/internal/catalog"
	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
	"github.com/examdeck/examdeck/internal/event"
	"github.com/examdeck/examdeck/internal/history"
	"github.com/examdeck/examdeck/internal/prefs"
	"github.com/examdeck/examdeck/internal/quiz"
)

type Config struct {
	Router   gin.IRouter
	EventBus *event.Bus

	Auth    *auth.Service
	Catalog *catalog.Catalog
	Quiz    *quiz.Service
	History history.Store
	Prefs   *prefs.Service

	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	auth    *auth.Service
	catalog *catalog.Catalog
	quiz    *quiz.Service
	history history.Store
	prefs   *prefs.Service

	eb     *event.Bus
	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		auth:    c.Auth,
		catalog: c.Catalog,
		quiz:    c.Quiz,
		history: c.History,
		prefs:   c.Prefs,
		eb:      c.EventBus,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
	}

	v1 := c.Router.Group("/api/v1")

	v1.POST("/auth/guest", a.signInGuest)
	v1.GET("/exams", a.listExams)
	v1.GET("/exams/:id", a.getExam)

	// Quiz routes accept a client-supplied id so an auth outage never blocks
	// taking a quiz.
	q := v1.Group("", a.identify(false))
	q.POST("/exams/:id/session", a.startSession)
	q.GET("/session", a.sessionState)
	q.DELETE("/session", a.discardSession)
	q.POST("/session/answer", a.answer)
	q.POST("/session/flag", a.flag)
	q.POST("/session/next", a.next)
	q.POST("/session/prev", a.prev)
	q.POST("/session/jump", a.jump)
	q.POST("/session/submit", a.submit)
	q.GET("/session/review", a.sessionReview)

	// History and preferences require a verified token.
	p := v1.Group("", a.identify(true))
	p.GET("/attempts", a.listAttempts)
	p.DELETE("/attempts", a.clearAttempts)
	p.DELETE("/attempts/:id", a.deleteAttempt)
	p.GET("/attempts/:id/review", a.attemptReview)
	p.GET("/me/preferences", a.getPreferences)
	p.PUT("/me/preferences", a.putPreferences)

	// Notify subscribed clients about history changes.
	c.EventBus.Subscribe(domain.EventNameAttemptSubmitted, func(ctx context.Context, e event.Event) error {
		return a.publishAttemptSubmitted(ctx, e.(domain.EventAttemptSubmitted))
	})
	c.EventBus.Subscribe(domain.EventNameAttemptDeleted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventAttemptDeleted)
		return a.publishNotification(ctx, ev.UserID, ev.Name(), gin.H{"attemptId": ev.RecordID})
	})
	c.EventBus.Subscribe(domain.EventNameHistoryCleared, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventHistoryCleared)
		return a.publishNotification(ctx, ev.UserID, ev.Name(), gin.H{})
	})

	return a
}

const userIDKey = "examdeck.userID"

// identify resolves the caller's user id. With a Bearer token the id comes
// from the verified claims; otherwise, unless strict, the X-Client-ID header
// is accepted as-is.
func (a *API) identify(strict bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			userID, err := a.auth.Verify(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				abortError(c, err)
				return
			}
			c.Set(userIDKey, userID)
			return
		}

		if !strict {
			if id := c.GetHeader("X-Client-ID"); id != "" {
				c.Set(userIDKey, id)
				return
			}
		}

		abortError(c, errors.New(errors.CodeAuthFailure,
			errors.WithMessagef("missing credentials")))
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (a *API) signInGuest(c *gin.Context) {
	resp, err := a.auth.SignInAnonymously()
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) listExams(c *gin.Context) {
	exams := a.catalog.Filter(c.Query("category"), c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"exams":      exams,
		"categories": a.catalog.Categories(),
	})
}

func (a *API) getExam(c *gin.Context) {
	exam, err := a.catalog.Get(c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

func (a *API) startSession(c *gin.Context) {
	exam, err := a.catalog.Get(c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}

	st, err := a.quiz.Start(quiz.StartRequest{UserID: userID(c), Exam: exam})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) sessionState(c *gin.Context) {
	st, err := a.quiz.State(userID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) discardSession(c *gin.Context) {
	a.quiz.Discard(userID(c))
	c.Status(http.StatusNoContent)
}

func (a *API) answer(c *gin.Context) {
	var req struct {
		QuestionIndex int `json:"questionIndex"`
		OptionIndex   int `json:"optionIndex"`
	}
	if !bindJSON(c, &req) {
		return
	}

	st, err := a.quiz.ToggleSelection(quiz.ToggleSelectionRequest{
		UserID:        userID(c),
		QuestionIndex: req.QuestionIndex,
		OptionIndex:   req.OptionIndex,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) flag(c *gin.Context) {
	var req struct {
		QuestionIndex int `json:"questionIndex"`
	}
	if !bindJSON(c, &req) {
		return
	}

	st, err := a.quiz.ToggleFlag(quiz.ToggleFlagRequest{
		UserID:        userID(c),
		QuestionIndex: req.QuestionIndex,
	})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) next(c *gin.Context) {
	st, err := a.quiz.Next(userID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) prev(c *gin.Context) {
	st, err := a.quiz.Prev(userID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) jump(c *gin.Context) {
	var req struct {
		Index int `json:"index"`
	}
	if !bindJSON(c, &req) {
		return
	}

	st, err := a.quiz.JumpTo(quiz.JumpRequest{UserID: userID(c), Index: req.Index})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) submit(c *gin.Context) {
	resp, err := a.quiz.Submit(c.Request.Context(), userID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) sessionReview(c *gin.Context) {
	v, err := a.quiz.Review(userID(c), reviewFilter(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (a *API) listAttempts(c *gin.Context) {
	recs, err := a.history.List(c.Request.Context(), userID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": recs})
}

func (a *API) clearAttempts(c *gin.Context) {
	if err := a.history.Clear(c.Request.Context(), userID(c)); err != nil {
		abortError(c, err)
		return
	}
	a.eb.Publish(c.Request.Context(), domain.EventHistoryCleared{UserID: userID(c)})
	c.Status(http.StatusNoContent)
}

func (a *API) deleteAttempt(c *gin.Context) {
	if err := a.history.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		abortError(c, err)
		return
	}
	a.eb.Publish(c.Request.Context(), domain.EventAttemptDeleted{UserID: userID(c), RecordID: c.Param("id")})
	c.Status(http.StatusNoContent)
}

func (a *API) attemptReview(c *gin.Context) {
	recs, err := a.history.List(c.Request.Context(), userID(c))
	if err != nil {
		abortError(c, err)
		return
	}

	id := c.Param("id")
	for _, rec := range recs {
		if rec.ID != id {
			continue
		}
		v, err := quiz.BuildReview(rec, reviewFilter(c))
		if err != nil {
			abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
		return
	}

	abortError(c, errors.New(errors.CodeNotFound,
		errors.WithMessagef("attempt %s not found", id)))
}

func (a *API) getPreferences(c *gin.Context) {
	p, err := a.prefs.Get(c.Request.Context(), userID(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *API) putPreferences(c *gin.Context) {
	var p domain.Preferences
	if !bindJSON(c, &p) {
		return
	}
	if err := a.prefs.Set(c.Request.Context(), userID(c), p); err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func reviewFilter(c *gin.Context) quiz.ReviewFilter {
	if c.Query("filter") == string(quiz.FilterIncorrect) {
		return quiz.FilterIncorrect
	}
	return quiz.FilterAll
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_request",
			"message": err.Error(),
		})
		return false
	}
	return true
}

func abortError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"code":    string(e.Code),
		"message": e.Message,
	})
}
