package quiz

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
	"github.com/examdeck/examdeck/internal/event"
	"github.com/examdeck/examdeck/internal/history"
)

const persistTimeout = 10 * time.Second

type Config struct {
	EventBus *event.Bus
	History  history.Store

	// NewTicker lets tests drive the countdown manually. Defaults to
	// NewRealTicker.
	NewTicker TickerFactory
	// Rand seeds question sampling deterministically in tests.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service is the quiz session controller. It owns at most one live session
// per user scope and is the only writer to it; the countdown goroutine and
// API handlers serialize on the service mutex, so transitions are processed
// in invocation order.
type Service struct {
	c Config

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the mutable state of one attempt. Once phase reaches Submitted
// the selections, flags and cursor are frozen into record.
type session struct {
	exam       domain.Exam
	questions  []domain.Question
	selections []domain.OptionSet
	flags      []bool
	current    int
	remaining  int
	phase      domain.Phase
	countdown  *Countdown

	record    *domain.AttemptRecord
	persisted bool
}

func NewService(c Config) *Service {
	if c.NewTicker == nil {
		c.NewTicker = NewRealTicker
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		c:        c,
		sessions: make(map[string]*session),
	}
}

// State is a read-only snapshot of a session, safe to hand to the API layer.
type State struct {
	ExamID         string                `json:"examId"`
	ExamTitle      string                `json:"examTitle"`
	Phase          domain.Phase          `json:"phase"`
	CurrentIndex   int                   `json:"currentIndex"`
	TotalQuestions int                   `json:"totalQuestions"`
	Question       domain.Question       `json:"question"`
	Selections     []domain.OptionSet    `json:"selections"`
	Flags          []bool                `json:"flags"`
	TimeRemaining  int                   `json:"timeRemaining"`
	Flagged        []int                 `json:"flagged"`
	Unanswered     []int                 `json:"unanswered"`
	Record         *domain.AttemptRecord `json:"record,omitempty"`
	Persisted      bool                  `json:"persisted,omitempty"`
}

type StartRequest struct {
	UserID string
	Exam   domain.Exam
}

// Start samples the exam's question pool and opens a new Active session at
// question 0. Any session the user still had is discarded first (the UI owns
// the exit confirmation); its timer is stopped and nothing of it is persisted.
func (s *Service) Start(req StartRequest) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := Sample(req.Exam.QuestionPool, req.Exam.SampleSize, s.c.Rand)
	if err != nil {
		return nil, err
	}

	if old := s.sessions[req.UserID]; old != nil && old.countdown != nil {
		old.countdown.Stop()
	}

	sess := &session{
		exam:       req.Exam,
		questions:  questions,
		selections: make([]domain.OptionSet, len(questions)),
		flags:      make([]bool, len(questions)),
		remaining:  req.Exam.DurationSeconds,
		phase:      domain.PhaseActive,
	}
	for i := range sess.selections {
		sess.selections[i] = domain.OptionSet{}
	}

	userID := req.UserID
	sess.countdown = StartCountdown(s.c.NewTicker, func() { s.tick(userID, sess) })
	s.sessions[userID] = sess

	return snapshot(sess), nil
}

type ToggleSelectionRequest struct {
	UserID        string
	QuestionIndex int
	OptionIndex   int
}

// ToggleSelection records an option click. Multi-select questions (more than
// one correct option) toggle membership of the option in the selection set;
// single-select questions replace the whole set, radio-button style.
func (s *Service) ToggleSelection(req ToggleSelectionRequest) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.active(req.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(req.QuestionIndex, len(sess.questions)); err != nil {
		return nil, err
	}
	if err := checkIndex(req.OptionIndex, len(sess.questions[req.QuestionIndex].Options)); err != nil {
		return nil, err
	}

	sel := sess.selections[req.QuestionIndex]
	if sess.questions[req.QuestionIndex].MultiSelect() {
		if sel.Has(req.OptionIndex) {
			sel.Remove(req.OptionIndex)
		} else {
			sel.Add(req.OptionIndex)
		}
	} else {
		sess.selections[req.QuestionIndex] = domain.NewOptionSet(req.OptionIndex)
	}

	return snapshot(sess), nil
}

type ToggleFlagRequest struct {
	UserID        string
	QuestionIndex int
}

// ToggleFlag inverts the revisit marker on a question, independent of its
// answer state.
func (s *Service) ToggleFlag(req ToggleFlagRequest) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.active(req.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(req.QuestionIndex, len(sess.questions)); err != nil {
		return nil, err
	}

	sess.flags[req.QuestionIndex] = !sess.flags[req.QuestionIndex]
	return snapshot(sess), nil
}

// Next advances the cursor. On the last question it opens the final review
// gate instead of advancing.
func (s *Service) Next(userID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.active(userID)
	if err != nil {
		return nil, err
	}

	if sess.current < len(sess.questions)-1 {
		sess.current++
	} else {
		sess.phase = domain.PhaseFinalReview
	}
	return snapshot(sess), nil
}

// Prev moves the cursor back one question.
func (s *Service) Prev(userID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.active(userID)
	if err != nil {
		return nil, err
	}

	if sess.current == 0 {
		return nil, errors.New(errors.CodeInvalidTransition,
			errors.WithMessagef("already at the first question"))
	}
	sess.current--
	return snapshot(sess), nil
}

type JumpRequest struct {
	UserID string
	Index  int
}

// JumpTo moves the cursor directly to a question. Jumping from the final
// review gate re-enters the Active phase so the question can be edited.
func (s *Service) JumpTo(req JumpRequest) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[req.UserID]
	if sess == nil {
		return nil, errNoSession(req.UserID)
	}
	if sess.phase == domain.PhaseSubmitted {
		return nil, errSubmitted()
	}
	if err := checkIndex(req.Index, len(sess.questions)); err != nil {
		return nil, err
	}

	sess.current = req.Index
	sess.phase = domain.PhaseActive
	return snapshot(sess), nil
}

type SubmitResponse struct {
	Record    domain.AttemptRecord `json:"record"`
	Persisted bool                 `json:"persisted"`
}

// Submit grades the session and freezes it into an AttemptRecord. A session
// submits exactly once; submitting again fails with InvalidTransition. The
// record is handed to the history store, but a persistence failure is
// non-fatal: the submitted session stays reviewable in memory either way.
func (s *Service) Submit(ctx context.Context, userID string) (*SubmitResponse, error) {
	s.mu.Lock()
	sess := s.sessions[userID]
	if sess == nil {
		s.mu.Unlock()
		return nil, errNoSession(userID)
	}
	if sess.phase == domain.PhaseSubmitted {
		s.mu.Unlock()
		return nil, errSubmitted()
	}
	rec := s.finalizeLocked(sess)
	s.mu.Unlock()

	persisted := s.persist(ctx, userID, rec)
	return &SubmitResponse{Record: rec, Persisted: persisted}, nil
}

// Discard drops the user's session without submitting: the timer is stopped
// and nothing is persisted.
func (s *Service) Discard(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.sessions[userID]; sess != nil {
		sess.countdown.Stop()
		delete(s.sessions, userID)
	}
}

// State returns a snapshot of the user's session.
func (s *Service) State(userID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[userID]
	if sess == nil {
		return nil, errNoSession(userID)
	}
	return snapshot(sess), nil
}

// Review builds the read-only review view of the user's submitted session.
func (s *Service) Review(userID string, filter ReviewFilter) (*ReviewView, error) {
	s.mu.Lock()
	sess := s.sessions[userID]
	var rec *domain.AttemptRecord
	if sess != nil {
		rec = sess.record
	}
	s.mu.Unlock()

	if rec == nil {
		return nil, errors.New(errors.CodeInvalidTransition,
			errors.WithMessagef("no submitted attempt to review: user=%s", userID))
	}
	return BuildReview(*rec, filter)
}

// Close discards every live session. Used on server shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, sess := range s.sessions {
		sess.countdown.Stop()
		delete(s.sessions, userID)
	}
}

// tick runs once per countdown second. At the zero crossing it forces a
// submission, bypassing the final review gate: time expiry is unconditional.
// owner pins the tick to the session that armed the countdown: a tick already
// in flight when its session is replaced or discarded must not touch the
// user's current session.
func (s *Service) tick(userID string, owner *session) {
	s.mu.Lock()
	sess := s.sessions[userID]
	if sess != owner || sess.phase == domain.PhaseSubmitted {
		s.mu.Unlock()
		return
	}

	if sess.remaining > 0 {
		sess.remaining--
	}
	if sess.remaining > 0 {
		s.mu.Unlock()
		return
	}

	rec := s.finalizeLocked(sess)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	s.persist(ctx, userID, rec)
}

// finalizeLocked moves the session to Submitted and builds its record. The
// countdown is stopped before anything else so a queued tick cannot race a
// second submission; the phase check makes any straggler a no-op.
func (s *Service) finalizeLocked(sess *session) domain.AttemptRecord {
	sess.countdown.Stop()
	sess.phase = domain.PhaseSubmitted

	res := Score(sess.questions, sess.selections)
	rec := domain.AttemptRecord{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ExamID:         sess.exam.ID,
		ExamTitle:      sess.exam.Title,
		Date:           s.c.Now(),
		Questions:      sess.questions,
		Selections:     sess.selections,
		RawScore:       res.Raw,
		TotalQuestions: res.Total,
		ScaledScore:    res.Scaled,
		PassingScore:   sess.exam.PassingScore,
	}
	sess.record = &rec
	return rec
}

func (s *Service) persist(ctx context.Context, userID string, rec domain.AttemptRecord) bool {
	persisted := true
	if s.c.History != nil {
		sctx, cancel := context.WithTimeout(ctx, persistTimeout)
		if err := s.c.History.Save(sctx, userID, rec); err != nil {
			slog.ErrorContext(sctx, "quiz: persist attempt failed",
				"user", userID,
				"attempt", rec.ID,
				"error", err,
			)
			persisted = false
		}
		cancel()
	}

	s.mu.Lock()
	if sess := s.sessions[userID]; sess != nil && sess.record != nil && sess.record.ID == rec.ID {
		sess.persisted = persisted
	}
	s.mu.Unlock()

	if s.c.EventBus != nil {
		s.c.EventBus.Publish(ctx, domain.EventAttemptSubmitted{
			UserID:    userID,
			Record:    rec,
			Persisted: persisted,
		})
	}

	return persisted
}

// active returns the user's session if it is in the Active phase.
func (s *Service) active(userID string) (*session, error) {
	sess := s.sessions[userID]
	if sess == nil {
		return nil, errNoSession(userID)
	}
	if sess.phase != domain.PhaseActive {
		if sess.phase == domain.PhaseSubmitted {
			return nil, errSubmitted()
		}
		return nil, errors.New(errors.CodeInvalidTransition,
			errors.WithMessagef("session is in %s phase", sess.phase))
	}
	return sess, nil
}

func snapshot(sess *session) *State {
	st := &State{
		ExamID:         sess.exam.ID,
		ExamTitle:      sess.exam.Title,
		Phase:          sess.phase,
		CurrentIndex:   sess.current,
		TotalQuestions: len(sess.questions),
		Question:       sess.questions[sess.current],
		Selections:     make([]domain.OptionSet, len(sess.selections)),
		Flags:          append([]bool(nil), sess.flags...),
		TimeRemaining:  sess.remaining,
		Record:         sess.record,
		Persisted:      sess.persisted,
	}

	for i, sel := range sess.selections {
		st.Selections[i] = domain.NewOptionSet(sel.Indices()...)
		if len(sel) == 0 {
			st.Unanswered = append(st.Unanswered, i)
		}
	}
	for i, f := range sess.flags {
		if f {
			st.Flagged = append(st.Flagged, i)
		}
	}

	return st
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return errors.New(errors.CodeInvalidTransition,
			errors.WithMessagef("index %d outside 0..%d", i, n-1))
	}
	return nil
}

func errNoSession(userID string) error {
	return errors.New(errors.CodeNotFound,
		errors.WithMessagef("no live session: user=%s", userID))
}

func errSubmitted() error {
	return errors.New(errors.CodeInvalidTransition,
		errors.WithMessagef("session already submitted"))
}
