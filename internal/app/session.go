package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-study-service/internal/domain"
)

// Signaler is the fire-and-forget feedback contract. Implementations must
// never block or fail session logic.
type Signaler interface {
	PlaySuccess()
	PlayError()
	PlayFanfare()
	Shake()
}

// NoopSignaler discards every feedback trigger.
type NoopSignaler struct{}

func (NoopSignaler) PlaySuccess() {}
func (NoopSignaler) PlayError()   {}
func (NoopSignaler) PlayFanfare() {}
func (NoopSignaler) Shake()       {}

// HistoryRecorder persists the outcome of a finished session. The returned
// SyncError reports a failed remote mirror after a successful local write.
type HistoryRecorder interface {
	SaveExamResult(ctx context.Context, rec domain.HistoryRecord) (*domain.SyncError, error)
}

// SessionView is a read-only snapshot of session state for rendering.
type SessionView struct {
	SetID     string                   `json:"setId"`
	Title     string                   `json:"title"`
	Position  int                      `json:"position"`
	Total     int                      `json:"total"`
	Finished  bool                     `json:"finished"`
	Remaining int                      `json:"remaining"`
	Progress  float64                  `json:"progress"`
	Question  *domain.Question         `json:"question,omitempty"`
	Answers   map[string]domain.Answer `json:"answers"`
}

// FormattedRemaining renders the countdown as mm:ss, clamped at 00:00.
func (v SessionView) FormattedRemaining() string {
	if v.Remaining <= 0 {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", v.Remaining/60, v.Remaining%60)
}

// Session owns the lifecycle of exactly one in-progress quiz attempt:
// option shuffling, answer capture, the exam countdown, scoring, and
// one-shot result persistence.
type Session struct {
	history  HistoryRecorder
	signaler Signaler
	logger   *zap.Logger
	now      func() time.Time
	rnd      *rand.Rand

	mu        sync.Mutex
	active    bool
	original  domain.QuestionSet
	current   domain.QuestionSet
	position  int
	answers   map[string]domain.Answer
	input     string
	finished  bool
	finishing bool
	remaining int
	timerStop chan struct{}
}

func NewSession(history HistoryRecorder, signaler Signaler, logger *zap.Logger) *Session {
	return NewSessionWithClock(history, signaler, logger, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(history HistoryRecorder, signaler Signaler, logger *zap.Logger, now func() time.Time) *Session {
	if signaler == nil {
		signaler = NoopSignaler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		history:  history,
		signaler: signaler,
		logger:   logger,
		now:      now,
		rnd:      rand.New(rand.NewSource(now().UnixNano())),
		answers:  make(map[string]domain.Answer),
	}
}

// Start begins a quiz attempt on a private shuffled clone of set. Only
// option order is permuted, never question order.
func (s *Session) Start(set domain.QuestionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.original = set.Clone()
	s.current = s.shuffleOptions(set)
	s.resetStateLocked()
	s.active = true
}

// StartExam is Start plus an armed countdown from the set's time budget.
func (s *Session) StartExam(set domain.QuestionSet) {
	set.Exam = true
	if set.TimeLimit <= 0 {
		set.TimeLimit = int(DefaultExamConfig().TimeLimit.Seconds())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.original = set.Clone()
	s.current = s.shuffleOptions(set)
	s.resetStateLocked()
	s.active = true
	s.remaining = set.TimeLimit
	s.startTimerLocked()
}

// SelectOption records a choice for the active question. Single-choice
// replaces any prior pick and triggers immediate feedback; multiple-choice
// toggles membership silently (graded only at finish).
func (s *Session) SelectOption(optionID string) error {
	s.mu.Lock()
	q := s.activeQuestionLocked()
	if q == nil || s.finished {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}

	switch q.Type {
	case domain.TypeSingle:
		var picked *domain.Option
		for i := range q.Options {
			if q.Options[i].ID == optionID {
				picked = &q.Options[i]
				break
			}
		}
		if picked == nil {
			s.mu.Unlock()
			return domain.ErrOptionNotFound
		}
		s.answers[q.ID] = domain.Answer{OptionID: optionID}
		correct := picked.IsCorrect
		s.mu.Unlock()
		if correct {
			s.signaler.PlaySuccess()
		} else {
			s.signaler.PlayError()
			s.signaler.Shake()
		}
		return nil
	case domain.TypeMultiple:
		answer := s.answers[q.ID]
		toggled := answer.OptionIDs[:0:0]
		found := false
		for _, id := range answer.OptionIDs {
			if id == optionID {
				found = true
				continue
			}
			toggled = append(toggled, id)
		}
		if !found {
			toggled = append(toggled, optionID)
		}
		s.answers[q.ID] = domain.Answer{OptionIDs: toggled}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return domain.ErrQuestionNotFound
}

// SetInput stages free text for the active input-type question; Advance
// commits it.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Advance commits a staged input answer (with feedback), then moves to the
// next question or finishes on the last one.
func (s *Session) Advance(ctx context.Context, mode string) {
	s.mu.Lock()
	q := s.activeQuestionLocked()
	if q == nil || s.finished {
		s.mu.Unlock()
		return
	}

	if q.Type == domain.TypeInput {
		answer := strings.TrimSpace(s.input)
		s.answers[q.ID] = domain.Answer{Text: answer}
		s.input = ""
		correct := normalizeText(answer) == normalizeText(q.Answer)
		signaler := s.signaler
		s.mu.Unlock()
		if correct {
			signaler.PlaySuccess()
		} else {
			signaler.PlayError()
			signaler.Shake()
		}
		s.mu.Lock()
		if s.finished || s.finishing {
			s.mu.Unlock()
			return
		}
	}

	if s.position < len(s.current.Questions)-1 {
		s.position++
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.Finish(ctx, mode)
}

// Finish stops the timer, scores the attempt, and persists exactly one
// history record. Idempotent: the second caller in a timer-expiry vs
// manual-submit race is a no-op.
func (s *Session) Finish(ctx context.Context, mode string) {
	s.mu.Lock()
	if !s.active || s.finished || s.finishing {
		s.mu.Unlock()
		return
	}
	s.finishing = true
	s.stopTimerLocked()

	summary := Score(s.current, s.answers)
	s.finished = true
	set := s.current
	remaining := s.remaining
	s.mu.Unlock()

	if summary.Score >= 80 {
		s.signaler.PlayFanfare()
	}

	timeTaken := 0
	if set.Exam {
		timeTaken = set.TimeLimit - remaining
	}

	record := domain.HistoryRecord{
		ID:        "run-" + uuid.NewString(),
		Date:      s.now().UTC().Format(time.RFC3339),
		Score:     summary.Score,
		Correct:   summary.Correct,
		Total:     summary.Total,
		TimeTaken: timeTaken,
		Mode:      safeMode(mode, set),
		Title:     set.Title,
	}

	if s.history == nil {
		return
	}
	syncErr, err := s.history.SaveExamResult(ctx, record)
	if err != nil {
		s.logger.Error("persist history record", zap.Error(err))
		return
	}
	if syncErr != nil {
		s.logger.Warn("history record mirrored with errors", zap.Error(syncErr))
	}
}

// Reset re-derives a freshly shuffled attempt from the originally provided
// set and, for exam sets, re-arms the countdown.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.current = s.shuffleOptions(s.original)
	s.resetStateLocked()
	if s.original.Exam {
		s.remaining = s.original.TimeLimit
		s.startTimerLocked()
	}
}

// Stop cancels the countdown without scoring; used when the user navigates
// away mid-attempt.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// Result scores the current attempt without finishing it.
func (s *Session) Result() domain.ScoreSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Score(s.current, s.answers)
}

// Snapshot returns a copy of the visible session state.
func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{
		SetID:     s.current.ID,
		Title:     s.current.Title,
		Position:  s.position,
		Total:     len(s.current.Questions),
		Finished:  s.finished,
		Remaining: s.remaining,
		Answers:   make(map[string]domain.Answer, len(s.answers)),
	}
	for id, answer := range s.answers {
		view.Answers[id] = answer
	}
	if view.Total > 0 {
		view.Progress = 100 * float64(s.position) / float64(view.Total)
	}
	if q := s.activeQuestionLocked(); q != nil {
		clone := q.Clone()
		view.Question = &clone
	}
	return view
}

func (s *Session) activeQuestionLocked() *domain.Question {
	if !s.active || s.position < 0 || s.position >= len(s.current.Questions) {
		return nil
	}
	return &s.current.Questions[s.position]
}

func (s *Session) resetStateLocked() {
	s.position = 0
	s.answers = make(map[string]domain.Answer)
	s.input = ""
	s.finished = false
	s.finishing = false
	s.remaining = 0
	s.stopTimerLocked()
}

// shuffleOptions deep-clones the set and Fisher-Yates permutes each
// question's options. Question order is preserved.
func (s *Session) shuffleOptions(set domain.QuestionSet) domain.QuestionSet {
	cloned := set.Clone()
	for i := range cloned.Questions {
		opts := cloned.Questions[i].Options
		for j := len(opts) - 1; j > 0; j-- {
			k := s.rnd.Intn(j + 1)
			opts[j], opts[k] = opts[k], opts[j]
		}
	}
	return cloned
}

// startTimerLocked arms the one-second countdown, cancelling any previous
// timer first so intervals never overlap.
func (s *Session) startTimerLocked() {
	s.stopTimerLocked()
	stop := make(chan struct{})
	s.timerStop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if s.tick() {
					return
				}
			}
		}
	}()
}

// tick decrements the countdown and reports whether the timer goroutine
// should exit. Expiry finishes the session exactly once.
func (s *Session) tick() bool {
	s.mu.Lock()
	if s.finished || s.finishing {
		s.mu.Unlock()
		return true
	}
	s.remaining--
	expired := s.remaining <= 0
	s.mu.Unlock()

	if expired {
		s.Finish(context.Background(), "exam")
		return true
	}
	return false
}

func (s *Session) stopTimerLocked() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
}

func safeMode(mode string, set domain.QuestionSet) string {
	switch {
	case mode == "exam" || set.Exam:
		return "exam"
	case mode == "category" || strings.HasPrefix(set.ID, "cat-"):
		return "category"
	default:
		return "topic"
	}
}
