// Package memory holds in-process fakes used by tests and offline runs.
package memory

import (
	"context"
	"sync"

	"quiz-study-service/internal/domain"
)

// RemoteStore is an in-memory app.RemoteStore. FailWith, when set, makes
// every call fail with that error so best-effort paths can be exercised.
type RemoteStore struct {
	mu        sync.Mutex
	FailWith  error
	questions map[string][]domain.Question      // userID -> questions
	results   map[string][]domain.HistoryRecord // userID -> results
	xp        map[string]int
}

func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		questions: make(map[string][]domain.Question),
		results:   make(map[string][]domain.HistoryRecord),
		xp:        make(map[string]int),
	}
}

func (s *RemoteStore) UpsertUserQuestion(_ context.Context, userID string, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	list := s.questions[userID]
	for i := range list {
		if list[i].ID == q.ID {
			list[i] = q
			return nil
		}
	}
	s.questions[userID] = append(list, q)
	return nil
}

func (s *RemoteStore) DeleteUserQuestion(_ context.Context, userID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	list := s.questions[userID]
	kept := list[:0:0]
	for _, q := range list {
		if q.ID != questionID {
			kept = append(kept, q)
		}
	}
	s.questions[userID] = kept
	return nil
}

func (s *RemoteStore) ListUserQuestions(_ context.Context, userID string) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	out := make([]domain.Question, len(s.questions[userID]))
	copy(out, s.questions[userID])
	return out, nil
}

func (s *RemoteStore) InsertExamResult(_ context.Context, userID string, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	for _, existing := range s.results[userID] {
		if existing.ID == rec.ID {
			return nil
		}
	}
	s.results[userID] = append(s.results[userID], rec)
	return nil
}

func (s *RemoteStore) ListExamResults(_ context.Context, userID string) ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	out := make([]domain.HistoryRecord, len(s.results[userID]))
	copy(out, s.results[userID])
	return out, nil
}

func (s *RemoteStore) AwardXP(_ context.Context, userID string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.xp[userID] += amount
	return s.xp[userID], nil
}

// Seed installs remote state for sync tests.
func (s *RemoteStore) Seed(userID string, questions []domain.Question, results []domain.HistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[userID] = append(s.questions[userID], questions...)
	s.results[userID] = append(s.results[userID], results...)
}

// XP reports the accumulated XP for a user.
func (s *RemoteStore) XP(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.xp[userID]
}
