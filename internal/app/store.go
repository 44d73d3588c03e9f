package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quiz-study-service/internal/domain"
)

// Preference keys. Every value is a whole-collection JSON blob; writes
// rewrite the full slice (last writer wins across processes).
const (
	keyUserQuestions = "user_questions"
	keyOverrides     = "question_overrides"
	keyDeletedIDs    = "deleted_question_ids"
	keyExamHistory   = "exam_history"
)

// UserQuestionIDPrefix namespaces generated ids away from catalog ids so
// the two can never collide.
const UserQuestionIDPrefix = "uq-"

// PreferenceStore is the local key-value persistence layer. Local storage
// is the source of truth; it must survive restarts.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, error) // domain.ErrKeyNotFound when absent
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
}

// RemoteStore mirrors user state to hosted collections. Every call is
// best-effort from the store's point of view.
type RemoteStore interface {
	UpsertUserQuestion(ctx context.Context, userID string, q domain.Question) error
	DeleteUserQuestion(ctx context.Context, userID, questionID string) error
	InsertExamResult(ctx context.Context, userID string, rec domain.HistoryRecord) error
	ListUserQuestions(ctx context.Context, userID string) ([]domain.Question, error)
	ListExamResults(ctx context.Context, userID string) ([]domain.HistoryRecord, error)
	AwardXP(ctx context.Context, userID string, amount int) (int, error)
}

// Identity resolves the signed-in user remote mirrors are keyed by.
type Identity interface {
	CurrentUser(ctx context.Context) (domain.User, bool)
}

// StaticIdentity is a fixed, config-provided identity.
type StaticIdentity domain.User

func (s StaticIdentity) CurrentUser(context.Context) (domain.User, bool) {
	if s.ID == "" {
		return domain.User{}, false
	}
	return domain.User(s), true
}

// QuestionStore reconciles the static catalog with the local overlay
// (overrides, soft deletes, user questions) into one authoritative view and
// mediates every mutation through it. Local persistence is synchronous;
// remote mirroring is best-effort and reported via *domain.SyncError.
type QuestionStore struct {
	catalog    []domain.Question
	catalogIDs map[string]struct{}
	prefs      PreferenceStore
	remote     RemoteStore
	identity   Identity
	logger     *zap.Logger

	mu      sync.RWMutex
	overlay domain.Overlay
	history []domain.HistoryRecord
	loaded  bool

	sf       singleflight.Group
	syncDone chan struct{}
}

func NewQuestionStore(catalog []domain.Question, prefs PreferenceStore, remote RemoteStore, identity Identity, logger *zap.Logger) *QuestionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := make(map[string]struct{}, len(catalog))
	for _, q := range catalog {
		ids[q.ID] = struct{}{}
	}
	return &QuestionStore{
		catalog:    catalog,
		catalogIDs: ids,
		prefs:      prefs,
		remote:     remote,
		identity:   identity,
		logger:     logger,
		overlay:    domain.NewOverlay(),
	}
}

// Initialize loads the overlay and history from the preference store.
// Idempotent and single-shot; malformed JSON is logged and treated as
// empty, never fatal. A background Sync is spawned after loading; its done
// channel is retained so tests can wait on it via WaitForSync.
func (s *QuestionStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}

	s.overlay = domain.NewOverlay()
	s.history = nil

	var userQuestions []domain.Question
	s.loadSlice(ctx, keyUserQuestions, &userQuestions)
	s.overlay.UserQuestions = userQuestions

	var overrides map[string]domain.Question
	s.loadSlice(ctx, keyOverrides, &overrides)
	if overrides != nil {
		s.overlay.Overrides = overrides
	}

	var deleted []string
	s.loadSlice(ctx, keyDeletedIDs, &deleted)
	for _, id := range deleted {
		s.overlay.DeletedIDs[id] = struct{}{}
	}

	s.loadSlice(ctx, keyExamHistory, &s.history)

	s.loaded = true
	done := make(chan struct{})
	s.syncDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := s.Sync(context.Background()); err != nil {
			s.logger.Warn("background sync", zap.Error(err))
		}
	}()
	return nil
}

// loadSlice decodes one preference blob into dst, leaving dst untouched on
// absence or corruption. Caller holds the write lock.
func (s *QuestionStore) loadSlice(ctx context.Context, key string, dst any) {
	raw, err := s.prefs.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("load preference", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("corrupt preference blob, starting empty", zap.String("key", key), zap.Error(err))
	}
}

// WaitForSync blocks until the background sync spawned by Initialize has
// completed. Safe to call before Initialize (returns immediately).
func (s *QuestionStore) WaitForSync() {
	s.mu.RLock()
	done := s.syncDone
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// AllQuestions derives the unified view: catalog minus soft-deleted ids,
// overrides substituted in place, user questions appended. Recomputed from
// the overlay on every call.
func (s *QuestionStore) AllQuestions() []domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make([]domain.Question, 0, len(s.catalog)+len(s.overlay.UserQuestions))
	for _, q := range s.catalog {
		if _, deleted := s.overlay.DeletedIDs[q.ID]; deleted {
			continue
		}
		if override, ok := s.overlay.Overrides[q.ID]; ok {
			merged = append(merged, override)
			continue
		}
		merged = append(merged, q)
	}
	return append(merged, s.overlay.UserQuestions...)
}

// StudySet assembles the whole unified view as a session-ready set.
func (s *QuestionStore) StudySet() domain.QuestionSet {
	return buildSet("study-all", "All Questions", "Study", s.AllQuestions())
}

// CategorySet assembles a session-ready set for one category label.
func (s *QuestionStore) CategorySet(category string) domain.QuestionSet {
	var questions []domain.Question
	for _, q := range s.AllQuestions() {
		if strings.EqualFold(q.Category, category) {
			questions = append(questions, q)
		}
	}
	return buildSet("cat-"+slug(category), category, category, questions)
}

// Categories lists the distinct category labels in the unified view.
func (s *QuestionStore) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range s.AllQuestions() {
		if _, ok := seen[q.Category]; ok {
			continue
		}
		seen[q.Category] = struct{}{}
		out = append(out, q.Category)
	}
	return out
}

// SaveQuestion writes q through the overlay: catalog ids become overrides
// (edit-in-place, never delete-and-recreate), anything else is a user
// question. Local persistence completes before return; the remote upsert
// for user questions is best-effort and reported via SyncError.
func (s *QuestionStore) SaveQuestion(ctx context.Context, q domain.Question) (*domain.SyncError, error) {
	s.mu.Lock()
	if _, isStatic := s.catalogIDs[q.ID]; isStatic {
		s.overlay.Overrides[q.ID] = q
		err := s.persistOverridesLocked(ctx)
		s.mu.Unlock()
		return nil, err
	}

	if q.ID == "" {
		q.ID = UserQuestionIDPrefix + uuid.NewString()
	} else if !strings.HasPrefix(q.ID, UserQuestionIDPrefix) {
		s.mu.Unlock()
		return nil, fmt.Errorf("save %q: %w", q.ID, domain.ErrBadQuestionID)
	}

	replaced := false
	for i := range s.overlay.UserQuestions {
		if s.overlay.UserQuestions[i].ID == q.ID {
			s.overlay.UserQuestions[i] = q
			replaced = true
			break
		}
	}
	if !replaced {
		s.overlay.UserQuestions = append(s.overlay.UserQuestions, q)
	}
	err := s.persistUserQuestionsLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.mirror(ctx, "upsert user question", func(userID string) error {
		return s.remote.UpsertUserQuestion(ctx, userID, q)
	}), nil
}

// DeleteQuestion soft-deletes catalog ids and removes user questions.
func (s *QuestionStore) DeleteQuestion(ctx context.Context, id string) (*domain.SyncError, error) {
	s.mu.Lock()
	if _, isStatic := s.catalogIDs[id]; isStatic {
		s.overlay.DeletedIDs[id] = struct{}{}
		err := s.persistDeletedLocked(ctx)
		s.mu.Unlock()
		return nil, err
	}

	kept := s.overlay.UserQuestions[:0:0]
	for _, q := range s.overlay.UserQuestions {
		if q.ID != id {
			kept = append(kept, q)
		}
	}
	s.overlay.UserQuestions = kept
	err := s.persistUserQuestionsLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.mirror(ctx, "delete user question", func(userID string) error {
		return s.remote.DeleteUserQuestion(ctx, userID, id)
	}), nil
}

// SaveExamResult prepends rec to the local history log (append-only, never
// edited), persists it, then mirrors it remotely. Exam runs additionally
// award XP to the remote profile.
func (s *QuestionStore) SaveExamResult(ctx context.Context, rec domain.HistoryRecord) (*domain.SyncError, error) {
	s.mu.Lock()
	s.history = append([]domain.HistoryRecord{rec}, s.history...)
	err := s.persistHistoryLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.mirror(ctx, "insert exam result", func(userID string) error {
		if err := s.remote.InsertExamResult(ctx, userID, rec); err != nil {
			return err
		}
		if rec.Mode == "exam" {
			if _, err := s.remote.AwardXP(ctx, userID, rec.Score); err != nil {
				s.logger.Warn("award xp", zap.Error(err))
			}
		}
		return nil
	}), nil
}

// History returns the local result log, newest first.
func (s *QuestionStore) History() []domain.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Sync is a one-directional remote-to-local merge: remote user questions
// and exam results not present locally (by id) are appended and persisted.
// Local-only entries are never overwritten or deleted. Concurrent calls
// collapse into one flight.
func (s *QuestionStore) Sync(ctx context.Context) *domain.SyncError {
	result, _, _ := s.sf.Do("sync", func() (any, error) {
		return s.syncOnce(ctx), nil
	})
	if syncErr, ok := result.(*domain.SyncError); ok {
		return syncErr
	}
	return nil
}

func (s *QuestionStore) syncOnce(ctx context.Context) *domain.SyncError {
	if s.remote == nil || s.identity == nil {
		return &domain.SyncError{Op: "sync", LocalOK: true, Err: domain.ErrNoIdentity}
	}
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return &domain.SyncError{Op: "sync", LocalOK: true, Err: domain.ErrNoIdentity}
	}

	remoteQuestions, err := s.remote.ListUserQuestions(ctx, user.ID)
	if err != nil {
		return &domain.SyncError{Op: "sync user questions", LocalOK: true, Err: err}
	}
	remoteResults, err := s.remote.ListExamResults(ctx, user.ID)
	if err != nil {
		return &domain.SyncError{Op: "sync exam results", LocalOK: true, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{}, len(s.overlay.UserQuestions))
	for _, q := range s.overlay.UserQuestions {
		known[q.ID] = struct{}{}
	}
	addedQuestions := 0
	for _, q := range remoteQuestions {
		if _, ok := known[q.ID]; ok {
			continue
		}
		s.overlay.UserQuestions = append(s.overlay.UserQuestions, q)
		addedQuestions++
	}

	knownRuns := make(map[string]struct{}, len(s.history))
	for _, rec := range s.history {
		knownRuns[rec.ID] = struct{}{}
	}
	addedResults := 0
	for _, rec := range remoteResults {
		if _, ok := knownRuns[rec.ID]; ok {
			continue
		}
		s.history = append(s.history, rec)
		addedResults++
	}

	if addedQuestions > 0 {
		if err := s.persistUserQuestionsLocked(ctx); err != nil {
			return &domain.SyncError{Op: "persist synced questions", Err: err}
		}
	}
	if addedResults > 0 {
		if err := s.persistHistoryLocked(ctx); err != nil {
			return &domain.SyncError{Op: "persist synced results", Err: err}
		}
	}
	if addedQuestions > 0 || addedResults > 0 {
		s.logger.Info("merged remote state",
			zap.Int("questions", addedQuestions),
			zap.Int("results", addedResults))
	}
	return nil
}

// ResetData wipes the preference store and the in-memory overlay.
func (s *QuestionStore) ResetData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prefs.Clear(ctx); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	s.overlay = domain.NewOverlay()
	s.history = nil
	return nil
}

// mirror runs one best-effort remote operation keyed by the current user.
func (s *QuestionStore) mirror(ctx context.Context, op string, fn func(userID string) error) *domain.SyncError {
	if s.remote == nil || s.identity == nil {
		return &domain.SyncError{Op: op, LocalOK: true, Err: domain.ErrNoIdentity}
	}
	user, ok := s.identity.CurrentUser(ctx)
	if !ok {
		return &domain.SyncError{Op: op, LocalOK: true, Err: domain.ErrNoIdentity}
	}
	if err := fn(user.ID); err != nil {
		s.logger.Warn("remote mirror failed", zap.String("op", op), zap.Error(err))
		return &domain.SyncError{Op: op, LocalOK: true, Err: err}
	}
	return nil
}

func (s *QuestionStore) persistUserQuestionsLocked(ctx context.Context) error {
	return s.persist(ctx, keyUserQuestions, s.overlay.UserQuestions)
}

func (s *QuestionStore) persistOverridesLocked(ctx context.Context) error {
	return s.persist(ctx, keyOverrides, s.overlay.Overrides)
}

func (s *QuestionStore) persistDeletedLocked(ctx context.Context) error {
	ids := make([]string, 0, len(s.overlay.DeletedIDs))
	for id := range s.overlay.DeletedIDs {
		ids = append(ids, id)
	}
	return s.persist(ctx, keyDeletedIDs, ids)
}

func (s *QuestionStore) persistHistoryLocked(ctx context.Context) error {
	return s.persist(ctx, keyExamHistory, s.history)
}

func (s *QuestionStore) persist(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.prefs.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func buildSet(id, title, category string, questions []domain.Question) domain.QuestionSet {
	mapped := make([]domain.Question, len(questions))
	for i, q := range questions {
		mapped[i] = q.Clone()
		if mapped[i].Type == "" {
			mapped[i].Type = domain.TypeInput
		}
	}
	return domain.QuestionSet{
		ID:        id,
		Title:     title,
		Category:  category,
		Questions: mapped,
	}
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "-")
}
