package app_test

import (
	"context"
	"errors"
	"testing"

	"quiz-study-service/internal/app"
	"quiz-study-service/internal/domain"
	"quiz-study-service/internal/infra/memory"
	"quiz-study-service/internal/infra/prefs"
)

func testCatalog() []domain.Question {
	return []domain.Question{
		{ID: "js-1", Title: "What declares a constant?", Answer: "const", Category: "Basics", Difficulty: domain.DifficultyEasy, Type: domain.TypeInput},
		{ID: "js-2", Title: "typeof null?", Answer: "object", Category: "Basics", Difficulty: domain.DifficultyMedium, Type: domain.TypeInput},
		{ID: "js-3", Title: "Pick filter", Answer: "filter", Category: "Arrays", Difficulty: domain.DifficultyEasy, Type: domain.TypeSingle,
			Options: []domain.Option{{ID: "a", Text: "map"}, {ID: "b", Text: "filter", IsCorrect: true}}},
	}
}

func newTestStore(t *testing.T, remote *memory.RemoteStore) (*app.QuestionStore, *prefs.MemoryStore) {
	t.Helper()
	prefStore := prefs.NewMemoryStore()
	var rs app.RemoteStore
	if remote != nil {
		rs = remote
	}
	store := app.NewQuestionStore(testCatalog(), prefStore, rs, app.StaticIdentity{ID: "u1", Username: "Alice"}, nil)
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	store.WaitForSync()
	return store, prefStore
}

func TestOverrideShadowsStaticEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	edited := testCatalog()[0]
	edited.Answer = "const (block scoped)"
	if _, err := store.SaveQuestion(ctx, edited); err != nil {
		t.Fatalf("save override: %v", err)
	}

	for _, q := range store.AllQuestions() {
		if q.ID == "js-1" {
			if q.Answer != "const (block scoped)" {
				t.Fatalf("expected override to win, got %q", q.Answer)
			}
			return
		}
	}
	t.Fatalf("js-1 missing from unified view")
}

func TestSoftDeleteWinsOverOverride(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	edited := testCatalog()[0]
	edited.Title = "edited"
	if _, err := store.SaveQuestion(ctx, edited); err != nil {
		t.Fatalf("save override: %v", err)
	}
	if _, err := store.DeleteQuestion(ctx, "js-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, q := range store.AllQuestions() {
		if q.ID == "js-1" {
			t.Fatalf("soft-deleted question still visible: %+v", q)
		}
	}
	if len(store.AllQuestions()) != 2 {
		t.Fatalf("expected 2 visible questions, got %d", len(store.AllQuestions()))
	}
}

func TestSaveUserQuestionGeneratesNamespacedID(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	store, _ := newTestStore(t, remote)

	syncErr, err := store.SaveQuestion(ctx, domain.Question{Title: "mine", Answer: "42", Category: "Custom", Type: domain.TypeInput})
	if err != nil {
		t.Fatalf("save user question: %v", err)
	}
	if syncErr != nil {
		t.Fatalf("expected remote upsert to succeed, got %v", syncErr)
	}

	all := store.AllQuestions()
	last := all[len(all)-1]
	if last.Title != "mine" {
		t.Fatalf("expected user question appended, got %+v", last)
	}
	if len(last.ID) <= len(app.UserQuestionIDPrefix) || last.ID[:len(app.UserQuestionIDPrefix)] != app.UserQuestionIDPrefix {
		t.Fatalf("expected namespaced id, got %q", last.ID)
	}

	remoteQuestions, err := remote.ListUserQuestions(ctx, "u1")
	if err != nil {
		t.Fatalf("list remote: %v", err)
	}
	if len(remoteQuestions) != 1 || remoteQuestions[0].ID != last.ID {
		t.Fatalf("expected question mirrored remotely, got %+v", remoteQuestions)
	}
}

func TestSaveRejectsForeignIDOutsideNamespace(t *testing.T) {
	store, _ := newTestStore(t, nil)
	_, err := store.SaveQuestion(context.Background(), domain.Question{ID: "js-999", Title: "collision bait"})
	if !errors.Is(err, domain.ErrBadQuestionID) {
		t.Fatalf("expected ErrBadQuestionID, got %v", err)
	}
}

func TestSaveQuestionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	q := domain.Question{ID: "uq-fixed", Title: "same", Answer: "same", Type: domain.TypeInput}
	if _, err := store.SaveQuestion(ctx, q); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first := store.AllQuestions()
	if _, err := store.SaveQuestion(ctx, q); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second := store.AllQuestions()

	if len(first) != len(second) {
		t.Fatalf("idempotent save changed view size: %d vs %d", len(first), len(second))
	}
}

func TestDeleteUserQuestionRemoves(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	store, _ := newTestStore(t, remote)

	if _, err := store.SaveQuestion(ctx, domain.Question{ID: "uq-gone", Title: "temp"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.DeleteQuestion(ctx, "uq-gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, q := range store.AllQuestions() {
		if q.ID == "uq-gone" {
			t.Fatalf("deleted user question still visible")
		}
	}
	remoteQuestions, _ := remote.ListUserQuestions(ctx, "u1")
	if len(remoteQuestions) != 0 {
		t.Fatalf("expected remote delete, got %+v", remoteQuestions)
	}
}

func TestRemoteFailureDoesNotBlockLocalMutation(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	remote.FailWith = errors.New("network down")
	prefStore := prefs.NewMemoryStore()
	store := app.NewQuestionStore(testCatalog(), prefStore, remote, app.StaticIdentity{ID: "u1"}, nil)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	store.WaitForSync()

	syncErr, err := store.SaveQuestion(ctx, domain.Question{Title: "offline edit"})
	if err != nil {
		t.Fatalf("local save must succeed: %v", err)
	}
	if syncErr == nil || !syncErr.LocalOK {
		t.Fatalf("expected local-ok sync error, got %v", syncErr)
	}
	if len(store.AllQuestions()) != len(testCatalog())+1 {
		t.Fatalf("local view missing offline edit")
	}
}

func TestOverlaySurvivesReload(t *testing.T) {
	ctx := context.Background()
	prefStore := prefs.NewMemoryStore()
	store := app.NewQuestionStore(testCatalog(), prefStore, nil, nil, nil)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	store.WaitForSync()

	if _, err := store.SaveQuestion(ctx, domain.Question{ID: "uq-keep", Title: "persisted"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.DeleteQuestion(ctx, "js-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	reloaded := app.NewQuestionStore(testCatalog(), prefStore, nil, nil, nil)
	if err := reloaded.Initialize(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	reloaded.WaitForSync()

	view := reloaded.AllQuestions()
	if len(view) != 3 { // 3 static - 1 deleted + 1 user
		t.Fatalf("expected 3 questions after reload, got %d", len(view))
	}
	found := false
	for _, q := range view {
		if q.ID == "js-2" {
			t.Fatalf("soft delete lost on reload")
		}
		if q.ID == "uq-keep" {
			found = true
		}
	}
	if !found {
		t.Fatalf("user question lost on reload")
	}
}

func TestCorruptPreferenceBlobTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	prefStore := prefs.NewMemoryStore()
	_ = prefStore.Set(ctx, "user_questions", "{not json")
	_ = prefStore.Set(ctx, "question_overrides", "also broken")

	store := app.NewQuestionStore(testCatalog(), prefStore, nil, nil, nil)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("corrupt blobs must not be fatal: %v", err)
	}
	store.WaitForSync()

	if len(store.AllQuestions()) != len(testCatalog()) {
		t.Fatalf("expected pristine catalog view, got %d questions", len(store.AllQuestions()))
	}
}

func TestSyncMergesRemoteOnlyEntries(t *testing.T) {
	remote := memory.NewRemoteStore()
	remote.Seed("u1",
		[]domain.Question{{ID: "uq-cloud", Title: "from another device"}},
		[]domain.HistoryRecord{{ID: "run-cloud", Score: 90, Title: "Final Exam", Mode: "exam"}},
	)

	store, _ := newTestStore(t, remote)

	foundQuestion := false
	for _, q := range store.AllQuestions() {
		if q.ID == "uq-cloud" {
			foundQuestion = true
		}
	}
	if !foundQuestion {
		t.Fatalf("remote user question not merged")
	}

	foundRun := false
	for _, rec := range store.History() {
		if rec.ID == "run-cloud" {
			foundRun = true
		}
	}
	if !foundRun {
		t.Fatalf("remote exam result not merged")
	}
}

func TestSyncNeverDeletesLocalEntries(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	store, _ := newTestStore(t, remote)

	if _, err := store.SaveQuestion(ctx, domain.Question{ID: "uq-local-only", Title: "local"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Remote has no trace of uq-local-only; a sync must not drop it.
	if syncErr := store.Sync(ctx); syncErr != nil {
		t.Fatalf("sync: %v", syncErr)
	}
	found := false
	for _, q := range store.AllQuestions() {
		if q.ID == "uq-local-only" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sync dropped a local-only question")
	}
}

func TestSaveExamResultPrependsAndAwardsXP(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	store, _ := newTestStore(t, remote)

	first := domain.HistoryRecord{ID: "run-1", Score: 60, Mode: "topic", Title: "Basics"}
	second := domain.HistoryRecord{ID: "run-2", Score: 90, Mode: "exam", Title: "Final Exam"}
	if _, err := store.SaveExamResult(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if _, err := store.SaveExamResult(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	history := store.History()
	if len(history) != 2 || history[0].ID != "run-2" {
		t.Fatalf("expected newest-first history, got %+v", history)
	}
	if xp := remote.XP("u1"); xp != 90 {
		t.Fatalf("expected 90 xp from the exam run only, got %d", xp)
	}
}

func TestResetDataClearsEverything(t *testing.T) {
	ctx := context.Background()
	store, prefStore := newTestStore(t, nil)

	if _, err := store.SaveQuestion(ctx, domain.Question{Title: "doomed"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.ResetData(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(store.AllQuestions()) != len(testCatalog()) {
		t.Fatalf("expected pristine view after reset")
	}
	if _, err := prefStore.Get(ctx, "user_questions"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected preference store wiped, got %v", err)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, nil)

	if _, err := store.SaveQuestion(ctx, domain.Question{ID: "uq-x", Title: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	// Second Initialize must not reload and wipe in-memory state.
	found := false
	for _, q := range store.AllQuestions() {
		if q.ID == "uq-x" {
			found = true
		}
	}
	if !found {
		t.Fatalf("second initialize reset the overlay")
	}
}
