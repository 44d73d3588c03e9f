package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"quiz-study-service/internal/app"
	"quiz-study-service/internal/domain"
)

// LeaderboardSource is the read side of the remote mirror the API exposes.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// APIHandler serves the question store to the UI shell as plain JSON.
type APIHandler struct {
	store       *app.QuestionStore
	leaderboard LeaderboardSource
	logger      *zap.Logger
}

func NewAPIHandler(store *app.QuestionStore, leaderboard LeaderboardSource, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{store: store, leaderboard: leaderboard, logger: logger}
}

// Questions handles GET (unified view), POST (save), DELETE (?id=).
func (h *APIHandler) Questions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.store.AllQuestions())
	case http.MethodPost:
		var q domain.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "invalid question body", http.StatusBadRequest)
			return
		}
		syncErr, err := h.store.SaveQuestion(r.Context(), q)
		if err != nil {
			if errors.Is(err, domain.ErrBadQuestionID) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.logger.Error("save question", zap.Error(err))
			http.Error(w, "save failed", http.StatusInternalServerError)
			return
		}
		if syncErr != nil {
			h.logger.Warn("question saved locally only", zap.Error(syncErr))
		}
		writeJSON(w, http.StatusOK, h.store.AllQuestions())
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		syncErr, err := h.store.DeleteQuestion(r.Context(), id)
		if err != nil {
			h.logger.Error("delete question", zap.Error(err))
			http.Error(w, "delete failed", http.StatusInternalServerError)
			return
		}
		if syncErr != nil {
			h.logger.Warn("question deleted locally only", zap.Error(syncErr))
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// History returns the local result log, newest first.
func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.store.History())
}

// Leaderboard proxies the remote best-runs aggregation; without a remote
// mirror it serves an empty board rather than failing.
func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if h.leaderboard == nil {
		writeJSON(w, http.StatusOK, []domain.LeaderboardEntry{})
		return
	}
	entries, err := h.leaderboard.Leaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Warn("leaderboard unavailable", zap.Error(err))
		writeJSON(w, http.StatusOK, []domain.LeaderboardEntry{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Categories lists distinct category labels for the topic picker.
func (h *APIHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.store.Categories())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
