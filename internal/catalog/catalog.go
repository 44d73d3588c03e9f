// Package catalog ships the read-only question set bundled with the app.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"quiz-study-service/internal/domain"
)

//go:embed questions.json
var questionsJSON []byte

// Load decodes the bundled catalog. The result is a fresh slice per call;
// callers own it and may index it however they like.
func Load() ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(questionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode bundled catalog: %w", err)
	}
	return questions, nil
}
