package app

import (
	"math"
	"strings"

	"quiz-study-service/internal/domain"
)

// Score grades a question set against captured answers. Pure: no side
// effects, identical inputs give identical results. An empty set scores 0.
func Score(set domain.QuestionSet, answers map[string]domain.Answer) domain.ScoreSummary {
	total := len(set.Questions)
	if total == 0 {
		return domain.ScoreSummary{}
	}

	correct := 0
	for _, q := range set.Questions {
		answer, ok := answers[q.ID]
		if ok && answerCorrect(q, answer) {
			correct++
		}
	}

	return domain.ScoreSummary{
		Correct: correct,
		Total:   total,
		Score:   int(math.Round(100 * float64(correct) / float64(total))),
	}
}

func answerCorrect(q domain.Question, answer domain.Answer) bool {
	switch q.Type {
	case domain.TypeSingle:
		for _, opt := range q.Options {
			if opt.IsCorrect {
				return answer.OptionID == opt.ID
			}
		}
		return false
	case domain.TypeMultiple:
		want := make(map[string]struct{})
		for _, opt := range q.Options {
			if opt.IsCorrect {
				want[opt.ID] = struct{}{}
			}
		}
		seen := make(map[string]struct{}, len(answer.OptionIDs))
		for _, id := range answer.OptionIDs {
			if _, ok := want[id]; !ok {
				return false
			}
			seen[id] = struct{}{}
		}
		return len(seen) == len(want)
	case domain.TypeInput:
		return normalizeText(answer.Text) == normalizeText(q.Answer)
	}
	return false
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
