package app

import (
	"testing"

	"quiz-study-service/internal/domain"
)

func scoreSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:    "set-1",
		Title: "Scoring",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.TypeSingle,
				Options: []domain.Option{
					{ID: "a", IsCorrect: false},
					{ID: "b", IsCorrect: true},
				},
			},
			{
				ID:   "q2",
				Type: domain.TypeMultiple,
				Options: []domain.Option{
					{ID: "a", IsCorrect: true},
					{ID: "b", IsCorrect: false},
					{ID: "c", IsCorrect: true},
				},
			},
			{
				ID:     "q3",
				Type:   domain.TypeInput,
				Answer: "const",
			},
		},
	}
}

func TestScoreAllCorrect(t *testing.T) {
	answers := map[string]domain.Answer{
		"q1": {OptionID: "b"},
		"q2": {OptionIDs: []string{"c", "a"}},
		"q3": {Text: " Const "},
	}
	summary := Score(scoreSet(), answers)
	if summary.Correct != 3 || summary.Total != 3 || summary.Score != 100 {
		t.Fatalf("expected 3/3 = 100, got %+v", summary)
	}
}

func TestScoreMultipleRequiresExactSet(t *testing.T) {
	set := scoreSet()
	cases := []struct {
		name    string
		answer  domain.Answer
		correct bool
	}{
		{"exact", domain.Answer{OptionIDs: []string{"a", "c"}}, true},
		{"subset", domain.Answer{OptionIDs: []string{"a"}}, false},
		{"superset", domain.Answer{OptionIDs: []string{"a", "b", "c"}}, false},
		{"duplicates", domain.Answer{OptionIDs: []string{"a", "a"}}, false},
	}
	for _, tc := range cases {
		summary := Score(set, map[string]domain.Answer{"q2": tc.answer})
		got := summary.Correct == 1
		if got != tc.correct {
			t.Fatalf("%s: expected correct=%v, got summary %+v", tc.name, tc.correct, summary)
		}
	}
}

func TestScoreInputIsCaseAndSpaceInsensitive(t *testing.T) {
	summary := Score(scoreSet(), map[string]domain.Answer{"q3": {Text: "  CONST\t"}})
	if summary.Correct != 1 {
		t.Fatalf("expected whitespace/case-insensitive match, got %+v", summary)
	}
}

func TestScoreEmptySetIsZero(t *testing.T) {
	summary := Score(domain.QuestionSet{}, nil)
	if summary.Score != 0 || summary.Correct != 0 || summary.Total != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestScoreIsPure(t *testing.T) {
	set := scoreSet()
	answers := map[string]domain.Answer{"q1": {OptionID: "b"}}
	first := Score(set, answers)
	second := Score(set, answers)
	if first != second {
		t.Fatalf("scoring not idempotent: %+v vs %+v", first, second)
	}
}

func TestScoreRounds(t *testing.T) {
	set := domain.QuestionSet{Questions: []domain.Question{
		{ID: "q1", Type: domain.TypeInput, Answer: "x"},
		{ID: "q2", Type: domain.TypeInput, Answer: "x"},
		{ID: "q3", Type: domain.TypeInput, Answer: "x"},
	}}
	summary := Score(set, map[string]domain.Answer{"q1": {Text: "x"}})
	if summary.Score != 33 {
		t.Fatalf("expected 1/3 to round to 33, got %d", summary.Score)
	}
	summary = Score(set, map[string]domain.Answer{"q1": {Text: "x"}, "q2": {Text: "x"}})
	if summary.Score != 67 {
		t.Fatalf("expected 2/3 to round to 67, got %d", summary.Score)
	}
}
