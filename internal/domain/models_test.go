package domain

import "testing"

func TestQuestionCloneIsDeep(t *testing.T) {
	q := Question{
		ID:      "q1",
		Options: []Option{{ID: "a", Text: "one"}, {ID: "b", Text: "two"}},
	}
	clone := q.Clone()
	clone.Options[0].Text = "mutated"

	if q.Options[0].Text != "one" {
		t.Fatalf("clone shares option storage with the original")
	}
}

func TestQuestionSetCloneIsDeep(t *testing.T) {
	set := QuestionSet{
		ID:        "s1",
		Questions: []Question{{ID: "q1", Options: []Option{{ID: "a"}}}},
	}
	clone := set.Clone()
	clone.Questions[0].Options[0].ID = "z"

	if set.Questions[0].Options[0].ID != "a" {
		t.Fatalf("set clone shares question storage with the original")
	}
}

func TestProfileLevel(t *testing.T) {
	cases := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2500, 3},
	}
	for _, tc := range cases {
		if got := (Profile{XP: tc.xp}).Level(); got != tc.want {
			t.Fatalf("xp %d: expected level %d, got %d", tc.xp, tc.want, got)
		}
	}
}
