package domain

// Difficulty buckets used by the exam generator's stratified draw.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// QuestionType determines how an answer is captured and checked.
type QuestionType string

const (
	// TypeInput expects free text, compared case-insensitively after trimming.
	TypeInput QuestionType = "input"
	// TypeSingle expects exactly one option id.
	TypeSingle QuestionType = "single"
	// TypeMultiple expects a set of option ids, order-independent.
	TypeMultiple QuestionType = "multiple"
)

// Option is a possible answer for a single/multiple choice question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is one trivia item. Static catalog entries and user-created
// entries share this shape; they differ only in id namespace.
type Question struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Answer     string       `json:"answer"`
	Category   string       `json:"category"`
	Difficulty Difficulty   `json:"difficulty"`
	Type       QuestionType `json:"type"`
	Options    []Option     `json:"options,omitempty"`
	Code       string       `json:"code,omitempty"`
}

// Clone returns a deep copy so session-local shuffling never leaks back
// into the shared catalog.
func (q Question) Clone() Question {
	out := q
	if q.Options != nil {
		out.Options = make([]Option, len(q.Options))
		copy(out.Options, q.Options)
	}
	return out
}

// QuestionSet is an ordered, named collection of questions assembled for
// one quiz attempt. Immutable once a session starts; the session works on
// its own shuffled clone.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	Exam      bool       `json:"exam,omitempty"`
	TimeLimit int        `json:"timeLimit,omitempty"` // seconds, exam mode only
	Questions []Question `json:"questions"`
}

// Clone deep-copies the set including every question's options.
func (s QuestionSet) Clone() QuestionSet {
	out := s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}

// Answer is the captured response for one question. The meaningful field
// follows the question type: Text for input, OptionID for single,
// OptionIDs for multiple.
type Answer struct {
	Text      string   `json:"text,omitempty"`
	OptionID  string   `json:"optionId,omitempty"`
	OptionIDs []string `json:"optionIds,omitempty"`
}

// ScoreSummary is the outcome of scoring one (set, answers) pair.
type ScoreSummary struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
	Score   int `json:"score"` // rounded percentage, 0 for an empty set
}

// HistoryRecord is the immutable outcome of one finished session.
type HistoryRecord struct {
	ID        string `json:"id"`
	Date      string `json:"date"` // RFC3339
	Score     int    `json:"score"`
	Correct   int    `json:"correct"`
	Total     int    `json:"total"`
	TimeTaken int    `json:"timeTaken"` // seconds; 0 outside exam mode
	Mode      string `json:"mode"`      // topic | category | exam
	Title     string `json:"title"`
}

// Overlay is the mutable local state layered over the static catalog:
// overrides shadow static entries, deleted ids suppress them, user
// questions extend the catalog.
type Overlay struct {
	UserQuestions []Question
	Overrides     map[string]Question
	DeletedIDs    map[string]struct{}
}

// NewOverlay returns an empty overlay with allocated maps.
func NewOverlay() Overlay {
	return Overlay{
		Overrides:  make(map[string]Question),
		DeletedIDs: make(map[string]struct{}),
	}
}

// User identifies the signed-in account remote mirrors are keyed by.
type User struct {
	ID       string
	Username string
}

// Profile mirrors one row of the remote profiles collection.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
	IsBanned bool   `json:"is_banned"`
}

// Level derives the gamification level: one level per 1000 XP, starting at 1.
func (p Profile) Level() int {
	return p.XP/1000 + 1
}

// LeaderboardEntry aggregates a user's best runs across quiz titles.
type LeaderboardEntry struct {
	Username    string `json:"username"`
	TotalScore  int    `json:"totalScore"`
	TotalTime   int    `json:"totalTime"`
	TestsPassed int    `json:"testsPassed"`
}
