package app

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"quiz-study-service/internal/domain"
)

// ExamConfig controls the randomized exam draw.
type ExamConfig struct {
	TotalQuestions int
	TimeLimit      time.Duration
	Easy           float64
	Medium         float64
	Hard           float64
}

// DefaultExamConfig mirrors the stock exam: 50 questions, 45 minutes,
// 30/50/20 difficulty split.
func DefaultExamConfig() ExamConfig {
	return ExamConfig{
		TotalQuestions: 50,
		TimeLimit:      45 * time.Minute,
		Easy:           0.3,
		Medium:         0.5,
		Hard:           0.2,
	}
}

// ExamGenerator draws difficulty-stratified random exams from a question pool.
type ExamGenerator struct {
	cfg ExamConfig
	rnd *rand.Rand
}

func NewExamGenerator(cfg ExamConfig) *ExamGenerator {
	if cfg.TotalQuestions <= 0 {
		cfg.TotalQuestions = DefaultExamConfig().TotalQuestions
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = DefaultExamConfig().TimeLimit
	}
	if cfg.Easy+cfg.Medium+cfg.Hard == 0 {
		def := DefaultExamConfig()
		cfg.Easy, cfg.Medium, cfg.Hard = def.Easy, def.Medium, def.Hard
	}
	return &ExamGenerator{
		cfg: cfg,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate builds a randomized exam set from pool. Per-bucket targets are
// round(N * fraction) with the rounding residual assigned to Medium; buckets
// smaller than their target are back-filled from the remaining pool without
// duplicates. A pool smaller than N yields a smaller set, never an error.
func (g *ExamGenerator) Generate(pool []domain.Question) domain.QuestionSet {
	var easy, medium, hard []domain.Question
	for _, q := range pool {
		switch q.Difficulty {
		case domain.DifficultyEasy:
			easy = append(easy, q)
		case domain.DifficultyHard:
			hard = append(hard, q)
		default:
			medium = append(medium, q)
		}
	}

	n := g.cfg.TotalQuestions
	easyTarget := int(math.Round(float64(n) * g.cfg.Easy))
	mediumTarget := int(math.Round(float64(n) * g.cfg.Medium))
	hardTarget := int(math.Round(float64(n) * g.cfg.Hard))
	mediumTarget += n - (easyTarget + mediumTarget + hardTarget)

	selected := g.sample(easy, easyTarget)
	selected = append(selected, g.sample(medium, mediumTarget)...)
	selected = append(selected, g.sample(hard, hardTarget)...)

	if len(selected) < n {
		chosen := make(map[string]struct{}, len(selected))
		for _, q := range selected {
			chosen[q.ID] = struct{}{}
		}
		var remaining []domain.Question
		for _, q := range pool {
			if _, ok := chosen[q.ID]; !ok {
				remaining = append(remaining, q)
			}
		}
		selected = append(selected, g.sample(remaining, n-len(selected))...)
	}

	return domain.QuestionSet{
		ID:        "exam-" + uuid.NewString(),
		Title:     "Final Exam",
		Category:  "Exam",
		Exam:      true,
		TimeLimit: int(g.cfg.TimeLimit.Seconds()),
		Questions: selected,
	}
}

// sample draws up to count questions uniformly without replacement.
// Full Fisher-Yates then slice; pools are small enough for that.
func (g *ExamGenerator) sample(pool []domain.Question, count int) []domain.Question {
	if count <= 0 || len(pool) == 0 {
		return nil
	}
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)
	g.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count]
}
