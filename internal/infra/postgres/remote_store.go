// Package postgres backs the remote mirror: user questions, exam results,
// and profiles live in Postgres, keyed by user id.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-study-service/internal/domain"
)

// RemoteStore implements app.RemoteStore over a pgx pool.
type RemoteStore struct {
	pool *pgxpool.Pool
}

func NewRemoteStore(pool *pgxpool.Pool) *RemoteStore {
	return &RemoteStore{pool: pool}
}

func (s *RemoteStore) UpsertUserQuestion(ctx context.Context, userID string, q domain.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_questions (id, user_id, title, answer, category, difficulty, qtype, code, options, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			answer = EXCLUDED.answer,
			category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty,
			qtype = EXCLUDED.qtype,
			code = EXCLUDED.code,
			options = EXCLUDED.options,
			updated_at = now()`,
		q.ID, userID, q.Title, q.Answer, q.Category, string(q.Difficulty), string(q.Type), q.Code, options)
	if err != nil {
		return fmt.Errorf("upsert user question: %w", err)
	}
	return nil
}

func (s *RemoteStore) DeleteUserQuestion(ctx context.Context, userID, questionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_questions WHERE id = $1 AND user_id = $2`, questionID, userID)
	if err != nil {
		return fmt.Errorf("delete user question: %w", err)
	}
	return nil
}

func (s *RemoteStore) ListUserQuestions(ctx context.Context, userID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, answer, category, difficulty, qtype, code, options
		FROM user_questions WHERE user_id = $1 ORDER BY updated_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var difficulty, qtype string
		var options []byte
		if err := rows.Scan(&q.ID, &q.Title, &q.Answer, &q.Category, &difficulty, &qtype, &q.Code, &options); err != nil {
			return nil, fmt.Errorf("scan user question: %w", err)
		}
		q.Difficulty = domain.Difficulty(difficulty)
		q.Type = domain.QuestionType(qtype)
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options for %s: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *RemoteStore) InsertExamResult(ctx context.Context, userID string, rec domain.HistoryRecord) error {
	createdAt, err := time.Parse(time.RFC3339, rec.Date)
	if err != nil {
		createdAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO exam_results (id, user_id, score, total, correct, mode, title, time_taken, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, userID, rec.Score, rec.Total, rec.Correct, rec.Mode, rec.Title, rec.TimeTaken, createdAt)
	if err != nil {
		return fmt.Errorf("insert exam result: %w", err)
	}
	return nil
}

func (s *RemoteStore) ListExamResults(ctx context.Context, userID string) ([]domain.HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, score, total, correct, mode, title, time_taken, created_at
		FROM exam_results WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var createdAt time.Time
		if err := rows.Scan(&rec.ID, &rec.Score, &rec.Total, &rec.Correct, &rec.Mode, &rec.Title, &rec.TimeTaken, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exam result: %w", err)
		}
		rec.Date = createdAt.UTC().Format(time.RFC3339)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AwardXP adds amount to the user's profile XP, creating the profile row on
// first award, and returns the new total.
func (s *RemoteStore) AwardXP(ctx context.Context, userID string, amount int) (int, error) {
	var xp int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, xp) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET xp = profiles.xp + EXCLUDED.xp
		RETURNING xp`, userID, amount).Scan(&xp)
	if err != nil {
		return 0, fmt.Errorf("award xp: %w", err)
	}
	return xp, nil
}

func (s *RemoteStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(username, ''), xp, is_banned FROM profiles WHERE id = $1`, userID).
		Scan(&p.ID, &p.Username, &p.XP, &p.IsBanned)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Leaderboard ranks users by the sum of their best run per quiz title
// (higher score wins a slot, ties broken by lower time).
func (s *RemoteStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.user_id, COALESCE(p.username, 'User'), r.title, r.score, r.time_taken
		FROM exam_results r
		LEFT JOIN profiles p ON p.id = r.user_id`)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	type run struct {
		score int
		time  int
	}
	type userRuns struct {
		username string
		best     map[string]run
	}
	users := make(map[string]*userRuns)

	for rows.Next() {
		var userID, username, title string
		var score, timeTaken int
		if err := rows.Scan(&userID, &username, &title, &score, &timeTaken); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		u, ok := users[userID]
		if !ok {
			u = &userRuns{username: username, best: make(map[string]run)}
			users[userID] = u
		}
		current, seen := u.best[title]
		if !seen || score > current.score || (score == current.score && timeTaken < current.time) {
			u.best[title] = run{score: score, time: timeTaken}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entry := domain.LeaderboardEntry{Username: u.username}
		for _, r := range u.best {
			entry.TotalScore += r.score
			entry.TotalTime += r.time
			entry.TestsPassed++
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		if entries[i].TotalTime != entries[j].TotalTime {
			return entries[i].TotalTime < entries[j].TotalTime
		}
		return entries[i].Username < entries[j].Username
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
