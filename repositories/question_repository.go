package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/trivia-duel/models"
	"github.com/lib/pq"
)

// QuestionRepository читает банк вопросов; сам банк наполняется снаружи.
type QuestionRepository interface {
	// DrawForSubject returns up to limit random questions of the subject, skipping excludeIDs.
	DrawForSubject(ctx context.Context, exec SQLExecutor, subject string, excludeIDs []int, limit int) ([]models.Question, error)
	// AnsweredByUsers returns ids of subject questions any of the users has answered before.
	AnsweredByUsers(ctx context.Context, exec SQLExecutor, subject string, userIDs []int) ([]int, error)
	ListSubjects(ctx context.Context) ([]models.SubjectSummary, error)
}

type postgresQuestionRepository struct {
	db *sql.DB
}

func NewPostgresQuestionRepository(db *sql.DB) QuestionRepository {
	return &postgresQuestionRepository{db: db}
}

func (r *postgresQuestionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresQuestionRepository) DrawForSubject(ctx context.Context, exec SQLExecutor, subject string, excludeIDs []int, limit int) ([]models.Question, error) {
	query := `
		SELECT id, subject, question_text, options, correct_answer, difficulty, points, created_at
		FROM questions
		WHERE subject = $1 AND NOT (id = ANY($2))
		ORDER BY random()
		LIMIT $3`

	exclude := make([]int64, 0, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude = append(exclude, int64(id))
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, subject, pq.Array(exclude), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to draw questions for subject %q: %w", subject, err)
	}
	defer rows.Close()

	questions := make([]models.Question, 0, limit)
	for rows.Next() {
		var q models.Question
		var difficulty sql.NullString
		if err := rows.Scan(&q.ID, &q.Subject, &q.Text, pq.Array(&q.Options), &q.CorrectAnswer, &difficulty, &q.Points, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		q.Difficulty = difficulty.String
		if q.Points <= 0 {
			q.Points = models.DefaultQuestionPoints
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question rows: %w", err)
	}
	return questions, nil
}

func (r *postgresQuestionRepository) AnsweredByUsers(ctx context.Context, exec SQLExecutor, subject string, userIDs []int) ([]int, error) {
	if len(userIDs) == 0 {
		return []int{}, nil
	}
	query := `
		SELECT DISTINCT ar.question_id
		FROM answer_records ar
		JOIN participations p ON p.id = ar.participation_id
		JOIN questions q ON q.id = ar.question_id
		WHERE q.subject = $1 AND p.user_id = ANY($2)`

	users := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		users = append(users, int64(id))
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, subject, pq.Array(users))
	if err != nil {
		return nil, fmt.Errorf("failed to list answered questions: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answered question rows: %w", err)
	}
	return ids, nil
}

func (r *postgresQuestionRepository) ListSubjects(ctx context.Context) ([]models.SubjectSummary, error) {
	query := `
		SELECT subject, COUNT(*)
		FROM questions
		GROUP BY subject
		ORDER BY subject ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]models.SubjectSummary, 0)
	for rows.Next() {
		var s models.SubjectSummary
		if err := rows.Scan(&s.Subject, &s.QuestionCount); err != nil {
			return nil, fmt.Errorf("failed to scan subject row: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subject rows: %w", err)
	}
	return subjects, nil
}
