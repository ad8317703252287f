package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/trivia-duel/models"
)

var (
	ErrAnswerParticipationInvalid = errors.New("answer participation conflict or invalid")
	ErrAnswerDuplicate            = errors.New("answer already recorded for question")
)

// AnswerRepository - журнал ответов, только добавление.
type AnswerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, answer *models.AnswerRecord) error
	ListByParticipation(ctx context.Context, exec SQLExecutor, participationID int) ([]models.AnswerRecord, error)
}

type postgresAnswerRepository struct {
	db *sql.DB
}

func NewPostgresAnswerRepository(db *sql.DB) AnswerRepository {
	return &postgresAnswerRepository{db: db}
}

func (r *postgresAnswerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAnswerRepository) Create(ctx context.Context, exec SQLExecutor, answer *models.AnswerRecord) error {
	query := `
		INSERT INTO answer_records
			(participation_id, question_id, user_answer, is_correct, response_time, points_earned)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, answered_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		answer.ParticipationID,
		answer.QuestionID,
		answer.UserAnswer,
		answer.IsCorrect,
		answer.ResponseTime,
		answer.PointsEarned,
	).Scan(&answer.ID, &answer.AnsweredAt)
	if err != nil {
		if code, _, ok := pqConstraint(err); ok {
			switch code {
			case pqForeignKeyViolation:
				return ErrAnswerParticipationInvalid
			case pqUniqueViolation:
				return ErrAnswerDuplicate
			}
		}
		return fmt.Errorf("failed to create answer record: %w", err)
	}
	return nil
}

func (r *postgresAnswerRepository) ListByParticipation(ctx context.Context, exec SQLExecutor, participationID int) ([]models.AnswerRecord, error) {
	query := `
		SELECT id, participation_id, question_id, user_answer, is_correct, response_time, points_earned, answered_at
		FROM answer_records
		WHERE participation_id = $1
		ORDER BY answered_at ASC, id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, participationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers for participation %d: %w", participationID, err)
	}
	defer rows.Close()

	answers := make([]models.AnswerRecord, 0)
	for rows.Next() {
		var a models.AnswerRecord
		if err := rows.Scan(&a.ID, &a.ParticipationID, &a.QuestionID, &a.UserAnswer, &a.IsCorrect, &a.ResponseTime, &a.PointsEarned, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answer rows: %w", err)
	}
	return answers, nil
}
