package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/trivia-duel/models"
)

var (
	ErrParticipationNotFound = errors.New("participation not found")
	ErrParticipationConflict = errors.New("participation already exists for user in match")
)

type ParticipationRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, matchID int, userIDs []int) ([]*models.Participation, error)
	Get(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participation, error)
	// GetForUpdate блокирует строку до конца транзакции.
	GetForUpdate(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participation, error)
	Update(ctx context.Context, exec SQLExecutor, p *models.Participation) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Participation, error)
	DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error
}

type postgresParticipationRepository struct {
	db *sql.DB
}

func NewPostgresParticipationRepository(db *sql.DB) ParticipationRepository {
	return &postgresParticipationRepository{db: db}
}

func (r *postgresParticipationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participationColumns = `id, match_id, user_id, total_score, correct_answers, total_answers, average_response_time, created_at`

func (r *postgresParticipationRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matchID int, userIDs []int) ([]*models.Participation, error) {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO participations (match_id, user_id)
		VALUES ($1, $2)
		RETURNING ` + participationColumns

	created := make([]*models.Participation, 0, len(userIDs))
	for _, userID := range userIDs {
		p, err := scanParticipation(executor.QueryRowContext(ctx, query, matchID, userID))
		if err != nil {
			if code, _, ok := pqConstraint(err); ok && code == pqUniqueViolation {
				return nil, ErrParticipationConflict
			}
			return nil, fmt.Errorf("failed to create participation for user %d: %w", userID, err)
		}
		created = append(created, p)
	}
	return created, nil
}

func (r *postgresParticipationRepository) Get(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE match_id = $1 AND user_id = $2`
	p, err := scanParticipation(r.getExecutor(exec).QueryRowContext(ctx, query, matchID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipationNotFound
	}
	return p, err
}

func (r *postgresParticipationRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, matchID, userID int) (*models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE match_id = $1 AND user_id = $2 FOR UPDATE`
	p, err := scanParticipation(r.getExecutor(exec).QueryRowContext(ctx, query, matchID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipationNotFound
	}
	return p, err
}

func (r *postgresParticipationRepository) Update(ctx context.Context, exec SQLExecutor, p *models.Participation) error {
	query := `
		UPDATE participations SET
			total_score = $1,
			correct_answers = $2,
			total_answers = $3,
			average_response_time = $4
		WHERE id = $5`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		p.TotalScore,
		p.CorrectAnswers,
		p.TotalAnswers,
		p.AverageResponseTime,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update participation %d: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}

func (r *postgresParticipationRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE match_id = $1 ORDER BY id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations for match %d: %w", matchID, err)
	}
	defer rows.Close()

	list := make([]*models.Participation, 0)
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participation rows: %w", err)
	}
	return list, nil
}

func (r *postgresParticipationRepository) DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM participations WHERE match_id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("failed to delete participations for match %d: %w", matchID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipation(row rowScanner) (*models.Participation, error) {
	var p models.Participation
	err := row.Scan(
		&p.ID,
		&p.MatchID,
		&p.UserID,
		&p.TotalScore,
		&p.CorrectAnswers,
		&p.TotalAnswers,
		&p.AverageResponseTime,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan participation: %w", err)
	}
	return &p, nil
}
