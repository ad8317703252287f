package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/trivia-duel/models"
)

var ErrUserStatsNotFound = errors.New("user stats not found")

// UserStatsRepository хранит счётчики игрока; сами пользователи живут в сервисе авторизации.
type UserStatsRepository interface {
	ApplyMatchResult(ctx context.Context, exec SQLExecutor, userID int, score float64, won bool) error
	GetByUserID(ctx context.Context, userID int) (*models.UserStats, error)
}

type postgresUserStatsRepository struct {
	db *sql.DB
}

func NewPostgresUserStatsRepository(db *sql.DB) UserStatsRepository {
	return &postgresUserStatsRepository{db: db}
}

func (r *postgresUserStatsRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresUserStatsRepository) ApplyMatchResult(ctx context.Context, exec SQLExecutor, userID int, score float64, won bool) error {
	wins := 0
	if won {
		wins = 1
	}
	query := `
		INSERT INTO user_stats (user_id, total_games, total_wins, total_score, updated_at)
		VALUES ($1, 1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_games = user_stats.total_games + 1,
			total_wins = user_stats.total_wins + EXCLUDED.total_wins,
			total_score = user_stats.total_score + EXCLUDED.total_score,
			updated_at = NOW()`

	if _, err := r.getExecutor(exec).ExecContext(ctx, query, userID, wins, score); err != nil {
		return fmt.Errorf("failed to apply match result for user %d: %w", userID, err)
	}
	return nil
}

func (r *postgresUserStatsRepository) GetByUserID(ctx context.Context, userID int) (*models.UserStats, error) {
	query := `
		SELECT user_id, total_games, total_wins, total_score, updated_at
		FROM user_stats
		WHERE user_id = $1`

	var s models.UserStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.TotalGames, &s.TotalWins, &s.TotalScore, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserStatsNotFound
		}
		return nil, fmt.Errorf("failed to scan user stats: %w", err)
	}
	return &s, nil
}
