package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/trivia-duel/models"
)

var (
	ErrTeamNotFound       = errors.New("team not found")
	ErrTeamMatchInvalid   = errors.New("team match conflict or invalid")
	ErrTeamMemberConflict = errors.New("user is already a member of this team")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	AddMembers(ctx context.Context, exec SQLExecutor, teamID int, userIDs []int) error
	// ListByMatch возвращает команды матча вместе с составом, по возрастанию id.
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Team, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, teamID int, totalScore float64, isWinner bool) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (match_id, name, total_score, is_winner)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		team.MatchID,
		team.Name,
		team.TotalScore,
		team.IsWinner,
	).Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok && code == pqForeignKeyViolation && constraint == "teams_match_id_fkey" {
			return ErrTeamMatchInvalid
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) AddMembers(ctx context.Context, exec SQLExecutor, teamID int, userIDs []int) error {
	executor := r.getExecutor(exec)
	query := `INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`
	for _, userID := range userIDs {
		if _, err := executor.ExecContext(ctx, query, teamID, userID); err != nil {
			if code, _, ok := pqConstraint(err); ok {
				switch code {
				case pqUniqueViolation:
					return ErrTeamMemberConflict
				case pqForeignKeyViolation:
					return ErrTeamNotFound
				}
			}
			return fmt.Errorf("failed to add user %d to team %d: %w", userID, teamID, err)
		}
	}
	return nil
}

func (r *postgresTeamRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Team, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT
			t.id, t.match_id, t.name, t.total_score, t.is_winner, t.created_at,
			tm.user_id, tm.joined_at
		FROM
			teams t
		LEFT JOIN
			team_members tm ON tm.team_id = t.id
		WHERE
			t.match_id = $1
		ORDER BY t.id ASC, tm.joined_at ASC, tm.user_id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for match %d: %w", matchID, err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0, 2)
	for rows.Next() {
		var t models.Team
		var memberID sql.NullInt64
		var joinedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.MatchID, &t.Name, &t.TotalScore, &t.IsWinner, &t.CreatedAt, &memberID, &joinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		if len(teams) == 0 || teams[len(teams)-1].ID != t.ID {
			teams = append(teams, t)
		}
		if memberID.Valid {
			last := &teams[len(teams)-1]
			last.Members = append(last.Members, models.TeamMember{
				TeamID:   t.ID,
				UserID:   int(memberID.Int64),
				JoinedAt: joinedAt.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team rows: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) UpdateResult(ctx context.Context, exec SQLExecutor, teamID int, totalScore float64, isWinner bool) error {
	query := `UPDATE teams SET total_score = $1, is_winner = $2 WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, totalScore, isWinner, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team %d result: %w", teamID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}
