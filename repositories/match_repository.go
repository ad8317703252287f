package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/trivia-duel/models"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchStatusConflict = errors.New("match status changed concurrently")
	ErrMatchInvalidStatus  = errors.New("match status invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// UpdateStatus переводит матч из from в to; ErrMatchStatusConflict, если статус уже другой.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus, startTime, endTime *time.Time) error
	ListByStatus(ctx context.Context, status models.MatchStatus, limit int) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches (subject, status, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.Subject,
		match.Status,
		match.StartTime,
		match.EndTime,
	).Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		if code, _, ok := pqConstraint(err); ok && code == pqCheckViolation {
			return ErrMatchInvalidStatus
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `
		SELECT id, subject, status, start_time, end_time, created_at
		FROM matches
		WHERE id = $1`
	return r.scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `
		SELECT id, subject, status, start_time, end_time, created_at
		FROM matches
		WHERE id = $1
		FOR UPDATE`
	return r.scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus, startTime, endTime *time.Time) error {
	query := `
		UPDATE matches SET
			status = $1,
			start_time = COALESCE($2, start_time),
			end_time = COALESCE($3, end_time)
		WHERE id = $4 AND status = $5`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, to, startTime, endTime, id, from)
	if err != nil {
		return fmt.Errorf("failed to update match %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) ListByStatus(ctx context.Context, status models.MatchStatus, limit int) ([]*models.Match, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, subject, status, start_time, end_time, created_at
		FROM matches
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches by status %s: %w", status, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		var start, end sql.NullTime
		if err := rows.Scan(&m.ID, &m.Subject, &m.Status, &start, &end, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		m.StartTime = nullTimePtr(start)
		m.EndTime = nullTimePtr(end)
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) scanMatch(row *sql.Row) (*models.Match, error) {
	var m models.Match
	var start, end sql.NullTime
	err := row.Scan(&m.ID, &m.Subject, &m.Status, &start, &end, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	m.StartTime = nullTimePtr(start)
	m.EndTime = nullTimePtr(end)
	return &m, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
