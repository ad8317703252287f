package models

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)

// UserStats - агрегированная статистика игрока по всем матчам.
type UserStats struct {
	UserID     int       `json:"user_id" db:"user_id"`
	TotalGames int       `json:"total_games" db:"total_games"`
	TotalWins  int       `json:"total_wins" db:"total_wins"`
	TotalScore float64   `json:"total_score" db:"total_score"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
