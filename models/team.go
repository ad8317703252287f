package models

import "time"

type Team struct {
	ID         int       `json:"id" db:"id"`
	MatchID    int       `json:"match_id" db:"match_id"`
	Name       string    `json:"name" db:"name"`
	TotalScore float64   `json:"total_score" db:"total_score"`
	IsWinner   bool      `json:"is_winner" db:"is_winner"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	Members []TeamMember `json:"members,omitempty" db:"-"`
}

// MemberIDs возвращает id участников в порядке вступления.
func (t *Team) MemberIDs() []int {
	ids := make([]int, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

type TeamMember struct {
	TeamID   int       `json:"team_id" db:"team_id"`
	UserID   int       `json:"user_id" db:"user_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}
