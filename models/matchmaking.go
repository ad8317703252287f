package models

import "time"

type JoinStatus string

const (
	JoinStatusAlreadyQueued      JoinStatus = "already_queued"
	JoinStatusWaiting            JoinStatus = "waiting"
	JoinStatusTeamFormedWaiting  JoinStatus = "team_formed_waiting_opponent"
	JoinStatusMatched            JoinStatus = "matched"
)

// QueueEntry is both the queue element and the value of the user's reservation marker.
type QueueEntry struct {
	UserID   int       `json:"user_id"`
	Subject  string    `json:"subject"`
	JoinedAt time.Time `json:"joined_at"`
}

type WaitingTeam struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Players   []int     `json:"players"`
	CreatedAt time.Time `json:"created_at"`
}

type JoinResult struct {
	Status        JoinStatus  `json:"status"`
	Subject       string      `json:"subject"`
	Position      int         `json:"position,omitempty"`
	EstimatedWait int         `json:"estimated_wait,omitempty"` // seconds
	TeamPlayers   []int       `json:"team_players,omitempty"`
	MatchID       int         `json:"match_id,omitempty"`
	GameStatus    MatchStatus `json:"game_status,omitempty"`
	Message       string      `json:"message,omitempty"`
}
