package models

import "time"

type AnswerResult struct {
	MatchID        int     `json:"match_id"`
	QuestionID     int     `json:"question_id"`
	IsCorrect      bool    `json:"is_correct"`
	PointsEarned   float64 `json:"points_earned"`
	TotalScore     float64 `json:"total_score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalAnswers   int     `json:"total_answers"`
}

type TeamScore struct {
	TeamID  int     `json:"team_id"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Members []int   `json:"members,omitempty"`
}

type PlayerScore struct {
	UserID int     `json:"user_id"`
	TeamID int     `json:"team_id"`
	Score  float64 `json:"score"`
}

type ScoreSnapshot struct {
	MatchID int           `json:"match_id"`
	Teams   []TeamScore   `json:"teams"`
	Players []PlayerScore `json:"players"`
}

// MatchState is what get-match returns. Live is false when it was rebuilt from durable rows.
type MatchState struct {
	MatchID         int            `json:"match_id"`
	Subject         string         `json:"subject"`
	Status          MatchStatus    `json:"status"`
	Live            bool           `json:"live"`
	CurrentQuestion int            `json:"current_question"`
	TotalQuestions  int            `json:"total_questions"`
	Teams           []TeamScore    `json:"teams"`
	Players         []int          `json:"players"`
	WinnerTeamID    *int           `json:"winner_team_id,omitempty"`
	StartTime       *time.Time     `json:"start_time,omitempty"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	Scores          *ScoreSnapshot `json:"scores,omitempty"`
}

type MatchProgress struct {
	CurrentQuestion int     `json:"current_question"`
	TotalQuestions  int     `json:"total_questions"`
	Completion      float64 `json:"completion_percentage"`
}

type MatchResults struct {
	MatchID      int            `json:"match_id"`
	Subject      string         `json:"subject"`
	Status       MatchStatus    `json:"status"`
	WinnerTeamID *int           `json:"winner_team_id,omitempty"`
	Teams        []TeamScore    `json:"teams"`
	Players      []PlayerScore  `json:"players"`
	Progress     *MatchProgress `json:"progress,omitempty"`
	StartTime    *time.Time     `json:"start_time,omitempty"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	ArchiveURL   string         `json:"archive_url,omitempty"`
}

type UserMatchStats struct {
	MatchID             int            `json:"match_id"`
	UserID              int            `json:"user_id"`
	TotalScore          float64        `json:"total_score"`
	CorrectAnswers      int            `json:"correct_answers"`
	TotalAnswers        int            `json:"total_answers"`
	Accuracy            float64        `json:"accuracy"`
	AverageResponseTime float64        `json:"average_response_time"`
	Answers             []AnswerRecord `json:"answers"`
}

// MatchFinishedEvent уходит в брокер для внешнего лидерборда.
type MatchFinishedEvent struct {
	MatchID      int           `json:"match_id"`
	Subject      string        `json:"subject"`
	WinnerTeamID *int          `json:"winner_team_id,omitempty"`
	Teams        []TeamScore   `json:"teams"`
	Players      []PlayerScore `json:"players"`
	FinishedAt   time.Time     `json:"finished_at"`
}
