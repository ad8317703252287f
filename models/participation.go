package models

import "time"

type Participation struct {
	ID                  int       `json:"id" db:"id"`
	MatchID             int       `json:"match_id" db:"match_id"`
	UserID              int       `json:"user_id" db:"user_id"`
	TotalScore          float64   `json:"total_score" db:"total_score"`
	CorrectAnswers      int       `json:"correct_answers" db:"correct_answers"`
	TotalAnswers        int       `json:"total_answers" db:"total_answers"`
	AverageResponseTime float64   `json:"average_response_time" db:"average_response_time"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// ApplyAnswer folds one scored answer into the running statistics.
func (p *Participation) ApplyAnswer(isCorrect bool, points, responseTime float64) {
	p.TotalScore += points
	p.TotalAnswers++
	if isCorrect {
		p.CorrectAnswers++
	}
	n := float64(p.TotalAnswers)
	p.AverageResponseTime = (p.AverageResponseTime*(n-1) + responseTime) / n
}

func (p *Participation) Accuracy() float64 {
	if p.TotalAnswers == 0 {
		return 0
	}
	return float64(p.CorrectAnswers) / float64(p.TotalAnswers) * 100
}

type AnswerRecord struct {
	ID              int       `json:"id" db:"id"`
	ParticipationID int       `json:"participation_id" db:"participation_id"`
	QuestionID      int       `json:"question_id" db:"question_id"`
	UserAnswer      string    `json:"user_answer" db:"user_answer"`
	IsCorrect       bool      `json:"is_correct" db:"is_correct"`
	ResponseTime    float64   `json:"response_time" db:"response_time"`
	PointsEarned    float64   `json:"points_earned" db:"points_earned"`
	AnsweredAt      time.Time `json:"answered_at" db:"answered_at"`
}
