package models

import "time"

const DefaultQuestionPoints = 10

type Question struct {
	ID            int       `json:"id" db:"id"`
	Subject       string    `json:"subject" db:"subject"`
	Text          string    `json:"question_text" db:"question_text"`
	Options       []string  `json:"options" db:"options"`
	CorrectAnswer string    `json:"-" db:"correct_answer"`
	Difficulty    string    `json:"difficulty" db:"difficulty"`
	Points        int       `json:"points" db:"points"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type SubjectSummary struct {
	Subject       string `json:"subject"`
	QuestionCount int    `json:"question_count"`
}
