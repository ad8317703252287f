package models

import (
	"errors"
	"fmt"
	"time"
)

// SessionSchemaVersion is bumped whenever the stored LiveSession layout changes.
const SessionSchemaVersion = 1

var ErrSessionSchema = errors.New("live session schema mismatch")

// LiveSession is the authoritative state of an in-progress match kept in the
// ephemeral store. Answered markers and score counters live under their own keys.
type LiveSession struct {
	SchemaVersion int               `json:"schema_version"`
	MatchID       int               `json:"match_id"`
	Subject       string            `json:"subject"`
	Status        MatchStatus       `json:"status"`
	Questions     []SessionQuestion `json:"questions"`
	Cursor        int               `json:"cursor"`
	Teams         []SessionTeam     `json:"teams"`
	Players       []int             `json:"players"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	Version       int64             `json:"version"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type SessionQuestion struct {
	ID            int      `json:"id"`
	Text          string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        int      `json:"points"`
}

type SessionTeam struct {
	TeamID  int    `json:"team_id"`
	Name    string `json:"name"`
	Members []int  `json:"members"`
}

// Validate rejects blobs that were written by another schema or were only partially filled.
func (s *LiveSession) Validate() error {
	if s.SchemaVersion != SessionSchemaVersion {
		return fmt.Errorf("%w: got version %d, want %d", ErrSessionSchema, s.SchemaVersion, SessionSchemaVersion)
	}
	if s.MatchID <= 0 {
		return fmt.Errorf("%w: missing match id", ErrSessionSchema)
	}
	if len(s.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrSessionSchema)
	}
	if s.Cursor < 0 || s.Cursor > len(s.Questions) {
		return fmt.Errorf("%w: cursor %d out of range", ErrSessionSchema, s.Cursor)
	}
	if len(s.Players) == 0 || len(s.Teams) == 0 {
		return fmt.Errorf("%w: empty roster", ErrSessionSchema)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrSessionSchema, s.Status)
	}
	return nil
}

func (s *LiveSession) CurrentQuestion() (*SessionQuestion, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Questions) {
		return nil, false
	}
	return &s.Questions[s.Cursor], true
}

func (s *LiveSession) IsLastQuestion() bool {
	return s.Cursor >= len(s.Questions)-1
}

func (s *LiveSession) Question(id int) (*SessionQuestion, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

func (s *LiveSession) HasPlayer(userID int) bool {
	for _, id := range s.Players {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *LiveSession) TeamOf(userID int) (*SessionTeam, bool) {
	for i := range s.Teams {
		for _, m := range s.Teams[i].Members {
			if m == userID {
				return &s.Teams[i], true
			}
		}
	}
	return nil, false
}

func (s *LiveSession) QuestionIDs() []int {
	ids := make([]int, 0, len(s.Questions))
	for _, q := range s.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func (s *LiveSession) TeamIDs() []int {
	ids := make([]int, 0, len(s.Teams))
	for _, t := range s.Teams {
		ids = append(ids, t.TeamID)
	}
	return ids
}

// View скрывает правильный ответ.
func (s *LiveSession) View(q *SessionQuestion) *QuestionView {
	index := s.Cursor
	for i := range s.Questions {
		if s.Questions[i].ID == q.ID {
			index = i
			break
		}
	}
	return &QuestionView{
		MatchID:        s.MatchID,
		QuestionID:     q.ID,
		Text:           q.Text,
		Options:        q.Options,
		Points:         q.Points,
		QuestionNumber: index + 1,
		TotalQuestions: len(s.Questions),
		TimeRemaining:  remaining(s.EndTime),
	}
}

func remaining(end time.Time) float64 {
	left := time.Until(end).Seconds()
	if left < 0 {
		return 0
	}
	return left
}

type QuestionView struct {
	MatchID        int      `json:"match_id"`
	QuestionID     int      `json:"question_id"`
	Text           string   `json:"question_text"`
	Options        []string `json:"options"`
	Points         int      `json:"points"`
	QuestionNumber int      `json:"question_number"`
	TotalQuestions int      `json:"total_questions"`
	TimeRemaining  float64  `json:"time_remaining"`
}
