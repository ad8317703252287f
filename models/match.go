package models

import "time"

type MatchStatus string

const (
	MatchStatusWaiting    MatchStatus = "waiting"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusFinished   MatchStatus = "finished"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusFinished || s == MatchStatusCancelled
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusWaiting, MatchStatusInProgress, MatchStatusFinished, MatchStatusCancelled:
		return true
	}
	return false
}

type Match struct {
	ID        int         `json:"id" db:"id"`
	Subject   string      `json:"subject" db:"subject"`
	Status    MatchStatus `json:"status" db:"status"`
	StartTime *time.Time  `json:"start_time,omitempty" db:"start_time"`
	EndTime   *time.Time  `json:"end_time,omitempty" db:"end_time"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`

	Teams []Team `json:"teams,omitempty" db:"-"`
}
