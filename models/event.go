package models

import "time"

type EventType string

const (
	EventPlayerConnected    EventType = "player_connected"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventScoreUpdate        EventType = "score_update"
	EventTeammateAnswered   EventType = "teammate_answered"
	EventTeamChat           EventType = "team_chat"
	EventCurrentQuestion    EventType = "current_question"
	EventGameEnded          EventType = "game_ended"
	EventGameCancelled      EventType = "game_cancelled"
	EventPong               EventType = "pong"
	EventError              EventType = "error"
)

// Event - сообщение сервер -> клиент.
type Event struct {
	Type      EventType   `json:"type"`
	MatchID   int         `json:"match_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

func NewEvent(t EventType, matchID int, payload interface{}) Event {
	return Event{Type: t, MatchID: matchID, Timestamp: time.Now().UTC(), Payload: payload}
}
