package services

import (
	"context"

	"github.com/Dosada05/trivia-duel/models"
)

// Notifier fans events out to connected match participants.
type Notifier interface {
	BroadcastToMatch(matchID int, event models.Event, excludeUserID int)
	BroadcastToTeam(matchID int, memberIDs []int, event models.Event)
}

// ResultPublisher hands finalized results to the leaderboard side.
type ResultPublisher interface {
	PublishMatchFinished(ctx context.Context, event models.MatchFinishedEvent) error
}

type nopNotifier struct{}

func (nopNotifier) BroadcastToMatch(int, models.Event, int)  {}
func (nopNotifier) BroadcastToTeam(int, []int, models.Event) {}

type nopPublisher struct{}

func (nopPublisher) PublishMatchFinished(context.Context, models.MatchFinishedEvent) error {
	return nil
}
