package cache

import "fmt"

func sessionKey(matchID int) string {
	return fmt.Sprintf("match:%d", matchID)
}

func queueKey(subject string) string {
	return "matchmaking_queue:" + subject
}

func waitingTeamsKey(subject string) string {
	return "teams_waiting:" + subject
}

func reservationKey(userID int) string {
	return fmt.Sprintf("user_queue:%d", userID)
}

func engagementKey(userID int) string {
	return fmt.Sprintf("user_match:%d", userID)
}

func answeredKey(matchID, questionID, userID int) string {
	return fmt.Sprintf("match:%d:question:%d:user:%d:answered", matchID, questionID, userID)
}

// answeredPattern matches every answered marker of one match.
func answeredPattern(matchID int) string {
	return fmt.Sprintf("match:%d:question:*:user:*:answered", matchID)
}

func userScoreKey(matchID, userID int) string {
	return fmt.Sprintf("match:%d:user:%d:score", matchID, userID)
}

func teamScoreKey(matchID, teamID int) string {
	return fmt.Sprintf("match:%d:team:%d:score", matchID, teamID)
}

func seenKey(matchID int) string {
	return fmt.Sprintf("match:%d:seen_questions", matchID)
}
