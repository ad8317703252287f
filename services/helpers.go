package services

import (
	"fmt"

	"github.com/Dosada05/trivia-duel/models"
)

// --- Общие хелперы ---

// engagedMatchValue - значение маркера занятости игрока, пока матч не завершён.
func engagedMatchValue(matchID int) string {
	return fmt.Sprintf("match:%d", matchID)
}

func entryUserIDs(entries []models.QueueEntry) []int {
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	return ids
}

func containsUser(entries []models.QueueEntry, userID int) bool {
	for _, e := range entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}
