package handlers

import (
	"net/http"

	"github.com/Dosada05/trivia-duel/middleware"
	"github.com/Dosada05/trivia-duel/services"
)

type UserHandler struct {
	matches services.MatchService
}

func NewUserHandler(ms services.MatchService) *UserHandler {
	return &UserHandler{matches: ms}
}

// GetMyStats godoc
// @Summary Общая статистика текущего игрока
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "Неавторизован"
// @Security BearerAuth
// @Router /users/me/stats [get]
func (h *UserHandler) GetMyStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	stats, err := h.matches.PlayerStats(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"stats": stats})
}
