package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/trivia-duel/middleware"
	"github.com/Dosada05/trivia-duel/services"
)

type MatchmakingHandler struct {
	matchmaking services.MatchmakingService
}

func NewMatchmakingHandler(ms services.MatchmakingService) *MatchmakingHandler {
	return &MatchmakingHandler{matchmaking: ms}
}

type joinQueueRequest struct {
	Subject string `json:"subject"`
}

// JoinQueue godoc
// @Summary Встать в очередь подбора
// @Tags matchmaking
// @Description Ставит игрока в очередь по предмету. Если набралась команда и нашёлся соперник, сразу создаётся матч.
// @Accept json
// @Produce json
// @Param body body joinQueueRequest true "Предмет"
// @Success 200 {object} map[string]interface{} "Статус подбора"
// @Failure 400 {object} map[string]interface{} "Ошибка валидации"
// @Failure 409 {object} map[string]interface{} "Уже в очереди или в матче"
// @Failure 503 {object} map[string]interface{} "Хранилище недоступно"
// @Security BearerAuth
// @Router /matchmaking/join [post]
func (h *MatchmakingHandler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input joinQueueRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.matchmaking.Join(r.Context(), userID, input.Subject)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyQueued) && result != nil {
			env := jsonResponse{"success": false, "code": services.CodeAlreadyQueued, "error": err.Error(), "matchmaking": result}
			if err := writeJSON(w, http.StatusConflict, env, nil); err != nil {
				serverErrorResponse(w, r, err)
			}
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	successResponse(w, r, http.StatusOK, jsonResponse{"matchmaking": result})
}

// LeaveQueue godoc
// @Summary Выйти из очереди подбора
// @Tags matchmaking
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Игрок не в очереди"
// @Security BearerAuth
// @Router /matchmaking/leave [delete]
func (h *MatchmakingHandler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.matchmaking.Leave(r.Context(), userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	successResponse(w, r, http.StatusOK, jsonResponse{"message": "left matchmaking queue"})
}

// ListSubjects godoc
// @Summary Доступные предметы
// @Tags matchmaking
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /subjects [get]
func (h *MatchmakingHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.matchmaking.Subjects(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"subjects": subjects})
}
