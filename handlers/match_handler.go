package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dosada05/trivia-duel/middleware"
	"github.com/Dosada05/trivia-duel/services"
)

type MatchHandler struct {
	matches services.MatchService
	scoring services.ScoringService
}

func NewMatchHandler(ms services.MatchService, ss services.ScoringService) *MatchHandler {
	return &MatchHandler{matches: ms, scoring: ss}
}

type submitAnswerRequest struct {
	QuestionID   int     `json:"question_id"`
	Answer       string  `json:"answer"`
	ResponseTime float64 `json:"response_time"`
}

type cancelMatchRequest struct {
	Reason string `json:"reason"`
}

// GetMatch godoc
// @Summary Состояние матча
// @Tags matches
// @Description Живое состояние из сессии, либо восстановленное из базы, если сессии уже нет.
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Матч не найден"
// @Security BearerAuth
// @Router /matches/{matchID} [get]
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.matches.GetState(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"match": state})
}

// StartMatch godoc
// @Summary Повторить запуск матча
// @Tags matches
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Матч не в статусе waiting"
// @Failure 422 {object} map[string]interface{} "Недостаточно вопросов"
// @Security BearerAuth
// @Router /matches/{matchID}/start [post]
func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.matches.Start(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	question, err := h.matches.CurrentQuestion(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"match_id": matchID, "question": question})
}

// CancelMatch godoc
// @Summary Отменить матч (admin)
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param body body cancelMatchRequest false "Причина"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{} "Нет прав"
// @Failure 409 {object} map[string]interface{} "Матч уже завершён"
// @Security BearerAuth
// @Router /matches/{matchID}/cancel [post]
func (h *MatchHandler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input cancelMatchRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "cancelled by administrator"
	}

	if err := h.matches.Cancel(r.Context(), matchID, reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"match_id": matchID, "status": "cancelled"})
}

// GetCurrentQuestion godoc
// @Summary Текущий вопрос
// @Tags matches
// @Description Правильный ответ не возвращается.
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Сессия не найдена"
// @Failure 409 {object} map[string]interface{} "Матч не идёт или вопросы закончились"
// @Security BearerAuth
// @Router /matches/{matchID}/question [get]
func (h *MatchHandler) GetCurrentQuestion(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	question, err := h.matches.CurrentQuestion(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"question": question})
}

// SubmitAnswer godoc
// @Summary Ответить на вопрос
// @Tags matches
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param body body submitAnswerRequest true "Ответ"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Вопрос не из этого матча / ошибка валидации"
// @Failure 403 {object} map[string]interface{} "Не участник матча"
// @Failure 409 {object} map[string]interface{} "Уже отвечал на этот вопрос"
// @Security BearerAuth
// @Router /matches/{matchID}/answer [post]
func (h *MatchHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input submitAnswerRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.QuestionID <= 0 {
		badRequestResponse(w, r, errors.New("question_id is required"))
		return
	}

	result, err := h.scoring.Submit(r.Context(), services.SubmitAnswerInput{
		MatchID:      matchID,
		UserID:       userID,
		QuestionID:   input.QuestionID,
		Answer:       input.Answer,
		ResponseTime: input.ResponseTime,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"result": result})
}

// GetScores godoc
// @Summary Текущий счёт
// @Tags matches
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Сессия не найдена"
// @Security BearerAuth
// @Router /matches/{matchID}/scores [get]
func (h *MatchHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	scores, err := h.matches.LiveScores(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"scores": scores})
}

// GetResults godoc
// @Summary Результаты матча
// @Tags matches
// @Description Для завершённого матча - победитель и счёт, для идущего - прогресс.
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Матч не найден"
// @Security BearerAuth
// @Router /matches/{matchID}/results [get]
func (h *MatchHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.matches.Results(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"results": results})
}

// GetUserMatchStats godoc
// @Summary Статистика текущего игрока в матче
// @Tags matches
// @Produce json
// @Param matchID path int true "Match ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{} "Не участник матча"
// @Failure 404 {object} map[string]interface{} "Матч не найден"
// @Security BearerAuth
// @Router /matches/{matchID}/stats [get]
func (h *MatchHandler) GetUserMatchStats(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	stats, err := h.matches.UserStats(r.Context(), matchID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	successResponse(w, r, http.StatusOK, jsonResponse{"stats": stats})
}
