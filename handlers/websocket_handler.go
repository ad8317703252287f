package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/trivia-duel/hub"
	"github.com/Dosada05/trivia-duel/middleware"
	"github.com/Dosada05/trivia-duel/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяет CORS-слой роутера, токен проверяет middleware.Authenticate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub     *hub.Hub
	matches services.MatchService
}

func NewWebSocketHandler(h *hub.Hub, ms services.MatchService) *WebSocketHandler {
	return &WebSocketHandler{hub: h, matches: ms}
}

// ServeWs подключает участника к потоку событий матча.
// Клиент подключается к /ws/matches/{matchID}?token=...
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
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

	// до апгрейда, пока ещё можно ответить нормальным HTTP-статусом
	state, err := h.matches.GetState(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if !containsUser(state.Players, userID) {
		mapServiceErrorToHTTP(w, r, services.ErrNotParticipant)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту
		slog.Default().Warn("websocket upgrade failed", slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	client := hub.NewClient(h.hub, conn, matchID, userID)
	h.hub.Connect(client)

	go client.WritePump()
	go client.ReadPump()
}

func containsUser(ids []int, userID int) bool {
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}
