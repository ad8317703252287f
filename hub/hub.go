package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/trivia-duel/models"
	"github.com/Dosada05/trivia-duel/services"
)

const (
	shardCount    = 32
	actionTimeout = 5 * time.Second

	MessagePing       = "ping"
	MessageTeamChat   = "team_chat"
	MessageGameAction = "game_action"

	ActionRequestCurrentQuestion = "request_current_question"
	ActionRequestScores          = "request_scores"
)

// GameReader - то, что хабу нужно от жизненного цикла матча для ответов клиентам.
type GameReader interface {
	CurrentQuestion(ctx context.Context, matchID int) (*models.QuestionView, error)
	LiveScores(ctx context.Context, matchID int) (*models.ScoreSnapshot, error)
	TeamMembers(ctx context.Context, matchID, userID int) ([]int, error)
}

// InboundMessage is what clients send over the socket.
type InboundMessage struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message,omitempty"`
}

type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ChatPayload struct {
	UserID  int    `json:"user_id"`
	Message string `json:"message"`
}

type PresencePayload struct {
	UserID int `json:"user_id"`
}

type shard struct {
	mu      sync.RWMutex
	matches map[int]map[int]*Client
}

// Hub keeps one connection per (match, user) and fans events out to them.
// Matches are spread over shards so unrelated matches never share a lock.
type Hub struct {
	shards [shardCount]*shard

	usersMu sync.RWMutex
	users   map[int]int // user -> match

	gameMu sync.RWMutex
	game   GameReader

	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		users:  make(map[int]int),
		logger: logger,
	}
	for i := range h.shards {
		h.shards[i] = &shard{matches: make(map[int]map[int]*Client)}
	}
	return h
}

// SetGameReader is called once the match service exists; the service itself needs the hub first.
func (h *Hub) SetGameReader(g GameReader) {
	h.gameMu.Lock()
	h.game = g
	h.gameMu.Unlock()
}

func (h *Hub) gameReader() GameReader {
	h.gameMu.RLock()
	defer h.gameMu.RUnlock()
	return h.game
}

func (h *Hub) shardFor(matchID int) *shard {
	return h.shards[uint(matchID)%shardCount]
}

// Connect registers c. A previous connection of the same user is closed,
// whichever match it belonged to.
func (h *Hub) Connect(c *Client) {
	h.usersMu.Lock()
	prevMatch, had := h.users[c.UserID]
	h.users[c.UserID] = c.MatchID
	h.usersMu.Unlock()

	if had && prevMatch != c.MatchID {
		if old := h.lookup(prevMatch, c.UserID); old != nil {
			h.drop(old)
		}
	}

	s := h.shardFor(c.MatchID)
	s.mu.Lock()
	room, ok := s.matches[c.MatchID]
	if !ok {
		room = make(map[int]*Client)
		s.matches[c.MatchID] = room
	}
	replaced := room[c.UserID]
	room[c.UserID] = c
	size := len(room)
	s.mu.Unlock()

	if replaced != nil {
		replaced.close()
	}
	c.logger().Info("client connected", slog.Int("clients_in_match", size))
	h.BroadcastToMatch(c.MatchID, models.NewEvent(models.EventPlayerConnected, c.MatchID, PresencePayload{UserID: c.UserID}), c.UserID)
}

// Disconnect closes whatever connection the user currently has.
func (h *Hub) Disconnect(userID int) {
	h.usersMu.RLock()
	matchID, ok := h.users[userID]
	h.usersMu.RUnlock()
	if !ok {
		return
	}
	if c := h.lookup(matchID, userID); c != nil {
		h.drop(c)
	}
}

// release is the read pump's exit path.
func (h *Hub) release(c *Client) {
	h.drop(c)
}

func (h *Hub) lookup(matchID, userID int) *Client {
	s := h.shardFor(matchID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matches[matchID][userID]
}

// drop removes c only if it is still the registered connection, so a stale
// pump cannot evict the user's newer socket.
func (h *Hub) drop(c *Client) {
	s := h.shardFor(c.MatchID)
	s.mu.Lock()
	room := s.matches[c.MatchID]
	if room[c.UserID] != c {
		s.mu.Unlock()
		c.close()
		return
	}
	delete(room, c.UserID)
	if len(room) == 0 {
		delete(s.matches, c.MatchID)
	}
	s.mu.Unlock()

	h.usersMu.Lock()
	if h.users[c.UserID] == c.MatchID {
		delete(h.users, c.UserID)
	}
	h.usersMu.Unlock()

	c.close()
	c.logger().Info("client disconnected")
	h.BroadcastToMatch(c.MatchID, models.NewEvent(models.EventPlayerDisconnected, c.MatchID, PresencePayload{UserID: c.UserID}), c.UserID)
}

// BroadcastToMatch sends event to every connection of the match except excludeUserID (0 = nobody).
func (h *Hub) BroadcastToMatch(matchID int, event models.Event, excludeUserID int) {
	s := h.shardFor(matchID)
	s.mu.RLock()
	targets := make([]*Client, 0, len(s.matches[matchID]))
	for userID, c := range s.matches[matchID] {
		if userID != excludeUserID {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()
	h.deliver(matchID, targets, event)
}

func (h *Hub) BroadcastToTeam(matchID int, memberIDs []int, event models.Event) {
	s := h.shardFor(matchID)
	s.mu.RLock()
	targets := make([]*Client, 0, len(memberIDs))
	for _, userID := range memberIDs {
		if c, ok := s.matches[matchID][userID]; ok {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()
	h.deliver(matchID, targets, event)
}

func (h *Hub) SendToUser(matchID, userID int, event models.Event) {
	if c := h.lookup(matchID, userID); c != nil {
		h.deliver(matchID, []*Client{c}, event)
	}
}

// deliver never retries: a client that cannot take the message is disconnected.
func (h *Hub) deliver(matchID int, targets []*Client, event models.Event) {
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", slog.Int("match_id", matchID), slog.String("type", string(event.Type)), slog.Any("error", err))
		return
	}
	var failed []*Client
	for _, c := range targets {
		if !c.trySend(data) {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.logger.Warn("dropping unresponsive client", slog.Int("match_id", matchID), slog.Int("user_id", c.UserID))
		h.drop(c)
	}
}

// ConnectedUsers returns the users currently connected to the match, sorted.
func (h *Hub) ConnectedUsers(matchID int) []int {
	s := h.shardFor(matchID)
	s.mu.RLock()
	ids := make([]int, 0, len(s.matches[matchID]))
	for userID := range s.matches[matchID] {
		ids = append(ids, userID)
	}
	s.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

func (h *Hub) ConnectionCount() int {
	h.usersMu.RLock()
	defer h.usersMu.RUnlock()
	return len(h.users)
}

// HandleMessage dispatches one inbound frame from c.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.replyError(c, services.CodeValidation, "malformed message")
		return
	}

	switch msg.Type {
	case MessagePing:
		h.SendToUser(c.MatchID, c.UserID, models.NewEvent(models.EventPong, c.MatchID, nil))
	case MessageTeamChat:
		h.relayTeamChat(c, msg.Message)
	case MessageGameAction:
		h.handleGameAction(c, msg.Action)
	default:
		h.replyError(c, services.CodeValidation, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) relayTeamChat(c *Client, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		h.replyError(c, services.CodeValidation, "message is required")
		return
	}
	game := h.gameReader()
	if game == nil {
		h.replyError(c, services.CodeStoreUnavailable, "game state is not available")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	members, err := game.TeamMembers(ctx, c.MatchID, c.UserID)
	if err != nil {
		h.replyServiceError(c, err)
		return
	}
	h.BroadcastToTeam(c.MatchID, members, models.NewEvent(models.EventTeamChat, c.MatchID, ChatPayload{UserID: c.UserID, Message: text}))
}

func (h *Hub) handleGameAction(c *Client, action string) {
	game := h.gameReader()
	if game == nil {
		h.replyError(c, services.CodeStoreUnavailable, "game state is not available")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	switch action {
	case ActionRequestCurrentQuestion:
		view, err := game.CurrentQuestion(ctx, c.MatchID)
		if err != nil {
			h.replyServiceError(c, err)
			return
		}
		h.SendToUser(c.MatchID, c.UserID, models.NewEvent(models.EventCurrentQuestion, c.MatchID, view))
	case ActionRequestScores:
		snapshot, err := game.LiveScores(ctx, c.MatchID)
		if err != nil {
			h.replyServiceError(c, err)
			return
		}
		h.SendToUser(c.MatchID, c.UserID, models.NewEvent(models.EventScoreUpdate, c.MatchID, snapshot))
	default:
		h.replyError(c, services.CodeValidation, "unknown game action: "+action)
	}
}

func (h *Hub) replyServiceError(c *Client, err error) {
	code := services.ErrorCode(err)
	if code == services.CodeInternal {
		c.logger().Error("game action failed", slog.Any("error", err))
	}
	h.replyError(c, code, err.Error())
}

func (h *Hub) replyError(c *Client, code, message string) {
	h.SendToUser(c.MatchID, c.UserID, models.NewEvent(models.EventError, c.MatchID, ErrorPayload{Code: code, Error: message}))
}
