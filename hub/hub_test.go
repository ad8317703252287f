package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/trivia-duel/models"
	"github.com/Dosada05/trivia-duel/services"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type    models.EventType `json:"type"`
	MatchID int              `json:"match_id"`
	Payload json.RawMessage  `json:"payload"`
}

func newTestHub() *Hub {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func connect(h *Hub, matchID, userID int) *Client {
	c := NewClient(h, nil, matchID, userID)
	h.Connect(c)
	return c
}

func nextEvent(t *testing.T, c *Client) received {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var ev received
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return received{}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func isClosed(c *Client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeGame struct {
	view    *models.QuestionView
	scores  *models.ScoreSnapshot
	teams   map[int][]int
	readErr error
}

func (g *fakeGame) CurrentQuestion(context.Context, int) (*models.QuestionView, error) {
	return g.view, g.readErr
}

func (g *fakeGame) LiveScores(context.Context, int) (*models.ScoreSnapshot, error) {
	return g.scores, g.readErr
}

func (g *fakeGame) TeamMembers(_ context.Context, matchID, userID int) ([]int, error) {
	members, ok := g.teams[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %d in match %d", services.ErrNotParticipant, userID, matchID)
	}
	return members, nil
}

func TestConnectAnnouncesToOthers(t *testing.T) {
	h := newTestHub()
	a := connect(h, 1, 10)
	b := connect(h, 1, 20)

	ev := nextEvent(t, a)
	assert.Equal(t, models.EventPlayerConnected, ev.Type)
	assert.JSONEq(t, `{"user_id":20}`, string(ev.Payload))
	assert.Empty(t, b.send, "the joining user is not told about themselves")
	assert.Equal(t, []int{10, 20}, h.ConnectedUsers(1))
	assert.Equal(t, 2, h.ConnectionCount())
}

func TestBroadcastToMatchExcludesUser(t *testing.T) {
	h := newTestHub()
	a := connect(h, 1, 10)
	b := connect(h, 1, 20)
	other := connect(h, 2, 30)
	drain(a)
	drain(b)

	h.BroadcastToMatch(1, models.NewEvent(models.EventScoreUpdate, 1, nil), 10)
	assert.Empty(t, a.send)
	assert.Equal(t, models.EventScoreUpdate, nextEvent(t, b).Type)
	assert.Empty(t, other.send)

	h.BroadcastToMatch(1, models.NewEvent(models.EventGameEnded, 1, nil), 0)
	assert.Equal(t, models.EventGameEnded, nextEvent(t, a).Type)
	assert.Equal(t, models.EventGameEnded, nextEvent(t, b).Type)
}

func TestBroadcastToTeamOnlyReachesMembers(t *testing.T) {
	h := newTestHub()
	a := connect(h, 1, 10)
	b := connect(h, 1, 11)
	c := connect(h, 1, 20)
	drain(a)
	drain(b)
	drain(c)

	h.BroadcastToTeam(1, []int{10, 11, 99}, models.NewEvent(models.EventTeammateAnswered, 1, nil))
	assert.Equal(t, models.EventTeammateAnswered, nextEvent(t, a).Type)
	assert.Equal(t, models.EventTeammateAnswered, nextEvent(t, b).Type)
	assert.Empty(t, c.send)
}

func TestReconnectReplacesPreviousConnection(t *testing.T) {
	h := newTestHub()
	old := connect(h, 1, 10)
	fresh := connect(h, 1, 10)

	assert.True(t, isClosed(old))
	assert.Equal(t, []int{10}, h.ConnectedUsers(1))

	// выход старого read pump не должен выкинуть новое соединение
	h.release(old)
	assert.Equal(t, []int{10}, h.ConnectedUsers(1))
	assert.False(t, isClosed(fresh))
}

func TestConnectToAnotherMatchLeavesPrevious(t *testing.T) {
	h := newTestHub()
	watcher := connect(h, 1, 20)
	first := connect(h, 1, 10)
	drain(watcher)

	connect(h, 2, 10)
	assert.True(t, isClosed(first))
	assert.Equal(t, []int{20}, h.ConnectedUsers(1))
	assert.Equal(t, []int{10}, h.ConnectedUsers(2))

	ev := nextEvent(t, watcher)
	assert.Equal(t, models.EventPlayerDisconnected, ev.Type)
	assert.JSONEq(t, `{"user_id":10}`, string(ev.Payload))
}

func TestDisconnectAnnouncesAndCloses(t *testing.T) {
	h := newTestHub()
	a := connect(h, 1, 10)
	b := connect(h, 1, 20)
	drain(a)

	h.Disconnect(20)
	assert.True(t, isClosed(b))
	assert.Equal(t, models.EventPlayerDisconnected, nextEvent(t, a).Type)
	assert.Equal(t, []int{10}, h.ConnectedUsers(1))

	h.Disconnect(20)
	h.Disconnect(404)
}

func TestSlowClientIsDisconnected(t *testing.T) {
	h := newTestHub()
	slow := connect(h, 1, 10)
	fast := connect(h, 1, 20)
	drain(slow)
	drain(fast)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, slow.trySend([]byte(`{}`)))
	}
	h.BroadcastToMatch(1, models.NewEvent(models.EventScoreUpdate, 1, nil), 0)

	assert.True(t, isClosed(slow))
	assert.Equal(t, []int{20}, h.ConnectedUsers(1))
	assert.Equal(t, models.EventScoreUpdate, nextEvent(t, fast).Type)
	assert.Equal(t, models.EventPlayerDisconnected, nextEvent(t, fast).Type)
}

func TestHandlePing(t *testing.T) {
	h := newTestHub()
	c := connect(h, 1, 10)

	h.HandleMessage(c, []byte(`{"type":"ping"}`))
	assert.Equal(t, models.EventPong, nextEvent(t, c).Type)
}

func TestHandleTeamChatRelaysToTeam(t *testing.T) {
	h := newTestHub()
	h.SetGameReader(&fakeGame{teams: map[int][]int{10: {10, 11}, 11: {10, 11}, 20: {20}}})
	a := connect(h, 1, 10)
	b := connect(h, 1, 11)
	opp := connect(h, 1, 20)
	drain(a)
	drain(b)
	drain(opp)

	h.HandleMessage(a, []byte(`{"type":"team_chat","message":"  go left "}`))

	ev := nextEvent(t, b)
	assert.Equal(t, models.EventTeamChat, ev.Type)
	assert.JSONEq(t, `{"user_id":10,"message":"go left"}`, string(ev.Payload))
	assert.Equal(t, models.EventTeamChat, nextEvent(t, a).Type)
	assert.Empty(t, opp.send)
}

func TestHandleTeamChatRejectsOutsiders(t *testing.T) {
	h := newTestHub()
	h.SetGameReader(&fakeGame{teams: map[int][]int{10: {10}}})
	outsider := connect(h, 1, 99)

	h.HandleMessage(outsider, []byte(`{"type":"team_chat","message":"hi"}`))
	ev := nextEvent(t, outsider)
	require.Equal(t, models.EventError, ev.Type)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, services.CodeForbidden, payload.Code)

	h.HandleMessage(outsider, []byte(`{"type":"team_chat","message":"   "}`))
	ev = nextEvent(t, outsider)
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, services.CodeValidation, payload.Code)
}

func TestHandleGameActions(t *testing.T) {
	h := newTestHub()
	h.SetGameReader(&fakeGame{
		view:   &models.QuestionView{MatchID: 1, QuestionID: 7, Text: "2+2?", QuestionNumber: 1, TotalQuestions: 5},
		scores: &models.ScoreSnapshot{MatchID: 1, Teams: []models.TeamScore{{TeamID: 1, Score: 10}}},
	})
	c := connect(h, 1, 10)

	h.HandleMessage(c, []byte(`{"type":"game_action","action":"request_current_question"}`))
	ev := nextEvent(t, c)
	assert.Equal(t, models.EventCurrentQuestion, ev.Type)
	var view models.QuestionView
	require.NoError(t, json.Unmarshal(ev.Payload, &view))
	assert.Equal(t, 7, view.QuestionID)

	h.HandleMessage(c, []byte(`{"type":"game_action","action":"request_scores"}`))
	ev = nextEvent(t, c)
	assert.Equal(t, models.EventScoreUpdate, ev.Type)
	var snapshot models.ScoreSnapshot
	require.NoError(t, json.Unmarshal(ev.Payload, &snapshot))
	assert.Equal(t, 10.0, snapshot.Teams[0].Score)

	h.HandleMessage(c, []byte(`{"type":"game_action","action":"teleport"}`))
	assert.Equal(t, models.EventError, nextEvent(t, c).Type)
}

func TestHandleGameActionReportsServiceErrors(t *testing.T) {
	h := newTestHub()
	h.SetGameReader(&fakeGame{readErr: services.ErrSessionNotFound})
	c := connect(h, 1, 10)

	h.HandleMessage(c, []byte(`{"type":"game_action","action":"request_scores"}`))
	ev := nextEvent(t, c)
	require.Equal(t, models.EventError, ev.Type)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, services.CodeNotFound, payload.Code)
}

func TestHandleMalformedAndUnknownMessages(t *testing.T) {
	h := newTestHub()
	c := connect(h, 1, 10)

	h.HandleMessage(c, []byte(`not json`))
	assert.Equal(t, models.EventError, nextEvent(t, c).Type)

	h.HandleMessage(c, []byte(`{"type":"dance"}`))
	assert.Equal(t, models.EventError, nextEvent(t, c).Type)

	h.HandleMessage(c, []byte(`{"type":"game_action","action":"request_scores"}`))
	assert.Equal(t, models.EventError, nextEvent(t, c).Type, "no game reader wired")
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	h := newTestHub()
	var wg sync.WaitGroup
	for match := 1; match <= 8; match++ {
		for user := 1; user <= 10; user++ {
			wg.Add(1)
			go func(matchID, userID int) {
				defer wg.Done()
				c := NewClient(h, nil, matchID, matchID*100+userID)
				h.Connect(c)
				h.BroadcastToMatch(matchID, models.NewEvent(models.EventScoreUpdate, matchID, nil), 0)
				if userID%2 == 0 {
					h.Disconnect(c.UserID)
				}
			}(match, user)
		}
	}
	wg.Wait()

	for match := 1; match <= 8; match++ {
		assert.Len(t, h.ConnectedUsers(match), 5)
	}
	assert.Equal(t, 40, h.ConnectionCount())
}

type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte
	kinds   []int
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8)}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.inbound
	if !ok {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
	return websocket.TextMessage, msg, nil
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("use of closed connection")
	}
	f.kinds = append(f.kinds, kind)
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) textFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for i, kind := range f.kinds {
		if kind == websocket.TextMessage {
			out = append(out, string(f.written[i]))
		}
	}
	return out
}

func TestPumpsServeConnection(t *testing.T) {
	h := newTestHub()
	conn := newFakeConn()
	c := NewClient(h, conn, 1, 10)
	h.Connect(c)

	done := make(chan struct{})
	go c.WritePump()
	go func() {
		c.ReadPump()
		close(done)
	}()

	conn.inbound <- []byte(`{"type":"ping"}`)
	require.Eventually(t, func() bool { return len(conn.textFrames()) == 1 }, time.Second, 10*time.Millisecond)

	var ev received
	require.NoError(t, json.Unmarshal([]byte(conn.textFrames()[0]), &ev))
	assert.Equal(t, models.EventPong, ev.Type)

	close(conn.inbound)
	<-done
	assert.Empty(t, h.ConnectedUsers(1))
	assert.True(t, isClosed(c))
}
