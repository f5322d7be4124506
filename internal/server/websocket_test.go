package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/config"
	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/corrosion/corrosion-server-go/internal/game/visibility"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type hubFixture struct {
	engine *game.Engine
	tokens *SeatTokens
	hub    *Hub
	server *httptest.Server
	gameID string
	alice  game.ID
	bob    game.ID
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine := game.NewEngine(logger, game.EngineConfig{Projector: visibility.HiddenHands{}})
	tokens := NewSeatTokens(bcrypt.MinCost)
	hub := NewHub(engine, tokens, config.WebSocketConfig{WriteTimeout: time.Second}, logger)
	engine.SetNotificationHandler(hub.Notify)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})

	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	gameID, err := engine.StartGame([]string{"Alice", "Bob"})
	require.NoError(t, err)
	state, err := engine.State(gameID)
	require.NoError(t, err)

	return &hubFixture{
		engine: engine,
		tokens: tokens,
		hub:    hub,
		server: server,
		gameID: gameID,
		alice:  state.TurnOrder[0],
		bob:    state.TurnOrder[1],
	}
}

func (f *hubFixture) url(playerID game.ID, token string) string {
	return fmt.Sprintf("ws%s?game=%s&player=%d&token=%s",
		strings.TrimPrefix(f.server.URL, "http"), f.gameID, playerID, token)
}

func (f *hubFixture) dial(t *testing.T, playerID game.ID) *websocket.Conn {
	t.Helper()
	token, err := f.tokens.Issue(f.gameID, playerID)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(f.url(playerID, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHubPushesViews(t *testing.T) {
	f := newHubFixture(t)
	aliceConn := f.dial(t, f.alice)
	bobConn := f.dial(t, f.bob)

	initial := readFrame(t, aliceConn)
	assert.Equal(t, "view", initial["type"])
	assert.Equal(t, f.gameID, initial["game_id"])
	data := initial["data"].(map[string]any)
	assert.Equal(t, float64(f.alice), data["priority_player"])
	readFrame(t, bobConn)

	require.NoError(t, aliceConn.WriteJSON(map[string]any{
		"type":   "action",
		"action": map[string]any{"type": "PASS_PRIORITY"},
	}))

	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		frame := readFrame(t, conn)
		assert.Equal(t, "view", frame["type"])
		assert.Equal(t, float64(f.bob), frame["data"].(map[string]any)["priority_player"])
	}
}

func TestHubRejectsAndErrors(t *testing.T) {
	f := newHubFixture(t)
	bobConn := f.dial(t, f.bob)
	readFrame(t, bobConn)

	t.Run("rejected action", func(t *testing.T) {
		require.NoError(t, bobConn.WriteJSON(map[string]any{
			"type":   "action",
			"action": map[string]any{"type": "PASS_PRIORITY"},
		}))
		frame := readFrame(t, bobConn)
		assert.Equal(t, "rejected", frame["type"])
		assert.Contains(t, frame["error"], string(game.ReasonNotPriorityHolder))
	})

	t.Run("malformed action", func(t *testing.T) {
		require.NoError(t, bobConn.WriteJSON(map[string]any{
			"type":   "action",
			"action": map[string]any{"type": "PLAY_LAND"},
		}))
		frame := readFrame(t, bobConn)
		assert.Equal(t, "error", frame["type"])
		assert.Contains(t, frame["error"], "object is required")
	})

	t.Run("unknown frame", func(t *testing.T) {
		require.NoError(t, bobConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`)))
		frame := readFrame(t, bobConn)
		assert.Equal(t, "error", frame["type"])
	})

	t.Run("not json", func(t *testing.T) {
		require.NoError(t, bobConn.WriteMessage(websocket.TextMessage, []byte(`nope`)))
		frame := readFrame(t, bobConn)
		assert.Equal(t, "malformed frame", frame["error"])
	})

	t.Run("explicit view request", func(t *testing.T) {
		require.NoError(t, bobConn.WriteJSON(map[string]any{"type": "view"}))
		frame := readFrame(t, bobConn)
		assert.Equal(t, "view", frame["type"])
	})
}

func TestHubAuthentication(t *testing.T) {
	f := newHubFixture(t)
	_, err := f.tokens.Issue(f.gameID, f.alice)
	require.NoError(t, err)

	tests := []struct {
		name string
		url  string
		code int
	}{
		{name: "wrong token", url: f.url(f.alice, "deadbeef"), code: http.StatusUnauthorized},
		{name: "bad player", url: strings.Replace(f.url(f.alice, "x"), fmt.Sprintf("player=%d", f.alice), "player=abc", 1), code: http.StatusBadRequest},
		{name: "missing game", url: "ws" + strings.TrimPrefix(f.server.URL, "http") + "?player=1&token=x", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tt.url, nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tt.code, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestHubCloseGame(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, f.alice)
	readFrame(t, conn)

	f.hub.CloseGame(f.gameID)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "unexpected error %v", err)
}
