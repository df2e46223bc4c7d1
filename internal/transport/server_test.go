package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/identity"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/registry"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type env struct {
	url string
	reg *registry.Registry
	st  *store.Memory
	srv *Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemory()
	reg := registry.New()
	lb := lobby.New(st, reg, nil)
	m := game.NewMachine(st, rules.New(), game.WithPublisher(session.NewFanout(reg, lb, nil)))
	cat, err := msgcat.New("")
	require.NoError(t, err)
	coord := session.NewCoordinator(m, reg, lb, cat, nil, session.Options{})
	srv := NewServer(coord, identity.NewHeaderResolver("X-User-Id", false), Config{SendBuffer: 16, PingInterval: time.Second}, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return &env{url: "ws" + strings.TrimPrefix(ts.URL, "http"), reg: reg, st: st, srv: srv}
}

func (e *env) dial(t *testing.T, path, user string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, e.url+path, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-Id": []string{user}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func read(t *testing.T, c *websocket.Conn) arenadto.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var ev arenadto.Event
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	return ev
}

func write(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, v))
}

func TestUnauthenticatedRejectedBeforeUpgrade(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, e.url+"/ws/chess/R1/", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get("http" + strings.TrimPrefix(e.url, "ws") + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomGameOverWebSocket(t *testing.T) {
	e := newEnv(t)
	lobbyConn := e.dial(t, "/ws/chess/", "watcher")
	assert.Equal(t, arenadto.InfoConnected, read(t, lobbyConn).Message.Info)
	assert.Equal(t, arenadto.InfoLobby, read(t, lobbyConn).Message.Info)

	alice := e.dial(t, "/ws/chess/R1/", "alice")
	assert.Equal(t, arenadto.InfoConnected, read(t, alice).Message.Info)

	write(t, alice, map[string]any{"action": "create", "base": 300000, "increment": 0})
	ev := read(t, alice)
	assert.Equal(t, arenadto.InfoCreated, ev.Message.Info)
	lv := read(t, lobbyConn)
	assert.Equal(t, arenadto.InfoAvailable, lv.Message.Info)

	bob := e.dial(t, "/ws/chess/R1", "bob")
	assert.Equal(t, arenadto.InfoConnected, read(t, bob).Message.Info)
	write(t, bob, map[string]any{"action": "join"})
	assert.Equal(t, arenadto.InfoJoined, read(t, bob).Message.Info)
	assert.Equal(t, arenadto.InfoJoined, read(t, alice).Message.Info)
	assert.Equal(t, arenadto.InfoUnavailable, read(t, lobbyConn).Message.Info)

	write(t, alice, map[string]any{"action": "make_move", "move": "e2e4"})
	ev = read(t, bob)
	assert.Equal(t, arenadto.InfoMoved, ev.Message.Info)
	assert.Equal(t, "player2", ev.Game.Turn)
	read(t, alice)

	write(t, alice, "not an object")
	ev = read(t, alice)
	assert.Equal(t, arenadto.InfoInvalid, ev.Message.Info)

	require.NoError(t, alice.Close(websocket.StatusNormalClosure, "bye"))
	ev = read(t, bob)
	assert.Equal(t, arenadto.InfoDisconnected, ev.Message.Info)
	assert.Equal(t, "waiting", ev.Game.Phase)

	r, err := e.st.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.False(t, r.Player1.Connected)
}

func TestShutdownClosesConnections(t *testing.T) {
	e := newEnv(t)
	c := e.dial(t, "/ws/chess/", "watcher")
	read(t, c)
	read(t, c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.srv.Shutdown(ctx))
	assert.Equal(t, 0, e.reg.Size(registry.LobbyGroup))
	_, _, err := c.Read(ctx)
	assert.Error(t, err)
}

func TestUpgradeRefusedAfterShutdown(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.srv.Shutdown(ctx))

	_, resp, err := websocket.Dial(ctx, e.url+"/ws/chess/", &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-Id": []string{"late"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 0, e.reg.Size(registry.LobbyGroup))
}
