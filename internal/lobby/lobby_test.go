package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/registry"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	id  string
	got [][]byte
}

func (s *sink) ID() string { return s.id }
func (s *sink) Send(p []byte) error {
	s.got = append(s.got, p)
	return nil
}

func (s *sink) last(t *testing.T) arenadto.Event {
	t.Helper()
	require.NotEmpty(t, s.got)
	var ev arenadto.Event
	require.NoError(t, json.Unmarshal(s.got[len(s.got)-1], &ev))
	return ev
}

type failingLister struct{}

func (failingLister) ListWaitingRooms(context.Context) ([]*game.Room, error) {
	return nil, errors.New("redis down")
}

func seed(t *testing.T, st *store.Memory, id string, created time.Time, full bool) {
	t.Helper()
	r := &game.Room{
		ID:        id,
		Player1:   game.Seat{Player: "creator-" + id, Color: game.Black, Connected: true},
		Player2:   game.Seat{Color: game.White},
		Phase:     game.PhaseWaiting,
		Format:    game.FormatBlitz,
		Clock:     game.ClockConfig{TotalTime: 3 * time.Minute, Increment: 2 * time.Second},
		CreatedAt: created,
	}
	if full {
		r.Player2.Player = "guest"
		r.Phase = game.PhaseActive
	}
	require.NoError(t, st.CreateRoom(context.Background(), r))
}

func TestSnapshotOnlyToMember(t *testing.T) {
	st := store.NewMemory()
	base := time.Unix(500, 0).UTC()
	seed(t, st, "A", base, false)
	seed(t, st, "B", base.Add(time.Second), true)
	seed(t, st, "C", base.Add(2*time.Second), false)

	reg := registry.New()
	watcher, newcomer := &sink{id: "w"}, &sink{id: "n"}
	reg.Join(registry.LobbyGroup, watcher)
	reg.Join(registry.LobbyGroup, newcomer)

	b := New(st, reg, nil)
	require.NoError(t, b.Snapshot(context.Background(), newcomer))

	assert.Empty(t, watcher.got)
	ev := newcomer.last(t)
	assert.Equal(t, arenadto.OnlyMe, ev.Message.Type)
	assert.Equal(t, arenadto.InfoLobby, ev.Message.Info)
	require.Len(t, ev.Games, 2)
	assert.Equal(t, "A", ev.Games[0].GameID)
	assert.Equal(t, "C", ev.Games[1].GameID)
	assert.Equal(t, int64(180000), ev.Games[0].Base)
	assert.Equal(t, int64(2000), ev.Games[0].Increment)
	assert.Equal(t, "black", ev.Games[0].CreatorColor)
}

func TestSnapshotDependencyFailure(t *testing.T) {
	b := New(failingLister{}, registry.New(), nil)
	err := b.Snapshot(context.Background(), &sink{id: "x"})
	assert.Equal(t, game.KindDependencyUnavailable, game.KindOf(err))
}

func TestPublishBroadcastsToLobby(t *testing.T) {
	reg := registry.New()
	watcher, player := &sink{id: "w"}, &sink{id: "p"}
	reg.Join(registry.LobbyGroup, watcher)
	reg.Join(registry.RoomGroup("R1"), player)
	b := New(store.NewMemory(), reg, nil)

	room := &game.Room{ID: "R1", Player1: game.Seat{Player: "alice", Color: game.White}, Format: game.FormatRapid}
	b.Publish(context.Background(), Delta(room, true))
	ev := watcher.last(t)
	assert.Equal(t, arenadto.All, ev.Message.Type)
	assert.Equal(t, arenadto.InfoAvailable, ev.Message.Info)
	require.NotNil(t, ev.Lobby)
	assert.True(t, ev.Lobby.Available)
	require.NotNil(t, ev.Lobby.Summary)
	assert.Equal(t, "alice", ev.Lobby.Summary.Creator)

	b.Publish(context.Background(), Delta(room, false))
	ev = watcher.last(t)
	assert.Equal(t, arenadto.InfoUnavailable, ev.Message.Info)
	assert.False(t, ev.Lobby.Available)
	assert.Nil(t, ev.Lobby.Summary)
	assert.Empty(t, player.got)
}

func TestSnapshot_EmptyLobbySendsEmptyList(t *testing.T) {
	st := store.NewMemory()
	b := New(st, registry.New(), nil)
	m := &sink{id: "l1"}
	require.NoError(t, b.Snapshot(context.Background(), m))
	require.Len(t, m.got, 1)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(m.got[0], &raw))
	require.Contains(t, raw, "games")
	assert.JSONEq(t, `[]`, string(raw["games"]))
}
