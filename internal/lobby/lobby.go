// Package lobby advertises joinable rooms to connections that are not bound to a room.
package lobby

import (
	"context"
	"encoding/json"

	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/registry"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// Lister yields the rooms that currently have an open seat.
type Lister interface {
	ListWaitingRooms(ctx context.Context) ([]*game.Room, error)
}

// Groups is the part of the registry the broadcaster needs.
type Groups interface {
	Broadcast(group string, payload []byte) int
}

type Broadcaster struct {
	rooms  Lister
	groups Groups
	logger *zap.Logger
}

func New(rooms Lister, groups Groups, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{rooms: rooms, groups: groups, logger: logger}
}

// Snapshot sends the full waiting-room list to m only.
func (b *Broadcaster) Snapshot(ctx context.Context, m registry.Member) error {
	rooms, err := b.rooms.ListWaitingRooms(ctx)
	if err != nil {
		return &game.Error{Kind: game.KindDependencyUnavailable, Err: err}
	}
	entries := make([]arenadto.LobbyEntry, 0, len(rooms))
	for _, r := range rooms {
		entries = append(entries, Entry(r))
	}
	raw, err := json.Marshal(arenadto.Event{
		Games:   entries,
		Message: arenadto.Message{Type: arenadto.OnlyMe, Info: arenadto.InfoLobby},
	})
	if err != nil {
		return err
	}
	if err := m.Send(raw); err != nil {
		b.logger.Debug("lobby_snapshot_dropped", zap.String("conn", m.ID()), zap.Error(err))
	}
	return nil
}

// Publish tells the lobby group that a room became available or unavailable.
func (b *Broadcaster) Publish(ctx context.Context, delta arenadto.LobbyDelta) {
	info := arenadto.InfoUnavailable
	if delta.Available {
		info = arenadto.InfoAvailable
	}
	raw, err := json.Marshal(arenadto.Event{
		Lobby:   &delta,
		Message: arenadto.Message{Type: arenadto.All, Info: info},
	})
	if err != nil {
		b.logger.Error("lobby_encode_error", zap.String("game_id", delta.GameID), zap.Error(err))
		return
	}
	n := b.groups.Broadcast(registry.LobbyGroup, raw)
	b.logger.Debug("lobby_publish", zap.String("game_id", delta.GameID), zap.Bool("available", delta.Available), zap.Int("sent", n))
}

// Delta builds the lobby change for room.
func Delta(room *game.Room, available bool) arenadto.LobbyDelta {
	d := arenadto.LobbyDelta{GameID: room.ID, Available: available}
	if available {
		e := Entry(room)
		d.Summary = &e
	}
	return d
}

// Entry summarises room for the lobby list.
func Entry(room *game.Room) arenadto.LobbyEntry {
	return arenadto.LobbyEntry{
		GameID:       room.ID,
		Format:       string(room.Format),
		Creator:      room.Player1.Player,
		CreatorColor: string(room.Player1.Color),
		Base:         room.Clock.TotalTime.Milliseconds(),
		Increment:    room.Clock.Increment.Milliseconds(),
		CreatedAt:    room.CreatedAt,
	}
}
