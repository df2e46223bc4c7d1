package session

import (
	"context"
	"encoding/json"

	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/registry"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// Groups is the registry surface used by the coordinator.
type Groups interface {
	Join(group string, m registry.Member)
	LeaveAll(m registry.Member)
	Broadcast(group string, payload []byte) int
}

// Lobby is the lobby broadcaster surface used by the coordinator.
type Lobby interface {
	Snapshot(ctx context.Context, m registry.Member) error
	Publish(ctx context.Context, delta arenadto.LobbyDelta)
}

// Fanout delivers committed transitions: the room view to the room group, and lobby
// visibility changes to the lobby.
type Fanout struct {
	groups Groups
	lobby  Lobby
	logger *zap.Logger
}

func NewFanout(groups Groups, lb Lobby, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{groups: groups, lobby: lb, logger: logger}
}

var _ game.Publisher = (*Fanout)(nil)

func (f *Fanout) Publish(ctx context.Context, t *game.Transition) {
	if t == nil || t.Room == nil {
		return
	}
	raw, err := json.Marshal(transitionEvent(t))
	if err != nil {
		f.logger.Error("fanout_encode_error", zap.String("room_id", t.Room.ID), zap.Error(err))
	} else {
		n := f.groups.Broadcast(registry.RoomGroup(t.Room.ID), raw)
		f.logger.Debug("fanout_room",
			zap.String("room_id", t.Room.ID),
			zap.String("kind", string(t.Kind)),
			zap.Int("sent", n),
		)
	}
	switch t.Lobby {
	case game.LobbyAvailable:
		f.lobby.Publish(ctx, lobby.Delta(t.Room, true))
	case game.LobbyUnavailable:
		f.lobby.Publish(ctx, lobby.Delta(t.Room, false))
	}
}
