// Package session binds connections to a room or the lobby, dispatches client actions to the
// game machine and reports failures back to the sender.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/registry"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Machine is the game transition surface the coordinator drives.
type Machine interface {
	Create(ctx context.Context, p game.CreateParams) (*game.Transition, error)
	Join(ctx context.Context, roomID, player, conn string) (*game.Transition, error)
	Move(ctx context.Context, roomID, player, notation string) (*game.Transition, error)
	Resign(ctx context.Context, roomID, player string) (*game.Transition, error)
	Disconnect(ctx context.Context, roomID, player, conn string) (*game.Transition, error)
}

// Binding is fixed by the transport when the connection is established. An empty RoomID
// binds the connection to the lobby.
type Binding struct {
	RoomID string
	Player string
}

func (b Binding) Lobby() bool { return b.RoomID == "" }

type Options struct {
	// Verbose logs every inbound action at Info instead of Debug.
	Verbose bool
}

type Coordinator struct {
	machine Machine
	groups  Groups
	lobby   Lobby
	catalog *msgcat.Catalog
	logger  *zap.Logger
	opts    Options
}

func NewCoordinator(machine Machine, groups Groups, lb Lobby, catalog *msgcat.Catalog, logger *zap.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{machine: machine, groups: groups, lobby: lb, catalog: catalog, logger: logger, opts: opts}
}

// Session is one bound connection. Handle and Close are called from the connection's read loop.
type Session struct {
	c       *Coordinator
	conn    registry.Member
	binding Binding
	log     *zap.Logger
}

// Open joins conn to its group and acknowledges it. Lobby connections also get the snapshot.
func (c *Coordinator) Open(ctx context.Context, conn registry.Member, b Binding) *Session {
	b.RoomID = strings.TrimSpace(b.RoomID)
	b.Player = strings.TrimSpace(b.Player)
	s := &Session{
		c:       c,
		conn:    conn,
		binding: b,
		log:     c.logger.With(zap.String("conn", conn.ID()), zap.String("player", b.Player), zap.String("room_id", b.RoomID)),
	}
	group := registry.LobbyGroup
	if !b.Lobby() {
		group = registry.RoomGroup(b.RoomID)
	}
	c.groups.Join(group, conn)
	s.log.Info("session_open", zap.String("group", group))

	s.send(arenadto.Event{Message: arenadto.Message{
		Type:   arenadto.OnlyMe,
		Info:   arenadto.InfoConnected,
		Player: &arenadto.PlayerView{ID: b.Player},
	}})
	if b.Lobby() {
		s.snapshot(ctx)
	}
	return s
}

func (s *Session) Binding() Binding { return s.binding }

// Handle processes one inbound frame.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	var a arenadto.Action
	if err := json.Unmarshal(raw, &a); err != nil || strings.TrimSpace(a.Action) == "" {
		s.log.Debug("session_malformed", zap.Int("bytes", len(raw)))
		s.sendError(arenadto.InfoInvalid, "", &game.Error{Kind: game.KindMalformedMessage})
		return
	}
	action := strings.ToLower(strings.TrimSpace(a.Action))
	lvl := zapcore.DebugLevel
	if s.c.opts.Verbose {
		lvl = zapcore.InfoLevel
	}
	if ce := s.log.Check(lvl, "session_action"); ce != nil {
		ce.Write(zap.String("action", action), zap.String("move", a.Move))
	}

	switch action {
	case arenadto.ActionPing:
		s.send(arenadto.Event{Message: arenadto.Message{Type: arenadto.OnlyMe, Info: arenadto.InfoPong}})
		return
	case arenadto.ActionList:
		if !s.binding.Lobby() {
			s.fail(action, &game.Error{Kind: game.KindInvalidParameters, Room: s.binding.RoomID, Detail: "list is only available in the lobby"})
			return
		}
		s.snapshot(ctx)
		return
	case arenadto.ActionCreate, arenadto.ActionCreateGame,
		arenadto.ActionJoin, arenadto.ActionJoinGame,
		arenadto.ActionMove,
		arenadto.ActionResign, arenadto.ActionResignGame:
	default:
		s.echoUnknown(a.Action)
		return
	}

	if s.binding.Lobby() {
		s.fail(action, &game.Error{Kind: game.KindInvalidParameters, Detail: "connect to a room to " + action})
		return
	}
	roomID, player, conn := s.binding.RoomID, s.binding.Player, s.conn.ID()

	var err error
	switch action {
	case arenadto.ActionCreate, arenadto.ActionCreateGame:
		base, ok := millis(a.Base)
		inc, ok2 := millis(a.Increment)
		if !ok || !ok2 {
			err = &game.Error{Kind: game.KindInvalidParameters, Room: roomID, Detail: "base and increment are out of range"}
			break
		}
		_, err = s.c.machine.Create(ctx, game.CreateParams{
			RoomID:    roomID,
			Creator:   player,
			BaseTime:  base,
			Increment: inc,
			Format:    a.Format,
			Color:     a.Color,
			Conn:      conn,
		})
	case arenadto.ActionJoin, arenadto.ActionJoinGame:
		_, err = s.c.machine.Join(ctx, roomID, player, conn)
	case arenadto.ActionMove:
		_, err = s.c.machine.Move(ctx, roomID, player, a.Move)
	case arenadto.ActionResign, arenadto.ActionResignGame:
		_, err = s.c.machine.Resign(ctx, roomID, player)
	}
	if err != nil {
		s.fail(action, err)
	}
}

// Close leaves every group, then detaches the connection from the player's seat.
func (s *Session) Close(ctx context.Context) {
	s.c.groups.LeaveAll(s.conn)
	if !s.binding.Lobby() {
		if _, err := s.c.machine.Disconnect(ctx, s.binding.RoomID, s.binding.Player, s.conn.ID()); err != nil {
			s.log.Warn("session_disconnect_error", zap.Error(err))
		}
	}
	s.log.Info("session_close")
}

func (s *Session) snapshot(ctx context.Context) {
	if err := s.c.lobby.Snapshot(ctx, s.conn); err != nil {
		s.fail(arenadto.ActionList, err)
	}
}

func (s *Session) echoUnknown(action string) {
	s.send(arenadto.Event{Message: arenadto.Message{
		Type:   arenadto.OnlyMe,
		Info:   arenadto.InfoUnknownAction,
		Code:   string(game.KindUnknownAction),
		Action: action,
		Error:  s.c.catalog.Error(string(game.KindUnknownAction), msgcat.ErrorData{Room: s.binding.RoomID, Action: action}),
	}})
}

func (s *Session) fail(action string, err error) {
	s.sendError(arenadto.InfoError, action, err)
}

func (s *Session) sendError(info, action string, err error) {
	kind := game.KindOf(err)
	data := msgcat.ErrorData{Room: s.binding.RoomID, Action: action}
	var ge *game.Error
	if errors.As(err, &ge) {
		data.Detail = ge.Detail
		if ge.Room != "" {
			data.Room = ge.Room
		}
	}
	if kind == game.KindDependencyUnavailable {
		s.log.Error("session_dependency_error", zap.String("action", action), zap.Error(err))
		data.Detail = ""
	} else {
		s.log.Debug("session_rejected", zap.String("action", action), zap.String("kind", string(kind)))
	}
	s.send(arenadto.Event{Message: arenadto.Message{
		Type:   arenadto.OnlyMe,
		Info:   info,
		Code:   string(kind),
		Action: action,
		Error:  s.c.catalog.Error(string(kind), data),
	}})
}

func (s *Session) send(ev arenadto.Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("session_encode_error", zap.Error(err))
		return
	}
	if err := s.conn.Send(raw); err != nil {
		s.log.Debug("session_send_dropped", zap.Error(err))
	}
}

const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// millis converts a client millisecond value. ok is false when the value does not fit a
// time.Duration; a nil v stays nil.
func millis(v *int64) (d *time.Duration, ok bool) {
	if v == nil {
		return nil, true
	}
	if *v > maxMillis || *v < -maxMillis {
		return nil, false
	}
	out := time.Duration(*v) * time.Millisecond
	return &out, true
}
