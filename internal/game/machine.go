package game

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Machine owns the transition logic of every room. Mutations of one room are serialised;
// different rooms proceed independently.
type Machine struct {
	store   Store
	oracle  Oracle
	pub     Publisher
	archive Archiver
	locks   *roomLocks
	logger  *zap.Logger
	now     func() time.Time
	coin    func() Color
}

type Option func(*Machine)

func WithPublisher(p Publisher) Option {
	return func(m *Machine) {
		if p != nil {
			m.pub = p
		}
	}
}

func WithArchiver(a Archiver) Option {
	return func(m *Machine) { m.archive = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithCoin overrides the random color draw used for ChoiceRandom.
func WithCoin(coin func() Color) Option {
	return func(m *Machine) {
		if coin != nil {
			m.coin = coin
		}
	}
}

func NewMachine(store Store, oracle Oracle, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		oracle: oracle,
		pub:    nopPublisher{},
		locks:  newRoomLocks(),
		logger: zap.NewNop(),
		now:    time.Now,
		coin:   secureCoin,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateParams describes a create request. Nil clock fields mean the client omitted them.
type CreateParams struct {
	RoomID    string
	Creator   string
	BaseTime  *time.Duration
	Increment *time.Duration
	Format    string
	Color     string
	// Conn is the creator's connection id.
	Conn string
}

// Create allocates a new waiting room with the creator in player1.
func (m *Machine) Create(ctx context.Context, p CreateParams) (*Transition, error) {
	id := strings.TrimSpace(p.RoomID)
	creator := strings.TrimSpace(p.Creator)
	if id == "" || creator == "" {
		return nil, errorf(KindInvalidParameters, id, "room id and creator are required")
	}
	if p.BaseTime == nil || p.Increment == nil {
		return nil, errorf(KindInvalidParameters, id, "base and increment are required")
	}
	if *p.BaseTime <= 0 || *p.Increment < 0 {
		return nil, errorf(KindInvalidParameters, id, "base must be positive and increment non-negative")
	}
	format, ok := ParseFormat(p.Format)
	if !ok {
		return nil, errorf(KindInvalidParameters, id, "unknown format %q", p.Format)
	}
	choice, ok := ParseColorChoice(p.Color)
	if !ok {
		return nil, errorf(KindInvalidParameters, id, "unknown color %q", p.Color)
	}

	unlock := m.locks.lock(id)
	defer unlock()

	color := White
	switch choice {
	case ChoiceBlack:
		color = Black
	case ChoiceRandom:
		color = m.coin()
	}
	now := m.now()
	room := &Room{
		ID:         id,
		Player1:    Seat{Player: creator, Color: color},
		Player2:    Seat{Color: color.Opposite()},
		Position:   StartFEN,
		Phase:      PhaseWaiting,
		Format:     format,
		Clock:      ClockConfig{TotalTime: *p.BaseTime, Increment: *p.Increment},
		ClockState: ClockState{Remaining1: *p.BaseTime, Remaining2: *p.BaseTime},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	room.Turn = room.SlotWithColor(White)
	room.Player1.attach(strings.TrimSpace(p.Conn))

	if err := m.store.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, ErrExists) {
			return nil, newErr(KindAlreadyExists, id)
		}
		return nil, unavailable(id, err)
	}
	m.logger.Info("room_create",
		zap.String("room_id", id),
		zap.String("creator", creator),
		zap.String("color", string(color)),
		zap.String("format", string(format)),
		zap.Duration("base", room.Clock.TotalTime),
		zap.Duration("increment", room.Clock.Increment),
	)
	t := &Transition{Kind: TransitionCreated, Room: room.Clone(), Actor: creator, Slot: Player1, Lobby: LobbyAvailable}
	m.pub.Publish(ctx, t)
	return t, nil
}

// Join seats a new player in player2 or reconnects an existing occupant. conn is recorded on
// the seat so that Disconnect can tell the player's connections apart.
func (m *Machine) Join(ctx context.Context, roomID, player, conn string) (*Transition, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, errorf(KindInvalidParameters, roomID, "player is required")
	}
	unlock := m.locks.lock(roomID)
	defer unlock()

	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if slot, ok := room.SlotOf(player); ok {
		history, err := m.store.ListMoves(ctx, roomID)
		if err != nil {
			return nil, unavailable(roomID, err)
		}
		room.Seat(slot).attach(strings.TrimSpace(conn))
		if room.Phase != PhaseEnded && room.bothConnected() {
			room.Phase = PhaseActive
		}
		room.UpdatedAt = m.now()
		if err := m.save(ctx, room); err != nil {
			return nil, err
		}
		m.logger.Info("room_reconnect",
			zap.String("room_id", roomID),
			zap.String("player", player),
			zap.String("slot", string(slot)),
			zap.String("phase", string(room.Phase)),
		)
		t := &Transition{Kind: TransitionReconnected, Room: room.Clone(), Actor: player, Slot: slot, History: history}
		m.pub.Publish(ctx, t)
		return t, nil
	}

	switch room.Phase {
	case PhaseActive:
		return nil, newErr(KindRoomBusy, roomID)
	case PhaseEnded:
		return nil, newErr(KindGameEnded, roomID)
	}
	if room.Player2.Occupied() {
		return nil, newErr(KindRoomFull, roomID)
	}

	room.Player2.Player = player
	room.Player2.attach(strings.TrimSpace(conn))
	if room.bothConnected() {
		room.Phase = PhaseActive
	}
	room.UpdatedAt = m.now()
	if err := m.save(ctx, room); err != nil {
		return nil, err
	}
	m.logger.Info("room_join",
		zap.String("room_id", roomID),
		zap.String("player", player),
		zap.String("phase", string(room.Phase)),
	)
	t := &Transition{Kind: TransitionJoined, Room: room.Clone(), Actor: player, Slot: Player2, Lobby: LobbyUnavailable}
	m.pub.Publish(ctx, t)
	return t, nil
}

// Move validates and applies a move for player, then checks for a terminal position.
func (m *Machine) Move(ctx context.Context, roomID, player, notation string) (*Transition, error) {
	unlock := m.locks.lock(roomID)
	defer unlock()

	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	slot, ok := room.SlotOf(strings.TrimSpace(player))
	if !ok {
		return nil, newErr(KindNotAPlayer, roomID)
	}
	if room.Phase == PhaseEnded {
		return nil, newErr(KindGameEnded, roomID)
	}
	if room.Phase != PhaseActive {
		return nil, newErr(KindNotActive, roomID)
	}
	if room.Turn != slot {
		return nil, newErr(KindNotYourTurn, roomID)
	}
	notation = strings.TrimSpace(notation)
	if notation == "" {
		return nil, newErr(KindNoMove, roomID)
	}

	applied, err := m.oracle.Apply(room.Position, notation)
	if err != nil {
		if errors.Is(err, ErrIllegal) {
			return nil, &Error{Kind: KindIllegalMove, Room: roomID, Detail: notation, Err: err}
		}
		return nil, unavailable(roomID, err)
	}
	verdict, err := m.oracle.Outcome(applied.Position)
	if err != nil {
		return nil, unavailable(roomID, err)
	}
	history, err := m.store.ListMoves(ctx, roomID)
	if err != nil {
		return nil, unavailable(roomID, err)
	}

	now := m.now()
	next := room.Clone()
	next.Position = applied.Position
	next.Turn = slot.Other()
	next.UpdatedAt = now
	switch verdict.Kind {
	case VerdictWin:
		next.Phase = PhaseEnded
		next.Outcome = &Outcome{Winner: next.SlotWithColor(verdict.Winner), Reason: ReasonCheckmate}
	case VerdictDraw:
		next.Phase = PhaseEnded
		next.Outcome = &Outcome{Reason: ReasonDraw}
	}
	rec := MoveRecord{RoomID: roomID, Notation: applied.UCI, SAN: applied.SAN, Ply: len(history) + 1, PlayedAt: now}

	if err := m.store.CommitMove(ctx, next, rec); err != nil {
		return nil, m.storeErr(roomID, err)
	}
	history = append(history, rec)

	fields := []zap.Field{
		zap.String("room_id", roomID),
		zap.String("player", player),
		zap.String("uci", rec.Notation),
		zap.Int("ply", rec.Ply),
		zap.String("turn", string(next.Turn)),
		zap.String("phase", string(next.Phase)),
	}
	if next.Outcome != nil {
		fields = append(fields, zap.String("reason", string(next.Outcome.Reason)), zap.String("winner", string(next.Outcome.Winner)))
	}
	m.logger.Info("room_move", fields...)

	t := &Transition{Kind: TransitionMoved, Room: next.Clone(), Actor: player, Slot: slot, Move: &rec, History: history}
	m.pub.Publish(ctx, t)
	if next.Phase == PhaseEnded {
		m.archiveResult(ctx, next, history)
	}
	return t, nil
}

// Resign ends the room in favour of the other seat, or with no winner when that seat is empty.
func (m *Machine) Resign(ctx context.Context, roomID, player string) (*Transition, error) {
	unlock := m.locks.lock(roomID)
	defer unlock()

	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	slot, ok := room.SlotOf(strings.TrimSpace(player))
	if !ok {
		return nil, newErr(KindNotAPlayer, roomID)
	}
	if room.Phase == PhaseEnded {
		return nil, newErr(KindGameEnded, roomID)
	}
	lobby := LobbyUnchanged
	if room.Joinable() {
		lobby = LobbyUnavailable
	}
	room.Phase = PhaseEnded
	room.Outcome = &Outcome{Winner: slot.Other(), Reason: ReasonResign}
	if !room.Seat(slot.Other()).Occupied() {
		// nobody to award the game to
		room.Outcome.Winner = ""
	}
	room.UpdatedAt = m.now()
	if err := m.save(ctx, room); err != nil {
		return nil, err
	}
	m.logger.Info("room_resign",
		zap.String("room_id", roomID),
		zap.String("resigner", player),
		zap.String("winner", string(room.Outcome.Winner)),
	)
	t := &Transition{Kind: TransitionResigned, Room: room.Clone(), Actor: player, Slot: slot, Lobby: lobby}
	m.pub.Publish(ctx, t)

	history, err := m.store.ListMoves(ctx, roomID)
	if err != nil {
		m.logger.Warn("room_history_error", zap.String("room_id", roomID), zap.Error(err))
	}
	m.archiveResult(ctx, room, history)
	return t, nil
}

// Disconnect detaches conn from player's seat. Once the seat has no connection left it is
// marked disconnected and the room pauses. It is a no-op for unknown rooms, non-players, ended
// rooms and connections the seat never attached. An empty conn detaches the whole seat.
func (m *Machine) Disconnect(ctx context.Context, roomID, player, conn string) (*Transition, error) {
	if strings.TrimSpace(roomID) == "" || strings.TrimSpace(player) == "" {
		return nil, nil
	}
	unlock := m.locks.lock(roomID)
	defer unlock()

	room, err := m.load(ctx, roomID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	slot, ok := room.SlotOf(strings.TrimSpace(player))
	if !ok || room.Phase == PhaseEnded {
		return nil, nil
	}
	removed, last := room.Seat(slot).detach(strings.TrimSpace(conn))
	if !removed {
		return nil, nil
	}
	if !last {
		room.UpdatedAt = m.now()
		if err := m.save(ctx, room); err != nil {
			return nil, err
		}
		m.logger.Debug("room_conn_detach",
			zap.String("room_id", roomID),
			zap.String("player", player),
			zap.String("conn", conn),
			zap.Int("remaining", len(room.Seat(slot).Conns)),
		)
		return nil, nil
	}
	room.Phase = PhaseWaiting
	room.UpdatedAt = m.now()
	if err := m.save(ctx, room); err != nil {
		return nil, err
	}
	m.logger.Info("room_disconnect",
		zap.String("room_id", roomID),
		zap.String("player", player),
		zap.String("slot", string(slot)),
	)
	t := &Transition{Kind: TransitionDisconnected, Room: room.Clone(), Actor: player, Slot: slot}
	m.pub.Publish(ctx, t)
	return t, nil
}

// Room returns the current state of a room.
func (m *Machine) Room(ctx context.Context, roomID string) (*Room, error) {
	return m.load(ctx, roomID)
}

// History returns the accepted moves of a room in play order.
func (m *Machine) History(ctx context.Context, roomID string) ([]MoveRecord, error) {
	if _, err := m.load(ctx, roomID); err != nil {
		return nil, err
	}
	moves, err := m.store.ListMoves(ctx, roomID)
	if err != nil {
		return nil, unavailable(roomID, err)
	}
	return moves, nil
}

func (m *Machine) load(ctx context.Context, roomID string) (*Room, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, newErr(KindNotFound, roomID)
	}
	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newErr(KindNotFound, roomID)
		}
		return nil, unavailable(roomID, err)
	}
	if room == nil {
		return nil, newErr(KindNotFound, roomID)
	}
	return room, nil
}

func (m *Machine) save(ctx context.Context, room *Room) error {
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return m.storeErr(room.ID, err)
	}
	return nil
}

func (m *Machine) storeErr(roomID string, err error) error {
	if errors.Is(err, ErrConflict) {
		return &Error{Kind: KindConflict, Room: roomID, Err: err}
	}
	return unavailable(roomID, err)
}

func (m *Machine) archiveResult(ctx context.Context, room *Room, history []MoveRecord) {
	if m.archive == nil || room == nil {
		return
	}
	if err := m.archive.SaveResult(ctx, room, history); err != nil {
		m.logger.Error("room_archive_error", zap.String("room_id", room.ID), zap.Error(err))
		return
	}
	reason := ""
	if room.Outcome != nil {
		reason = string(room.Outcome.Reason)
	}
	m.logger.Info("room_archive", zap.String("room_id", room.ID), zap.String("reason", reason), zap.Int("moves", len(history)))
}

func secureCoin() Color {
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 1 {
		return Black
	}
	return White
}
