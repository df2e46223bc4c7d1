package game

import "context"

// VerdictKind is the oracle's terminal classification of a position.
type VerdictKind string

const (
	VerdictNone VerdictKind = "none"
	VerdictWin  VerdictKind = "win"
	VerdictDraw VerdictKind = "draw"
)

// Verdict carries the winning color when Kind is VerdictWin.
type Verdict struct {
	Kind   VerdictKind
	Winner Color
}

// Applied is the oracle's view of an accepted move.
type Applied struct {
	Position string
	UCI      string
	SAN      string
}

// Oracle answers legality and terminal-outcome queries. Positions and moves are opaque strings.
// Apply returns an error wrapping ErrIllegal when the move is rejected; any other error is an
// oracle failure.
type Oracle interface {
	IsLegal(position, move string) (bool, error)
	Apply(position, move string) (Applied, error)
	Outcome(position string) (Verdict, error)
}

// Store is durable room and move storage.
//
// SaveRoom and CommitMove compare room.Version with the stored version and fail with
// ErrConflict on mismatch; on success room.Version is advanced.
type Store interface {
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	SaveRoom(ctx context.Context, room *Room) error
	AppendMove(ctx context.Context, roomID string, move MoveRecord) error
	CommitMove(ctx context.Context, room *Room, move MoveRecord) error
	ListMoves(ctx context.Context, roomID string) ([]MoveRecord, error)
	ListWaitingRooms(ctx context.Context) ([]*Room, error)
}

// TransitionKind names a committed state change.
type TransitionKind string

const (
	TransitionCreated      TransitionKind = "created"
	TransitionJoined       TransitionKind = "joined"
	TransitionReconnected  TransitionKind = "reconnected"
	TransitionMoved        TransitionKind = "moved"
	TransitionResigned     TransitionKind = "resigned"
	TransitionDisconnected TransitionKind = "disconnected"
)

// LobbyChange is the lobby visibility change caused by a transition.
type LobbyChange int

const (
	LobbyUnchanged LobbyChange = iota
	LobbyAvailable
	LobbyUnavailable
)

// Transition is a committed change of one room. Room is a snapshot owned by the receiver.
type Transition struct {
	Kind    TransitionKind
	Room    *Room
	Actor   string
	Slot    Slot
	Move    *MoveRecord
	History []MoveRecord
	Lobby   LobbyChange
}

// Publisher receives transitions while the room's critical section is still held, so the
// publications of one room are observed in commit order.
type Publisher interface {
	Publish(ctx context.Context, t *Transition)
}

// Archiver stores finished games for later queries.
type Archiver interface {
	SaveResult(ctx context.Context, room *Room, moves []MoveRecord) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *Transition) {}
