package game

import (
	"errors"
	"fmt"
)

// Kind classifies failures reported to clients.
type Kind string

const (
	KindAlreadyExists         Kind = "already_exists"
	KindNotFound              Kind = "not_found"
	KindRoomFull              Kind = "room_full"
	KindRoomBusy              Kind = "room_busy"
	KindNotAPlayer            Kind = "not_a_player"
	KindGameEnded             Kind = "game_ended"
	KindNotActive             Kind = "not_active"
	KindNotYourTurn           Kind = "not_your_turn"
	KindNoMove                Kind = "no_move"
	KindIllegalMove           Kind = "illegal_move"
	KindInvalidParameters     Kind = "invalid_parameters"
	KindMalformedMessage      Kind = "malformed_message"
	KindUnknownAction         Kind = "unknown_action"
	KindConflict              Kind = "conflict"
	KindDependencyUnavailable Kind = "dependency_unavailable"
)

// Error implements error so a bare Kind can be used as an errors.Is target.
func (k Kind) Error() string { return string(k) }

// Error is a taxonomy error bound to a room.
type Error struct {
	Kind   Kind
	Room   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Room != "" {
		msg += " (room " + e.Room + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind or a bare Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

func newErr(kind Kind, room string) *Error { return &Error{Kind: kind, Room: room} }

func errorf(kind Kind, room, format string, args ...any) *Error {
	return &Error{Kind: kind, Room: room, Detail: fmt.Sprintf(format, args...)}
}

func unavailable(room string, err error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Room: room, Err: err}
}

// KindOf maps err onto the taxonomy. Anything outside it is a dependency failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindDependencyUnavailable
}

// Store sentinels. Implementations wrap these; the machine translates them.
var (
	ErrExists   = errors.New("room already exists")
	ErrNotFound = errors.New("room not found")
	ErrConflict = errors.New("room modified concurrently")
)

// ErrIllegal is returned (wrapped) by oracles for rejected moves.
var ErrIllegal = errors.New("illegal move")
