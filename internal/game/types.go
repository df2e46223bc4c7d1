package game

import (
	"slices"
	"strings"
	"time"
)

// StartFEN is the standard initial chess position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Slot identifies one of the two fixed seats of a room.
type Slot string

const (
	Player1 Slot = "player1"
	Player2 Slot = "player2"
)

// Other returns the opposite seat.
func (s Slot) Other() Slot {
	if s == Player1 {
		return Player2
	}
	return Player1
}

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Phase represents the room lifecycle state.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

// Reason describes how a game ended.
type Reason string

const (
	ReasonCheckmate Reason = "checkmate"
	ReasonDraw      Reason = "draw"
	ReasonResign    Reason = "resign"
)

// Format is a display label for the time control family.
type Format string

const (
	FormatClassic Format = "classic"
	FormatRapid   Format = "rapid"
	FormatBlitz   Format = "blitz"
	FormatBullet  Format = "bullet"
	FormatCustom  Format = "custom"
)

// ParseFormat normalises a format label. Empty input yields rapid.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FormatRapid, true
	case "classic":
		return FormatClassic, true
	case "rapid":
		return FormatRapid, true
	case "blitz", "bliz":
		return FormatBlitz, true
	case "bullet":
		return FormatBullet, true
	case "custom":
		return FormatCustom, true
	default:
		return "", false
	}
}

// ColorChoice is the creator's color preference.
type ColorChoice string

const (
	ChoiceWhite  ColorChoice = "white"
	ChoiceBlack  ColorChoice = "black"
	ChoiceRandom ColorChoice = "random"
)

// ParseColorChoice accepts white/black/random and their one-letter forms. Empty input yields white.
func ParseColorChoice(s string) (ColorChoice, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "white", "w":
		return ChoiceWhite, true
	case "black", "b":
		return ChoiceBlack, true
	case "random", "r":
		return ChoiceRandom, true
	default:
		return "", false
	}
}

// Seat is one player slot in a room. Conns holds the ids of the connections the player
// attached through create or join; the seat stays connected while any of them is open.
type Seat struct {
	Player    string   `json:"player,omitempty"`
	Color     Color    `json:"color"`
	Connected bool     `json:"connected"`
	Conns     []string `json:"conns,omitempty"`
}

func (s Seat) Occupied() bool { return s.Player != "" }

// attach marks the seat connected and records conn.
func (s *Seat) attach(conn string) {
	s.Connected = true
	if conn == "" || slices.Contains(s.Conns, conn) {
		return
	}
	s.Conns = append(s.Conns, conn)
}

// detach drops conn. removed reports whether the seat held conn, last whether the seat lost
// its final connection. An empty conn detaches every connection.
func (s *Seat) detach(conn string) (removed, last bool) {
	if conn == "" {
		s.Conns = nil
		s.Connected = false
		return true, true
	}
	i := slices.Index(s.Conns, conn)
	if i < 0 {
		return false, false
	}
	s.Conns = slices.Delete(s.Conns, i, i+1)
	if len(s.Conns) > 0 {
		return true, false
	}
	s.Conns = nil
	s.Connected = false
	return true, true
}

// Outcome is set once a room has ended. Winner is empty for a draw.
type Outcome struct {
	Winner Slot   `json:"winner,omitempty"`
	Reason Reason `json:"reason"`
}

// ClockConfig is fixed at creation.
type ClockConfig struct {
	TotalTime time.Duration `json:"total_time"`
	Increment time.Duration `json:"increment"`
}

// ClockState is owned by the clock collaborator; the coordinator only carries it.
type ClockState struct {
	Remaining1 time.Duration `json:"remaining1"`
	Remaining2 time.Duration `json:"remaining2"`
}

// Room is the persisted state of one game session.
type Room struct {
	ID         string      `json:"id"`
	Player1    Seat        `json:"player1"`
	Player2    Seat        `json:"player2"`
	Turn       Slot        `json:"turn"`
	Position   string      `json:"position"`
	Phase      Phase       `json:"phase"`
	Outcome    *Outcome    `json:"outcome,omitempty"`
	Format     Format      `json:"format"`
	Clock      ClockConfig `json:"clock"`
	ClockState ClockState  `json:"clock_state"`
	Version    int64       `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Seat returns a pointer to the seat for slot s.
func (r *Room) Seat(s Slot) *Seat {
	if s == Player2 {
		return &r.Player2
	}
	return &r.Player1
}

// SlotOf reports which seat player occupies.
func (r *Room) SlotOf(player string) (Slot, bool) {
	if player == "" {
		return "", false
	}
	switch player {
	case r.Player1.Player:
		return Player1, true
	case r.Player2.Player:
		return Player2, true
	}
	return "", false
}

// SlotWithColor returns the seat assigned color c.
func (r *Room) SlotWithColor(c Color) Slot {
	if r.Player2.Color == c {
		return Player2
	}
	return Player1
}

// Joinable reports whether the room is waiting for a second player.
func (r *Room) Joinable() bool {
	return r.Phase == PhaseWaiting && !r.Player2.Occupied()
}

// bothConnected is the activation condition.
func (r *Room) bothConnected() bool {
	return r.Player1.Occupied() && r.Player2.Occupied() && r.Player1.Connected && r.Player2.Connected
}

// Clone returns a deep copy.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Player1.Conns = slices.Clone(r.Player1.Conns)
	cp.Player2.Conns = slices.Clone(r.Player2.Conns)
	if r.Outcome != nil {
		o := *r.Outcome
		cp.Outcome = &o
	}
	return &cp
}

// MoveRecord is one accepted move, append-only.
type MoveRecord struct {
	RoomID   string    `json:"room_id"`
	Notation string    `json:"notation"`
	SAN      string    `json:"san,omitempty"`
	Ply      int       `json:"ply"`
	PlayedAt time.Time `json:"played_at"`
}
