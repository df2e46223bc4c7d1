package arenadto

import "time"

// MessageType tells the client who else received the event.
type MessageType string

const (
	OnlyMe MessageType = "only_me"
	Both   MessageType = "both"
	All    MessageType = "all"
)

// Event is every outbound frame.
type Event struct {
	Game    *RoomView    `json:"game,omitempty"`
	Moves   []MoveView   `json:"moves,omitempty"`
	Move    *MoveView    `json:"move,omitempty"`
	Lobby   *LobbyDelta  `json:"lobby,omitempty"`
	Games   []LobbyEntry `json:"games"`
	Message Message      `json:"message"`
}

type Message struct {
	Type   MessageType `json:"type"`
	Info   string      `json:"info"`
	Player *PlayerView `json:"player,omitempty"`
	// Error is the rendered user-facing text, Code the taxonomy kind.
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Action string `json:"action,omitempty"`
}

// Info tags.
const (
	InfoConnected     = "connected"
	InfoCreated       = "created"
	InfoJoined        = "joined"
	InfoReconnected   = "reconnected"
	InfoMoved         = "moved"
	InfoEnded         = "ended"
	InfoResigned      = "resigned"
	InfoDisconnected  = "disconnected"
	InfoLobby         = "lobby"
	InfoAvailable     = "available"
	InfoUnavailable   = "unavailable"
	InfoPong          = "pong"
	InfoInvalid       = "invalid"
	InfoUnknownAction = "unknown_action"
	InfoError         = "error"
)

type PlayerView struct {
	Slot      string `json:"slot"`
	ID        string `json:"id,omitempty"`
	Color     string `json:"color"`
	Connected bool   `json:"connected"`
}

// ClockView carries durations in milliseconds.
type ClockView struct {
	TotalTime  int64 `json:"total_time"`
	Increment  int64 `json:"increment"`
	Remaining1 int64 `json:"remaining1"`
	Remaining2 int64 `json:"remaining2"`
}

type RoomView struct {
	ID        string     `json:"id"`
	Player1   PlayerView `json:"player1"`
	Player2   PlayerView `json:"player2"`
	Turn      string     `json:"turn"`
	FEN       string     `json:"fen"`
	Phase     string     `json:"phase"`
	Winner    string     `json:"winner,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Format    string     `json:"format"`
	Clock     ClockView  `json:"clock"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type MoveView struct {
	Ply      int       `json:"ply"`
	UCI      string    `json:"uci"`
	SAN      string    `json:"san,omitempty"`
	PlayedAt time.Time `json:"played_at"`
}

// LobbyEntry summarises a joinable room.
type LobbyEntry struct {
	GameID       string    `json:"game_id"`
	Format       string    `json:"format"`
	Creator      string    `json:"creator"`
	CreatorColor string    `json:"creator_color"`
	Base         int64     `json:"base"`
	Increment    int64     `json:"increment"`
	CreatedAt    time.Time `json:"created_at"`
}

type LobbyDelta struct {
	GameID    string      `json:"game_id"`
	Available bool        `json:"available"`
	Summary   *LobbyEntry `json:"summary,omitempty"`
}
