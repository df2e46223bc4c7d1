package arenadto

// Action is an inbound client message. Only Action is required; the remaining fields
// depend on the action.
type Action struct {
	Action    string `json:"action"`
	Base      *int64 `json:"base,omitempty"`      // milliseconds
	Increment *int64 `json:"increment,omitempty"` // milliseconds
	Color     string `json:"color,omitempty"`
	Format    string `json:"format,omitempty"`
	Move      string `json:"move,omitempty"`
}

// Recognised action names, including legacy aliases.
const (
	ActionCreate     = "create"
	ActionCreateGame = "create_game"
	ActionJoin       = "join"
	ActionJoinGame   = "join_game"
	ActionMove       = "make_move"
	ActionResign     = "resign"
	ActionResignGame = "resign_game"
	ActionList       = "list"
	ActionPing       = "ping"
)
