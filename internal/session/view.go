package session

import (
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

func roomView(r *game.Room) *arenadto.RoomView {
	if r == nil {
		return nil
	}
	v := &arenadto.RoomView{
		ID:      r.ID,
		Player1: playerView(r, game.Player1),
		Player2: playerView(r, game.Player2),
		Turn:    string(r.Turn),
		FEN:     r.Position,
		Phase:   string(r.Phase),
		Format:  string(r.Format),
		Clock: arenadto.ClockView{
			TotalTime:  r.Clock.TotalTime.Milliseconds(),
			Increment:  r.Clock.Increment.Milliseconds(),
			Remaining1: r.ClockState.Remaining1.Milliseconds(),
			Remaining2: r.ClockState.Remaining2.Milliseconds(),
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Outcome != nil {
		v.Winner = string(r.Outcome.Winner)
		v.Reason = string(r.Outcome.Reason)
	}
	return v
}

func playerView(r *game.Room, s game.Slot) arenadto.PlayerView {
	seat := r.Seat(s)
	return arenadto.PlayerView{Slot: string(s), ID: seat.Player, Color: string(seat.Color), Connected: seat.Connected}
}

func moveView(m game.MoveRecord) arenadto.MoveView {
	return arenadto.MoveView{Ply: m.Ply, UCI: m.Notation, SAN: m.SAN, PlayedAt: m.PlayedAt}
}

func moveViews(ms []game.MoveRecord) []arenadto.MoveView {
	out := make([]arenadto.MoveView, 0, len(ms))
	for _, m := range ms {
		out = append(out, moveView(m))
	}
	return out
}

// transitionEvent renders a committed transition for the room group.
func transitionEvent(t *game.Transition) arenadto.Event {
	player := playerView(t.Room, t.Slot)
	ev := arenadto.Event{
		Game:    roomView(t.Room),
		Message: arenadto.Message{Type: arenadto.Both, Player: &player},
	}
	switch t.Kind {
	case game.TransitionCreated:
		ev.Message.Info = arenadto.InfoCreated
	case game.TransitionJoined:
		ev.Message.Info = arenadto.InfoJoined
	case game.TransitionReconnected:
		ev.Message.Info = arenadto.InfoReconnected
		ev.Moves = moveViews(t.History)
	case game.TransitionMoved:
		ev.Message.Info = arenadto.InfoMoved
		if t.Room.Phase == game.PhaseEnded {
			ev.Message.Info = arenadto.InfoEnded
		}
		if t.Move != nil {
			mv := moveView(*t.Move)
			ev.Move = &mv
		}
	case game.TransitionResigned:
		ev.Message.Info = arenadto.InfoResigned
	case game.TransitionDisconnected:
		ev.Message.Info = arenadto.InfoDisconnected
	}
	return ev
}
