// Package rules answers legality and outcome queries with github.com/corentings/chess.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-arena/internal/game"
)

// Oracle is stateless; positions are FEN strings, moves are UCI with SAN accepted as fallback.
type Oracle struct{}

func New() Oracle { return Oracle{} }

var _ game.Oracle = Oracle{}

func (Oracle) IsLegal(position, move string) (bool, error) {
	g, err := load(position)
	if err != nil {
		return false, err
	}
	if _, err := push(g, move); err != nil {
		return false, nil
	}
	return true, nil
}

// Apply plays move on position. Rejected moves wrap game.ErrIllegal.
func (Oracle) Apply(position, move string) (game.Applied, error) {
	g, err := load(position)
	if err != nil {
		return game.Applied{}, err
	}
	mv, err := push(g, move)
	if err != nil {
		return game.Applied{}, err
	}
	return game.Applied{Position: g.FEN(), UCI: mv.uci, SAN: mv.san}, nil
}

func (Oracle) Outcome(position string) (game.Verdict, error) {
	g, err := load(position)
	if err != nil {
		return game.Verdict{}, err
	}
	switch g.Outcome() {
	case nchess.WhiteWon:
		return game.Verdict{Kind: game.VerdictWin, Winner: game.White}, nil
	case nchess.BlackWon:
		return game.Verdict{Kind: game.VerdictWin, Winner: game.Black}, nil
	case nchess.Draw:
		return game.Verdict{Kind: game.VerdictDraw}, nil
	}
	// a game loaded from FEN may not have evaluated the position yet
	pos := g.Position()
	switch pos.Status() {
	case nchess.Checkmate:
		if pos.Turn() == nchess.White {
			return game.Verdict{Kind: game.VerdictWin, Winner: game.Black}, nil
		}
		return game.Verdict{Kind: game.VerdictWin, Winner: game.White}, nil
	case nchess.Stalemate:
		return game.Verdict{Kind: game.VerdictDraw}, nil
	}
	return game.Verdict{Kind: game.VerdictNone}, nil
}

type played struct {
	uci string
	san string
}

func load(position string) (*nchess.Game, error) {
	position = strings.TrimSpace(position)
	if position == "" || position == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("decode fen %q: %w", position, err)
	}
	return nchess.NewGame(opt), nil
}

// push tries UCI first, then SAN, the way players type moves.
func push(g *nchess.Game, raw string) (played, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return played{}, fmt.Errorf("%w: empty move", game.ErrIllegal)
	}
	pos := g.Position()
	if err := g.PushNotationMove(strings.ToLower(raw), nchess.UCINotation{}, nil); err != nil {
		if err := g.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return played{}, fmt.Errorf("%w: %s", game.ErrIllegal, raw)
		}
	}
	moves := g.Moves()
	if len(moves) == 0 {
		return played{}, fmt.Errorf("%w: %s", game.ErrIllegal, raw)
	}
	last := moves[len(moves)-1]
	return played{uci: last.String(), san: nchess.AlgebraicNotation{}.Encode(pos, last)}, nil
}
