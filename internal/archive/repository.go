// Package archive records finished games, with PGN, in Postgres.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-arena/internal/game"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repository writes to arena_games. The table is provisioned by the operator.
type Repository struct {
	db    execer
	close func() error
}

// Open connects to databaseURL with the postgres driver and pings it.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repository{db: db, close: db.Close}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close()
}

var _ game.Archiver = (*Repository)(nil)

const upsertGame = `INSERT INTO arena_games (
    game_id, player1_id, player1_color, player2_id, player2_color,
    format, base_ms, increment_ms,
    result, result_method, winner_slot, moves_uci, moves_san, pgn,
    started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
  ) ON CONFLICT (game_id) DO UPDATE SET
    player1_id=EXCLUDED.player1_id,
    player1_color=EXCLUDED.player1_color,
    player2_id=EXCLUDED.player2_id,
    player2_color=EXCLUDED.player2_color,
    format=EXCLUDED.format,
    base_ms=EXCLUDED.base_ms,
    increment_ms=EXCLUDED.increment_ms,
    result=EXCLUDED.result,
    result_method=EXCLUDED.result_method,
    winner_slot=EXCLUDED.winner_slot,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    pgn=EXCLUDED.pgn,
    started_at=EXCLUDED.started_at,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

// SaveResult upserts a finished room. Rooms that have not ended are ignored, as are rooms
// resigned before an opponent took the second seat: no game was played.
func (r *Repository) SaveResult(ctx context.Context, room *game.Room, moves []game.MoveRecord) error {
	if r == nil || r.db == nil || room == nil || room.Outcome == nil {
		return nil
	}
	if !room.Player2.Occupied() {
		return nil
	}
	result := resultOf(room)
	pgnResult := mapResultToPGN(result)
	uci := make([]string, 0, len(moves))
	san := make([]string, 0, len(moves))
	for _, m := range moves {
		uci = append(uci, m.Notation)
		san = append(san, m.SAN)
	}
	uciRaw, _ := json.Marshal(uci)
	sanRaw, _ := json.Marshal(san)
	duration := room.UpdatedAt.Sub(room.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	_, err := r.db.ExecContext(ctx, upsertGame,
		room.ID,
		room.Player1.Player, string(room.Player1.Color),
		room.Player2.Player, string(room.Player2.Color),
		string(room.Format), room.Clock.TotalTime.Milliseconds(), room.Clock.Increment.Milliseconds(),
		result, string(room.Outcome.Reason), string(room.Outcome.Winner),
		string(uciRaw), string(sanRaw), buildPGN(room, san, pgnResult),
		room.CreatedAt, room.UpdatedAt, duration,
	)
	if err != nil {
		return fmt.Errorf("archive %s: %w", room.ID, err)
	}
	return nil
}

// resultOf is white, black or draw.
func resultOf(room *game.Room) string {
	if room.Outcome == nil {
		return ""
	}
	if room.Outcome.Winner == "" {
		return "draw"
	}
	return string(room.Seat(room.Outcome.Winner).Color)
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(room *game.Room, san []string, pgnResult string) string {
	white, black := room.Player1.Player, room.Player2.Player
	if room.Player1.Color == game.Black {
		white, black = black, white
	}
	date := room.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Arena\"]\n")
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePGN(room.ID))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(white))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(black))
	// PGN TimeControl is seconds+increment
	fmt.Fprintf(&b, "[TimeControl \"%d+%d\"]\n", int64(room.Clock.TotalTime.Seconds()), int64(room.Clock.Increment.Seconds()))
	if room.Outcome != nil {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(string(room.Outcome.Reason)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)

	for i := 0; i < len(san); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(san[i]))
		if i+1 < len(san) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(san[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
