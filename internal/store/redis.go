package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/game"
	"github.com/redis/go-redis/v9"
)

const defaultRoomTTL = 24 * time.Hour

// Redis stores rooms as JSON documents, moves as a list per room and joinable rooms in a lobby set.
// Writes to a room run under WATCH so concurrent processes cannot interleave a read-modify-write.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*Redis)

// WithPrefix sets the key namespace (default "arena").
func WithPrefix(p string) RedisOption {
	return func(r *Redis) {
		if p = strings.TrimSpace(p); p != "" {
			r.prefix = p
		}
	}
}

// WithTTL sets the expiry refreshed on every write.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func NewRedis(rdb *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{rdb: rdb, prefix: "arena", ttl: defaultRoomTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ game.Store = (*Redis)(nil)

// Dial connects to redisURL and verifies the server with PING.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = tlsConfig(u.Hostname())
	}
	return opts, nil
}

func (r *Redis) keyRoom(id string) string  { return r.prefix + ":room:" + strings.TrimSpace(id) }
func (r *Redis) keyMoves(id string) string { return r.keyRoom(id) + ":moves" }
func (r *Redis) keyLobby() string          { return r.prefix + ":lobby" }

func (r *Redis) CreateRoom(ctx context.Context, room *game.Room) error {
	room.Version = 1
	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, r.keyRoom(room.ID), raw, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		room.Version = 0
		return game.ErrExists
	}
	if room.Joinable() {
		if err := r.rdb.SAdd(ctx, r.keyLobby(), room.ID).Err(); err != nil {
			return err
		}
		_ = r.rdb.Expire(ctx, r.keyLobby(), r.ttl).Err()
	}
	return nil
}

func (r *Redis) GetRoom(ctx context.Context, id string) (*game.Room, error) {
	raw, err := r.rdb.Get(ctx, r.keyRoom(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var room game.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &room, nil
}

func (r *Redis) SaveRoom(ctx context.Context, room *game.Room) error {
	return r.commit(ctx, room, nil)
}

func (r *Redis) CommitMove(ctx context.Context, room *game.Room, move game.MoveRecord) error {
	return r.commit(ctx, room, &move)
}

// commit writes room (and move, if any) only if the stored version still equals room.Version.
func (r *Redis) commit(ctx context.Context, room *game.Room, move *game.MoveRecord) error {
	roomK := r.keyRoom(room.ID)
	next := room.Clone()
	next.Version = room.Version + 1
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	var moveRaw []byte
	if move != nil {
		if moveRaw, err = json.Marshal(move); err != nil {
			return err
		}
	}

	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, roomK).Bytes()
		if errors.Is(err, redis.Nil) {
			return game.ErrNotFound
		}
		if err != nil {
			return err
		}
		var stored struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(cur, &stored); err != nil {
			return fmt.Errorf("decode room %s: %w", room.ID, err)
		}
		if stored.Version != room.Version {
			return game.ErrConflict
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, roomK, raw, r.ttl)
		if moveRaw != nil {
			pipe.RPush(ctx, r.keyMoves(room.ID), moveRaw)
		}
		pipe.Expire(ctx, r.keyMoves(room.ID), r.ttl)
		if next.Joinable() {
			pipe.SAdd(ctx, r.keyLobby(), room.ID)
		} else {
			pipe.SRem(ctx, r.keyLobby(), room.ID)
		}
		_, err = pipe.Exec(ctx)
		return err
	}, roomK)
	if errors.Is(err, redis.TxFailedErr) {
		return game.ErrConflict
	}
	if err != nil {
		return err
	}
	room.Version = next.Version
	return nil
}

func (r *Redis) AppendMove(ctx context.Context, roomID string, move game.MoveRecord) error {
	n, err := r.rdb.Exists(ctx, r.keyRoom(roomID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return game.ErrNotFound
	}
	raw, err := json.Marshal(move)
	if err != nil {
		return err
	}
	if err := r.rdb.RPush(ctx, r.keyMoves(roomID), raw).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, r.keyMoves(roomID), r.ttl).Err()
}

func (r *Redis) ListMoves(ctx context.Context, roomID string) ([]game.MoveRecord, error) {
	items, err := r.rdb.LRange(ctx, r.keyMoves(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]game.MoveRecord, 0, len(items))
	for _, it := range items {
		var mv game.MoveRecord
		if err := json.Unmarshal([]byte(it), &mv); err != nil {
			return nil, fmt.Errorf("decode move of %s: %w", roomID, err)
		}
		out = append(out, mv)
	}
	return out, nil
}

// ListWaitingRooms reads the lobby index and prunes entries whose room expired or filled.
func (r *Redis) ListWaitingRooms(ctx context.Context) ([]*game.Room, error) {
	ids, err := r.rdb.SMembers(ctx, r.keyLobby()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*game.Room, 0, len(ids))
	for _, id := range ids {
		room, err := r.GetRoom(ctx, id)
		if errors.Is(err, game.ErrNotFound) {
			_ = r.rdb.SRem(ctx, r.keyLobby(), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		if !room.Joinable() {
			_ = r.rdb.SRem(ctx, r.keyLobby(), id).Err()
			continue
		}
		out = append(out, room)
	}
	sortRooms(out)
	return out, nil
}

func tlsConfig(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
