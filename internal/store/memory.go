package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-arena/internal/game"
)

// Memory is an in-process game.Store for development and tests. Nothing survives a restart.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room
	moves map[string][]game.MoveRecord
}

func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]*game.Room),
		moves: make(map[string][]game.MoveRecord),
	}
}

var _ game.Store = (*Memory)(nil)

func (m *Memory) CreateRoom(ctx context.Context, room *game.Room) error {
	key := strings.TrimSpace(room.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[key]; exists {
		return game.ErrExists
	}
	room.Version = 1
	m.rooms[key] = room.Clone()
	return nil
}

func (m *Memory) GetRoom(ctx context.Context, id string) (*game.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[strings.TrimSpace(id)]
	if !ok {
		return nil, game.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) SaveRoom(ctx context.Context, room *game.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(room)
}

func (m *Memory) saveLocked(room *game.Room) error {
	cur, ok := m.rooms[room.ID]
	if !ok {
		return game.ErrNotFound
	}
	if cur.Version != room.Version {
		return game.ErrConflict
	}
	room.Version++
	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *Memory) AppendMove(ctx context.Context, roomID string, move game.MoveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return game.ErrNotFound
	}
	m.moves[roomID] = append(m.moves[roomID], move)
	return nil
}

func (m *Memory) CommitMove(ctx context.Context, room *game.Room, move game.MoveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(room); err != nil {
		return err
	}
	m.moves[room.ID] = append(m.moves[room.ID], move)
	return nil
}

func (m *Memory) ListMoves(ctx context.Context, roomID string) ([]game.MoveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]game.MoveRecord{}, m.moves[roomID]...), nil
}

// ListWaitingRooms returns joinable rooms, oldest first.
func (m *Memory) ListWaitingRooms(ctx context.Context) ([]*game.Room, error) {
	m.mu.RLock()
	out := make([]*game.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.Joinable() {
			out = append(out, r.Clone())
		}
	}
	m.mu.RUnlock()
	sortRooms(out)
	return out, nil
}

func sortRooms(rooms []*game.Room) {
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
}
