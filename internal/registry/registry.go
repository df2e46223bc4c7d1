// Package registry keeps named groups of live connections and fans payloads out to them.
package registry

import (
	"strings"
	"sync"
)

// LobbyGroup is the group of connections watching the list of open rooms.
const LobbyGroup = "lobby"

const roomPrefix = "room:"

// RoomGroup names the group of connections attached to a room.
func RoomGroup(roomID string) string { return roomPrefix + strings.TrimSpace(roomID) }

func isRoomGroup(group string) bool { return strings.HasPrefix(group, roomPrefix) }

// Member is a connection that can receive payloads. Send must not block for long; the
// transport queues frames and drops them when full.
type Member interface {
	ID() string
	Send(payload []byte) error
}

// Registry maps groups to members. A member is in at most one room group plus the lobby.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]Member
	rooms  map[string]string // member id -> room group
}

func New() *Registry {
	return &Registry{
		groups: make(map[string]map[string]Member),
		rooms:  make(map[string]string),
	}
}

// Join adds m to group. Joining a room group leaves the member's previous room group.
func (r *Registry) Join(group string, m Member) {
	if m == nil || group == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if isRoomGroup(group) {
		if prev, ok := r.rooms[m.ID()]; ok && prev != group {
			r.removeLocked(prev, m.ID())
		}
		r.rooms[m.ID()] = group
	}
	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]Member)
		r.groups[group] = members
	}
	members[m.ID()] = m
}

func (r *Registry) Leave(group string, m Member) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(group, m.ID())
	if r.rooms[m.ID()] == group {
		delete(r.rooms, m.ID())
	}
}

// LeaveAll drops m from every group it belongs to.
func (r *Registry) LeaveAll(m Member) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for group := range r.groups {
		r.removeLocked(group, m.ID())
	}
	delete(r.rooms, m.ID())
}

func (r *Registry) removeLocked(group, id string) {
	members, ok := r.groups[group]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.groups, group)
	}
}

// Broadcast sends payload to every member of group and returns the number of successful
// sends. Members are snapshotted under the read lock and sent to outside it.
func (r *Registry) Broadcast(group string, payload []byte) int {
	r.mu.RLock()
	members := make([]Member, 0, len(r.groups[group]))
	for _, m := range r.groups[group] {
		members = append(members, m)
	}
	r.mu.RUnlock()

	sent := 0
	for _, m := range members {
		if err := m.Send(payload); err == nil {
			sent++
		}
	}
	return sent
}

func (r *Registry) Size(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// RoomOf reports the room group m currently belongs to.
func (r *Registry) RoomOf(m Member) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.rooms[m.ID()]
	return g, ok
}
