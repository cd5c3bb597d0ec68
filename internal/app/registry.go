package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/core"
	"github.com/scrumdeck/scrumdeck/internal/domain"
)

type connEntry struct {
	Conn   core.SignalConnection
	Room   domain.RoomCode
	Player domain.PlayerID
	Cancel context.CancelFunc
}

// Registry tracks, per live connection, at most one (room, player)
// binding. Actions from an unbound connection never reach a session.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnID]*connEntry)}
}

// BindConn registers a freshly upgraded connection, not yet in a room.
func (r *Registry) BindConn(cid core.ConnID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &connEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("connection bound")
}

// SetRoom records the room/identity pair after a successful create or
// join, replacing any previous binding for the connection.
func (r *Registry) SetRoom(cid core.ConnID, room domain.RoomCode, player domain.PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return false
	}
	e.Room = room
	e.Player = player
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).
		Str("room", string(room)).Str("player", string(player)).Msg("room binding set")
	return true
}

func (r *Registry) ClearRoom(cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		e.Room = ""
		e.Player = ""
	}
}

// RoomOf resolves the binding for an inbound action.
func (r *Registry) RoomOf(cid core.ConnID) (domain.RoomCode, domain.PlayerID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.Room == "" {
		return "", "", false
	}
	return e.Room, e.Player, true
}

func (r *Registry) Unbind(cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, cid)
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("connection unbound")
}

// Cancel tears down the connection's pumps via its context.
func (r *Registry) Cancel(cid core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}

func (r *Registry) Conn(cid core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}
