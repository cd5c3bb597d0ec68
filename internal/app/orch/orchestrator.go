package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/app"
	"github.com/scrumdeck/scrumdeck/internal/core"
	"github.com/scrumdeck/scrumdeck/internal/domain"
)

// Orchestrator coordinates the connection registry and the room
// registry. It owns the cross-map flows (create, join, leave,
// disconnect); everything inside a room stays in core.
type Orchestrator struct {
	Registry *app.Registry
	Sessions *app.SessionManager
	Policy   app.Policy
}

// Resolve maps a connection to its bound room service and identity.
func (o *Orchestrator) Resolve(cid core.ConnID) (*core.SessionService, domain.PlayerID, error) {
	code, pid, ok := o.Registry.RoomOf(cid)
	if !ok {
		return nil, "", domain.ErrNotInRoom
	}
	svc, ok := o.Sessions.Get(code)
	if !ok {
		return nil, "", domain.ErrRoomNotFound
	}
	return svc, pid, nil
}

// RoomSwitch carries the broadcasts still owed to the room a
// connection left on its way into another one. Nil when nothing was
// left behind.
type RoomSwitch struct {
	Service *core.SessionService
	Leave   *core.LeaveResult
}

// leavePrevious detaches the connection from its current room. The
// remaining members are owed the post-leave roster; an emptied room is
// reclaimed here and owes nobody anything.
func (o *Orchestrator) leavePrevious(cid core.ConnID) *RoomSwitch {
	res, svc, err := o.Leave(cid)
	if err != nil || res.Empty {
		return nil
	}
	return &RoomSwitch{Service: svc, Leave: res}
}

// CreateSession allocates the room, seats the moderator, and binds the
// creating connection to it. A connection already seated elsewhere
// leaves that room first; the returned RoomSwitch carries the old
// room's broadcasts.
func (o *Orchestrator) CreateSession(cid core.ConnID, conn core.SignalConnection, code domain.RoomCode, moderatorName string, system domain.VotingSystem) (*core.SessionService, domain.PlayerID, *RoomSwitch, error) {
	svc, modID, err := o.Sessions.Create(code, moderatorName, system)
	if err != nil {
		return nil, "", nil, err
	}
	var prev *RoomSwitch
	if _, _, ok := o.Registry.RoomOf(cid); ok {
		prev = o.leavePrevious(cid)
	}
	svc.Bind(cid, conn, modID)
	o.Registry.SetRoom(cid, code, modID)
	return svc, modID, prev, nil
}

// Join attaches the connection to an existing room, merging a rejoin
// by id or name. A connection already bound elsewhere leaves that room
// first; the returned RoomSwitch carries the old room's broadcasts. A
// failed join leaves the old binding untouched.
func (o *Orchestrator) Join(cid core.ConnID, conn core.SignalConnection, code domain.RoomCode, id domain.PlayerID, name string, spectator bool) (*core.SessionService, *core.JoinResult, *RoomSwitch, error) {
	svc, ok := o.Sessions.Get(code)
	if !ok {
		return nil, nil, nil, domain.ErrRoomNotFound
	}
	res, err := svc.Join(cid, conn, id, name, spectator)
	if err != nil {
		return nil, nil, nil, err
	}
	var prev *RoomSwitch
	if prevCode, _, ok := o.Registry.RoomOf(cid); ok && prevCode != code {
		prev = o.leavePrevious(cid)
	}
	o.Registry.SetRoom(cid, code, res.PlayerID)
	return svc, res, prev, nil
}

// Leave removes the participant behind cid from its room, hands the
// moderator role over if needed, and reclaims the room when it empties.
func (o *Orchestrator) Leave(cid core.ConnID) (*core.LeaveResult, *core.SessionService, error) {
	svc, pid, err := o.Resolve(cid)
	if err != nil {
		return nil, nil, err
	}
	res, err := svc.Leave(pid)
	if err != nil {
		return nil, nil, err
	}
	o.Registry.ClearRoom(cid)
	if res.Empty {
		o.Sessions.RemoveIfEmpty(svc.Code())
	}
	return res, svc, nil
}

// DisconnectResult carries the broadcasts owed to the room after a
// transport drop.
type DisconnectResult struct {
	Updates []core.PersonalUpdate
	Roster  []core.ParticipantView
	Service *core.SessionService
}

// OnDisconnect handles a transport drop without an explicit leave:
// the seat stays, marked offline, so the participant can reconnect.
func (o *Orchestrator) OnDisconnect(cid core.ConnID) (*DisconnectResult, bool) {
	svc, pid, err := o.Resolve(cid)
	if err != nil {
		o.Registry.Unbind(cid)
		return nil, false
	}
	updates, roster := svc.Disconnect(cid, pid)
	o.Registry.Unbind(cid)
	log.Info().Str("module", "app.orch").Str("cid", string(cid)).
		Str("room", string(svc.Code())).Str("player", string(pid)).Msg("participant disconnected")
	return &DisconnectResult{Updates: updates, Roster: roster, Service: svc}, true
}

// HandleDropped applies the backpressure policy to connections that
// could not take a broadcast frame.
func (o *Orchestrator) HandleDropped(svc *core.SessionService, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, cid := range res.Dropped {
		switch o.Policy.OnBackPressure(svc, cid) {
		case app.KickConnection:
			log.Warn().Str("module", "app.orch").Str("cid", string(cid)).Msg("kicking slow consumer")
			if conn, ok := o.Registry.Conn(cid); ok {
				conn.Close()
			}
			o.Registry.Cancel(cid)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
