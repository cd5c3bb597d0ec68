package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/app/orch"
	"github.com/scrumdeck/scrumdeck/internal/core"
	"github.com/scrumdeck/scrumdeck/internal/domain"
	"github.com/scrumdeck/scrumdeck/internal/protocol"
)

func (ctl *Controller) handleCreateSession(cid core.ConnID, conn *WsConn, data []byte) {
	if !ctl.Limiter.Allow(cid) {
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "too many attempts"})
		return
	}
	var p protocol.CreateSession
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create payload")
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}
	if p.RoomCode == "" {
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "empty room code"})
		return
	}

	svc, modID, prev, err := ctl.Orch.CreateSession(cid, conn, domain.RoomCode(p.RoomCode), p.ModeratorName, domain.VotingSystem(p.VotingSystem))
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.sendJSON(conn, protocol.SessionCreated{
		Type:     protocol.KindSessionCreated,
		Session:  svc.Snapshot(modID),
		PlayerID: modID,
	})
	ctl.broadcastSwitch(prev)
}

func (ctl *Controller) handleJoinRoom(cid core.ConnID, conn *WsConn, data []byte) {
	if !ctl.Limiter.Allow(cid) {
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "too many attempts"})
		return
	}
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}

	svc, res, prev, err := ctl.Orch.Join(cid, conn, domain.RoomCode(p.RoomCode), domain.PlayerID(p.Player.ID), p.Player.Name, p.Player.IsSpectator)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}

	ctl.sendJSON(conn, protocol.JoinSuccess{
		Type:     protocol.KindJoinSuccess,
		Session:  res.Snapshot,
		PlayerID: res.PlayerID,
	})
	ctl.broadcastUpdates(svc, res.Updates)
	ctl.broadcastAll(svc, protocol.PlayersUpdated{
		Type:    protocol.KindPlayersUpdated,
		Players: res.Roster,
	})
	ctl.broadcastSwitch(prev)
}

// broadcastSwitch tells the room a connection just moved out of about
// the departure, including a moderator handover if one happened.
func (ctl *Controller) broadcastSwitch(prev *orch.RoomSwitch) {
	if prev == nil {
		return
	}
	ctl.broadcastUpdates(prev.Service, prev.Leave.Updates)
	ctl.broadcastAll(prev.Service, protocol.PlayersUpdated{
		Type:    protocol.KindPlayersUpdated,
		Players: prev.Leave.Roster,
	})
}

// handleLeave is the explicit exit: the seat is removed, unlike a
// transport drop which only marks the participant offline.
func (ctl *Controller) handleLeave(cid core.ConnID, conn *WsConn) {
	res, svc, err := ctl.Orch.Leave(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.sendJSON(conn, protocol.Left{Type: protocol.KindLeft})
	ctl.broadcastUpdates(svc, res.Updates)
	ctl.broadcastAll(svc, protocol.PlayersUpdated{
		Type:    protocol.KindPlayersUpdated,
		Players: res.Roster,
	})
}

func (ctl *Controller) handleGetSessionData(cid core.ConnID, conn *WsConn, data []byte) {
	var p protocol.GetSessionData
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}
	svc, ok := ctl.Orch.Sessions.Get(domain.RoomCode(p.RoomCode))
	if !ok {
		ctl.sendJSON(conn, protocol.SessionNotFound{Type: protocol.KindSessionNotFound})
		return
	}

	// Hidden votes stay hidden unless the asker is bound to this room.
	var viewer domain.PlayerID
	if room, pid, ok := ctl.Orch.Registry.RoomOf(cid); ok && room == svc.Code() {
		viewer = pid
	}
	ctl.sendJSON(conn, protocol.SessionData{
		Type:    protocol.KindSessionData,
		Session: svc.Snapshot(viewer),
	})
}
