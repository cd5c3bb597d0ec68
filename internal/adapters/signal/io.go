package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/core"
	"github.com/scrumdeck/scrumdeck/internal/domain"
	"github.com/scrumdeck/scrumdeck/internal/protocol"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cid core.ConnID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump closing")
		if res, ok := ctl.Orch.OnDisconnect(cid); ok {
			ctl.broadcastUpdates(res.Service, res.Updates)
			ctl.broadcastAll(res.Service, protocol.PlayersUpdated{
				Type:    protocol.KindPlayersUpdated,
				Players: res.Roster,
			})
		}
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(cid, c, data)
		}
	}
}

func (ctl *Controller) dispatch(cid core.ConnID, c *WsConn, data []byte) {
	kind, err := protocol.Kind(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("kind", kind).Msg("rejected inbound message")
		ctl.sendErr(c, err)
		return
	}

	switch kind {
	case protocol.KindCreateSession:
		ctl.handleCreateSession(cid, c, data)
	case protocol.KindJoinRoom:
		ctl.handleJoinRoom(cid, c, data)
	case protocol.KindSetIssue:
		ctl.handleSetIssue(cid, c, data)
	case protocol.KindStartVoting:
		ctl.handleStartVoting(cid, c, data)
	case protocol.KindSubmitVote:
		ctl.handleSubmitVote(cid, c, data)
	case protocol.KindRevealVotes:
		ctl.handleRevealVotes(cid, c)
	case protocol.KindSetFinalEstimate:
		ctl.handleSetFinalEstimate(cid, c, data)
	case protocol.KindResetVotes:
		ctl.handleResetVotes(cid, c)
	case protocol.KindUpdateVotingSystem:
		ctl.handleUpdateVotingSystem(cid, c, data)
	case protocol.KindGetSessionData:
		ctl.handleGetSessionData(cid, c, data)
	case protocol.KindLeave:
		ctl.handleLeave(cid, c)
	case protocol.KindPing:
		ctl.handlePing(c)
	}
}

func (ctl *Controller) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendErr reports a failed action to the initiating connection only;
// the rest of the room never sees it.
func (ctl *Controller) sendErr(c core.SignalConnection, err error) {
	if errors.Is(err, domain.ErrRoomNotFound) {
		ctl.sendJSON(c, protocol.SessionNotFound{Type: protocol.KindSessionNotFound})
		return
	}
	ctl.sendJSON(c, protocol.Error{Type: protocol.KindError, Error: err.Error()})
}

// broadcastUpdates delivers the per-recipient session snapshots
// computed inside the transition that produced them.
func (ctl *Controller) broadcastUpdates(svc *core.SessionService, updates []core.PersonalUpdate) {
	var res core.PublishResult
	for _, u := range updates {
		b, err := json.Marshal(protocol.SessionUpdated{Type: protocol.KindSessionUpdated, Session: u.Snapshot})
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("snapshot marshal")
			continue
		}
		if err := u.Conn.TrySend(b); err != nil {
			res.Dropped = append(res.Dropped, u.ConnID)
			continue
		}
		res.SentTo++
	}
	ctl.Orch.HandleDropped(svc, res)
}

// broadcastAll fans one uniform event to every connection in the room.
func (ctl *Controller) broadcastAll(svc *core.SessionService, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	res := svc.Broadcast(b)
	ctl.Orch.HandleDropped(svc, res)
}
