package signal

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/core"
	"github.com/scrumdeck/scrumdeck/internal/domain"
	"github.com/scrumdeck/scrumdeck/internal/protocol"
)

func (ctl *Controller) handleSetIssue(cid core.ConnID, conn *WsConn, data []byte) {
	svc, pid, err := ctl.Orch.Resolve(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	var p protocol.SetIssue
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad issue payload")
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}
	if p.Issue.ID == "" {
		p.Issue.ID = uuid.NewString()
	}

	updates, err := svc.SetIssue(pid, p.Issue)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.broadcastUpdates(svc, updates)
}

func (ctl *Controller) handleStartVoting(cid core.ConnID, conn *WsConn, data []byte) {
	svc, pid, err := ctl.Orch.Resolve(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	var p protocol.StartVoting
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad start payload")
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}
	if p.Issue != nil && p.Issue.ID == "" {
		p.Issue.ID = uuid.NewString()
	}

	res, err := svc.StartVoting(pid, p.Issue, domain.VotingSystem(p.VotingSystem))
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.broadcastUpdates(svc, res.Updates)
	ctl.broadcastAll(svc, protocol.VotingStarted{
		Type:         protocol.KindVotingStarted,
		Issue:        res.Issue,
		VotingSystem: res.System,
		Deck:         res.Deck,
	})
}

func (ctl *Controller) handleSubmitVote(cid core.ConnID, conn *WsConn, data []byte) {
	svc, pid, err := ctl.Orch.Resolve(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	var p protocol.SubmitVote
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}

	// The identity comes from the connection binding, never from the
	// payload: votes are self-service only.
	res, err := svc.SubmitVote(pid, p.Vote)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.broadcastUpdates(svc, res.Updates)
	ctl.broadcastAll(svc, protocol.VoteSubmitted{
		Type:     protocol.KindVoteSubmitted,
		PlayerID: res.PlayerID,
		HasVoted: true,
	})
	if res.AllVoted {
		ctl.broadcastAll(svc, protocol.AllPlayersVoted{Type: protocol.KindAllPlayersVoted})
	}
}

func (ctl *Controller) handleRevealVotes(cid core.ConnID, conn *WsConn) {
	svc, pid, err := ctl.Orch.Resolve(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	res, err := svc.RevealVotes(pid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.broadcastUpdates(svc, res.Updates)
	ctl.broadcastAll(svc, protocol.VotesRevealed{
		Type:  protocol.KindVotesRevealed,
		Votes: res.Votes,
	})
}

func (ctl *Controller) handleSetFinalEstimate(cid core.ConnID, conn *WsConn, data []byte) {
	svc, pid, err := ctl.Orch.Resolve(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	var p protocol.SetFinalEstimate
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}

	res, err := svc.SetFinalEstimate(pid, p.Estimate)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.broadcastUpdates(svc, res.Updates)
	ctl.broadcastAll(svc, protocol.EstimateFinalized{
		Type:     protocol.KindEstimateFinalized,
		Issue:    res.Issue,
		Estimate: res.Estimate,
	})
}

func (ctl *Controller) handleResetVotes(cid core.ConnID, conn *WsConn) {
	svc, pid, err := ctl.Orch.Resolve(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	updates, err := svc.ResetVotes(pid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.broadcastUpdates(svc, updates)
}

func (ctl *Controller) handleUpdateVotingSystem(cid core.ConnID, conn *WsConn, data []byte) {
	svc, pid, err := ctl.Orch.Resolve(cid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	var p protocol.UpdateVotingSystem
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(conn, protocol.Error{Type: protocol.KindError, Error: "bad_payload"})
		return
	}

	res, err := svc.ChangeVotingSystem(pid, domain.VotingSystem(p.VotingSystem))
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.broadcastUpdates(svc, res.Updates)
	ctl.broadcastAll(svc, protocol.VotingSystemUpdated{
		Type:         protocol.KindVotingSystemUpdated,
		VotingSystem: res.System,
		Deck:         res.Deck,
	})
}
