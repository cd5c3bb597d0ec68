// Package protocol defines the wire messages as a closed set of typed
// payloads behind a "type" envelope. Unknown or malformed messages are
// rejected at decode time, never silently mishandled.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scrumdeck/scrumdeck/internal/core"
	"github.com/scrumdeck/scrumdeck/internal/domain"
)

// Inbound message kinds.
const (
	KindCreateSession      = "create-session"
	KindJoinRoom           = "join-room"
	KindSetIssue           = "set-issue"
	KindStartVoting        = "start-voting"
	KindSubmitVote         = "submit-vote"
	KindRevealVotes        = "reveal-votes"
	KindSetFinalEstimate   = "set-final-estimate"
	KindResetVotes         = "reset-votes"
	KindUpdateVotingSystem = "update-voting-system"
	KindGetSessionData     = "get-session-data"
	KindLeave              = "leave"
	KindPing               = "ping"
)

// Outbound message kinds.
const (
	KindSessionCreated      = "session-created"
	KindJoinSuccess         = "join-success"
	KindSessionUpdated      = "session-updated"
	KindPlayersUpdated      = "players-updated"
	KindVotingStarted       = "voting-started"
	KindVoteSubmitted       = "vote-submitted"
	KindAllPlayersVoted     = "all-players-voted"
	KindVotesRevealed       = "votes-revealed"
	KindEstimateFinalized   = "estimate-finalized"
	KindVotingSystemUpdated = "voting-system-updated"
	KindSessionData         = "session-data"
	KindSessionNotFound     = "session-not-found"
	KindLeft                = "left"
	KindPong                = "pong"
	KindError               = "error"
)

var ErrUnknownKind = errors.New("unknown message kind")

var inboundKinds = map[string]struct{}{
	KindCreateSession:      {},
	KindJoinRoom:           {},
	KindSetIssue:           {},
	KindStartVoting:        {},
	KindSubmitVote:         {},
	KindRevealVotes:        {},
	KindSetFinalEstimate:   {},
	KindResetVotes:         {},
	KindUpdateVotingSystem: {},
	KindGetSessionData:     {},
	KindLeave:              {},
	KindPing:               {},
}

// Kind extracts and validates the envelope type of an inbound message.
func Kind(data []byte) (string, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("bad envelope: %w", err)
	}
	if _, ok := inboundKinds[env.Type]; !ok {
		return env.Type, ErrUnknownKind
	}
	return env.Type, nil
}

// Inbound payloads. Each carries the envelope Type field so a single
// unmarshal of the raw frame fills it.

type CreateSession struct {
	Type          string `json:"type"`
	RoomCode      string `json:"roomCode"`
	ModeratorName string `json:"moderatorName"`
	VotingSystem  string `json:"votingSystem"`
}

type PlayerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsSpectator bool   `json:"isSpectator"`
}

type JoinRoom struct {
	Type     string     `json:"type"`
	RoomCode string     `json:"roomCode"`
	Player   PlayerInfo `json:"player"`
}

type SetIssue struct {
	Type  string       `json:"type"`
	Issue domain.Issue `json:"issue"`
}

type StartVoting struct {
	Type         string        `json:"type"`
	Issue        *domain.Issue `json:"issue,omitempty"`
	VotingSystem string        `json:"votingSystem,omitempty"`
}

type SubmitVote struct {
	Type string `json:"type"`
	Vote string `json:"vote"`
}

type SetFinalEstimate struct {
	Type     string `json:"type"`
	Estimate string `json:"estimate"`
}

type UpdateVotingSystem struct {
	Type         string `json:"type"`
	VotingSystem string `json:"votingSystem"`
}

type GetSessionData struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
}

// Outbound payloads.

type SessionCreated struct {
	Type     string           `json:"type"`
	Session  core.SessionView `json:"session"`
	PlayerID domain.PlayerID  `json:"playerId"`
}

type JoinSuccess struct {
	Type     string           `json:"type"`
	Session  core.SessionView `json:"session"`
	PlayerID domain.PlayerID  `json:"playerId"`
}

type SessionUpdated struct {
	Type    string           `json:"type"`
	Session core.SessionView `json:"session"`
}

type PlayersUpdated struct {
	Type    string                 `json:"type"`
	Players []core.ParticipantView `json:"players"`
}

type VotingStarted struct {
	Type         string              `json:"type"`
	Issue        *domain.Issue       `json:"issue"`
	VotingSystem domain.VotingSystem `json:"votingSystem"`
	Deck         []string            `json:"deck"`
}

type VoteSubmitted struct {
	Type     string          `json:"type"`
	PlayerID domain.PlayerID `json:"playerId"`
	HasVoted bool            `json:"hasVoted"`
}

type AllPlayersVoted struct {
	Type string `json:"type"`
}

type VotesRevealed struct {
	Type  string              `json:"type"`
	Votes []core.RevealedVote `json:"votes"`
}

type EstimateFinalized struct {
	Type     string        `json:"type"`
	Issue    *domain.Issue `json:"issue"`
	Estimate string        `json:"estimate"`
}

type VotingSystemUpdated struct {
	Type         string              `json:"type"`
	VotingSystem domain.VotingSystem `json:"votingSystem"`
	Deck         []string            `json:"deck"`
}

type SessionData struct {
	Type    string           `json:"type"`
	Session core.SessionView `json:"session"`
}

type SessionNotFound struct {
	Type string `json:"type"`
}

type Left struct {
	Type string `json:"type"`
}

type Pong struct {
	Type string `json:"type"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
