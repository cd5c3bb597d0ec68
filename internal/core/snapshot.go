package core

import (
	"time"

	"github.com/scrumdeck/scrumdeck/internal/domain"
)

// ParticipantView is the observer-visible form of a participant.
// Vote is populated only once the round is revealed, or for the
// participant's own connection; everyone else gets the HasVoted flag.
type ParticipantView struct {
	ID          domain.PlayerID `json:"id"`
	Name        string          `json:"name"`
	Vote        *string         `json:"vote,omitempty"`
	HasVoted    bool            `json:"hasVoted"`
	IsSpectator bool            `json:"isSpectator"`
	IsConnected bool            `json:"isConnected"`
}

// SessionView is the full-session snapshot broadcast after every
// mutation. It is a deep copy; callers may marshal it without holding
// the session lock.
type SessionView struct {
	RoomCode       domain.RoomCode     `json:"roomCode"`
	ModeratorID    domain.PlayerID     `json:"moderatorId"`
	CurrentIssue   *domain.Issue       `json:"currentIssue"`
	Players        []ParticipantView   `json:"players"`
	VotingSystem   domain.VotingSystem `json:"votingSystem"`
	Deck           []string            `json:"deck"`
	IsVotingActive bool                `json:"isVotingActive"`
	IsRevealed     bool                `json:"isRevealed"`
	CreatedAt      time.Time           `json:"createdAt"`
	History        []domain.Round      `json:"history"`
}

// SessionInfo is the diagnostics listing entry, not part of the
// protocol's correctness surface.
type SessionInfo struct {
	RoomCode     domain.RoomCode `json:"roomCode"`
	Players      int             `json:"players"`
	IsActive     bool            `json:"isActive"`
	CurrentIssue string          `json:"currentIssue"`
}

// RevealedVote is one entry of the votes-revealed payload.
type RevealedVote struct {
	PlayerID   domain.PlayerID `json:"playerId"`
	PlayerName string          `json:"playerName"`
	Vote       string          `json:"vote"`
}

func participantView(p *domain.Participant, revealed bool, viewer domain.PlayerID) ParticipantView {
	v := ParticipantView{
		ID:          p.ID,
		Name:        p.Name,
		HasVoted:    p.HasVoted(),
		IsSpectator: p.IsSpectator,
		IsConnected: p.IsConnected,
	}
	if p.Vote != nil && (revealed || p.ID == viewer) {
		vote := *p.Vote
		v.Vote = &vote
	}
	return v
}

// sessionView builds a snapshot redacted for viewer. Caller must hold
// the session lock.
func sessionView(s *domain.Session, viewer domain.PlayerID) SessionView {
	view := SessionView{
		RoomCode:       s.RoomCode,
		ModeratorID:    s.ModeratorID,
		VotingSystem:   s.VotingSystem,
		Deck:           s.VotingSystem.Deck(),
		IsVotingActive: s.VotingActive,
		IsRevealed:     s.Revealed,
		CreatedAt:      s.CreatedAt,
		Players:        make([]ParticipantView, 0, len(s.Players)),
	}
	if s.CurrentIssue != nil {
		issue := *s.CurrentIssue
		view.CurrentIssue = &issue
	}
	for _, p := range s.Players {
		view.Players = append(view.Players, participantView(p, s.Revealed, viewer))
	}
	view.History = make([]domain.Round, 0, len(s.History))
	for _, r := range s.History {
		round := r
		round.Votes = make(map[domain.PlayerID]string, len(r.Votes))
		for id, vote := range r.Votes {
			round.Votes[id] = vote
		}
		view.History = append(view.History, round)
	}
	return view
}
