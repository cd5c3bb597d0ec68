package domain

import "time"

// Round is one completed voting cycle, appended to history on reveal.
// Votes maps participant id to the token they submitted; spectators and
// abstainers never appear.
type Round struct {
	IssueID       string              `json:"issueId"`
	Votes         map[PlayerID]string `json:"votes"`
	FinalEstimate *string             `json:"finalEstimate"`
	Timestamp     time.Time           `json:"timestamp"`
	Duration      time.Duration       `json:"duration"`
}

// Session is the authoritative record for one room code. All fields are
// guarded by the owning core service; nothing outside it may mutate them.
type Session struct {
	RoomCode     RoomCode
	ModeratorID  PlayerID
	CurrentIssue *Issue
	Players      []*Participant // join order, unique by id
	VotingSystem VotingSystem
	VotingActive bool
	Revealed     bool
	CreatedAt    time.Time
	History      []Round
}

// FindPlayer returns the participant with the given id, or nil.
func (s *Session) FindPlayer(id PlayerID) *Participant {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// FindPlayerByName supports rejoin-by-name: a client that lost its id
// gets its old seat back by display name.
func (s *Session) FindPlayerByName(name string) *Participant {
	for _, p := range s.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Voters returns the non-spectator participants, in join order.
func (s *Session) Voters() []*Participant {
	out := make([]*Participant, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.IsSpectator {
			out = append(out, p)
		}
	}
	return out
}
