// Package domain contains the session entities. No transport or
// lifecycle logic here; the core package owns all transitions.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const MaxNameLen = 36

type (
	RoomCode string
	PlayerID string
)

// Participant is one seat in a session. Vote is nil until the
// participant submits in the current round.
type Participant struct {
	ID          PlayerID
	Name        string
	Vote        *string
	IsSpectator bool
	IsConnected bool
	JoinedAt    time.Time
}

// NewParticipant validates the display name and issues a fresh id when
// the caller did not bring one (rejoin passes the old id back in).
func NewParticipant(id PlayerID, name string, spectator bool, now time.Time) (*Participant, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	if id == "" {
		id = PlayerID(uuid.NewString())
	}
	return &Participant{
		ID:          id,
		Name:        name,
		IsSpectator: spectator,
		IsConnected: true,
		JoinedAt:    now,
	}, nil
}

func (p *Participant) HasVoted() bool { return p.Vote != nil }

func (p *Participant) ClearVote() { p.Vote = nil }
