package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomExists         = errors.New("room code already in use")
	ErrNotModerator       = errors.New("only the moderator can perform this action")
	ErrNotInRoom          = errors.New("connection is not bound to a room")
	ErrInvalidVote        = errors.New("vote is not part of the active voting system")
	ErrSpectatorVote      = errors.New("spectators cannot vote")
	ErrVotingInactive     = errors.New("no voting round is active")
	ErrNoIssue            = errors.New("no issue set for voting")
	ErrNoHistory          = errors.New("no completed round to estimate")
	ErrEmptyName          = errors.New("name empty")
	ErrNameTooLong        = errors.New("name too long")
	ErrUnknownSystem      = errors.New("unknown voting system")
	ErrUnknownParticipant = errors.New("participant not found in session")
)
