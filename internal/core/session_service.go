package core

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/domain"
)

// SessionService is the authoritative state machine for one room.
// Every transition runs under one mutex, validates all preconditions
// before touching state, and returns the redacted per-connection
// snapshots computed from the post-state of that same transition, so
// observers never see a stale or interleaved broadcast.
type SessionService struct {
	mu    sync.RWMutex
	sess  *domain.Session
	clock clockwork.Clock

	conns map[ConnID]boundConn

	roundStart   time.Time
	allVotedSent bool
	lastActivity time.Time
}

type boundConn struct {
	conn   SignalConnection
	player domain.PlayerID
}

// PersonalUpdate is one recipient's session-updated payload.
type PersonalUpdate struct {
	ConnID   ConnID
	Conn     SignalConnection
	Snapshot SessionView
}

func NewSessionService(code domain.RoomCode, moderator *domain.Participant, system domain.VotingSystem, clock clockwork.Clock) *SessionService {
	now := clock.Now()
	return &SessionService{
		sess: &domain.Session{
			RoomCode:     code,
			ModeratorID:  moderator.ID,
			Players:      []*domain.Participant{moderator},
			VotingSystem: system,
			CreatedAt:    now,
		},
		clock:        clock,
		conns:        make(map[ConnID]boundConn),
		lastActivity: now,
	}
}

func (s *SessionService) Code() domain.RoomCode { return s.sess.RoomCode }

// Bind attaches a connection to the room for fan-out, owned by playerID.
func (s *SessionService) Bind(cid ConnID, conn SignalConnection, playerID domain.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[cid] = boundConn{conn: conn, player: playerID}
}

func (s *SessionService) Unbind(cid ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, cid)
}

func (s *SessionService) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sess.Players) == 0
}

// Reclaimable reports whether the sweeper may delete the session:
// either no participants remain, or every participant has been
// disconnected for longer than ttl.
func (s *SessionService) Reclaimable(now time.Time, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sess.Players) == 0 {
		return true
	}
	for _, p := range s.sess.Players {
		if p.IsConnected {
			return false
		}
	}
	return now.Sub(s.lastActivity) > ttl
}

// Snapshot returns the session redacted for viewer. An empty viewer id
// yields the stranger's view: no hidden votes at all.
func (s *SessionService) Snapshot(viewer domain.PlayerID) SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sessionView(s.sess, viewer)
}

func (s *SessionService) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := SessionInfo{
		RoomCode: s.sess.RoomCode,
		Players:  len(s.sess.Players),
		IsActive: s.sess.VotingActive,
	}
	if s.sess.CurrentIssue != nil {
		info.CurrentIssue = s.sess.CurrentIssue.Title
	}
	return info
}

// Broadcast fans a uniform frame out to every bound connection.
// Slow consumers are reported, never waited on.
func (s *SessionService) Broadcast(data Frame) PublishResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := PublishResult{}
	for cid, bc := range s.conns {
		if err := bc.conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, cid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.session").Str("room", string(s.sess.RoomCode)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// updatesLocked builds the per-recipient snapshots. Caller holds s.mu.
func (s *SessionService) updatesLocked() []PersonalUpdate {
	out := make([]PersonalUpdate, 0, len(s.conns))
	for cid, bc := range s.conns {
		out = append(out, PersonalUpdate{
			ConnID:   cid,
			Conn:     bc.conn,
			Snapshot: sessionView(s.sess, bc.player),
		})
	}
	return out
}

func (s *SessionService) touchLocked() {
	s.lastActivity = s.clock.Now()
}

func (s *SessionService) requireModeratorLocked(issuer domain.PlayerID) error {
	if issuer != s.sess.ModeratorID {
		return domain.ErrNotModerator
	}
	return nil
}

func (s *SessionService) clearVotesLocked() {
	for _, p := range s.sess.Players {
		p.ClearVote()
	}
	s.allVotedSent = false
}

// JoinResult carries everything the adapter needs to answer a join.
type JoinResult struct {
	PlayerID domain.PlayerID
	Snapshot SessionView
	Roster   []ParticipantView
	Updates  []PersonalUpdate
}

// Join adds a participant or merges a rejoin. Matching is by id first,
// then by display name, so a client that lost its id gets its old seat
// (and vote, and role) back. Idempotent under retry.
func (s *SessionService) Join(cid ConnID, conn SignalConnection, id domain.PlayerID, name string, spectator bool) (*JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.sess.FindPlayer(id)
	if p == nil {
		p = s.sess.FindPlayerByName(name)
	}
	if p != nil {
		p.IsConnected = true
	} else {
		var err error
		p, err = domain.NewParticipant(id, name, spectator, s.clock.Now())
		if err != nil {
			return nil, err
		}
		s.sess.Players = append(s.sess.Players, p)
	}
	s.conns[cid] = boundConn{conn: conn, player: p.ID}
	s.touchLocked()

	res := &JoinResult{
		PlayerID: p.ID,
		Snapshot: sessionView(s.sess, p.ID),
		Roster:   s.rosterLocked(),
		Updates:  s.updatesLocked(),
	}
	log.Info().Str("module", "core.session").Str("room", string(s.sess.RoomCode)).
		Str("player", string(p.ID)).Str("name", p.Name).Msg("participant joined")
	return res, nil
}

func (s *SessionService) rosterLocked() []ParticipantView {
	out := make([]ParticipantView, 0, len(s.sess.Players))
	for _, p := range s.sess.Players {
		out = append(out, participantView(p, s.sess.Revealed, ""))
	}
	return out
}

// SetIssue assigns the issue under estimation and forces the session
// back to idle: votes cleared, nothing active, nothing revealed.
func (s *SessionService) SetIssue(issuer domain.PlayerID, issue domain.Issue) ([]PersonalUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModeratorLocked(issuer); err != nil {
		return nil, err
	}
	s.sess.CurrentIssue = &issue
	s.sess.VotingActive = false
	s.sess.Revealed = false
	s.clearVotesLocked()
	s.touchLocked()
	return s.updatesLocked(), nil
}

// StartResult feeds the voting-started broadcast.
type StartResult struct {
	Issue   *domain.Issue
	System  domain.VotingSystem
	Deck    []string
	Updates []PersonalUpdate
}

// StartVoting opens a round. The issue may be supplied inline
// (set-then-start); one must be present either way. Every vote is
// cleared, including spectators'.
func (s *SessionService) StartVoting(issuer domain.PlayerID, issue *domain.Issue, system domain.VotingSystem) (*StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModeratorLocked(issuer); err != nil {
		return nil, err
	}
	if system != "" && !system.Known() {
		return nil, domain.ErrUnknownSystem
	}
	if issue == nil && s.sess.CurrentIssue == nil {
		return nil, domain.ErrNoIssue
	}

	if issue != nil {
		s.sess.CurrentIssue = issue
	}
	if system != "" {
		s.sess.VotingSystem = system
	}
	s.sess.VotingActive = true
	s.sess.Revealed = false
	s.clearVotesLocked()
	s.roundStart = s.clock.Now()
	s.touchLocked()

	issueCopy := *s.sess.CurrentIssue
	log.Info().Str("module", "core.session").Str("room", string(s.sess.RoomCode)).
		Str("issue", issueCopy.Title).Msg("voting started")
	return &StartResult{
		Issue:   &issueCopy,
		System:  s.sess.VotingSystem,
		Deck:    s.sess.VotingSystem.Deck(),
		Updates: s.updatesLocked(),
	}, nil
}

// VoteResult reports a single accepted vote.
type VoteResult struct {
	PlayerID domain.PlayerID
	AllVoted bool
	Updates  []PersonalUpdate
}

// SubmitVote records pid's vote for the active round. Self-service
// only; the adapter passes the identity bound to the submitting
// connection, never one taken from the payload.
func (s *SessionService) SubmitVote(pid domain.PlayerID, vote string) (*VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sess.VotingActive {
		return nil, domain.ErrVotingInactive
	}
	p := s.sess.FindPlayer(pid)
	if p == nil {
		return nil, domain.ErrUnknownParticipant
	}
	if p.IsSpectator {
		return nil, domain.ErrSpectatorVote
	}
	if !s.sess.VotingSystem.Allows(vote) {
		return nil, domain.ErrInvalidVote
	}
	p.Vote = &vote
	s.touchLocked()

	res := &VoteResult{PlayerID: pid, Updates: s.updatesLocked()}

	// Derived condition, latched so the event fires exactly once per
	// round. Zero non-spectators never fires.
	voters := s.sess.Voters()
	if len(voters) > 0 && !s.allVotedSent {
		all := true
		for _, v := range voters {
			if !v.HasVoted() {
				all = false
				break
			}
		}
		if all {
			s.allVotedSent = true
			res.AllVoted = true
		}
	}
	return res, nil
}

// RevealResult feeds the votes-revealed broadcast.
type RevealResult struct {
	Votes   []RevealedVote
	Updates []PersonalUpdate
}

// RevealVotes closes the round, makes every vote visible, and appends
// the round to history with the elapsed duration.
func (s *SessionService) RevealVotes(issuer domain.PlayerID) (*RevealResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModeratorLocked(issuer); err != nil {
		return nil, err
	}
	if !s.sess.VotingActive {
		return nil, domain.ErrVotingInactive
	}

	s.sess.Revealed = true
	s.sess.VotingActive = false

	now := s.clock.Now()
	round := domain.Round{
		Votes:     make(map[domain.PlayerID]string),
		Timestamp: now,
		Duration:  now.Sub(s.roundStart),
	}
	if s.sess.CurrentIssue != nil {
		round.IssueID = s.sess.CurrentIssue.ID
	}
	res := &RevealResult{}
	for _, p := range s.sess.Players {
		if p.IsSpectator || p.Vote == nil {
			continue
		}
		round.Votes[p.ID] = *p.Vote
		res.Votes = append(res.Votes, RevealedVote{PlayerID: p.ID, PlayerName: p.Name, Vote: *p.Vote})
	}
	s.sess.History = append(s.sess.History, round)
	s.touchLocked()

	res.Updates = s.updatesLocked()
	log.Info().Str("module", "core.session").Str("room", string(s.sess.RoomCode)).
		Int("votes", len(round.Votes)).Msg("votes revealed")
	return res, nil
}

// EstimateResult feeds the estimate-finalized broadcast.
type EstimateResult struct {
	Issue    *domain.Issue
	Estimate string
	Updates  []PersonalUpdate
}

// SetFinalEstimate attaches the agreed value to the newest round.
// Free text: teams record averages and medians that are not deck
// tokens.
func (s *SessionService) SetFinalEstimate(issuer domain.PlayerID, estimate string) (*EstimateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModeratorLocked(issuer); err != nil {
		return nil, err
	}
	if len(s.sess.History) == 0 {
		return nil, domain.ErrNoHistory
	}
	s.sess.History[len(s.sess.History)-1].FinalEstimate = &estimate
	s.touchLocked()

	res := &EstimateResult{Estimate: estimate, Updates: s.updatesLocked()}
	if s.sess.CurrentIssue != nil {
		issue := *s.sess.CurrentIssue
		res.Issue = &issue
	}
	return res, nil
}

// ResetVotes returns the session to idle without touching the issue or
// the history.
func (s *SessionService) ResetVotes(issuer domain.PlayerID) ([]PersonalUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModeratorLocked(issuer); err != nil {
		return nil, err
	}
	s.clearVotesLocked()
	s.sess.VotingActive = false
	s.sess.Revealed = false
	s.touchLocked()
	return s.updatesLocked(), nil
}

// SystemResult feeds the voting-system-updated broadcast.
type SystemResult struct {
	System  domain.VotingSystem
	Deck    []string
	Updates []PersonalUpdate
}

// ChangeVotingSystem swaps the deck mid-session. Votes already cast
// are kept; they were valid under the system active when submitted.
func (s *SessionService) ChangeVotingSystem(issuer domain.PlayerID, system domain.VotingSystem) (*SystemResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireModeratorLocked(issuer); err != nil {
		return nil, err
	}
	if !system.Known() {
		return nil, domain.ErrUnknownSystem
	}
	s.sess.VotingSystem = system
	s.touchLocked()
	return &SystemResult{
		System:  system,
		Deck:    system.Deck(),
		Updates: s.updatesLocked(),
	}, nil
}

// LeaveResult reports the roster after an explicit leave.
type LeaveResult struct {
	Empty   bool
	Roster  []ParticipantView
	Updates []PersonalUpdate
}

// Leave removes the participant. If the moderator leaves and others
// remain, authority passes to the next participant by join order.
func (s *SessionService) Leave(pid domain.PlayerID) (*LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.sess.Players {
		if p.ID == pid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.ErrUnknownParticipant
	}
	s.sess.Players = append(s.sess.Players[:idx], s.sess.Players[idx+1:]...)

	if pid == s.sess.ModeratorID && len(s.sess.Players) > 0 {
		s.sess.ModeratorID = s.sess.Players[0].ID
		log.Info().Str("module", "core.session").Str("room", string(s.sess.RoomCode)).
			Str("moderator", string(s.sess.ModeratorID)).Msg("moderator handover")
	}
	for cid, bc := range s.conns {
		if bc.player == pid {
			delete(s.conns, cid)
		}
	}
	s.touchLocked()

	return &LeaveResult{
		Empty:   len(s.sess.Players) == 0,
		Roster:  s.rosterLocked(),
		Updates: s.updatesLocked(),
	}, nil
}

// Disconnect marks the participant offline without removing the seat.
// A later rejoin with the same identity restores vote and role.
func (s *SessionService) Disconnect(cid ConnID, pid domain.PlayerID) ([]PersonalUpdate, []ParticipantView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, cid)
	if p := s.sess.FindPlayer(pid); p != nil {
		p.IsConnected = false
	}
	s.touchLocked()
	return s.updatesLocked(), s.rosterLocked()
}
