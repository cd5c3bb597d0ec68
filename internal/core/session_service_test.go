package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/scrumdeck/scrumdeck/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errFakeBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

var errFakeBackpressure = errors.New("backpressure")

func newTestSession(t *testing.T) (*SessionService, domain.PlayerID, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	mod, err := domain.NewParticipant("", "Alice", false, clock.Now())
	require.NoError(t, err)
	svc := NewSessionService("AB12C3", mod, domain.SystemFibonacci, clock)
	svc.Bind("conn-alice", &fakeConn{}, mod.ID)
	return svc, mod.ID, clock
}

func join(t *testing.T, svc *SessionService, cid ConnID, name string, spectator bool) domain.PlayerID {
	t.Helper()
	res, err := svc.Join(cid, &fakeConn{}, "", name, spectator)
	require.NoError(t, err)
	return res.PlayerID
}

func testIssue(title string) domain.Issue {
	return domain.Issue{ID: "issue-" + title, Title: title, Priority: domain.PriorityMedium}
}

func startRound(t *testing.T, svc *SessionService, mod domain.PlayerID, title string) {
	t.Helper()
	_, err := svc.SetIssue(mod, testIssue(title))
	require.NoError(t, err)
	_, err = svc.StartVoting(mod, nil, "")
	require.NoError(t, err)
}

func snapshotPlayer(t *testing.T, view SessionView, id domain.PlayerID) ParticipantView {
	t.Helper()
	for _, p := range view.Players {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("player %s not in snapshot", id)
	return ParticipantView{}
}

func TestJoinKeepsOrderAndUniqueness(t *testing.T) {
	svc, mod, _ := newTestSession(t)

	bob := join(t, svc, "conn-bob", "Bob", false)
	carol := join(t, svc, "conn-carol", "Carol", false)

	view := svc.Snapshot("")
	require.Len(t, view.Players, 3)
	require.Equal(t, mod, view.Players[0].ID)
	require.Equal(t, bob, view.Players[1].ID)
	require.Equal(t, carol, view.Players[2].ID)

	// Retried join with the same identity merges instead of duplicating.
	res, err := svc.Join("conn-bob-2", &fakeConn{}, bob, "Bob", false)
	require.NoError(t, err)
	require.Equal(t, bob, res.PlayerID)
	require.Len(t, svc.Snapshot("").Players, 3)
}

func TestRejoinByNameReissuesSameSeat(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	startRound(t, svc, mod, "Login flow")

	_, err := svc.SubmitVote(mod, "5")
	require.NoError(t, err)

	updates, roster := svc.Disconnect("conn-alice", mod)
	require.NotNil(t, updates)
	require.False(t, roster[0].IsConnected)

	// Same display name, no id: the old seat comes back with its vote.
	res, err := svc.Join("conn-alice-2", &fakeConn{}, "", "Alice", false)
	require.NoError(t, err)
	require.Equal(t, mod, res.PlayerID)

	self := snapshotPlayer(t, res.Snapshot, mod)
	require.True(t, self.IsConnected)
	require.True(t, self.HasVoted)
	require.NotNil(t, self.Vote)
	require.Equal(t, "5", *self.Vote)
}

func TestSubmitVoteRequiresActiveRound(t *testing.T) {
	svc, mod, _ := newTestSession(t)

	_, err := svc.SubmitVote(mod, "5")
	require.ErrorIs(t, err, domain.ErrVotingInactive)
	require.False(t, snapshotPlayer(t, svc.Snapshot(mod), mod).HasVoted)
}

func TestStartVotingRequiresIssue(t *testing.T) {
	svc, mod, _ := newTestSession(t)

	_, err := svc.StartVoting(mod, nil, "")
	require.ErrorIs(t, err, domain.ErrNoIssue)

	issue := testIssue("Inline")
	res, err := svc.StartVoting(mod, &issue, "")
	require.NoError(t, err)
	require.Equal(t, "Inline", res.Issue.Title)
}

func TestStartVotingClearsEveryVote(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)
	startRound(t, svc, mod, "First")

	_, err := svc.SubmitVote(mod, "3")
	require.NoError(t, err)
	_, err = svc.SubmitVote(bob, "5")
	require.NoError(t, err)

	res, err := svc.StartVoting(mod, nil, "")
	require.NoError(t, err)

	view := svc.Snapshot("")
	require.True(t, view.IsVotingActive)
	require.False(t, view.IsRevealed)
	for _, p := range view.Players {
		require.False(t, p.HasVoted)
		require.Nil(t, p.Vote)
	}
	require.NotNil(t, res.Updates)
}

func TestInvalidVoteRejected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mod, err := domain.NewParticipant("", "Alice", false, clock.Now())
	require.NoError(t, err)
	svc := NewSessionService("TS1", mod, domain.SystemTShirt, clock)
	svc.Bind("conn-alice", &fakeConn{}, mod.ID)
	startRound(t, svc, mod.ID, "Sizing")

	_, err = svc.SubmitVote(mod.ID, "99")
	require.ErrorIs(t, err, domain.ErrInvalidVote)
	require.False(t, snapshotPlayer(t, svc.Snapshot(mod.ID), mod.ID).HasVoted)

	_, err = svc.SubmitVote(mod.ID, "XL")
	require.NoError(t, err)
}

func TestSpectatorCannotVote(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	watcher := join(t, svc, "conn-watcher", "Watcher", true)
	startRound(t, svc, mod, "Any")

	_, err := svc.SubmitVote(watcher, "5")
	require.ErrorIs(t, err, domain.ErrSpectatorVote)
}

func TestHiddenVotesRedactedBeforeReveal(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)
	startRound(t, svc, mod, "Redaction")

	res, err := svc.SubmitVote(bob, "8")
	require.NoError(t, err)

	for _, u := range res.Updates {
		bobView := snapshotPlayer(t, u.Snapshot, bob)
		require.True(t, bobView.HasVoted)
		if u.ConnID == "conn-bob" {
			require.NotNil(t, bobView.Vote)
			require.Equal(t, "8", *bobView.Vote)
		} else {
			require.Nil(t, bobView.Vote, "hidden vote leaked to %s", u.ConnID)
		}
	}
}

func TestAllVotedFiresExactlyOnce(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)
	carol := join(t, svc, "conn-carol", "Carol", false)
	startRound(t, svc, mod, "Login flow")

	res, err := svc.SubmitVote(bob, "5")
	require.NoError(t, err)
	require.False(t, res.AllVoted)

	res, err = svc.SubmitVote(carol, "8")
	require.NoError(t, err)
	require.False(t, res.AllVoted)

	res, err = svc.SubmitVote(mod, "5")
	require.NoError(t, err)
	require.True(t, res.AllVoted)

	// A changed vote in the same round does not re-fire the event.
	res, err = svc.SubmitVote(mod, "8")
	require.NoError(t, err)
	require.False(t, res.AllVoted)
}

func TestSpectatorNeverBlocksAllVoted(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	join(t, svc, "conn-watcher", "Watcher", true)
	startRound(t, svc, mod, "Any")

	res, err := svc.SubmitVote(mod, "3")
	require.NoError(t, err)
	require.True(t, res.AllVoted)
}

func TestRevealAppendsRoundAndExposesVotes(t *testing.T) {
	svc, mod, clock := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)
	watcher := join(t, svc, "conn-watcher", "Watcher", true)
	startRound(t, svc, mod, "Login flow")

	_, err := svc.SubmitVote(mod, "5")
	require.NoError(t, err)
	_, err = svc.SubmitVote(bob, "8")
	require.NoError(t, err)

	clock.Advance(42 * time.Second)

	res, err := svc.RevealVotes(mod)
	require.NoError(t, err)
	require.Len(t, res.Votes, 2)

	votes := map[domain.PlayerID]string{}
	for _, v := range res.Votes {
		require.NotEqual(t, watcher, v.PlayerID)
		votes[v.PlayerID] = v.Vote
	}
	require.Equal(t, map[domain.PlayerID]string{mod: "5", bob: "8"}, votes)

	view := svc.Snapshot("")
	require.True(t, view.IsRevealed)
	require.False(t, view.IsVotingActive)
	require.Len(t, view.History, 1)
	round := view.History[0]
	require.Equal(t, "issue-Login flow", round.IssueID)
	require.Equal(t, 42*time.Second, round.Duration)
	require.Equal(t, map[domain.PlayerID]string{mod: "5", bob: "8"}, round.Votes)

	// Post-reveal, every observer sees the literal votes.
	bobView := snapshotPlayer(t, view, bob)
	require.NotNil(t, bobView.Vote)
	require.Equal(t, "8", *bobView.Vote)
}

func TestRevealRequiresActiveRound(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	_, err := svc.RevealVotes(mod)
	require.ErrorIs(t, err, domain.ErrVotingInactive)
}

func TestFinalEstimateAttachesToNewestRound(t *testing.T) {
	svc, mod, _ := newTestSession(t)

	_, err := svc.SetFinalEstimate(mod, "5")
	require.ErrorIs(t, err, domain.ErrNoHistory)

	startRound(t, svc, mod, "Login flow")
	_, err = svc.SubmitVote(mod, "5")
	require.NoError(t, err)
	_, err = svc.RevealVotes(mod)
	require.NoError(t, err)

	// Free text is allowed: the team may agree on a value outside the deck.
	res, err := svc.SetFinalEstimate(mod, "6.5")
	require.NoError(t, err)
	require.Equal(t, "6.5", res.Estimate)

	hist := svc.Snapshot("").History
	require.Len(t, hist, 1)
	require.NotNil(t, hist[0].FinalEstimate)
	require.Equal(t, "6.5", *hist[0].FinalEstimate)
}

func TestModeratorOnlyActions(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)
	startRound(t, svc, mod, "Auth")

	_, err := svc.SetIssue(bob, testIssue("Nope"))
	require.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = svc.StartVoting(bob, nil, "")
	require.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = svc.RevealVotes(bob)
	require.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = svc.ResetVotes(bob)
	require.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = svc.ChangeVotingSystem(bob, domain.SystemTShirt)
	require.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = svc.SetFinalEstimate(bob, "5")
	require.ErrorIs(t, err, domain.ErrNotModerator)
}

func TestResetVotesKeepsIssueAndHistory(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	startRound(t, svc, mod, "Keep me")
	_, err := svc.SubmitVote(mod, "5")
	require.NoError(t, err)
	_, err = svc.RevealVotes(mod)
	require.NoError(t, err)

	_, err = svc.ResetVotes(mod)
	require.NoError(t, err)

	view := svc.Snapshot("")
	require.False(t, view.IsVotingActive)
	require.False(t, view.IsRevealed)
	require.NotNil(t, view.CurrentIssue)
	require.Equal(t, "Keep me", view.CurrentIssue.Title)
	require.Len(t, view.History, 1)
	require.False(t, snapshotPlayer(t, view, mod).HasVoted)
}

func TestChangeVotingSystemKeepsCastVotes(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	startRound(t, svc, mod, "Swap")
	_, err := svc.SubmitVote(mod, "5")
	require.NoError(t, err)

	res, err := svc.ChangeVotingSystem(mod, domain.SystemTShirt)
	require.NoError(t, err)
	require.Equal(t, domain.SystemTShirt, res.System)
	require.True(t, snapshotPlayer(t, svc.Snapshot(mod), mod).HasVoted)

	_, err = svc.ChangeVotingSystem(mod, "bogus")
	require.ErrorIs(t, err, domain.ErrUnknownSystem)
}

func TestModeratorHandoverFollowsJoinOrder(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)
	carol := join(t, svc, "conn-carol", "Carol", false)

	res, err := svc.Leave(mod)
	require.NoError(t, err)
	require.False(t, res.Empty)
	require.Equal(t, bob, svc.Snapshot("").ModeratorID)

	res, err = svc.Leave(bob)
	require.NoError(t, err)
	require.Equal(t, carol, svc.Snapshot("").ModeratorID)

	res, err = svc.Leave(carol)
	require.NoError(t, err)
	require.True(t, res.Empty)
	require.True(t, svc.Empty())
}

func TestDisconnectMarksOfflineWithoutRemoval(t *testing.T) {
	svc, mod, _ := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)

	_, roster := svc.Disconnect("conn-bob", bob)
	require.Len(t, roster, 2)
	require.False(t, roster[1].IsConnected)
	require.Equal(t, mod, svc.Snapshot("").ModeratorID)
}

func TestBroadcastReportsSlowConsumers(t *testing.T) {
	svc, _, _ := newTestSession(t)
	slow := &fakeConn{fail: true}
	svc.Bind("conn-slow", slow, "p-slow")

	res := svc.Broadcast(Frame(`{"type":"ping"}`))
	require.Equal(t, 1, res.SentTo)
	require.Equal(t, []ConnID{"conn-slow"}, res.Dropped)
}

func TestFullScenario(t *testing.T) {
	svc, alice, _ := newTestSession(t)
	bob := join(t, svc, "conn-bob", "Bob", false)
	carol := join(t, svc, "conn-carol", "Carol", false)

	_, err := svc.SetIssue(alice, testIssue("Login flow"))
	require.NoError(t, err)
	_, err = svc.StartVoting(alice, nil, "")
	require.NoError(t, err)

	r, err := svc.SubmitVote(bob, "5")
	require.NoError(t, err)
	require.False(t, r.AllVoted)
	r, err = svc.SubmitVote(carol, "8")
	require.NoError(t, err)
	require.False(t, r.AllVoted)
	r, err = svc.SubmitVote(alice, "5")
	require.NoError(t, err)
	require.True(t, r.AllVoted)

	rev, err := svc.RevealVotes(alice)
	require.NoError(t, err)
	got := map[string]string{}
	for _, v := range rev.Votes {
		got[v.PlayerName] = v.Vote
	}
	require.Equal(t, map[string]string{"Alice": "5", "Bob": "5", "Carol": "8"}, got)

	_, err = svc.SetFinalEstimate(alice, "5")
	require.NoError(t, err)

	hist := svc.Snapshot("").History
	require.Len(t, hist, 1)
	require.Equal(t, "5", *hist[0].FinalEstimate)
}
