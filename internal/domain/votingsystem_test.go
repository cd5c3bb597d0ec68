package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVotingSystemsAreClosedSet(t *testing.T) {
	for _, s := range []VotingSystem{SystemFibonacci, SystemModifiedFib, SystemTShirt, SystemPowersOfTwo, SystemLinear} {
		require.True(t, s.Known(), "system %s", s)
		require.NotEmpty(t, s.Deck())
	}
	require.False(t, VotingSystem("story-points").Known())
	require.Nil(t, VotingSystem("story-points").Deck())
}

func TestEveryDeckCarriesSentinels(t *testing.T) {
	for _, s := range []VotingSystem{SystemFibonacci, SystemModifiedFib, SystemTShirt, SystemPowersOfTwo, SystemLinear} {
		require.True(t, s.Allows(TokenUnknown), "system %s", s)
		require.True(t, s.Allows(TokenBreak), "system %s", s)
	}
}

func TestAllowsRejectsForeignTokens(t *testing.T) {
	require.True(t, SystemFibonacci.Allows("13"))
	require.False(t, SystemFibonacci.Allows("4"))
	require.True(t, SystemTShirt.Allows("XL"))
	require.False(t, SystemTShirt.Allows("99"))
}
