package signal

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestJoinRateLimiterSlidingWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewJoinRateLimiter(2, time.Second, clock)

	require.True(t, rl.Allow("c1"))
	require.True(t, rl.Allow("c1"))
	require.False(t, rl.Allow("c1"))

	// Another connection has its own budget.
	require.True(t, rl.Allow("c2"))

	clock.Advance(1100 * time.Millisecond)
	require.True(t, rl.Allow("c1"))
}
