package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnIDUniquePerTab(t *testing.T) {
	a := connID("browser-token")
	b := connID("browser-token")

	// Two tabs of one browser share the cookie but must not share a
	// connection id, or one tab's teardown would unbind the other.
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(string(a), "browser-token:"))
	require.True(t, strings.HasPrefix(string(b), "browser-token:"))
}
