package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"animedrive/core/session"
)

func newRequestFlow(t *testing.T) (*RequestFlow, *time.Time) {
	t.Helper()
	sessions := session.NewStore()
	f := NewRequestFlow(sessions, time.Minute, 2*time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	return f, &now
}

func TestRequestPromptThenCapture(t *testing.T) {
	f, _ := newRequestFlow(t)

	msg, ok := f.Begin(10)
	require.True(t, ok)
	require.Contains(t, msg, "What would you like to request?")

	admin, reply, handled := f.HandleText(10, "alice", "Anime: Frieren")
	require.True(t, handled)
	require.Contains(t, admin, "@alice")
	require.Contains(t, admin, "UID: 10")
	require.Contains(t, admin, "Anime: Frieren")
	require.Contains(t, reply, "sent to the admins")

	// Prompt consumed, further text is not claimed.
	_, _, handled = f.HandleText(10, "alice", "more text")
	require.False(t, handled)
}

func TestRequestCooldownEnforced(t *testing.T) {
	f, now := newRequestFlow(t)

	_, ok := f.Begin(10)
	require.True(t, ok)
	_, _, handled := f.HandleText(10, "alice", "something")
	require.True(t, handled)

	msg, ok := f.Begin(10)
	require.False(t, ok)
	require.Contains(t, msg, "Please wait")

	*now = now.Add(2*time.Minute + time.Second)
	_, ok = f.Begin(10)
	require.True(t, ok)
}

func TestRequestCooldownIsPerUser(t *testing.T) {
	f, _ := newRequestFlow(t)

	_, ok := f.Begin(10)
	require.True(t, ok)
	_, _, handled := f.HandleText(10, "alice", "something")
	require.True(t, handled)

	_, ok = f.Begin(20)
	require.True(t, ok)
}

func TestRequestIgnoresCommands(t *testing.T) {
	f, _ := newRequestFlow(t)

	_, ok := f.Begin(10)
	require.True(t, ok)

	_, _, handled := f.HandleText(10, "alice", "/help")
	require.False(t, handled)

	// Prompt remains open afterwards.
	admin, _, handled := f.HandleText(10, "", "Movie: Akira")
	require.True(t, handled)
	require.True(t, strings.Contains(admin, "@unknown"))
}

func TestRequestWithoutPromptNotClaimed(t *testing.T) {
	f, _ := newRequestFlow(t)
	_, _, handled := f.HandleText(10, "alice", "hello")
	require.False(t, handled)
}
