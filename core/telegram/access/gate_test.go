package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type fakeChecker struct {
	members map[int64]map[int64]bool
	errs    map[int64]error
	block   bool
}

func (f *fakeChecker) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	if f.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if err, ok := f.errs[channelID]; ok {
		return false, err
	}
	return f.members[channelID][userID], nil
}

func channels() []Channel {
	return []Channel{
		{ID: -100, Title: "Main", InviteURL: "https://t.me/main"},
		{ID: -200, Title: "Updates", InviteURL: "https://t.me/updates"},
	}
}

func TestAllowWhenMemberEverywhere(t *testing.T) {
	checker := &fakeChecker{members: map[int64]map[int64]bool{
		-100: {7: true},
		-200: {7: true},
	}}
	g := NewGate(checker, Options{Channels: channels()})

	ok, missing := g.Allow(context.Background(), 7)
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestDenyReportsMissingChannels(t *testing.T) {
	checker := &fakeChecker{members: map[int64]map[int64]bool{
		-100: {7: true},
		-200: {},
	}}
	g := NewGate(checker, Options{Channels: channels()})

	ok, missing := g.Allow(context.Background(), 7)
	assert.False(t, ok)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(-200), missing[0].ID)
}

func TestCheckErrorFailsClosed(t *testing.T) {
	checker := &fakeChecker{
		members: map[int64]map[int64]bool{-100: {7: true}, -200: {7: true}},
		errs:    map[int64]error{-100: errors.New("chat not found")},
	}
	g := NewGate(checker, Options{Channels: channels()})

	ok, missing := g.Allow(context.Background(), 7)
	assert.False(t, ok)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(-100), missing[0].ID)
}

func TestCheckTimeoutFailsClosed(t *testing.T) {
	g := NewGate(&fakeChecker{block: true}, Options{
		Channels:     channels(),
		CheckTimeout: 10 * time.Millisecond,
	})

	ok, missing := g.Allow(context.Background(), 7)
	assert.False(t, ok)
	assert.Len(t, missing, 2)
}

// stubContext fakes just the tele.Context surface the gate touches.
// Calls to anything else panic through the embedded nil interface.
type stubContext struct {
	tele.Context
	sender   *tele.User
	store    map[string]any
	sends    []string
	responds []string
}

func newStubContext(userID int64) *stubContext {
	return &stubContext{sender: &tele.User{ID: userID}, store: map[string]any{}}
}

func (s *stubContext) Sender() *tele.User    { return s.sender }
func (s *stubContext) Chat() *tele.Chat      { return &tele.Chat{ID: s.sender.ID} }
func (s *stubContext) Update() tele.Update   { return tele.Update{ID: 1} }
func (s *stubContext) Get(key string) any    { return s.store[key] }
func (s *stubContext) Set(key string, v any) { s.store[key] = v }

func (s *stubContext) Send(what any, _ ...any) error {
	s.sends = append(s.sends, fmt.Sprint(what))
	return nil
}

func (s *stubContext) Respond(resp ...*tele.CallbackResponse) error {
	for _, r := range resp {
		s.responds = append(s.responds, r.Text)
	}
	return nil
}

func TestRetryFailureOnlyAnswersCallback(t *testing.T) {
	checker := &fakeChecker{members: map[int64]map[int64]bool{-100: {}, -200: {}}}
	g := NewGate(checker, Options{Channels: channels()})
	c := newStubContext(7)

	confirmed := false
	require.NoError(t, g.Retry(c, func(tele.Context) error {
		confirmed = true
		return nil
	}))

	assert.False(t, confirmed)
	require.Len(t, c.responds, 1)
	assert.Equal(t, "Not all channels joined yet", c.responds[0])
	assert.Empty(t, c.sends, "a failed retry must not repost the onboarding prompt")
}

func TestRetrySuccessRunsConfirmedHandler(t *testing.T) {
	checker := &fakeChecker{members: map[int64]map[int64]bool{
		-100: {7: true},
		-200: {7: true},
	}}
	g := NewGate(checker, Options{Channels: channels()})
	c := newStubContext(7)

	confirmed := false
	require.NoError(t, g.Retry(c, func(tele.Context) error {
		confirmed = true
		return nil
	}))

	assert.True(t, confirmed)
	require.Len(t, c.responds, 1)
	assert.Equal(t, "Access confirmed", c.responds[0])
}

func TestNoChannelsMeansOpen(t *testing.T) {
	g := NewGate(&fakeChecker{}, Options{})

	ok, missing := g.Allow(context.Background(), 7)
	assert.True(t, ok)
	assert.Empty(t, missing)
}
