package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"

	"animedrive/core/session"
)

// stubContext fakes the tele.Context surface the handlers under test
// touch. Anything else panics through the embedded nil interface.
type stubContext struct {
	tele.Context
	sender *tele.User
	msg    *tele.Message
	store  map[string]any
	sends  []string
}

func newStubContext(userID int64, msg *tele.Message) *stubContext {
	return &stubContext{sender: &tele.User{ID: userID}, msg: msg, store: map[string]any{}}
}

func (s *stubContext) Sender() *tele.User     { return s.sender }
func (s *stubContext) Chat() *tele.Chat       { return &tele.Chat{ID: s.sender.ID} }
func (s *stubContext) Update() tele.Update    { return tele.Update{ID: 1} }
func (s *stubContext) Message() *tele.Message { return s.msg }
func (s *stubContext) Text() string           { return s.msg.Text }
func (s *stubContext) Get(key string) any     { return s.store[key] }
func (s *stubContext) Set(key string, v any)  { s.store[key] = v }

func (s *stubContext) Send(what any, _ ...any) error {
	s.sends = append(s.sends, fmt.Sprint(what))
	return nil
}

func TestBuildRegistryRegistersEveryCommand(t *testing.T) {
	app := &App{}
	reg, err := app.buildRegistry()
	require.NoError(t, err)

	for _, name := range []string{
		"/start", "/help", "/anime", "/list", "/request", "/ai",
		"/uploadanime", "/ping", "/uptime",
	} {
		_, _, ok := reg.LookupCommand(name)
		assert.True(t, ok, name)
	}

	key, cmd, ok := reg.LookupCommand("/upload")
	require.True(t, ok)
	assert.Equal(t, "/uploadanime", key)
	assert.True(t, cmd.AdminOnly)
}

func chatApp(gen *fakeGenerator) *App {
	sessions := session.NewStore()
	return &App{
		sessions: sessions,
		chat:     NewChatFlow(gen, sessions, time.Minute, 10),
	}
}

func TestObserveChatContinuesReplyToBot(t *testing.T) {
	gen := &fakeGenerator{reply: "sure thing"}
	app := chatApp(gen)
	app.me.Store(&tele.User{ID: 424242})

	_, err := app.chat.Ask(context.Background(), 10, "hi")
	require.NoError(t, err)

	msg := &tele.Message{
		Text:    "tell me more",
		ReplyTo: &tele.Message{Sender: &tele.User{ID: 424242}},
	}
	require.NoError(t, app.observeChat(newStubContext(10, msg)))
	require.Len(t, gen.seen, 2)
	assert.Equal(t, "tell me more", gen.seen[1][2].Text)
}

func TestObserveChatIgnoresRepliesToOthers(t *testing.T) {
	gen := &fakeGenerator{reply: "sure thing"}
	app := chatApp(gen)
	app.me.Store(&tele.User{ID: 424242})

	_, err := app.chat.Ask(context.Background(), 10, "hi")
	require.NoError(t, err)

	msg := &tele.Message{
		Text:    "not for the bot",
		ReplyTo: &tele.Message{Sender: &tele.User{ID: 5}},
	}
	c := newStubContext(10, msg)
	require.NoError(t, app.observeChat(c))
	assert.Len(t, gen.seen, 1)
	assert.Empty(t, c.sends)
}

func TestObserveChatNoopBeforeStartup(t *testing.T) {
	gen := &fakeGenerator{reply: "sure thing"}
	app := chatApp(gen)

	msg := &tele.Message{
		Text:    "hello?",
		ReplyTo: &tele.Message{Sender: &tele.User{ID: 424242}},
	}
	c := newStubContext(10, msg)
	require.NoError(t, app.observeChat(c))
	assert.Empty(t, gen.seen)
	assert.Empty(t, c.sends)
}
