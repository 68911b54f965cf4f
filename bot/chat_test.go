package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"animedrive/bot/providers/aichat"
	"animedrive/core/session"
)

type fakeGenerator struct {
	reply string
	err   error
	seen  [][]aichat.Turn
}

func (g *fakeGenerator) Generate(_ context.Context, turns []aichat.Turn) (string, error) {
	copied := make([]aichat.Turn, len(turns))
	copy(copied, turns)
	g.seen = append(g.seen, copied)
	return g.reply, g.err
}

func TestChatKeepsHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "hello there"}
	f := NewChatFlow(gen, session.NewStore(), time.Minute, 10)

	chunks, err := f.Ask(context.Background(), 10, "hi")
	require.NoError(t, err)
	require.Equal(t, []string{"hello there"}, chunks)

	_, err = f.Ask(context.Background(), 10, "and again")
	require.NoError(t, err)

	require.Len(t, gen.seen, 2)
	second := gen.seen[1]
	require.Len(t, second, 3)
	require.Equal(t, aichat.RoleUser, second[0].Role)
	require.Equal(t, "hi", second[0].Text)
	require.Equal(t, aichat.RoleModel, second[1].Role)
	require.Equal(t, "and again", second[2].Text)
}

func TestChatClearForgetsHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	f := NewChatFlow(gen, session.NewStore(), time.Minute, 10)

	_, err := f.Ask(context.Background(), 10, "remember this")
	require.NoError(t, err)

	chunks, err := f.Ask(context.Background(), 10, "clear")
	require.NoError(t, err)
	require.Contains(t, chunks[0], "cleared")

	_, err = f.Ask(context.Background(), 10, "fresh start")
	require.NoError(t, err)
	require.Len(t, gen.seen[len(gen.seen)-1], 1)
}

func TestChatErrorLeavesHistoryIntact(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	f := NewChatFlow(gen, session.NewStore(), time.Minute, 10)

	_, err := f.Ask(context.Background(), 10, "hi")
	require.Error(t, err)

	// Failed turn is not persisted: the next attempt starts clean.
	gen.err = nil
	gen.reply = "ok"
	_, err = f.Ask(context.Background(), 10, "hi again")
	require.NoError(t, err)
	require.Len(t, gen.seen[len(gen.seen)-1], 1)
}

func TestChatUsageOnEmpty(t *testing.T) {
	gen := &fakeGenerator{}
	f := NewChatFlow(gen, session.NewStore(), time.Minute, 10)

	chunks, err := f.Ask(context.Background(), 10, "   ")
	require.NoError(t, err)
	require.Contains(t, chunks[0], "/ai")
	require.Empty(t, gen.seen)
}

func TestChatHistoryIsPerUser(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	f := NewChatFlow(gen, session.NewStore(), time.Minute, 10)

	_, err := f.Ask(context.Background(), 10, "user ten talking")
	require.NoError(t, err)
	_, err = f.Ask(context.Background(), 20, "user twenty talking")
	require.NoError(t, err)
	require.Len(t, gen.seen[1], 1)
}
