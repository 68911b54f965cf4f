package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"animedrive/bot/providers/aichat"
	"animedrive/core/logger"
	"animedrive/core/session"
)

// Generator produces a model reply for a conversation transcript.
type Generator interface {
	Generate(ctx context.Context, turns []aichat.Turn) (string, error)
}

// ChatFlow keeps a per-user conversation with the AI provider. History
// lives in the session store, so it expires together with the session.
type ChatFlow struct {
	gen          Generator
	sessions     *session.Store
	ttl          time.Duration
	historyLimit int
}

func NewChatFlow(gen Generator, sessions *session.Store, ttl time.Duration, historyLimit int) *ChatFlow {
	return &ChatFlow{gen: gen, sessions: sessions, ttl: ttl, historyLimit: historyLimit}
}

const chatUsage = "💬 Usage: `/ai <message>`\n\nSend `/ai clear` to forget the conversation."

// Ask sends one user message and returns the model reply, split into
// Telegram-sized chunks.
func (f *ChatFlow) Ask(ctx context.Context, owner int64, text string) ([]string, error) {
	if f.gen == nil {
		return []string{"🤖 The AI companion is not configured on this bot."}, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{chatUsage}, nil
	}
	if strings.EqualFold(text, "clear") {
		f.sessions.Remove(session.FlowChat, owner)
		return []string{"🧹 Conversation cleared."}, nil
	}

	history := f.history(owner).Append(aichat.RoleUser, text)
	reply, err := f.gen.Generate(ctx, history.Turns)
	if err != nil {
		logger.LogEvent(ctx, logger.Providers, slog.LevelWarn, "chat.generate.fail",
			slog.Int64("user_id", owner),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	history = history.Append(aichat.RoleModel, reply)
	f.sessions.Put(session.FlowChat, owner, history, f.ttl)
	return aichat.SplitMessage(reply, 0), nil
}

func (f *ChatFlow) history(owner int64) aichat.History {
	if v, ok := f.sessions.Get(session.FlowChat, owner); ok {
		if h, ok := v.(aichat.History); ok {
			return h
		}
	}
	return aichat.History{Limit: f.historyLimit}
}
