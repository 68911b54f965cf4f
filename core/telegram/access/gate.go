package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"animedrive/core/logger"
	tghelpers "animedrive/core/telegram/helpers"
	"animedrive/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// RetryHandler is the callback handler name for the gate's try-again
// button; its single param is always RetryParam.
const (
	RetryHandler = "gate"
	RetryParam   = "retry"
)

// Channel is one membership requirement.
type Channel struct {
	ID        int64
	Title     string
	InviteURL string
}

// MembershipChecker answers whether a user belongs to a channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, channelID, userID int64) (bool, error)
}

// Options configures a Gate.
type Options struct {
	Channels []Channel
	// CheckTimeout bounds each membership lookup; default 5s.
	CheckTimeout time.Duration
	// PromptText heads the onboarding prompt.
	PromptText string
	// RetryText labels the try-again button.
	RetryText string
}

// Gate decides whether a user may reach gated handlers. Every decision
// fails closed: an unreachable checker denies access, it never grants it.
type Gate struct {
	checker MembershipChecker
	opts    Options
}

func NewGate(checker MembershipChecker, opts Options) *Gate {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 5 * time.Second
	}
	if opts.PromptText == "" {
		opts.PromptText = "Join the channels below to use the bot, then tap the button to verify."
	}
	if opts.RetryText == "" {
		opts.RetryText = "✅ I joined, check again"
	}
	return &Gate{checker: checker, opts: opts}
}

// Allow checks every required channel and reports the ones the user is
// missing. A check error counts the channel as missing.
func (g *Gate) Allow(ctx context.Context, userID int64) (bool, []Channel) {
	if len(g.opts.Channels) == 0 {
		return true, nil
	}
	var missing []Channel
	for _, ch := range g.opts.Channels {
		checkCtx, cancel := context.WithTimeout(ctx, g.opts.CheckTimeout)
		ok, err := g.checker.IsMember(checkCtx, ch.ID, userID)
		cancel()
		if err != nil {
			logger.LogEvent(ctx, logger.Access, slog.LevelWarn, "gate.check.fail",
				slog.Int64("chat_id", ch.ID),
				slog.Int64("user_id", userID),
				slog.String("err", logger.Sanitize(err.Error())),
			)
			missing = append(missing, ch)
			continue
		}
		if !ok {
			missing = append(missing, ch)
		}
	}
	if len(missing) > 0 {
		logger.LogEvent(ctx, logger.Access, slog.LevelInfo, "gate.denied",
			slog.Int64("user_id", userID),
			slog.Int("count", len(missing)),
		)
		return false, missing
	}
	return true, nil
}

// Prompt sends the onboarding message with a join button per missing
// channel and a single try-again button.
func (g *Gate) Prompt(c tele.Context, missing []Channel) error {
	rows := make([][]keyboard.InlineBtn, 0, len(missing)+1)
	for _, ch := range missing {
		title := ch.Title
		if title == "" {
			title = "Required channel"
		}
		rows = append(rows, []keyboard.InlineBtn{{Text: "📢 " + title, URL: ch.InviteURL}})
	}
	rows = append(rows, []keyboard.InlineBtn{{
		Text:    g.opts.RetryText,
		Handler: RetryHandler,
		Params:  []string{RetryParam},
	}})
	return c.Send(g.opts.PromptText, keyboard.InlineRows(rows...))
}

// Middleware wraps a handler so it only runs for members of every
// required channel; everyone else gets the onboarding prompt.
func (g *Gate) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		ok, missing := g.Allow(ctx, sender.ID)
		if !ok {
			return g.Prompt(c, missing)
		}
		return next(c)
	}
}

// Retry re-runs the check from the try-again button. A failed retry
// only answers the callback with a short hint; the prompt the button
// lives on stays as it is.
func (g *Gate) Retry(c tele.Context, confirmed tele.HandlerFunc) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	ok, _ := g.Allow(ctx, sender.ID)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "Not all channels joined yet"})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Access confirmed"}); err != nil {
		return err
	}
	if confirmed != nil {
		return confirmed(c)
	}
	return nil
}

// TelebotChecker implements MembershipChecker on the Bot API.
type TelebotChecker struct {
	Bot *tele.Bot
}

func (t TelebotChecker) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	if t.Bot == nil {
		return false, fmt.Errorf("access: nil bot")
	}
	type result struct {
		member *tele.ChatMember
		err    error
	}
	done := make(chan result, 1)
	go func() {
		m, err := t.Bot.ChatMemberOf(&tele.Chat{ID: channelID}, &tele.User{ID: userID})
		done <- result{member: m, err: err}
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return false, r.err
		}
		switch r.member.Role {
		case tele.Creator, tele.Administrator, tele.Member:
			return true, nil
		}
		return false, nil
	}
}
