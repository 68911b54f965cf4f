package bot

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"animedrive/core/buildinfo"
	"animedrive/core/deeplink"
	"animedrive/core/logger"
	"animedrive/core/session"
	coretelegram "animedrive/core/telegram"
	"animedrive/core/telegram/access"
	"animedrive/core/telegram/callbacks"
	"animedrive/core/telegram/commands"
	"animedrive/core/telegram/format"
	tghelpers "animedrive/core/telegram/helpers"
	"animedrive/core/telegram/keyboard"
)

// pendingJoin remembers the deep link a user followed before passing
// the gate, so the retry button can resume the delivery.
type pendingJoin struct {
	SeriesID string
}

const listHandler = "list"

func (a *App) buildRegistry() (*coretelegram.Registry, error) {
	reg := coretelegram.NewRegistry()

	cmds := map[string]commands.Command{
		"/start": {
			Handler:     a.handleStart,
			Description: "Start the bot",
		},
		"/help": {
			Handler:     a.handleHelp,
			Description: "How to use the bot",
		},
		"/anime": {
			Handler:     a.handleAnime,
			Description: "Search the library",
			Gated:       true,
			Aliases:     []string{"/search"},
		},
		"/list": {
			Handler:     a.handleList,
			Description: "Browse everything we have",
		},
		"/request": {
			Handler:     a.handleRequest,
			Description: "Ask for a title we are missing",
			Gated:       true,
		},
		"/ai": {
			Handler:     a.handleAI,
			Description: "Chat with the AI companion",
			Gated:       true,
			Aliases:     []string{"/chat"},
		},
		"/uploadanime": {
			Handler:     a.handleUpload,
			Description: "Register a new title",
			AdminOnly:   true,
			Hidden:      true,
			Aliases:     []string{"/upload"},
		},
		"/ping": {
			Handler:     a.handlePing,
			Description: "Round-trip check",
			Hidden:      true,
		},
		"/uptime": {
			Handler:     a.handleUptime,
			Description: "Process uptime",
			AdminOnly:   true,
			Hidden:      true,
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return nil, err
		}
	}

	if err := reg.RegisterCallback(access.RetryHandler, coretelegram.CallbackSpec{
		Arity: 1,
		Handler: func(c tele.Context, _ callbacks.Params) error {
			return a.gate.Retry(c, a.afterGateConfirmed)
		},
	}); err != nil {
		return nil, err
	}
	if err := reg.RegisterCallback(listHandler, coretelegram.CallbackSpec{
		Arity: 1,
		Handler: func(c tele.Context, params callbacks.Params) error {
			page, err := params.Int(0)
			if err != nil {
				return err
			}
			return a.sendListPage(c, page, true)
		},
	}); err != nil {
		return nil, err
	}

	if err := reg.RegisterDeepLink(deeplink.KindContentJoin, a.handleJoinLink); err != nil {
		return nil, err
	}

	if err := reg.AddMessageObserver("upload", a.observeUpload); err != nil {
		return nil, err
	}
	if err := reg.AddMessageObserver("request", a.observeRequest); err != nil {
		return nil, err
	}
	if err := reg.AddMessageObserver("chat", a.observeChat); err != nil {
		return nil, err
	}

	reg.SetInlineHandler(a.handleInline)
	reg.SetTextFallback(a.handleUnknownText)

	return reg, nil
}

func (a *App) handleStart(c tele.Context) error {
	if sender := c.Sender(); sender != nil {
		ctx := tghelpers.BuildContext(c)
		if err := a.store.TouchUser(ctx, sender.ID, sender.Username); err != nil {
			logger.LogEvent(ctx, logger.Catalog, slog.LevelWarn, "user.touch.fail",
				slog.Int64("user_id", sender.ID),
				slog.String("err", err.Error()),
			)
		}
	}
	return tghelpers.SendMD(c, "👋 *Welcome!*\n\n"+
		"I deliver anime straight to your chat.\n\n"+
		"• /anime <name> to search the library\n"+
		"• /list to browse everything\n"+
		"• /request if we are missing something\n"+
		"• /ai to chat with the AI companion")
}

func (a *App) handleHelp(c tele.Context) error {
	cmds := a.registry.Commands()

	// "/help anime" shows a single command in detail.
	if msg := c.Message(); msg != nil && strings.TrimSpace(msg.Payload) != "" {
		topic := "/" + strings.TrimPrefix(strings.TrimSpace(msg.Payload), "/")
		if name, cmd, ok := a.registry.LookupCommand(topic); ok && !cmd.Hidden && !cmd.AdminOnly {
			return tghelpers.SendMD(c, fmt.Sprintf("*%s*\n%s", name, cmd.Description))
		}
		return tghelpers.SendMD(c, fmt.Sprintf("🤷 I don't know *%s*.",
			format.EscapeMarkdown(format.Truncate(topic, 32))))
	}

	names := make([]string, 0, len(cmds))
	for name, cmd := range cmds {
		if cmd.Hidden || cmd.AdminOnly || cmd.Description == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("ℹ️ *Commands*\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%s - %s\n", name, cmds[name].Description)
	}
	b.WriteString("\nEpisodes are deleted a while after delivery, so save them!")
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleAnime(c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	query := strings.TrimSpace(msg.Payload)
	if query == "" {
		markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
			{Text: "🔍 Search inline", InlineQueryChat: " "},
		}}}
		return tghelpers.SendMD(c, animeUsage, markup)
	}

	ctx := tghelpers.BuildContext(c)
	results, err := a.anime.Search(ctx, query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		suggestions := a.anime.Suggestions(ctx, query)
		return tghelpers.SendMD(c, NoMatchText(query, suggestions))
	}

	buttons := make([]keyboard.InlineBtn, len(results))
	for i, r := range results {
		buttons[i] = keyboard.InlineBtn{Text: "🎬 " + r.Title, URL: r.URL}
	}
	text := fmt.Sprintf("✨ Found %d match(es) for *%s*. Tap one to receive it:",
		len(results), format.EscapeMarkdown(format.Truncate(query, 64)))
	return tghelpers.SendMD(c, text, keyboard.Inline(buttons...))
}

func (a *App) handleJoinLink(c tele.Context, p deeplink.Payload) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	ok, missing := a.gate.Allow(ctx, sender.ID)
	if !ok {
		a.sessions.Put(session.FlowSearch, sender.ID, pendingJoin{SeriesID: p.SubjectID}, a.cfg.SessionTTL())
		return a.gate.Prompt(c, missing)
	}
	return a.startDelivery(c, p.SubjectID)
}

func (a *App) afterGateConfirmed(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	// The onboarding prompt has served its purpose.
	_ = c.Delete()
	if v, ok := a.sessions.Get(session.FlowSearch, sender.ID); ok {
		a.sessions.Remove(session.FlowSearch, sender.ID)
		if pj, ok := v.(pendingJoin); ok {
			return a.startDelivery(c, pj.SeriesID)
		}
	}
	return tghelpers.SendMD(c, "🎉 You're all set! Try /anime <name> to get started.")
}

// startDelivery kicks off the paced send in the background; the paced
// run can take minutes and must not block update handling.
func (a *App) startDelivery(c tele.Context, seriesID string) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	chatID := chat.ID
	ctx := logger.Background()
	go func() {
		job, err := a.anime.Deliver(ctx, chatID, seriesID)
		if err != nil {
			logger.LogEvent(ctx, logger.Delivery, slog.LevelError, "delivery.start.fail",
				slog.Int64("chat_id", chatID),
				slog.String("series_id", seriesID),
				slog.String("err", err.Error()),
			)
			_ = c.Send("😔 Couldn't deliver that right now. Please try the link again later.")
			return
		}
		logger.LogEvent(ctx, logger.Delivery, slog.LevelInfo, "delivery.started",
			slog.String("job_id", job.ID),
			slog.Int64("chat_id", chatID),
			slog.String("series_id", seriesID),
		)
	}()
	return nil
}

func (a *App) handleList(c tele.Context) error {
	return a.sendListPage(c, 1, false)
}

func (a *App) sendListPage(c tele.Context, page int, edit bool) error {
	ctx := tghelpers.BuildContext(c)
	lp, err := a.list.Page(ctx, page)
	if err != nil {
		return err
	}

	var nav []keyboard.InlineBtn
	if lp.HasPrev {
		nav = append(nav, keyboard.InlineBtn{
			Text:    "⬅️ Prev",
			Handler: listHandler,
			Params:  []string{strconv.Itoa(lp.Page - 1)},
		})
	}
	if lp.HasNext {
		nav = append(nav, keyboard.InlineBtn{
			Text:    "Next ➡️",
			Handler: listHandler,
			Params:  []string{strconv.Itoa(lp.Page + 1)},
		})
	}
	var markup *tele.ReplyMarkup
	if len(nav) > 0 {
		markup = keyboard.InlineRows(nav)
	}

	if edit {
		if markup != nil {
			return tghelpers.EditOrSendMD(c, lp.Text, markup)
		}
		return tghelpers.EditOrSendMD(c, lp.Text)
	}
	if markup != nil {
		return tghelpers.SendMD(c, lp.Text, markup)
	}
	return tghelpers.SendMD(c, lp.Text)
}

func (a *App) handleRequest(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	msg, open := a.request.Begin(sender.ID)
	if open {
		return tghelpers.SendMD(c, msg, keyboard.ForceReply())
	}
	return tghelpers.SendMD(c, msg)
}

func (a *App) handleAI(c tele.Context) error {
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	chunks, err := a.chat.Ask(ctx, sender.ID, msg.Payload)
	if err != nil {
		return tghelpers.SendMD(c, "🤖 The AI companion is unavailable right now. Try again in a bit.")
	}
	for _, chunk := range chunks {
		if err := tghelpers.SendText(c, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) handleUpload(c tele.Context) error {
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, err := a.upload.Begin(ctx, sender.ID, msg.Payload)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, reply)
}

func (a *App) observeUpload(c tele.Context) error {
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	if fileID, msgID, ok := mediaRef(msg); ok {
		reply, handled := a.upload.HandleFile(ctx, sender.ID, msg.Chat.ID,
			a.cfg.Core.Telegram.StorageGroupID, fileID, msgID)
		if handled {
			return tghelpers.ReplyMD(c, reply)
		}
		return nil
	}

	if text := c.Text(); text != "" {
		reply, handled, err := a.upload.HandleText(ctx, sender.ID, text)
		if err != nil {
			return err
		}
		if handled {
			return tghelpers.SendMD(c, reply)
		}
	}
	return nil
}

func mediaRef(msg *tele.Message) (fileID string, messageID int, ok bool) {
	switch {
	case msg.Document != nil:
		return msg.Document.FileID, msg.ID, true
	case msg.Video != nil:
		return msg.Video.FileID, msg.ID, true
	}
	return "", 0, false
}

func (a *App) observeRequest(c tele.Context) error {
	sender := c.Sender()
	text := c.Text()
	if sender == nil || text == "" {
		return nil
	}
	adminMsg, userReply, handled := a.request.HandleText(sender.ID, sender.Username, text)
	if !handled {
		return nil
	}
	if gid := a.cfg.Core.Telegram.AdminGroupID; gid != 0 {
		if _, err := c.Bot().Send(tele.ChatID(gid), adminMsg); err != nil {
			logger.TG.Warn("request relay failed",
				slog.String("event", "request.relay.fail"),
				slog.Int64("user_id", sender.ID),
				slog.String("err", err.Error()),
			)
		}
	}
	return tghelpers.SendMD(c, userReply)
}

// observeChat continues an AI conversation when the user replies to the
// bot's previous answer, without requiring /ai again.
func (a *App) observeChat(c tele.Context) error {
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil || msg.ReplyTo == nil {
		return nil
	}
	me := a.me.Load()
	if me == nil || msg.ReplyTo.Sender == nil || msg.ReplyTo.Sender.ID != me.ID {
		return nil
	}
	if _, active := a.sessions.Get(session.FlowChat, sender.ID); !active {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	chunks, err := a.chat.Ask(ctx, sender.ID, msg.Text)
	if err != nil {
		return tghelpers.SendMD(c, "🤖 The AI companion is unavailable right now. Try again in a bit.")
	}
	for _, chunk := range chunks {
		if err := tghelpers.SendText(c, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) handleInline(c tele.Context) error {
	q := c.Query()
	if q == nil {
		return nil
	}
	query := strings.TrimSpace(q.Text)
	if query == "" {
		return c.Answer(&tele.QueryResponse{Results: tele.Results{}, CacheTime: 10})
	}

	ctx := tghelpers.BuildContext(c)
	hits, err := a.anime.Search(ctx, query)
	if err != nil {
		return err
	}
	results := make(tele.Results, 0, len(hits))
	for i, hit := range hits {
		article := &tele.ArticleResult{
			Title:       hit.Title,
			Description: "Tap to get the link",
			Text:        fmt.Sprintf("🎬 *%s*\n%s", hit.Title, hit.URL),
		}
		article.SetResultID(strconv.Itoa(i))
		results = append(results, article)
	}
	return c.Answer(&tele.QueryResponse{Results: results, CacheTime: 30})
}

func (a *App) handleUnknownText(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || chat.Type != tele.ChatPrivate {
		return nil
	}
	// Unknown commands get the full menu instead of a shrug.
	if strings.HasPrefix(c.Text(), "/") {
		return a.handleHelp(c)
	}
	return tghelpers.SendMD(c, "🤔 I didn't get that. Try /help.")
}

func (a *App) handlePing(c tele.Context) error {
	start := time.Now()
	msg, err := c.Bot().Send(c.Chat(), "🏓 ...")
	if err != nil {
		return err
	}
	took := time.Since(start).Round(time.Millisecond)
	_, err = c.Bot().Edit(msg, fmt.Sprintf("🏓 pong (%s)", took))
	return err
}

func (a *App) handleUptime(c tele.Context) error {
	up := time.Since(a.startedAt).Round(time.Second)
	return tghelpers.SendMD(c, fmt.Sprintf("⏱ Uptime: %s\nVersion: %s (%s)",
		up, buildinfo.Version, buildinfo.Commit))
}
