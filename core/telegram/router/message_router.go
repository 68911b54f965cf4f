package router

import (
	"strings"
	"time"

	tg "animedrive/core/telegram"
	"animedrive/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions controls fallback behaviour for plain messages.
type MessageOptions struct {
	UnknownText tele.HandlerFunc
	// Commands carries the gate and admin options so commands arriving
	// as plain text run the exact chain their own route uses.
	Commands CommandRouteOptions
}

// MessageRoutes builds the routes for text, document and video updates.
// Plain messages are broadcast to every registered observer; one
// observer failing never stops the others.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		// Text that names a registered command (or alias) still routes
		// to that command, covering clients that send it as plain text
		// or with odd casing. The dispatch goes through the same chain
		// as the command endpoint so gating and admin checks hold.
		// Unknown commands skip the observer broadcast and go straight
		// to the fallback.
		if strings.HasPrefix(text, "/") {
			if key, cmd, ok := reg.LookupCommand(strings.Fields(text)[0]); ok && cmd.Handler != nil {
				return commandChain(reg, key, cmd, opts.Commands)(c)
			}
		} else if broadcast(c, reg, start) {
			return nil
		}

		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "fallback", start, "", "", func() error {
				return fb(c)
			})
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if broadcast(c, reg, start) {
			return nil
		}
		logHandlerSummary(c, "unexpected_media", start, "skip", "ok", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnDocument, Handler: wrap(mediaHandler)},
		{Endpoint: tele.OnVideo, Handler: wrap(mediaHandler)},
	}
}

// broadcast delivers the update to every observer and reports whether
// any were registered. Observer errors are logged and isolated.
func broadcast(c tele.Context, reg *tg.Registry, start time.Time) bool {
	observers := reg.MessageObservers()
	if len(observers) == 0 {
		return false
	}
	for _, o := range observers {
		name := "observer." + normalizeHandlerName(o.Name)
		if err := o.Handler(c); err != nil {
			logHandlerSummary(c, name, start, "fail", "fail", err)
			continue
		}
	}
	logHandlerSummary(c, "observers", start, "ok", "ok", nil,
		slog.Int("count", len(observers)))
	return true
}
