package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"animedrive/core/deeplink"
	"animedrive/core/logger"
	tg "animedrive/core/telegram"
	"animedrive/core/telegram/access"
	"animedrive/core/telegram/commands"
	tghelpers "animedrive/core/telegram/helpers"
	"animedrive/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	// Gate wraps commands registered as gated; nil disables gating.
	Gate *access.Gate
}

// CommandRoutes prepares one route per registered command, wrapped in
// the shared middleware chain. The /start route additionally resolves
// deep-link payloads before falling back to its plain handler.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for cmd, def := range cmds {
		h := middleware.RecoverMiddleware(middleware.LoggerMiddleware(commandChain(reg, cmd, def, opts)))
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
	}

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackNames())),
	)

	return routes
}

// commandChain builds the dispatch chain for one command: the summary
// log plus whatever gate and admin guards its registration asks for.
// Every path that dispatches a command must go through this, whether
// the update arrived on the command endpoint or as plain text. Recover
// and logger wrapping stay with the route that mounts the chain.
func commandChain(reg *tg.Registry, key string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	base := def.Handler
	if key == "/start" {
		base = withDeepLinks(reg, base)
	}
	h := summarized(normalizeHandlerName(key), base)
	if def.Gated && opts.Gate != nil {
		h = opts.Gate.Middleware(h)
	}
	if def.AdminOnly {
		h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
			AdminID:  opts.AdminID,
			OnReject: opts.OnAdminReject,
		})(h)
	}
	return h
}

func summarized(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		return handleWithSummary(c, name, start, "", "", func() error {
			return h(c)
		})
	}
}

// invalidLinkText is the reply for /start payloads that fail to decode.
const invalidLinkText = "⚠️ That link is invalid or has expired. Grab a fresh one with /anime."

// withDeepLinks decodes the /start payload and dispatches it to the
// registered deep-link handler. A payload that fails to decode gets an
// invalid-link reply; a decoded kind with no registered handler falls
// back to the plain /start behaviour after a warn line.
func withDeepLinks(reg *tg.Registry, base tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg := c.Message()
		if msg == nil {
			return base(c)
		}
		token := strings.TrimSpace(msg.Payload)
		if token == "" {
			return base(c)
		}

		p, err := deeplink.Decode(token)
		if err != nil {
			logger.Warn(tghelpers.BuildContext(c), "tg", "deeplink.reject",
				slog.String("payload", logger.SanitizeLimit(token, 64)),
				slog.String("err", err.Error()),
			)
			return c.Send(invalidLinkText)
		}
		h, ok := reg.DeepLink(p.Kind)
		if !ok {
			logger.Warn(tghelpers.BuildContext(c), "tg", "deeplink.unhandled",
				slog.String("payload", string(p.Kind)),
			)
			return base(c)
		}
		return h(c, p)
	}
}
