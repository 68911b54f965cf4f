package router

import (
	"time"

	tg "animedrive/core/telegram"
	"animedrive/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// InlineRoute returns a route for inline queries. With no handler
// registered the query is answered with an empty result set so the
// client spinner does not hang.
func InlineRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Query() == nil {
			return nil
		}
		h := reg.InlineHandler()
		if h == nil {
			return handleWithSummary(c, "inline.none", start, "skip", "ok", func() error {
				return c.Answer(&tele.QueryResponse{Results: tele.Results{}, CacheTime: 10})
			})
		}
		return handleWithSummary(c, "inline", start, "", "", func() error {
			return h(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnQuery,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
