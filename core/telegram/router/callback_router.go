package router

import (
	"time"

	tg "animedrive/core/telegram"
	"animedrive/core/telegram/callbacks"
	"animedrive/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that parses the colon grammar and
// routes callbacks through the registry. Unknown handler names and
// arity mismatches both go to the not-found fallback.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		fallback := func(reason string) error {
			h := reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
			extras := []slog.Attr{
				slog.String("cb_key", "unknown"),
				slog.String("outcome", reason),
			}
			return handleWithSummary(c, "callback.unknown", start, "skip", reason, func() error {
				if h != nil {
					return h(c)
				}
				return nil
			}, extras...)
		}

		data, err := callbacks.Parse(cb.Data)
		if err != nil {
			return fallback("malformed")
		}

		spec, ok := reg.Callback(data.Name)
		if !ok {
			return fallback("not_found")
		}
		if spec.Arity >= 0 && len(data.Params) != spec.Arity {
			return fallback("arity_mismatch")
		}

		name := "callback." + normalizeHandlerName(data.Name)
		return handleWithSummary(c, name, start, "", "", func() error {
			return spec.Handler(c, data.Params)
		}, slog.String("cb_key", data.Name))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
