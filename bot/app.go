// Package bot wires the anime library flows onto the reusable telegram
// core: catalog search with deep-link delivery, gated access, admin
// uploads, user requests and the AI chat companion.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	tele "gopkg.in/telebot.v4"

	"animedrive/bot/catalog"
	"animedrive/bot/providers/aichat"
	"animedrive/bot/providers/anilist"
	"animedrive/core/delivery"
	"animedrive/core/httpserver"
	"animedrive/core/logger"
	"animedrive/core/session"
	coretelegram "animedrive/core/telegram"
	"animedrive/core/telegram/access"
	"animedrive/core/telegram/router"
)

// lazyChecker defers membership checks to the bot instance, which only
// exists once the runtime has started.
type lazyChecker struct {
	bot atomic.Pointer[tele.Bot]
}

func (l *lazyChecker) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	b := l.bot.Load()
	if b == nil {
		return false, fmt.Errorf("access: bot not started yet")
	}
	return access.TelebotChecker{Bot: b}.IsMember(ctx, channelID, userID)
}

// App owns every flow and exposes the run options the core needs.
type App struct {
	cfg      *Config
	store    *catalog.Store
	sessions *session.Store

	checker *lazyChecker
	gate    *access.Gate
	// me is the bot's own identity, known once the runtime has started.
	me atomic.Pointer[tele.User]

	upload  *UploadFlow
	request *RequestFlow
	chat    *ChatFlow
	list    *ListFlow
	anime   *AnimeFlow

	registry *coretelegram.Registry
	health   *httpserver.Server
	sweeper  *cron.Cron

	startedAt time.Time
}

// NewApp assembles the application from loaded config and a connected
// database. Bot-dependent pieces are bound later in the OnStart hook.
func NewApp(cfg *Config, db *sqlx.DB) (*App, error) {
	store := catalog.NewStore(db)
	sessions := session.NewStore()

	checker := &lazyChecker{}
	channels := make([]access.Channel, 0, len(cfg.Access.Channels))
	for _, ch := range cfg.Access.Channels {
		channels = append(channels, access.Channel{
			ID:        ch.ID,
			Title:     ch.Title,
			InviteURL: ch.InviteURL,
		})
	}
	gate := access.NewGate(checker, access.Options{
		Channels:     channels,
		CheckTimeout: time.Duration(cfg.Access.CheckTimeoutSeconds) * time.Second,
	})

	var suggest Suggester
	if cfg.Providers.AniList.BaseURL != "" {
		suggest = anilist.NewClient(cfg.Providers.AniList.BaseURL)
	}

	var gen Generator
	if cfg.Providers.AIChat.APIKey != "" {
		gen = aichat.NewClient(aichat.Options{
			APIKey:  cfg.Providers.AIChat.APIKey,
			Model:   cfg.Providers.AIChat.Model,
			BaseURL: cfg.Providers.AIChat.BaseURL,
		})
	}

	app := &App{
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		checker:   checker,
		gate:      gate,
		upload:    NewUploadFlow(store, sessions, cfg.SessionTTL()),
		request:   NewRequestFlow(sessions, cfg.SessionTTL(), cfg.RequestCooldown()),
		chat:      NewChatFlow(gen, sessions, cfg.SessionTTL(), cfg.Providers.AIChat.HistoryLimit),
		list:      NewListFlow(store),
		anime:     NewAnimeFlow(store, nil, suggest, ""),
		health:    httpserver.New(cfg.Core.HTTP.Listen),
		startedAt: time.Now(),
	}

	reg, err := app.buildRegistry()
	if err != nil {
		return nil, fmt.Errorf("app: registry build failed: %w", err)
	}
	app.registry = reg
	return app, nil
}

// TelegramRunOptions exposes the composed runtime to the core runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	cmdOpts := router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.OwnerID,
		Gate:    a.gate,
	}
	routes := router.CommandRoutes(a.registry, cmdOpts)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a.registry, router.MessageOptions{Commands: cmdOpts})...)
	routes = append(routes, router.InlineRoute(a.registry))

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.checker.bot.Store(rt.Bot)

	transport := NewBotTransport(rt.Bot, a.cfg.Core.Telegram.StorageGroupID)
	pipeline := delivery.New(transport, delivery.SystemClock{}, delivery.Options{
		Pacing:    a.cfg.Pacing(),
		Retention: a.cfg.Retention(),
		Notices: delivery.Notices{
			Separator: "📤 *That's the lot!* Everything above is yours.",
			Retention: fmt.Sprintf("⏳ These messages self-destruct in %d minutes. Save them somewhere safe!",
				int(a.cfg.Retention().Minutes())),
			Removed: "🗑 The episodes above were removed. Use the link again if you need them back.",
		},
	})
	botName := ""
	if rt.Bot.Me != nil {
		a.me.Store(rt.Bot.Me)
		botName = rt.Bot.Me.Username
	}
	a.anime.Bind(pipeline, botName)

	go func() {
		if err := a.health.Start(ctx); err != nil {
			logger.HTTP.Error("health server stopped",
				slog.String("event", "http.fail"),
				slog.String("err", err.Error()),
			)
		}
	}()

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(a.cfg.Sessions.SweepSpec, func() {
		a.sessions.Sweep()
	}); err != nil {
		return fmt.Errorf("app: invalid sessions.sweep_spec %q: %w", a.cfg.Sessions.SweepSpec, err)
	}
	sweeper.Start()
	a.sweeper = sweeper

	if gid := a.cfg.Core.Telegram.AdminGroupID; gid != 0 {
		if _, err := rt.Bot.Send(tele.ChatID(gid), "✅ Bot is up."); err != nil {
			logger.TG.Warn("startup notice failed",
				slog.String("event", "startup.notice"),
				slog.String("err", err.Error()),
			)
		}
	}
	return nil
}

func (a *App) onStop(_ context.Context, _ coretelegram.Runtime) error {
	if a.sweeper != nil {
		stopCtx := a.sweeper.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
		}
	}
	return nil
}
