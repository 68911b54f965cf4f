package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"animedrive/bot/catalog"
	"animedrive/bot/providers/anilist"
	"animedrive/core/deeplink"
	"animedrive/core/delivery"
	"animedrive/core/logger"
	"animedrive/core/telegram/format"
)

const animeUsage = "🔍 Usage: `/anime <name>`\n\nOr tap the button below to search inline."

// Deliverer starts a paced delivery run; satisfied by *delivery.Pipeline.
type Deliverer interface {
	Deliver(ctx context.Context, dest int64, items []delivery.Item) (*delivery.Job, error)
}

// Suggester looks up titles on an external metadata source; satisfied
// by *anilist.Client.
type Suggester interface {
	Search(ctx context.Context, query string, limit int) ([]anilist.Media, error)
}

// SearchResult is one catalog hit, ready to render as a deep link button.
type SearchResult struct {
	Title string
	URL   string
}

// AnimeFlow resolves catalog searches into deep links and turns a
// followed deep link into a delivery run.
type AnimeFlow struct {
	store    SeriesStore
	pipeline Deliverer
	suggest  Suggester
	botName  string
}

func NewAnimeFlow(store SeriesStore, pipeline Deliverer, suggest Suggester, botName string) *AnimeFlow {
	return &AnimeFlow{store: store, pipeline: pipeline, suggest: suggest, botName: botName}
}

// Bind attaches the pieces that only exist once the bot has started.
// It must be called before the first update is served.
func (f *AnimeFlow) Bind(pipeline Deliverer, botName string) {
	f.pipeline = pipeline
	f.botName = botName
}

// Search matches the local catalog. Every hit carries a t.me start link
// that routes the user back through the join gate.
func (f *AnimeFlow) Search(ctx context.Context, query string) ([]SearchResult, error) {
	series, err := f.store.Search(ctx, query, 10)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	results := make([]SearchResult, 0, len(series))
	for _, s := range series {
		token, err := deeplink.Encode(deeplink.Payload{
			Kind:      deeplink.KindContentJoin,
			SubjectID: s.ID,
			Hint:      deeplink.FitHint(deeplink.KindContentJoin, s.ID, s.Slug),
		})
		if err != nil {
			logger.LogEvent(ctx, logger.Catalog, slog.LevelWarn, "deeplink.encode.fail",
				slog.String("series_id", s.ID),
				slog.String("err", err.Error()),
			)
			continue
		}
		results = append(results, SearchResult{
			Title: catalog.DisplayName(s.Slug),
			URL:   fmt.Sprintf("https://t.me/%s?start=%s", f.botName, token),
		})
	}
	return results, nil
}

// Suggestions asks the external metadata source for close titles. Used
// when the local catalog has no match, so the user knows what to request.
func (f *AnimeFlow) Suggestions(ctx context.Context, query string) []string {
	if f.suggest == nil {
		return nil
	}
	media, err := f.suggest.Search(ctx, query, 5)
	if err != nil {
		logger.LogEvent(ctx, logger.Providers, slog.LevelWarn, "anilist.suggest.fail",
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return nil
	}
	titles := make([]string, 0, len(media))
	for _, m := range media {
		titles = append(titles, m.Title)
	}
	return titles
}

// Deliver resolves a deep link subject and starts the paced send into
// the user's chat.
func (f *AnimeFlow) Deliver(ctx context.Context, chatID int64, seriesID string) (*delivery.Job, error) {
	series, err := f.store.GetByID(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("resolve series %s: %w", seriesID, err)
	}
	items := buildItems(series)
	if len(items) == 0 {
		return nil, fmt.Errorf("series %s has no deliverable episodes", series.Slug)
	}
	if f.pipeline == nil {
		return nil, fmt.Errorf("delivery pipeline not bound")
	}
	return f.pipeline.Deliver(ctx, chatID, items)
}

func buildItems(series catalog.Series) []delivery.Item {
	name := catalog.DisplayName(series.Slug)
	items := make([]delivery.Item, 0, len(series.Episodes))
	for i, ep := range series.Episodes {
		ref := ep.FileID
		if ref == "" {
			ref = fmt.Sprintf("msg:%d", ep.MessageID)
		}
		caption := fmt.Sprintf("🎞 %s\n📼 Episode %03d\n✨ Quality: 1080p", name, ep.Seq)
		if series.IsMovie {
			caption = fmt.Sprintf("🎬 %s\n✨ Quality: 1080p", name)
		}
		items = append(items, delivery.Item{
			Seq:       i + 1,
			SourceRef: ref,
			Caption:   caption,
		})
	}
	return items
}

// NoMatchText renders the miss message, folding in external suggestions
// when available.
func NoMatchText(query string, suggestions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "😕 Nothing in the library matched *%s*.\n", format.EscapeMarkdown(format.Truncate(query, 64)))
	if len(suggestions) > 0 {
		b.WriteString("\nDid you mean:\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "• %s\n", s)
		}
	}
	b.WriteString("\nUse /request to ask for it!")
	return b.String()
}
