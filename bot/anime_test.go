package bot

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"animedrive/bot/catalog"
	"animedrive/core/deeplink"
	"animedrive/core/delivery"
)

type fakeDeliverer struct {
	dest  int64
	items []delivery.Item
}

func (d *fakeDeliverer) Deliver(_ context.Context, dest int64, items []delivery.Item) (*delivery.Job, error) {
	d.dest = dest
	d.items = items
	return &delivery.Job{}, nil
}

func TestSearchBuildsDeepLinks(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), catalog.Series{
		ID:       "11111111-2222-3333-4444-555555555555",
		Slug:     "one_piece",
		Episodes: []catalog.Episode{{Seq: 1, FileID: "f1"}},
	}))
	flow := NewAnimeFlow(store, &fakeDeliverer{}, nil, "animedrivebot")

	results, err := flow.Search(context.Background(), "one piece")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "One Piece", results[0].Title)
	require.True(t, strings.HasPrefix(results[0].URL, "https://t.me/animedrivebot?start="))

	u, err := url.Parse(results[0].URL)
	require.NoError(t, err)
	payload, err := deeplink.Decode(u.Query().Get("start"))
	require.NoError(t, err)
	require.Equal(t, deeplink.KindContentJoin, payload.Kind)
	require.Equal(t, "11111111-2222-3333-4444-555555555555", payload.SubjectID)
}

func TestDeliverBuildsOrderedItems(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), catalog.Series{
		ID:   "abc",
		Slug: "frieren",
		Episodes: []catalog.Episode{
			{Seq: 1, FileID: "f1"},
			{Seq: 2, FileID: ""},
			{Seq: 3, FileID: "f3"},
		},
	}))
	sink := &fakeDeliverer{}
	flow := NewAnimeFlow(store, sink, nil, "animedrivebot")

	_, err := flow.Deliver(context.Background(), 777, "abc")
	require.NoError(t, err)
	require.Equal(t, int64(777), sink.dest)
	require.Len(t, sink.items, 3)
	for i, it := range sink.items {
		require.Equal(t, i+1, it.Seq)
	}
	require.Equal(t, "f1", sink.items[0].SourceRef)
	require.Equal(t, "msg:0", sink.items[1].SourceRef)
	require.Contains(t, sink.items[2].Caption, "Episode 003")
	require.Contains(t, sink.items[0].Caption, "Frieren")
}

func TestDeliverMovieCaption(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), catalog.Series{
		ID:       "mv",
		Slug:     "akira",
		IsMovie:  true,
		Episodes: []catalog.Episode{{Seq: 1, FileID: "f1"}},
	}))
	sink := &fakeDeliverer{}
	flow := NewAnimeFlow(store, sink, nil, "animedrivebot")

	_, err := flow.Deliver(context.Background(), 777, "mv")
	require.NoError(t, err)
	require.Contains(t, sink.items[0].Caption, "🎬 Akira")
	require.NotContains(t, sink.items[0].Caption, "Episode")
}

func TestDeliverUnknownSeries(t *testing.T) {
	flow := NewAnimeFlow(newMemStore(), &fakeDeliverer{}, nil, "animedrivebot")
	_, err := flow.Deliver(context.Background(), 777, "missing")
	require.Error(t, err)
}

func TestDeliverEmptySeries(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), catalog.Series{ID: "e", Slug: "empty_show"}))
	flow := NewAnimeFlow(store, &fakeDeliverer{}, nil, "animedrivebot")
	_, err := flow.Deliver(context.Background(), 777, "e")
	require.Error(t, err)
}

func TestNoMatchText(t *testing.T) {
	text := NoMatchText("naruto", []string{"Naruto", "Naruto Shippuden"})
	require.Contains(t, text, "naruto")
	require.Contains(t, text, "Did you mean")
	require.Contains(t, text, "• Naruto Shippuden")
	require.Contains(t, text, "/request")

	text = NoMatchText("naruto", nil)
	require.NotContains(t, text, "Did you mean")
}
