package bot

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"animedrive/bot/catalog"
	"animedrive/core/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SeriesStore for flow tests.
type memStore struct {
	bySlug map[string]catalog.Series
}

func newMemStore() *memStore {
	return &memStore{bySlug: map[string]catalog.Series{}}
}

func (m *memStore) Save(_ context.Context, s catalog.Series) error {
	m.bySlug[s.Slug] = s
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (catalog.Series, error) {
	for _, s := range m.bySlug {
		if s.ID == id {
			return s, nil
		}
	}
	return catalog.Series{}, catalog.ErrNotFound
}

func (m *memStore) GetBySlug(_ context.Context, slug string) (catalog.Series, error) {
	s, ok := m.bySlug[slug]
	if !ok {
		return catalog.Series{}, catalog.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Search(_ context.Context, query string, limit int) ([]catalog.Series, error) {
	needle := catalog.Slugify(query)
	var out []catalog.Series
	for _, slug := range m.sortedSlugs() {
		if strings.Contains(slug, needle) {
			out = append(out, m.bySlug[slug])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) List(_ context.Context, offset, limit int) ([]catalog.Series, error) {
	slugs := m.sortedSlugs()
	if offset > len(slugs) {
		offset = len(slugs)
	}
	end := offset + limit
	if limit <= 0 || end > len(slugs) {
		end = len(slugs)
	}
	var out []catalog.Series
	for _, slug := range slugs[offset:end] {
		out = append(out, m.bySlug[slug])
	}
	return out, nil
}

func (m *memStore) sortedSlugs() []string {
	slugs := make([]string, 0, len(m.bySlug))
	for slug := range m.bySlug {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func (m *memStore) Count(_ context.Context) (int, error) {
	return len(m.bySlug), nil
}

const storageGroup = int64(-500)

func newUploadFlow(t *testing.T) (*UploadFlow, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewUploadFlow(store, session.NewStore(), 30*time.Minute), store
}

func TestUploadHappyPath(t *testing.T) {
	ctx := context.Background()
	flow, store := newUploadFlow(t)
	const admin = int64(1)

	reply, err := flow.Begin(ctx, admin, "Bocchi the Rock")
	require.NoError(t, err)
	assert.Contains(t, reply, "Bocchi The Rock")
	assert.True(t, flow.Active(admin))

	msg, handled := flow.HandleFile(ctx, admin, storageGroup, storageGroup, "file-1", 11)
	assert.True(t, handled)
	assert.Contains(t, msg, "episode 1")

	msg, handled = flow.HandleFile(ctx, admin, storageGroup, storageGroup, "file-2", 12)
	assert.True(t, handled)
	assert.Contains(t, msg, "episode 2")

	reply, claimed, err := flow.HandleText(ctx, admin, "DONE")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Contains(t, reply, "2 episode(s)")
	assert.False(t, flow.Active(admin))

	saved, err := store.GetBySlug(ctx, "bocchi_the_rock")
	require.NoError(t, err)
	require.Len(t, saved.Episodes, 2)
	assert.Equal(t, "file-1", saved.Episodes[0].FileID)
	assert.Equal(t, 1, saved.Episodes[0].Seq)
}

func TestUploadRestartReplacesSession(t *testing.T) {
	ctx := context.Background()
	flow, store := newUploadFlow(t)
	const admin = int64(1)

	_, err := flow.Begin(ctx, admin, "show one")
	require.NoError(t, err)
	_, handled := flow.HandleFile(ctx, admin, storageGroup, storageGroup, "old-file", 1)
	require.True(t, handled)

	// Starting again is last-writer-wins: the first session vanishes.
	_, err = flow.Begin(ctx, admin, "show two --movie")
	require.NoError(t, err)

	slug, ok := flow.ActiveSlug(admin)
	require.True(t, ok)
	assert.Equal(t, "show_two", slug)

	_, handled = flow.HandleFile(ctx, admin, storageGroup, storageGroup, "new-file", 2)
	require.True(t, handled)
	_, _, err = flow.HandleText(ctx, admin, "done")
	require.NoError(t, err)

	_, err = store.GetBySlug(ctx, "show_one")
	assert.ErrorIs(t, err, catalog.ErrNotFound, "abandoned session must not be persisted")

	saved, err := store.GetBySlug(ctx, "show_two")
	require.NoError(t, err)
	assert.True(t, saved.IsMovie)
	require.Len(t, saved.Episodes, 1)
}

func TestUploadAppendsToExistingSeries(t *testing.T) {
	ctx := context.Background()
	flow, store := newUploadFlow(t)
	const admin = int64(1)

	require.NoError(t, store.Save(ctx, catalog.Series{
		ID:       "abc",
		Slug:     "naruto",
		Episodes: []catalog.Episode{{Seq: 1, FileID: "old", MessageID: 1}},
	}))

	_, err := flow.Begin(ctx, admin, "Naruto")
	require.NoError(t, err)

	msg, handled := flow.HandleFile(ctx, admin, storageGroup, storageGroup, "new", 2)
	require.True(t, handled)
	assert.Contains(t, msg, "episode 2", "numbering continues after existing episodes")

	_, _, err = flow.HandleText(ctx, admin, "done")
	require.NoError(t, err)

	saved, err := store.GetBySlug(ctx, "naruto")
	require.NoError(t, err)
	require.Len(t, saved.Episodes, 2)
	assert.Equal(t, "abc", saved.ID, "series id is stable across uploads")
}

func TestUploadRejectsWrongChat(t *testing.T) {
	ctx := context.Background()
	flow, _ := newUploadFlow(t)
	const admin = int64(1)

	_, err := flow.Begin(ctx, admin, "show")
	require.NoError(t, err)

	msg, handled := flow.HandleFile(ctx, admin, 999, storageGroup, "f", 1)
	assert.True(t, handled)
	assert.Contains(t, msg, "storage group")

	// The rejected file must not be counted.
	msg, _ = flow.HandleFile(ctx, admin, storageGroup, storageGroup, "f", 1)
	assert.Contains(t, msg, "episode 1")
}

func TestUploadCancelAndEmptyDone(t *testing.T) {
	ctx := context.Background()
	flow, store := newUploadFlow(t)
	const admin = int64(1)

	_, err := flow.Begin(ctx, admin, "show")
	require.NoError(t, err)
	reply, claimed, err := flow.HandleText(ctx, admin, "cancel")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Contains(t, reply, "canceled")
	assert.False(t, flow.Active(admin))

	_, err = flow.Begin(ctx, admin, "show")
	require.NoError(t, err)
	reply, claimed, err = flow.HandleText(ctx, admin, "done")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Contains(t, reply, "No episodes")

	_, err = store.GetBySlug(ctx, "show")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUploadIgnoresUnrelatedText(t *testing.T) {
	ctx := context.Background()
	flow, _ := newUploadFlow(t)

	_, claimed, err := flow.HandleText(ctx, 1, "done")
	require.NoError(t, err)
	assert.False(t, claimed, "no session means the text is not ours")

	_, err = flow.Begin(ctx, 1, "show")
	require.NoError(t, err)
	_, claimed, err = flow.HandleText(ctx, 1, "hello there")
	require.NoError(t, err)
	assert.False(t, claimed)
}
