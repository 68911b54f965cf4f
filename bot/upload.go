package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"animedrive/bot/catalog"
	"animedrive/core/session"
)

// uploadSession is the in-flight state of one admin upload run.
type uploadSession struct {
	SeriesID string
	Slug     string
	IsMovie  bool
	Existing []catalog.Episode
	New      []catalog.Episode
}

// SeriesStore is the catalog surface the flows need.
type SeriesStore interface {
	Save(ctx context.Context, series catalog.Series) error
	GetByID(ctx context.Context, id string) (catalog.Series, error)
	GetBySlug(ctx context.Context, slug string) (catalog.Series, error)
	Search(ctx context.Context, query string, limit int) ([]catalog.Series, error)
	List(ctx context.Context, offset, limit int) ([]catalog.Series, error)
	Count(ctx context.Context) (int, error)
}

// UploadFlow drives the multi-step episode upload: /upload opens a
// session, files sent to the storage group accumulate, and "done" or
// "cancel" closes it. Starting /upload again replaces the previous
// session outright.
type UploadFlow struct {
	store    SeriesStore
	sessions *session.Store
	ttl      time.Duration
}

func NewUploadFlow(store SeriesStore, sessions *session.Store, ttl time.Duration) *UploadFlow {
	return &UploadFlow{store: store, sessions: sessions, ttl: ttl}
}

const uploadUsage = "Usage: /upload <title> [--movie]\n" +
	"Examples:\n/upload Bocchi the Rock\n/upload Jujutsu Kaisen 0 --movie\n\n" +
	"Then send episode files to the storage group and reply *done* to finish or *cancel* to abort."

// Begin opens (or replaces) the upload session for owner and returns
// the reply text.
func (f *UploadFlow) Begin(ctx context.Context, owner int64, rawArgs string) (string, error) {
	isMovie := false
	var words []string
	for _, w := range strings.Fields(rawArgs) {
		if w == "--movie" {
			isMovie = true
			continue
		}
		words = append(words, w)
	}
	slug := catalog.Slugify(strings.Join(words, " "))
	if slug == "" {
		return uploadUsage, nil
	}

	sess := uploadSession{Slug: slug, IsMovie: isMovie}
	existing, err := f.store.GetBySlug(ctx, slug)
	switch {
	case err == nil:
		sess.SeriesID = existing.ID
		sess.Existing = existing.Episodes
	case errors.Is(err, catalog.ErrNotFound):
		sess.SeriesID = catalog.NewSeriesID()
	default:
		return "", err
	}

	// Last writer wins: any previous session for this admin is gone.
	f.sessions.Put(session.FlowUpload, owner, sess, f.ttl)

	return fmt.Sprintf(
		"Upload session started for *%s*. Send episode files to the storage group, then reply *done* to finish or *cancel* to abort.",
		catalog.DisplayName(slug),
	), nil
}

// Active reports whether owner has an open upload session.
func (f *UploadFlow) Active(owner int64) bool {
	_, ok := f.sessions.Get(session.FlowUpload, owner)
	return ok
}

// ActiveSlug returns the slug of the open session, if any.
func (f *UploadFlow) ActiveSlug(owner int64) (string, bool) {
	v, ok := f.sessions.Get(session.FlowUpload, owner)
	if !ok {
		return "", false
	}
	return v.(uploadSession).Slug, true
}

// HandleText processes "done" and "cancel". The bool reports whether
// the text belonged to this flow.
func (f *UploadFlow) HandleText(ctx context.Context, owner int64, text string) (string, bool, error) {
	v, ok := f.sessions.Get(session.FlowUpload, owner)
	if !ok {
		return "", false, nil
	}
	sess := v.(uploadSession)

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "done":
		f.sessions.Remove(session.FlowUpload, owner)
		if len(sess.New) == 0 && len(sess.Existing) == 0 {
			return "No episodes were uploaded.", true, nil
		}
		all := append(append([]catalog.Episode(nil), sess.Existing...), sess.New...)
		err := f.store.Save(ctx, catalog.Series{
			ID:       sess.SeriesID,
			Slug:     sess.Slug,
			IsMovie:  sess.IsMovie,
			Episodes: all,
		})
		if err != nil {
			return "Saving the episodes failed. Please try again.", true, err
		}
		return fmt.Sprintf("Saved %d episode(s) for *%s*.", len(all), catalog.DisplayName(sess.Slug)), true, nil
	case "cancel":
		f.sessions.Remove(session.FlowUpload, owner)
		return fmt.Sprintf("Upload session for *%s* has been canceled.", catalog.DisplayName(sess.Slug)), true, nil
	}
	return "", false, nil
}

// HandleFile appends an incoming file to the session. Files outside the
// storage group are rejected with a hint.
func (f *UploadFlow) HandleFile(_ context.Context, owner, chatID, storageGroupID int64, fileID string, messageID int) (string, bool) {
	handled := false
	var reply string
	f.sessions.Update(session.FlowUpload, owner, f.ttl, func(current any) any {
		if current == nil {
			return nil
		}
		sess := current.(uploadSession)
		handled = true
		if chatID != storageGroupID {
			reply = "Please send episode files in the designated storage group."
			return sess
		}
		seq := len(sess.Existing) + len(sess.New) + 1
		sess.New = append(sess.New, catalog.Episode{Seq: seq, FileID: fileID, MessageID: messageID})
		reply = fmt.Sprintf("Received episode %d for *%s*. Send the next file or reply *done*.",
			seq, catalog.DisplayName(sess.Slug))
		return sess
	})
	return reply, handled
}
