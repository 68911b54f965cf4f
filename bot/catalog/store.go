package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"animedrive/core/logger"
)

// ErrNotFound is returned when a series does not exist.
var ErrNotFound = errors.New("catalog: series not found")

// Episode is one stored deliverable file for a series.
type Episode struct {
	Seq       int    `json:"seq"`
	FileID    string `json:"file_id"`
	MessageID int    `json:"message_id"`
}

// Series is a catalog entry with its ordered episode list.
type Series struct {
	ID        string
	Slug      string
	IsMovie   bool
	Episodes  []Episode
	CreatedAt time.Time
	UpdatedAt time.Time
}

type seriesRow struct {
	ID        string    `db:"id"`
	Slug      string    `db:"slug"`
	IsMovie   bool      `db:"is_movie"`
	Episodes  []byte    `db:"episodes"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r seriesRow) toSeries() (Series, error) {
	s := Series{
		ID:        r.ID,
		Slug:      r.Slug,
		IsMovie:   r.IsMovie,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Episodes) > 0 {
		if err := json.Unmarshal(r.Episodes, &s.Episodes); err != nil {
			return Series{}, fmt.Errorf("catalog: decode episodes for %s: %w", r.Slug, err)
		}
	}
	return s, nil
}

// Store persists the series catalog and known users in PostgreSQL.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// NewSeriesID mints an identifier for a fresh series.
func NewSeriesID() string {
	return uuid.NewString()
}

// Save upserts a series by slug, replacing its episode list.
func (s *Store) Save(ctx context.Context, series Series) error {
	if series.Slug == "" {
		return fmt.Errorf("catalog: empty slug")
	}
	if series.ID == "" {
		series.ID = NewSeriesID()
	}
	episodes, err := json.Marshal(series.Episodes)
	if err != nil {
		return fmt.Errorf("catalog: encode episodes for %s: %w", series.Slug, err)
	}

	const q = `
		INSERT INTO series (id, slug, is_movie, episodes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET is_movie = EXCLUDED.is_movie,
		    episodes = EXCLUDED.episodes,
		    updated_at = now()`
	if _, err := s.db.ExecContext(ctx, q, series.ID, series.Slug, series.IsMovie, episodes); err != nil {
		return fmt.Errorf("catalog: save %s: %w", series.Slug, err)
	}

	logger.LogEvent(ctx, logger.Catalog, slog.LevelInfo, "catalog.save",
		slog.String("series_id", series.ID),
		slog.String("series", series.Slug),
		slog.Int("episodes", len(series.Episodes)),
	)
	return nil
}

// GetByID fetches one series by its identifier.
func (s *Store) GetByID(ctx context.Context, id string) (Series, error) {
	var row seriesRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, slug, is_movie, episodes, created_at, updated_at FROM series WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Series{}, ErrNotFound
	}
	if err != nil {
		return Series{}, fmt.Errorf("catalog: get by id: %w", err)
	}
	return row.toSeries()
}

// GetBySlug fetches one series by its canonical slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (Series, error) {
	var row seriesRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, slug, is_movie, episodes, created_at, updated_at FROM series WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return Series{}, ErrNotFound
	}
	if err != nil {
		return Series{}, fmt.Errorf("catalog: get by slug: %w", err)
	}
	return row.toSeries()
}

// Search returns series whose slug contains the query, best match first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Series, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + Slugify(query) + "%"
	var rows []seriesRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, slug, is_movie, episodes, created_at, updated_at
		 FROM series WHERE slug LIKE $1 ORDER BY slug LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	out := make([]Series, 0, len(rows))
	for _, r := range rows {
		sr, err := r.toSeries()
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, nil
}

// List returns one alphabetical page of the catalog.
func (s *Store) List(ctx context.Context, offset, limit int) ([]Series, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []seriesRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, slug, is_movie, episodes, created_at, updated_at
		 FROM series ORDER BY slug OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	out := make([]Series, 0, len(rows))
	for _, r := range rows {
		sr, err := r.toSeries()
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, nil
}

// Count returns the total number of series.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM series`); err != nil {
		return 0, fmt.Errorf("catalog: count: %w", err)
	}
	return n, nil
}

// TouchUser records a user sighting for the activity log.
func (s *Store) TouchUser(ctx context.Context, id int64, username string) error {
	const q = `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    last_seen = now()`
	if _, err := s.db.ExecContext(ctx, q, id, username); err != nil {
		return fmt.Errorf("catalog: touch user %d: %w", id, err)
	}
	return nil
}
