// Package showdb is the local SQLite database of known shows and episodes.
package showdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"showtracker/pkg/release"
)

// ErrNotFound is returned when a show or episode is not in the database.
var ErrNotFound = errors.New("not found")

const dateLayout = "2006-01-02"

// Show is one known series. Root is its space-joined root title, the lookup
// key for identification.
type Show struct {
	ID       int64
	Name     string
	Root     string
	SourceID string
	AddedAt  time.Time
}

// Episode is one known episode of a show.
type Episode struct {
	ShowID  int64
	Season  int
	Number  int
	AirDate time.Time
	Title   string
}

// Store manages show persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

type migration struct {
	version string
	sql     string
}

var migrations = []migration{
	{
		version: "001_shows",
		sql: `CREATE TABLE shows (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            root TEXT NOT NULL UNIQUE,
            source_id TEXT,
            added_at TEXT NOT NULL
        );
        CREATE TABLE episodes (
            show_id INTEGER NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
            season INTEGER NOT NULL,
            episode INTEGER NOT NULL,
            air_date TEXT,
            title TEXT,
            PRIMARY KEY (show_id, season, episode)
        );
        CREATE INDEX idx_episodes_air_date ON episodes(show_id, air_date);`,
	},
}

// Open initializes or connects to the show database and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// Path is the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query runs a read query against the database.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// AddShow inserts a show, or updates the name and source ID of the show with
// the same root title.
func (s *Store) AddShow(ctx context.Context, name, sourceID string) (*Show, error) {
	root := release.TitleRoot(name).String()
	if root == "" {
		return nil, fmt.Errorf("show name %q has no root title", name)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shows (name, root, source_id, added_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(root) DO UPDATE SET name = excluded.name,
             source_id = COALESCE(NULLIF(excluded.source_id, ''), shows.source_id)`,
		name, root, sourceID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert show: %w", err)
	}
	return s.findShow(ctx, root)
}

// FindShowByRoot looks a show up by its root title tokens.
func (s *Store) FindShowByRoot(ctx context.Context, root release.Title) (*Show, error) {
	return s.findShow(ctx, root.String())
}

// FindShow looks a show up by any spelling of its name.
func (s *Store) FindShow(ctx context.Context, name string) (*Show, error) {
	return s.findShow(ctx, release.TitleRoot(name).String())
}

func (s *Store) findShow(ctx context.Context, root string) (*Show, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, root, COALESCE(source_id, ''), added_at FROM shows WHERE root = ?", root)
	var (
		show    Show
		addedAt string
	)
	if err := row.Scan(&show.ID, &show.Name, &show.Root, &show.SourceID, &addedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan show: %w", err)
	}
	show.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
	return &show, nil
}

// Shows lists every show ordered by name.
func (s *Store) Shows(ctx context.Context) ([]Show, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, root, COALESCE(source_id, ''), added_at FROM shows ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []Show
	for rows.Next() {
		var (
			show    Show
			addedAt string
		)
		if err := rows.Scan(&show.ID, &show.Name, &show.Root, &show.SourceID, &addedAt); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		show.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

// AddEpisode inserts or replaces an episode.
func (s *Store) AddEpisode(ctx context.Context, ep Episode) error {
	if ep.Season <= 0 || ep.Number <= 0 {
		return fmt.Errorf("invalid episode S%02dE%02d", ep.Season, ep.Number)
	}
	var airDate any
	if !ep.AirDate.IsZero() {
		airDate = ep.AirDate.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO episodes (show_id, season, episode, air_date, title) VALUES (?, ?, ?, ?, ?)`,
		ep.ShowID, ep.Season, ep.Number, airDate, ep.Title,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// FindEpisode looks an episode up by its numbering.
func (s *Store) FindEpisode(ctx context.Context, showID int64, season, number int) (*Episode, error) {
	return s.scanEpisode(s.db.QueryRowContext(ctx,
		`SELECT show_id, season, episode, COALESCE(air_date, ''), COALESCE(title, '')
         FROM episodes WHERE show_id = ? AND season = ? AND episode = ?`,
		showID, season, number))
}

// FindEpisodeByAirDate resolves an air date to the episode broadcast that
// day. When several aired the same day the lowest numbered one wins.
func (s *Store) FindEpisodeByAirDate(ctx context.Context, showID int64, date time.Time) (*Episode, error) {
	return s.scanEpisode(s.db.QueryRowContext(ctx,
		`SELECT show_id, season, episode, COALESCE(air_date, ''), COALESCE(title, '')
         FROM episodes WHERE show_id = ? AND air_date = ? ORDER BY season, episode LIMIT 1`,
		showID, date.Format(dateLayout)))
}

func (s *Store) scanEpisode(row *sql.Row) (*Episode, error) {
	var (
		ep      Episode
		airDate string
	)
	if err := row.Scan(&ep.ShowID, &ep.Season, &ep.Number, &airDate, &ep.Title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	if airDate != "" {
		ep.AirDate, _ = time.Parse(dateLayout, airDate)
	}
	return &ep, nil
}
