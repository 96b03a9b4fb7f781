// Package identify works out which show and episode a local video file is.
package identify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"showtracker/pkg/cache"
	"showtracker/pkg/logger"
	"showtracker/pkg/release"
	"showtracker/pkg/search/parser"
)

// Failure tags why a file could not be identified.
type Failure int

const (
	None Failure = iota
	EpisodeNumberingNotFound
	ShowNameNotFound
	ShowNotIdentified
	ExceptionOccurred
)

var failureNames = [...]string{
	None:                     "",
	EpisodeNumberingNotFound: "episode numbering not found",
	ShowNameNotFound:         "show name not found",
	ShowNotIdentified:        "show not identified",
	ExceptionOccurred:        "exception occurred",
}

func (f Failure) String() string {
	if f < 0 || int(f) >= len(failureNames) {
		return fmt.Sprintf("failure(%d)", int(f))
	}
	return failureNames[f]
}

// MarshalText encodes the failure description.
func (f Failure) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Source tells where a show identification came from.
type Source string

const (
	FromDatabase Source = "database"
	FromCache    Source = "cache"
	FromRemote   Source = "remote"
)

// ShowInfo is the answer of a remote identification service.
type ShowInfo struct {
	Success  bool
	SourceID string
	Title    string
}

// RemoteIdentifier looks a show up by name on a remote service.
type RemoteIdentifier interface {
	GetShowInfo(ctx context.Context, name string) (ShowInfo, error)
}

// RemoteFunc adapts a function to RemoteIdentifier.
type RemoteFunc func(ctx context.Context, name string) (ShowInfo, error)

func (f RemoteFunc) GetShowInfo(ctx context.Context, name string) (ShowInfo, error) {
	return f(ctx, name)
}

// ShowDatabase is the local show database.
type ShowDatabase interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Result is the outcome of identifying one file. Failure is None on success.
type Result struct {
	Path     string          `json:"path"`
	Show     string          `json:"show,omitempty"`
	Root     release.Title   `json:"root,omitempty"`
	Episode  release.Episode `json:"episode"`
	Quality  release.Quality `json:"quality"`
	SourceID string          `json:"source_id,omitempty"`
	Source   Source          `json:"source,omitempty"`
	Failure  Failure         `json:"failure,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}

// OK reports whether the file was identified.
func (r Result) OK() bool {
	return r.Failure == None
}

var (
	seasonDirRegex = regexp.MustCompile(`(?i)^(?:season|series|staffel|s)[ ._-]*\d{1,3}$|^specials$`)
	airDateRegex   = regexp.MustCompile(`(?:^|\D)(?:19|20)\d{2}[.\-_ ]\d{2}[.\-_ ]\d{2}(?:\D|$)`)
	nameSeparators = strings.NewReplacer(".", " ", "_", " ")

	videoExts = map[string]bool{
		".mkv": true, ".mp4": true, ".m4v": true, ".avi": true, ".ts": true,
		".mov": true, ".wmv": true, ".mpg": true, ".mpeg": true, ".webm": true,
	}
)

// Identifier resolves files against the local database, then a show cache,
// then the remote service. db and remote may be nil.
type Identifier struct {
	db     ShowDatabase
	remote RemoteIdentifier
	shows  *cache.Cache[string, ShowInfo]
	caser  cases.Caser
}

// New creates an Identifier. shows caches remote answers keyed by root
// title; the caller owns it and closes it.
func New(db ShowDatabase, remote RemoteIdentifier, shows *cache.Cache[string, ShowInfo]) *Identifier {
	return &Identifier{
		db:     db,
		remote: remote,
		shows:  shows,
		caser:  cases.Title(language.English),
	}
}

// ParseFile identifies one video file by its name and directories. It never
// panics; unexpected failures come back tagged ExceptionOccurred.
func (id *Identifier) ParseFile(ctx context.Context, path string) Result {
	var res Result
	var pc panics.Catcher
	pc.Try(func() {
		res = id.parseFile(ctx, path)
	})
	if rec := pc.Recovered(); rec != nil {
		logger.Error("Identification panicked", "path", path, "panic", rec.Value)
		return Result{Path: path, Failure: ExceptionOccurred, Detail: fmt.Sprint(rec.Value)}
	}
	return res
}

func (id *Identifier) parseFile(ctx context.Context, path string) Result {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	res := Result{Path: path, Quality: release.ParseQuality(base)}

	ep, ok := release.ExtractEpisode(name)
	parsed := parser.ParseReleaseTitle(name)
	if !ok {
		ep, ok = parsed.Episode()
	}
	if !ok {
		res.Failure = EpisodeNumberingNotFound
		return res
	}
	res.Episode = ep

	show := showName(name, path, parsed)
	root := release.TitleRoot(show)
	if show == "" || len(root) == 0 {
		res.Failure = ShowNameNotFound
		return res
	}
	res.Root = root

	if err := id.resolve(ctx, show, &res); err != nil {
		res.Failure = ShowNotIdentified
		res.Detail = err.Error()
		return res
	}
	logger.Debug("Identified file", "path", path, "show", res.Show, "episode", res.Episode, "source", res.Source)
	return res
}

// showName takes the title in front of the numbering or air date, then the
// nearest parent directory that is not a season folder, then the go-ptt title.
func showName(name, path string, parsed *parser.ParsedRelease) string {
	prefix := ""
	if title, _, ok := release.Split(name); ok {
		prefix = title
	} else if loc := airDateRegex.FindStringIndex(name); loc != nil {
		prefix = name[:loc[0]]
	}
	if prefix = strings.Trim(nameSeparators.Replace(prefix), " -[("); prefix != "" {
		return prefix
	}
	dir := filepath.Dir(path)
	for i := 0; i < 2 && dir != "." && dir != string(filepath.Separator); i++ {
		folder := filepath.Base(dir)
		if folder != "" && !seasonDirRegex.MatchString(folder) {
			if _, isRelease := release.ExtractEpisode(folder); !isRelease {
				return strings.TrimSpace(nameSeparators.Replace(folder))
			}
		}
		dir = filepath.Dir(dir)
	}
	if parsed == nil {
		return ""
	}
	title := strings.TrimSpace(parsed.Title)
	if _, numbered := release.ExtractEpisode(title); numbered {
		return ""
	}
	return title
}

func (id *Identifier) resolve(ctx context.Context, show string, res *Result) error {
	key := res.Root.String()

	if id.db != nil {
		found, err := id.lookupDatabase(ctx, key, res)
		if err != nil {
			logger.Warn("Show database lookup failed", "root", key, "err", err)
		}
		if found {
			return nil
		}
	}

	if id.shows != nil {
		if info, ok := id.shows.Get(key); ok {
			res.Show, res.SourceID, res.Source = info.Title, info.SourceID, FromCache
			return nil
		}
	}

	if id.remote == nil {
		return errors.New("not in the show database")
	}
	info, err := id.remote.GetShowInfo(ctx, show)
	if err != nil {
		return fmt.Errorf("remote lookup: %w", err)
	}
	if !info.Success {
		return fmt.Errorf("remote lookup found nothing for %q", show)
	}
	if info.Title == "" {
		info.Title = id.caser.String(show)
	}
	if id.shows != nil {
		id.shows.Set(key, info)
	}
	res.Show, res.SourceID, res.Source = info.Title, info.SourceID, FromRemote
	return nil
}

// lookupDatabase finds the show by root title and, for air-date episodes,
// the season and episode broadcast that day. res is only written once a row
// has been read in full.
func (id *Identifier) lookupDatabase(ctx context.Context, root string, res *Result) (bool, error) {
	rows, err := id.db.Query(ctx, "SELECT id, name, COALESCE(source_id, '') FROM shows WHERE root = ?", root)
	if err != nil {
		return false, err
	}
	var (
		showID         int64
		name, sourceID string
		found          bool
	)
	if rows.Next() {
		found = true
		err = rows.Scan(&showID, &name, &sourceID)
	}
	if err == nil {
		err = rows.Err()
	}
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil || !found {
		return false, err
	}
	res.Show, res.SourceID, res.Source = name, sourceID, FromDatabase

	if res.Episode.Season > 0 || res.Episode.AirDate.IsZero() {
		return true, nil
	}
	rows, err = id.db.Query(ctx,
		"SELECT season, episode FROM episodes WHERE show_id = ? AND air_date = ? ORDER BY season, episode LIMIT 1",
		showID, res.Episode.AirDate.Format("2006-01-02"))
	if err != nil {
		return true, err
	}
	defer rows.Close()
	if rows.Next() {
		var season, number int
		if err := rows.Scan(&season, &number); err != nil {
			return true, err
		}
		res.Episode.Season, res.Episode.Episode = season, number
	}
	return true, rows.Err()
}

// ScanDir identifies every video file below root.
func (id *Identifier) ScanDir(ctx context.Context, root string) ([]Result, error) {
	var results []Result
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !videoExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if strings.Contains(strings.ToLower(d.Name()), "sample") {
			return nil
		}
		results = append(results, id.ParseFile(ctx, path))
		return nil
	})
	return results, err
}

// FindEpisodeFiles returns the files whose names denote the episode of
// title, in input order.
func FindEpisodeFiles(title string, ep release.Episode, files []string) []string {
	m := release.NewMatcher(title, ep)
	var out []string
	for _, f := range files {
		if m.Match(filepath.Base(f)) {
			out = append(out, f)
		}
	}
	return out
}
