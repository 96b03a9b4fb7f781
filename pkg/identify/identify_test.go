package identify

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"showtracker/pkg/cache"
	"showtracker/pkg/logger"
	"showtracker/pkg/release"
	"showtracker/pkg/showdb"
)

type fakeRemote struct {
	calls int
	info  map[string]ShowInfo
	err   error
}

func (f *fakeRemote) GetShowInfo(_ context.Context, name string) (ShowInfo, error) {
	f.calls++
	if f.err != nil {
		return ShowInfo{}, f.err
	}
	return f.info[name], nil
}

func newTestDB(t *testing.T) *showdb.Store {
	t.Helper()
	store, err := showdb.Open(filepath.Join(t.TempDir(), "shows.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	house, err := store.AddShow(ctx, "House, M.D.", "73255")
	if err != nil {
		t.Fatal(err)
	}
	daily, err := store.AddShow(ctx, "The Daily Show", "71256")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddEpisode(ctx, showdb.Episode{ShowID: house.ID, Season: 2, Number: 14}); err != nil {
		t.Fatal(err)
	}
	aired := time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC)
	if err := store.AddEpisode(ctx, showdb.Episode{ShowID: daily.ID, Season: 15, Number: 1, AirDate: aired}); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestParseFileFromDatabase(t *testing.T) {
	logger.Init("DEBUG")
	id := New(newTestDB(t), nil, nil)

	tests := []struct {
		path    string
		show    string
		season  int
		episode int
		quality release.Quality
	}{
		{"/tv/House.S02E14.720p.HDTV.x264-CTU.mkv", "House, M.D.", 2, 14, release.HDTV720p},
		{"/tv/house.2x14.avi", "House, M.D.", 2, 14, release.HDTVXviD},
		{"/tv/The.Daily.Show.2010.01.04.HDTV.XviD-FQM.avi", "The Daily Show", 15, 1, release.HDTVXviD},
		{"/tv/House/Season 2/2x14 - Euphoria.mkv", "House, M.D.", 2, 14, release.HDTV720p},
	}
	for _, tt := range tests {
		res := id.ParseFile(context.Background(), tt.path)
		if !res.OK() {
			t.Errorf("%s: failed with %v (%s)", tt.path, res.Failure, res.Detail)
			continue
		}
		if res.Show != tt.show || res.Source != FromDatabase {
			t.Errorf("%s: show %q from %s", tt.path, res.Show, res.Source)
		}
		if res.Episode.Season != tt.season || res.Episode.Episode != tt.episode {
			t.Errorf("%s: episode %v", tt.path, res.Episode)
		}
		if res.Quality != tt.quality {
			t.Errorf("%s: quality %v, want %v", tt.path, res.Quality, tt.quality)
		}
	}
}

func TestParseFileFailures(t *testing.T) {
	remote := &fakeRemote{err: errors.New("service down")}
	id := New(newTestDB(t), remote, nil)

	tests := []struct {
		path    string
		failure Failure
	}{
		{"/movies/Some.Movie.2010.1080p.BluRay.mkv", EpisodeNumberingNotFound},
		{"/S02E14.mkv", ShowNameNotFound},
		{"/tv/Unknown.Show.S01E01.mkv", ShowNotIdentified},
	}
	for _, tt := range tests {
		res := id.ParseFile(context.Background(), tt.path)
		if res.Failure != tt.failure {
			t.Errorf("%s: failure %v, want %v", tt.path, res.Failure, tt.failure)
		}
		if res.OK() {
			t.Errorf("%s: should not be OK", tt.path)
		}
	}
}

func TestParseFileRemoteAndCache(t *testing.T) {
	remote := &fakeRemote{info: map[string]ShowInfo{
		"lost":         {Success: true, SourceID: "73739"},
		"Breaking Bad": {Success: false},
	}}
	shows := cache.New[string, ShowInfo](time.Hour)
	defer shows.Close()
	id := New(nil, remote, shows)

	res := id.ParseFile(context.Background(), "/dl/lost.s06e03.720p.bluray.x264-macro.mkv")
	if !res.OK() || res.Source != FromRemote || res.SourceID != "73739" || res.Show != "Lost" {
		t.Fatalf("unexpected result %+v", res)
	}
	res = id.ParseFile(context.Background(), "/dl/Lost.S06E04.720p.HDTV.x264.mkv")
	if !res.OK() || res.Source != FromCache || remote.calls != 1 {
		t.Errorf("second lookup should hit the cache: %+v, %d calls", res, remote.calls)
	}

	res = id.ParseFile(context.Background(), "/dl/Breaking Bad S01E01.mkv")
	if res.Failure != ShowNotIdentified {
		t.Errorf("unsuccessful remote answer should fail, got %+v", res)
	}
}

type panicDB struct{}

func (panicDB) Query(context.Context, string, ...any) (*sql.Rows, error) {
	panic("driver bug")
}

func TestParseFileRecoversPanic(t *testing.T) {
	logger.Init("DEBUG")
	res := New(panicDB{}, nil, nil).ParseFile(context.Background(), "/tv/House.S02E14.mkv")
	if res.Failure != ExceptionOccurred || res.Detail != "driver bug" {
		t.Errorf("expected ExceptionOccurred, got %+v", res)
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"House.S02E14.720p.HDTV.x264-CTU.mkv",
		"House.S02E14.720p.HDTV.x264-CTU.nfo",
		"house.s02e14.sample.mkv",
		"Unknown.S01E01.avi",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	results, err := New(newTestDB(t), nil, nil).ScanDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 video files, got %d", len(results))
	}
	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	if ok != 1 {
		t.Errorf("expected one identified file, got %d", ok)
	}
}

func TestFindEpisodeFiles(t *testing.T) {
	files := []string{
		"/tv/House.S02E14.HDTV.XviD-LOL.avi",
		"/tv/House.S02E15.HDTV.XviD-LOL.avi",
		"/tv/house.2x14.mkv",
		"/tv/Desperate.Housewives.S02E14.avi",
	}
	got := FindEpisodeFiles("House", release.Episode{Season: 2, Episode: 14}, files)
	if len(got) != 2 || got[0] != files[0] || got[1] != files[2] {
		t.Errorf("FindEpisodeFiles = %v", got)
	}
}

// brokenShowRows answers every show lookup with a row whose last column
// cannot be scanned into a string.
type brokenShowRows struct {
	store *showdb.Store
}

func (b brokenShowRows) Query(ctx context.Context, _ string, _ ...any) (*sql.Rows, error) {
	return b.store.Query(ctx, "SELECT 1, 'Partial Show', NULL")
}

func TestParseFileIgnoresPartialDatabaseRow(t *testing.T) {
	logger.Init("DEBUG")
	id := New(brokenShowRows{store: newTestDB(t)}, nil, nil)

	res := id.ParseFile(context.Background(), "/tv/House.S02E14.720p.HDTV.x264-CTU.mkv")
	if res.Failure != ShowNotIdentified {
		t.Fatalf("expected ShowNotIdentified, got %+v", res)
	}
	if res.Show != "" || res.SourceID != "" || res.Source != "" {
		t.Errorf("failed scan leaked into the result: %+v", res)
	}
}
