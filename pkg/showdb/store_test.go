package showdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"showtracker/pkg/release"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "shows.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestShows(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	show, err := store.AddShow(ctx, "House, M.D.", "73255")
	if err != nil {
		t.Fatalf("AddShow: %v", err)
	}
	if show.Root != "HOUSE" || show.SourceID != "73255" || show.ID == 0 {
		t.Errorf("unexpected show %+v", show)
	}

	again, err := store.AddShow(ctx, "House", "")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != show.ID || again.Name != "House" || again.SourceID != "73255" {
		t.Errorf("same root should update in place, got %+v", again)
	}

	found, err := store.FindShowByRoot(ctx, release.TitleRoot("house"))
	if err != nil || found.ID != show.ID {
		t.Errorf("FindShowByRoot = %+v, %v", found, err)
	}
	if _, err := store.FindShow(ctx, "Desperate Housewives"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.AddShow(ctx, "The", ""); err == nil {
		t.Error("expected error for a name with no root")
	}

	if _, err := store.AddShow(ctx, "Battlestar Galactica (2003)", ""); err != nil {
		t.Fatal(err)
	}
	shows, err := store.Shows(ctx)
	if err != nil || len(shows) != 2 || shows[0].Name != "Battlestar Galactica (2003)" {
		t.Errorf("Shows = %+v, %v", shows, err)
	}
}

func TestEpisodes(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	show, err := store.AddShow(ctx, "The Daily Show", "")
	if err != nil {
		t.Fatal(err)
	}

	aired := time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC)
	for _, ep := range []Episode{
		{ShowID: show.ID, Season: 15, Number: 2, AirDate: aired, Title: "Second"},
		{ShowID: show.ID, Season: 15, Number: 1, AirDate: aired, Title: "First"},
		{ShowID: show.ID, Season: 15, Number: 3},
	} {
		if err := store.AddEpisode(ctx, ep); err != nil {
			t.Fatalf("AddEpisode: %v", err)
		}
	}
	if err := store.AddEpisode(ctx, Episode{ShowID: show.ID}); err == nil {
		t.Error("expected error for missing numbering")
	}

	ep, err := store.FindEpisodeByAirDate(ctx, show.ID, aired)
	if err != nil || ep.Number != 1 || ep.Title != "First" {
		t.Errorf("FindEpisodeByAirDate = %+v, %v", ep, err)
	}
	ep, err = store.FindEpisode(ctx, show.ID, 15, 3)
	if err != nil || !ep.AirDate.IsZero() {
		t.Errorf("FindEpisode = %+v, %v", ep, err)
	}
	if _, err := store.FindEpisode(ctx, show.ID, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rows, err := store.Query(ctx, "SELECT COUNT(*) FROM episodes WHERE show_id = ?", show.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var n int
	if !rows.Next() || rows.Scan(&n) != nil || n != 3 {
		t.Errorf("Query count = %d", n)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shows.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddShow(context.Background(), "Lost", "4607"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if show, err := store.FindShow(context.Background(), "LOST"); err != nil || show.SourceID != "4607" {
		t.Errorf("FindShow after reopen = %+v, %v", show, err)
	}
}
