package release

import (
	"testing"
	"time"
)

func TestIsMatch(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		episode string
		release string
		want    bool
	}{
		{"exact episode", "House", "S02E14", "House.S02E14.HDTV.XviD-LOL", true},
		{"wrong episode", "House", "S02E14", "House.S02E15.HDTV.XviD-LOL", false},
		{"title with punctuation", "House, M.D.", "S02E14", "house.s02e14.720p.hdtv", true},
		{"NxM variant", "Top Gear", "S16E01", "top_gear.16x01.real.720p_hdtv_x264-fov.mkv", true},
		{"dotted variant", "Lost", "S06E03", "Lost.S06.E03.720p", true},
		{"packed variant", "Lost", "S06E03", "lost.603.hdtv-lol", true},
		{"range release contains first episode", "Lost", "S06E17", "lost.s06e17-18.720p.bluray.x264-macro.mkv", true},
		{"missing title token", "Top Gear", "S16E01", "top.16x01.hdtv", false},
		{"title token must be whole word", "House", "S02E14", "Housewives.S02E14.HDTV", false},
		{"different show same episode", "House", "S02E14", "Bones.S02E14.HDTV", false},
		{"air date", "The Daily Show", "2010.01.02", "The.Daily.Show.2010.01.02.HDTV.XviD", true},
		{"air date other separator", "The Daily Show", "2010.01.02", "the daily show 2010-01-02", true},
		{"air date mismatch", "The Daily Show", "2010.01.02", "The.Daily.Show.2010.01.03.HDTV", false},
		{"unparseable episode", "House", "pilot", "House.S02E14", false},
		{"apostrophe title", "Grey's Anatomy", "S05E01", "Greys.Anatomy.S05E01.HDTV.XviD-LOL", true},
		{"apostrophe possessive", "Bob's Burgers", "S01E01", "Bobs.Burgers.S01E01.720p.HDTV.x264-IMMERSE", true},
		{"apostrophe contraction", "It's Always Sunny in Philadelphia", "S01E01", "Its.Always.Sunny.in.Philadelphia.S01E01.DVDRip.XviD", true},
		{"apostrophe kept in release", "Greys Anatomy", "S05E01", "Grey's Anatomy - 5x01 - Dream a Little Dream of Me", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMatch(tt.title, tt.episode, tt.release); got != tt.want {
				t.Errorf("IsMatch(%q, %q, %q) = %v, want %v", tt.title, tt.episode, tt.release, got, tt.want)
			}
		})
	}
}

func TestMatcherReuse(t *testing.T) {
	m := NewMatcher("Top Gear", Episode{Season: 16, Episode: 1})
	releases := []string{
		"Top.Gear.S16E01.720p.HDTV.x264",
		"Top.Gear.S16E02.720p.HDTV.x264",
		"top_gear.16x01.real.720p_hdtv_x264-fov.mkv",
		"Top.Gear.Australia.S16E01",
	}
	var matched int
	for _, r := range releases {
		if m.Match(r) {
			matched++
		}
	}
	if matched != 3 {
		t.Errorf("matched %d releases, want 3", matched)
	}
}

func TestMatchEpisodeAirDate(t *testing.T) {
	ep := Episode{AirDate: time.Date(2011, 3, 9, 0, 0, 0, 0, time.UTC)}
	if !MatchEpisode("Conan", ep, "Conan.2011.03.09.Guest.HDTV") {
		t.Error("expected air-date release to match")
	}
	if MatchEpisode("Conan", Episode{}, "Conan.2011.03.09") {
		t.Error("an invalid episode never matches")
	}
}
