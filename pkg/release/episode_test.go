package release

import (
	"testing"
	"time"
)

func TestExtractEpisode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Episode
		ok   bool
	}{
		{
			name: "standard SxxExx",
			in:   "lost.s06e03.720p.bluray.x264-macro.mkv",
			want: Episode{Season: 6, Episode: 3},
			ok:   true,
		},
		{
			name: "range with dash",
			in:   "lost.s06e17-18.720p.bluray.x264-macro.mkv",
			want: Episode{Season: 6, Episode: 17, SecondEpisode: 18},
			ok:   true,
		},
		{
			name: "range with dash E",
			in:   "Show.S01E01-E02.HDTV",
			want: Episode{Season: 1, Episode: 1, SecondEpisode: 2},
			ok:   true,
		},
		{
			name: "range with double E",
			in:   "Show.S03E05E06.HDTV",
			want: Episode{Season: 3, Episode: 5, SecondEpisode: 6},
			ok:   true,
		},
		{
			name: "NxM form",
			in:   "top_gear.16x01.real.720p_hdtv_x264-fov.mkv",
			want: Episode{Season: 16, Episode: 1},
			ok:   true,
		},
		{
			name: "NxM range",
			in:   "Show 2x03-04",
			want: Episode{Season: 2, Episode: 3, SecondEpisode: 4},
			ok:   true,
		},
		{
			name: "resolution after dash is not a range",
			in:   "Show.S01E02-720p",
			want: Episode{Season: 1, Episode: 2},
			ok:   true,
		},
		{
			name: "air date",
			in:   "The.Daily.Show.2010.01.02.HDTV",
			want: Episode{AirDate: time.Date(2010, 1, 2, 0, 0, 0, 0, time.UTC)},
			ok:   true,
		},
		{
			name: "invalid air date",
			in:   "Show.2010.13.45",
			ok:   false,
		},
		{
			name: "x264 is not numbering",
			in:   "Movie.720p.x264",
			ok:   false,
		},
		{
			name: "no numbering",
			in:   "Just A Title",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractEpisode(tt.in)
			if ok != tt.ok {
				t.Fatalf("ExtractEpisode(%q) ok = %v, want %v (got %+v)", tt.in, ok, tt.ok, got)
			}
			if !tt.ok {
				return
			}
			if got.Season != tt.want.Season || got.Episode != tt.want.Episode || got.SecondEpisode != tt.want.SecondEpisode {
				t.Errorf("ExtractEpisode(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if !got.AirDate.Equal(tt.want.AirDate) {
				t.Errorf("ExtractEpisode(%q) air date = %v, want %v", tt.in, got.AirDate, tt.want.AirDate)
			}
		})
	}
}

func TestEpisodeString(t *testing.T) {
	tests := []struct {
		ep   Episode
		want string
	}{
		{Episode{Season: 2, Episode: 14}, "S02E14"},
		{Episode{Season: 6, Episode: 17, SecondEpisode: 18}, "S06E17-18"},
		{Episode{AirDate: time.Date(2010, 1, 2, 0, 0, 0, 0, time.UTC)}, "2010-01-02"},
		{Episode{}, ""},
	}
	for _, tt := range tests {
		if got := tt.ep.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.ep, got, tt.want)
		}
	}
}

func TestFormatEpisode(t *testing.T) {
	got, ok := FormatEpisode("lost.s06e03.720p", "%dx%02d")
	if !ok || got != "6x03" {
		t.Errorf("FormatEpisode = %q, %v; want 6x03", got, ok)
	}
	got, ok = FormatEpisode("top_gear.16x01", "S%02dE%02d")
	if !ok || got != "S16E01" {
		t.Errorf("FormatEpisode = %q, %v; want S16E01", got, ok)
	}
	if _, ok := FormatEpisode("The.Daily.Show.2010.01.02", "S%02dE%02d"); ok {
		t.Error("air-date episodes have no season to format")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in        string
		title     string
		numbering string
		ok        bool
	}{
		{"Lost S06E03", "Lost", "S06E03", true},
		{"lost.s06e03.720p", "lost", "s06e03.720p", true},
		{"Top Gear - 16x01", "Top Gear", "16x01", true},
		{"S01E01 Pilot", "", "S01E01 Pilot", true},
		{"House", "House", "", false},
		{"Movie.720p.x264", "Movie.720p.x264", "", false},
	}
	for _, tt := range tests {
		title, numbering, ok := Split(tt.in)
		if title != tt.title || numbering != tt.numbering || ok != tt.ok {
			t.Errorf("Split(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, title, numbering, ok, tt.title, tt.numbering, tt.ok)
		}
	}
}
