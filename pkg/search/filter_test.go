package search

import (
	"testing"

	"showtracker/pkg/backend"
	"showtracker/pkg/config"
	"showtracker/pkg/search/parser"
)

func TestFilterKeep(t *testing.T) {
	const gb = 1024 * 1024 * 1024
	tests := []struct {
		name       string
		cfg        config.FilterConfig
		result     backend.Result
		shouldPass bool
	}{
		{
			name:       "no filters pass everything",
			result:     backend.NewResult("a", backend.Torrent, "Lost.S06E03.HDTV.XviD-NoTV", 0),
			shouldPass: true,
		},
		{
			name:       "below min quality",
			cfg:        config.FilterConfig{MinQuality: "HDTV 720p"},
			result:     backend.NewResult("a", backend.Torrent, "Lost.S06E03.HDTV.XviD-NoTV", 0),
			shouldPass: false,
		},
		{
			name:       "within quality range",
			cfg:        config.FilterConfig{MinQuality: "HDTV 720p", MaxQuality: "BluRay 720p"},
			result:     backend.NewResult("a", backend.Torrent, "Lost.S06E03.720p.BluRay.x264-MACRO", 0),
			shouldPass: true,
		},
		{
			name:       "above max quality",
			cfg:        config.FilterConfig{MaxQuality: "WEB-DL 720p"},
			result:     backend.NewResult("a", backend.Torrent, "Lost.S06E03.1080p.BluRay.x264-MACRO", 0),
			shouldPass: false,
		},
		{
			name:       "720p rejected with min 1080p",
			cfg:        config.FilterConfig{MinResolution: "1080p"},
			result:     backend.NewResult("a", backend.Usenet, "House.S02E14.720p.HDTV.x264-LOL", 0),
			shouldPass: false,
		},
		{
			name:       "unknown resolution rejected when bounded",
			cfg:        config.FilterConfig{MaxResolution: "1080p"},
			result:     backend.NewResult("a", backend.Usenet, "House.S02E14.HDTV.XviD-LOL", 0),
			shouldPass: false,
		},
		{
			name:       "too large",
			cfg:        config.FilterConfig{MaxSizeMB: 1024},
			result:     backend.NewResult("a", backend.Usenet, "House.S02E14.720p.HDTV.x264-LOL", 2*gb),
			shouldPass: false,
		},
		{
			name:       "unknown size passes size bounds",
			cfg:        config.FilterConfig{MinSizeMB: 100},
			result:     backend.NewResult("a", backend.Usenet, "House.S02E14.720p.HDTV.x264-LOL", 0),
			shouldPass: true,
		},
		{
			name: "subtitle language kept",
			cfg:  config.FilterConfig{Languages: []string{"EN"}, MinQuality: "BluRay 1080p"},
			result: backend.Result{
				Backend: "subs", Type: backend.Subtitle, Release: "House.S02E14.HDTV.XviD-LOL", Language: "en",
			},
			shouldPass: true,
		},
		{
			name: "subtitle language dropped",
			cfg:  config.FilterConfig{Languages: []string{"en"}},
			result: backend.Result{
				Backend: "subs", Type: backend.Subtitle, Release: "House.S02E14.HDTV.XviD-LOL", Language: "de",
			},
			shouldPass: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Keep(tt.result); got != tt.shouldPass {
				t.Errorf("Keep(%q) = %v, want %v", tt.result.Release, got, tt.shouldPass)
			}
		})
	}
}

func TestCheckCodec(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.FilterConfig
		codec      string
		shouldPass bool
	}{
		{"no codec filters", config.FilterConfig{}, "AV1", true},
		{"blocked by alias", config.FilterConfig{BlockedCodecs: []string{"x265"}}, "HEVC", false},
		{"blocked alias the other way", config.FilterConfig{BlockedCodecs: []string{"hevc"}}, "x265", false},
		{"not blocked", config.FilterConfig{BlockedCodecs: []string{"x265"}}, "AVC", true},
		{"allowed by alias", config.FilterConfig{AllowedCodecs: []string{"h264"}}, "AVC", true},
		{"not allowed", config.FilterConfig{AllowedCodecs: []string{"h264"}}, "AV1", false},
		{"unknown codec with allow list", config.FilterConfig{AllowedCodecs: []string{"h264"}}, "", false},
		{"unknown codec with block list", config.FilterConfig{BlockedCodecs: []string{"xvid"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.checkCodec(&parser.ParsedRelease{Codec: tt.codec}); got != tt.shouldPass {
				t.Errorf("checkCodec(%q) = %v, want %v", tt.codec, got, tt.shouldPass)
			}
		})
	}
}

func TestCheckGroup(t *testing.T) {
	f, err := NewFilter(config.FilterConfig{BlockedGroups: []string{"lol"}})
	if err != nil {
		t.Fatal(err)
	}
	if f.checkGroup(&parser.ParsedRelease{Group: "LOL"}) {
		t.Error("LOL should be blocked")
	}
	if !f.checkGroup(&parser.ParsedRelease{Group: "DIMENSION"}) || !f.checkGroup(&parser.ParsedRelease{}) {
		t.Error("other groups should pass")
	}
}

func TestNewFilterRejectsBadConfig(t *testing.T) {
	for _, cfg := range []config.FilterConfig{
		{MinQuality: "ultra"},
		{MaxQuality: "8k"},
		{MinResolution: "999p"},
	} {
		if _, err := NewFilter(cfg); err == nil {
			t.Errorf("NewFilter(%+v) should fail", cfg)
		}
	}
}

func TestFilterApply(t *testing.T) {
	f, err := NewFilter(config.FilterConfig{MinQuality: "HDTV 720p"})
	if err != nil {
		t.Fatal(err)
	}
	got := f.Apply([]backend.Result{
		backend.NewResult("a", backend.Usenet, "House.S02E14.HDTV.XviD-LOL", 0),
		backend.NewResult("b", backend.Usenet, "House.S02E14.720p.HDTV.x264-LOL", 0),
	})
	if len(got) != 1 || got[0].Backend != "b" {
		t.Errorf("Apply kept %+v", got)
	}
}
