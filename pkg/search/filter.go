package search

import (
	"fmt"
	"strings"

	"showtracker/pkg/backend"
	"showtracker/pkg/config"
	"showtracker/pkg/release"
	"showtracker/pkg/search/parser"
)

var resolutions = map[string]int{
	"240p":  240,
	"360p":  360,
	"480p":  480,
	"576p":  576,
	"720p":  720,
	"1080p": 1080,
	"1440p": 1440,
	"2160p": 2160,
	"4k":    2160,
	"2k":    1440,
}

// go-ptt normalizes h264/x264 to AVC and h265/x265 to HEVC; users may write
// either form.
var codecAliases = [][]string{
	{"avc", "h264", "x264", "h.264"},
	{"hevc", "h265", "x265", "h.265"},
	{"mpeg-2", "mpeg2", "mpeg"},
	{"divx", "dvix"},
	{"xvid"},
}

// Filter drops results outside the configured quality, resolution, codec,
// group, size and language bounds.
type Filter struct {
	cfg        config.FilterConfig
	minQuality release.Quality
	maxQuality release.Quality
}

// NewFilter validates cfg. Quality bounds use the labels of release.Quality.
func NewFilter(cfg config.FilterConfig) (*Filter, error) {
	f := &Filter{cfg: cfg, minQuality: release.Unknown, maxQuality: release.BluRay1080p}
	var err error
	if cfg.MinQuality != "" {
		if f.minQuality, err = release.ParseQualityLabel(cfg.MinQuality); err != nil {
			return nil, fmt.Errorf("min_quality: %w", err)
		}
	}
	if cfg.MaxQuality != "" {
		if f.maxQuality, err = release.ParseQualityLabel(cfg.MaxQuality); err != nil {
			return nil, fmt.Errorf("max_quality: %w", err)
		}
	}
	for _, r := range []string{cfg.MinResolution, cfg.MaxResolution} {
		if _, ok := resolutions[strings.ToLower(r)]; r != "" && !ok {
			return nil, fmt.Errorf("unknown resolution %q", r)
		}
	}
	return f, nil
}

// Apply returns the results that pass every check, in input order.
func (f *Filter) Apply(results []backend.Result) []backend.Result {
	out := make([]backend.Result, 0, len(results))
	for _, r := range results {
		if f.Keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Keep reports whether a single result passes. Subtitles are only checked
// against the language list.
func (f *Filter) Keep(r backend.Result) bool {
	if r.Type == backend.Subtitle {
		return f.checkLanguage(r)
	}
	if !f.checkQuality(r) || !f.checkSize(r) {
		return false
	}
	p := parser.ParseReleaseTitle(r.Release)
	return f.checkResolution(p) && f.checkCodec(p) && f.checkGroup(p)
}

// checkQuality validates the quality range
func (f *Filter) checkQuality(r backend.Result) bool {
	return r.Quality >= f.minQuality && r.Quality <= f.maxQuality
}

// checkSize validates size bounds; results without a size pass
func (f *Filter) checkSize(r backend.Result) bool {
	if r.Size <= 0 {
		return true
	}
	mb := r.Size / (1024 * 1024)
	if f.cfg.MinSizeMB > 0 && mb < f.cfg.MinSizeMB {
		return false
	}
	if f.cfg.MaxSizeMB > 0 && mb > f.cfg.MaxSizeMB {
		return false
	}
	return true
}

// checkResolution validates resolution filters
func (f *Filter) checkResolution(p *parser.ParsedRelease) bool {
	if f.cfg.MinResolution == "" && f.cfg.MaxResolution == "" {
		return true
	}
	if p.Resolution == "" {
		// Unknown resolution would otherwise bypass the bounds
		return false
	}

	res := strings.ToLower(p.Resolution)
	current := 0
	for key, value := range resolutions {
		if strings.Contains(res, key) {
			current = value
			break
		}
	}
	if current == 0 {
		return true
	}

	if minValue, ok := resolutions[strings.ToLower(f.cfg.MinResolution)]; ok && current < minValue {
		return false
	}
	if maxValue, ok := resolutions[strings.ToLower(f.cfg.MaxResolution)]; ok && current > maxValue {
		return false
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// codecMatches compares a parsed codec with a configured one through the
// alias table, so x265 matches HEVC and the other way around.
func codecMatches(codec, want string) bool {
	codec = strings.ToLower(codec)
	want = strings.ToLower(want)
	if strings.Contains(codec, want) {
		return true
	}
	for _, aliases := range codecAliases {
		if containsAny(codec, aliases) && containsAny(want, aliases) {
			return true
		}
	}
	return false
}

// checkCodec validates codec filters
func (f *Filter) checkCodec(p *parser.ParsedRelease) bool {
	if len(f.cfg.AllowedCodecs) == 0 && len(f.cfg.BlockedCodecs) == 0 {
		return true
	}
	if p.Codec == "" {
		return len(f.cfg.AllowedCodecs) == 0
	}

	for _, blocked := range f.cfg.BlockedCodecs {
		if codecMatches(p.Codec, blocked) {
			return false
		}
	}
	if len(f.cfg.AllowedCodecs) == 0 {
		return true
	}
	for _, allowed := range f.cfg.AllowedCodecs {
		if codecMatches(p.Codec, allowed) {
			return true
		}
	}
	return false
}

// checkGroup rejects blocked release groups
func (f *Filter) checkGroup(p *parser.ParsedRelease) bool {
	if p.Group == "" {
		return true
	}
	for _, g := range f.cfg.BlockedGroups {
		if strings.EqualFold(p.Group, g) {
			return false
		}
	}
	return true
}

// checkLanguage keeps subtitles in an allowed language
func (f *Filter) checkLanguage(r backend.Result) bool {
	if len(f.cfg.Languages) == 0 || r.Language == "" {
		return true
	}
	for _, lang := range f.cfg.Languages {
		if strings.EqualFold(r.Language, lang) {
			return true
		}
	}
	return false
}
