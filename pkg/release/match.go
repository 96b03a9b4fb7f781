package release

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Matcher decides whether release strings denote one known episode. Build it
// once with NewMatcher when filtering many strings.
type Matcher struct {
	tokens   Title
	variants []*regexp.Regexp
	packed   string
}

// NewMatcher precompiles the title tokens and episode variants.
func NewMatcher(title string, ep Episode) *Matcher {
	m := &Matcher{tokens: TitleRoot(title)}

	var variants []string
	switch {
	case ep.Season > 0 && ep.Episode > 0:
		variants = []string{
			fmt.Sprintf("S%02dE%02d", ep.Season, ep.Episode),
			fmt.Sprintf("S%02d.E%02d", ep.Season, ep.Episode),
			fmt.Sprintf("%dx%02d", ep.Season, ep.Episode),
		}
		m.packed = fmt.Sprintf("%d%02d", ep.Season, ep.Episode)
	case !ep.AirDate.IsZero():
		variants = []string{
			ep.AirDate.Format("2006.01.02"),
			ep.AirDate.Format("2006-01-02"),
			ep.AirDate.Format("2006 01 02"),
			ep.AirDate.Format("2006_01_02"),
		}
	}
	for _, v := range variants {
		m.variants = append(m.variants, regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])`+regexp.QuoteMeta(v)+`(?:[^\p{L}\p{N}]|$)`))
	}
	return m
}

// Match reports whether every title token appears as a whole word in release
// and at least one episode variant is present.
func (m *Matcher) Match(release string) bool {
	if len(m.variants) == 0 {
		return false
	}

	words := releaseWords(release)
	for _, token := range m.tokens {
		if !words[token] {
			return false
		}
	}

	for _, re := range m.variants {
		if re.MatchString(release) {
			return true
		}
	}
	return m.packed != "" && strings.Contains(release, m.packed)
}

// MatchEpisode is IsMatch with an already parsed episode.
func MatchEpisode(title string, ep Episode, release string) bool {
	return NewMatcher(title, ep).Match(release)
}

// IsMatch reports whether release names the given show and episode, where
// episode is any numbering ExtractEpisode understands (S02E14, 2x14,
// 2010.01.02).
func IsMatch(title, episode, release string) bool {
	ep, ok := ExtractEpisode(episode)
	if !ok {
		return false
	}
	return MatchEpisode(title, ep, release)
}

func releaseWords(release string) map[string]bool {
	upper := strings.ToUpper(unidecode.Unidecode(release))
	upper = strings.Map(func(r rune) rune {
		if isApostrophe(r) {
			return -1
		}
		return r
	}, upper)
	fields := strings.FieldsFunc(upper, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}
	return words
}
