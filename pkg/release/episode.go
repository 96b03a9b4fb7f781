package release

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Episode identifies one episode (or a two-episode range) either by its
// season/episode numbers or by the date it aired.
type Episode struct {
	Season        int
	Episode       int
	SecondEpisode int
	AirDate       time.Time
}

// Valid reports whether the identifier carries numbering or an air date.
func (e Episode) Valid() bool {
	return (e.Season > 0 && e.Episode > 0) || !e.AirDate.IsZero()
}

// IsRange reports whether the identifier spans two episodes.
func (e Episode) IsRange() bool {
	return e.Season > 0 && e.Episode > 0 && e.SecondEpisode > 0
}

// String renders S02E14, S06E17-18 or 2010-01-02.
func (e Episode) String() string {
	switch {
	case e.IsRange():
		return fmt.Sprintf("S%02dE%02d-%02d", e.Season, e.Episode, e.SecondEpisode)
	case e.Season > 0 && e.Episode > 0:
		return fmt.Sprintf("S%02dE%02d", e.Season, e.Episode)
	case !e.AirDate.IsZero():
		return e.AirDate.Format("2006-01-02")
	}
	return ""
}

// episodeForm is one alternative of the numbering alternation. Groups are
// named per alternative because RE2 numbers every group of the combined
// expression.
type episodeForm struct {
	pattern string
	season  string
	episode string
	second  string
	date    bool
}

// Alternatives are tried leftmost-first, in this order. Ranges come before
// the plain forms so they are not shadowed by their own prefix.
var episodeForms = []episodeForm{
	{pattern: `S\d*?(?P<rs>\d{1,2})E(?P<re>\d{1,2})(?:-E|-|E)(?P<re2>\d{1,2})(?:\D|$)`, season: "rs", episode: "re", second: "re2"},
	{pattern: `S\d*?(?P<ss>\d{1,2})E(?P<se>\d{1,2})(?:\D|$)`, season: "ss", episode: "se"},
	{pattern: `(?:^|\D)(?P<xrs>\d{1,2})x(?P<xre>\d{1,2})-(?P<xre2>\d{1,2})(?:\D|$)`, season: "xrs", episode: "xre", second: "xre2"},
	{pattern: `(?:^|\D)(?P<xs>\d{1,2})x(?P<xe>\d{1,2})(?:\D|$)`, season: "xs", episode: "xe"},
	{pattern: `(?:^|\D)(?P<year>(?:19|20)\d{2})[.\-_ ](?P<month>\d{2})[.\-_ ](?P<day>\d{2})(?:\D|$)`, date: true},
}

var (
	episodeRegex = compileEpisodeForms()

	// splitRegex is the looser numbering pattern used to cut a title off
	// its numbering: only S00E00 and 0x00.
	splitRegex = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(S\d{1,3}E\d{1,3}|\d{1,2}x\d{1,3})(?:$|\D)`)
)

func compileEpisodeForms() *regexp.Regexp {
	expr := "(?i)"
	for i, form := range episodeForms {
		if i > 0 {
			expr += "|"
		}
		expr += "(?:" + form.pattern + ")"
	}
	return regexp.MustCompile(expr)
}

// ExtractEpisode parses the season/episode numbering or air date out of a
// combined name and numbering string.
func ExtractEpisode(s string) (Episode, bool) {
	m := episodeRegex.FindStringSubmatchIndex(s)
	if m == nil {
		return Episode{}, false
	}
	group := func(name string) (int, bool) {
		idx := episodeRegex.SubexpIndex(name)
		if idx < 0 || m[2*idx] < 0 {
			return 0, false
		}
		n, err := strconv.Atoi(s[m[2*idx]:m[2*idx+1]])
		return n, err == nil
	}

	for _, form := range episodeForms {
		if form.date {
			year, ok := group("year")
			if !ok {
				continue
			}
			month, _ := group("month")
			day, _ := group("day")
			date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if date.Month() != time.Month(month) || date.Day() != day {
				return Episode{}, false
			}
			return Episode{AirDate: date}, true
		}

		season, ok := group(form.season)
		if !ok {
			continue
		}
		ep := Episode{Season: season}
		ep.Episode, _ = group(form.episode)
		if form.second != "" {
			ep.SecondEpisode, _ = group(form.second)
		}
		if !ep.Valid() {
			return Episode{}, false
		}
		return ep, true
	}
	return Episode{}, false
}

// FormatEpisode extracts the numbering from s and renders season and episode
// through a fmt format such as "S%02dE%02d" or "%dx%02d".
func FormatEpisode(s, format string) (string, bool) {
	ep, ok := ExtractEpisode(s)
	if !ok || ep.Season == 0 {
		return "", false
	}
	return fmt.Sprintf(format, ep.Season, ep.Episode), true
}

// Split separates the leading title text from the episode numbering. The
// numbering part runs from the S00E00 / 0x00 token to the end of s.
func Split(s string) (title, numbering string, ok bool) {
	m := splitRegex.FindStringSubmatchIndex(s)
	if m == nil {
		return s, "", false
	}
	start := m[2]
	title = trimSeparators(s[:start])
	return title, s[start:], true
}

func trimSeparators(s string) string {
	end := len(s)
	for end > 0 {
		switch s[end-1] {
		case ' ', '.', '_', '-', '[', '(', '\t':
			end--
			continue
		}
		break
	}
	start := 0
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	return s[start:end]
}
