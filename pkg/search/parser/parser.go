// Package parser reads release metadata with go-ptt. It backs up the
// release package when a name has no numbering it can split on.
package parser

import (
	"strconv"
	"strings"

	"github.com/MunifTanjim/go-ptt"

	"showtracker/pkg/release"
)

// ParsedRelease contains parsed metadata from a release title
type ParsedRelease struct {
	Title      string
	Year       int
	Resolution string
	Quality    string
	Codec      string
	Container  string
	Group      string
	Seasons    []int
	Episodes   []int
	Languages  []string
	Network    string
	Repack     bool
	Proper     bool
}

// ParseReleaseTitle parses a release title using go-ptt
func ParseReleaseTitle(title string) *ParsedRelease {
	info := ptt.Parse(title)

	parsed := &ParsedRelease{
		Title:      strings.TrimSpace(info.Title),
		Resolution: info.Resolution,
		Quality:    info.Quality,
		Codec:      info.Codec,
		Container:  info.Container,
		Group:      info.Group,
		Seasons:    info.Seasons,
		Episodes:   info.Episodes,
		Languages:  info.Languages,
		Network:    info.Network,
		Repack:     info.Repack,
		Proper:     info.Proper,
	}
	if info.Year != "" {
		if year, err := strconv.Atoi(info.Year); err == nil {
			parsed.Year = year
		}
	}
	return parsed
}

// Episode returns the first season/episode pair, with a second episode when
// the release covers two. ok is false when either number is missing.
func (p *ParsedRelease) Episode() (release.Episode, bool) {
	if p == nil || len(p.Seasons) == 0 || len(p.Episodes) == 0 {
		return release.Episode{}, false
	}
	ep := release.Episode{Season: p.Seasons[0], Episode: p.Episodes[0]}
	if len(p.Episodes) > 1 {
		ep.SecondEpisode = p.Episodes[len(p.Episodes)-1]
	}
	return ep, ep.Valid()
}

// ResolutionGroup returns the resolution group (4k, 1080p, 720p, sd) from parsed metadata.
func (p *ParsedRelease) ResolutionGroup() string {
	if p == nil {
		return "sd"
	}
	res := strings.ToLower(p.Resolution)
	switch {
	case strings.Contains(res, "2160") || strings.Contains(res, "4k"):
		return "4k"
	case strings.Contains(res, "1080"):
		return "1080p"
	case strings.Contains(res, "720"):
		return "720p"
	}
	return "sd"
}
