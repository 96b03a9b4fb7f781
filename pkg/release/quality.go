package release

import (
	"fmt"
	"regexp"
	"strings"
)

// Quality is a rung on the source/resolution ladder. Higher is better.
type Quality int

const (
	Unknown Quality = iota
	TVRip
	HDTVXviD
	HRx264
	HDTV720p
	WebDL720p
	BluRay720p
	HDTV1080i
	HDTV1080p
	WebDL1080p
	BluRay1080p
)

var qualityLabels = [...]string{
	Unknown:     "Unknown",
	TVRip:       "TVRip",
	HDTVXviD:    "HDTV XviD",
	HRx264:      "HR x264",
	HDTV720p:    "HDTV 720p",
	WebDL720p:   "WEB-DL 720p",
	BluRay720p:  "BluRay 720p",
	HDTV1080i:   "HDTV 1080i",
	HDTV1080p:   "HDTV 1080p",
	WebDL1080p:  "WEB-DL 1080p",
	BluRay1080p: "BluRay 1080p",
}

// Qualities lists every value from worst to best.
func Qualities() []Quality {
	out := make([]Quality, 0, len(qualityLabels))
	for q := range qualityLabels {
		out = append(out, Quality(q))
	}
	return out
}

func (q Quality) String() string {
	if q < 0 || int(q) >= len(qualityLabels) {
		return qualityLabels[Unknown]
	}
	return qualityLabels[q]
}

// MarshalText encodes the canonical label.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText accepts a canonical label, case-insensitively.
func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQualityLabel(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// ParseQualityLabel is the exact inverse of Quality.String.
func ParseQualityLabel(label string) (Quality, error) {
	for q, l := range qualityLabels {
		if strings.EqualFold(l, strings.TrimSpace(label)) {
			return Quality(q), nil
		}
	}
	return Unknown, fmt.Errorf("unknown quality label %q", label)
}

const (
	resolution1080p = `1080p`
	resolution1080i = `1080i`
	resolution720p  = `720p`
	sourceBluRay    = `blu-?ray|bdrip|brrip|bd5|bd9|bd25|bd50`
	sourceWeb       = `web-?dl|web-?rip|web|itunes|amzn|nf`
	sourceHR        = `hr|x264|h\.?264|avc`
	sourceSD        = `hdtv|pdtv|sdtv|dsr|dvb|xvid|divx`
	sourceTVRip     = `tv-?rip|vhs-?rip|dvd-?rip|satrip|sd`
)

type qualityRule struct {
	quality Quality
	// every pattern must match
	patterns []*regexp.Regexp
}

// qualityRules is checked top to bottom and the first full match wins. The
// order matters: a bare resolution rule placed earlier would shadow the
// source-specific rules for the same resolution.
var qualityRules = []qualityRule{
	{BluRay1080p, words(resolution1080p, sourceBluRay)},
	{WebDL1080p, words(resolution1080p, sourceWeb)},
	{HDTV1080i, words(resolution1080i)},
	{HDTV1080p, words(resolution1080p)},
	{BluRay720p, words(resolution720p, sourceBluRay)},
	{WebDL720p, words(resolution720p, sourceWeb)},
	{HDTV720p, words(resolution720p)},
	{HRx264, words(sourceHR)},
	{HDTVXviD, words(sourceSD)},
	{TVRip, words(sourceTVRip)},
}

var extensionRules = []struct {
	ext     string
	quality Quality
}{
	{".ts", HDTV1080i},
	{".mkv", HDTV720p},
	{".avi", HDTVXviD},
	{".mov", TVRip},
	{".mpg", TVRip},
}

func words(alternations ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(alternations))
	for i, alt := range alternations {
		out[i] = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:` + alt + `)(?:[^a-z0-9]|$)`)
	}
	return out
}

// ParseQuality classifies a release name or file name.
func ParseQuality(s string) Quality {
	s = strings.ReplaceAll(s, "\u00a0", ".")
	s = strings.ReplaceAll(s, " ", ".")

	for _, rule := range qualityRules {
		if matchesAll(rule.patterns, s) {
			return rule.quality
		}
	}

	lower := strings.ToLower(s)
	for _, rule := range extensionRules {
		if strings.HasSuffix(lower, rule.ext) {
			return rule.quality
		}
	}
	return Unknown
}

func matchesAll(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if !re.MatchString(s) {
			return false
		}
	}
	return true
}
