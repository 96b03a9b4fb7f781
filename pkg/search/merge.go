package search

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"showtracker/pkg/backend"
	"showtracker/pkg/release"
)

// Dedupe drops repeated results, keeping the first occurrence. Two results
// are the same when their primary links match without credentials, or when
// they have the same type, release name and size.
func Dedupe(results []backend.Result) []backend.Result {
	seenLink := make(map[string]bool)
	seenNameSize := make(map[string]bool)
	out := make([]backend.Result, 0, len(results))
	for _, r := range results {
		if link := r.URL(); link != "" {
			key := normalizeURL(link)
			if seenLink[key] {
				continue
			}
			seenLink[key] = true
		}

		if r.Size > 0 {
			key := fmt.Sprintf("%s|%s:%d", r.Type, strings.ToLower(r.Release), r.Size)
			if seenNameSize[key] {
				continue
			}
			seenNameSize[key] = true
		}
		out = append(out, r)
	}
	return out
}

// FilterEpisode keeps the results whose release name denotes the episode of
// title. Subtitle results are matched the same way.
func FilterEpisode(results []backend.Result, title string, ep release.Episode) []backend.Result {
	m := release.NewMatcher(title, ep)
	var out []backend.Result
	for _, r := range results {
		if m.Match(r.Release) {
			out = append(out, r)
		}
	}
	return out
}

// SortByQuality orders results best quality first, then by size descending.
// Equal results keep their relative order.
func SortByQuality(results []backend.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Quality != results[j].Quality {
			return results[i].Quality > results[j].Quality
		}
		return results[i].Size > results[j].Size
	})
}

// credentialParams are per-user query parameters that make the same
// download look different across accounts.
var credentialParams = []string{"apikey", "api_key", "r", "i", "passkey", "dn"}

// normalizeURL lower-cases a link and drops its fragment and credential
// parameters.
func normalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	q := parsed.Query()
	for _, p := range credentialParams {
		q.Del(p)
	}
	parsed.RawQuery = q.Encode()
	parsed.Fragment = ""
	return strings.ToLower(parsed.String())
}
