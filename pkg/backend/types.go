package backend

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"showtracker/pkg/release"
)

// Backend is a pluggable search source: a torrent site, usenet index, HTTP
// hoster or subtitle site.
type Backend interface {
	Descriptor() Descriptor
	Search(ctx context.Context, query string) ([]Result, error)
}

// Authenticator is implemented by backends whose auth state can be set from
// the credential store.
type Authenticator interface {
	SetAuth(AuthState)
	Auth() AuthState
}

// Loginer is implemented by backends that can obtain fresh auth state from a
// username and password.
type Loginer interface {
	LoginWith(ctx context.Context, username, password string) (AuthState, error)
}

// CredentialStore hands out stored cookies, logins and API keys by key.
// Missing keys return "".
type CredentialStore interface {
	Get(key string) string
}

// Type tags what a backend produces and what its result URLs point to.
type Type int

const (
	Torrent Type = iota
	Usenet
	HTTP
	DirectHTTP
	Subtitle
)

var typeNames = [...]string{
	Torrent:    "torrent",
	Usenet:     "usenet",
	HTTP:       "http",
	DirectHTTP: "direct-http",
	Subtitle:   "subtitle",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

// MarshalText encodes the lower-case type name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *Type) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range typeNames {
		if n == name {
			*t = Type(i)
			return nil
		}
	}
	return fmt.Errorf("unknown backend type %q", text)
}

// Descriptor is the static description of a backend.
type Descriptor struct {
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	Type         Type   `json:"type"`
	RequiresAuth bool   `json:"requires_auth"`
	CanLogin     bool   `json:"can_login"`
}

// AuthState is whatever a backend needs to authenticate its requests.
type AuthState struct {
	Cookies  string
	Username string
	Password string
	APIKey   string
}

// Empty reports whether no credential of any kind is set.
func (a AuthState) Empty() bool {
	return a.Cookies == "" && a.APIKey == "" && (a.Username == "" || a.Password == "")
}

// Result is one download or subtitle candidate. Treat it as immutable once
// returned from a backend.
type Result struct {
	Backend  string          `json:"backend"`
	Release  string          `json:"release"`
	Quality  release.Quality `json:"quality"`
	Size     int64           `json:"size,omitempty"`
	Type     Type            `json:"type"`
	URLs     []string        `json:"urls"`
	Direct   bool            `json:"direct,omitempty"`
	Language string          `json:"language,omitempty"`
}

// NewResult builds a Result, classifying its quality from the release name.
// The urls are copied without empty or repeated entries.
func NewResult(backend string, typ Type, releaseName string, size int64, urls ...string) Result {
	links := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || slices.Contains(links, u) {
			continue
		}
		links = append(links, u)
	}
	return Result{
		Backend: backend,
		Release: releaseName,
		Quality: release.ParseQuality(releaseName),
		Size:    size,
		Type:    typ,
		URLs:    links,
		Direct:  typ == DirectHTTP,
	}
}

// URL returns the primary link.
func (r Result) URL() string {
	if len(r.URLs) == 0 {
		return ""
	}
	return r.URLs[0]
}
