package release

import (
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

var (
	yearSuffixRegex    = regexp.MustCompile(`\s*\((20\d{2})\)$`)
	countrySuffixRegex = regexp.MustCompile(`\s*\((US|UK|AU)\)$`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
)

// commonWords are dropped from a title when comparing loosely.
var commonWords = map[string]bool{
	"AND": true,
	"THE": true,
	"OF":  true,
	"A":   true,
}

// Title is the ordered sequence of root tokens of a show name.
type Title []string

// Equal reports whether both titles have the same tokens in the same order.
func (t Title) Equal(other Title) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// Hash sums the per-token hashes. It ignores token order, so it is only
// suitable for bucketing; use Equal for identity.
func (t Title) Hash() uint64 {
	var sum uint64
	for _, token := range t {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum += h.Sum64()
	}
	return sum
}

// String joins the tokens with single spaces.
func (t Title) String() string {
	return strings.Join(t, " ")
}

// GetRoot reduces a show title to its comparable root tokens.
//
// With removeCommon the words AND, THE, OF and A are dropped along with any
// single-letter token that is not the first one. Without it (strict mode)
// only a leading THE is dropped and single letters other than A and I go.
func GetRoot(title string, removeCommon bool) Title {
	if alt, ok := lookupException(title); ok {
		title = alt
	}

	name := strings.ToUpper(unidecode.Unidecode(title))
	name = stripSpecialChars(name)
	name = strings.TrimSpace(whitespaceRegex.ReplaceAllString(name, " "))
	name = yearSuffixRegex.ReplaceAllString(name, "")
	name = countrySuffixRegex.ReplaceAllString(name, "")

	tokens := strings.Fields(name)
	if removeCommon {
		tokens = dropCommon(tokens)
	} else {
		tokens = dropStrict(tokens)
	}
	if tokens == nil {
		return Title{}
	}
	return Title(tokens)
}

// TitleRoot is GetRoot in its default, loose mode.
func TitleRoot(title string) Title {
	return GetRoot(title, true)
}

// SameShow reports whether two titles reduce to the same root.
func SameShow(a, b string) bool {
	return TitleRoot(a).Equal(TitleRoot(b))
}

// Normalize roots the title part of s and keeps any episode numbering
// suffix untouched apart from lower-casing it.
func Normalize(s string) string {
	title, numbering, ok := Split(s)
	if !ok {
		return TitleRoot(s).String()
	}
	root := TitleRoot(title).String()
	numbering = strings.ToLower(numbering)
	if root == "" {
		return numbering
	}
	return root + " " + numbering
}

// stripSpecialChars deletes apostrophes, so "Grey's" becomes "GREYS" as in
// scene names, and replaces everything else that is not a letter, digit,
// whitespace or parenthesis with a space.
func stripSpecialChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r), r == '(', r == ')':
			return r
		case isApostrophe(r):
			return -1
		default:
			return ' '
		}
	}, s)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '\u2019' || r == '\u2018' || r == '`'
}

func dropCommon(tokens []string) []string {
	var kept []string
	for _, token := range tokens {
		if commonWords[token] {
			continue
		}
		kept = append(kept, token)
	}

	var out []string
	for i, token := range kept {
		if i > 0 && isSingleLetter(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func dropStrict(tokens []string) []string {
	var out []string
	for i, token := range tokens {
		if i == 0 && token == "THE" {
			continue
		}
		if isSingleLetter(token) && token != "A" && token != "I" {
			continue
		}
		out = append(out, token)
	}
	return out
}

func isSingleLetter(token string) bool {
	runes := []rune(token)
	return len(runes) == 1 && unicode.IsLetter(runes[0])
}
