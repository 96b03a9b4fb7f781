package release

import (
	"maps"
	"strings"
	"sync/atomic"
)

// builtinExceptions maps show titles to the name scene releases actually use.
var builtinExceptions = map[string]string{
	"Sci-Fi Science: Physics of the Impossible": "Sci Fi Science",
	"Law & Order: Special Victims Unit":         "Law and Order SVU",
	"CSI: Crime Scene Investigation":            "CSI",
	"Marvel's Agents of S.H.I.E.L.D.":           "Agents of SHIELD",
	"The Daily Show with Jon Stewart":           "The Daily Show",
}

// exceptions holds the active table. It is replaced whole and never mutated,
// so lookups need no lock.
var exceptions atomic.Pointer[map[string]string]

func init() {
	SetExceptions(nil)
}

// SetExceptions replaces the configured scene names. The built-in table is
// always included; entries in extra override it.
func SetExceptions(extra map[string]string) {
	table := maps.Clone(builtinExceptions)
	for title, scene := range extra {
		table[strings.TrimSpace(title)] = scene
	}
	exceptions.Store(&table)
}

func lookupException(title string) (string, bool) {
	alt, ok := (*exceptions.Load())[strings.TrimSpace(title)]
	return alt, ok
}
