// Package ident turns arbitrary element and attribute names into identifiers
// that are safe to use as SQLite table and column names.
package ident

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

const (
	// Fallback is returned for blank input.
	Fallback = "_"

	// letterPrefix is prepended when a cleaned name does not start with a letter.
	letterPrefix = "n_"

	enginePrefix = "sqlite_"
)

var (
	invalidRun  = regexp.MustCompile(`[^A-Za-z0-9_]+`)
	underscores = regexp.MustCompile(`_+`)
)

// Normalize applies the identifier rules without diacritic folding.
func Normalize(name string) string {
	return Normalizer{}.Name(name)
}

// Normalizer maps names to identifiers. The zero value is ready to use.
type Normalizer struct {
	fold bool
}

// New returns a Normalizer. When foldDiacritics is set, combining marks are
// removed before cleaning so accented letters keep their base letter.
func New(foldDiacritics bool) Normalizer {
	return Normalizer{fold: foldDiacritics}
}

// Name returns a storage-safe identifier for name.
//
// Names that already start with the reserved prefix are returned unchanged.
// Otherwise every run of characters outside [A-Za-z0-9_] becomes a single
// underscore, a name that does not start with a letter gets the "n_" prefix,
// and repeated underscores collapse.
func (n Normalizer) Name(name string) string {
	if strings.TrimSpace(name) == "" {
		return Fallback
	}
	if strings.HasPrefix(name, types.ReservedPrefix) {
		return name
	}
	if n.fold {
		name = foldMarks(name)
	}

	cleaned := invalidRun.ReplaceAllString(name, "_")
	if !isASCIILetter(cleaned[0]) {
		cleaned = letterPrefix + cleaned
	}
	// Collapse after prefixing so Name(Name(x)) == Name(x).
	return underscores.ReplaceAllString(cleaned, "_")
}

// Table returns the table identifier for an element local name. Names the
// engine reserves for itself are prefixed.
func (n Normalizer) Table(localName string) string {
	t := n.Name(localName)
	if strings.HasPrefix(strings.ToLower(t), enginePrefix) {
		t = letterPrefix + t
	}
	return t
}

// Column returns the column identifier for an attribute or leaf element name.
// A data name never resolves to one of the reserved columns.
func (n Normalizer) Column(name string) string {
	c := n.Name(name)
	if types.IsReservedColumn(c) {
		c = "n" + c
	}
	return c
}

func foldMarks(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
