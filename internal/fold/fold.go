// Package fold normalizes text for the search index: accent folding,
// case folding, whitespace collapsing, and the boundary padding every
// indexed value carries.
package fold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PadRun is the number of space characters added on each side of an
// indexed value. Search patterns of the form "% term%" rely on this
// padding to match the first token of the source text.
const PadRun = 3

var padding = strings.Repeat(" ", PadRun)

// accent folding: decompose, strip combining marks, recompose
var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold returns the accent-folded, lower-cased form of s with internal
// whitespace collapsed to single spaces.
func Fold(s string) string {
	folded, _, err := transform.String(folder, s)
	if err != nil {
		// fall back to the unfolded input rather than losing the value
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Pad wraps an already-folded value in the boundary padding. Every value
// written to the search index must pass through Pad; searching an
// unpadded value breaks the word-boundary matching contract.
func Pad(s string) string {
	return padding + s + padding
}

// Index folds and pads in one step.
func Index(s string) string {
	return Pad(Fold(s))
}
