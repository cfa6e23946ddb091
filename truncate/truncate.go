// Package truncate shortens text to a budget of user-perceived characters
// (grapheme clusters) without splitting words or clusters.
package truncate

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Ellipsis is the marker placed at the end of truncated text. It counts as
// one grapheme.
const Ellipsis = "…"

// ToWord trims text and bounds it to maxGraphemes grapheme clusters.
//
// Text that already fits is returned trimmed. Longer text is cut at the last
// space inside the budget (or at the budget itself when the only space is at
// the start or there is none), trailing spaces are dropped and [Ellipsis] is
// appended. When the cut text fills the whole budget the last grapheme is
// replaced by the marker instead, so the result never exceeds maxGraphemes.
//
// A budget of zero or less disables truncation.
func ToWord(text string, maxGraphemes int) string {
	trimmed := strings.TrimSpace(text)

	if maxGraphemes <= 0 || trimmed == "" {
		return trimmed
	}

	if uniseg.GraphemeClusterCount(trimmed) <= maxGraphemes {
		return trimmed
	}

	clusters := split(trimmed, maxGraphemes)

	if i := lastSpace(clusters); i > 0 {
		clusters = clusters[:i]
	}

	for len(clusters) > 0 && clusters[len(clusters)-1] == " " {
		clusters = clusters[:len(clusters)-1]
	}

	if len(clusters) < maxGraphemes {
		clusters = append(clusters, Ellipsis)
	} else {
		clusters[len(clusters)-1] = Ellipsis
	}

	return strings.Join(clusters, "")
}

// Len returns the number of grapheme clusters in s.
func Len(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// split returns at most limit leading grapheme clusters of s.
func split(s string, limit int) []string {
	clusters := make([]string, 0, limit)

	gr := uniseg.NewGraphemes(s)
	for len(clusters) < limit && gr.Next() {
		clusters = append(clusters, gr.Str())
	}

	return clusters
}

func lastSpace(clusters []string) int {
	for i := len(clusters) - 1; i >= 0; i-- {
		if clusters[i] == " " {
			return i
		}
	}

	return -1
}
