// Package decompose splits one natural-language command into ordered step
// descriptions.
package decompose

import (
	"strings"
	"unicode"
)

type Decomposer struct {
	markers []string
}

// New keeps markers in the given order. Empty markers are ignored.
func New(markers []string) *Decomposer {
	kept := make([]string, 0, len(markers))
	for _, m := range markers {
		if m != "" {
			kept = append(kept, strings.ToLower(m))
		}
	}
	return &Decomposer{markers: kept}
}

func (d *Decomposer) Markers() []string {
	out := make([]string, len(d.markers))
	copy(out, d.markers)
	return out
}

// Split applies each marker to every current fragment in turn, then trims,
// drops empty fragments and removes duplicates keeping the first occurrence.
// Markers and duplicates are matched without regard to case; fragments keep
// the caller's casing. The result always has at least one element.
func (d *Decomposer) Split(text string) []string {
	text = strings.TrimSpace(text)
	fragments := []string{text}
	for _, marker := range d.markers {
		next := make([]string, 0, len(fragments))
		for _, f := range fragments {
			next = append(next, splitFold(f, marker)...)
		}
		fragments = next
	}

	seen := make(map[string]bool, len(fragments))
	steps := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		steps = append(steps, f)
	}

	if len(steps) == 0 {
		return []string{text}
	}
	return steps
}

// splitFold splits s around every case-insensitive occurrence of the
// lowercase marker.
func splitFold(s, marker string) []string {
	lowered, origin := fold(s)
	var parts []string
	start, from := 0, 0
	for {
		idx := strings.Index(lowered[from:], marker)
		if idx < 0 {
			break
		}
		at := from + idx
		end := at + len(marker)
		parts = append(parts, s[start:origin[at]])
		start = origin[end]
		from = end
	}
	return append(parts, s[start:])
}

// fold lowercases s rune by rune and maps each byte offset of the result
// back to the offset of its rune in s.
func fold(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	origin := make([]int, 0, len(s)+1)
	for i, r := range s {
		n, _ := b.WriteRune(unicode.ToLower(r))
		for k := 0; k < n; k++ {
			origin = append(origin, i)
		}
	}
	origin = append(origin, len(s))
	return b.String(), origin
}
