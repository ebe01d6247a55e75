// Package registry resolves step descriptions to known actions by literal
// phrase.
package registry

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neuroassist/neuroassist/pkg/catalog"
	"github.com/neuroassist/neuroassist/pkg/command"
)

type Registry struct {
	entries []catalog.Entry
	phrases []string
}

// New orders entries by priority, then by phrase length (longest first),
// then by catalog order. The order is fixed for the registry's lifetime.
func New(entries []catalog.Entry) *Registry {
	sorted := make([]catalog.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return utf8.RuneCountInString(sorted[i].Phrase) > utf8.RuneCountInString(sorted[j].Phrase)
	})

	phrases := make([]string, len(sorted))
	for i, e := range sorted {
		phrases[i], _ = fold(strings.TrimSpace(e.Phrase))
	}
	return &Registry{entries: sorted, phrases: phrases}
}

// Entries returns the entries in match order.
func (r *Registry) Entries() []catalog.Entry {
	out := make([]catalog.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Match returns the plan of the first entry whose phrase occurs in desc as a
// whole word sequence.
func (r *Registry) Match(desc string) (command.ActionPlan, bool) {
	lowered, origin := fold(desc)
	for i, phrase := range r.phrases {
		idx := indexWord(lowered, phrase)
		if idx < 0 {
			continue
		}
		e := r.entries[i]
		plan := command.ActionPlan{
			Source:   command.SourceRegistry,
			ActionID: e.Action,
		}
		if e.Parameterized() {
			plan.Argument = trailing(desc, origin[idx+len(phrase)])
		}
		return plan, true
	}
	return command.ActionPlan{}, false
}

// indexWord finds phrase in s where it is not glued to surrounding letters or
// digits.
func indexWord(s, phrase string) int {
	if phrase == "" {
		return -1
	}
	offset := 0
	for {
		idx := strings.Index(s[offset:], phrase)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		end := start + len(phrase)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return start
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// fold lowercases s rune by rune. origin maps every byte offset of the
// folded string (plus its end) to the offset of the same rune in s, since
// lowering may change a rune's encoded width.
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

// trailing extracts the free text after byte offset end of original,
// keeping the caller's casing.
func trailing(original string, end int) string {
	if end > len(original) {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(original[end:], " :,-"))
}
