package processors

import "strings"

// MatchStrategy names the rule that resolved a holder reference.
type MatchStrategy int

const (
	MatchNone MatchStrategy = iota
	MatchExact
	MatchExactFold
	MatchSubstring
)

func (s MatchStrategy) String() string {
	switch s {
	case MatchExact:
		return "exact"
	case MatchExactFold:
		return "exact_fold"
	case MatchSubstring:
		return "substring"
	default:
		return "none"
	}
}

// HolderMatcher resolves free-text holder names against the set of known
// holders. Strategies are tried in rank order: exact match, case-folded
// exact match, then substring containment in either direction. Substring
// matching scans holders in insertion order and the first hit wins; the
// tie-break between multiple containing names is that insertion order.
type HolderMatcher struct {
	names  []string       // insertion order
	exact  map[string]int // name -> position
	folded map[string]int // lowercased name -> first position
}

// NewHolderMatcher builds a matcher over holder names in their insertion
// order.
func NewHolderMatcher(names []string) *HolderMatcher {
	m := &HolderMatcher{
		names:  make([]string, len(names)),
		exact:  make(map[string]int, len(names)),
		folded: make(map[string]int, len(names)),
	}
	copy(m.names, names)
	for i, name := range names {
		if _, ok := m.exact[name]; !ok {
			m.exact[name] = i
		}
		lower := strings.ToLower(name)
		if _, ok := m.folded[lower]; !ok {
			m.folded[lower] = i
		}
	}
	return m
}

// Match resolves a holder-name field to the position of a known holder.
// It returns -1 and MatchNone when no strategy produces a candidate.
func (m *HolderMatcher) Match(name string) (int, MatchStrategy) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return -1, MatchNone
	}
	if pos, ok := m.exact[trimmed]; ok {
		return pos, MatchExact
	}
	if pos, ok := m.folded[strings.ToLower(trimmed)]; ok {
		return pos, MatchExactFold
	}
	for i, candidate := range m.names {
		if strings.Contains(trimmed, candidate) || strings.Contains(candidate, trimmed) {
			return i, MatchSubstring
		}
	}
	return -1, MatchNone
}

// Name returns the holder name at a position returned by Match.
func (m *HolderMatcher) Name(pos int) string {
	return m.names[pos]
}
