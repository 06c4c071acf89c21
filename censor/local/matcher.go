package local

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/aiocensor/aiocensor/censor"

	ahocorasick "github.com/BobuSumisu/aho-corasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type MatcherOptions struct {
	// Logic enables combinable patterns: "a&b" requires every term, "a~c"
	// requires a and excludes c.
	Logic bool
	// Exact only reports patterns equal to the whole input.
	Exact bool
	// Normalize folds compatibility forms, strips combining marks and
	// lower-cases both patterns and input.
	Normalize bool
}

type rule struct {
	pattern string
	require []int
	exclude []int
}

// Matcher is a compiled, immutable pattern set. Find reports the original
// pattern strings, not the terms they were split into.
type Matcher struct {
	opts  MatcherOptions
	trie  *ahocorasick.Trie
	terms []string
	rules []rule
	// term index -> rules that require it
	byTerm [][]int
}

// Compile builds the automaton for patterns. Empty patterns and duplicates are
// skipped. A malformed logic pattern is censor.ErrInvalidPattern.
func Compile(patterns []string, opts MatcherOptions) (*Matcher, error) {
	m := &Matcher{opts: opts}
	termIdx := make(map[string]int)
	term := func(t string) int {
		if opts.Normalize {
			t = normalize(t)
		}
		if i, ok := termIdx[t]; ok {
			return i
		}
		i := len(m.terms)
		termIdx[t] = i
		m.terms = append(m.terms, t)
		m.byTerm = append(m.byTerm, nil)
		return i
	}

	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true

		require, exclude := []string{p}, []string(nil)
		if opts.Logic && strings.ContainsAny(p, "&~") {
			var err error
			require, exclude, err = parseLogic(p)
			if err != nil {
				return nil, censor.Errorf(censor.ErrInvalidPattern, Provider, "pattern %q: %v", p, err)
			}
		}

		r := rule{pattern: p}
		for _, t := range require {
			r.require = append(r.require, term(t))
		}
		for _, t := range exclude {
			r.exclude = append(r.exclude, term(t))
		}
		for _, ti := range r.require {
			m.byTerm[ti] = append(m.byTerm[ti], len(m.rules))
		}
		m.rules = append(m.rules, r)
	}

	if len(m.terms) > 0 {
		m.trie = ahocorasick.NewTrieBuilder().AddStrings(m.terms).Build()
	}
	return m, nil
}

func parseLogic(p string) (require, exclude []string, err error) {
	parts := strings.Split(p, "~")
	for _, t := range strings.Split(parts[0], "&") {
		if t == "" {
			return nil, nil, errors.New("empty required term")
		}
		require = append(require, t)
	}
	for _, t := range parts[1:] {
		if t == "" {
			return nil, nil, errors.New("empty excluded term")
		}
		if strings.Contains(t, "&") {
			return nil, nil, errors.New("'&' is not allowed after '~'")
		}
		exclude = append(exclude, t)
	}
	return require, exclude, nil
}

// Len is the number of distinct patterns.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Find returns the sorted set of patterns matching text.
func (m *Matcher) Find(text string) []string {
	if m.trie == nil || text == "" {
		return nil
	}
	if m.opts.Normalize {
		text = normalize(text)
	}

	hit := make([]bool, len(m.terms))
	for _, match := range m.trie.MatchString(text) {
		if m.opts.Exact && (match.Pos() != 0 || len(match.MatchString()) != len(text)) {
			continue
		}
		hit[match.Pattern()] = true
	}

	var out []string
	checked := make(map[int]bool)
	for ti, ok := range hit {
		if !ok {
			continue
		}
		for _, ri := range m.byTerm[ti] {
			if checked[ri] {
				continue
			}
			checked[ri] = true
			if m.rules[ri].matches(hit) {
				out = append(out, m.rules[ri].pattern)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (r rule) matches(hit []bool) bool {
	for _, ti := range r.require {
		if !hit[ti] {
			return false
		}
	}
	for _, ti := range r.exclude {
		if hit[ti] {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	// transformers are stateful; build a fresh chain per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
