// Package textmatch finds repeated pattern matches in raw text and keeps the
// compiled form of recently used patterns in an LRU cache.
package textmatch

import (
	"errors"
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when NewMatcher is given a non-positive size.
const DefaultCacheSize = 128

// ErrInvalidPattern is returned when a pattern does not compile.
var ErrInvalidPattern = errors.New("textmatch: invalid pattern")

// FindAll returns every non-overlapping match of re in s, scanned left to
// right. Go regexps have no sticky or global flag, so every call is a full
// repeated search from the start of s. No match yields an empty result.
func FindAll(re *regexp.Regexp, s string) []string {
	if re == nil || s == "" {
		return nil
	}
	return re.FindAllString(s, -1)
}

// Matcher compiles patterns on demand and caches the result.
// It is safe for concurrent use.
type Matcher struct {
	cache *lru.Cache[string, *regexp.Regexp]
}

// NewMatcher returns a Matcher holding up to size compiled patterns.
func NewMatcher(size int) (*Matcher, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, err
	}
	return &Matcher{cache: cache}, nil
}

// Compile returns the compiled form of pattern, reusing a cached copy when
// one exists.
func (m *Matcher) Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	m.cache.Add(pattern, re)
	return re, nil
}

// FindAll compiles pattern and returns all of its matches in s.
func (m *Matcher) FindAll(pattern, s string) ([]string, error) {
	re, err := m.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return FindAll(re, s), nil
}

// FirstGroup returns the first capture group of the leftmost match of
// pattern in s. ok is false when there is no match.
func (m *Matcher) FirstGroup(pattern, s string) (group string, ok bool, err error) {
	re, err := m.Compile(pattern)
	if err != nil {
		return "", false, err
	}
	sub := re.FindStringSubmatch(s)
	if len(sub) < 2 {
		return "", false, nil
	}
	return sub[1], true, nil
}

// Len reports how many compiled patterns are cached.
func (m *Matcher) Len() int { return m.cache.Len() }
