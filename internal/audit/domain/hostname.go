package domain

import (
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Hostname is a fully qualified name built as "<name>.<domain>".
type Hostname string

// AbsentHostname marks a block whose name or domain field is missing.
const AbsentHostname Hostname = ""

// IsAbsent reports whether h is the absent marker.
func (h Hostname) IsAbsent() bool { return h == AbsentHostname }

func (h Hostname) String() string { return string(h) }

// Apex returns the registrable domain (eTLD+1) of h, lowercased and without
// trailing dots. A name that has no label above its public suffix is
// returned in that normalised form.
func (h Hostname) Apex() string {
	name := strings.TrimRight(strings.ToLower(strings.TrimSpace(string(h))), ".")
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

// HostnameSet is an unordered set of hostnames.
type HostnameSet map[Hostname]struct{}

// NewHostnameSet returns a set holding the given hostnames.
func NewHostnameSet(hosts ...Hostname) HostnameSet {
	s := make(HostnameSet, len(hosts))
	for _, h := range hosts {
		s[h] = struct{}{}
	}
	return s
}

// Add inserts h.
func (s HostnameSet) Add(h Hostname) { s[h] = struct{}{} }

// Remove deletes h if present.
func (s HostnameSet) Remove(h Hostname) { delete(s, h) }

// Has reports whether h is a member.
func (s HostnameSet) Has(h Hostname) bool {
	_, ok := s[h]
	return ok
}

// Len returns the number of members.
func (s HostnameSet) Len() int { return len(s) }

// Merge adds every member of other to s in place.
func (s HostnameSet) Merge(other HostnameSet) {
	for h := range other {
		s[h] = struct{}{}
	}
}

// Difference returns the members of s that are not in other.
func (s HostnameSet) Difference(other HostnameSet) HostnameSet {
	out := make(HostnameSet)
	for h := range s {
		if !other.Has(h) {
			out[h] = struct{}{}
		}
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s HostnameSet) Equal(other HostnameSet) bool {
	if len(s) != len(other) {
		return false
	}
	for h := range s {
		if !other.Has(h) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (s HostnameSet) Sorted() []Hostname {
	out := make([]Hostname, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
