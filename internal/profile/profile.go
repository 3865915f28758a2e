// Package profile models the set of active deployment profiles.
package profile

import (
	"strings"
)

const (
	// Development enables developer tooling such as the database console.
	Development = "dev"
	// Production enables static resource caching and the built asset tree.
	Production = "prod"

	// Default is used when no profile is configured.
	Default = Development
)

// Set is an ordered, duplicate-free list of active profiles.
type Set struct {
	active []string
	index  map[string]struct{}
}

// New returns a Set containing the given profiles. Empty names are ignored;
// an empty result falls back to Default.
func New(profiles ...string) Set {
	s := Set{index: make(map[string]struct{}, len(profiles))}
	for _, p := range profiles {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := s.index[p]; dup {
			continue
		}
		s.index[p] = struct{}{}
		s.active = append(s.active, p)
	}
	if len(s.active) == 0 {
		s.active = []string{Default}
		s.index[Default] = struct{}{}
	}
	return s
}

// Parse builds a Set from a comma-separated list such as "prod,metrics".
func Parse(list string) Set {
	return New(strings.Split(list, ",")...)
}

// Active returns the profiles in declaration order.
func (s Set) Active() []string {
	out := make([]string, len(s.active))
	copy(out, s.active)
	return out
}

// IsActive reports whether profile p is active.
func (s Set) IsActive(p string) bool {
	_, ok := s.index[p]
	return ok
}

// Accepts reports whether any expression matches. "p" matches an active
// profile, "!p" matches when p is not active.
func (s Set) Accepts(exprs ...string) bool {
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if negated, ok := strings.CutPrefix(expr, "!"); ok {
			if !s.IsActive(strings.TrimSpace(negated)) {
				return true
			}
			continue
		}
		if s.IsActive(expr) {
			return true
		}
	}
	return false
}

// String renders the profiles as "[dev, fast]".
func (s Set) String() string {
	return "[" + strings.Join(s.active, ", ") + "]"
}
