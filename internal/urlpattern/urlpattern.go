// Package urlpattern implements servlet-style URL patterns: exact paths,
// "/prefix/*" path prefixes and "*.ext" extensions.
package urlpattern

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPattern is returned by Parse for malformed patterns.
var ErrInvalidPattern = errors.New("invalid url pattern")

// Kind classifies a pattern.
type Kind int

const (
	// Exact matches a single path.
	Exact Kind = iota
	// Prefix matches a path and everything below it.
	Prefix
	// Extension matches paths whose last segment has the extension.
	Extension
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Prefix:
		return "prefix"
	case Extension:
		return "extension"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Pattern is a parsed URL pattern.
type Pattern struct {
	raw  string
	kind Kind
	// value is the exact path, the prefix without "/*", or the extension
	// including its dot.
	value string
}

// Parse validates and parses a pattern.
func Parse(raw string) (Pattern, error) {
	switch {
	case raw == "":
		return Pattern{}, fmt.Errorf("%w: empty", ErrInvalidPattern)

	case strings.HasPrefix(raw, "*."):
		ext := raw[1:]
		if len(ext) < 2 || strings.ContainsAny(ext, "*/") {
			return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
		}
		return Pattern{raw: raw, kind: Extension, value: ext}, nil

	case strings.HasPrefix(raw, "/"):
		if prefix, ok := strings.CutSuffix(raw, "/*"); ok {
			if strings.Contains(prefix, "*") {
				return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
			}
			return Pattern{raw: raw, kind: Prefix, value: prefix}, nil
		}
		if strings.Contains(raw, "*") {
			return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
		}
		return Pattern{raw: raw, kind: Exact, value: raw}, nil

	default:
		return Pattern{}, fmt.Errorf("%w: %q must start with \"/\" or \"*.\"", ErrInvalidPattern, raw)
	}
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Pattern {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Kind returns the pattern kind.
func (p Pattern) Kind() Kind { return p.kind }

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// Len is the prefix length for Prefix patterns; longer prefixes win when
// selecting a servlet.
func (p Pattern) Len() int { return len(p.value) }

// Match reports whether path matches the pattern.
func (p Pattern) Match(path string) bool {
	switch p.kind {
	case Exact:
		return path == p.value
	case Prefix:
		if p.value == "" {
			return true
		}
		if !strings.HasPrefix(path, p.value) {
			return false
		}
		return len(path) == len(p.value) || path[len(p.value)] == '/'
	case Extension:
		last := path[strings.LastIndexByte(path, '/')+1:]
		return strings.HasSuffix(last, p.value)
	default:
		return false
	}
}
