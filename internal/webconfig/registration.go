package webconfig

import (
	"fmt"
	"maps"
	"net/http"
	"strings"

	"kairos/internal/urlpattern"
)

// DispatcherType identifies how a request reached the container.
type DispatcherType uint8

const (
	// Request is a request arriving from the client.
	Request DispatcherType = 1 << iota
	// Forward is a request re-entering the container through Forward.
	Forward
	// Async is accepted for registrations but never produced.
	Async
)

// DispatcherSet is a bit set of dispatcher types.
type DispatcherSet = DispatcherType

// Dispatchers combines dispatcher types into a set.
func Dispatchers(types ...DispatcherType) DispatcherSet {
	var s DispatcherSet
	for _, t := range types {
		s |= t
	}
	return s
}

// Has reports whether the set contains t.
func (d DispatcherType) Has(t DispatcherType) bool {
	return d&t != 0
}

func (d DispatcherType) String() string {
	var names []string
	if d.Has(Request) {
		names = append(names, "REQUEST")
	}
	if d.Has(Forward) {
		names = append(names, "FORWARD")
	}
	if d.Has(Async) {
		names = append(names, "ASYNC")
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Filter intercepts requests for the URL patterns it is mapped to. It
// continues the chain by calling next.
type Filter interface {
	DoFilter(w http.ResponseWriter, r *http.Request, next http.Handler)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(w http.ResponseWriter, r *http.Request, next http.Handler)

// DoFilter calls f.
func (f FilterFunc) DoFilter(w http.ResponseWriter, r *http.Request, next http.Handler) {
	f(w, r, next)
}

// Middleware adapts a func(http.Handler) http.Handler constructor to Filter.
func Middleware(mw func(http.Handler) http.Handler) Filter {
	return FilterFunc(func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		mw(next).ServeHTTP(w, r)
	})
}

// FilterConfig is handed to filters implementing Initializer.
type FilterConfig struct {
	Name   string
	Params map[string]string
	ctx    *Context
}

// Param returns an init parameter.
func (fc FilterConfig) Param(key string) (string, bool) {
	v, ok := fc.Params[key]
	return v, ok
}

// Attribute reads a shared value from the owning context.
func (fc FilterConfig) Attribute(key string) (any, bool) {
	if fc.ctx == nil {
		return nil, false
	}
	return fc.ctx.Attribute(key)
}

// Initializer is implemented by filters that need their init parameters or
// shared context attributes before serving.
type Initializer interface {
	Init(cfg FilterConfig) error
}

// Destroyer is implemented by filters and servlets holding resources.
type Destroyer interface {
	Destroy() error
}

// FilterRegistration configures a registered filter.
type FilterRegistration struct {
	ctx    *Context
	name   string
	filter Filter
	params map[string]string
	async  bool
}

// Name returns the registered name.
func (f *FilterRegistration) Name() string { return f.name }

// SetInitParameters replaces the parameters passed to Init at startup.
func (f *FilterRegistration) SetInitParameters(params map[string]string) {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	f.params = maps.Clone(params)
}

// InitParameters returns a copy of the init parameters.
func (f *FilterRegistration) InitParameters() map[string]string {
	f.ctx.mu.RLock()
	defer f.ctx.mu.RUnlock()
	return maps.Clone(f.params)
}

// SetAsyncSupported records whether the filter supports async requests.
func (f *FilterRegistration) SetAsyncSupported(async bool) {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	f.async = async
}

// AddMappingForURLPatterns maps the filter to patterns for the given
// dispatcher types. Mappings added with isMatchAfter=false precede every
// mapping added with isMatchAfter=true.
func (f *FilterRegistration) AddMappingForURLPatterns(dispatchers DispatcherSet, isMatchAfter bool, patterns ...string) error {
	if len(patterns) == 0 {
		return fmt.Errorf("filter %q: %w: no patterns", f.name, ErrInvalidPattern)
	}
	if dispatchers == 0 {
		dispatchers = Request
	}

	parsed := make([]urlpattern.Pattern, 0, len(patterns))
	for _, raw := range patterns {
		p, err := urlpattern.Parse(raw)
		if err != nil {
			return fmt.Errorf("filter %q: %w", f.name, err)
		}
		parsed = append(parsed, p)
	}

	m := filterMapping{reg: f, dispatchers: dispatchers, patterns: parsed}

	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	if isMatchAfter {
		f.ctx.afterMappings = append(f.ctx.afterMappings, m)
	} else {
		f.ctx.beforeMappings = append(f.ctx.beforeMappings, m)
	}
	return nil
}

type filterMapping struct {
	reg         *FilterRegistration
	dispatchers DispatcherSet
	patterns    []urlpattern.Pattern
}

func (m filterMapping) matches(d DispatcherType, path string) bool {
	if !m.dispatchers.Has(d) {
		return false
	}
	for _, p := range m.patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// ServletRegistration configures a registered servlet.
type ServletRegistration struct {
	ctx           *Context
	name          string
	handler       http.Handler
	loadOnStartup int
	async         bool
	mappings      []urlpattern.Pattern
	init          *lazyInit
}

// Name returns the registered name.
func (s *ServletRegistration) Name() string { return s.name }

// SetLoadOnStartup sets the startup order. Values below zero defer
// initialization to the first request.
func (s *ServletRegistration) SetLoadOnStartup(order int) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.loadOnStartup = order
}

// SetAsyncSupported records whether the servlet supports async requests.
func (s *ServletRegistration) SetAsyncSupported(async bool) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.async = async
}

// AddMapping maps the servlet to URL patterns. A pattern already owned by
// another servlet is a conflict; no mapping is added in that case.
func (s *ServletRegistration) AddMapping(patterns ...string) error {
	parsed := make([]urlpattern.Pattern, 0, len(patterns))
	for _, raw := range patterns {
		p, err := urlpattern.Parse(raw)
		if err != nil {
			return fmt.Errorf("servlet %q: %w", s.name, err)
		}
		parsed = append(parsed, p)
	}

	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	for _, p := range parsed {
		if owner, ok := s.ctx.servletByPattern[p.String()]; ok && owner != s {
			return fmt.Errorf("servlet %q: %w: %s already mapped to %q", s.name, ErrMappingConflict, p, owner.name)
		}
	}
	for _, p := range parsed {
		if _, ok := s.ctx.servletByPattern[p.String()]; ok {
			continue
		}
		s.ctx.servletByPattern[p.String()] = s
		s.mappings = append(s.mappings, p)
	}
	return nil
}

// MappingInfo describes one filter mapping in effective chain order.
type MappingInfo struct {
	Filter      string
	Dispatchers DispatcherSet
	Patterns    []string
	MatchAfter  bool
}

// ServletInfo describes a registered servlet.
type ServletInfo struct {
	Name           string
	Patterns       []string
	LoadOnStartup  int
	AsyncSupported bool
}

// FilterInfo describes a registered filter.
type FilterInfo struct {
	Name           string
	InitParameters map[string]string
	AsyncSupported bool
}

// Snapshot is a point-in-time view of a context's registrations.
type Snapshot struct {
	Filters  []FilterInfo
	Mappings []MappingInfo
	Servlets []ServletInfo
}

// Registrations returns a snapshot of everything registered so far.
func (c *Context) Registrations() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var snap Snapshot
	for _, f := range c.filters {
		snap.Filters = append(snap.Filters, FilterInfo{
			Name:           f.name,
			InitParameters: maps.Clone(f.params),
			AsyncSupported: f.async,
		})
	}
	for i, mappings := range [][]filterMapping{c.beforeMappings, c.afterMappings} {
		for _, m := range mappings {
			snap.Mappings = append(snap.Mappings, MappingInfo{
				Filter:      m.reg.name,
				Dispatchers: m.dispatchers,
				Patterns:    patternStrings(m.patterns),
				MatchAfter:  i == 1,
			})
		}
	}
	for _, s := range c.servlets {
		snap.Servlets = append(snap.Servlets, ServletInfo{
			Name:           s.name,
			Patterns:       patternStrings(s.mappings),
			LoadOnStartup:  s.loadOnStartup,
			AsyncSupported: s.async,
		})
	}
	return snap
}

func patternStrings(patterns []urlpattern.Pattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = p.String()
	}
	return out
}
