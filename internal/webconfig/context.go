package webconfig

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"kairos/internal/logging"
	"kairos/internal/urlpattern"
)

var (
	// ErrDuplicateName is returned when a filter or servlet name is reused.
	ErrDuplicateName = errors.New("duplicate registration name")
	// ErrMappingConflict is returned when a servlet pattern is already taken.
	ErrMappingConflict = errors.New("servlet mapping conflict")
	// ErrInvalidPattern wraps malformed URL patterns.
	ErrInvalidPattern = urlpattern.ErrInvalidPattern
	// ErrNilComponent is returned when registering a nil filter or servlet.
	ErrNilComponent = errors.New("nil filter or servlet")
	// ErrNoContext is returned by Forward outside a container request.
	ErrNoContext = errors.New("request was not dispatched by a web context")
	// ErrForwardLoop is returned when forwards nest deeper than maxForwardDepth.
	ErrForwardLoop = errors.New("forward depth exceeded")
)

const maxForwardDepth = 8

// ServletInitializer is implemented by servlets that need setup before
// serving their first request.
type ServletInitializer interface {
	Init(ctx context.Context) error
}

type lazyInit struct {
	once sync.Once
	err  error
	done atomic.Bool
}

// Context is the registry of filters and servlets for one application. It
// implements http.Handler once started.
type Context struct {
	mu sync.RWMutex

	filters        []*FilterRegistration
	servlets       []*ServletRegistration
	beforeMappings []filterMapping
	afterMappings  []filterMapping

	servletByPattern map[string]*ServletRegistration
	attributes       map[string]any
	defaultServlet   http.Handler

	started bool
}

// NewContext returns an empty context whose default servlet answers 404.
func NewContext() *Context {
	return &Context{
		servletByPattern: make(map[string]*ServletRegistration),
		attributes:       make(map[string]any),
		defaultServlet:   http.NotFoundHandler(),
	}
}

// SetAttribute stores a value shared between components.
func (c *Context) SetAttribute(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[key] = value
}

// Attribute returns a shared value.
func (c *Context) Attribute(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.attributes[key]
	return v, ok
}

// SetDefaultServlet sets the handler for paths no servlet is mapped to.
func (c *Context) SetDefaultServlet(h http.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil {
		h = http.NotFoundHandler()
	}
	c.defaultServlet = h
}

// AddFilter registers a filter under a unique name.
func (c *Context) AddFilter(name string, f Filter) (*FilterRegistration, error) {
	if f == nil {
		return nil, fmt.Errorf("filter %q: %w", name, ErrNilComponent)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.filters {
		if existing.name == name {
			return nil, fmt.Errorf("filter %q: %w", name, ErrDuplicateName)
		}
	}

	reg := &FilterRegistration{ctx: c, name: name, filter: f}
	c.filters = append(c.filters, reg)
	return reg, nil
}

// AddServlet registers a servlet under a unique name. Servlets serve
// nothing until AddMapping is called. Load-on-startup defaults to -1.
func (c *Context) AddServlet(name string, h http.Handler) (*ServletRegistration, error) {
	if h == nil {
		return nil, fmt.Errorf("servlet %q: %w", name, ErrNilComponent)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.servlets {
		if existing.name == name {
			return nil, fmt.Errorf("servlet %q: %w", name, ErrDuplicateName)
		}
	}

	reg := &ServletRegistration{ctx: c, name: name, handler: h, loadOnStartup: -1, init: &lazyInit{}}
	c.servlets = append(c.servlets, reg)
	return reg, nil
}

// Start initializes every filter in registration order, then every servlet
// with a non-negative load-on-startup value in ascending order.
func (c *Context) Start(ctx context.Context) error {
	c.mu.RLock()
	filters := slices.Clone(c.filters)
	eager := make([]*ServletRegistration, 0, len(c.servlets))
	for _, s := range c.servlets {
		if s.loadOnStartup >= 0 {
			eager = append(eager, s)
		}
	}
	c.mu.RUnlock()

	for _, f := range filters {
		if init, ok := f.filter.(Initializer); ok {
			logging.Debug("Initializing filter %s", f.name)
			cfg := FilterConfig{Name: f.name, Params: f.InitParameters(), ctx: c}
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			if err := init.Init(cfg); err != nil {
				return fmt.Errorf("failed to initialize filter %q: %w", f.name, err)
			}
		}
	}

	sort.SliceStable(eager, func(i, j int) bool {
		return eager[i].loadOnStartup < eager[j].loadOnStartup
	})

	for _, s := range eager {
		logging.Debug("Loading servlet %s on startup (order %d)", s.name, s.loadOnStartup)
		if err := s.ensureInit(ctx); err != nil {
			return fmt.Errorf("failed to initialize servlet %q: %w", s.name, err)
		}
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

// Close destroys initialized servlets and then filters, both in reverse
// registration order.
func (c *Context) Close() error {
	c.mu.Lock()
	c.started = false
	filters := slices.Clone(c.filters)
	servlets := slices.Clone(c.servlets)
	c.mu.Unlock()

	var errs []error
	for i := len(servlets) - 1; i >= 0; i-- {
		s := servlets[i]
		if !s.initialized() {
			continue
		}
		if d, ok := s.handler.(Destroyer); ok {
			if err := d.Destroy(); err != nil {
				errs = append(errs, fmt.Errorf("servlet %q: %w", s.name, err))
			}
		}
	}
	for i := len(filters) - 1; i >= 0; i-- {
		if d, ok := filters[i].filter.(Destroyer); ok {
			if err := d.Destroy(); err != nil {
				errs = append(errs, fmt.Errorf("filter %q: %w", filters[i].name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *ServletRegistration) ensureInit(ctx context.Context) error {
	s.init.once.Do(func() {
		if init, ok := s.handler.(ServletInitializer); ok {
			s.init.err = init.Init(ctx)
		}
		s.init.done.Store(s.init.err == nil)
	})
	return s.init.err
}

func (s *ServletRegistration) initialized() bool {
	return s.init.done.Load()
}

// ServeHTTP dispatches a client request through the matching filters to
// the selected servlet.
func (c *Context) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if !started {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	state := &dispatchState{ctx: c, dispatcher: Request, originalPath: requestPath(r)}
	c.dispatch(w, r.WithContext(context.WithValue(r.Context(), stateKey{}, state)), state)
}

func (c *Context) dispatch(w http.ResponseWriter, r *http.Request, state *dispatchState) {
	path := requestPath(r)
	filters := c.matchFilters(state.dispatcher, path)
	end := c.servletHandler(path)

	h := end
	for i := len(filters) - 1; i >= 0; i-- {
		f, next := filters[i].filter, h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.DoFilter(w, r, next)
		})
	}
	h.ServeHTTP(w, r)
}

func (c *Context) matchFilters(d DispatcherType, path string) []*FilterRegistration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*FilterRegistration
	seen := make(map[*FilterRegistration]struct{})
	for _, mappings := range [][]filterMapping{c.beforeMappings, c.afterMappings} {
		for _, m := range mappings {
			if _, ok := seen[m.reg]; ok {
				continue
			}
			if m.matches(d, path) {
				seen[m.reg] = struct{}{}
				out = append(out, m.reg)
			}
		}
	}
	return out
}

// selectServlet picks an exact match, then the longest prefix, then an
// extension match. Nil means the default servlet.
func (c *Context) selectServlet(path string) *ServletRegistration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		prefix    *ServletRegistration
		prefixLen = -1
		extension *ServletRegistration
	)
	for _, s := range c.servlets {
		for _, p := range s.mappings {
			if !p.Match(path) {
				continue
			}
			switch p.Kind() {
			case urlpattern.Exact:
				return s
			case urlpattern.Prefix:
				if p.Len() > prefixLen {
					prefix, prefixLen = s, p.Len()
				}
			case urlpattern.Extension:
				if extension == nil {
					extension = s
				}
			}
		}
	}
	if prefix != nil {
		return prefix
	}
	return extension
}

func (c *Context) servletHandler(path string) http.Handler {
	s := c.selectServlet(path)
	if s == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.defaultServlet
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.ensureInit(context.WithoutCancel(r.Context())); err != nil {
			logging.Error("Servlet %s failed to initialize: %v", s.name, err)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		s.handler.ServeHTTP(w, r)
	})
}

// MatchedFilters returns, in chain order, the names of the filters that
// would run for path under dispatcher d.
func (c *Context) MatchedFilters(d DispatcherType, path string) []string {
	regs := c.matchFilters(d, path)
	names := make([]string, len(regs))
	for i, f := range regs {
		names[i] = f.name
	}
	return names
}

// ServletFor returns the name of the servlet selected for path, or "" for
// the default servlet.
func (c *Context) ServletFor(path string) string {
	if s := c.selectServlet(path); s != nil {
		return s.name
	}
	return ""
}

type stateKey struct{}

type dispatchState struct {
	ctx          *Context
	dispatcher   DispatcherType
	originalPath string
	depth        int
}

// Forward re-dispatches r to path through the filters mapped for the
// Forward dispatcher. The caller must not write to w afterwards.
func Forward(w http.ResponseWriter, r *http.Request, path string) error {
	state, ok := r.Context().Value(stateKey{}).(*dispatchState)
	if !ok {
		return ErrNoContext
	}
	if state.depth >= maxForwardDepth {
		return fmt.Errorf("%w: %s", ErrForwardLoop, path)
	}

	next := &dispatchState{
		ctx:          state.ctx,
		dispatcher:   Forward,
		originalPath: state.originalPath,
		depth:        state.depth + 1,
	}

	fr := r.Clone(context.WithValue(r.Context(), stateKey{}, next))
	u := *r.URL
	u.Path = path
	u.RawPath = ""
	fr.URL = &u
	fr.RequestURI = (&url.URL{Path: path, RawQuery: u.RawQuery}).RequestURI()

	state.ctx.dispatch(w, fr, next)
	return nil
}

// DispatcherOf returns the dispatcher type of r; requests that did not pass
// through a Context report Request.
func DispatcherOf(r *http.Request) DispatcherType {
	if state, ok := r.Context().Value(stateKey{}).(*dispatchState); ok {
		return state.dispatcher
	}
	return Request
}

// OriginalPath returns the client's path before any forward.
func OriginalPath(r *http.Request) string {
	if state, ok := r.Context().Value(stateKey{}).(*dispatchState); ok {
		return state.originalPath
	}
	return requestPath(r)
}

func requestPath(r *http.Request) string {
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}
