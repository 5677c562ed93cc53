// internal/configuration/build.go
//
// Build folds an ordered provider list into a Configuration.
//
// Context
// -------
// Build touches no Manager state beyond handing it to Init, so failure and
// retry are testable in isolation.  The Manager wraps it with locking,
// generation numbering, metrics, and the unbuilt-on-failure rule.
//
// Notes
// -----
//   • Packages resolve in load order; a parent may be declared after its
//     child.
//   • Oxford commas, two spaces after periods.

package configuration

import (
	"cmp"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultMethod = "execute"

// Build runs Init, Register, and LoadPackages across providers and returns
// the snapshot plus the extra package providers registered on the Builder.
func Build(providers []ContainerProvider, m *Manager) (*Configuration, []PackageProvider, error) {
	b := NewBuilder()

	for _, p := range providers {
		if err := p.Init(m); err != nil {
			return nil, nil, &ConfigurationError{Provider: providerName(p), Err: fmt.Errorf("init: %w", err)}
		}
	}
	for _, p := range providers {
		if err := p.Register(b); err != nil {
			return nil, nil, &ConfigurationError{Provider: providerName(p), Err: fmt.Errorf("register: %w", err)}
		}
	}
	for _, p := range providers {
		pp, ok := p.(PackageProvider)
		if !ok {
			continue
		}
		if err := pp.LoadPackages(b); err != nil {
			return nil, nil, &ConfigurationError{Provider: providerName(p), Err: fmt.Errorf("load packages: %w", err)}
		}
	}
	extra := slices.Clone(b.extra)
	for _, pp := range extra {
		if err := pp.LoadPackages(b); err != nil {
			return nil, nil, &ConfigurationError{Provider: providerName(pp), Err: fmt.Errorf("load packages: %w", err)}
		}
	}

	cfg, err := b.compile()
	if err != nil {
		return nil, nil, &ConfigurationError{Err: err}
	}
	return cfg, extra, nil
}

func (b *Builder) compile() (*Configuration, error) {
	resolved := make(map[string]*Package, len(b.order))
	var resolve func(name string, seen []string) (*Package, error)
	resolve = func(name string, seen []string) (*Package, error) {
		if p, ok := resolved[name]; ok {
			return p, nil
		}
		if slices.Contains(seen, name) {
			return nil, fmt.Errorf("package inheritance cycle: %s", strings.Join(append(seen, name), " -> "))
		}
		src, ok := b.packages[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownParent, name)
		}
		p := *src
		p.Results = map[string]string{}
		if src.Extends != "" {
			parent, err := resolve(src.Extends, append(seen, name))
			if err != nil {
				return nil, fmt.Errorf("package %q: %w", name, err)
			}
			maps.Copy(p.Results, parent.Results)
			if p.DefaultAction == "" {
				p.DefaultAction = parent.DefaultAction
			}
		}
		maps.Copy(p.Results, src.Results)
		resolved[name] = &p
		return &p, nil
	}

	cfg := &Configuration{
		loadedAt:    time.Now(),
		constants:   b.mergedConstants(),
		byNamespace: map[string]map[string]*Action{},
		routes:      map[string]map[string]*Action{},
		defaults:    map[string]string{},
	}

	for _, name := range b.order {
		p, err := resolve(name, nil)
		if err != nil {
			return nil, err
		}
		actions := make([]Action, 0, len(p.Actions))
		for _, a := range p.Actions {
			if a.Name == "" {
				return nil, fmt.Errorf("package %q: action without name", p.Name)
			}
			a.Namespace = p.Namespace
			a.Package = p.Name
			a.Handler = cmp.Or(a.Handler, a.Name)
			a.Method = cmp.Or(a.Method, defaultMethod)
			results := maps.Clone(p.Results)
			maps.Copy(results, a.Results)
			a.Results = results

			ns := cfg.byNamespace[a.Namespace]
			if ns == nil {
				ns = map[string]*Action{}
				cfg.byNamespace[a.Namespace] = ns
			}
			if _, dup := ns[a.Name]; dup {
				return nil, fmt.Errorf("duplicate action %q in namespace %q", a.Name, a.Namespace)
			}
			ap := &a
			ns[a.Name] = ap
			actions = append(actions, a)

			if err := cfg.addRoute(ap); err != nil {
				return nil, fmt.Errorf("package %q action %q: %w", p.Name, a.Name, err)
			}
		}
		p.Actions = actions
		if _, set := cfg.defaults[p.Namespace]; !set && p.DefaultAction != "" {
			cfg.defaults[p.Namespace] = p.DefaultAction
		}
		cfg.packages = append(cfg.packages, *p)
	}

	cfg.namespaces = slices.Collect(maps.Keys(cfg.byNamespace))
	slices.SortFunc(cfg.namespaces, func(a, b string) int {
		if n := cmp.Compare(len(b), len(a)); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})

	if len(cfg.routes) > 0 {
		mux, err := compileRoutes(cfg.routes)
		if err != nil {
			return nil, err
		}
		cfg.router = mux
	}
	return cfg, nil
}

func (c *Configuration) addRoute(a *Action) error {
	if a.Path == "" {
		return nil
	}
	if !strings.HasPrefix(a.Path, "/") {
		return fmt.Errorf("path %q must begin with /", a.Path)
	}
	verbs := c.routes[a.Path]
	if verbs == nil {
		verbs = map[string]*Action{}
		c.routes[a.Path] = verbs
	}
	methods := a.Methods
	if len(methods) == 0 {
		methods = []string{"*"}
	}
	for _, m := range methods {
		m = strings.ToUpper(m)
		if prev, dup := verbs[m]; dup {
			return fmt.Errorf("path %s %s already bound to %s/%s", m, a.Path, prev.Namespace, prev.Name)
		}
		verbs[m] = a
	}
	return nil
}

// compileRoutes loads every explicit path into a chi tree.  chi panics on a
// malformed pattern; that panic becomes a build error.
func compileRoutes(routes map[string]map[string]*Action) (mux *chi.Mux, err error) {
	defer func() {
		if r := recover(); r != nil {
			mux, err = nil, fmt.Errorf("compile routes: %v", r)
		}
	}()
	mux = chi.NewRouter()
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	for _, pattern := range slices.Sorted(maps.Keys(routes)) {
		for verb := range routes[pattern] {
			if verb == "*" {
				mux.Handle(pattern, noop)
				continue
			}
			mux.Method(verb, pattern, noop)
		}
	}
	return mux, nil
}
