package configuration

import (
	"fmt"
	"maps"
)

// Action describes one routable action.  Namespace and Package are filled in
// by Build from the owning package.
type Action struct {
	Name    string            `yaml:"name"`
	Handler string            `yaml:"handler"` // registry key, defaults to Name
	Method  string            `yaml:"method"`  // defaults to "execute"
	Path    string            `yaml:"path"`    // optional explicit pattern, e.g. /users/{id}
	Methods []string          `yaml:"methods"` // HTTP verbs for Path, empty means any
	Params  map[string]string `yaml:"params"`
	Results map[string]string `yaml:"results"`

	Namespace string `yaml:"-"`
	Package   string `yaml:"-"`
}

// Package groups actions under a namespace.  A package may extend one parent,
// inheriting its default action and results.
type Package struct {
	Name          string            `yaml:"name"`
	Namespace     string            `yaml:"namespace"`
	Extends       string            `yaml:"extends"`
	DefaultAction string            `yaml:"default_action"`
	Results       map[string]string `yaml:"results"`
	Actions       []Action          `yaml:"actions"`
}

// Builder accumulates provider contributions for a single Build.  It is
// not safe for concurrent use; Build drives it from one goroutine.
type Builder struct {
	constants map[string]string
	overrides map[string]string
	packages  map[string]*Package
	order     []string
	extra     []PackageProvider
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		constants: map[string]string{},
		overrides: map[string]string{},
		packages:  map[string]*Package{},
	}
}

// Constant sets key; later providers overwrite earlier ones.
func (b *Builder) Constant(key, value string) { b.constants[key] = value }

// OverrideConstant sets key after every provider has registered, so the
// value wins regardless of provider order.
func (b *Builder) OverrideConstant(key, value string) { b.overrides[key] = value }

// ConstantValue reads what has been registered so far, overrides first.
func (b *Builder) ConstantValue(key string) (string, bool) {
	if v, ok := b.overrides[key]; ok {
		return v, true
	}
	v, ok := b.constants[key]
	return v, ok
}

// AddPackage records p.  Package names are unique within a build.
func (b *Builder) AddPackage(p Package) error {
	if p.Name == "" {
		return fmt.Errorf("package in namespace %q has no name", p.Namespace)
	}
	if _, dup := b.packages[p.Name]; dup {
		return fmt.Errorf("duplicate package %q", p.Name)
	}
	cp := p
	cp.Actions = append([]Action(nil), p.Actions...)
	cp.Results = maps.Clone(p.Results)
	b.packages[p.Name] = &cp
	b.order = append(b.order, p.Name)
	return nil
}

// AddPackageProvider registers an extra package source.  The manager tracks
// these across builds and polls them on conditional reload.
func (b *Builder) AddPackageProvider(pp PackageProvider) {
	b.extra = append(b.extra, pp)
}

func (b *Builder) mergedConstants() map[string]string {
	out := maps.Clone(b.constants)
	maps.Copy(out, b.overrides)
	return out
}
