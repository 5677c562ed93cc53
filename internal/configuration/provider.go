// internal/configuration/provider.go
//
// Provider contracts.
//
// Context
// -------
// A ContainerProvider contributes constants and packages to a snapshot.  The
// Manager folds its registered providers, in order, through Build every time
// it (re)creates a Configuration:
//
//   1. Init(m) on every provider.
//   2. Register(b) on every provider.
//   3. LoadPackages(b) on every provider that is also a PackageProvider,
//      then on any extra PackageProvider added to the Builder.
//
// NeedsReload is polled by ConditionalReload.  Destroy releases whatever Init
// acquired and may be followed by another Init on reload.
//
// Notes
// -----
//   • Init must not call Manager.Configuration; the build mutex is held.
//   • Oxford commas, two spaces after periods.

package configuration

import "fmt"

// ContainerProvider contributes to a snapshot and reports its staleness.
type ContainerProvider interface {
	Init(m *Manager) error
	Register(b *Builder) error
	NeedsReload() bool
	Destroy() error
}

// PackageProvider loads action packages into a Builder.
type PackageProvider interface {
	NeedsReload() bool
	LoadPackages(b *Builder) error
}

// Equaler lets a provider define equality for AddContainerProvider.
// Providers without it compare by identity.
type Equaler interface {
	Equal(other ContainerProvider) bool
}

func sameProvider(a, b ContainerProvider) bool {
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return a == b
}

// providerName is used in logs and errors.
func providerName(p any) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}
