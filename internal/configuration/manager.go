// internal/configuration/manager.go
//
// Manager owns the provider list and the current Configuration snapshot.
//
// Context
// -------
// Two locks, never held in the opposite order:
//
//   • mu          – build mutex.  Serialises build, reload, and destroy.
//   • providerMu  – guards the provider slice only.  Readers get a copy.
//
// The snapshot lives in an atomic.Pointer so the steady-state read path
// (reload mode off, snapshot built) is one atomic load.  Concurrent first
// callers collapse into a single build through singleflight, then
// double-check under mu, the same barrier the tenant cache used.
//
// Reload is all-or-nothing: when any provider is stale every provider is
// destroyed and the whole list is folded again.  A failed fold leaves the
// manager unbuilt so the next Configuration() retries from scratch.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package configuration

import (
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/gate/internal/logger"
	"github.com/yanizio/gate/internal/metrics"
)

// ReloadPolicy decides whether ConditionalReload should poll providers.
type ReloadPolicy func(cfg *Configuration) bool

// ConstantReloadPolicy enables reload when the snapshot's reload_configs
// constant is true.
func ConstantReloadPolicy(cfg *Configuration) bool {
	return cfg != nil && cfg.Bool(ConstReloadConfigs)
}

// Manager is safe for concurrent use.  Construct with NewManager.
type Manager struct {
	log *zap.SugaredLogger

	providerMu sync.Mutex
	providers  []ContainerProvider
	defaults   func() []ContainerProvider

	mu               sync.Mutex
	current          atomic.Pointer[Configuration]
	packageProviders []PackageProvider // guarded by mu
	reload           atomic.Pointer[ReloadPolicy]
	sfg              singleflight.Group
	generation       atomic.Uint64
}

// NewManager returns an unbuilt Manager.  defaults supplies the provider set
// installed when the list is empty; nil means a bare FrameworkProvider.
func NewManager(log *zap.SugaredLogger, defaults func() []ContainerProvider) *Manager {
	if defaults == nil {
		defaults = func() []ContainerProvider {
			return []ContainerProvider{NewFrameworkProvider(nil)}
		}
	}
	m := &Manager{
		log:      logger.OrGlobal(log),
		defaults: defaults,
	}
	m.SetReloadPolicy(ConstantReloadPolicy)
	return m
}

// SetReloadPolicy replaces the policy consulted by ConditionalReload.
func (m *Manager) SetReloadPolicy(p ReloadPolicy) { m.reload.Store(&p) }

/*──────────────────────────── snapshot access ─────────────────────────────*/

// Current returns the published snapshot without building.  May be nil.
func (m *Manager) Current() *Configuration { return m.current.Load() }

// Configuration returns the current snapshot, building it on first use.
// With reload mode on, providers are polled first.
func (m *Manager) Configuration() (*Configuration, error) {
	if cfg := m.current.Load(); cfg != nil {
		if !m.reloadEnabled(cfg) {
			return cfg, nil
		}
		if err := m.ConditionalReload(); err != nil {
			return nil, err
		}
		if cfg := m.current.Load(); cfg != nil {
			return cfg, nil
		}
	}

	v, err, _ := m.sfg.Do("configuration", func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Double-check after singleflight barrier.
		if cfg := m.current.Load(); cfg != nil {
			return cfg, nil
		}
		return m.buildLocked()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Configuration), nil
}

func (m *Manager) reloadEnabled(cfg *Configuration) bool {
	p := m.reload.Load()
	return p != nil && *p != nil && (*p)(cfg)
}

// buildLocked folds the provider list and publishes the result.  Caller
// holds mu.
func (m *Manager) buildLocked() (*Configuration, error) {
	providers := m.ContainerProviders()
	cfg, extra, err := Build(providers, m)
	if err != nil {
		metrics.ConfigBuildErrorsTotal.Inc()
		m.current.Store(nil)
		m.packageProviders = nil
		m.log.Errorw("configuration build failed", "err", err)
		return nil, err
	}
	cfg.generation = m.generation.Add(1)
	m.packageProviders = extra
	m.current.Store(cfg)
	metrics.ConfigBuildTotal.Inc()
	m.log.Infow("configuration built",
		"generation", cfg.generation,
		"providers", len(providers),
		"packages", len(cfg.packages),
	)
	return cfg, nil
}

/*──────────────────────────── provider list ───────────────────────────────*/

// ContainerProviders returns a copy of the provider list, installing the
// defaults first when it is empty.
func (m *Manager) ContainerProviders() []ContainerProvider {
	m.providerMu.Lock()
	defer m.providerMu.Unlock()
	if len(m.providers) == 0 {
		m.providers = m.defaults()
		m.log.Debugw("installed default configuration providers", "count", len(m.providers))
	}
	return slices.Clone(m.providers)
}

// SetContainerProviders replaces the list.  The current snapshot is kept
// until the next reload.
func (m *Manager) SetContainerProviders(list []ContainerProvider) {
	m.providerMu.Lock()
	m.providers = slices.Clone(list)
	m.providerMu.Unlock()
}

// AddContainerProvider appends p unless an equal provider is present.
func (m *Manager) AddContainerProvider(p ContainerProvider) {
	m.providerMu.Lock()
	defer m.providerMu.Unlock()
	for _, have := range m.providers {
		if sameProvider(have, p) {
			return
		}
	}
	m.providers = append(m.providers, p)
}

// ClearContainerProviders destroys every provider, logging and skipping
// failures, and empties the list.
func (m *Manager) ClearContainerProviders() {
	m.providerMu.Lock()
	list := m.providers
	m.providers = nil
	m.providerMu.Unlock()
	m.destroyAll(list)
}

func (m *Manager) destroyAll(list []ContainerProvider) {
	for _, p := range list {
		if err := p.Destroy(); err != nil {
			m.log.Warnw("error while destroying configuration provider",
				"err", &ProviderTeardownError{Provider: providerName(p), Err: err})
		}
	}
}

/*──────────────────────────── reload protocol ─────────────────────────────*/

// ConditionalReload polls every container provider and every tracked
// package provider when reload mode is on.  Each is asked even after one
// reports stale so every provider gets to log.  Any stale provider triggers
// a full teardown and refold.
func (m *Manager) ConditionalReload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.current.Load()
	if cfg == nil || !m.reloadEnabled(cfg) {
		return nil
	}

	m.log.Debugw("checking configuration providers for reload")
	stale := false
	for _, p := range m.ContainerProviders() {
		if p.NeedsReload() {
			m.log.Infow("container provider needs reload, reloading all providers",
				"provider", providerName(p))
			stale = true
		}
	}
	for _, pp := range m.packageProviders {
		if pp.NeedsReload() {
			m.log.Infow("package provider needs reload, reloading all providers",
				"provider", providerName(pp))
			stale = true
		}
	}
	if !stale {
		return nil
	}
	return m.reloadLocked()
}

// Reload tears down and refolds every provider regardless of staleness.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadLocked()
}

func (m *Manager) reloadLocked() error {
	m.destroyAll(m.ContainerProviders())
	old := m.current.Load()
	_, err := m.buildLocked()
	if old != nil {
		old.Destroy()
	}
	metrics.ConfigReloadTotal.Inc()
	return err
}

// DestroyConfiguration clears the providers and retires the snapshot.  The
// next Configuration() starts again from the default providers.
func (m *Manager) DestroyConfiguration() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearContainerProviders()
	if cfg := m.current.Swap(nil); cfg != nil {
		cfg.Destroy()
	}
	m.packageProviders = nil
}
