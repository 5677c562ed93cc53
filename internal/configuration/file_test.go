package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const routesV1 = `
constants:
  greeting: hello
packages:
  - name: shop
    namespace: /shop
    extends: gate-default
    actions:
      - name: cart
      - name: item
        path: /shop/items/{id}
        methods: [GET]
`

func writeRoutes(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestFileProvider_LoadsRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, routesV1)

	cfg, err := build(t, NewFrameworkProvider(nil), NewFileProvider(path, false))
	require.NoError(t, err)

	v, _ := cfg.Constant("greeting")
	assert.Equal(t, "hello", v)
	_, ok := cfg.Action("/shop", "cart")
	assert.True(t, ok)
	a, params, ok := cfg.MatchPath("GET", "/shop/items/9")
	require.True(t, ok)
	assert.Equal(t, "item", a.Name)
	assert.Equal(t, "9", params["id"])
}

func TestFileProvider_NeedsReloadTracksContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, routesV1)

	p := NewFileProvider(path, false)
	require.NoError(t, p.Init(nil))
	assert.False(t, p.NeedsReload())

	// same bytes, new mtime
	now := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, now, now))
	assert.False(t, p.NeedsReload())

	writeRoutes(t, path, routesV1+"      - name: checkout\n")
	assert.True(t, p.NeedsReload())

	require.NoError(t, p.Init(nil))
	assert.False(t, p.NeedsReload())

	require.NoError(t, os.Remove(path))
	assert.True(t, p.NeedsReload())
}

func TestFileProvider_OptionalMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	p := NewFileProvider(path, true)

	cfg, err := build(t, p)
	require.NoError(t, err)
	assert.Empty(t, cfg.Packages())
	assert.False(t, p.NeedsReload())

	writeRoutes(t, path, routesV1)
	assert.True(t, p.NeedsReload())
}

func TestFileProvider_RequiredMissingFailsBuild(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "nope.yaml"), false)
	_, err := build(t, p)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestFileProvider_UnknownFieldFailsBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, "packages:\n  - name: a\n    bogus: 1\n")
	_, err := build(t, NewFileProvider(path, false))
	require.Error(t, err)
}

func TestManager_FileEditReloadsOnNextRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, routesV1)

	m := NewManager(zap.NewNop().Sugar(), nil)
	m.SetContainerProviders([]ContainerProvider{NewFrameworkProvider(nil), NewFileProvider(path, false)})
	m.SetReloadPolicy(always)

	first, err := m.Configuration()
	require.NoError(t, err)
	_, ok := first.Action("/shop", "checkout")
	require.False(t, ok)

	writeRoutes(t, path, routesV1+"      - name: checkout\n")
	second, err := m.Configuration()
	require.NoError(t, err)
	_, ok = second.Action("/shop", "checkout")
	assert.True(t, ok)

	// the old snapshot still answers for whoever holds it
	_, ok = first.Action("/shop", "cart")
	assert.True(t, ok)
}

func TestWatcher_ReloadsAfterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, routesV1)

	m := NewManager(zap.NewNop().Sugar(), nil)
	m.SetContainerProviders([]ContainerProvider{NewFrameworkProvider(nil), NewFileProvider(path, false)})
	m.SetReloadPolicy(always)
	_, err := m.Configuration()
	require.NoError(t, err)

	w, err := NewWatcher(m, []string{path}, 20*time.Millisecond, zap.NewNop().Sugar())
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })

	writeRoutes(t, path, routesV1+"      - name: checkout\n")

	require.Eventually(t, func() bool {
		cfg := m.Current()
		if cfg == nil {
			return false
		}
		_, ok := cfg.Action("/shop", "checkout")
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}
