// internal/configuration/file.go
//
// YAML route-file provider.
//
// Context
// -------
// A route file declares constants and packages:
//
//	constants:
//	  dev_mode: "true"
//	packages:
//	  - name: shop
//	    namespace: /shop
//	    extends: gate-default
//	    actions:
//	      - name: cart
//	      - name: item
//	        path: /shop/items/{id}
//	        methods: [GET]
//
// Init reads and hashes the file with BLAKE3.  NeedsReload re-hashes it and
// compares, so a touch without a content change does not trigger a reload.
//
// Notes
// -----
//   • An optional file that does not exist contributes nothing and is only
//     stale once it appears.
//   • Oxford commas, two spaces after periods.

package configuration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// RouteFile is the decoded shape of a route file.
type RouteFile struct {
	Constants map[string]string `yaml:"constants"`
	Packages  []Package         `yaml:"packages"`
}

// FileProvider loads one route file.
type FileProvider struct {
	path     string
	optional bool

	mu   sync.Mutex
	sum  [32]byte
	seen bool // file existed at Init
	data RouteFile
}

// NewFileProvider returns a provider for path.  When optional is true a
// missing file is not an error.
func NewFileProvider(path string, optional bool) *FileProvider {
	return &FileProvider{path: filepath.Clean(path), optional: optional}
}

func (p *FileProvider) String() string { return "file:" + p.path }

// Path returns the watched file.
func (p *FileProvider) Path() string { return p.path }

func (p *FileProvider) Init(*Manager) error {
	raw, err := os.ReadFile(p.path)
	p.mu.Lock()
	defer p.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) && p.optional {
		p.seen, p.sum, p.data = false, [32]byte{}, RouteFile{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", p.path, err)
	}

	var rf RouteFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", p.path, err)
	}
	p.data = rf
	p.sum = blake3.Sum256(raw)
	p.seen = true
	return nil
}

func (p *FileProvider) Register(b *Builder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range p.data.Constants {
		b.Constant(k, v)
	}
	return nil
}

func (p *FileProvider) LoadPackages(b *Builder) error {
	p.mu.Lock()
	pkgs := p.data.Packages
	p.mu.Unlock()
	for _, pkg := range pkgs {
		if err := b.AddPackage(pkg); err != nil {
			return fmt.Errorf("%s: %w", p.path, err)
		}
	}
	return nil
}

// NeedsReload reports whether the file's content hash changed since Init.
func (p *FileProvider) NeedsReload() bool {
	raw, err := os.ReadFile(p.path)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		// Appearing or disappearing both count as change.
		return p.seen
	}
	return !p.seen || blake3.Sum256(raw) != p.sum
}

func (p *FileProvider) Destroy() error {
	p.mu.Lock()
	p.data = RouteFile{}
	p.mu.Unlock()
	return nil
}

// Equal matches providers for the same file.
func (p *FileProvider) Equal(other ContainerProvider) bool {
	o, ok := other.(*FileProvider)
	return ok && o.path == p.path
}
