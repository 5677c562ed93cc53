package configuration

import (
	"github.com/yanizio/gate/internal/hostconfig"
)

// DefaultPackage is the abstract base package user packages may extend.
const DefaultPackage = "gate-default"

// frameworkDefaults seed every snapshot before any other provider.
var frameworkDefaults = map[string]string{
	ConstEncoding:      "UTF-8",
	ConstExtensions:    "action,",
	ConstReloadConfigs: "false",
	ConstDevMode:       "false",
}

// FrameworkProvider registers the built-in constants and the default
// package.  Every init parameter of host is registered as an override, so
// deployment settings beat anything a route file declares.
type FrameworkProvider struct {
	host hostconfig.HostConfig
}

// NewFrameworkProvider returns a provider bound to host.  A nil host
// contributes defaults only.
func NewFrameworkProvider(host hostconfig.HostConfig) *FrameworkProvider {
	return &FrameworkProvider{host: host}
}

func (p *FrameworkProvider) String() string { return "framework" }

func (p *FrameworkProvider) Init(*Manager) error { return nil }

func (p *FrameworkProvider) Register(b *Builder) error {
	for k, v := range frameworkDefaults {
		b.Constant(k, v)
	}
	if p.host == nil {
		return nil
	}
	for name := range p.host.InitParameterNames() {
		if v, ok := p.host.InitParameter(name); ok {
			b.OverrideConstant(name, v)
		}
	}
	return nil
}

func (p *FrameworkProvider) LoadPackages(b *Builder) error {
	return b.AddPackage(Package{
		Name:      DefaultPackage,
		Namespace: "",
		Results: map[string]string{
			"error": "error",
		},
	})
}

func (p *FrameworkProvider) NeedsReload() bool { return false }

func (p *FrameworkProvider) Destroy() error { return nil }

// Equal treats any two framework providers as the same slot.
func (p *FrameworkProvider) Equal(other ContainerProvider) bool {
	_, ok := other.(*FrameworkProvider)
	return ok
}
