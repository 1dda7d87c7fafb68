package scrapers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dev.hon.one/netcrawl/common"
	"dev.hon.one/netcrawl/parsers"
)

// Adapter - Vendor-specific remote CLI session for one device.
type Adapter interface {
	Identity() common.DeviceIdentity
	Connect(ctx context.Context) error
	Disconnect() error
	DiscoveryCommand() common.Command
	ExtraFactsCommands() map[string]common.Command
	Run(ctx context.Context, command common.Command) (string, error)
	Grammar() parsers.Grammar
	FactParser() parsers.FactParser
}

// Factory - Creates an unconnected adapter for a device.
type Factory func(identity common.DeviceIdentity, dial Dialer) Adapter

// Registry - Adapter variants by device class.
type Registry struct {
	mutex     sync.RWMutex
	factories map[common.DeviceClass]Factory
	dial      Dialer
}

// NewRegistry - Create an empty registry whose adapters use the dialer.
func NewRegistry(dial Dialer) *Registry {
	return &Registry{
		factories: make(map[common.DeviceClass]Factory),
		dial:      dial,
	}
}

// NewDefaultRegistry - Registry with all built-in variants.
func NewDefaultRegistry(dial Dialer) *Registry {
	registry := NewRegistry(dial)
	registry.Register(common.DeviceClassCiscoIOS, NewCiscoIOS)
	registry.Register(common.DeviceClassCiscoNXOS, NewCiscoNXOS)
	registry.Register(common.DeviceClassJuniperJunos, NewJunos)
	return registry
}

// Register - Add or replace the variant for a class.
func (registry *Registry) Register(class common.DeviceClass, factory Factory) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.factories[class] = factory
}

// Supports - Whether the class has a variant.
func (registry *Registry) Supports(class common.DeviceClass) bool {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	_, found := registry.factories[class]
	return found
}

// Classes - Supported classes, sorted.
func (registry *Registry) Classes() []common.DeviceClass {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	classes := make([]common.DeviceClass, 0, len(registry.factories))
	for class := range registry.factories {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Adapter - Create an adapter for the device, or ErrUnsupportedDeviceClass.
func (registry *Registry) Adapter(identity common.DeviceIdentity) (Adapter, error) {
	registry.mutex.RLock()
	factory, found := registry.factories[identity.Class]
	registry.mutex.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDeviceClass, identity.Class)
	}
	return factory(identity, registry.dial), nil
}
