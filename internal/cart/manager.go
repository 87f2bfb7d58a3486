package cart

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Manager hands out named cart instances, each bound to its configured
// currency and tax rate. Instances are created once and reused; the manager
// only guards its own map — callers serialize access to an individual cart
// (see the lock package for the HTTP layer's per-cart lock).
type Manager struct {
	mu        sync.Mutex
	defaults  string
	configs   map[string]InstanceConfig
	store     Storage
	notifier  Notifier
	logger    zerolog.Logger
	instances map[string]*Cart
}

// NewManager builds a manager. configs maps instance names to their
// configuration; defaultName must be a key of configs.
func NewManager(defaultName string, configs map[string]InstanceConfig, store Storage, notifier Notifier, logger zerolog.Logger) *Manager {
	return &Manager{
		defaults:  defaultName,
		configs:   configs,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		instances: map[string]*Cart{},
	}
}

// Instance returns the cart with the given name, creating it on first use.
// An empty name selects the default instance. Unknown names fail.
func (m *Manager) Instance(name string) (*Cart, error) {
	if name == "" {
		name = m.defaults
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.instances[name]; ok {
		return existing, nil
	}
	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInstanceNotConfigured, name)
	}
	instance := New(name, cfg, m.store, m.notifier, m.logger)
	m.instances[name] = instance
	return instance, nil
}

// Session returns a fresh cart for one owner of the named instance. The
// storage key combines instance and session id so concurrent shoppers never
// share state. Session carts are not cached; callers hold one for the
// duration of a request and rely on storage for continuity.
func (m *Manager) Session(instance, sessionID string) (*Cart, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("cart: session id is required")
	}
	if instance == "" {
		instance = m.defaults
	}
	cfg, ok := m.configs[instance]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInstanceNotConfigured, instance)
	}
	return New(instance+":"+sessionID, cfg, m.store, m.notifier, m.logger), nil
}

// Default returns the default cart instance.
func (m *Manager) Default() (*Cart, error) {
	return m.Instance("")
}

// Names returns the configured instance names.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	return names
}
