// Package registry builds and maintains the ordered pool of configured
// providers. The registry is the sole source of provider identities: the
// usage tracker and health monitor lazily create state for identities they
// are asked about, but only the registry decides which identities exist.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Upreak/miv1-sub001/pkg/config"
	"github.com/Upreak/miv1-sub001/pkg/providers"
)

// Entry pairs a provider slot's configuration with its constructed adapter.
type Entry struct {
	// Config is the slot configuration, immutable after construction.
	Config config.ProviderConfig

	// Invoker is the adapter built for this slot.
	Invoker providers.Invoker
}

// Registry is the thread-safe ordered provider pool. Order is static
// priority: ascending Priority value, ties resolved by slot order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
	logger  *slog.Logger
}

// Load builds a registry from the configured provider slots.
//
// A slot missing its type or credential is silently omitted: absence means
// "not configured", not an error. A configured slot with an unknown type is
// a fatal error, and Load fails so the process does not start with a
// misconfigured fleet.
func Load(slots []config.ProviderConfig) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]*Entry, len(slots)),
		logger:  slog.Default().With("component", "registry"),
	}

	ordered := sortSlots(slots)

	for _, slot := range ordered {
		if !slot.IsConfigured() {
			r.logger.Debug("skipping unconfigured provider slot",
				"name", slot.Name,
				"has_type", slot.Type != "",
				"has_credential", slot.APIKey != "",
			)
			continue
		}

		if err := r.add(slot); err != nil {
			r.closeAll()
			return nil, err
		}
	}

	r.logger.Info("provider registry loaded",
		"configured", len(r.order),
		"slots", len(slots),
	)

	return r, nil
}

// List returns the entries in priority order. The returned slice is a copy;
// entries themselves are shared.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Get returns the entry for a provider name, or nil if not registered.
func (r *Registry) Get(name string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// Names returns provider names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Add registers a new provider at runtime. The slot must be fully
// configured; administrative adds are not subject to the silent-omission
// rule that applies at startup.
func (r *Registry) Add(slot config.ProviderConfig) error {
	if !slot.IsConfigured() {
		return fmt.Errorf("provider %q: type and credential are required", slot.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[slot.Name]; exists {
		return fmt.Errorf("provider %q already registered", slot.Name)
	}

	if err := r.addLocked(slot); err != nil {
		return err
	}
	r.resortLocked()

	r.logger.Info("provider added", "name", slot.Name, "type", slot.Type)
	return nil
}

// Remove unregisters a provider and closes its adapter.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[name]
	if !exists {
		return fmt.Errorf("provider %q not registered", name)
	}

	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if err := entry.Invoker.Close(); err != nil {
		r.logger.Warn("failed to close provider adapter", "name", name, "error", err)
	}

	r.logger.Info("provider removed", "name", name)
	return nil
}

// Update replaces a provider's configuration, rebuilding its adapter.
func (r *Registry) Update(name string, slot config.ProviderConfig) error {
	if slot.Name != name {
		return fmt.Errorf("cannot rename provider %q to %q", name, slot.Name)
	}
	if !slot.IsConfigured() {
		return fmt.Errorf("provider %q: type and credential are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.entries[name]
	if !exists {
		return fmt.Errorf("provider %q not registered", name)
	}

	invoker, err := providers.NewInvoker(adapterConfig(slot))
	if err != nil {
		return err
	}

	r.entries[name] = &Entry{Config: slot, Invoker: invoker}
	r.resortLocked()

	if err := old.Invoker.Close(); err != nil {
		r.logger.Warn("failed to close replaced adapter", "name", name, "error", err)
	}

	r.logger.Info("provider updated", "name", name, "type", slot.Type)
	return nil
}

// Close closes all registered adapters.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeAll()
	return nil
}

// add registers a slot during Load (no lock held yet, registry not shared).
func (r *Registry) add(slot config.ProviderConfig) error {
	return r.addLocked(slot)
}

// addLocked constructs the adapter and registers the entry.
// Caller must hold the write lock (or own the registry exclusively).
func (r *Registry) addLocked(slot config.ProviderConfig) error {
	invoker, err := providers.NewInvoker(adapterConfig(slot))
	if err != nil {
		return err
	}

	r.entries[slot.Name] = &Entry{Config: slot, Invoker: invoker}
	r.order = append(r.order, slot.Name)
	return nil
}

// closeAll closes every adapter. Caller must hold the write lock or own
// the registry exclusively.
func (r *Registry) closeAll() {
	for name, entry := range r.entries {
		if err := entry.Invoker.Close(); err != nil {
			r.logger.Warn("failed to close provider adapter", "name", name, "error", err)
		}
	}
}

// resortLocked restores priority order after a mutation.
func (r *Registry) resortLocked() {
	sort.SliceStable(r.order, func(i, j int) bool {
		return r.entries[r.order[i]].Config.Priority < r.entries[r.order[j]].Config.Priority
	})
}

// sortSlots orders slots by ascending priority, preserving slot order
// within equal priorities.
func sortSlots(slots []config.ProviderConfig) []config.ProviderConfig {
	ordered := append([]config.ProviderConfig(nil), slots...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}

// adapterConfig maps a config slot to the adapter-facing configuration.
func adapterConfig(slot config.ProviderConfig) providers.Config {
	return providers.Config{
		Name:    slot.Name,
		Type:    providers.ProviderType(slot.Type),
		APIKey:  slot.APIKey,
		Model:   slot.Model,
		BaseURL: slot.BaseURL,
		Timeout: slot.Timeout,
	}
}
