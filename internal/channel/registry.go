package channel

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds all registered channel adapters. It is the single source of
// truth for "is this channel configured." Registration happens once at
// startup before any request traffic; the read-write lock exists so that a
// late registration can never be observed as a partially-updated map.
type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	adapters map[ChannelID]Adapter
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		logger:   log.With(slog.String("component", "channel_registry")),
		adapters: map[ChannelID]Adapter{},
	}
}

// Register adds an adapter to the registry, keyed by its channel id.
// Re-registering a channel overwrites the prior adapter and logs a warning;
// this keeps hot-reload and test scenarios from failing at startup.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is nil")
	}
	id, ok := ParseChannelID(adapter.ID().String())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, adapter.ID())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		r.logger.Warn("channel adapter overwritten", slog.String("channel", id.String()))
	}
	r.adapters[id] = adapter
	return nil
}

// MustRegister calls Register and panics on error. Intended for startup
// wiring where a bad adapter is a programming defect.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get returns the adapter for the given channel. It is total: an unregistered
// channel reports false, never an error.
func (r *Registry) Get(id ChannelID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[id]
	return adapter, ok
}

// GetOrErr returns the adapter for the given channel, or
// ErrChannelNotRegistered when absent. Use at call sites that have already
// validated the channel exists.
func (r *Registry) GetOrErr(id ChannelID) (Adapter, error) {
	adapter, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotRegistered, id)
	}
	return adapter, nil
}

// Has reports whether the channel has a registered adapter.
func (r *Registry) Has(id ChannelID) bool {
	_, ok := r.Get(id)
	return ok
}

// Channels returns the registered channel ids in stable order.
func (r *Registry) Channels() []ChannelID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]ChannelID, 0, len(r.adapters))
	for id := range r.adapters {
		items = append(items, id)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}

// GetDescriptor returns the descriptor for the given channel.
func (r *Registry) GetDescriptor(id ChannelID) (Descriptor, bool) {
	adapter, ok := r.Get(id)
	if !ok {
		return Descriptor{}, false
	}
	return adapter.Descriptor(), true
}

// ListDescriptors returns descriptors for all registered channels.
func (r *Registry) ListDescriptors() []Descriptor {
	ids := r.Channels()
	items := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		if desc, ok := r.GetDescriptor(id); ok {
			items = append(items, desc)
		}
	}
	return items
}

// GetChallengeHandler returns the verification-challenge handler for the
// given channel, or false if the adapter does not implement one.
func (r *Registry) GetChallengeHandler(id ChannelID) (ChallengeHandler, bool) {
	adapter, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	handler, ok := adapter.(ChallengeHandler)
	return handler, ok
}
