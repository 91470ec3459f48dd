// Package directory maps provider-native sender addresses to internal user
// ids. Resolution is best effort: an unknown address leaves the message
// anonymous rather than rejecting it.
package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tempohq/tempo/internal/channel"
)

// Resolver looks up the internal user bound to a channel address.
type Resolver interface {
	Resolve(ctx context.Context, ch channel.ChannelID, address string) (string, bool)
}

// Binding ties one channel address to a user id.
type Binding struct {
	Channel channel.ChannelID
	Address string
	UserID  string
}

// StaticResolver serves bindings loaded from configuration.
type StaticResolver struct {
	logger *slog.Logger

	mu       sync.RWMutex
	bindings map[channel.ChannelID]map[string]string
}

// NewStaticResolver creates a resolver seeded with the given bindings.
func NewStaticResolver(log *slog.Logger, bindings []Binding) *StaticResolver {
	if log == nil {
		log = slog.Default()
	}
	r := &StaticResolver{
		logger:   log.With(slog.String("component", "directory")),
		bindings: make(map[channel.ChannelID]map[string]string),
	}
	for _, b := range bindings {
		r.Bind(b.Channel, b.Address, b.UserID)
	}
	return r
}

// Bind adds or replaces one address binding.
func (r *StaticResolver) Bind(ch channel.ChannelID, address, userID string) {
	if address == "" || userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byAddress, ok := r.bindings[ch]
	if !ok {
		byAddress = make(map[string]string)
		r.bindings[ch] = byAddress
	}
	byAddress[address] = userID
}

// Resolve returns the user id bound to the address, if any.
func (r *StaticResolver) Resolve(_ context.Context, ch channel.ChannelID, address string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.bindings[ch][address]
	return userID, ok
}

var _ Resolver = (*StaticResolver)(nil)
