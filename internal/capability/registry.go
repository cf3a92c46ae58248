package capability

import (
	"context"
	"fmt"
	"sync"
)

// Handler performs hardware writes for one capability of one provider. A
// provider that exposes a capability read-only still registers a handler
// for it; the handler marks support.
type Handler interface {
	Write(ctx context.Context, subjectID, property string, value float64) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, subjectID, property string, value float64) error

func (f HandlerFunc) Write(ctx context.Context, subjectID, property string, value float64) error {
	return f(ctx, subjectID, property, value)
}

// HandlerSet maps capability names to handlers for one provider.
type HandlerSet map[string]Handler

// Registry maps provider ids to their handler sets. It is constructed once
// at startup and injected; each vendor integration registers itself during
// wiring, after which the registry is read-only and safe for concurrent
// lookups.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]HandlerSet
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]HandlerSet)}
}

// Register adds a provider's handler set. Registering the same provider id
// twice is a wiring bug and panics rather than silently replacing handlers.
func (r *Registry) Register(providerID string, handlers HandlerSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[providerID]; exists {
		panic(fmt.Sprintf("capability: provider %q registered twice", providerID))
	}
	r.providers[providerID] = handlers
}

// Providers returns the registered provider ids.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// lookup resolves the handler for one capability of one provider,
// distinguishing an unknown provider from a provider that lacks the
// capability.
func (r *Registry) lookup(providerID, capabilityName string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("looking up provider %q: %w", providerID, ErrProviderNotRegistered)
	}
	handler, ok := handlers[capabilityName]
	if !ok {
		return nil, fmt.Errorf("capability %q on provider %q: %w", capabilityName, providerID, ErrCapabilityUnsupported)
	}
	return handler, nil
}
