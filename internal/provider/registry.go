package provider

import (
	"sync"

	"github.com/sydlexius/medley/internal/media"
)

// Registry holds all registered service adapters keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[media.ServiceName]Provider
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[media.ServiceName]Provider),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns an adapter by name, or nil if not registered.
func (r *Registry) Get(name media.ServiceName) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// All returns all registered adapters in a stable order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Provider
	for _, name := range media.AllServiceNames() {
		if p, ok := r.providers[name]; ok {
			result = append(result, p)
		}
	}
	return result
}

// Albums returns the registered adapters that can serve collections.
func (r *Registry) Albums() []AlbumProvider {
	var result []AlbumProvider
	for _, p := range r.All() {
		if ap, ok := p.(AlbumProvider); ok {
			result = append(result, ap)
		}
	}
	return result
}

// Videos returns the registered adapters that can serve music videos.
func (r *Registry) Videos() []VideoProvider {
	var result []VideoProvider
	for _, p := range r.All() {
		if vp, ok := p.(VideoProvider); ok {
			result = append(result, vp)
		}
	}
	return result
}

// Knowledge returns the registered adapters that can serve editorial metadata.
func (r *Registry) Knowledge() []KnowledgeProvider {
	var result []KnowledgeProvider
	for _, p := range r.All() {
		if kp, ok := p.(KnowledgeProvider); ok {
			result = append(result, kp)
		}
	}
	return result
}
