// Package files holds the file providers the shell reads sources from: the
// writable browser store with its cache of fetched imports, and the shared
// folder reachable through remixd.
package files

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("file not found")
	ErrReadOnly = errors.New("file is read-only")
)

// Provider is a named source of file content.
type Provider interface {
	Get(ctx context.Context, path string) (string, error)
	Set(ctx context.Context, path, content string) error
	Exists(ctx context.Context, path string) bool
	IsReadOnly(path string) bool
	AddReadOnly(path, content string) error
	List(ctx context.Context) ([]string, error)
}

// Registry maps a provider key, the first segment of a path, to a Provider.
// Paths whose first segment is not a registered key belong to the default
// provider.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	defaultKey string
}

func NewRegistry(defaultKey string, def Provider) *Registry {
	return &Registry{
		providers:  map[string]Provider{defaultKey: def},
		defaultKey: defaultKey,
	}
}

func (r *Registry) Register(key string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[key] = p
}

func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key != r.defaultKey {
		delete(r.providers, key)
	}
}

func (r *Registry) Provider(key string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	return p, ok
}

func (r *Registry) Default() Provider {
	p, _ := r.Provider(r.defaultKey)
	return p
}

// ProviderOf returns the provider a path belongs to and its key.
func (r *Registry) ProviderOf(path string) (Provider, string) {
	key, _, _ := strings.Cut(path, "/")
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[key]; ok && key != "" {
		return p, key
	}
	return r.providers[r.defaultKey], r.defaultKey
}

// ReadFile reads path from the provider it belongs to.
func (r *Registry) ReadFile(ctx context.Context, path string) (string, error) {
	p, _ := r.ProviderOf(path)
	return p.Get(ctx, path)
}
