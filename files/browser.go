package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/remixgo/remix-shell/storage"
)

// Browser keeps writable files in a storage.Store and fetched imports in a
// ReadOnlyCache.
type Browser struct {
	store    *storage.Store
	readOnly *ReadOnlyCache
}

func NewBrowser(store *storage.Store, cache *ReadOnlyCache) *Browser {
	return &Browser{store: store, readOnly: cache}
}

func (b *Browser) Get(ctx context.Context, path string) (string, error) {
	if content, ok := b.readOnly.Get(path); ok {
		return content, nil
	}
	content, err := b.store.Get(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return content, err
}

func (b *Browser) Set(ctx context.Context, path, content string) error {
	if b.readOnly.Has(path) {
		return fmt.Errorf("%s: %w", path, ErrReadOnly)
	}
	return b.store.Set(ctx, path, content)
}

func (b *Browser) Exists(ctx context.Context, path string) bool {
	if b.readOnly.Has(path) {
		return true
	}
	ok, err := b.store.Exists(ctx, path)
	return err == nil && ok
}

func (b *Browser) IsReadOnly(path string) bool {
	return b.readOnly.Has(path)
}

func (b *Browser) AddReadOnly(path, content string) error {
	b.readOnly.Add(path, content)
	return nil
}

func (b *Browser) Remove(ctx context.Context, path string) error {
	return b.store.Remove(ctx, path)
}

// List returns the writable files only.
func (b *Browser) List(ctx context.Context) ([]string, error) {
	return b.store.Keys(ctx)
}
