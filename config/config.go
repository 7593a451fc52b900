// Package config holds the YAML process settings and the persistent
// key/value configuration kept next to the user's files.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/remixgo/remix-shell/storage"
)

const (
	KeyCurrentFile      = "currentFile"
	KeyAutoCompile      = "autoCompile"
	KeyEditorWindowSize = "editorWindowSize"
)

const configKey = ".remix.config"

// Config is a JSON document persisted under a single storage key.
type Config struct {
	store *storage.Store

	mu    sync.Mutex
	items map[string]json.RawMessage
}

func New(ctx context.Context, store *storage.Store) (*Config, error) {
	c := &Config{store: store, items: make(map[string]json.RawMessage)}
	data, err := store.Get(ctx, configKey)
	if errors.Is(err, storage.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &c.items); err != nil {
		// a corrupt document is replaced on the next Set
		c.items = make(map[string]json.RawMessage)
	}
	return c, nil
}

func (c *Config) Exists(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Get decodes the value stored under key into v. It reports false when the
// key is absent.
func (c *Config) Get(key string, v interface{}) (bool, error) {
	c.mu.Lock()
	raw, ok := c.items[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("config %s: %w", key, err)
	}
	return true, nil
}

func (c *Config) GetString(key string) string {
	var s string
	c.Get(key, &s)
	return s
}

func (c *Config) Set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("config %s: %w", key, err)
	}

	// held across the store write so concurrent Sets persist in order
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.items[key]
	c.items[key] = raw
	data, err := json.Marshal(c.items)
	if err == nil {
		err = c.store.Set(ctx, configKey, string(data))
	}
	if err != nil {
		if had {
			c.items[key] = prev
		} else {
			delete(c.items, key)
		}
		return fmt.Errorf("config %s: %w", key, err)
	}
	return nil
}
