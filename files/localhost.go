package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/remixgo/remix-shell/protocol"
)

const sharedFolder = "sharedfolder"

// Caller performs a remote procedure call on the companion process.
type Caller interface {
	Call(ctx context.Context, service, fn string, args ...interface{}) (json.RawMessage, error)
}

// Localhost exposes the companion's shared folder. Paths carry the provider
// key as their first segment, which is stripped before calling out.
type Localhost struct {
	key    string
	remote Caller

	mu       sync.Mutex
	readOnly map[string]bool
}

func NewLocalhost(key string, remote Caller) *Localhost {
	return &Localhost{key: key, remote: remote, readOnly: make(map[string]bool)}
}

func (l *Localhost) remotePath(path string) string {
	return strings.TrimPrefix(path, l.key+"/")
}

func (l *Localhost) Get(ctx context.Context, path string) (string, error) {
	raw, err := l.remote.Call(ctx, sharedFolder, "get", l.remotePath(path))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	var f protocol.File
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("%s: unexpected reply: %w", path, err)
	}
	l.mu.Lock()
	l.readOnly[path] = f.ReadOnly
	l.mu.Unlock()
	return f.Content, nil
}

func (l *Localhost) Set(ctx context.Context, path, content string) error {
	if l.IsReadOnly(path) {
		return fmt.Errorf("%s: %w", path, ErrReadOnly)
	}
	if _, err := l.remote.Call(ctx, sharedFolder, "set", l.remotePath(path), content); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (l *Localhost) Exists(ctx context.Context, path string) bool {
	raw, err := l.remote.Call(ctx, sharedFolder, "exists", l.remotePath(path))
	if err != nil {
		return false
	}
	var ok bool
	return json.Unmarshal(raw, &ok) == nil && ok
}

// IsReadOnly reports the flag returned by the last Get of path.
func (l *Localhost) IsReadOnly(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readOnly[path]
}

func (l *Localhost) AddReadOnly(path, content string) error {
	return errors.New("localhost: cannot cache remote content in the shared folder")
}

func (l *Localhost) List(ctx context.Context) ([]string, error) {
	raw, err := l.remote.Call(ctx, sharedFolder, "list")
	if err != nil {
		return nil, err
	}
	var entries map[string]protocol.FileInfo
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("list: unexpected reply: %w", err)
	}
	var paths []string
	for p, fi := range entries {
		if !fi.IsDirectory {
			paths = append(paths, l.key+"/"+p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
