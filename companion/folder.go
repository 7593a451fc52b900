package companion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/remixgo/remix-shell/protocol"
)

const scope = "sharedfolder"

var (
	ErrOutsideFolder = errors.New("path outside shared folder")
	ErrReadOnly      = errors.New("shared folder is read-only")
)

// Folder implements the sharedfolder service on a directory.
type Folder struct {
	root     string
	readOnly bool
}

func NewFolder(root string, readOnly bool) (*Folder, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Folder{root: abs, readOnly: readOnly}, nil
}

func (f *Folder) Root() string { return f.root }

// Call dispatches fn of service. "fs" is accepted as an alias of
// "sharedfolder".
func (f *Folder) Call(service, fn string, args []json.RawMessage) (interface{}, error) {
	if service != scope && service != "fs" {
		return nil, fmt.Errorf("unknown service %q", service)
	}

	done := func(err error) (interface{}, error) {
		if err != nil {
			return nil, err
		}
		return true, nil
	}
	str := func(i int) (string, error) {
		if i >= len(args) {
			return "", fmt.Errorf("%s: missing argument %d", fn, i)
		}
		var s string
		if err := json.Unmarshal(args[i], &s); err != nil {
			return "", fmt.Errorf("%s: argument %d: %w", fn, i, err)
		}
		return s, nil
	}

	switch fn {
	case "list":
		return f.List()

	case "resolveDirectory":
		dir := ""
		if len(args) > 0 {
			var err error
			if dir, err = str(0); err != nil {
				return nil, err
			}
		}
		return f.ResolveDirectory(dir)

	case "get", "readFile", "exists", "isReadOnly", "remove":
		path, err := str(0)
		if err != nil {
			return nil, err
		}
		switch fn {
		case "get":
			return f.Get(path)
		case "readFile":
			file, err := f.Get(path)
			if err != nil {
				return nil, err
			}
			return file.Content, nil
		case "exists":
			return f.Exists(path), nil
		case "isReadOnly":
			return f.readOnly, nil
		default:
			return done(f.Remove(path))
		}

	case "set", "rename":
		a, err := str(0)
		if err != nil {
			return nil, err
		}
		b, err := str(1)
		if err != nil {
			return nil, err
		}
		if fn == "set" {
			return done(f.Set(a, b))
		}
		return done(f.Rename(a, b))
	}
	return nil, fmt.Errorf("unknown function %s.%s", service, fn)
}

// abs maps a slash-separated path relative to the root to an absolute path.
func (f *Folder) abs(path string) (string, error) {
	full := filepath.Join(f.root, filepath.FromSlash(path))
	if full != f.root && !strings.HasPrefix(full, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideFolder)
	}
	return full, nil
}

func (f *Folder) Get(path string) (*protocol.File, error) {
	full, err := f.abs(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("File not found %s", path)
		}
		return nil, err
	}
	return &protocol.File{Content: string(content), ReadOnly: f.readOnly}, nil
}

func (f *Folder) Exists(path string) bool {
	full, err := f.abs(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

func (f *Folder) Set(path, content string) error {
	if f.readOnly {
		return ErrReadOnly
	}
	full, err := f.abs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return err
	}
	if current, err := os.ReadFile(full); err == nil && string(current) == content {
		return nil // don't touch the file
	}
	return os.WriteFile(full, []byte(content), 0o666)
}

func (f *Folder) Rename(oldPath, newPath string) error {
	if f.readOnly {
		return ErrReadOnly
	}
	from, err := f.abs(oldPath)
	if err != nil {
		return err
	}
	to, err := f.abs(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("%s already exists", newPath)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o777); err != nil {
		return err
	}
	return os.Rename(from, to)
}

func (f *Folder) Remove(path string) error {
	if f.readOnly {
		return ErrReadOnly
	}
	full, err := f.abs(path)
	if err != nil {
		return err
	}
	if full == f.root {
		return fmt.Errorf("refusing to remove the shared folder")
	}
	return os.RemoveAll(full)
}

// List returns every entry below the root, keyed by slash-separated path.
func (f *Folder) List() (map[string]protocol.FileInfo, error) {
	out := make(map[string]protocol.FileInfo)
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == f.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = protocol.FileInfo{IsDirectory: d.IsDir()}
		return nil
	})
	return out, err
}

// ResolveDirectory lists the direct children of dir.
func (f *Folder) ResolveDirectory(dir string) (map[string]protocol.FileInfo, error) {
	full, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}
	out := make(map[string]protocol.FileInfo, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out[strings.TrimPrefix(filepath.ToSlash(filepath.Join(dir, e.Name())), "/")] = protocol.FileInfo{IsDirectory: e.IsDir()}
	}
	return out, nil
}
