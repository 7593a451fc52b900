package files

import (
	"fmt"
	"os"

	"golang.org/x/tools/txtar"
)

// ParseBundle reads a set of files from txtar data. A later file with the
// same name replaces an earlier one.
func ParseBundle(data []byte) map[string]string {
	ar := txtar.Parse(data)
	out := make(map[string]string, len(ar.Files))
	for _, f := range ar.Files {
		out[f.Name] = string(f.Data)
	}
	return out
}

func LoadBundle(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	return ParseBundle(data), nil
}

// FormatBundle is the inverse of ParseBundle. Files are written in the given
// order.
func FormatBundle(names []string, contents map[string]string) []byte {
	ar := &txtar.Archive{}
	for _, name := range names {
		ar.Files = append(ar.Files, txtar.File{Name: name, Data: []byte(contents[name])})
	}
	return txtar.Format(ar)
}
