package companion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixgo/remix-shell/protocol"
)

func args(t *testing.T, vals ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(vals))
	for i, v := range vals {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[i] = b
	}
	return out
}

func TestFolderOperations(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFolder(dir, false)
	require.NoError(t, err)

	_, err = f.Call("sharedfolder", "set", args(t, "contracts/a.sol", "A"))
	require.NoError(t, err)
	res, err := f.Call("fs", "exists", args(t, "contracts/a.sol"))
	require.NoError(t, err)
	assert.Equal(t, true, res)

	res, err = f.Call("sharedfolder", "get", args(t, "contracts/a.sol"))
	require.NoError(t, err)
	assert.Equal(t, &protocol.File{Content: "A", ReadOnly: false}, res)

	_, err = f.Call("sharedfolder", "rename", args(t, "contracts/a.sol", "contracts/b.sol"))
	require.NoError(t, err)
	assert.False(t, f.Exists("contracts/a.sol"))

	list, err := f.List()
	require.NoError(t, err)
	assert.Equal(t, map[string]protocol.FileInfo{
		"contracts":       {IsDirectory: true},
		"contracts/b.sol": {IsDirectory: false},
	}, list)

	children, err := f.ResolveDirectory("contracts")
	require.NoError(t, err)
	assert.Equal(t, map[string]protocol.FileInfo{"contracts/b.sol": {}}, children)

	_, err = f.Call("sharedfolder", "remove", args(t, "contracts"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "contracts"))
	assert.True(t, os.IsNotExist(err))
}

func TestFolderRejectsEscapes(t *testing.T) {
	f, err := NewFolder(t.TempDir(), false)
	require.NoError(t, err)

	_, err = f.Get("../../etc/passwd")
	require.ErrorIs(t, err, ErrOutsideFolder)
	require.Error(t, f.Remove(""))
	assert.False(t, f.Exists("../x"))
}

func TestFolderCallErrors(t *testing.T) {
	f, err := NewFolder(t.TempDir(), true)
	require.NoError(t, err)

	_, err = f.Call("sharedfolder", "get", nil)
	require.Error(t, err)
	_, err = f.Call("sharedfolder", "frobnicate", nil)
	require.Error(t, err)
	_, err = f.Call("sharedfolder", "set", args(t, "a.sol", "x"))
	require.ErrorIs(t, err, ErrReadOnly)

	res, err := f.Call("sharedfolder", "isReadOnly", args(t, "a.sol"))
	require.NoError(t, err)
	assert.Equal(t, true, res)
}

func TestNewFolderRequiresDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := NewFolder(path, false)
	require.Error(t, err)
}
