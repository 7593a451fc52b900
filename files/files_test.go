package files

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixgo/remix-shell/storage"
)

func newBrowser(t *testing.T) *Browser {
	t.Helper()
	store, err := storage.Open(":memory:", "sol:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewBrowser(store, NewReadOnlyCache(8, 0))
}

func TestBrowserReadOnly(t *testing.T) {
	ctx := context.Background()
	b := newBrowser(t)

	require.NoError(t, b.Set(ctx, "a.sol", "A"))
	require.NoError(t, b.AddReadOnly("github.com/x/y/z.sol", "Z"))

	assert.True(t, b.Exists(ctx, "a.sol"))
	assert.True(t, b.Exists(ctx, "github.com/x/y/z.sol"))
	assert.False(t, b.IsReadOnly("a.sol"))
	assert.True(t, b.IsReadOnly("github.com/x/y/z.sol"))

	content, err := b.Get(ctx, "github.com/x/y/z.sol")
	require.NoError(t, err)
	assert.Equal(t, "Z", content)

	err = b.Set(ctx, "github.com/x/y/z.sol", "changed")
	require.ErrorIs(t, err, ErrReadOnly)

	_, err = b.Get(ctx, "missing.sol")
	require.ErrorIs(t, err, ErrNotFound)

	list, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.sol"}, list)
}

func TestReadOnlyCacheBounds(t *testing.T) {
	c := NewReadOnlyCache(2, time.Minute)
	now := time.Unix(1000, 0)
	c.clock = func() time.Time { return now }

	c.Add("a", "1")
	c.Add("b", "2")
	c.Get("a")
	c.Add("c", "3")

	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"), "least recently used entry is evicted")
	assert.True(t, c.Has("c"))

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Has("a"), "expired entry is dropped")
	assert.Equal(t, 1, c.Len())
}

func TestRegistryProviderOf(t *testing.T) {
	browser := newBrowser(t)
	local := NewLocalhost("localhost", nil)
	r := NewRegistry("browser", browser)
	r.Register("localhost", local)

	p, key := r.ProviderOf("localhost/contracts/a.sol")
	assert.Equal(t, "localhost", key)
	assert.Same(t, local, p.(*Localhost))

	p, key = r.ProviderOf("ballot.sol")
	assert.Equal(t, "browser", key)
	assert.Same(t, browser, p.(*Browser))

	_, key = r.ProviderOf("github.com/a/b/c.sol")
	assert.Equal(t, "browser", key)

	r.Unregister("localhost")
	_, key = r.ProviderOf("localhost/a.sol")
	assert.Equal(t, "browser", key)

	r.Unregister("browser")
	assert.NotNil(t, r.Default())
}

func TestNonClashingName(t *testing.T) {
	ctx := context.Background()
	b := newBrowser(t)

	assert.Equal(t, "x.sol", NonClashingName(ctx, b, "x.sol"))
	require.NoError(t, b.Set(ctx, "x.sol", ""))
	assert.Equal(t, "x1.sol", NonClashingName(ctx, b, "x.sol"))
	require.NoError(t, b.Set(ctx, "x1.sol", ""))
	assert.Equal(t, "x2.sol", NonClashingName(ctx, b, "x"))
}

func TestBundleRoundTrip(t *testing.T) {
	data := FormatBundle([]string{"a.sol", "lib/b.sol"}, map[string]string{
		"a.sol":     "import \"lib/b.sol\";\n",
		"lib/b.sol": "contract B {}\n",
	})
	got := ParseBundle(data)
	assert.Equal(t, "contract B {}\n", got["lib/b.sol"])
	assert.Equal(t, "import \"lib/b.sol\";\n", got["a.sol"])
}

type fakeCaller struct {
	calls   []string
	replies map[string]interface{}
	err     error
}

func (f *fakeCaller) Call(ctx context.Context, service, fn string, args ...interface{}) (json.RawMessage, error) {
	f.calls = append(f.calls, service+"."+fn)
	if f.err != nil {
		return nil, f.err
	}
	return json.Marshal(f.replies[fn])
}

func TestLocalhostProvider(t *testing.T) {
	ctx := context.Background()
	remote := &fakeCaller{replies: map[string]interface{}{
		"get":    map[string]interface{}{"content": "contract A {}", "readonly": true},
		"exists": true,
		"list": map[string]interface{}{
			"a.sol": map[string]bool{"isDirectory": false},
			"lib":   map[string]bool{"isDirectory": true},
		},
	}}
	l := NewLocalhost("localhost", remote)

	content, err := l.Get(ctx, "localhost/a.sol")
	require.NoError(t, err)
	assert.Equal(t, "contract A {}", content)
	assert.True(t, l.IsReadOnly("localhost/a.sol"))
	assert.True(t, l.Exists(ctx, "localhost/a.sol"))
	require.ErrorIs(t, l.Set(ctx, "localhost/a.sol", "x"), ErrReadOnly)

	list, err := l.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost/a.sol"}, list)
	assert.Equal(t, []string{"sharedfolder.get", "sharedfolder.exists", "sharedfolder.list"}, remote.calls)

	remote.err = errors.New("socket not ready")
	assert.False(t, l.Exists(ctx, "localhost/a.sol"))
	require.Error(t, l.AddReadOnly("localhost/x.sol", ""))
}
