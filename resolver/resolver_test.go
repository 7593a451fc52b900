package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixgo/remix-shell/files"
	"github.com/remixgo/remix-shell/storage"
)

const testCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

type fixture struct {
	resolver *Resolver
	browser  *files.Browser
	hits     atomic.Int32
	mux      *http.ServeMux
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := storage.Open(":memory:", "sol:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	f.browser = files.NewBrowser(store, files.NewReadOnlyCache(16, 0))

	opts.GitHubAPI = srv.URL
	opts.IPFSGateway = srv.URL
	f.resolver = New(files.NewRegistry("browser", f.browser), opts)
	return f
}

func TestResolveLocalFileWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.browser.Set(ctx, "github.com/a/b/local.sol", "local"))

	content, err := f.resolver.Resolve(ctx, "github.com/a/b/local.sol")
	require.NoError(t, err)
	assert.Equal(t, "local", content)
	assert.EqualValues(t, 0, f.hits.Load())
}

func TestResolveGitHub(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.mux.HandleFunc("/repos/ethereum/dapp-bin/contents/library/math.sol", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":"` + base64.StdEncoding.EncodeToString([]byte("X")) + `"}`))
	})

	var loading []string
	f.resolver.Loading.Subscribe(func(s string) { loading = append(loading, s) })

	specifier := "github.com/ethereum/dapp-bin/library/math.sol"
	content, err := f.resolver.Resolve(ctx, specifier)
	require.NoError(t, err)
	assert.Equal(t, "X", content)

	content, err = f.resolver.Resolve(ctx, specifier)
	require.NoError(t, err)
	assert.Equal(t, "X", content)

	assert.EqualValues(t, 1, f.hits.Load(), "second resolution is served from the read-only set")
	assert.True(t, f.browser.IsReadOnly(specifier))
	assert.Equal(t, []string{specifier}, loading)
}

func TestResolveGitHubWrappedPayload(t *testing.T) {
	f := newFixture(t, Options{})
	f.mux.HandleFunc("/repos/o/r/contents/a.sol", func(w http.ResponseWriter, r *http.Request) {
		enc := base64.StdEncoding.EncodeToString([]byte("contract A { uint x; }"))
		w.Write([]byte(`{"content":"` + enc[:8] + `\n` + enc[8:] + `\n"}`))
	})

	content, err := f.resolver.Resolve(context.Background(), "https://www.github.com/o/r/a.sol")
	require.NoError(t, err)
	assert.Equal(t, "contract A { uint x; }", content)
}

func TestResolveGitHubMissingContent(t *testing.T) {
	f := newFixture(t, Options{})
	f.mux.HandleFunc("/repos/o/r/contents/a.sol", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"hello"}`))
	})

	_, err := f.resolver.Resolve(context.Background(), "github.com/o/r/a.sol")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentNotReceived)
	assert.Contains(t, err.Error(), "Content not received")
	assert.Equal(t, `Unable to import "github.com/o/r/a.sol": Content not received`, err.Error())
}

func TestResolveGitHubTransportError(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.resolver.Resolve(context.Background(), "github.com/o/r/missing.sol")
	require.Error(t, err)
	assert.Equal(t, `Unable to import "github.com/o/r/missing.sol": Not Found`, err.Error())
	assert.False(t, f.browser.Exists(context.Background(), "github.com/o/r/missing.sol"))
}

func TestResolvePolicyErrors(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.resolver.Resolve(context.Background(), "ftp://example.com/a.sol")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
	assert.Contains(t, err.Error(), "Unsupported URL schema")

	_, err = f.resolver.Resolve(context.Background(), "nowhere/a.sol")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Contains(t, err.Error(), "File not found")

	var ie *ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "nowhere/a.sol", ie.Specifier)
	assert.EqualValues(t, 0, f.hits.Load())
}

func TestResolveIPFS(t *testing.T) {
	f := newFixture(t, Options{})
	f.mux.HandleFunc("/ipfs/"+testCID+"/token.sol", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("contract Token {}"))
	})

	content, err := f.resolver.Resolve(context.Background(), "ipfs://"+testCID+"/token.sol")
	require.NoError(t, err)
	assert.Equal(t, "contract Token {}", content)

	_, err = f.resolver.Resolve(context.Background(), "ipfs://not-a-cid/token.sol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid CID")
	assert.EqualValues(t, 1, f.hits.Load())
}

type fakeSwarm struct {
	content string
	err     error
	calls   int
}

func (s *fakeSwarm) Get(ctx context.Context, url string) (string, error) {
	s.calls++
	return s.content, s.err
}

type fakeBackend struct {
	vm       bool
	content  string
	err      error
	requests []string
}

func (b *fakeBackend) IsVM() bool { return b.vm }

func (b *fakeBackend) SwarmDownload(ctx context.Context, url string) (string, error) {
	b.requests = append(b.requests, url)
	return b.content, b.err
}

func TestResolveSwarm(t *testing.T) {
	gw := &fakeSwarm{content: "contract S {}"}
	f := newFixture(t, Options{Swarm: gw})

	content, err := f.resolver.Resolve(context.Background(), "bzzr://abcd")
	require.NoError(t, err)
	assert.Equal(t, "contract S {}", content)
	assert.Equal(t, 1, gw.calls)
}

func TestResolveSwarmFallsBackOnLiveNetwork(t *testing.T) {
	gw := &fakeSwarm{err: errors.New("gateway down")}
	node := &fakeBackend{content: "from node"}
	f := newFixture(t, Options{Swarm: gw, Backend: node})

	content, err := f.resolver.Resolve(context.Background(), "bzz-raw://abcd")
	require.Error(t, err, "bzz-raw is not a swarm handler match")
	assert.ErrorIs(t, err, ErrUnsupportedSchema)

	content, err = f.resolver.Resolve(context.Background(), "bzz://abcd")
	require.NoError(t, err)
	assert.Equal(t, "from node", content)
	assert.Equal(t, []string{"bzz://abcd"}, node.requests)
}

func TestResolveSwarmNoFallbackInVM(t *testing.T) {
	gw := &fakeSwarm{err: errors.New("gateway down")}
	node := &fakeBackend{vm: true, content: "from node"}
	f := newFixture(t, Options{Swarm: gw, Backend: node})

	_, err := f.resolver.Resolve(context.Background(), "bzzi://abcd")
	require.Error(t, err)
	assert.Equal(t, `Unable to import "bzzi://abcd": gateway down`, err.Error())
	assert.Empty(t, node.requests)
}
