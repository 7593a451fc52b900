// Package resolver turns import specifiers into source text, reading local
// providers first and falling back to GitHub, Swarm and IPFS.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/remixgo/remix-shell/event"
	"github.com/remixgo/remix-shell/files"
)

// SwarmGetter fetches bzz content through a gateway.
type SwarmGetter interface {
	Get(ctx context.Context, url string) (string, error)
}

// Backend is the active execution backend. When it is a live node, Swarm
// fetches that fail at the gateway are retried through it.
type Backend interface {
	IsVM() bool
	SwarmDownload(ctx context.Context, url string) (string, error)
}

type Options struct {
	GitHubAPI   string
	IPFSGateway string
	HTTPClient  *http.Client
	Swarm       SwarmGetter
	Backend     Backend
	Logger      *zap.Logger
}

type Resolver struct {
	files       *files.Registry
	client      *http.Client
	githubAPI   string
	ipfsGateway string
	swarm       SwarmGetter
	backend     Backend
	logger      *zap.Logger
	handlers    []handler

	// Loading fires with the specifier before each remote fetch.
	Loading event.Feed[string]
}

type handler struct {
	name  string
	match *regexp.Regexp
	fetch func(ctx context.Context, m []string) (string, error)
}

var schemeRE = regexp.MustCompile(`^[^:]*://`)

func New(registry *files.Registry, opts Options) *Resolver {
	r := &Resolver{
		files:       registry,
		client:      opts.HTTPClient,
		githubAPI:   strings.TrimSuffix(opts.GitHubAPI, "/"),
		ipfsGateway: strings.TrimSuffix(opts.IPFSGateway, "/"),
		swarm:       opts.Swarm,
		backend:     opts.Backend,
		logger:      opts.Logger,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("resolver")

	// evaluated in order, first match wins
	r.handlers = []handler{
		{
			name:  "github",
			match: regexp.MustCompile(`^(https?://)?(www.)?github.com/([^/]*/[^/]*)/(.*)`),
			fetch: func(ctx context.Context, m []string) (string, error) { return r.fetchGitHub(ctx, m[3], m[4]) },
		},
		{
			name:  "swarm",
			match: regexp.MustCompile(`^(bzz[ri]?://?.*)$`),
			fetch: func(ctx context.Context, m []string) (string, error) { return r.fetchSwarm(ctx, m[1]) },
		},
		{
			name:  "ipfs",
			match: regexp.MustCompile(`^(ipfs://?.+)`),
			fetch: func(ctx context.Context, m []string) (string, error) { return r.fetchIPFS(ctx, m[1]) },
		},
	}
	return r
}

// Resolve returns the content of specifier. Remote content is added to the
// default provider's read-only set, so resolving it again does not fetch.
// Every error is an *ImportError.
func (r *Resolver) Resolve(ctx context.Context, specifier string) (string, error) {
	if p, _ := r.files.ProviderOf(specifier); p != nil && p.Exists(ctx, specifier) {
		content, err := p.Get(ctx, specifier)
		if err != nil {
			return "", &ImportError{Specifier: specifier, Err: err}
		}
		return content, nil
	}

	for _, h := range r.handlers {
		m := h.match.FindStringSubmatch(specifier)
		if m == nil {
			continue
		}

		r.Loading.Publish(specifier)
		r.logger.Debug("fetching import", zap.String("specifier", specifier), zap.String("handler", h.name))
		content, err := h.fetch(ctx, m)
		if err != nil {
			r.logger.Info("import failed", zap.String("specifier", specifier), zap.Error(err))
			return "", &ImportError{Specifier: specifier, Err: err}
		}
		if err := r.files.Default().AddReadOnly(specifier, content); err != nil {
			r.logger.Warn("caching import", zap.String("specifier", specifier), zap.Error(err))
		}
		return content, nil
	}

	if schemeRE.MatchString(specifier) {
		return "", &ImportError{Specifier: specifier, Err: ErrUnsupportedSchema}
	}
	return "", &ImportError{Specifier: specifier, Err: ErrFileNotFound}
}

// Func adapts Resolve to the compiler's import callback.
func (r *Resolver) Func() func(ctx context.Context, path string) (string, error) {
	return r.Resolve
}

func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s", http.StatusText(resp.StatusCode))
	}
	return body, nil
}

func transportError(err error) error {
	if err == nil || err.Error() == "" {
		return ErrUnknownTransport
	}
	return err
}
