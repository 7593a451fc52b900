package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/remixgo/remix-shell/compiler"
	"github.com/remixgo/remix-shell/config"
	"github.com/remixgo/remix-shell/editor"
	"github.com/remixgo/remix-shell/execution"
	"github.com/remixgo/remix-shell/files"
	"github.com/remixgo/remix-shell/remixd"
	"github.com/remixgo/remix-shell/resolver"
	"github.com/remixgo/remix-shell/storage"
	"github.com/remixgo/remix-shell/swarm"
)

const (
	BrowserKey   = "browser"
	LocalhostKey = "localhost"

	filesPrefix  = "sol:"
	configPrefix = "config:"
)

// Shell owns every component built from Settings.
type Shell struct {
	*App
	Store     *storage.Store
	Config    *config.Config
	Files     *files.Registry
	Editor    *editor.Editor
	Compiler  *compiler.Compiler
	Execution *execution.Context
	Resolver  *resolver.Resolver
	Remixd    *remixd.Client
	Swarm     *swarm.Client
}

type BootstrapOptions struct {
	HTTPClient *http.Client
	// Runner overrides the solc runner built from the settings.
	Runner compiler.Runner
}

// Bootstrap builds the components bottom-up. The caller must Close the
// returned shell.
func Bootstrap(ctx context.Context, settings config.Settings, opts BootstrapOptions, logger *zap.Logger) (*Shell, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(settings.Storage.Path, filesPrefix)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	cfg, err := config.New(ctx, store.WithPrefix(configPrefix))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load config: %w", err)
	}

	s := &Shell{Store: store, Config: cfg}

	cache := files.NewReadOnlyCache(settings.Cache.MaxEntries, settings.Cache.TTL)
	s.Files = files.NewRegistry(BrowserKey, files.NewBrowser(store, cache))

	s.Remixd = remixd.New(settings.Remixd.URL, settings.Remixd.Origin, logger)
	s.Files.Register(LocalhostKey, files.NewLocalhost(LocalhostKey, s.Remixd))

	s.Execution = execution.New(opts.HTTPClient, logger)
	s.Swarm = swarm.New(settings.Gateways.Swarm, opts.HTTPClient, logger)
	s.Resolver = resolver.New(s.Files, resolver.Options{
		GitHubAPI:   settings.Gateways.GitHubAPI,
		IPFSGateway: settings.Gateways.IPFS,
		HTTPClient:  opts.HTTPClient,
		Swarm:       s.Swarm,
		Backend:     s.Execution,
		Logger:      logger,
	})

	runner := opts.Runner
	if runner == nil {
		runner = compiler.SolcRunner{Path: settings.Compiler.SolcPath}
	}
	s.Compiler = compiler.New(runner, s.Resolver.Func(), logger)
	s.Compiler.SetOptimize(settings.Compiler.Optimize)

	s.Editor = editor.New()
	s.App = New(Deps{
		Config:    cfg,
		Settings:  settings.Compiler,
		Files:     s.Files,
		Editor:    s.Editor,
		Compiler:  s.Compiler,
		Execution: s.Execution,
		Remixd:    s.Remixd,
		Swarm:     s.Swarm,
		Logger:    logger,
	})
	return s, nil
}

func (s *Shell) Close() error {
	s.App.Close()
	s.Remixd.Close()
	return s.Store.Close()
}
