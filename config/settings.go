package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/remixgo/remix-shell/protocol"
)

// Settings holds the process configuration loaded from a YAML file.
type Settings struct {
	Gateways GatewaySettings  `yaml:"gateways"`
	Remixd   RemixdSettings   `yaml:"remixd"`
	Cache    CacheSettings    `yaml:"cache"`
	Compiler CompilerSettings `yaml:"compiler"`
	Storage  StorageSettings  `yaml:"storage"`
	Logging  LoggingSettings  `yaml:"logging"`
}

type GatewaySettings struct {
	GitHubAPI string `yaml:"github_api"`
	Swarm     string `yaml:"swarm"`
	IPFS      string `yaml:"ipfs"`
}

type RemixdSettings struct {
	URL          string `yaml:"url"`
	Origin       string `yaml:"origin"`
	SharedFolder string `yaml:"shared_folder"`
	Listen       string `yaml:"listen"`
	ReadOnly     bool   `yaml:"read_only"`
}

// CacheSettings bounds the read-only set of fetched imports.
type CacheSettings struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

type CompilerSettings struct {
	SolcPath         string        `yaml:"solc_path"`
	Optimize         bool          `yaml:"optimize"`
	AutoCompile      bool          `yaml:"auto_compile"`
	CompileDelay     time.Duration `yaml:"compile_delay"`
	SaveDelay        time.Duration `yaml:"save_delay"`
	SlowCompileAfter time.Duration `yaml:"slow_compile_after"`
}

type StorageSettings struct {
	Path string `yaml:"path"`
}

type LoggingSettings struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the settings used when no file overrides them.
func Default() Settings {
	return Settings{
		Gateways: GatewaySettings{
			GitHubAPI: "https://api.github.com",
			Swarm:     "https://swarm-gateways.net",
			IPFS:      "https://gateway.ipfs.io",
		},
		Remixd: RemixdSettings{
			URL:    protocol.DefaultURL,
			Origin: protocol.Origin,
			Listen: "127.0.0.1:65520",
		},
		Cache: CacheSettings{
			MaxEntries: 512,
			TTL:        time.Hour,
		},
		Compiler: CompilerSettings{
			SolcPath:         "solc",
			AutoCompile:      true,
			CompileDelay:     300 * time.Millisecond,
			SaveDelay:        5 * time.Second,
			SlowCompileAfter: time.Second,
		},
		Storage: StorageSettings{
			Path: "remix-shell.db",
		},
		Logging: LoggingSettings{
			Level: "info",
		},
	}
}

// Load overlays the YAML file at path onto Default. A missing file is not an
// error.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if s.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}
	if s.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if s.Compiler.CompileDelay < 0 || s.Compiler.SaveDelay < 0 {
		return fmt.Errorf("compiler delays must not be negative")
	}
	return nil
}
