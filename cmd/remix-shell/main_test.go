package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/remixgo/remix-shell/app"
	"github.com/remixgo/remix-shell/config"
)

func writeSettings(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "remix-shell.yaml")
	doc := `
storage:
  path: ` + filepath.Join(dir, "workspace.db") + `
remixd:
  url: ws://127.0.0.1:1
logging:
  level: error
`
	for _, e := range extra {
		doc += e
	}
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadAndExport(t *testing.T) {
	settingsFile := writeSettings(t)
	bundle := filepath.Join(t.TempDir(), "files.txtar")
	require.NoError(t, os.WriteFile(bundle, []byte("-- a.sol --\ncontract A {}\n-- b.sol --\ncontract B {}\n"), 0o644))

	out, err := execute(t, "--config", settingsFile, "load", bundle)
	require.NoError(t, err)
	assert.Equal(t, "a.sol\nb.sol\n", out)

	out, err = execute(t, "--config", settingsFile, "load", bundle)
	require.NoError(t, err)
	assert.Equal(t, "a1.sol\nb1.sol\n", out)

	out, err = execute(t, "--config", settingsFile, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "-- a.sol --\ncontract A {}\n")
	assert.Contains(t, out, "-- b1.sol --\ncontract B {}\n")
}

func TestConfigGetSet(t *testing.T) {
	settingsFile := writeSettings(t)

	_, err := execute(t, "--config", settingsFile, "config", "get", "autoCompile")
	require.Error(t, err)

	_, err = execute(t, "--config", settingsFile, "config", "set", "autoCompile", "false")
	require.NoError(t, err)
	_, err = execute(t, "--config", settingsFile, "config", "set", "currentFile", "ballot.sol")
	require.NoError(t, err)

	out, err := execute(t, "--config", settingsFile, "config", "get", "autoCompile")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = execute(t, "--config", settingsFile, "config", "get", "currentFile")
	require.NoError(t, err)
	assert.Equal(t, "\"ballot.sol\"\n", out)
}

func TestResolveFromGitHub(t *testing.T) {
	github := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r/contents/lib/math.sol" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"content":"`+base64.StdEncoding.EncodeToString([]byte("library Math {}"))+`"}`)
	}))
	defer github.Close()

	settingsFile := writeSettings(t, "gateways:\n  github_api: "+github.URL+"\n")
	out, err := execute(t, "--config", settingsFile, "resolve", "github.com/o/r/lib/math.sol")
	require.NoError(t, err)
	assert.Equal(t, "library Math {}", out)

	_, err = execute(t, "--config", settingsFile, "resolve", "ftp://host/x.sol")
	require.Error(t, err)
}

func TestReportEventsLogsRemoteFetches(t *testing.T) {
	settings := config.Default()
	settings.Storage.Path = ":memory:"
	s, err := app.Bootstrap(context.Background(), settings, app.BootstrapOptions{}, nil)
	require.NoError(t, err)
	defer s.Close()

	core, logs := observer.New(zap.InfoLevel)
	reportEvents(s, zap.New(core))

	s.Resolver.Loading.Publish("github.com/o/r/lib/math.sol")
	s.Compiler.Duration.Publish(1500 * time.Millisecond)
	s.Compiler.Duration.Publish(10 * time.Millisecond)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "loading", entries[0].Message)
	assert.Equal(t, "github.com/o/r/lib/math.sol", entries[0].ContextMap()["specifier"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Contains(t, entries[1].Message, "Last compilation took 1500ms")
}
