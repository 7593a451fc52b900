// Package compiler drives a Solidity compiler through its standard JSON
// interface, resolving imports before the compiler runs.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/remixgo/remix-shell/event"
)

// ImportFunc returns the content of an import the caller did not supply.
type ImportFunc func(ctx context.Context, path string) (string, error)

// Runner executes the compiler on a standard JSON input document.
type Runner interface {
	Run(ctx context.Context, input []byte) ([]byte, error)
}

// Sources maps file names to content.
type Sources map[string]string

// Input is what a compilation ran on.
type Input struct {
	Sources Sources
	Target  string
}

// Error is a diagnostic, attributed to the file it belongs to when known.
type Error struct {
	File      string
	Severity  string
	Message   string
	Formatted string
}

func (e Error) String() string {
	if e.Formatted != "" {
		return e.Formatted
	}
	if e.File != "" {
		return e.File + ": " + e.Message
	}
	return e.Message
}

type Result struct {
	Success  bool
	Errors   []Error
	Data     json.RawMessage
	Source   Input
	Duration time.Duration
}

// Contract returns the metadata of a compiled contract, or false.
func (r *Result) Contract(file, name string) (metadata string, ok bool) {
	m := gjson.GetBytes(r.Data, contractPath(file, name)+".metadata")
	return m.String(), m.Exists()
}

// MetadataHash returns the swarm hash of the metadata that solc appends to
// the bytecode of a compiled contract.
func (r *Result) MetadataHash(file, name string) (string, bool) {
	return MetadataHash(gjson.GetBytes(r.Data, contractPath(file, name)+".evm.bytecode.object").String())
}

func contractPath(file, name string) string {
	return "contracts." + gjson.Escape(file) + "." + gjson.Escape(name)
}

// bzzr0 CBOR prefix: a1 65 "bzzr0" 58 20
const metadataMarker = "a165627a7a72305820"

// MetadataHash extracts the bzzr0 hash from hex bytecode.
func MetadataHash(bytecode string) (string, bool) {
	i := strings.LastIndex(bytecode, metadataMarker)
	if i < 0 || len(bytecode) < i+len(metadataMarker)+64 {
		return "", false
	}
	start := i + len(metadataMarker)
	return bytecode[start : start+64], true
}

type Compiler struct {
	runner   Runner
	imports  ImportFunc
	logger   *zap.Logger
	optimize bool

	mu   sync.Mutex
	last *Result

	Started  event.Feed[Input]
	Finished event.Feed[*Result]
	Duration event.Feed[time.Duration]
}

func New(runner Runner, imports ImportFunc, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{runner: runner, imports: imports, logger: logger.Named("compiler")}
}

func (c *Compiler) SetOptimize(optimize bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optimize = optimize
}

// LastResult returns the result of the most recent compilation, or nil.
func (c *Compiler) LastResult() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Compile compiles target. Imports missing from sources are fetched through
// the import callback first; if any cannot be resolved the compiler does not
// run and the failures are returned as errors on the importing file.
func (c *Compiler) Compile(ctx context.Context, sources Sources, target string) *Result {
	start := time.Now()
	all := make(Sources, len(sources))
	for k, v := range sources {
		all[k] = v
	}
	c.Started.Publish(Input{Sources: all, Target: target})

	result := &Result{Source: Input{Sources: all, Target: target}}
	result.Errors = c.gatherImports(ctx, all)
	if len(result.Errors) == 0 {
		c.run(ctx, result)
	}
	result.Duration = time.Since(start)

	c.mu.Lock()
	c.last = result
	c.mu.Unlock()

	c.logger.Debug("compilation finished",
		zap.String("target", target),
		zap.Bool("success", result.Success),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration))
	c.Finished.Publish(result)
	c.Duration.Publish(result.Duration)
	return result
}

func (c *Compiler) run(ctx context.Context, result *Result) {
	c.mu.Lock()
	optimize := c.optimize
	c.mu.Unlock()

	input, err := standardInput(result.Source.Sources, optimize)
	if err != nil {
		result.Errors = append(result.Errors, Error{Severity: "error", Message: err.Error()})
		return
	}
	output, err := c.runner.Run(ctx, input)
	if err != nil {
		result.Errors = append(result.Errors, Error{Severity: "error", Message: err.Error()})
		return
	}
	if !gjson.ValidBytes(output) {
		result.Errors = append(result.Errors, Error{Severity: "error", Message: "Invalid JSON output from the compiler"})
		return
	}

	result.Data = output
	result.Success = true
	gjson.GetBytes(output, "errors").ForEach(func(_, e gjson.Result) bool {
		ce := Error{
			File:      e.Get("sourceLocation.file").String(),
			Severity:  e.Get("severity").String(),
			Message:   e.Get("message").String(),
			Formatted: strings.TrimSpace(e.Get("formattedMessage").String()),
		}
		if ce.Severity == "error" {
			result.Success = false
		}
		result.Errors = append(result.Errors, ce)
		return true
	})
}

var importRE = regexp.MustCompile(`(?m)^\s*import\s+(?:[^;"']*?from\s*)?["']([^"']+)["']`)

// Imports lists the import paths of source, resolved against the
// importing file's directory when relative.
func Imports(file, source string) []string {
	var out []string
	for _, m := range importRE.FindAllStringSubmatch(source, -1) {
		out = append(out, resolvePath(file, m[1]))
	}
	return out
}

// resolvePath joins a relative import onto the importing file's directory.
// A scheme prefix such as https:// or bzzr:// is kept out of the join so its
// double slash survives.
func resolvePath(file, imp string) string {
	if !strings.HasPrefix(imp, "./") && !strings.HasPrefix(imp, "../") {
		return imp
	}
	scheme, rest := "", file
	if i := strings.Index(file, "://"); i >= 0 {
		scheme, rest = file[:i+len("://")], file[i+len("://"):]
	}
	return scheme + path.Join(path.Dir(rest), imp)
}

// gatherImports fetches every missing import transitively, adding it to
// sources.
func (c *Compiler) gatherImports(ctx context.Context, sources Sources) []Error {
	var errs []Error
	queue := make([]string, 0, len(sources))
	for name := range sources {
		queue = append(queue, name)
	}
	sort.Strings(queue)

	visited := make(map[string]bool)
	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]
		if visited[file] {
			continue
		}
		visited[file] = true

		for _, imp := range Imports(file, sources[file]) {
			if _, ok := sources[imp]; ok {
				queue = append(queue, imp)
				continue
			}
			if c.imports == nil {
				errs = append(errs, Error{File: file, Severity: "error", Message: fmt.Sprintf("Source %q not found", imp)})
				continue
			}
			content, err := c.imports(ctx, imp)
			if err != nil {
				errs = append(errs, Error{File: file, Severity: "error", Message: err.Error()})
				continue
			}
			sources[imp] = content
			queue = append(queue, imp)
		}
	}
	return errs
}

type jsonSource struct {
	Content string `json:"content"`
}

type jsonSettings struct {
	Optimizer struct {
		Enabled bool `json:"enabled"`
		Runs    int  `json:"runs"`
	} `json:"optimizer"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

func standardInput(sources Sources, optimize bool) ([]byte, error) {
	in := struct {
		Language string                `json:"language"`
		Sources  map[string]jsonSource `json:"sources"`
		Settings jsonSettings          `json:"settings"`
	}{
		Language: "Solidity",
		Sources:  make(map[string]jsonSource, len(sources)),
	}
	for name, content := range sources {
		in.Sources[name] = jsonSource{Content: content}
	}
	in.Settings.Optimizer.Enabled = optimize
	in.Settings.Optimizer.Runs = 200
	in.Settings.OutputSelection = map[string]map[string][]string{
		"*": {"*": {"abi", "metadata", "evm.bytecode", "evm.gasEstimates"}, "": {"ast"}},
	}
	return json.Marshal(in)
}
