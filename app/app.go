// Package app wires the editor, file providers, compiler, execution context
// and remixd connection together and implements the workspace operations
// built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remixgo/remix-shell/compiler"
	"github.com/remixgo/remix-shell/config"
	"github.com/remixgo/remix-shell/editor"
	"github.com/remixgo/remix-shell/event"
	"github.com/remixgo/remix-shell/execution"
	"github.com/remixgo/remix-shell/files"
	"github.com/remixgo/remix-shell/remixd"
	"github.com/remixgo/remix-shell/swarm"
)

var (
	ErrNoCurrentFile = errors.New("no file is open")
	ErrNotCompiled   = errors.New("contract has not been compiled")
	ErrNoSwarm       = errors.New("swarm gateway not configured")
)

// DefaultEditorWindowSize is stored on first start.
const DefaultEditorWindowSize = 400

// Deps are the collaborators of an App. Remixd and Swarm may be nil.
type Deps struct {
	Config    *config.Config
	Settings  config.CompilerSettings
	Files     *files.Registry
	Editor    *editor.Editor
	Compiler  *compiler.Compiler
	Execution *execution.Context
	Remixd    *remixd.Client
	Swarm     *swarm.Client
	Logger    *zap.Logger
}

type App struct {
	config    *config.Config
	settings  config.CompilerSettings
	files     *files.Registry
	editor    *editor.Editor
	compiler  *compiler.Compiler
	execution *execution.Context
	remixd    *remixd.Client
	swarm     *swarm.Client
	logger    *zap.Logger

	// ctx bounds the work started by timers and subscriptions.
	ctx    context.Context
	cancel context.CancelFunc
	unsubs []func()

	saver    *debouncer
	compiles *debouncer

	mu            sync.Mutex
	previousInput string
	autoCompile   bool
	remixdState   remixd.State

	// CurrentFileChanged fires with the file name after SwitchToFile.
	CurrentFileChanged event.Feed[string]
	// Warning fires with the slow compilation warning, or "" to clear it.
	Warning event.Feed[string]
	// Notice fires with one-line remixd connection status messages.
	Notice event.Feed[string]
}

func New(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := deps.Settings
	if settings.SlowCompileAfter <= 0 {
		settings.SlowCompileAfter = time.Second
	}

	a := &App{
		config:      deps.Config,
		settings:    settings,
		files:       deps.Files,
		editor:      deps.Editor,
		compiler:    deps.Compiler,
		execution:   deps.Execution,
		remixd:      deps.Remixd,
		swarm:       deps.Swarm,
		logger:      logger.Named("app"),
		autoCompile: settings.AutoCompile,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	if a.config.Exists(config.KeyAutoCompile) {
		var auto bool
		if _, err := a.config.Get(config.KeyAutoCompile, &auto); err == nil {
			a.autoCompile = auto
		}
	}

	a.saver = newDebouncer(settings.SaveDelay, func() {
		if err := a.EditorSyncFile(a.ctx); err != nil {
			a.logger.Warn("save", zap.Error(err))
		}
	})
	a.compiles = newDebouncer(settings.CompileDelay, func() {
		if _, err := a.RunCompiler(a.ctx); err != nil && !errors.Is(err, ErrNoCurrentFile) {
			a.logger.Warn("compile", zap.Error(err))
		}
	})

	a.subscribe()
	return a
}

func (a *App) subscribe() {
	a.unsubs = append(a.unsubs,
		a.editor.ContentChanged.Subscribe(func(string) { a.onEditorChange() }),
		// so that the file is saved when switching
		a.editor.SessionSwitched.Subscribe(func(string) { a.onEditorChange() }),
		a.compiler.Started.Subscribe(func(compiler.Input) { a.editor.ClearAnnotations() }),
		a.compiler.Finished.Subscribe(a.annotate),
		a.compiler.Duration.Subscribe(a.onDuration),
	)
	if a.execution != nil {
		a.unsubs = append(a.unsubs,
			a.execution.ContextChanged.Subscribe(func(execution.Change) { a.compiles.Call() }),
			a.execution.EndpointChanged.Subscribe(func(execution.Change) { a.compiles.Call() }),
		)
	}
	if a.remixd != nil {
		a.unsubs = append(a.unsubs, a.remixd.StateChanged.Subscribe(a.onRemixdState))
	}
}

// Close saves pending edits and detaches the app from its collaborators.
func (a *App) Close() {
	a.compiles.Cancel()
	a.saver.Flush()
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	a.cancel()
}

func (a *App) CurrentFile() string {
	return a.config.GetString(config.KeyCurrentFile)
}

func (a *App) AutoCompile() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.autoCompile
}

func (a *App) SetAutoCompile(ctx context.Context, auto bool) error {
	a.mu.Lock()
	a.autoCompile = auto
	a.mu.Unlock()
	if !auto {
		a.compiles.Cancel()
	}
	return a.config.Set(ctx, config.KeyAutoCompile, auto)
}

func (a *App) EditorWindowSize() int {
	var size int
	if ok, err := a.config.Get(config.KeyEditorWindowSize, &size); !ok || err != nil {
		return DefaultEditorWindowSize
	}
	return size
}

func (a *App) SetEditorWindowSize(ctx context.Context, size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid editor window size %d", size)
	}
	return a.config.Set(ctx, config.KeyEditorWindowSize, size)
}

// Start seeds the example contract, restores the persisted window size and
// reopens the file that was current when the app last ran.
func (a *App) Start(ctx context.Context) error {
	def := a.files.Default()
	if !def.Exists(ctx, Ballot.Name) {
		if err := def.Set(ctx, Ballot.Name, Ballot.Content); err != nil {
			return fmt.Errorf("seed %s: %w", Ballot.Name, err)
		}
	}

	if !a.config.Exists(config.KeyEditorWindowSize) {
		if err := a.config.Set(ctx, config.KeyEditorWindowSize, DefaultEditorWindowSize); err != nil {
			return err
		}
	}

	if previous := a.CurrentFile(); previous != "" {
		content, err := a.files.ReadFile(ctx, previous)
		if err == nil && content != "" {
			return a.SwitchToFile(ctx, previous)
		}
		a.logger.Debug("previous file unavailable", zap.String("file", previous), zap.Error(err))
	}
	return a.SwitchToNextFile(ctx)
}

// SwitchToFile saves the current buffer and opens file in the editor.
func (a *App) SwitchToFile(ctx context.Context, file string) error {
	if err := a.EditorSyncFile(ctx); err != nil {
		a.logger.Warn("save before switch", zap.Error(err))
	}
	if err := a.config.Set(ctx, config.KeyCurrentFile, file); err != nil {
		return err
	}

	p, _ := a.files.ProviderOf(file)
	content, err := p.Get(ctx, file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	if p.IsReadOnly(file) {
		a.editor.OpenReadOnly(file, content)
	} else {
		a.editor.Open(file, content)
	}
	a.logger.Debug("switched file", zap.String("file", file))
	a.CurrentFileChanged.Publish(file)
	return nil
}

// SwitchToNextFile opens the first file of the default provider, if any.
func (a *App) SwitchToNextFile(ctx context.Context) error {
	list, err := a.files.Default().List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	return a.SwitchToFile(ctx, list[0])
}

// LoadFiles adds files to the default provider without overwriting any that
// already exist, then switches to the next file.
func (a *App) LoadFiles(ctx context.Context, contents map[string]string) ([]string, error) {
	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	sort.Strings(names)

	def := a.files.Default()
	added := make([]string, 0, len(names))
	for _, name := range names {
		target := files.NonClashingName(ctx, def, name)
		if err := def.Set(ctx, target, contents[name]); err != nil {
			return added, fmt.Errorf("load %s: %w", name, err)
		}
		added = append(added, target)
	}
	return added, a.SwitchToNextFile(ctx)
}

// EditorSyncFile writes the editor buffer of the current file back to its
// provider.
func (a *App) EditorSyncFile(ctx context.Context) error {
	current := a.CurrentFile()
	if current == "" || a.editor.Current() == "" || a.editor.IsReadOnly(current) {
		return nil
	}
	input, ok := a.editor.Get(current)
	if !ok {
		return nil
	}
	p, _ := a.files.ProviderOf(current)
	return p.Set(ctx, current, input)
}

// RunCompiler saves and compiles the current file.
func (a *App) RunCompiler(ctx context.Context) (*compiler.Result, error) {
	if err := a.EditorSyncFile(ctx); err != nil {
		a.logger.Warn("save before compile", zap.Error(err))
	}
	current := a.CurrentFile()
	if current == "" {
		return nil, ErrNoCurrentFile
	}
	content, err := a.files.ReadFile(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("cannot compile %s: %w", current, err)
	}
	return a.compiler.Compile(ctx, compiler.Sources{current: content}, current), nil
}

func (a *App) onEditorChange() {
	current := a.CurrentFile()
	if current == "" {
		return
	}
	input, ok := a.editor.Get(current)
	if !ok {
		return
	}

	a.mu.Lock()
	if input == a.previousInput {
		a.mu.Unlock()
		return
	}
	a.previousInput = input
	auto := a.autoCompile
	a.mu.Unlock()

	a.saver.Call()
	if input == "" || !auto {
		return
	}
	a.compiles.Call()
}

var locationRE = regexp.MustCompile(`^([^:]*):(\d+):(\d+):`)

func (a *App) annotate(result *compiler.Result) {
	current := a.CurrentFile()
	for _, e := range result.Errors {
		file, row, col := e.File, 0, 0
		if m := locationRE.FindStringSubmatch(e.Formatted); m != nil {
			file = m[1]
			row, _ = strconv.Atoi(m[2])
			col, _ = strconv.Atoi(m[3])
		}
		if file != current {
			continue
		}
		kind := "error"
		if strings.EqualFold(e.Severity, "warning") {
			kind = "warning"
		}
		a.editor.AddAnnotation(editor.Annotation{
			Row:    max(row-1, 0),
			Column: max(col-1, 0),
			Text:   e.String(),
			Type:   kind,
		})
	}
}

func (a *App) onDuration(d time.Duration) {
	if d > a.settings.SlowCompileAfter {
		a.Warning.Publish(fmt.Sprintf("Last compilation took %dms. We suggest to turn off autocompilation.", d.Milliseconds()))
		return
	}
	a.Warning.Publish("")
}

func (a *App) onRemixdState(change remixd.StateChange) {
	a.mu.Lock()
	previous := a.remixdState
	a.remixdState = change.State
	a.mu.Unlock()

	var notice string
	switch change.State {
	case remixd.Connecting:
		notice = "Connecting to Remixd..."
	case remixd.Connected:
		notice = "Connected to Remixd."
	case remixd.Errored:
		notice = "Connection to Remixd closed. Localhost connection not available anymore."
	case remixd.Disconnected:
		if previous == remixd.Errored {
			return
		}
		notice = "Disconnected from Remixd."
	}
	if change.Err != nil {
		a.logger.Info("remixd", zap.Stringer("state", change.State), zap.Error(change.Err))
	}
	a.Notice.Publish(notice)
}

// PublishContract uploads the metadata of a compiled contract and its
// sources to Swarm. The returned message is meant for the user.
func (a *App) PublishContract(ctx context.Context, file, name string) (string, error) {
	err := a.publish(ctx, file, name)
	if err != nil {
		a.logger.Warn("publish", zap.String("contract", name), zap.Error(err))
		return "Failed to publish metadata: " + err.Error(), err
	}
	return "Metadata published successfully", nil
}

func (a *App) publish(ctx context.Context, file, name string) error {
	if a.swarm == nil {
		return ErrNoSwarm
	}
	result := a.compiler.LastResult()
	if result == nil || !result.Success {
		return ErrNotCompiled
	}
	metadata, ok := result.Contract(file, name)
	if !ok {
		return fmt.Errorf("%s:%s: %w", file, name, ErrNotCompiled)
	}
	hash, ok := result.MetadataHash(file, name)
	if !ok {
		return swarm.ErrNoMetadata
	}
	return a.swarm.PublishMetadata(ctx, swarm.Contract{Metadata: metadata, MetadataHash: hash}, a.files)
}
