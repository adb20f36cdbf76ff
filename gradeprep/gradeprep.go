package gradeprep

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/gradeprep/cli"
	"github.com/sokinpui/gradeprep/internal/config"
	"github.com/sokinpui/gradeprep/internal/counter"
	"github.com/sokinpui/gradeprep/internal/csvcodec"
	"github.com/sokinpui/gradeprep/internal/csvtable"
	"github.com/sokinpui/gradeprep/internal/fs"
	"github.com/sokinpui/gradeprep/internal/logging"
	"github.com/sokinpui/gradeprep/internal/menu"
	"github.com/sokinpui/gradeprep/internal/patcher"
	"github.com/sokinpui/gradeprep/internal/prompt"
	"github.com/sokinpui/gradeprep/internal/score"
	"github.com/sokinpui/gradeprep/internal/source"
	"github.com/sokinpui/gradeprep/internal/state"
	"github.com/sokinpui/gradeprep/internal/ui"
	"github.com/sokinpui/gradeprep/model"
)

// TokenLabel is the menu entry that stores a new API token.
const TokenLabel = "update_token"

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// Source provides the text for escape and unescape.
type Source interface {
	GetContent() (string, error)
}

// App orchestrates the entire application logic.
type App struct {
	cfg  *cli.Config
	conf *config.Config
	log  *zap.Logger

	in       prompt.Reader
	secretIn prompt.Reader
	out      io.Writer
	stdout   io.Writer

	pathResolver     *fs.PathResolver
	stateManager     *state.Manager
	source           Source
	clip             func(string) error
	codec            csvcodec.Codec
	progressCallback ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// Option customizes an App.
type Option func(*App)

// WithInput replaces the console as the source of answers to prompts.
func WithInput(in prompt.Reader) Option {
	return func(a *App) {
		a.in = in
		a.secretIn = in
	}
}

// WithOutput sends prompts and diagnostics to w.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithStdout sends command results (escaped text, counter values) to w.
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// WithLogger uses l instead of the file logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithSource replaces stdin/clipboard as the escape and unescape input.
func WithSource(s Source) Option {
	return func(a *App) { a.source = s }
}

// WithClipboard replaces the system clipboard writer used by --copy.
func WithClipboard(write func(string) error) Option {
	return func(a *App) { a.clip = write }
}

// New creates a new App instance. The YAML config named by cfg.ConfigPath
// is loaded on top of the built-in defaults.
func New(cfg *cli.Config, opts ...Option) (*App, error) {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:          cfg,
		conf:         conf,
		out:          ui.Output(),
		stdout:       os.Stdout,
		pathResolver: fs.NewPathResolver(cfg.LookupDirs),
		source:       source.New(),
		clip:         source.CopyToClipboard,
		codec:        csvcodec.New(conf.CommaPlaceholder),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.in == nil {
		console := prompt.NewConsole(os.Stdin, a.out)
		a.in = console
		a.secretIn = prompt.NewSecret(console, a.out)
	}
	if a.log == nil {
		if conf.Logging.Disable {
			a.log = zap.NewNop()
		} else if a.log, err = logging.New(conf.StateDir, conf.Logging.Level, cfg.Verbose); err != nil {
			return nil, err
		}
	}

	a.stateManager, err = state.New(conf.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	return a, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// SetInput replaces the source of answers to prompts. The TUI uses it to
// make lock retries decline instead of reading a terminal it owns.
func (a *App) SetInput(in prompt.Reader) {
	a.in = in
	a.secretIn = in
}

// Close flushes the logger.
func (a *App) Close() error {
	_ = a.log.Sync()
	return nil
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute() (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Recovered panic", zap.Any("panic", r))
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	a.log.Debug("Executing command", zap.String("command", a.cfg.Command), zap.Strings("args", a.cfg.Args))
	switch {
	case a.cfg.Undo:
		return a.undoLastOperation()
	case a.cfg.Redo:
		return a.redoLastOperation()
	}

	switch a.cfg.Command {
	case "", "update":
		return a.update()
	case "token":
		return a.updateToken(a.cfg.Args)
	case "reorder":
		return a.reorder(a.cfg.Args)
	case "escape":
		return a.convert(true)
	case "unescape":
		return a.convert(false)
	case "addendum":
		return a.addendum(a.cfg.Args)
	case "counter":
		return a.counter(a.cfg.Args)
	case "volatility":
		return a.volatility(a.cfg.Args)
	case "init":
		return a.writeDefaultConfig()
	default:
		return model.Summary{}, fmt.Errorf("unknown command %q", a.cfg.Command)
	}
}

// Menu builds the update menu: the visible settings followed by the token
// entry, then the private settings when --show-all is set.
func (a *App) Menu() (menu.Menu, error) {
	var public, private []menu.Entry
	for _, s := range a.conf.VisibleSettings(a.cfg.ShowAll) {
		e := menu.Entry{Label: s.Name, Action: menu.PatchAction{Rule: s.Rule()}}
		if s.Private {
			private = append(private, e)
		} else {
			public = append(public, e)
		}
	}
	entries := append(public, menu.Entry{Label: TokenLabel, Action: menu.TokenAction{}})
	return menu.New(append(entries, private...)...)
}

// update lets the user pick a setting and runs it.
func (a *App) update() (model.Summary, error) {
	m, err := a.Menu()
	if err != nil {
		return model.Summary{}, err
	}
	entry, err := menu.Select(m, a.in, a.out)
	if err != nil {
		return model.Summary{}, err
	}
	a.log.Info("Menu selection", zap.String("label", entry.Label))

	switch action := entry.Action.(type) {
	case menu.PatchAction:
		return a.patch(action.Rule)
	case menu.TokenAction:
		return a.updateToken(nil)
	default:
		return model.Summary{}, fmt.Errorf("unsupported menu action %T", action)
	}
}

func (a *App) presetsPath() string {
	return a.pathResolver.Resolve(a.conf.PresetsFile)
}

// patch applies one rule to the presets file and records it for undo.
func (a *App) patch(rule patcher.Rule) (model.Summary, error) {
	path := a.presetsPath()
	res, err := patcher.New(a.in, a.out, a.log).Apply(path, rule)
	if err != nil {
		return model.Summary{}, err
	}
	if !res.OK {
		summary := model.Summary{Failed: []string{path}}
		a.relativizeSummaryPaths(&summary)
		return summary, nil
	}

	ops := state.CreateOperations(path, res.Prefix, res.NewLine, res.OldLines)
	if err := a.stateManager.Write(ops); err != nil {
		// The file is already patched; only undo is lost.
		a.log.Warn("Failed to record history", zap.Error(err))
		ui.Warning("Could not record this change for --undo: %v", err)
	}
	summary := model.Summary{Updated: []string{path}}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// updateToken stores a new API token in the token file and exports it for
// child processes.
func (a *App) updateToken(args []string) (model.Summary, error) {
	var token string
	if len(args) > 0 {
		token = args[0]
	} else {
		v, err := a.secretIn.ReadLine("Enter your API token: ")
		if err != nil {
			return model.Summary{}, fmt.Errorf("failed to read token: %w", err)
		}
		token = v
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Summary{Message: "Token is empty. Nothing to update."}, nil
	}

	path := a.conf.TokenFile
	// Create the file private first; atomic writes keep the existing mode.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return model.Summary{}, fmt.Errorf("failed to create token directory: %w", err)
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return model.Summary{}, fmt.Errorf("failed to create token file: %w", err)
		}
	}

	w := fs.Writer{In: a.in, Out: a.out}
	if err := w.WriteFile(path, []byte(token+"\n")); err != nil {
		if errors.Is(err, fs.ErrAbandoned) {
			return model.Summary{Failed: []string{path}}, nil
		}
		return model.Summary{}, err
	}
	if err := os.Setenv(a.conf.TokenEnv, token); err != nil {
		return model.Summary{}, fmt.Errorf("failed to export %s: %w", a.conf.TokenEnv, err)
	}
	a.log.Info("Token updated", zap.String("path", path), zap.String("env", a.conf.TokenEnv))
	ui.Success("Token updated successfully")
	return model.Summary{Updated: []string{path}}, nil
}

// reorder sorts each CSV file by the column chosen with --index or --header.
func (a *App) reorder(files []string) (model.Summary, error) {
	if len(files) == 0 {
		return model.Summary{}, errors.New("reorder needs at least one CSV file")
	}
	byHeader := a.cfg.Header != ""
	if !byHeader && a.cfg.Index < 0 {
		return model.Summary{}, errors.New("reorder needs --index or --header")
	}
	if byHeader && a.cfg.Index >= 0 {
		return model.Summary{}, errors.New("--index and --header are mutually exclusive")
	}

	w := fs.Writer{In: a.in, Out: a.out}
	summary := model.Summary{}
	total := len(files)
	if a.progressCallback != nil {
		a.progressCallback(0, total)
	}
	for i, file := range files {
		path := a.pathResolver.ResolveExisting(file)
		if path == "" {
			path = a.pathResolver.Resolve(file)
		}

		var err error
		if byHeader {
			err = csvtable.ReorderByHeader(path, a.cfg.Header, w)
		} else {
			err = csvtable.ReorderByColumn(path, a.cfg.Index, w)
		}
		if err != nil {
			a.log.Warn("Reorder failed", zap.String("path", path), zap.Error(err))
			if !errors.Is(err, fs.ErrAbandoned) {
				ui.Error("%v", err)
			}
			summary.Failed = append(summary.Failed, path)
		} else {
			a.log.Info("Reordered CSV", zap.String("path", path))
			summary.Updated = append(summary.Updated, path)
		}
		if a.progressCallback != nil {
			a.progressCallback(i+1, total)
		}
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// convert escapes or unescapes commas in text from stdin or the clipboard.
func (a *App) convert(escape bool) (model.Summary, error) {
	content, err := a.source.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if content == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	content = strings.TrimSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\r")
	var result string
	switch {
	case !escape:
		result = a.codec.Decode(content)
	case a.cfg.KeepNewlines:
		result = a.codec.EncodeKeepNewlines(content)
	default:
		result = a.codec.Encode(content)
	}
	fmt.Fprintln(a.stdout, result)

	if a.cfg.Copy {
		if err := a.clip(result); err != nil {
			return model.Summary{}, err
		}
		ui.Success("Copied to clipboard")
	}
	return model.Summary{}, nil
}

// addendum appends grouped addendum lines to the rubric CSV.
func (a *App) addendum(args []string) (model.Summary, error) {
	if len(args) != 2 {
		return model.Summary{}, errors.New("usage: addendum <addendum.txt> <rubric.csv>")
	}
	src := a.pathResolver.Resolve(args[0])
	dst := a.pathResolver.Resolve(args[1])

	w := fs.Writer{In: a.in, Out: a.out}
	rows, err := csvtable.AppendGrouped(src, dst, a.cfg.Width, a.codec, w)
	if err != nil {
		if errors.Is(err, fs.ErrAbandoned) {
			summary := model.Summary{Failed: []string{dst}}
			a.relativizeSummaryPaths(&summary)
			return summary, nil
		}
		return model.Summary{}, err
	}
	a.log.Info("Appended addendum", zap.String("src", src), zap.String("dst", dst), zap.Int("rows", rows))
	if rows == 0 {
		return model.Summary{Message: "Addendum is empty. Nothing to append."}, nil
	}
	summary := model.Summary{
		Updated: []string{dst},
		Message: fmt.Sprintf("Appended %d row(s).", rows),
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// counter shows or changes the work counter.
func (a *App) counter(args []string) (model.Summary, error) {
	c, err := counter.Open(a.conf.CounterFile)
	if err != nil {
		return model.Summary{}, err
	}

	op := "show"
	if len(args) > 0 {
		op = args[0]
	}
	switch op {
	case "show":
		if len(args) > 1 {
			return model.Summary{}, errors.New("usage: counter show")
		}
	case "inc", "set":
		n := 1
		if len(args) > 2 || (op == "set" && len(args) != 2) {
			return model.Summary{}, fmt.Errorf("usage: counter %s N", op)
		}
		if len(args) == 2 {
			if n, err = strconv.Atoi(args[1]); err != nil {
				return model.Summary{}, fmt.Errorf("invalid counter value %q: %w", args[1], err)
			}
		}
		if op == "inc" {
			err = c.Increment(n)
		} else {
			err = c.Set(n)
		}
		if err != nil {
			return model.Summary{}, err
		}
		a.log.Info("Counter changed", zap.String("op", op), zap.Int("value", c.Value()))
	default:
		return model.Summary{}, fmt.Errorf("unknown counter operation %q", op)
	}

	fmt.Fprintln(a.stdout, c.Value())
	return model.Summary{}, nil
}

// volatility rates how consistently a set of scores agree.
func (a *App) volatility(args []string) (model.Summary, error) {
	if len(args) == 0 {
		return model.Summary{}, errors.New("volatility needs at least one score")
	}
	scores := make([]int, 0, len(args))
	for _, arg := range args {
		s, err := strconv.Atoi(arg)
		if err != nil {
			return model.Summary{}, fmt.Errorf("invalid score %q: %w", arg, err)
		}
		if s < a.cfg.Min || s > a.cfg.Max {
			return model.Summary{}, fmt.Errorf("score %d is outside %d - %d", s, a.cfg.Min, a.cfg.Max)
		}
		scores = append(scores, s)
	}

	v, err := score.Volatility(scores, a.cfg.Min, a.cfg.Max, 2)
	if err != nil {
		return model.Summary{}, err
	}
	fmt.Fprintf(a.stdout, "Volatility: %.2f%% (%s)\n", v, score.Classify(v))
	return model.Summary{}, nil
}

// writeDefaultConfig writes the built-in configuration unless the file
// already exists.
func (a *App) writeDefaultConfig() (model.Summary, error) {
	path := a.cfg.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		return model.Summary{Message: fmt.Sprintf("%s already exists. Nothing to do.", path)}, nil
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return model.Summary{}, err
	}
	return model.Summary{Updated: []string{path}}, nil
}

// historyGroup gathers the operations that patched one prefix of one file.
type historyGroup struct {
	path     string
	prefix   string
	newLine  string
	hash     string
	oldLines []string
}

func groupOperations(ops []state.Operation) []*historyGroup {
	var groups []*historyGroup
	index := make(map[string]*historyGroup)
	for _, op := range ops {
		key := op.Path + "\x00" + op.Prefix
		g, ok := index[key]
		if !ok {
			g = &historyGroup{path: op.Path, prefix: op.Prefix, newLine: op.NewLine, hash: op.ContentHash}
			index[key] = g
			groups = append(groups, g)
		}
		g.oldLines = append(g.oldLines, op.OldLine)
	}
	return groups
}

// undoLastOperation handles the undo logic.
func (a *App) undoLastOperation() (model.Summary, error) {
	ops := a.stateManager.GetOperationsToUndo()
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	p := patcher.New(a.in, a.out, a.log)
	summary := model.Summary{Message: "Undid last operation."}
	for _, g := range groupOperations(ops) {
		hash, err := fs.FileSHA256(g.path)
		if err != nil || hash != g.hash {
			ui.ErrorTo(a.out, "'%s' changed since the last update, refusing to undo", g.path)
			a.log.Warn("Undo skipped, content hash mismatch", zap.String("path", g.path))
			summary.Failed = append(summary.Failed, g.path)
			continue
		}
		ok, err := p.Restore(g.path, g.prefix, g.oldLines)
		if err != nil || !ok {
			if err != nil {
				ui.ErrorTo(a.out, "%v", err)
			}
			summary.Failed = append(summary.Failed, g.path)
			continue
		}
		summary.Updated = append(summary.Updated, g.path)
	}
	// A refused or failed entry stays current so it can be retried.
	if len(summary.Failed) == 0 {
		if err := a.stateManager.CommitUndo(); err != nil {
			return model.Summary{}, err
		}
	} else {
		summary.Message = "Undo incomplete, the operation stays in history."
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// redoLastOperation handles the redo logic.
func (a *App) redoLastOperation() (model.Summary, error) {
	ops := a.stateManager.GetOperationsToRedo()
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to redo."}, nil
	}

	p := patcher.New(a.in, a.out, a.log)
	summary := model.Summary{Message: "Redid last undone operation."}
	for _, g := range groupOperations(ops) {
		current, err := patcher.MatchingLines(g.path, g.prefix)
		if err != nil || !equalLines(current, g.oldLines) {
			ui.ErrorTo(a.out, "'%s' changed since the last undo, refusing to redo", g.path)
			a.log.Warn("Redo skipped, lines differ", zap.String("path", g.path))
			summary.Failed = append(summary.Failed, g.path)
			continue
		}
		res, err := p.Set(g.path, g.prefix, g.newLine)
		if err != nil || !res.OK {
			if err != nil {
				ui.ErrorTo(a.out, "%v", err)
			}
			summary.Failed = append(summary.Failed, g.path)
			continue
		}
		summary.Updated = append(summary.Updated, g.path)
	}
	if len(summary.Failed) == 0 {
		if err := a.stateManager.CommitRedo(); err != nil {
			return model.Summary{}, err
		}
	} else {
		summary.Message = "Redo incomplete, the operation stays undone."
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	makeRelative := func(paths []string) []string {
		rel := make([]string, len(paths))
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				rel[i] = p
				continue
			}
			r, err := filepath.Rel(wd, p)
			if err != nil {
				rel[i] = p
			} else {
				rel[i] = r
			}
		}
		return rel
	}

	summary.Updated = makeRelative(summary.Updated)
	summary.Failed = makeRelative(summary.Failed)
}
