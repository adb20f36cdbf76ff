package gradeprep_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sokinpui/gradeprep/cli"
	"github.com/sokinpui/gradeprep/gradeprep"
	"github.com/sokinpui/gradeprep/internal/config"
	"github.com/sokinpui/gradeprep/internal/menu"
	"github.com/sokinpui/gradeprep/internal/prompt"
	"github.com/sokinpui/gradeprep/internal/ui"
	"github.com/sokinpui/gradeprep/model"
)

const presets = `class Presets:
    GOOGLE_FORM_ID: str = "old"
    GOOGLE_SPREADSHEET_ID: str = "sheet"
    AI_MODEL: str = "model"
`

type env struct {
	t          *testing.T
	dir        string
	configPath string
	conf       *config.Config
	out        bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	conf := config.DefaultConfig()
	conf.PresetsFile = filepath.Join(dir, "presets.py")
	conf.CounterFile = filepath.Join(dir, "counter")
	conf.TokenFile = filepath.Join(dir, "secret", "token")
	conf.StateDir = filepath.Join(dir, "state")
	conf.Logging.Disable = true

	e := &env{t: t, dir: dir, configPath: filepath.Join(dir, "gradeprep.yaml"), conf: conf}
	e.saveConfig()
	require.NoError(t, os.WriteFile(conf.PresetsFile, []byte(presets), 0o644))

	prev := ui.SetOutput(&e.out)
	t.Cleanup(func() { ui.SetOutput(prev) })
	return e
}

func (e *env) saveConfig() {
	e.t.Helper()
	require.NoError(e.t, e.conf.Save(e.configPath))
}

type fakeSource struct{ content string }

func (f fakeSource) GetContent() (string, error) { return f.content, nil }

func (e *env) app(cfg *cli.Config, opts ...gradeprep.Option) *gradeprep.App {
	e.t.Helper()
	cfg.ConfigPath = e.configPath
	opts = append([]gradeprep.Option{
		gradeprep.WithOutput(&e.out),
		gradeprep.WithLogger(zaptest.NewLogger(e.t)),
		gradeprep.WithInput(prompt.NewScripted()),
	}, opts...)
	app, err := gradeprep.New(cfg, opts...)
	require.NoError(e.t, err)
	return app
}

func (e *env) run(cfg *cli.Config, input ...string) (model.Summary, string, error) {
	e.t.Helper()
	var stdout bytes.Buffer
	app := e.app(cfg, gradeprep.WithInput(prompt.NewScripted(input...)), gradeprep.WithStdout(&stdout))
	summary, err := app.Execute()
	return summary, stdout.String(), err
}

func (e *env) read(path string) string {
	e.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(e.t, err)
	return string(data)
}

func TestUpdateFormFromMenu(t *testing.T) {
	e := newEnv(t)
	summary, _, err := e.run(&cli.Config{}, "1", "https://docs.google.com/forms/d/e/1FAIpQLSe_x-9/viewform")
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Len(t, summary.Updated, 1)

	want := strings.Replace(presets, `GOOGLE_FORM_ID: str = "old"`, `GOOGLE_FORM_ID: str = "1FAIpQLSe_x-9"`, 1)
	assert.Equal(t, want, e.read(e.conf.PresetsFile))
}

func TestPatchOutcomeUsesAppOutput(t *testing.T) {
	e := newEnv(t)
	var own bytes.Buffer
	app := e.app(&cli.Config{}, gradeprep.WithOutput(&own), gradeprep.WithInput(prompt.NewScripted("1", "new")))
	_, err := app.Execute()
	require.NoError(t, err)

	assert.Contains(t, own.String(), "Updated update_form in")
	assert.NotContains(t, e.out.String(), "Updated update_form")
}

func TestUpdateByLabelAfterInvalidInput(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(&cli.Config{}, "9", "nope", "UPDATE_SHEET", "https://docs.google.com/spreadsheets/d/abc/edit")
	require.NoError(t, err)

	assert.Contains(t, e.out.String(), "Could not select. ERROR: '9 is too large, expected 1 - 3'")
	assert.Contains(t, e.out.String(), `"nope" is not a member of the list`)
	assert.Contains(t, e.read(e.conf.PresetsFile), `    GOOGLE_SPREADSHEET_ID: str = "abc"`+"\n")
}

func TestMenuOrder(t *testing.T) {
	e := newEnv(t)
	m, err := e.app(&cli.Config{}).Menu()
	require.NoError(t, err)
	assert.Equal(t, []string{"update_form", "update_sheet", gradeprep.TokenLabel}, m.Labels())

	m, err = e.app(&cli.Config{ShowAll: true}).Menu()
	require.NoError(t, err)
	assert.Equal(t, len(e.conf.Settings)+1, m.Len())
	assert.Equal(t, gradeprep.TokenLabel, m.Labels()[2])
}

func TestSecondEntryIsToken(t *testing.T) {
	e := newEnv(t)
	e.conf.Settings = e.conf.Settings[:1]
	e.saveConfig()
	t.Setenv(e.conf.TokenEnv, "")

	m, err := e.app(&cli.Config{}).Menu()
	require.NoError(t, err)
	entry, err := menu.Select(m, prompt.NewScripted("2"), &e.out)
	require.NoError(t, err)
	assert.Equal(t, gradeprep.TokenLabel, entry.Label)
	assert.Equal(t, menu.TokenAction{}, entry.Action)

	summary, _, err := e.run(&cli.Config{}, "2", "  r8_secret ")
	require.NoError(t, err)
	assert.Equal(t, []string{e.conf.TokenFile}, summary.Updated)
	assert.Equal(t, "r8_secret\n", e.read(e.conf.TokenFile))
	assert.Equal(t, "r8_secret", os.Getenv(e.conf.TokenEnv))
	assert.Equal(t, presets, e.read(e.conf.PresetsFile))

	info, err := os.Stat(e.conf.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTokenFromArgument(t *testing.T) {
	e := newEnv(t)
	t.Setenv(e.conf.TokenEnv, "")
	_, _, err := e.run(&cli.Config{Command: "token", Args: []string{"abc"}})
	require.NoError(t, err)
	assert.Equal(t, "abc\n", e.read(e.conf.TokenFile))
}

func TestPatchMissingPrefixLeavesFile(t *testing.T) {
	e := newEnv(t)
	e.conf.Settings = []config.Setting{{Name: "update_x", Prefix: "    MISSING", Prompt: "x: "}}
	e.saveConfig()

	summary, _, err := e.run(&cli.Config{}, "1", "value")
	require.NoError(t, err)
	assert.False(t, summary.OK())
	assert.Equal(t, presets, e.read(e.conf.PresetsFile))
	assert.Contains(t, e.out.String(), "Could not find 'MISSING'")
}

func TestUndoRedo(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(&cli.Config{}, "1", "new")
	require.NoError(t, err)
	patched := e.read(e.conf.PresetsFile)
	require.Contains(t, patched, `GOOGLE_FORM_ID: str = "new"`)

	summary, _, err := e.run(&cli.Config{Undo: true})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, presets, e.read(e.conf.PresetsFile))

	summary, _, err = e.run(&cli.Config{Redo: true})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, patched, e.read(e.conf.PresetsFile))

	summary, _, err = e.run(&cli.Config{Redo: true})
	require.NoError(t, err)
	assert.Equal(t, "No operation to redo.", summary.Message)
}

func TestUndoRefusesExternalEdit(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(&cli.Config{}, "1", "new")
	require.NoError(t, err)

	patched := e.read(e.conf.PresetsFile)
	edited := patched + "# edited\n"
	require.NoError(t, os.WriteFile(e.conf.PresetsFile, []byte(edited), 0o644))

	summary, _, err := e.run(&cli.Config{Undo: true})
	require.NoError(t, err)
	assert.False(t, summary.OK())
	assert.Equal(t, edited, e.read(e.conf.PresetsFile))
	assert.Contains(t, e.out.String(), "refusing to undo")

	summary, _, err = e.run(&cli.Config{Redo: true})
	require.NoError(t, err)
	assert.Equal(t, "No operation to redo.", summary.Message, "a refused undo is not undone")

	// Reverting the external edit makes the same entry undoable again.
	require.NoError(t, os.WriteFile(e.conf.PresetsFile, []byte(patched), 0o644))
	summary, _, err = e.run(&cli.Config{Undo: true})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, presets, e.read(e.conf.PresetsFile))
}

func TestUndoWithoutHistory(t *testing.T) {
	e := newEnv(t)
	summary, _, err := e.run(&cli.Config{Undo: true})
	require.NoError(t, err)
	assert.Equal(t, "No operation to undo.", summary.Message)
}

func TestReorder(t *testing.T) {
	e := newEnv(t)
	a := filepath.Join(e.dir, "a.csv")
	b := filepath.Join(e.dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("name,score\nzed,1\namy,2\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("other\nx\n"), 0o644))

	var progress [][2]int
	app := e.app(&cli.Config{Command: "reorder", Index: -1, Header: "name", Args: []string{a, b}})
	app.SetProgressCallback(func(current, total int) {
		progress = append(progress, [2]int{current, total})
	})
	summary, err := app.Execute()
	require.NoError(t, err)

	assert.Len(t, summary.Updated, 1)
	assert.Len(t, summary.Failed, 1)
	assert.Equal(t, "name,score\namy,2\nzed,1\n", e.read(a))
	assert.Equal(t, "other\nx\n", e.read(b))
	assert.Contains(t, e.out.String(), "[other]")
	assert.Equal(t, [][2]int{{0, 2}, {1, 2}, {2, 2}}, progress)
}

func TestReorderNeedsColumn(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(&cli.Config{Command: "reorder", Index: -1, Args: []string{"x.csv"}})
	assert.Error(t, err)
	_, _, err = e.run(&cli.Config{Command: "reorder", Index: 0, Header: "h", Args: []string{"x.csv"}})
	assert.Error(t, err)
}

func TestEscapeAndCopy(t *testing.T) {
	e := newEnv(t)
	var copied string
	var stdout bytes.Buffer
	app := e.app(&cli.Config{Command: "escape", Copy: true},
		gradeprep.WithSource(fakeSource{"“Hi”, it’s\nme\n"}),
		gradeprep.WithStdout(&stdout),
		gradeprep.WithClipboard(func(s string) error { copied = s; return nil }),
	)
	_, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, `"Hi"<INSERT_COMMA> it's me`+"\n", stdout.String())
	assert.Equal(t, `"Hi"<INSERT_COMMA> it's me`, copied)
}

func TestEscapeKeepNewlinesAndUnescape(t *testing.T) {
	e := newEnv(t)
	e.conf.CommaPlaceholder = "<C>"
	e.saveConfig()

	var stdout bytes.Buffer
	app := e.app(&cli.Config{Command: "escape", KeepNewlines: true},
		gradeprep.WithSource(fakeSource{"a,b\nc"}), gradeprep.WithStdout(&stdout))
	_, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, "a<C>b\nc\n", stdout.String())

	stdout.Reset()
	app = e.app(&cli.Config{Command: "unescape"},
		gradeprep.WithSource(fakeSource{"a<C>b<C>c\n"}), gradeprep.WithStdout(&stdout))
	_, err = app.Execute()
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n", stdout.String())
}

func TestEscapeEmptySource(t *testing.T) {
	e := newEnv(t)
	app := e.app(&cli.Config{Command: "escape"}, gradeprep.WithSource(fakeSource{""}))
	summary, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, "Source is empty. Nothing to process.", summary.Message)
}

func TestCopyFailure(t *testing.T) {
	e := newEnv(t)
	app := e.app(&cli.Config{Command: "unescape", Copy: true},
		gradeprep.WithSource(fakeSource{"x"}),
		gradeprep.WithStdout(&bytes.Buffer{}),
		gradeprep.WithClipboard(func(string) error { return errors.New("no clipboard") }),
	)
	_, err := app.Execute()
	assert.EqualError(t, err, "no clipboard")
}

func TestAddendum(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(e.dir, "addendum.txt")
	dst := filepath.Join(e.dir, "rubric.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,1\nb\nc\n"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("h1,h2\n"), 0o644))

	summary, _, err := e.run(&cli.Config{Command: "addendum", Width: 2, Args: []string{src, dst}})
	require.NoError(t, err)
	assert.Equal(t, "Appended 2 row(s).", summary.Message)
	assert.Equal(t, "h1,h2\na<INSERT_COMMA>1,b\nc\n", e.read(dst))
}

func TestCounterCommand(t *testing.T) {
	e := newEnv(t)
	steps := []struct {
		args []string
		want string
	}{
		{nil, "0\n"},
		{[]string{"inc", "5"}, "5\n"},
		{[]string{"inc", "3"}, "8\n"},
		{[]string{"inc"}, "9\n"},
		{[]string{"set", "0"}, "0\n"},
	}
	for _, step := range steps {
		_, stdout, err := e.run(&cli.Config{Command: "counter", Args: step.args})
		require.NoError(t, err, step.args)
		assert.Equal(t, step.want, stdout, step.args)
	}
	assert.Equal(t, "0", strings.TrimSpace(e.read(e.conf.CounterFile)))

	_, _, err := e.run(&cli.Config{Command: "counter", Args: []string{"set", "-1"}})
	assert.Error(t, err)
	_, _, err = e.run(&cli.Config{Command: "counter", Args: []string{"reset"}})
	assert.Error(t, err)
}

func TestVolatility(t *testing.T) {
	e := newEnv(t)
	_, stdout, err := e.run(&cli.Config{Command: "volatility", Min: 0, Max: 10, Args: []string{"0", "10"}})
	require.NoError(t, err)
	assert.Equal(t, "Volatility: 100.00% (HIGHLY VOLATILE)\n", stdout)

	_, _, err = e.run(&cli.Config{Command: "volatility", Min: 0, Max: 10, Args: []string{"11"}})
	assert.Error(t, err)
}

func TestInitWritesDefaultConfig(t *testing.T) {
	e := newEnv(t)
	t.Chdir(e.dir)
	require.NoError(t, os.Remove(e.configPath))

	app := e.app(&cli.Config{Command: "init"})
	summary, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{e.configPath}, summary.Updated)

	loaded, err := config.Load(e.configPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	summary, err = app.Execute()
	require.NoError(t, err)
	assert.Contains(t, summary.Message, "already exists")
}
