package gradeprep

import (
	"errors"
	"io"
	"os"

	"github.com/sokinpui/gradeprep/internal/counter"
	"github.com/sokinpui/gradeprep/internal/csvcodec"
	"github.com/sokinpui/gradeprep/internal/csvtable"
	"github.com/sokinpui/gradeprep/internal/fs"
	"github.com/sokinpui/gradeprep/internal/patcher"
	"github.com/sokinpui/gradeprep/internal/prompt"
	"github.com/sokinpui/gradeprep/internal/ui"
)

// Config for using gradeprep as a library.
type Config struct {
	// Input answers the retry question when a target file is locked.
	// Nil declines every retry.
	Input io.Reader
	// Output receives diagnostics. Nil means stderr.
	Output io.Writer
}

func (c Config) reader() prompt.Reader {
	if c.Input == nil {
		return prompt.NewScripted()
	}
	return prompt.NewConsole(c.Input, c.output())
}

func (c Config) output() io.Writer {
	if c.Output == nil {
		return os.Stderr
	}
	return c.Output
}

func (c Config) writer() fs.Writer {
	return fs.Writer{In: c.reader(), Out: c.output()}
}

// ReorderByColumn stably sorts the data rows of the CSV file at path by the
// 0-based column col. It reports whether the file was rewritten.
func ReorderByColumn(path string, col int, config Config) bool {
	if err := csvtable.ReorderByColumn(path, col, config.writer()); err != nil {
		report(config, err)
		return false
	}
	return true
}

// ReorderByHeader is ReorderByColumn with the column named by its header.
func ReorderByHeader(path, name string, config Config) bool {
	if err := csvtable.ReorderByHeader(path, name, config.writer()); err != nil {
		report(config, err)
		return false
	}
	return true
}

// Patch replaces every line of path starting with prefix by a declaration
// of value. It reports whether the file was rewritten; a missing prefix
// leaves the file untouched.
func Patch(path, prefix, typ, value string, config Config) bool {
	prev := ui.SetOutput(config.output())
	defer ui.SetOutput(prev)

	p := patcher.New(config.reader(), config.output(), nil)
	res, err := p.Set(path, prefix, patcher.FormatLine(prefix, typ, value))
	if err != nil {
		if !errors.Is(err, patcher.ErrNoMatch) {
			ui.Error("%v", err)
		}
		return false
	}
	return res.OK
}

// Escape encodes s for a CSV field: newlines become spaces unless
// keepNewlines is set, curly quotes are straightened and commas become
// placeholder. An empty placeholder selects the default.
func Escape(s, placeholder string, keepNewlines bool) string {
	codec := csvcodec.New(placeholder)
	if keepNewlines {
		return codec.EncodeKeepNewlines(s)
	}
	return codec.Encode(s)
}

// Unescape turns every placeholder in s back into a comma.
func Unescape(s, placeholder string) string {
	return csvcodec.New(placeholder).Decode(s)
}

// IncrementCounter adds by to the counter file at path, creating it at 0
// first if needed, and returns the new value.
func IncrementCounter(path string, by int) (int, error) {
	c, err := counter.Open(path)
	if err != nil {
		return 0, err
	}
	if err := c.Increment(by); err != nil {
		return c.Value(), err
	}
	return c.Value(), nil
}

// SetCounter overwrites the counter file at path with value.
func SetCounter(path string, value int) error {
	c, err := counter.Open(path)
	if err != nil {
		return err
	}
	return c.Set(value)
}

func report(config Config, err error) {
	prev := ui.SetOutput(config.output())
	defer ui.SetOutput(prev)
	ui.Error("%v", err)
}
