package patcher

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/gradeprep/internal/fs"
	"github.com/sokinpui/gradeprep/internal/logging"
	"github.com/sokinpui/gradeprep/internal/prompt"
	"github.com/sokinpui/gradeprep/internal/ui"
)

// DefaultType is the declared type written when a Rule leaves Type empty.
const DefaultType = "str"

// ErrNoMatch is returned by Set and Restore when the prefix does not match
// the expected lines.
var ErrNoMatch = errors.New("no line matches prefix")

// Rule describes one patchable setting.
//
// Prefix is matched against the start of each line, so it should carry
// enough context (leading indentation, the full name) to be unique.
type Rule struct {
	Name      string
	Prefix    string
	Prompt    string
	Type      string
	Transform string
}

// Result describes a patch attempt.
type Result struct {
	OK      bool
	Path    string
	Prefix  string
	NewLine string
	// OldLines holds the replaced lines in file order.
	OldLines []string
}

// FormatLine renders a declaration line: `<prefix>: <type> = "<value>"\n`.
func FormatLine(prefix, typ, value string) string {
	if typ == "" {
		typ = DefaultType
	}
	return fmt.Sprintf("%s: %s = \"%s\"\n", prefix, typ, value)
}

// PatchLines replaces every line starting with prefix by newLine. The input
// slice is not modified. ok is false when nothing matched.
func PatchLines(lines []string, prefix, newLine string) (out []string, replaced []string, ok bool) {
	return replaceMatches(lines, prefix, func(int) string { return newLine })
}

// RestoreLines replaces the n-th line starting with prefix by originals[n].
// It fails when the number of matching lines differs from len(originals).
func RestoreLines(lines []string, prefix string, originals []string) ([]string, error) {
	out, replaced, _ := replaceMatches(lines, prefix, func(n int) string {
		if n < len(originals) {
			return originals[n]
		}
		return ""
	})
	if len(replaced) != len(originals) {
		return nil, fmt.Errorf("%w: %q matched %d line(s), expected %d", ErrNoMatch, prefix, len(replaced), len(originals))
	}
	return out, nil
}

func replaceMatches(lines []string, prefix string, next func(n int) string) (out []string, replaced []string, ok bool) {
	out = make([]string, len(lines))
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			out[i] = next(len(replaced))
			replaced = append(replaced, line)
			continue
		}
		out[i] = line
	}
	return out, replaced, len(replaced) > 0
}

// MatchingLines returns the lines of path that start with prefix.
func MatchingLines(path, prefix string) ([]string, error) {
	lines, err := fs.ReadLines(path)
	if err != nil {
		return nil, err
	}
	_, matched, _ := PatchLines(lines, prefix, "")
	return matched, nil
}

// Patcher applies Rules to a presets file, prompting for the new values.
type Patcher struct {
	In  prompt.Reader
	Out io.Writer
	Log *zap.Logger
}

// New creates a Patcher reading answers from in. A nil out means the ui
// output.
func New(in prompt.Reader, out io.Writer, log *zap.Logger) *Patcher {
	if out == nil {
		out = ui.Output()
	}
	return &Patcher{In: in, Out: out, Log: logging.OrNop(log)}
}

// Apply prompts for a value, transforms it and writes it into path. A
// missing prefix leaves the file untouched and yields Result.OK == false.
func (p *Patcher) Apply(path string, r Rule) (Result, error) {
	transform, err := LookupTransform(r.Transform)
	if err != nil {
		return Result{}, err
	}
	raw, err := p.In.ReadLine(r.Prompt)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read value for %s: %w", r.Name, err)
	}
	line := FormatLine(r.Prefix, r.Type, transform(raw))

	res, err := p.write(path, r.Prefix, line)
	if err != nil {
		return res, err
	}
	if res.OK {
		ui.SuccessTo(p.Out, "Updated %s in %s", r.Name, path)
	}
	return res, nil
}

// Set writes a raw replacement line for prefix without prompting. It is
// used to replay history entries.
func (p *Patcher) Set(path, prefix, line string) (Result, error) {
	res, err := p.write(path, prefix, line)
	if err != nil {
		return res, err
	}
	if len(res.OldLines) == 0 {
		return res, fmt.Errorf("%s: %w: %q", path, ErrNoMatch, prefix)
	}
	return res, nil
}

// Restore puts originals back in place of the lines matching prefix, in
// file order. It is used to revert history entries.
func (p *Patcher) Restore(path, prefix string, originals []string) (bool, error) {
	lines, err := fs.ReadLines(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	restored, err := RestoreLines(lines, prefix, originals)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	ok, err := fs.SafeWrite(func() error {
		return fs.WriteLines(path, restored)
	}, path, p.In, fs.WithOutput(p.Out))
	if err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	p.Log.Info("Restored presets lines", zap.String("path", path), zap.String("prefix", prefix), zap.Bool("written", ok))
	return ok, nil
}

func (p *Patcher) write(path, prefix, line string) (Result, error) {
	res := Result{Path: path, Prefix: prefix, NewLine: line}
	lines, err := fs.ReadLines(path)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", path, err)
	}

	patched, replaced, ok := PatchLines(lines, prefix, line)
	if !ok {
		ui.ErrorTo(p.Out, "Could not find '%s' in '%s'", strings.TrimSpace(prefix), path)
		p.Log.Warn("Prefix not found", zap.String("path", path), zap.String("prefix", prefix))
		return res, nil
	}
	res.OldLines = replaced
	if len(replaced) > 1 {
		p.Log.Warn("Prefix matched several lines", zap.String("path", path), zap.String("prefix", prefix), zap.Int("count", len(replaced)))
	}

	written, err := fs.SafeWrite(func() error {
		return fs.WriteLines(path, patched)
	}, path, p.In, fs.WithOutput(p.Out))
	if err != nil {
		return res, fmt.Errorf("failed to write %s: %w", path, err)
	}
	res.OK = written
	p.Log.Info("Patched presets file",
		zap.String("path", path),
		zap.String("prefix", prefix),
		zap.Bool("written", written))
	return res, nil
}
