// Package prompt provides the line-oriented input sources used by the
// interactive commands. Every blocking console read goes through a Reader so
// tests can swap the terminal for pre-scripted answers.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sokinpui/gradeprep/internal/ui"
)

// Reader prints a prompt and blocks until one line of input is available.
// The returned line has its trailing newline removed.
type Reader interface {
	ReadLine(prompt string) (string, error)
}

// Console reads lines from an input stream, echoing prompts to w.
type Console struct {
	r *bufio.Reader
	w io.Writer
}

// NewConsole creates a Console. A single Console should be shared by all
// readers of the same stream so buffered input is not lost between prompts.
func NewConsole(in io.Reader, w io.Writer) *Console {
	return &Console{r: bufio.NewReader(in), w: w}
}

func (c *Console) ReadLine(p string) (string, error) {
	if p != "" {
		fmt.Fprint(c.w, ui.Prompt("%s", p))
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		// A final line without a newline still counts.
		if errors.Is(err, io.EOF) && line != "" {
			return trimEOL(line), nil
		}
		return "", err
	}
	return trimEOL(line), nil
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// Scripted replays a fixed list of answers, then reports io.EOF.
type Scripted struct {
	lines   []string
	pos     int
	Prompts []string
}

func NewScripted(lines ...string) *Scripted {
	return &Scripted{lines: lines}
}

func (s *Scripted) ReadLine(p string) (string, error) {
	s.Prompts = append(s.Prompts, p)
	if s.pos >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

// Remaining reports how many scripted answers were not consumed.
func (s *Scripted) Remaining() int {
	return len(s.lines) - s.pos
}

// Secret reads input without echo when stdin is a terminal. Otherwise it
// falls back to the given line reader, which keeps piped input working.
type Secret struct {
	fallback Reader
	w        io.Writer
}

func NewSecret(fallback Reader, w io.Writer) *Secret {
	return &Secret{fallback: fallback, w: w}
}

func (s *Secret) ReadLine(p string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return s.fallback.ReadLine(p)
	}
	fmt.Fprint(s.w, ui.Prompt("%s", p))
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(s.w)
	if err != nil {
		return "", fmt.Errorf("failed to read masked input: %w", err)
	}
	return string(b), nil
}

// Confirm asks a yes/no question and reports whether the answer is one of
// accepted, compared case-insensitively. A read error counts as "no".
func Confirm(r Reader, question string, accepted ...string) bool {
	answer, err := r.ReadLine(question)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	for _, a := range accepted {
		if answer == a {
			return true
		}
	}
	return false
}
