package menu

import (
	"errors"
	"fmt"
	"io"

	"github.com/sokinpui/gradeprep/internal/patcher"
	"github.com/sokinpui/gradeprep/internal/prompt"
	"github.com/sokinpui/gradeprep/internal/validate"
)

// Action is what a menu entry resolves to. The set of variants is closed.
type Action interface {
	isAction()
}

// PatchAction rewrites one setting in the presets file.
type PatchAction struct {
	Rule patcher.Rule
}

// TokenAction stores a new API token.
type TokenAction struct{}

func (PatchAction) isAction() {}
func (TokenAction) isAction() {}

// Entry is one labeled menu line.
type Entry struct {
	Label  string
	Action Action
}

// Menu is an ordered list of entries with unique labels. Display indices
// are 1-based in insertion order.
type Menu struct {
	entries []Entry
}

// New builds a Menu, rejecting empty menus and duplicate labels.
func New(entries ...Entry) (Menu, error) {
	if len(entries) == 0 {
		return Menu{}, errors.New("menu has no entries")
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Label]; ok {
			return Menu{}, fmt.Errorf("duplicate menu label %q", e.Label)
		}
		seen[e.Label] = struct{}{}
	}
	return Menu{entries: entries}, nil
}

func (m Menu) Len() int {
	return len(m.entries)
}

func (m Menu) Labels() []string {
	labels := make([]string, len(m.entries))
	for i, e := range m.entries {
		labels[i] = e.Label
	}
	return labels
}

// Lookup returns the action registered under label.
func (m Menu) Lookup(label string) (Action, bool) {
	for _, e := range m.entries {
		if e.Label == label {
			return e.Action, true
		}
	}
	return nil, false
}

// Render writes the numbered menu to w.
func (m Menu) Render(w io.Writer) {
	fmt.Fprintln(w, "Please select one of the following")
	for i, e := range m.entries {
		fmt.Fprintf(w, "    %d. %s\n", i+1, e.Label)
	}
}

// Select blocks until in yields a valid choice and returns its Entry.
// Invalid input is reported and the menu is shown again, without limit.
// Only a read error from in ends the loop early.
func Select(m Menu, in prompt.Reader, w io.Writer) (Entry, error) {
	labels := m.Labels()
	for {
		m.Render(w)
		line, err := in.ReadLine("> ")
		if err != nil {
			return Entry{}, fmt.Errorf("failed to read selection: %w", err)
		}

		outcome := validate.Validate(line, true, len(m.entries), labels)
		switch outcome.Kind {
		case validate.Index:
			return m.entries[outcome.Index-1], nil
		case validate.Literal:
			for _, e := range m.entries {
				if e.Label == outcome.Literal {
					return e, nil
				}
			}
		}
		fmt.Fprintf(w, "Could not select. ERROR: '%s'\n", outcome.Reason)
	}
}
