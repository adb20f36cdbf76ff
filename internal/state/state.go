package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sokinpui/gradeprep/internal/fs"
)

const (
	// DirName is the per-project state directory.
	DirName  = ".gradeprep"
	fileName = "history"
)

// Operation records one patched setting.
type Operation struct {
	Path    string
	Prefix  string
	OldLine string
	NewLine string
	// ContentHash is the SHA256 of the file after the operation was applied.
	ContentHash string
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	Timestamp  int64
	Operations []Operation
}

// State represents the entire history file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the history file.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// New creates and loads a state manager rooted at dir.
func New(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(dir, fileName),
		StateDir:  dir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func emptyState() *State {
	return &State{CurrentIndex: -1, History: []HistoryEntry{}}
}

// The file is a sequence of blank-line separated blocks. The first block
// holds the current index; each following block is a timestamp line and
// then five lines per operation. Line contents are Go-quoted so embedded
// newlines and quotes survive.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = emptyState()
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		m.state = emptyState()
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	m.state = &State{CurrentIndex: index, History: []HistoryEntry{}}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", lines[0], err)
		}

		entry := HistoryEntry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%5 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 5 {
			fields := make([]string, 5)
			for j := range fields {
				v, err := strconv.Unquote(opLines[i+j])
				if err != nil {
					return fmt.Errorf("invalid state file: bad field %q: %w", opLines[i+j], err)
				}
				fields[j] = v
			}
			entry.Operations = append(entry.Operations, Operation{
				Path:        fields[0],
				Prefix:      fields[1],
				OldLine:     fields[2],
				NewLine:     fields[3],
				ContentHash: fields[4],
			})
		}
		m.state.History = append(m.state.History, entry)
	}
	if m.state.CurrentIndex >= len(m.state.History) {
		m.state.CurrentIndex = len(m.state.History) - 1
	}
	return nil
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		var b strings.Builder
		b.WriteString(strconv.FormatInt(entry.Timestamp, 10))
		for _, op := range entry.Operations {
			for _, field := range []string{op.Path, op.Prefix, op.OldLine, op.NewLine, op.ContentHash} {
				b.WriteString("\n")
				b.WriteString(strconv.Quote(field))
			}
		}
		blocks = append(blocks, b.String())
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	if err := fs.WriteFileAtomic(m.statePath, []byte(content)); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Write adds a new set of operations to the history, discarding any
// entries that were undone.
func (m *Manager) Write(operations []Operation) error {
	if len(operations) == 0 {
		return nil
	}
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}
	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	})
	m.state.CurrentIndex++
	return m.save()
}

// GetOperationsToUndo returns the operations of the current entry, or nil
// when there is nothing to undo. The history pointer stays put until
// CommitUndo, so a refused undo can be retried.
func (m *Manager) GetOperationsToUndo() []Operation {
	if m.state.CurrentIndex < 0 {
		return nil
	}
	return m.state.History[m.state.CurrentIndex].Operations
}

// CommitUndo moves the history pointer back past the current entry.
func (m *Manager) CommitUndo() error {
	if m.state.CurrentIndex < 0 {
		return nil
	}
	m.state.CurrentIndex--
	return m.save()
}

// GetOperationsToRedo returns the operations of the next undone entry, or
// nil when there is nothing to redo. The pointer moves on CommitRedo.
func (m *Manager) GetOperationsToRedo() []Operation {
	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil
	}
	return m.state.History[nextIndex].Operations
}

// CommitRedo moves the history pointer forward onto the redone entry.
func (m *Manager) CommitRedo() error {
	if m.state.CurrentIndex+1 >= len(m.state.History) {
		return nil
	}
	m.state.CurrentIndex++
	return m.save()
}

// CreateOperations builds history records for a successful patch, hashing
// the file as it is now.
func CreateOperations(path, prefix, newLine string, oldLines []string) []Operation {
	hash, err := fs.FileSHA256(path)
	if err != nil {
		// Without a hash, a later undo will refuse to touch the file.
		hash = ""
	}
	ops := make([]Operation, 0, len(oldLines))
	for _, old := range oldLines {
		ops = append(ops, Operation{
			Path:        path,
			Prefix:      prefix,
			OldLine:     old,
			NewLine:     newLine,
			ContentHash: hash,
		})
	}
	return ops
}
