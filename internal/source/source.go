package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sokinpui/gradeprep/internal/ui"
)

// SourceProvider determines and retrieves the text to escape or unescape.
type SourceProvider struct {
	stdin *os.File
}

// New creates a new SourceProvider reading from os.Stdin.
func New() *SourceProvider {
	return &SourceProvider{stdin: os.Stdin}
}

// IsPiped reports whether stdin is a pipe or file rather than a terminal.
func (sp *SourceProvider) IsPiped() bool {
	stat, err := sp.stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// GetContent retrieves content from stdin (if piped) or the clipboard.
func (sp *SourceProvider) GetContent() (string, error) {
	if sp.IsPiped() {
		ui.Header("--- Reading from stdin ---")
		content, err := io.ReadAll(sp.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}

	ui.Header("--- Reading from clipboard ---")
	content, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		ui.Warning("Clipboard is empty. Nothing to process.")
		return "", nil
	}
	return content, nil
}

// CopyToClipboard replaces the clipboard content with s.
func CopyToClipboard(s string) error {
	if err := clipboard.WriteAll(s); err != nil {
		return fmt.Errorf("failed to write to clipboard: %w", err)
	}
	return nil
}
