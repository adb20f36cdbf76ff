// Package counter keeps a running total of processed work in a small text
// file. The file holds nothing but the decimal value.
package counter

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sokinpui/gradeprep/internal/fs"
)

// ErrNegative is returned when a mutation would drop the value below zero.
var ErrNegative = errors.New("counter cannot be negative")

// ParseError reports a counter file whose content is not a non-negative
// integer. It is not corrected automatically.
type ParseError struct {
	Path    string
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid counter file %s: cannot parse %q: %v", e.Path, e.Content, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Counter is a durable non-negative integer. Every mutation is written to
// disk before it returns.
type Counter struct {
	path  string
	value int
}

// Open loads the counter at path. A missing path, or one that is not a
// regular file, starts at 0 and is persisted right away.
func Open(path string) (*Counter, error) {
	c := &Counter{path: path}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		if err := c.save(); err != nil {
			return nil, err
		}
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read counter: %w", err)
	}
	content := strings.TrimSpace(string(data))
	value, err := strconv.Atoi(content)
	if err != nil {
		return nil, &ParseError{Path: path, Content: content, Err: err}
	}
	if value < 0 {
		return nil, &ParseError{Path: path, Content: content, Err: ErrNegative}
	}
	c.value = value
	return c, nil
}

func (c *Counter) Path() string {
	return c.path
}

func (c *Counter) Value() int {
	return c.value
}

// Increment adds by to the value and persists it.
func (c *Counter) Increment(by int) error {
	return c.Set(c.value + by)
}

// Set overwrites the value and persists it. On error the in-memory value is
// left unchanged.
func (c *Counter) Set(value int) error {
	if value < 0 {
		return fmt.Errorf("%w: %d", ErrNegative, value)
	}
	prev := c.value
	c.value = value
	if err := c.save(); err != nil {
		c.value = prev
		return err
	}
	return nil
}

func (c *Counter) save() error {
	if err := fs.WriteFileAtomic(c.path, []byte(strconv.Itoa(c.value))); err != nil {
		return fmt.Errorf("failed to write counter: %w", err)
	}
	return nil
}
