package fs

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"

	"github.com/sokinpui/gradeprep/internal/prompt"
	"github.com/sokinpui/gradeprep/internal/ui"
)

// Class separates the failures SafeWrite retries from those it does not.
type Class int

const (
	ClassNone Class = iota
	// ClassLock means another process holds the file or access was denied.
	ClassLock
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassLock:
		return "lock"
	default:
		return "other"
	}
}

// Classify maps an error returned by a file operation to a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, iofs.ErrPermission) || isLockErrno(err) {
		return ClassLock
	}
	return ClassOther
}

// retryAnswers are the replies that mean "try again".
var retryAnswers = []string{"y", "yes", "ye", "yeah"}

type safeWriteOptions struct {
	showOutcome bool
	out         io.Writer
}

// SafeWriteOption configures SafeWrite.
type SafeWriteOption func(*safeWriteOptions)

// WithoutOutcome suppresses the final failure message.
func WithoutOutcome() SafeWriteOption {
	return func(o *safeWriteOptions) { o.showOutcome = false }
}

// WithOutput sends diagnostics to w instead of the ui output.
func WithOutput(w io.Writer) SafeWriteOption {
	return func(o *safeWriteOptions) { o.out = w }
}

// SafeWrite runs write until it succeeds or the user gives up.
//
// Lock failures are reported and the user is asked whether to retry; giving
// up returns (false, nil). Any other error is returned as is, without a
// retry. path only names the target in messages.
func SafeWrite(write func() error, path string, in prompt.Reader, opts ...SafeWriteOption) (bool, error) {
	o := safeWriteOptions{showOutcome: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.out == nil {
		o.out = ui.Output()
	}

	for {
		err := write()
		switch Classify(err) {
		case ClassNone:
			return true, nil
		case ClassOther:
			return false, err
		}

		fmt.Fprintf(o.out, "Encountered permission error while trying to write to '%s'.\n", path)
		fmt.Fprintln(o.out, "Some process may be using this file... please close the process before trying again.")
		if !prompt.Confirm(in, "  > try again? (y/n) ", retryAnswers...) {
			break
		}
	}

	if o.showOutcome {
		fmt.Fprintf(o.out, "Failed to update \"%s\"!\n", path)
	}
	return false, nil
}

// ErrAbandoned is returned by Writer when the user declines to retry a
// locked write.
var ErrAbandoned = errors.New("write abandoned while file was locked")

// Writer writes whole files atomically, with SafeWrite's retry-on-lock
// behavior around each write.
type Writer struct {
	In  prompt.Reader
	Out io.Writer
}

// WriteFile replaces path with data. Giving up on a locked file returns an
// error wrapping ErrAbandoned.
func (w Writer) WriteFile(path string, data []byte) error {
	opts := []SafeWriteOption{WithoutOutcome()}
	if w.Out != nil {
		opts = append(opts, WithOutput(w.Out))
	}
	ok, err := SafeWrite(func() error {
		return WriteFileAtomic(path, data)
	}, path, w.In, opts...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrAbandoned)
	}
	return nil
}
