//go:build !windows

package fs

import (
	"fmt"
	"os"
	"syscall"
	"testing"
)

func TestClassifyBusy(t *testing.T) {
	busy := &os.PathError{Op: "rename", Path: "grades.csv", Err: syscall.EBUSY}
	if got := Classify(fmt.Errorf("write: %w", busy)); got != ClassLock {
		t.Fatalf("Classify(EBUSY) = %v, want lock", got)
	}
}
