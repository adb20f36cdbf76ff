package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadLinesKeepsTerminators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.py")
	content := "class Presets:\n    A: str = \"1\"\n\n    B: str = \"2\""
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	want := []string{"class Presets:\n", "    A: str = \"1\"\n", "\n", "    B: str = \"2\""}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("ReadLines() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadLinesMissing(t *testing.T) {
	if _, err := ReadLines(filepath.Join(t.TempDir(), "nope")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	t.Run("creates missing file", func(t *testing.T) {
		if err := WriteFileAtomic(path, []byte("a,b\n")); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}
		got, _ := os.ReadFile(path)
		if string(got) != "a,b\n" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("keeps mode and leaves no temp files", func(t *testing.T) {
		if err := os.Chmod(path, 0o600); err != nil {
			t.Fatalf("chmod: %v", err)
		}
		if err := WriteLines(path, []string{"x\n", "y"}); err != nil {
			t.Fatalf("WriteLines() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("expected only the target file, found %d entries", len(entries))
		}
		got, _ := os.ReadFile(path)
		if string(got) != "x\ny" {
			t.Errorf("content = %q", got)
		}
	})
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("FileSHA256() error = %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("FileSHA256() = %s, want %s", got, want)
	}
}

func TestPathResolver(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(second, "rubric.csv"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewPathResolver([]string{first, second})

	if got := r.Resolve("rubric.csv"); got != filepath.Join(second, "rubric.csv") {
		t.Errorf("Resolve(existing) = %s", got)
	}
	if got := r.Resolve("new.csv"); got != filepath.Join(first, "new.csv") {
		t.Errorf("Resolve(new) = %s", got)
	}
	if got := r.ResolveExisting("new.csv"); got != "" {
		t.Errorf("ResolveExisting(new) = %s, want empty", got)
	}
	abs := filepath.Join(first, "abs.txt")
	if got := r.Resolve(abs); got != abs {
		t.Errorf("Resolve(abs) = %s", got)
	}
}
