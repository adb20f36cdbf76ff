package prompt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConsoleReadLine(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("first\r\nsecond\nlast"), &out)

	for _, want := range []string{"first", "second", "last"} {
		got, err := c.ReadLine("> ")
		if err != nil {
			t.Fatalf("ReadLine() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadLine() = %q, want %q", got, want)
		}
	}
	if _, err := c.ReadLine("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after input is drained, got %v", err)
	}
	if !strings.Contains(out.String(), "> ") {
		t.Errorf("prompt was not written: %q", out.String())
	}
}

func TestScripted(t *testing.T) {
	s := NewScripted("a", "b")
	if got, _ := s.ReadLine("one"); got != "a" {
		t.Fatalf("got %q, want a", got)
	}
	if s.Remaining() != 1 {
		t.Fatalf("Remaining() = %d, want 1", s.Remaining())
	}
	s.ReadLine("two")
	if _, err := s.ReadLine("three"); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if len(s.Prompts) != 3 || s.Prompts[2] != "three" {
		t.Errorf("prompts not recorded: %v", s.Prompts)
	}
}

func TestConfirm(t *testing.T) {
	accepted := []string{"y", "yes", "ye", "yeah"}
	tests := []struct {
		answer string
		want   bool
	}{
		{"y", true},
		{"YES", true},
		{" Yeah ", true},
		{"ye", true},
		{"n", false},
		{"", false},
		{"yep", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			if got := Confirm(NewScripted(tt.answer), "retry? ", accepted...); got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}

	t.Run("read error", func(t *testing.T) {
		if Confirm(NewScripted(), "retry? ", accepted...) {
			t.Error("exhausted input should not confirm")
		}
	})
}
