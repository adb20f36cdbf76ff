package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	PathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("222"))
	PromptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
)

// out is where status lines go. Stdout stays reserved for command output
// such as escaped text.
var out io.Writer = os.Stderr

// SetOutput redirects status output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// Output returns the current status writer.
func Output() io.Writer {
	return out
}

func emit(style lipgloss.Style, format string, a ...interface{}) {
	emitTo(out, style, format, a...)
}

func emitTo(w io.Writer, style lipgloss.Style, format string, a ...interface{}) {
	fmt.Fprintln(w, style.Render(fmt.Sprintf(format, a...)))
}

// SuccessTo is Success written to w.
func SuccessTo(w io.Writer, format string, a ...interface{}) {
	emitTo(w, SuccessStyle, format, a...)
}

// ErrorTo is Error written to w.
func ErrorTo(w io.Writer, format string, a ...interface{}) {
	emitTo(w, ErrorStyle, format, a...)
}

func Header(format string, a ...interface{}) {
	emit(HeaderStyle, format, a...)
}

func Info(format string, a ...interface{}) {
	emit(InfoStyle, format, a...)
}

func Success(format string, a ...interface{}) {
	emit(SuccessStyle, format, a...)
}

func Warning(format string, a ...interface{}) {
	emit(WarningStyle, format, a...)
}

func Error(format string, a ...interface{}) {
	emit(ErrorStyle, format, a...)
}

func Path(format string, a ...interface{}) {
	emit(PathStyle, "  "+format, a...)
}

func Prompt(format string, a ...interface{}) string {
	return PromptStyle.Render(fmt.Sprintf(format, a...))
}

// --- Summaries ---

// PrintSummary lists updated and failed files under a header.
func PrintSummary(title string, updated, failed []string) {
	Header("\n--- %s ---", title)

	if len(updated) == 0 && len(failed) == 0 {
		Info("No files were updated.")
		return
	}
	if len(updated) > 0 {
		Success("Updated %d file(s):", len(updated))
		for _, f := range updated {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	if len(failed) > 0 {
		Error("Failed to process %d file(s):", len(failed))
		for _, f := range failed {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
}
