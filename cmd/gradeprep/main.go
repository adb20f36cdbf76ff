package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/sokinpui/gradeprep/cli"
	"github.com/sokinpui/gradeprep/gradeprep"
	"github.com/sokinpui/gradeprep/internal/tui"
	"github.com/sokinpui/gradeprep/internal/ui"
	"github.com/sokinpui/gradeprep/model"
)

// batchCommands run under the spinner unless --no-animation is given.
var batchCommands = map[string]bool{"reorder": true}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := cli.ParseFlags()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	app, err := gradeprep.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}
	defer app.Close()

	var summary model.Summary
	if batchCommands[cfg.Command] && !cfg.NoAnimation {
		m := tui.New(app)
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
		m.SetProgram(p)
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
			return 1
		}
		if summary, err = m.Summary(); err != nil {
			return 1
		}
	} else {
		if summary, err = app.Execute(); err != nil {
			var detailed *gradeprep.DetailedError
			if errors.As(err, &detailed) {
				fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
			}
			ui.Error("Error: %v", err)
			return 1
		}
		printSummary(cfg, summary)
	}

	if !summary.OK() {
		return 1
	}
	return 0
}

func printSummary(cfg *cli.Config, summary model.Summary) {
	if summary.Message != "" {
		ui.Info("%s", summary.Message)
	}
	if len(summary.Updated) == 0 && len(summary.Failed) == 0 {
		return
	}
	title := cfg.Command
	if title == "" || cfg.Undo || cfg.Redo {
		title = "update"
	}
	ui.PrintSummary(title, summary.Updated, summary.Failed)
}
