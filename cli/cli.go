package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Commands lists the positional commands. An empty command opens the
// update menu.
var Commands = []string{"update", "token", "reorder", "escape", "unescape", "addendum", "counter", "volatility", "init"}

// Config holds all the command-line flag values.
type Config struct {
	ConfigPath   string
	LookupDirs   []string
	ShowAll      bool
	Undo         bool
	Redo         bool
	NoAnimation  bool
	Verbose      bool
	Index        int
	Header       string
	KeepNewlines bool
	Copy         bool
	Width        int
	Min          int
	Max          int

	Command string
	Args    []string
}

// ParseFlags parses os.Args using pflag.
func ParseFlags() (*Config, error) {
	return Parse(os.Args[1:], os.Stdout)
}

// Parse defines and parses command-line flags from args. Usage text goes
// to usageOut.
func Parse(args []string, usageOut io.Writer) (*Config, error) {
	cfg := &Config{}
	flags := pflag.NewFlagSet("gradeprep", pflag.ContinueOnError)
	flags.SetOutput(usageOut)

	// Define flags
	flags.StringVarP(&cfg.ConfigPath, "config", "c", "gradeprep.yaml", "Path to the YAML configuration file.")
	flags.StringSliceVarP(&cfg.LookupDirs, "lookup-dir", "l", []string{}, "Directories to look for relative files in (default: current directory).")
	flags.BoolVarP(&cfg.ShowAll, "show-all", "a", false, "List private settings in the update menu as well.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the spinner and run batch commands on the plain console.")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Write debug entries to the log file.")
	flags.IntVarP(&cfg.Index, "index", "i", -1, "reorder: 0-based column index to sort by.")
	flags.StringVarP(&cfg.Header, "header", "H", "", "reorder: header name of the column to sort by.")
	flags.BoolVar(&cfg.KeepNewlines, "keep-newlines", false, "escape: keep newlines instead of turning them into spaces.")
	flags.BoolVar(&cfg.Copy, "copy", false, "escape/unescape: also copy the result to the clipboard.")
	flags.IntVarP(&cfg.Width, "width", "w", 6, "addendum: number of lines per rubric row.")
	flags.IntVar(&cfg.Min, "min", 0, "volatility: lowest possible score.")
	flags.IntVar(&cfg.Max, "max", 10, "volatility: highest possible score.")

	// Mutually exclusive history group
	flags.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last settings update.")
	flags.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone settings update.")

	flags.Usage = func() {
		fmt.Fprintln(usageOut, "Usage: gradeprep [flags] [command] [args]")
		fmt.Fprintln(usageOut, "\nPrepare presets and CSV data for the grading pipeline.")
		fmt.Fprintln(usageOut, "\nCommands:")
		fmt.Fprintln(usageOut, "  update                      choose a setting to update (default)")
		fmt.Fprintln(usageOut, "  token [value]               store a new API token")
		fmt.Fprintln(usageOut, "  reorder <file...>           sort CSV rows by --index or --header")
		fmt.Fprintln(usageOut, "  escape | unescape           convert text from stdin or the clipboard")
		fmt.Fprintln(usageOut, "  addendum <src> <rubric>     append addendum lines to the rubric CSV")
		fmt.Fprintln(usageOut, "  counter [show|inc N|set N]  read or change the work counter")
		fmt.Fprintln(usageOut, "  volatility <score...>       rate how consistent a set of scores is")
		fmt.Fprintln(usageOut, "  init                        write the default configuration file")
		fmt.Fprintln(usageOut, "\nExample: pbpaste | gradeprep escape --copy")
		fmt.Fprintln(usageOut, "\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Validate mutually exclusive flags
	if cfg.Undo && cfg.Redo {
		return nil, fmt.Errorf("error: --undo and --redo are mutually exclusive")
	}

	rest := flags.Args()
	if len(rest) > 0 {
		cfg.Command, cfg.Args = rest[0], rest[1:]
		if !isCommand(cfg.Command) {
			return nil, fmt.Errorf("error: unknown command %q", cfg.Command)
		}
	}
	if (cfg.Undo || cfg.Redo) && cfg.Command != "" {
		return nil, fmt.Errorf("error: --undo/--redo cannot be combined with a command")
	}
	return cfg, nil
}

func isCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}
