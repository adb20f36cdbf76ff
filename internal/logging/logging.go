// Package logging builds the zap logger shared by all commands. Logs go to
// a file under the state directory so they never interleave with the
// interactive prompts on the console.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file created inside the state directory.
const FileName = "gradeprep.log"

// New returns a production logger writing JSON lines to dir/gradeprep.log.
// verbose lowers the level to debug. An empty dir yields a no-op logger.
func New(dir, level string, verbose bool) (*zap.Logger, error) {
	if dir == "" {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	config := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(levelOrDefault(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	path := filepath.Join(dir, FileName)
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
