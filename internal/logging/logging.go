package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "pathsplit.log"

// Init installs the global logger: a console sink on stderr and, when logDir
// is set, a rotating file sink in that folder. A file sink that cannot be
// created is reported and skipped.
func Init(verbose bool, logDir string) {
	logger, err := New(os.Stderr, verbose, logDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; logging to stderr only\n", err)
		logger, _ = New(os.Stderr, verbose, "")
	}
	log.Logger = logger
}

// New builds a logger writing human-readable lines to console and JSON lines
// to logDir/pathsplit.log. An empty logDir disables the file sink.
func New(console io.Writer, verbose bool, logDir string) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal(console),
	}

	writers := []io.Writer{consoleWriter}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to create log directory %q: %w", logDir, err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(logDir, logFileName),
			MaxSize:    16, // megabytes
			MaxBackups: 8,
			MaxAge:     90, // days
			Compress:   true,
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
