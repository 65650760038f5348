package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pathsplit/pathsplit/internal/logging"
)

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, false, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("experiment", "checkout").Msg("selected")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "selected") || !strings.Contains(out, "experiment=checkout") {
		t.Errorf("got %q, want plain console line with fields", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("got colour codes for a non-terminal writer: %q", out)
	}
}

func TestNew_FileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger, err := logging.New(&buf, true, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug().Msg("to file")

	data, err := os.ReadFile(filepath.Join(dir, "pathsplit.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"to file"`) {
		t.Errorf("got %q, want JSON line in log file", data)
	}
}
