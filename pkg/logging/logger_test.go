package logging

import (
	"os"
	"strings"
	"testing"
)

func TestSessionIDIsStable(t *testing.T) {
	first := SessionID()
	second := SessionID()

	if first == "" {
		t.Fatal("session id is empty")
	}
	if first != second {
		t.Errorf("session id changed between calls: %q vs %q", first, second)
	}
}

func TestLoggerWritesTaggedEntries(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	logger, err := New("orchestrator")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Infof("starting %s", "REQ-001")
	logger.Warnf("verification slow")

	if logger.Path() == "" {
		t.Fatal("logger has no file path")
	}
	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	for _, want := range []string{"[orchestrator]", "[INFO]", "starting REQ-001", "[WARN]", "verification slow"} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q:\n%s", want, content)
		}
	}
}

func TestLoggerCloseIsIdempotent(t *testing.T) {
	// New degrades to stderr on error but always returns a usable logger.
	logger, _ := New("conductor")

	if err := logger.Close(); err != nil {
		t.Errorf("first close errored: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second close errored: %v", err)
	}
}
