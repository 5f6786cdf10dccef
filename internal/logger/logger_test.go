package logger

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerWritesToAllWriters(t *testing.T) {
	var first, second bytes.Buffer
	log := NewLoggerWithWriters(false, &first, &second)
	log.Info("node created", zap.String("id", "nd_1"))

	for _, out := range []string{first.String(), second.String()} {
		if !strings.Contains(out, "node created") || !strings.Contains(out, "nd_1") {
			t.Fatalf("expected message and field in output, got %q", out)
		}
	}
}

func TestLoggerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriters(false, &buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered, got %q", buf.String())
	}

	NewLoggerWithWriters(true, &buf).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}
