package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("nd")
	if !strings.HasPrefix(id, "nd_") {
		t.Fatalf("expected nd_ prefix, got %q", id)
	}
	if len(id) != len("nd_")+32 {
		t.Fatalf("expected 32 hex chars after prefix, got %q", id)
	}
	if NewID("nd") == id {
		t.Fatal("expected unique ids")
	}
	if bare := NewID(""); strings.Contains(bare, "_") || len(bare) != 32 {
		t.Fatalf("unexpected bare id %q", bare)
	}
}
