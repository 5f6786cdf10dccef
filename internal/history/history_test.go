package history

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mindtree/internal/store"
)

func node(id, parent string) store.Node {
	n := store.Node{ID: id, Text: "node " + id, CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	if parent != "" {
		n.ParentID = store.StringPtr(parent)
	}
	return n
}

func TestSnapshotLifecycle(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "history"), "Avery Lee")

	history, err := svc.History(10)
	if err != nil {
		t.Fatalf("History() on empty repo error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}

	first, err := svc.Record([]store.Node{node("1", ""), node("2", "1")}, "create 2")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if first.Hash == "" || first.Added != 2 || first.Removed != 0 || first.Nodes != 2 {
		t.Fatalf("unexpected first commit: %+v", first)
	}

	second, err := svc.Record([]store.Node{node("1", "")}, "delete 2")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if second.Added != 0 || second.Removed != 1 || second.Nodes != 1 {
		t.Fatalf("unexpected second commit: %+v", second)
	}
	if second.Author != "Avery Lee" {
		t.Fatalf("unexpected author %q", second.Author)
	}

	history, err = svc.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != second.Hash || history[1].Hash != first.Hash {
		t.Fatalf("unexpected history order: %+v", history)
	}

	limited, err := svc.History(1)
	if err != nil {
		t.Fatalf("History(1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(limited))
	}

	snapshot, info, err := svc.Snapshot(first.Hash)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if info.Hash != first.Hash {
		t.Fatalf("unexpected commit info %+v", info)
	}
	if len(snapshot.Nodes) != 2 || snapshot.Nodes[1].Parent() != "1" {
		t.Fatalf("unexpected snapshot %+v", snapshot.Nodes)
	}
}

func TestRecordUnchangedSnapshot(t *testing.T) {
	svc := New(t.TempDir(), "")

	if _, err := svc.Record([]store.Node{node("1", "")}, "create 1"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	_, err := svc.Record([]store.Node{node("1", "")}, "again")
	if !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}
}

func TestSnapshotUnknownHash(t *testing.T) {
	svc := New(t.TempDir(), "")
	if _, err := svc.Record([]store.Node{node("1", "")}, "create 1"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	for _, hash := range []string{"deadbee", "0123456789012345678901234567890123456789"} {
		if _, _, err := svc.Snapshot(hash); !errors.Is(err, ErrUnknownCommit) {
			t.Fatalf("Snapshot(%s) expected ErrUnknownCommit, got %v", hash, err)
		}
	}
}

func TestConcurrentRecords(t *testing.T) {
	svc := New(t.TempDir(), "")

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			nodes := []store.Node{node("root", ""), node(fmt.Sprintf("n%02d", idx), "root")}
			if _, err := svc.Record(nodes, fmt.Sprintf("commit %02d", idx)); err != nil && !errors.Is(err, ErrUnchanged) {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("Record() concurrent error = %v", err)
	}

	history, err := svc.History(100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d commits, got %d", writers, len(history))
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := sanitizeEmail("Avery Lee-Smith"); got != "Avery.Lee.Smith" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
	if got := sanitizeEmail("!!!"); got != "user" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
}
