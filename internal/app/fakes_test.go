package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mindtree/internal/archive"
	"mindtree/internal/eventstream"
	"mindtree/internal/history"
	"mindtree/internal/search"
	"mindtree/internal/store"
)

type fakeHistory struct {
	mu         sync.Mutex
	messages   []string
	lastNodes  []store.Node
	recordErr  error
	commits    []history.CommitInfo
	snapshotFn func(string) (history.Snapshot, history.CommitInfo, error)
}

func (f *fakeHistory) Record(nodes []store.Node, message string) (history.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return history.CommitInfo{}, f.recordErr
	}
	f.messages = append(f.messages, message)
	f.lastNodes = nodes
	return history.CommitInfo{Hash: "abc1234", Message: message, CreatedAt: time.Now(), Nodes: len(nodes)}, nil
}

func (f *fakeHistory) History(limit int) ([]history.CommitInfo, error) {
	if f.commits == nil {
		return []history.CommitInfo{}, nil
	}
	return f.commits, nil
}

func (f *fakeHistory) Snapshot(hash string) (history.Snapshot, history.CommitInfo, error) {
	if f.snapshotFn != nil {
		return f.snapshotFn(hash)
	}
	return history.Snapshot{}, history.CommitInfo{}, history.ErrUnknownCommit
}

func (f *fakeHistory) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.NodeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *eventstream.NodeEvent) error {
	if event == nil {
		return eventstream.ErrNilNodeEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.EventType)
	}
	return out
}

type recordingSearch struct {
	mu      sync.Mutex
	deleted []string
}

func (r *recordingSearch) Search(context.Context, search.Query) search.Response {
	return search.Response{Engine: "fake", Results: []search.Result{}}
}

func (r *recordingSearch) IndexNodes(...store.Node) {}

func (r *recordingSearch) DeleteNodes(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, ids...)
}

func (r *recordingSearch) Reindex(context.Context, store.Store) {}

func (r *recordingSearch) deletedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

type fakeArchive struct {
	uploads [][]byte
	err     error
}

func (f *fakeArchive) Upload(_ context.Context, payload []byte) (archive.Object, error) {
	if f.err != nil {
		return archive.Object{}, f.err
	}
	f.uploads = append(f.uploads, payload)
	return archive.Object{Bucket: "mindtree-snapshots", Key: "snapshots/20260101T000000.000000000Z.json", Size: int64(len(payload))}, nil
}

func (f *fakeArchive) List(context.Context, int) ([]archive.Object, error) {
	return []archive.Object{}, nil
}

// failingStore wraps a MemoryStore and can break individual calls.
type failingStore struct {
	*store.MemoryStore
	findErr   error
	pingErr   error
	keepOnDel map[string]bool
}

func (f *failingStore) Find(ctx context.Context, filter store.Filter) ([]store.Node, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.MemoryStore.Find(ctx, filter)
}

func (f *failingStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	var doomed []string
	for _, id := range ids {
		if !f.keepOnDel[id] {
			doomed = append(doomed, id)
		}
	}
	return f.MemoryStore.DeleteMany(ctx, doomed)
}

func (f *failingStore) Ping(ctx context.Context) error {
	return f.pingErr
}

var errStoreDown = errors.New("connection refused")

type testEnv struct {
	store   *store.MemoryStore
	history *fakeHistory
	events  *recordingPublisher
	archive *fakeArchive
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   store.NewMemoryStore(),
		history: &fakeHistory{},
		events:  &recordingPublisher{},
		archive: &fakeArchive{},
	}
	env.service = New(env.store, Deps{
		History: env.history,
		Events:  env.events,
		Archive: env.archive,
	})
	return env
}

// seedChain stores Root(1) <- Child(2) <- Grandchild(3).
func seedChain(s *store.MemoryStore) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s.Seed(
		store.Node{ID: "1", Text: "Root", CreatedAt: base},
		store.Node{ID: "2", Text: "Child", ParentID: store.StringPtr("1"), CreatedAt: base.Add(time.Minute)},
		store.Node{ID: "3", Text: "Grandchild", ParentID: store.StringPtr("2"), CreatedAt: base.Add(2 * time.Minute)},
	)
}
