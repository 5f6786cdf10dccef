package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindtree/internal/archive"
	"mindtree/internal/eventstream"
	"mindtree/internal/eventstream/nop"
	"mindtree/internal/export"
	"mindtree/internal/history"
	"mindtree/internal/search"
	"mindtree/internal/store"
	"mindtree/internal/tree"
)

type searchService interface {
	Search(context.Context, search.Query) search.Response
	IndexNodes(...store.Node)
	DeleteNodes([]string)
	Reindex(context.Context, store.Store)
}

type historyService interface {
	Record([]store.Node, string) (history.CommitInfo, error)
	History(int) ([]history.CommitInfo, error)
	Snapshot(string) (history.Snapshot, history.CommitInfo, error)
}

type snapshotArchiver interface {
	Upload(context.Context, []byte) (archive.Object, error)
	List(context.Context, int) ([]archive.Object, error)
}

type treeExporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

// Deps are the optional collaborators of the service. Leave a field nil to
// disable it; Search and Exporter fall back to store-backed defaults.
type Deps struct {
	Search   searchService
	History  historyService
	Events   eventstream.Publisher
	Archive  snapshotArchiver
	Exporter treeExporter
	Logger   *zap.Logger
	Title    string
}

// Service runs the tree operations against the store and fans successful
// mutations out to search, history and events. Mutations hold one process
// wide lock so the cycle check and the cascading delete read a stable tree.
type Service struct {
	store    store.Store
	search   searchService
	history  historyService
	events   eventstream.Publisher
	archive  snapshotArchiver
	exporter treeExporter
	logger   *zap.Logger
	title    string

	mu sync.Mutex
}

func New(st store.Store, deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Search == nil {
		deps.Search = search.NewService(nil, search.NewStoreScan(st), deps.Logger)
	}
	if deps.Events == nil {
		deps.Events = nop.NewPublisher()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewService()
	}
	if strings.TrimSpace(deps.Title) == "" {
		deps.Title = "mindtree"
	}
	return &Service{
		store:    st,
		search:   deps.Search,
		history:  deps.History,
		events:   deps.Events,
		archive:  deps.Archive,
		exporter: deps.Exporter,
		logger:   deps.Logger,
		title:    deps.Title,
	}
}

// Bootstrap rebuilds the search index and records the starting snapshot.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count nodes: %w", err)
	}
	s.search.Reindex(ctx, s.store)
	s.record(ctx, "bootstrap")
	s.logger.Info("bootstrap complete", zap.Int("nodes", count))
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Close() error {
	return s.events.Close()
}

// Tree returns the assembled roots. Orphans and cycle members are left out.
func (s *Service) Tree(ctx context.Context) ([]*tree.Tree, error) {
	records, err := s.store.Find(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	roots := tree.BuildTree(records)
	if roots == nil {
		roots = []*tree.Tree{}
	}
	return roots, nil
}

// Nodes returns the stored records in display order.
func (s *Service) Nodes(ctx context.Context) ([]store.Node, error) {
	records, err := s.store.Find(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	if records == nil {
		records = []store.Node{}
	}
	store.SortNodes(records)
	return records, nil
}

// Node returns one node with its subtree.
func (s *Service) Node(ctx context.Context, id string) (*tree.Tree, error) {
	root, err := s.store.FindOne(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &tree.Error{Kind: tree.KindNotFound, Op: "get", ID: id, Message: "node not found"}
		}
		return nil, fmt.Errorf("load node: %w", err)
	}
	ids, err := tree.Descendants(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	var descendants []store.Node
	if len(ids) > 0 {
		descendants, err = s.store.Find(ctx, store.Filter{IDs: ids})
		if err != nil {
			return nil, fmt.Errorf("load descendants: %w", err)
		}
	}
	return tree.Subtree(root, descendants), nil
}

func (s *Service) CreateNode(ctx context.Context, text string, parentID *string) (store.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := tree.Create(ctx, s.store, text, parentID)
	if err != nil {
		return store.Node{}, err
	}
	s.logger.Debug("node created", zap.String("id", node.ID), zap.String("parent_id", node.Parent()))
	s.search.IndexNodes(node)
	s.record(ctx, "create "+node.ID)
	s.publish(ctx, eventstream.NodeCreated(node))
	return node, nil
}

func (s *Service) MoveNode(ctx context.Context, id string, newParentID *string) (store.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous *string
	if before, err := s.store.FindOne(ctx, id); err == nil {
		previous = before.ParentID
	}
	node, err := tree.Move(ctx, s.store, id, newParentID)
	if err != nil {
		return store.Node{}, err
	}
	s.logger.Debug("node moved", zap.String("id", node.ID), zap.String("parent_id", node.Parent()))
	s.search.IndexNodes(node)
	s.record(ctx, fmt.Sprintf("move %s under %s", node.ID, node.Parent()))
	s.publish(ctx, eventstream.NodeMoved(node, previous))
	return node, nil
}

// DeleteNode removes id and all of its descendants. An absent id removes
// nothing and is not an error.
func (s *Service) DeleteNode(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := tree.DeleteWithDescendants(ctx, s.store, id)
	if err != nil {
		var treeErr *tree.Error
		if errors.As(err, &treeErr) && treeErr.Kind == tree.KindPartialFailure {
			if len(treeErr.Removed) > 0 {
				s.search.DeleteNodes(treeErr.Removed)
				s.publish(ctx, eventstream.NodeDeleted(id, treeErr.Removed))
			}
			s.record(ctx, "partial delete "+id)
		}
		return nil, err
	}
	if len(deleted) == 0 {
		return deleted, nil
	}
	s.logger.Debug("subtree deleted", zap.String("id", id), zap.Int("count", len(deleted)))
	s.search.DeleteNodes(deleted)
	s.record(ctx, fmt.Sprintf("delete %s (%d nodes)", id, len(deleted)))
	s.publish(ctx, eventstream.NodeDeleted(id, deleted))
	return deleted, nil
}

func (s *Service) Orphans(ctx context.Context) ([]store.Node, error) {
	return tree.Orphans(ctx, s.store)
}

func (s *Service) Reconcile(ctx context.Context, mode tree.ReconcileMode) (tree.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.store.Find(ctx, store.Filter{})
	if err != nil {
		return tree.ReconcileResult{}, fmt.Errorf("load nodes: %w", err)
	}
	byID := make(map[string]store.Node, len(before))
	for _, node := range before {
		byID[node.ID] = node
	}

	result, err := tree.Reconcile(ctx, s.store, mode)
	if err != nil {
		return result, err
	}
	if len(result.Purged) == 0 && len(result.Reattached) == 0 {
		return result, nil
	}

	if len(result.Purged) > 0 {
		s.search.DeleteNodes(result.Purged)
		for _, id := range result.Purged {
			s.publish(ctx, eventstream.NodeDeleted(id, []string{id}))
		}
	}
	for _, id := range result.Reattached {
		node, ok := byID[id]
		if !ok {
			continue
		}
		previous := node.ParentID
		node.ParentID = nil
		s.search.IndexNodes(node)
		s.publish(ctx, eventstream.NodeMoved(node, previous))
	}
	s.logger.Info("orphans reconciled",
		zap.String("mode", string(mode)),
		zap.Int("purged", len(result.Purged)),
		zap.Int("reattached", len(result.Reattached)),
	)
	s.record(ctx, fmt.Sprintf("reconcile %s (%d purged, %d reattached)", mode, len(result.Purged), len(result.Reattached)))
	return result, nil
}

func (s *Service) Search(ctx context.Context, text string, limit, offset int) search.Response {
	return s.search.Search(ctx, search.Query{Text: text, Limit: limit, Offset: offset})
}

func (s *Service) Export(ctx context.Context, format export.Format) (*export.Result, error) {
	roots, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{
		Title:       s.title,
		Format:      format,
		Roots:       roots,
		GeneratedAt: time.Now().UTC(),
	})
}

// Archive uploads the JSON export of the current tree to object storage.
func (s *Service) Archive(ctx context.Context) (archive.Object, error) {
	if s.archive == nil {
		return archive.Object{}, archiveUnavailable()
	}
	result, err := s.Export(ctx, export.FormatJSON)
	if err != nil {
		return archive.Object{}, err
	}
	object, err := s.archive.Upload(ctx, result.Data)
	if err != nil {
		return archive.Object{}, fmt.Errorf("archive snapshot: %w", err)
	}
	s.logger.Info("snapshot archived", zap.String("bucket", object.Bucket), zap.String("key", object.Key))
	return object, nil
}

func (s *Service) Archives(ctx context.Context, limit int) ([]archive.Object, error) {
	if s.archive == nil {
		return nil, archiveUnavailable()
	}
	return s.archive.List(ctx, limit)
}

func (s *Service) History(limit int) ([]history.CommitInfo, error) {
	if s.history == nil {
		return nil, historyUnavailable()
	}
	return s.history.History(limit)
}

// SnapshotView is a stored snapshot assembled into a tree.
type SnapshotView struct {
	Commit history.CommitInfo `json:"commit"`
	Nodes  []store.Node       `json:"nodes"`
	Roots  []*tree.Tree       `json:"roots"`
}

func (s *Service) Snapshot(hash string) (SnapshotView, error) {
	if s.history == nil {
		return SnapshotView{}, historyUnavailable()
	}
	snapshot, commit, err := s.history.Snapshot(hash)
	if err != nil {
		if errors.Is(err, history.ErrUnknownCommit) {
			return SnapshotView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Commit not found", map[string]any{"hash": hash})
		}
		return SnapshotView{}, err
	}
	roots := tree.BuildTree(snapshot.Nodes)
	if roots == nil {
		roots = []*tree.Tree{}
	}
	nodes := snapshot.Nodes
	if nodes == nil {
		nodes = []store.Node{}
	}
	return SnapshotView{Commit: commit, Nodes: nodes, Roots: roots}, nil
}

// record commits the current node list. Failures are logged; the mutation has
// already happened.
func (s *Service) record(ctx context.Context, message string) {
	if s.history == nil {
		return
	}
	nodes, err := s.store.Find(ctx, store.Filter{})
	if err != nil {
		s.logger.Warn("history snapshot load failed", zap.String("message", message), zap.Error(err))
		return
	}
	commit, err := s.history.Record(nodes, message)
	if err != nil {
		if errors.Is(err, history.ErrUnchanged) {
			return
		}
		s.logger.Warn("history record failed", zap.String("message", message), zap.Error(err))
		return
	}
	s.logger.Debug("history recorded", zap.String("hash", commit.Hash), zap.String("message", message))
}

func (s *Service) publish(ctx context.Context, event *eventstream.NodeEvent) {
	event.RequestID = RequestIDFromContext(ctx)
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType),
			zap.String("node_id", event.NodeID),
			zap.Error(err),
		)
	}
}
