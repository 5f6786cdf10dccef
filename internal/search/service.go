package search

import (
	"context"

	"go.uber.org/zap"

	"mindtree/internal/store"
)

const (
	EngineMeili = "meilisearch"
	EngineScan  = "scan"
)

// Service is the facade that tries the index first and falls back to a store
// scan.
type Service struct {
	index    Index
	fallback Searcher
	logger   *zap.Logger
}

// NewService creates a search service. index may be nil if Meilisearch is not
// configured.
func NewService(index Index, fallback Searcher, logger *zap.Logger) *Service {
	return &Service{index: index, fallback: fallback, logger: logger}
}

// Search tries the index if healthy, otherwise falls back to the scan.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: EngineMeili}
		}
		s.logger.Warn("meilisearch error, falling back to scan", zap.Error(err))
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("scan search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Engine: EngineScan}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: EngineScan}
}

// IndexNodes indexes nodes (fire-and-forget).
func (s *Service) IndexNodes(nodes ...store.Node) {
	if s.index == nil || !s.index.Healthy() || len(nodes) == 0 {
		return
	}
	records := make([]NodeRecord, 0, len(nodes))
	for _, node := range nodes {
		records = append(records, RecordFromNode(node))
	}
	go func() {
		if err := s.index.IndexNodes(records); err != nil {
			s.logger.Warn("index nodes", zap.Int("count", len(records)), zap.Error(err))
		}
	}()
}

// DeleteNodes removes nodes from the index (fire-and-forget).
func (s *Service) DeleteNodes(ids []string) {
	if s.index == nil || !s.index.Healthy() || len(ids) == 0 {
		return
	}
	ids = append([]string(nil), ids...)
	go func() {
		if err := s.index.DeleteNodes(ids); err != nil {
			s.logger.Warn("delete nodes from index", zap.Int("count", len(ids)), zap.Error(err))
		}
	}()
}

// Reindex pushes every stored node to the index. Called during bootstrap when
// the index is healthy.
func (s *Service) Reindex(ctx context.Context, st store.Store) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	nodes, err := st.Find(ctx, store.Filter{})
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	records := make([]NodeRecord, 0, len(nodes))
	for _, node := range nodes {
		records = append(records, RecordFromNode(node))
	}
	if err := s.index.IndexNodes(records); err != nil {
		s.logger.Warn("reindex nodes", zap.Error(err))
		return
	}
	s.logger.Info("search index rebuilt", zap.Int("nodes", len(records)))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
