// Package search finds nodes by text, through Meilisearch when it is
// reachable and by scanning the node store otherwise.
package search

import (
	"context"

	"mindtree/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Snippet  string `json:"snippet"`
	ParentID string `json:"parentId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Searcher can execute a text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Index is a Searcher that also accepts writes.
type Index interface {
	Searcher
	IndexNodes(nodes []NodeRecord) error
	DeleteNodes(ids []string) error
}

// NodeRecord is the data we index for a node.
type NodeRecord struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ParentID  string `json:"parentId"`
	CreatedAt int64  `json:"createdAt"`
}

func RecordFromNode(node store.Node) NodeRecord {
	return NodeRecord{
		ID:        node.ID,
		Text:      node.Text,
		ParentID:  node.Parent(),
		CreatedAt: node.CreatedAt.Unix(),
	}
}

const defaultLimit = 20

func normalize(q Query) Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
