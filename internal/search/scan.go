package search

import (
	"context"
	"fmt"
	"html"
	"strings"

	"mindtree/internal/store"
)

// StoreScan implements Searcher with a case-insensitive substring scan over
// every stored node. It is the fallback when Meilisearch is not configured or
// unreachable.
type StoreScan struct {
	store store.Store
}

func NewStoreScan(s store.Store) *StoreScan {
	return &StoreScan{store: s}
}

// Healthy always returns true; if the store is down the whole app is down.
func (s *StoreScan) Healthy() bool {
	return true
}

func (s *StoreScan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}
	q = normalize(q)

	nodes, err := s.store.Find(ctx, store.Filter{})
	if err != nil {
		return nil, 0, fmt.Errorf("scan nodes: %w", err)
	}

	var matches []Result
	for _, node := range nodes {
		at := strings.Index(strings.ToLower(node.Text), needle)
		if at < 0 {
			continue
		}
		matches = append(matches, Result{
			ID:       node.ID,
			Text:     node.Text,
			Snippet:  highlight(node.Text, at, len(needle)),
			ParentID: node.Parent(),
		})
	}

	total := len(matches)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return matches[q.Offset:end], total, nil
}

// highlight wraps text[at:at+n] in <mark> tags. at comes from the lowercased
// text, so the match is left unmarked when lowercasing changed the length.
func highlight(text string, at, n int) string {
	if len(strings.ToLower(text)) != len(text) || at+n > len(text) {
		return html.EscapeString(text)
	}
	return html.EscapeString(text[:at]) + "<mark>" + html.EscapeString(text[at:at+n]) + "</mark>" + html.EscapeString(text[at+n:])
}
