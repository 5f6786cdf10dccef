package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"mindtree/internal/util"
)

// Neo4jStore keeps nodes as :MindNode vertices. The parent reference stays a
// property rather than an edge so dangling references survive exactly as they
// do in the document backends.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func OpenNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	store := NewNeo4jStore(driver, database)
	if err := store.ensureConstraints(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, err
	}
	return store, nil
}

func NewNeo4jStore(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	return &Neo4jStore{driver: driver, database: database}
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Neo4jStore) ensureConstraints(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, query := range []string{
			`CREATE CONSTRAINT mindnode_id IF NOT EXISTS FOR (n:MindNode) REQUIRE n.id IS UNIQUE`,
			`CREATE INDEX mindnode_parent IF NOT EXISTS FOR (n:MindNode) ON (n.parentId)`,
		} {
			result, err := tx.Run(ctx, query, nil)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("ensure neo4j schema: %w", err)
	}
	return nil
}

func (s *Neo4jStore) Find(ctx context.Context, filter Filter) ([]Node, error) {
	if filter.empty() {
		return []Node{}, nil
	}
	params := map[string]any{"ids": nil, "parents": nil}
	if filter.IDs != nil {
		params["ids"] = dedupe(filter.IDs)
	}
	if filter.ParentIDs != nil {
		params["parents"] = dedupe(filter.ParentIDs)
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:MindNode)
			WHERE ($ids IS NULL OR n.id IN $ids)
			  AND ($parents IS NULL OR n.parentId IN $parents)
			RETURN n.id AS id, n.text AS text, n.parentId AS parentId, n.createdAt AS createdAt
			ORDER BY n.createdAt ASC, n.id ASC
		`, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		nodes := make([]Node, 0, len(records))
		for _, record := range records {
			node, err := recordNode(record)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, nil
	})
	if err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	return result.([]Node), nil
}

func (s *Neo4jStore) FindOne(ctx context.Context, id string) (Node, error) {
	nodes, err := s.Find(ctx, Filter{IDs: []string{id}})
	if err != nil {
		return Node{}, err
	}
	if len(nodes) == 0 {
		return Node{}, ErrNotFound
	}
	return nodes[0], nil
}

func (s *Neo4jStore) Insert(ctx context.Context, input NewNode) (Node, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	node := Node{
		ID:        util.NewID("nd"),
		Text:      input.Text,
		ParentID:  copyString(input.ParentID),
		CreatedAt: createdAt,
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			CREATE (n:MindNode {id: $id, text: $text, parentId: $parentId, createdAt: $createdAt})
		`, map[string]any{
			"id":        node.ID,
			"text":      node.Text,
			"parentId":  nullString(node.ParentID),
			"createdAt": node.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return Node{}, fmt.Errorf("insert node: %w", err)
	}
	return node, nil
}

// DeleteMany removes the batch inside one write transaction.
func (s *Neo4jStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:MindNode)
			WHERE n.id IN $ids
			WITH collect(n) AS doomed, count(n) AS deleted
			FOREACH (x IN doomed | DETACH DELETE x)
			RETURN deleted
		`, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		count, _ := deleted.(int64)
		return int(count), nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete nodes: %w", err)
	}
	return result.(int), nil
}

func (s *Neo4jStore) Update(ctx context.Context, id string, patch Patch) error {
	var parent any
	switch {
	case patch.Detach:
		parent = nil
	case patch.ParentID != nil:
		parent = *patch.ParentID
	default:
		_, err := s.FindOne(ctx, id)
		return err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	matched, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:MindNode {id: $id})
			SET n.parentId = $parentId
			RETURN n.id AS id
		`, map[string]any{"id": id, "parentId": parent})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return len(records), nil
	})
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if matched.(int) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Neo4jStore) Count(ctx context.Context) (int, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:MindNode) RETURN count(n) AS total`, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		total, _ := record.Get("total")
		count, _ := total.(int64)
		return int(count), nil
	})
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return result.(int), nil
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

func recordNode(record *neo4j.Record) (Node, error) {
	var node Node
	idVal, _ := record.Get("id")
	id, ok := idVal.(string)
	if !ok {
		return Node{}, fmt.Errorf("unexpected type for 'id' column")
	}
	node.ID = id
	if textVal, found := record.Get("text"); found {
		node.Text, _ = textVal.(string)
	}
	if parentVal, found := record.Get("parentId"); found {
		if parent, ok := parentVal.(string); ok {
			node.ParentID = StringPtr(parent)
		}
	}
	if createdVal, found := record.Get("createdAt"); found {
		if createdAt, ok := createdVal.(time.Time); ok {
			node.CreatedAt = createdAt.UTC()
		}
	}
	return node, nil
}
