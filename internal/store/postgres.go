package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mindtree/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Find(ctx context.Context, filter Filter) ([]Node, error) {
	if filter.empty() {
		return []Node{}, nil
	}
	var (
		clauses []string
		args    []any
	)
	if filter.IDs != nil {
		args = append(args, dedupe(filter.IDs))
		clauses = append(clauses, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.ParentIDs != nil {
		args = append(args, dedupe(filter.ParentIDs))
		clauses = append(clauses, fmt.Sprintf("parent_id = ANY($%d)", len(args)))
	}
	query := `SELECT id, text, parent_id, created_at FROM nodes`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func (s *PostgresStore) FindOne(ctx context.Context, id string) (Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, text, parent_id, created_at FROM nodes WHERE id=$1`, id)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, ErrNotFound
	}
	return node, err
}

func (s *PostgresStore) Insert(ctx context.Context, input NewNode) (Node, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO nodes (id, text, parent_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, text, parent_id, created_at
	`, util.NewID("nd"), input.Text, nullString(input.ParentID), createdAt)
	node, err := scanNode(row)
	if err != nil {
		return Node{}, fmt.Errorf("insert node: %w", err)
	}
	return node, nil
}

// DeleteMany removes the batch in a single statement, so the batch is either
// fully applied or not at all.
func (s *PostgresStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete nodes: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete nodes rows affected: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) error {
	var parent any
	switch {
	case patch.Detach:
		parent = nil
	case patch.ParentID != nil:
		parent = *patch.ParentID
	default:
		return s.exists(ctx, id)
	}
	result, err := s.db.ExecContext(ctx, `UPDATE nodes SET parent_id=$2 WHERE id=$1`, id, parent)
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) exists(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM nodes WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check node: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (Node, error) {
	var (
		node     Node
		parentID sql.NullString
	)
	if err := row.Scan(&node.ID, &node.Text, &parentID, &node.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Node{}, err
		}
		return Node{}, fmt.Errorf("scan node: %w", err)
	}
	if parentID.Valid {
		node.ParentID = StringPtr(parentID.String)
	}
	node.CreatedAt = node.CreatedAt.UTC()
	return node, nil
}

func nullString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
