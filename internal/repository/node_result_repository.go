package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// NodeResultRepository stores raw commissioning output, one row per node and script
type NodeResultRepository interface {
	Repository[domain.NodeResult, int64]
	FindByNodeID(ctx context.Context, nodeID int64) ([]domain.NodeResult, error)
	FindByNodeAndName(ctx context.Context, nodeID int64, name string) (domain.NodeResult, error)
}

type nodeResultRepositoryImpl struct {
	db DBTX
}

// NewNodeResultRepository creates a new node result repository
func NewNodeResultRepository(db DBTX) NodeResultRepository {
	return &nodeResultRepositoryImpl{
		db: db,
	}
}

const nodeResultColumns = `id, node_id, name, script_result, data, created_at, updated_at`

// Save stores a result. A second result for the same node and script replaces the first.
func (r *nodeResultRepositoryImpl) Save(ctx context.Context, result domain.NodeResult) (domain.NodeResult, error) {
	if result.NodeID == 0 {
		return domain.NodeResult{}, fmt.Errorf("node ID is required: %w", ErrInvalidEntity)
	}
	if result.Name == "" {
		return domain.NodeResult{}, fmt.Errorf("script name is required: %w", ErrInvalidEntity)
	}
	if result.Data == nil {
		result.Data = []byte{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO node_results (node_id, name, script_result, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (node_id, name) DO UPDATE
		SET script_result = excluded.script_result, data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		result.NodeID, result.Name, result.ScriptResult, result.Data)
	if err != nil {
		return domain.NodeResult{}, fmt.Errorf("failed to store result %s for node %d: %w", result.Name, result.NodeID, err)
	}

	return r.FindByNodeAndName(ctx, result.NodeID, result.Name)
}

// FindByID finds a result by ID
func (r *nodeResultRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.NodeResult, error) {
	return scanNodeResult(r.db.QueryRowContext(ctx, `SELECT `+nodeResultColumns+` FROM node_results WHERE id = ?`, id))
}

// FindByNodeAndName finds the result a script produced on a node
func (r *nodeResultRepositoryImpl) FindByNodeAndName(ctx context.Context, nodeID int64, name string) (domain.NodeResult, error) {
	return scanNodeResult(r.db.QueryRowContext(ctx,
		`SELECT `+nodeResultColumns+` FROM node_results WHERE node_id = ? AND name = ?`, nodeID, name))
}

// FindAll finds all results
func (r *nodeResultRepositoryImpl) FindAll(ctx context.Context) ([]domain.NodeResult, error) {
	return r.query(ctx, `SELECT `+nodeResultColumns+` FROM node_results ORDER BY node_id, name`)
}

// FindByNodeID finds every result stored for a node
func (r *nodeResultRepositoryImpl) FindByNodeID(ctx context.Context, nodeID int64) ([]domain.NodeResult, error) {
	return r.query(ctx, `SELECT `+nodeResultColumns+` FROM node_results WHERE node_id = ? ORDER BY name`, nodeID)
}

func (r *nodeResultRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]domain.NodeResult, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find results: %w", err)
	}
	defer rows.Close()

	var results []domain.NodeResult
	for rows.Next() {
		result, err := scanNodeResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}

// DeleteByID deletes a result by ID
func (r *nodeResultRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM node_results WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return affectedOrNotFound(result)
}

// ExistsByID checks if a result exists by ID
func (r *nodeResultRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM node_results WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check result existence: %w", err)
	}
	return count > 0, nil
}

func scanNodeResult(row rowScanner) (domain.NodeResult, error) {
	var result domain.NodeResult
	err := row.Scan(&result.ID, &result.NodeID, &result.Name, &result.ScriptResult, &result.Data,
		&result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NodeResult{}, ErrNotFound
		}
		return domain.NodeResult{}, fmt.Errorf("failed to scan result: %w", err)
	}
	return result, nil
}
