package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// NodeRepository defines domain-specific operations for nodes
type NodeRepository interface {
	Repository[domain.Node, int64]
	FindBySystemID(ctx context.Context, systemID string) (domain.Node, error)
}

// nodeRepositoryImpl implements NodeRepository
type nodeRepositoryImpl struct {
	db DBTX
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(db DBTX) NodeRepository {
	return &nodeRepositoryImpl{
		db: db,
	}
}

const nodeColumns = `id, system_id, hostname, cpu_count, cpu_speed, memory, boot_disk_id,
	skip_storage, skip_networking, routers`

// Save creates or updates a node. New nodes without a system ID get a random one.
func (r *nodeRepositoryImpl) Save(ctx context.Context, node domain.Node) (domain.Node, error) {
	if node.ID == 0 {
		return r.createNode(ctx, node)
	}
	return r.updateNode(ctx, node)
}

func (r *nodeRepositoryImpl) createNode(ctx context.Context, n domain.Node) (domain.Node, error) {
	if n.SystemID == "" {
		n.SystemID = uuid.NewString()
	}
	if n.Routers == nil {
		n.Routers = []string{}
	}
	routers, err := json.Marshal(n.Routers)
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to encode routers: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO nodes (system_id, hostname, cpu_count, cpu_speed, memory, boot_disk_id,
			skip_storage, skip_networking, routers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.SystemID, n.Hostname, n.CPUCount, n.CPUSpeed, n.Memory, nullableID(n.BootDiskID),
		n.SkipStorage, n.SkipNetworking, string(routers))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Node{}, fmt.Errorf("node %s: %w", n.SystemID, ErrDuplicate)
		}
		return domain.Node{}, fmt.Errorf("failed to create node: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to get node ID: %w", err)
	}

	n.ID = id
	return n, nil
}

func (r *nodeRepositoryImpl) updateNode(ctx context.Context, n domain.Node) (domain.Node, error) {
	if n.Routers == nil {
		n.Routers = []string{}
	}
	routers, err := json.Marshal(n.Routers)
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to encode routers: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE nodes
		SET hostname = ?, cpu_count = ?, cpu_speed = ?, memory = ?, boot_disk_id = ?,
			skip_storage = ?, skip_networking = ?, routers = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		n.Hostname, n.CPUCount, n.CPUSpeed, n.Memory, nullableID(n.BootDiskID),
		n.SkipStorage, n.SkipNetworking, string(routers), n.ID)
	if err != nil {
		return domain.Node{}, fmt.Errorf("failed to update node: %w", err)
	}
	if err := affectedOrNotFound(result); err != nil {
		return domain.Node{}, fmt.Errorf("node %d: %w", n.ID, err)
	}

	return n, nil
}

// FindByID finds a node by ID
func (r *nodeRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.Node, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// FindBySystemID finds a node by its external system ID
func (r *nodeRepositoryImpl) FindBySystemID(ctx context.Context, systemID string) (domain.Node, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE system_id = ?`, systemID)
	return scanNode(row)
}

// FindAll finds all nodes
func (r *nodeRepositoryImpl) FindAll(ctx context.Context) ([]domain.Node, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

// DeleteByID deletes a node and, through cascading keys, everything it owns
func (r *nodeRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM nodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	return affectedOrNotFound(result)
}

// ExistsByID checks if a node exists by ID
func (r *nodeRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check node existence: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (domain.Node, error) {
	var (
		node     domain.Node
		bootDisk sql.NullInt64
		routers  string
	)
	err := row.Scan(&node.ID, &node.SystemID, &node.Hostname, &node.CPUCount, &node.CPUSpeed,
		&node.Memory, &bootDisk, &node.SkipStorage, &node.SkipNetworking, &routers)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Node{}, ErrNotFound
		}
		return domain.Node{}, fmt.Errorf("failed to scan node: %w", err)
	}
	if bootDisk.Valid {
		node.BootDiskID = &bootDisk.Int64
	}
	if err := json.Unmarshal([]byte(routers), &node.Routers); err != nil {
		return domain.Node{}, fmt.Errorf("failed to decode routers for node %d: %w", node.ID, err)
	}
	return node, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
