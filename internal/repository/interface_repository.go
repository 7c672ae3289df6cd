package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// InterfaceRepository defines domain-specific operations for network interfaces
type InterfaceRepository interface {
	Repository[domain.Interface, int64]
	FindByNodeID(ctx context.Context, nodeID int64) ([]domain.Interface, error)
	FindByMAC(ctx context.Context, mac string) ([]domain.Interface, error)
	FindChildren(ctx context.Context, parentID int64) ([]domain.Interface, error)
	ReplaceParent(ctx context.Context, oldParentID, newParentID int64) error
	MoveToNode(ctx context.Context, id, nodeID int64) error
}

// interfaceRepositoryImpl implements InterfaceRepository
type interfaceRepositoryImpl struct {
	db DBTX
}

// NewInterfaceRepository creates a new interface repository
func NewInterfaceRepository(db DBTX) InterfaceRepository {
	return &interfaceRepositoryImpl{
		db: db,
	}
}

const interfaceColumns = `id, node_id, name, type, mac_address`

// Save creates or updates an interface along with its ordered parent list
func (r *interfaceRepositoryImpl) Save(ctx context.Context, iface domain.Interface) (domain.Interface, error) {
	if iface.NodeID == 0 {
		return domain.Interface{}, fmt.Errorf("node ID is required: %w", ErrInvalidEntity)
	}
	if iface.Name == "" {
		return domain.Interface{}, fmt.Errorf("interface name is required: %w", ErrInvalidEntity)
	}
	switch iface.Type {
	case domain.InterfaceTypePhysical:
		if len(iface.ParentIDs) > 0 {
			return domain.Interface{}, fmt.Errorf("physical interface %s cannot have parents: %w", iface.Name, ErrInvalidEntity)
		}
	case domain.InterfaceTypeVLAN, domain.InterfaceTypeBond:
	default:
		return domain.Interface{}, fmt.Errorf("unknown interface type %q: %w", iface.Type, ErrInvalidEntity)
	}
	iface.MACAddress = strings.ToLower(iface.MACAddress)

	if iface.ID == 0 {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO interfaces (node_id, name, type, mac_address) VALUES (?, ?, ?, ?)`,
			iface.NodeID, iface.Name, string(iface.Type), iface.MACAddress)
		if err != nil {
			return domain.Interface{}, fmt.Errorf("failed to create interface: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return domain.Interface{}, fmt.Errorf("failed to get interface ID: %w", err)
		}
		iface.ID = id
	} else {
		result, err := r.db.ExecContext(ctx, `
			UPDATE interfaces
			SET node_id = ?, name = ?, type = ?, mac_address = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			iface.NodeID, iface.Name, string(iface.Type), iface.MACAddress, iface.ID)
		if err != nil {
			return domain.Interface{}, fmt.Errorf("failed to update interface: %w", err)
		}
		if err := affectedOrNotFound(result); err != nil {
			return domain.Interface{}, fmt.Errorf("interface %d: %w", iface.ID, err)
		}
	}

	if err := r.setParents(ctx, iface.ID, iface.ParentIDs); err != nil {
		return domain.Interface{}, err
	}
	return iface, nil
}

func (r *interfaceRepositoryImpl) setParents(ctx context.Context, childID int64, parentIDs []int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM interface_relationships WHERE child_id = ?", childID); err != nil {
		return fmt.Errorf("failed to clear parents of interface %d: %w", childID, err)
	}
	for position, parentID := range parentIDs {
		if parentID == childID {
			return fmt.Errorf("interface %d cannot be its own parent: %w", childID, ErrInvalidEntity)
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO interface_relationships (child_id, parent_id, position) VALUES (?, ?, ?)`,
			childID, parentID, position)
		if err != nil {
			return fmt.Errorf("failed to link interface %d to parent %d: %w", childID, parentID, err)
		}
	}
	return nil
}

// FindByID finds an interface by ID
func (r *interfaceRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.Interface, error) {
	var iface domain.Interface
	var ifaceType string
	err := r.db.QueryRowContext(ctx, `SELECT `+interfaceColumns+` FROM interfaces WHERE id = ?`, id).Scan(
		&iface.ID, &iface.NodeID, &iface.Name, &ifaceType, &iface.MACAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Interface{}, ErrNotFound
		}
		return domain.Interface{}, fmt.Errorf("failed to find interface: %w", err)
	}
	iface.Type = domain.InterfaceType(ifaceType)

	parents, err := r.parentIDs(ctx, iface.ID)
	if err != nil {
		return domain.Interface{}, err
	}
	iface.ParentIDs = parents
	return iface, nil
}

// FindAll finds all interfaces
func (r *interfaceRepositoryImpl) FindAll(ctx context.Context) ([]domain.Interface, error) {
	return r.query(ctx, `SELECT `+interfaceColumns+` FROM interfaces ORDER BY id`)
}

// FindByNodeID returns the interfaces owned by a node
func (r *interfaceRepositoryImpl) FindByNodeID(ctx context.Context, nodeID int64) ([]domain.Interface, error) {
	return r.query(ctx, `SELECT `+interfaceColumns+` FROM interfaces WHERE node_id = ? ORDER BY id`, nodeID)
}

// FindByMAC returns every interface carrying mac, on any node
func (r *interfaceRepositoryImpl) FindByMAC(ctx context.Context, mac string) ([]domain.Interface, error) {
	return r.query(ctx, `SELECT `+interfaceColumns+` FROM interfaces WHERE mac_address = ? ORDER BY id`,
		strings.ToLower(mac))
}

// FindChildren returns the interfaces that list parentID among their parents
func (r *interfaceRepositoryImpl) FindChildren(ctx context.Context, parentID int64) ([]domain.Interface, error) {
	return r.query(ctx, `
		SELECT i.id, i.node_id, i.name, i.type, i.mac_address
		FROM interfaces i
		JOIN interface_relationships rel ON rel.child_id = i.id
		WHERE rel.parent_id = ?
		ORDER BY i.id`, parentID)
}

func (r *interfaceRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]domain.Interface, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find interfaces: %w", err)
	}

	var ifaces []domain.Interface
	for rows.Next() {
		var iface domain.Interface
		var ifaceType string
		if err := rows.Scan(&iface.ID, &iface.NodeID, &iface.Name, &ifaceType, &iface.MACAddress); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan interface: %w", err)
		}
		iface.Type = domain.InterfaceType(ifaceType)
		ifaces = append(ifaces, iface)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating interfaces: %w", err)
	}
	// Parents are loaded with separate queries, so the cursor must be released first.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close interface rows: %w", err)
	}

	for i := range ifaces {
		parents, err := r.parentIDs(ctx, ifaces[i].ID)
		if err != nil {
			return nil, err
		}
		ifaces[i].ParentIDs = parents
	}
	return ifaces, nil
}

func (r *interfaceRepositoryImpl) parentIDs(ctx context.Context, childID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT parent_id FROM interface_relationships WHERE child_id = ? ORDER BY position`, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to find parents of interface %d: %w", childID, err)
	}
	defer rows.Close()

	var parents []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan parent ID: %w", err)
		}
		parents = append(parents, id)
	}
	return parents, rows.Err()
}

// ReplaceParent points every child of oldParentID at newParentID, keeping the
// position in each child's parent list.
func (r *interfaceRepositoryImpl) ReplaceParent(ctx context.Context, oldParentID, newParentID int64) error {
	if oldParentID == newParentID {
		return nil
	}
	// A child already linked to the new parent keeps its existing link.
	_, err := r.db.ExecContext(ctx, `
		UPDATE OR IGNORE interface_relationships SET parent_id = ?
		WHERE parent_id = ? AND child_id != ?`, newParentID, oldParentID, newParentID)
	if err != nil {
		return fmt.Errorf("failed to re-parent children of interface %d: %w", oldParentID, err)
	}
	_, err = r.db.ExecContext(ctx, "DELETE FROM interface_relationships WHERE parent_id = ?", oldParentID)
	if err != nil {
		return fmt.Errorf("failed to unlink children of interface %d: %w", oldParentID, err)
	}
	return nil
}

// MoveToNode transfers an interface and all of its descendants to nodeID
func (r *interfaceRepositoryImpl) MoveToNode(ctx context.Context, id, nodeID int64) error {
	result, err := r.db.ExecContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT ?
			UNION
			SELECT rel.child_id FROM interface_relationships rel JOIN subtree s ON rel.parent_id = s.id
		)
		UPDATE interfaces SET node_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id IN (SELECT id FROM subtree)`, id, nodeID)
	if err != nil {
		return fmt.Errorf("failed to move interface %d to node %d: %w", id, nodeID, err)
	}
	return affectedOrNotFound(result)
}

// DeleteByID deletes an interface. Its links and addresses go with it.
func (r *interfaceRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM interfaces WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete interface: %w", err)
	}
	return affectedOrNotFound(result)
}

// ExistsByID checks if an interface exists by ID
func (r *interfaceRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interfaces WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check interface existence: %w", err)
	}
	return count > 0, nil
}
