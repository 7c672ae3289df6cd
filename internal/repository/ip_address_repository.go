package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// IPAddressRepository defines domain-specific operations for interface addresses
type IPAddressRepository interface {
	Repository[domain.IPAddress, int64]
	FindByInterfaceID(ctx context.Context, interfaceID int64) ([]domain.IPAddress, error)
	FindBySubnetID(ctx context.Context, subnetID int64) ([]domain.IPAddress, error)
	ExistsForInterface(ctx context.Context, interfaceID int64, ip string) (bool, error)
}

// ipAddressRepositoryImpl implements IPAddressRepository
type ipAddressRepositoryImpl struct {
	db DBTX
}

// NewIPAddressRepository creates a new IP address repository
func NewIPAddressRepository(db DBTX) IPAddressRepository {
	return &ipAddressRepositoryImpl{
		db: db,
	}
}

const ipAddressColumns = `id, interface_id, subnet_id, alloc_type, ip, created_at`

// Save creates or updates an IP address
func (r *ipAddressRepositoryImpl) Save(ctx context.Context, addr domain.IPAddress) (domain.IPAddress, error) {
	if addr.InterfaceID == 0 {
		return domain.IPAddress{}, fmt.Errorf("interface ID is required: %w", ErrInvalidEntity)
	}
	if addr.AllocType == "" {
		return domain.IPAddress{}, fmt.Errorf("allocation type is required: %w", ErrInvalidEntity)
	}
	ip, err := netip.ParseAddr(addr.IP)
	if err != nil {
		return domain.IPAddress{}, fmt.Errorf("invalid IP address format %q: %w", addr.IP, ErrInvalidEntity)
	}
	addr.IP = ip.String()

	if addr.ID == 0 {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO ip_addresses (interface_id, subnet_id, alloc_type, ip) VALUES (?, ?, ?, ?)`,
			addr.InterfaceID, nullableID(addr.SubnetID), string(addr.AllocType), addr.IP)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.IPAddress{}, fmt.Errorf("address %s on interface %d: %w", addr.IP, addr.InterfaceID, ErrDuplicate)
			}
			return domain.IPAddress{}, fmt.Errorf("failed to create IP address: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return domain.IPAddress{}, fmt.Errorf("failed to get IP address ID: %w", err)
		}
		addr.ID = id
		return addr, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE ip_addresses SET interface_id = ?, subnet_id = ?, alloc_type = ?, ip = ? WHERE id = ?`,
		addr.InterfaceID, nullableID(addr.SubnetID), string(addr.AllocType), addr.IP, addr.ID)
	if err != nil {
		return domain.IPAddress{}, fmt.Errorf("failed to update IP address: %w", err)
	}
	if err := affectedOrNotFound(result); err != nil {
		return domain.IPAddress{}, fmt.Errorf("IP address %d: %w", addr.ID, err)
	}
	return addr, nil
}

// FindByID finds an IP address by ID
func (r *ipAddressRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.IPAddress, error) {
	return scanIPAddress(r.db.QueryRowContext(ctx, `SELECT `+ipAddressColumns+` FROM ip_addresses WHERE id = ?`, id))
}

// FindAll finds all IP addresses
func (r *ipAddressRepositoryImpl) FindAll(ctx context.Context) ([]domain.IPAddress, error) {
	return r.query(ctx, `SELECT `+ipAddressColumns+` FROM ip_addresses ORDER BY id`)
}

// FindByInterfaceID finds all addresses bound to an interface
func (r *ipAddressRepositoryImpl) FindByInterfaceID(ctx context.Context, interfaceID int64) ([]domain.IPAddress, error) {
	return r.query(ctx, `SELECT `+ipAddressColumns+` FROM ip_addresses WHERE interface_id = ? ORDER BY id`, interfaceID)
}

// FindBySubnetID finds all addresses inside a subnet
func (r *ipAddressRepositoryImpl) FindBySubnetID(ctx context.Context, subnetID int64) ([]domain.IPAddress, error) {
	return r.query(ctx, `SELECT `+ipAddressColumns+` FROM ip_addresses WHERE subnet_id = ? ORDER BY id`, subnetID)
}

// ExistsForInterface reports whether ip is already bound to the interface
func (r *ipAddressRepositoryImpl) ExistsForInterface(ctx context.Context, interfaceID int64, ip string) (bool, error) {
	if parsed, err := netip.ParseAddr(ip); err == nil {
		ip = parsed.String()
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ip_addresses WHERE interface_id = ? AND ip = ?", interfaceID, ip).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check IP address existence: %w", err)
	}
	return count > 0, nil
}

func (r *ipAddressRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]domain.IPAddress, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find IP addresses: %w", err)
	}
	defer rows.Close()

	var addrs []domain.IPAddress
	for rows.Next() {
		addr, err := scanIPAddress(rows)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating IP addresses: %w", err)
	}
	return addrs, nil
}

// DeleteByID deletes an IP address by ID
func (r *ipAddressRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ip_addresses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete IP address: %w", err)
	}
	return affectedOrNotFound(result)
}

// ExistsByID checks if an IP address exists by ID
func (r *ipAddressRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ip_addresses WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check IP address existence: %w", err)
	}
	return count > 0, nil
}

func scanIPAddress(row rowScanner) (domain.IPAddress, error) {
	var (
		addr      domain.IPAddress
		subnetID  sql.NullInt64
		allocType string
	)
	err := row.Scan(&addr.ID, &addr.InterfaceID, &subnetID, &allocType, &addr.IP, &addr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IPAddress{}, ErrNotFound
		}
		return domain.IPAddress{}, fmt.Errorf("failed to scan IP address: %w", err)
	}
	if subnetID.Valid {
		addr.SubnetID = &subnetID.Int64
	}
	addr.AllocType = domain.IPAddressAllocType(allocType)
	return addr, nil
}
