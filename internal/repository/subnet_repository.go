package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// SubnetRepository defines domain-specific operations for subnets
type SubnetRepository interface {
	Repository[domain.Subnet, int64]
	FindByName(ctx context.Context, name string) (domain.Subnet, error)
	FindByCIDR(ctx context.Context, cidr string) (domain.Subnet, error)
	FindContaining(ctx context.Context, ip netip.Addr) (domain.Subnet, error)
}

// subnetRepositoryImpl implements SubnetRepository
type subnetRepositoryImpl struct {
	db DBTX
}

// NewSubnetRepository creates a new subnet repository
func NewSubnetRepository(db DBTX) SubnetRepository {
	return &subnetRepositoryImpl{
		db: db,
	}
}

const subnetColumns = `id, name, cidr, gateway, dns_servers, description`

// Save creates or updates a subnet. The CIDR is stored in canonical masked form.
func (r *subnetRepositoryImpl) Save(ctx context.Context, subnet domain.Subnet) (domain.Subnet, error) {
	if subnet.Name == "" {
		return domain.Subnet{}, fmt.Errorf("subnet name is required: %w", ErrInvalidEntity)
	}
	prefix, err := netip.ParsePrefix(subnet.CIDR)
	if err != nil {
		return domain.Subnet{}, fmt.Errorf("invalid subnet CIDR %q: %w", subnet.CIDR, ErrInvalidEntity)
	}
	subnet.CIDR = prefix.Masked().String()
	if subnet.Gateway != "" {
		gateway, err := netip.ParseAddr(subnet.Gateway)
		if err != nil || !prefix.Contains(gateway) {
			return domain.Subnet{}, fmt.Errorf("gateway %q is not inside %s: %w", subnet.Gateway, subnet.CIDR, ErrInvalidEntity)
		}
	}

	if subnet.ID == 0 {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO subnets (name, cidr, gateway, dns_servers, description)
			VALUES (?, ?, ?, ?, ?)`,
			subnet.Name, subnet.CIDR, subnet.Gateway, subnet.DNSServers, subnet.Description)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Subnet{}, fmt.Errorf("subnet %s (%s): %w", subnet.Name, subnet.CIDR, ErrDuplicate)
			}
			return domain.Subnet{}, fmt.Errorf("failed to create subnet: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return domain.Subnet{}, fmt.Errorf("failed to get subnet ID: %w", err)
		}
		subnet.ID = id
		return subnet, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE subnets
		SET name = ?, cidr = ?, gateway = ?, dns_servers = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		subnet.Name, subnet.CIDR, subnet.Gateway, subnet.DNSServers, subnet.Description, subnet.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Subnet{}, fmt.Errorf("subnet %s (%s): %w", subnet.Name, subnet.CIDR, ErrDuplicate)
		}
		return domain.Subnet{}, fmt.Errorf("failed to update subnet: %w", err)
	}
	if err := affectedOrNotFound(result); err != nil {
		return domain.Subnet{}, fmt.Errorf("subnet %d: %w", subnet.ID, err)
	}
	return subnet, nil
}

// FindByID finds a subnet by ID
func (r *subnetRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.Subnet, error) {
	return scanSubnet(r.db.QueryRowContext(ctx, `SELECT `+subnetColumns+` FROM subnets WHERE id = ?`, id))
}

// FindByName finds a subnet by name
func (r *subnetRepositoryImpl) FindByName(ctx context.Context, name string) (domain.Subnet, error) {
	return scanSubnet(r.db.QueryRowContext(ctx, `SELECT `+subnetColumns+` FROM subnets WHERE name = ?`, name))
}

// FindByCIDR finds a subnet by network, in any notation that masks to the stored form
func (r *subnetRepositoryImpl) FindByCIDR(ctx context.Context, cidr string) (domain.Subnet, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return domain.Subnet{}, fmt.Errorf("invalid subnet CIDR %q: %w", cidr, ErrInvalidEntity)
	}
	return scanSubnet(r.db.QueryRowContext(ctx, `SELECT `+subnetColumns+` FROM subnets WHERE cidr = ?`,
		prefix.Masked().String()))
}

// FindContaining returns the most specific subnet that contains ip
func (r *subnetRepositoryImpl) FindContaining(ctx context.Context, ip netip.Addr) (domain.Subnet, error) {
	subnets, err := r.FindAll(ctx)
	if err != nil {
		return domain.Subnet{}, err
	}

	ip = ip.Unmap()
	best, bestBits := domain.Subnet{}, -1
	for _, subnet := range subnets {
		prefix, err := netip.ParsePrefix(subnet.CIDR)
		if err != nil {
			continue
		}
		if prefix.Contains(ip) && prefix.Bits() > bestBits {
			best, bestBits = subnet, prefix.Bits()
		}
	}
	if bestBits < 0 {
		return domain.Subnet{}, ErrNotFound
	}
	return best, nil
}

// FindAll finds all subnets
func (r *subnetRepositoryImpl) FindAll(ctx context.Context) ([]domain.Subnet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subnetColumns+` FROM subnets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to find subnets: %w", err)
	}
	defer rows.Close()

	var subnets []domain.Subnet
	for rows.Next() {
		subnet, err := scanSubnet(rows)
		if err != nil {
			return nil, err
		}
		subnets = append(subnets, subnet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subnets: %w", err)
	}

	return subnets, nil
}

// DeleteByID deletes a subnet by ID. Addresses inside it lose their subnet link.
func (r *subnetRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM subnets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete subnet: %w", err)
	}
	return affectedOrNotFound(result)
}

// ExistsByID checks if a subnet exists by ID
func (r *subnetRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subnets WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check subnet existence: %w", err)
	}
	return count > 0, nil
}

func scanSubnet(row rowScanner) (domain.Subnet, error) {
	var subnet domain.Subnet
	err := row.Scan(&subnet.ID, &subnet.Name, &subnet.CIDR, &subnet.Gateway, &subnet.DNSServers, &subnet.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subnet{}, ErrNotFound
		}
		return domain.Subnet{}, fmt.Errorf("failed to scan subnet: %w", err)
	}
	return subnet, nil
}
