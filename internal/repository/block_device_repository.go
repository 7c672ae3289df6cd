package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// BlockDeviceRepository defines domain-specific operations for block devices
type BlockDeviceRepository interface {
	Repository[domain.BlockDevice, int64]
	FindByNodeID(ctx context.Context, nodeID int64) ([]domain.BlockDevice, error)
}

// blockDeviceRepositoryImpl implements BlockDeviceRepository
type blockDeviceRepositoryImpl struct {
	db DBTX
}

// NewBlockDeviceRepository creates a new block device repository
func NewBlockDeviceRepository(db DBTX) BlockDeviceRepository {
	return &blockDeviceRepositoryImpl{
		db: db,
	}
}

const blockDeviceColumns = `id, node_id, name, path, id_path, size, block_size, model, serial, tags`

// Save creates or updates a block device
func (r *blockDeviceRepositoryImpl) Save(ctx context.Context, device domain.BlockDevice) (domain.BlockDevice, error) {
	if device.NodeID == 0 {
		return domain.BlockDevice{}, fmt.Errorf("node ID is required: %w", ErrInvalidEntity)
	}
	if device.Name == "" {
		return domain.BlockDevice{}, fmt.Errorf("block device name is required: %w", ErrInvalidEntity)
	}
	if device.Tags == nil {
		device.Tags = []string{}
	}
	tags, err := json.Marshal(device.Tags)
	if err != nil {
		return domain.BlockDevice{}, fmt.Errorf("failed to encode tags: %w", err)
	}

	if device.ID == 0 {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO block_devices (node_id, name, path, id_path, size, block_size, model, serial, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			device.NodeID, device.Name, device.Path, device.IDPath, device.Size, device.BlockSize,
			device.Model, device.Serial, string(tags))
		if err != nil {
			return domain.BlockDevice{}, fmt.Errorf("failed to create block device: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return domain.BlockDevice{}, fmt.Errorf("failed to get block device ID: %w", err)
		}
		device.ID = id
		return device, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE block_devices
		SET node_id = ?, name = ?, path = ?, id_path = ?, size = ?, block_size = ?, model = ?,
			serial = ?, tags = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		device.NodeID, device.Name, device.Path, device.IDPath, device.Size, device.BlockSize,
		device.Model, device.Serial, string(tags), device.ID)
	if err != nil {
		return domain.BlockDevice{}, fmt.Errorf("failed to update block device: %w", err)
	}
	if err := affectedOrNotFound(result); err != nil {
		return domain.BlockDevice{}, fmt.Errorf("block device %d: %w", device.ID, err)
	}
	return device, nil
}

// FindByID finds a block device by ID
func (r *blockDeviceRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.BlockDevice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+blockDeviceColumns+` FROM block_devices WHERE id = ?`, id)
	return scanBlockDevice(row)
}

// FindAll finds all block devices
func (r *blockDeviceRepositoryImpl) FindAll(ctx context.Context) ([]domain.BlockDevice, error) {
	return r.query(ctx, `SELECT `+blockDeviceColumns+` FROM block_devices ORDER BY id`)
}

// FindByNodeID returns the node's block devices in creation order
func (r *blockDeviceRepositoryImpl) FindByNodeID(ctx context.Context, nodeID int64) ([]domain.BlockDevice, error) {
	return r.query(ctx, `SELECT `+blockDeviceColumns+` FROM block_devices WHERE node_id = ? ORDER BY id`, nodeID)
}

func (r *blockDeviceRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]domain.BlockDevice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find block devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.BlockDevice
	for rows.Next() {
		device, err := scanBlockDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating block devices: %w", err)
	}
	return devices, nil
}

// DeleteByID deletes a block device by ID. A node booting from it falls back to no boot disk.
func (r *blockDeviceRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE nodes SET boot_disk_id = NULL WHERE boot_disk_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear boot disk: %w", err)
	}
	result, err := r.db.ExecContext(ctx, "DELETE FROM block_devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete block device: %w", err)
	}
	return affectedOrNotFound(result)
}

// ExistsByID checks if a block device exists by ID
func (r *blockDeviceRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM block_devices WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check block device existence: %w", err)
	}
	return count > 0, nil
}

func scanBlockDevice(row rowScanner) (domain.BlockDevice, error) {
	var (
		device domain.BlockDevice
		tags   string
	)
	err := row.Scan(&device.ID, &device.NodeID, &device.Name, &device.Path, &device.IDPath,
		&device.Size, &device.BlockSize, &device.Model, &device.Serial, &tags)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BlockDevice{}, ErrNotFound
		}
		return domain.BlockDevice{}, fmt.Errorf("failed to scan block device: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &device.Tags); err != nil {
		return domain.BlockDevice{}, fmt.Errorf("failed to decode tags for block device %d: %w", device.ID, err)
	}
	return device, nil
}
