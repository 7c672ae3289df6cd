package repository

import (
	"context"
	"database/sql"
)

// Repository defines the basic CRUD operations for any entity type.
// This follows a similar pattern to Spring Data's Repository interface.
type Repository[T any, ID comparable] interface {
	// Save creates or updates an entity
	Save(ctx context.Context, entity T) (T, error)

	// FindByID retrieves an entity by its ID
	// Returns ErrNotFound if the entity doesn't exist
	FindByID(ctx context.Context, id ID) (T, error)

	// FindAll retrieves all entities
	FindAll(ctx context.Context) ([]T, error)

	// DeleteByID deletes an entity by its ID
	// Returns ErrNotFound if the entity doesn't exist
	DeleteByID(ctx context.Context, id ID) error

	// ExistsByID checks if an entity exists by its ID
	ExistsByID(ctx context.Context, id ID) (bool, error)
}

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories bundles every repository bound to the same DBTX.
type Repositories struct {
	Nodes        NodeRepository
	BlockDevices BlockDeviceRepository
	Interfaces   InterfaceRepository
	Subnets      SubnetRepository
	IPAddresses  IPAddressRepository
	Tags         TagRepository
	Results      NodeResultRepository
}

// New binds all repositories to db.
func New(db DBTX) *Repositories {
	return &Repositories{
		Nodes:        NewNodeRepository(db),
		BlockDevices: NewBlockDeviceRepository(db),
		Interfaces:   NewInterfaceRepository(db),
		Subnets:      NewSubnetRepository(db),
		IPAddresses:  NewIPAddressRepository(db),
		Tags:         NewTagRepository(db),
		Results:      NewNodeResultRepository(db),
	}
}

// affectedOrNotFound converts a zero-row result into ErrNotFound.
func affectedOrNotFound(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
