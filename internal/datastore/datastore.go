package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/rack/internal/migrations"
	"github.com/jbweber/homelab/rack/internal/repository"
)

// Datastore owns the sqlite handle that every repository runs against.
type Datastore struct {
	DB *sql.DB
}

// New opens the database at dsn, enables foreign keys and runs migrations.
func New(dsn string) (*Datastore, error) {
	db, err := sql.Open("sqlite", withForeignKeys(dsn))
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps shared-cache
	// in-memory databases alive for the lifetime of the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Datastore{DB: db}, nil
}

// migrate brings the schema up to the latest version.
func migrate(db *sql.DB) error {
	migrator := migrations.NewMigrator(db)
	for _, migration := range migrations.All() {
		migrator.AddMigration(migration)
	}
	return migrator.RunMigrations()
}

// withForeignKeys asks the driver to enable foreign keys on every connection it opens.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Repositories returns repositories bound directly to the database handle.
// They must not be used from inside Transact.
func (ds *Datastore) Repositories() *repository.Repositories {
	return repository.New(ds.DB)
}

// Transact runs fn in a single transaction. The transaction commits when fn
// returns nil and rolls back on error or panic.
func (ds *Datastore) Transact(ctx context.Context, fn func(repos *repository.Repositories) error) (err error) {
	tx, err := ds.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repository.New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (ds *Datastore) Close() error {
	return ds.DB.Close()
}
