package config

import (
	"database/sql"
)

// ApplyPragmaOptimizations applies SQLite-specific performance pragmas to a file database
func ApplyPragmaOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",    // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL",  // Balance between safety and performance
		"PRAGMA busy_timeout = 5000",   // Wait for locks held by other processes
		"PRAGMA cache_size = 10000",    // Increase cache size (10MB)
		"PRAGMA temp_store = MEMORY",   // Store temporary tables in memory
		"PRAGMA mmap_size = 268435456", // 256MB memory mapping
		"PRAGMA optimize",              // Enable query optimizer
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}
