package migrations

import (
	"database/sql"
)

// GetInitialMigrations returns all initial migrations
func GetInitialMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_node_tables",
			Up: func(tx *sql.Tx) error {
				return execAll(tx,
					`CREATE TABLE nodes (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						system_id TEXT NOT NULL UNIQUE,
						hostname TEXT NOT NULL DEFAULT '',
						cpu_count INTEGER NOT NULL DEFAULT 0,
						cpu_speed INTEGER NOT NULL DEFAULT 0,
						memory INTEGER NOT NULL DEFAULT 0,
						boot_disk_id INTEGER REFERENCES block_devices(id) ON DELETE SET NULL,
						skip_storage BOOLEAN NOT NULL DEFAULT 0,
						skip_networking BOOLEAN NOT NULL DEFAULT 0,
						routers TEXT NOT NULL DEFAULT '[]',
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE block_devices (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						node_id INTEGER NOT NULL,
						name TEXT NOT NULL,
						path TEXT NOT NULL,
						id_path TEXT NOT NULL DEFAULT '',
						size INTEGER NOT NULL,
						block_size INTEGER NOT NULL,
						model TEXT NOT NULL DEFAULT '',
						serial TEXT NOT NULL DEFAULT '',
						tags TEXT NOT NULL DEFAULT '[]',
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE node_results (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						node_id INTEGER NOT NULL,
						name TEXT NOT NULL,
						script_result INTEGER NOT NULL,
						data BLOB NOT NULL,
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						UNIQUE (node_id, name),
						FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE tags (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL UNIQUE,
						definition TEXT NOT NULL DEFAULT '',
						comment TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE TABLE node_tags (
						node_id INTEGER NOT NULL,
						tag_id INTEGER NOT NULL,
						PRIMARY KEY (node_id, tag_id),
						FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE,
						FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
					)`,
					`CREATE INDEX idx_block_devices_node_id ON block_devices(node_id)`,
				)
			},
			Down: func(tx *sql.Tx) error {
				// Drop tables in reverse order due to foreign key constraints
				return execAll(tx,
					`DROP TABLE IF EXISTS node_tags`,
					`DROP TABLE IF EXISTS tags`,
					`DROP TABLE IF EXISTS node_results`,
					`DROP TABLE IF EXISTS block_devices`,
					`DROP TABLE IF EXISTS nodes`,
				)
			},
		},
		{
			Version: 2,
			Name:    "create_network_tables",
			Up: func(tx *sql.Tx) error {
				return execAll(tx,
					`CREATE TABLE subnets (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL UNIQUE,
						cidr TEXT NOT NULL UNIQUE,
						gateway TEXT NOT NULL DEFAULT '',
						dns_servers TEXT NOT NULL DEFAULT '',
						description TEXT NOT NULL DEFAULT '',
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE interfaces (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						node_id INTEGER NOT NULL,
						name TEXT NOT NULL,
						type TEXT NOT NULL CHECK (type IN ('physical', 'vlan', 'bond')),
						mac_address TEXT NOT NULL DEFAULT '',
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE interface_relationships (
						child_id INTEGER NOT NULL,
						parent_id INTEGER NOT NULL,
						position INTEGER NOT NULL DEFAULT 0,
						PRIMARY KEY (child_id, parent_id),
						FOREIGN KEY (child_id) REFERENCES interfaces(id) ON DELETE CASCADE,
						FOREIGN KEY (parent_id) REFERENCES interfaces(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE ip_addresses (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						interface_id INTEGER NOT NULL,
						subnet_id INTEGER,
						alloc_type TEXT NOT NULL,
						ip TEXT NOT NULL,
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						UNIQUE (interface_id, ip),
						FOREIGN KEY (interface_id) REFERENCES interfaces(id) ON DELETE CASCADE,
						FOREIGN KEY (subnet_id) REFERENCES subnets(id) ON DELETE SET NULL
					)`,
					`CREATE INDEX idx_interfaces_node_id ON interfaces(node_id)`,
					`CREATE INDEX idx_interfaces_mac_address ON interfaces(mac_address)`,
					`CREATE INDEX idx_interface_relationships_parent_id ON interface_relationships(parent_id)`,
				)
			},
			Down: func(tx *sql.Tx) error {
				return execAll(tx,
					`DROP TABLE IF EXISTS ip_addresses`,
					`DROP TABLE IF EXISTS interface_relationships`,
					`DROP TABLE IF EXISTS interfaces`,
					`DROP TABLE IF EXISTS subnets`,
				)
			},
		},
	}
}

// execAll runs each statement in order, stopping at the first failure
func execAll(tx *sql.Tx, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
