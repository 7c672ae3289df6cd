package migrations

import (
	"database/sql"
)

// GetPerformanceMigrations returns performance optimization migrations
func GetPerformanceMigrations() []Migration {
	indices := []struct{ name, create string }{
		{"idx_nodes_boot_disk_id", "CREATE INDEX IF NOT EXISTS idx_nodes_boot_disk_id ON nodes(boot_disk_id)"},
		{"idx_block_devices_model_serial", "CREATE INDEX IF NOT EXISTS idx_block_devices_model_serial ON block_devices(node_id, model, serial)"},
		{"idx_ip_addresses_subnet_id", "CREATE INDEX IF NOT EXISTS idx_ip_addresses_subnet_id ON ip_addresses(subnet_id)"},
		{"idx_node_tags_tag_id", "CREATE INDEX IF NOT EXISTS idx_node_tags_tag_id ON node_tags(tag_id)"},
	}

	return []Migration{
		{
			Version: 10,
			Name:    "add_performance_indices",
			Up: func(tx *sql.Tx) error {
				for _, idx := range indices {
					if _, err := tx.Exec(idx.create); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				for _, idx := range indices {
					if _, err := tx.Exec("DROP INDEX IF EXISTS " + idx.name); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
