package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/rack/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rack",
	Short: "Bare-metal inventory and DHCP reservation service",
	Long: `rack ingests commissioning output reported by managed machines into an
inventory of nodes, block devices and network interfaces, and maintains host
reservations on an ISC DHCP server through omshell.`,
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ds, err := cfg.InitializeDatabase()
		if err != nil {
			return err
		}
		defer ds.Close()

		version, err := schemaVersion(ds.DB)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}

// loadConfig reads the config file and installs the configured logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.SetupLogger()
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: /etc/rack/config.yaml, ~/.config/rack/config.yaml or ./config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, ingestCmd, dhcpCmd, omapiKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
