package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/rack/internal/commissioning"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <system-id> <script-name>",
	Short: "Store and reconcile one commissioning script result",
	Long: `Store and reconcile one commissioning script result.

The script output is read from --file, or from stdin when no file is given.
Built-in scripts: 00-lshw, 00-cpuinfo, 00-virtuality, 99-capture-lldp,
99-network-interfaces and 99-block-devices. Other script names are stored
without further processing.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exitStatus, _ := cmd.Flags().GetInt("exit-status")
		file, _ := cmd.Flags().GetString("file")

		var output []byte
		var err error
		if file == "" || file == "-" {
			output, err = io.ReadAll(cmd.InOrStdin())
		} else {
			output, err = os.ReadFile(file)
		}
		if err != nil {
			return fmt.Errorf("reading script output: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ds, err := cfg.InitializeDatabase()
		if err != nil {
			return err
		}
		defer ds.Close()

		ingester := commissioning.NewIngester(ds, nil, commissioning.Options{
			MinBlockDeviceSize: cfg.Storage.MinBlockDeviceSize,
		})
		return ingester.Ingest(cmd.Context(), args[0], args[1], output, exitStatus)
	},
}

func init() {
	ingestCmd.Flags().Int("exit-status", 0, "exit status of the script")
	ingestCmd.Flags().StringP("file", "f", "", "file holding the script output (default: stdin)")
}
