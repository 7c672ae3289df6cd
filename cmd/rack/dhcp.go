package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/rack/internal/config"
	"github.com/jbweber/homelab/rack/internal/omshell"
)

var dhcpCmd = &cobra.Command{
	Use:   "dhcp",
	Short: "Manage host reservations on the DHCP server",
}

// newSession builds an omshell session for the configured DHCP server
func newSession(cfg *config.Config) *omshell.Session {
	session := omshell.NewSession(cfg.DHCP.Server, cfg.DHCP.SharedKey, cfg.DHCP.IPv6, nil, slog.Default())
	session.Command = cfg.DHCP.OmshellPath
	return session
}

// dhcpSession loads the config, applies flag overrides and opens a session
func dhcpSession(cmd *cobra.Command) (*omshell.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.DHCP.Server = server
	}
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		cfg.DHCP.SharedKey = key
	}
	if cmd.Flags().Changed("ipv6") {
		cfg.DHCP.IPv6, _ = cmd.Flags().GetBool("ipv6")
	}
	if cfg.DHCP.Server == "" {
		return nil, fmt.Errorf("no DHCP server configured")
	}
	return newSession(cfg), nil
}

var dhcpProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the DHCP server answers OMAPI connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := dhcpSession(cmd)
		if err != nil {
			return err
		}
		ok, err := session.TryConnection(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("DHCP server %s:%d did not accept the connection", session.Server, session.Port)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "DHCP server %s:%d is reachable\n", session.Server, session.Port)
		return nil
	},
}

var dhcpCreateCmd = &cobra.Command{
	Use:   "create <ip> <mac>",
	Short: "Reserve ip for mac",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := dhcpSession(cmd)
		if err != nil {
			return err
		}
		return session.Create(cmd.Context(), args[0], args[1])
	},
}

var dhcpModifyCmd = &cobra.Command{
	Use:   "modify <ip> <mac>",
	Short: "Point the reservation for mac at ip",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := dhcpSession(cmd)
		if err != nil {
			return err
		}
		return session.Modify(cmd.Context(), args[0], args[1])
	},
}

var dhcpRemoveCmd = &cobra.Command{
	Use:   "remove <mac-or-ip>",
	Short: "Remove a reservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := dhcpSession(cmd)
		if err != nil {
			return err
		}
		return session.Remove(cmd.Context(), args[0])
	},
}

var dhcpNullifyCmd = &cobra.Command{
	Use:   "nullify-lease <ip>",
	Short: "Expire the lease on ip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := dhcpSession(cmd)
		if err != nil {
			return err
		}
		return session.NullifyLease(cmd.Context(), args[0])
	},
}

var omapiKeyCmd = &cobra.Command{
	Use:   "omapi-key",
	Short: "Generate an OMAPI shared key with dnssec-keygen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		generator := omshell.NewKeyGenerator(nil, slog.Default())
		generator.Command = cfg.Keygen.Path
		key, err := generator.Generate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	dhcpCmd.PersistentFlags().String("server", "", "DHCP server address (overrides config)")
	dhcpCmd.PersistentFlags().String("key", "", "OMAPI shared key (overrides config)")
	dhcpCmd.PersistentFlags().Bool("ipv6", false, "talk to the DHCPv6 OMAPI port")
	dhcpCmd.AddCommand(dhcpProbeCmd, dhcpCreateCmd, dhcpModifyCmd, dhcpRemoveCmd, dhcpNullifyCmd)
}
