package omshell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/jbweber/homelab/rack/internal/metrics"
	"github.com/jbweber/homelab/rack/internal/shell"
)

const (
	// PortIPv4 is the OMAPI port of the IPv4 DHCP daemon.
	PortIPv4 = 7911
	// PortIPv6 is the OMAPI port of the DHCPv6 daemon.
	PortIPv6 = 7912
)

// ErrInvalidArgument is returned when an address or key cannot be embedded in a command script.
var ErrInvalidArgument = errors.New("invalid omshell argument")

// Session issues host-map and lease commands to one DHCP server.
// Every call spawns its own omshell process, so a Session is safe for concurrent use.
type Session struct {
	Server    string
	Port      int
	SharedKey string
	Command   string

	runner shell.Runner
	logger *slog.Logger
}

// NewSession creates a session for server. ipv6 selects the DHCPv6 OMAPI port.
// A nil runner uses shell.ExecRunner and a nil logger uses slog.Default().
func NewSession(server, sharedKey string, ipv6 bool, runner shell.Runner, logger *slog.Logger) *Session {
	port := PortIPv4
	if ipv6 {
		port = PortIPv6
	}
	if runner == nil {
		runner = shell.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		Server:    server,
		Port:      port,
		SharedKey: sharedKey,
		Command:   "omshell",
		runner:    runner,
		logger:    logger.With("component", "omshell", "server", server),
	}
}

// TryConnection reports whether the server answers an unauthenticated connect.
// Only a failure to run omshell at all is returned as an error.
func (s *Session) TryConnection(ctx context.Context) (bool, error) {
	script := fmt.Sprintf("server %s\nport %d\nconnect\n", s.Server, s.Port)

	output, err := s.run(ctx, script)
	if err != nil {
		var procErr *shell.ExternalProcessError
		if errors.As(err, &procErr) {
			metrics.OmshellCommandsTotal.WithLabelValues(string(VerbConnect), Failure.String()).Inc()
			return false, nil
		}
		return false, err
	}

	outcome := Classify(VerbConnect, output)
	metrics.OmshellCommandsTotal.WithLabelValues(string(VerbConnect), outcome.String()).Inc()
	return outcome == Success, nil
}

// Create adds a host map from mac to ip. An existing map is left as is.
func (s *Session) Create(ctx context.Context, ip, mac string) error {
	ipAddr, macAddr, err := validateHost(ip, mac)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Creating host mapping", "mac", macAddr, "ip", ipAddr)

	script := fmt.Sprintf(
		"server %s\nport %d\nkey omapi_key %s\nconnect\nnew host\n"+
			"set ip-address = %s\nset hardware-address = %s\nset hardware-type = 1\n"+
			"set name = \"%s\"\ncreate\n",
		s.Server, s.Port, s.SharedKey, ipAddr, macAddr, hostName(macAddr))
	return s.execute(ctx, VerbCreate, script)
}

// Modify points the existing host map for mac at ip.
func (s *Session) Modify(ctx context.Context, ip, mac string) error {
	ipAddr, macAddr, err := validateHost(ip, mac)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Modifying host mapping", "mac", macAddr, "ip", ipAddr)

	script := fmt.Sprintf(
		"server %s\nkey omapi_key %s\nconnect\nnew host\nset name = \"%s\"\nopen\n"+
			"set ip-address = %s\nset hardware-address = %s\nset hardware-type = 1\nupdate\n",
		s.Server, s.SharedKey, hostName(macAddr), ipAddr, macAddr)
	return s.execute(ctx, VerbModify, script)
}

// Remove deletes the host map named by key. key is normally a MAC address;
// maps created under an IP address name are removed the same way.
// A map that is already gone counts as removed.
func (s *Session) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Removing host mapping", "key", key)

	script := fmt.Sprintf(
		"server %s\nport %d\nkey omapi_key %s\nconnect\nnew host\nset name = \"%s\"\nopen\nremove\n",
		s.Server, s.Port, s.SharedKey, hostName(key))
	return s.execute(ctx, VerbRemove, script)
}

// NullifyLease expires the lease on ip by moving its end time to the epoch.
// omshell cannot delete leases. A lease that does not exist counts as expired.
func (s *Session) NullifyLease(ctx context.Context, ip string) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("%w: IP address %q", ErrInvalidArgument, ip)
	}
	s.logger.DebugContext(ctx, "Nullifying lease", "ip", addr.String())

	script := fmt.Sprintf(
		"server %s\nport %d\nkey omapi_key %s\nconnect\nnew lease\n"+
			"set ip-address = %s\nopen\nset ends = 00:00:00:00\nupdate\n",
		s.Server, s.Port, s.SharedKey, addr.String())
	return s.execute(ctx, VerbNullifyLease, script)
}

// execute runs a script and turns any unsatisfied outcome into *shell.ExternalProcessError.
func (s *Session) execute(ctx context.Context, verb Verb, script string) error {
	if s.SharedKey == "" || strings.ContainsAny(s.SharedKey, " \t\r\n") {
		return fmt.Errorf("%w: shared key must be a single non-empty token", ErrInvalidArgument)
	}

	output, err := s.run(ctx, script)
	if err != nil {
		metrics.OmshellCommandsTotal.WithLabelValues(string(verb), Failure.String()).Inc()
		return err
	}

	outcome := Classify(verb, output)
	metrics.OmshellCommandsTotal.WithLabelValues(string(verb), outcome.String()).Inc()
	if outcome.Satisfied() {
		if outcome != Success {
			s.logger.DebugContext(ctx, "omshell request already satisfied", "verb", verb, "outcome", outcome.String())
		}
		return nil
	}

	s.logger.WarnContext(ctx, "omshell request failed", "verb", verb, "outcome", outcome.String())
	return &shell.ExternalProcessError{
		ExitCode: 0,
		Command:  []string{s.Command},
		Output:   output,
	}
}

func (s *Session) run(ctx context.Context, script string) ([]byte, error) {
	return s.runner.Run(ctx, shell.Command{
		Path:  s.Command,
		Stdin: []byte(script),
	})
}

// hostName derives the server-side map name from a MAC address.
func hostName(mac string) string {
	return strings.ReplaceAll(mac, ":", "-")
}

func validateHost(ip, mac string) (string, string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", "", fmt.Errorf("%w: IP address %q", ErrInvalidArgument, ip)
	}
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return "", "", fmt.Errorf("%w: MAC address %q", ErrInvalidArgument, mac)
	}
	return addr.String(), hw.String(), nil
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, " \t\r\n\"\\") {
		return fmt.Errorf("%w: host map key %q", ErrInvalidArgument, key)
	}
	return nil
}
