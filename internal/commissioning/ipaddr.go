package commissioning

import (
	"bufio"
	"bytes"
	"net"
	"net/netip"
	"regexp"
	"strings"
)

// LinkReport is one link from `ip addr` output that carries an Ethernet address.
type LinkReport struct {
	Name      string
	MAC       string
	Addresses []netip.Prefix
}

var linkHeader = regexp.MustCompile(`^\d+:\s+([^:\s]+):\s+<`)

// ParseIPAddr extracts Ethernet links from `ip addr` output in the order they
// appear. Loopback links and links without a hardware address are left out.
// Stacked links such as eth0.10@eth0 are reported under their own name.
func ParseIPAddr(output []byte) []LinkReport {
	var links []LinkReport
	var current *LinkReport

	flush := func() {
		if current != nil && current.MAC != "" {
			links = append(links, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if m := linkHeader.FindStringSubmatch(line); m != nil {
			flush()
			name, _, _ := strings.Cut(m[1], "@")
			current = &LinkReport{Name: name}
			continue
		}
		if current == nil {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "link/ether":
			if hw, err := net.ParseMAC(fields[1]); err == nil && len(hw) == 6 {
				current.MAC = hw.String()
			}
		case "inet", "inet6":
			if prefix, err := netip.ParsePrefix(fields[1]); err == nil {
				current.Addresses = append(current.Addresses, prefix)
			}
		}
	}
	flush()
	return links
}
