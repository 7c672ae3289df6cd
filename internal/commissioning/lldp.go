package commissioning

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/jbweber/homelab/rack/internal/domain"
)

type lldpDocument struct {
	Interfaces []struct {
		Name    string `xml:"name,attr"`
		Chassis struct {
			IDs []struct {
				Type  string `xml:"type,attr"`
				Value string `xml:",chardata"`
			} `xml:"id"`
		} `xml:"chassis"`
	} `xml:"interface"`
}

// ExtractRouterMACs returns the chassis MAC addresses of LLDP neighbours in
// lldpctl -f xml output.
func ExtractRouterMACs(output []byte) ([]string, error) {
	var doc lldpDocument
	if err := xml.Unmarshal(bytes.TrimSpace(output), &doc); err != nil {
		return nil, fmt.Errorf("invalid lldp data: %w", err)
	}
	routers := []string{}
	for _, iface := range doc.Interfaces {
		for _, id := range iface.Chassis.IDs {
			if id.Type == "mac" {
				routers = append(routers, strings.ToLower(strings.TrimSpace(id.Value)))
			}
		}
	}
	return routers, nil
}

// UpdateRouters records the node's LLDP neighbours. Empty output leaves the
// recorded routers alone.
func UpdateRouters(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
	if exitStatus != 0 || len(bytes.TrimSpace(output)) == 0 {
		return nil
	}
	routers, err := ExtractRouterMACs(output)
	if err != nil {
		env.Logger.ErrorContext(ctx, "Invalid lldp data", "error", err)
		return nil
	}
	node.Routers = routers
	saved, err := env.Repos.Nodes.Save(ctx, *node)
	if err != nil {
		return err
	}
	*node = saved
	return nil
}
