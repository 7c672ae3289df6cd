package commissioning

import (
	"context"
	"regexp"

	"github.com/jbweber/homelab/rack/internal/domain"
)

var processorLine = regexp.MustCompile(`(?m)^processor\s*:\s*\d+\s*$`)

// CountProcessors returns the number of processor stanzas in /proc/cpuinfo output.
func CountProcessors(output []byte) int {
	return len(processorLine.FindAll(output, -1))
}

// ParseCPUInfo sets the node's CPU count from /proc/cpuinfo output.
func ParseCPUInfo(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
	if exitStatus != 0 {
		return nil
	}
	node.CPUCount = CountProcessors(output)
	saved, err := env.Repos.Nodes.Save(ctx, *node)
	if err != nil {
		return err
	}
	*node = saved
	return nil
}
