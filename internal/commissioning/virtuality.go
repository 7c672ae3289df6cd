package commissioning

import (
	"bytes"
	"context"

	"github.com/jbweber/homelab/rack/internal/domain"
)

// VirtualTag marks nodes that run under a hypervisor.
const VirtualTag = "virtual"

// SetVirtualTag adds or removes the virtual tag based on the virtuality probe.
func SetVirtualTag(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
	if exitStatus != 0 {
		return nil
	}

	var add bool
	switch {
	case bytes.Contains(output, []byte("notvirtual")):
	case bytes.Contains(output, []byte("virtual")):
		add = true
	default:
		env.Logger.WarnContext(ctx, "Neither 'virtual' nor 'notvirtual' appeared in the captured virtuality output for node "+node.SystemID)
		return nil
	}

	tag, err := env.Repos.Tags.GetOrCreate(ctx, VirtualTag)
	if err != nil {
		return err
	}
	if add {
		return env.Repos.Tags.AddToNode(ctx, node.ID, tag.ID)
	}
	return env.Repos.Tags.RemoveFromNode(ctx, node.ID, tag.ID)
}
