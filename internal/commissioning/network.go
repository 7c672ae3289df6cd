package commissioning

import (
	"context"
	"errors"

	"github.com/jbweber/homelab/rack/internal/domain"
	"github.com/jbweber/homelab/rack/internal/repository"
)

// UpdateNetworkInterfaces reconciles the node's interfaces against `ip addr`
// output.
//
// Each reported MAC is owned by exactly one physical interface. An interface
// already carrying the MAC is moved to this node together with its VLAN and
// bond descendants and renamed, keeping its identity. Interfaces whose MAC was
// not reported are deleted, except VLANs and bonds stacked on an interface
// that was reported.
func UpdateNetworkInterfaces(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
	if exitStatus != 0 || node.SkipNetworking {
		return nil
	}
	links := ParseIPAddr(output)
	repos := env.Repos

	reported := make(map[string]int64, len(links))
	for _, link := range links {
		if _, seen := reported[link.MAC]; seen {
			continue
		}
		iface, err := claimInterface(ctx, repos, node.ID, link)
		if err != nil {
			return err
		}
		reported[link.MAC] = iface.ID

		if iface.IsPhysical() {
			if err := recordDiscoveredAddresses(ctx, repos, iface.ID, link); err != nil {
				return err
			}
		}
	}

	return removeStaleInterfaces(ctx, env, node.ID, reported)
}

// claimInterface returns the interface owning link.MAC, moved to nodeID and
// named after the link. A new physical interface is created when none exists.
func claimInterface(ctx context.Context, repos *repository.Repositories, nodeID int64, link LinkReport) (domain.Interface, error) {
	owner, err := macOwner(ctx, repos, link.MAC)
	if err != nil {
		return domain.Interface{}, err
	}
	if owner == nil {
		return repos.Interfaces.Save(ctx, domain.Interface{
			NodeID:     nodeID,
			Name:       link.Name,
			Type:       domain.InterfaceTypePhysical,
			MACAddress: link.MAC,
		})
	}

	if owner.NodeID != nodeID {
		if err := repos.Interfaces.MoveToNode(ctx, owner.ID, nodeID); err != nil {
			return domain.Interface{}, err
		}
		owner.NodeID = nodeID
	}
	if owner.Name != link.Name {
		owner.Name = link.Name
		return repos.Interfaces.Save(ctx, *owner)
	}
	return *owner, nil
}

// macOwner picks the interface that owns mac across all nodes. The most
// recently created physical interface wins and older physical duplicates are
// folded into it. Without a physical interface, a VLAN or bond holds the MAC
// in its own right only when none of its parents carries it.
func macOwner(ctx context.Context, repos *repository.Repositories, mac string) (*domain.Interface, error) {
	candidates, err := repos.Interfaces.FindByMAC(ctx, mac)
	if err != nil {
		return nil, err
	}

	var winner *domain.Interface
	var duplicates []domain.Interface
	for i := range candidates {
		c := &candidates[i]
		if !c.IsPhysical() {
			continue
		}
		if winner == nil || c.ID > winner.ID {
			if winner != nil {
				duplicates = append(duplicates, *winner)
			}
			winner = c
		} else {
			duplicates = append(duplicates, *c)
		}
	}
	if winner != nil {
		for _, dup := range duplicates {
			if err := repos.Interfaces.ReplaceParent(ctx, dup.ID, winner.ID); err != nil {
				return nil, err
			}
			if err := repos.Interfaces.DeleteByID(ctx, dup.ID); err != nil {
				return nil, err
			}
		}
		return winner, nil
	}

	for i := range candidates {
		c := &candidates[i]
		inherited, err := parentCarriesMAC(ctx, repos, *c, mac)
		if err != nil {
			return nil, err
		}
		if !inherited && (winner == nil || c.ID > winner.ID) {
			winner = c
		}
	}
	return winner, nil
}

func parentCarriesMAC(ctx context.Context, repos *repository.Repositories, iface domain.Interface, mac string) (bool, error) {
	for _, parentID := range iface.ParentIDs {
		parent, err := repos.Interfaces.FindByID(ctx, parentID)
		if err != nil {
			return false, err
		}
		if parent.MACAddress == mac {
			return true, nil
		}
	}
	return false, nil
}

// recordDiscoveredAddresses binds each reported address to the interface when
// a configured subnet contains it.
func recordDiscoveredAddresses(ctx context.Context, repos *repository.Repositories, interfaceID int64, link LinkReport) error {
	for _, prefix := range link.Addresses {
		addr := prefix.Addr()
		subnet, err := repos.Subnets.FindContaining(ctx, addr)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		exists, err := repos.IPAddresses.ExistsForInterface(ctx, interfaceID, addr.String())
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		_, err = repos.IPAddresses.Save(ctx, domain.IPAddress{
			InterfaceID: interfaceID,
			SubnetID:    &subnet.ID,
			AllocType:   domain.IPAddressDiscovered,
			IP:          addr.String(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// removeStaleInterfaces deletes the node's interfaces whose MAC was not
// reported. A VLAN or bond survives when one of its parents carries a reported
// MAC, and is re-parented onto that MAC's owner. All decisions are made before
// anything is deleted.
func removeStaleInterfaces(ctx context.Context, env *Env, nodeID int64, reported map[string]int64) error {
	repos := env.Repos
	current, err := repos.Interfaces.FindByNodeID(ctx, nodeID)
	if err != nil {
		return err
	}
	macByID := make(map[int64]string, len(current))
	for _, iface := range current {
		macByID[iface.ID] = iface.MACAddress
	}

	var stale []domain.Interface
	var reparented []domain.Interface
	for _, iface := range current {
		if _, ok := reported[iface.MACAddress]; ok && iface.MACAddress != "" {
			continue
		}
		if iface.IsPhysical() {
			stale = append(stale, iface)
			continue
		}

		keep := false
		changed := false
		parents := make([]int64, 0, len(iface.ParentIDs))
		for _, parentID := range iface.ParentIDs {
			parentMAC, ok := macByID[parentID]
			if !ok {
				parent, err := repos.Interfaces.FindByID(ctx, parentID)
				if err != nil {
					return err
				}
				parentMAC = parent.MACAddress
			}
			ownerID, survives := reported[parentMAC]
			if survives {
				keep = true
				if ownerID != parentID {
					parentID = ownerID
					changed = true
				}
			}
			parents = append(parents, parentID)
		}

		switch {
		case !keep:
			stale = append(stale, iface)
		case changed:
			iface.ParentIDs = dedupe(parents)
			reparented = append(reparented, iface)
		}
	}

	for _, iface := range reparented {
		if _, err := repos.Interfaces.Save(ctx, iface); err != nil {
			return err
		}
	}
	for _, iface := range stale {
		env.Logger.InfoContext(ctx, "removing unreported interface", "interface", iface.Name, "mac", iface.MACAddress)
		if err := repos.Interfaces.DeleteByID(ctx, iface.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
