package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/rack/internal/domain"
	"github.com/jbweber/homelab/rack/internal/repository"
	"github.com/jbweber/homelab/rack/internal/testutil"
)

func TestIPAddressRepository_Save(t *testing.T) {
	ds := testutil.NewTestDatastore(t)
	repos := ds.Repositories()
	ctx := context.Background()
	node := testutil.CreateTestNode(t, ds, "a", "alpha")
	subnet := testutil.CreateTestSubnet(t, ds, "10.0.0.0/24")
	iface := saveInterface(t, repos.Interfaces, domain.Interface{NodeID: node.ID, Name: "eth0", Type: domain.InterfaceTypePhysical, MACAddress: "00:00:00:00:00:01"})

	addr, err := repos.IPAddresses.Save(ctx, domain.IPAddress{
		InterfaceID: iface.ID,
		SubnetID:    &subnet.ID,
		AllocType:   domain.IPAddressDiscovered,
		IP:          "10.0.0.5",
	})
	require.NoError(t, err)
	assert.NotZero(t, addr.ID)

	found, err := repos.IPAddresses.FindByID(ctx, addr.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", found.IP)
	require.NotNil(t, found.SubnetID)
	assert.Equal(t, subnet.ID, *found.SubnetID)
	assert.Equal(t, domain.IPAddressDiscovered, found.AllocType)
	assert.NotEmpty(t, found.CreatedAt)

	exists, err := repos.IPAddresses.ExistsForInterface(ctx, iface.ID, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repos.IPAddresses.Save(ctx, domain.IPAddress{InterfaceID: iface.ID, AllocType: domain.IPAddressDiscovered, IP: "10.0.0.5"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	bySubnet, err := repos.IPAddresses.FindBySubnetID(ctx, subnet.ID)
	require.NoError(t, err)
	assert.Len(t, bySubnet, 1)
}

func TestIPAddressRepository_Validation(t *testing.T) {
	ds := testutil.NewTestDatastore(t)
	repo := repository.NewIPAddressRepository(ds.DB)
	ctx := context.Background()

	_, err := repo.Save(ctx, domain.IPAddress{AllocType: domain.IPAddressDiscovered, IP: "10.0.0.1"})
	assert.ErrorIs(t, err, repository.ErrInvalidEntity)

	_, err = repo.Save(ctx, domain.IPAddress{InterfaceID: 1, AllocType: domain.IPAddressDiscovered, IP: "not-an-ip"})
	assert.ErrorIs(t, err, repository.ErrInvalidEntity)
}

func TestIPAddressRepository_SubnetDeletionKeepsAddress(t *testing.T) {
	ds := testutil.NewTestDatastore(t)
	repos := ds.Repositories()
	ctx := context.Background()
	node := testutil.CreateTestNode(t, ds, "a", "alpha")
	subnet := testutil.CreateTestSubnet(t, ds, "10.0.0.0/24")
	iface := saveInterface(t, repos.Interfaces, domain.Interface{NodeID: node.ID, Name: "eth0", Type: domain.InterfaceTypePhysical, MACAddress: "00:00:00:00:00:01"})

	addr, err := repos.IPAddresses.Save(ctx, domain.IPAddress{InterfaceID: iface.ID, SubnetID: &subnet.ID, AllocType: domain.IPAddressDiscovered, IP: "10.0.0.5"})
	require.NoError(t, err)

	require.NoError(t, repos.Subnets.DeleteByID(ctx, subnet.ID))

	found, err := repos.IPAddresses.FindByID(ctx, addr.ID)
	require.NoError(t, err)
	assert.Nil(t, found.SubnetID)

	require.NoError(t, repos.Interfaces.DeleteByID(ctx, iface.ID))
	_, err = repos.IPAddresses.FindByID(ctx, addr.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
