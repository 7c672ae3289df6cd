package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/rack/internal/datastore"
	"github.com/jbweber/homelab/rack/internal/domain"
)

// NewTestDatastore returns a migrated in-memory datastore private to the test.
// It is closed when the test finishes.
func NewTestDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()

	ds, err := datastore.New(NewTestDSN(t.Name()))
	require.NoError(t, err, "failed to open test datastore")
	t.Cleanup(func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test datastore: %v", err)
		}
	})
	return ds
}

// CreateTestNode stores a node with the given system ID and hostname.
func CreateTestNode(t *testing.T, ds *datastore.Datastore, systemID, hostname string) domain.Node {
	t.Helper()

	node, err := ds.Repositories().Nodes.Save(context.Background(), domain.Node{
		SystemID: systemID,
		Hostname: hostname,
	})
	require.NoError(t, err)
	return node
}

// CreateTestSubnet stores a subnet with the given CIDR, named after it.
func CreateTestSubnet(t *testing.T, ds *datastore.Datastore, cidr string) domain.Subnet {
	t.Helper()

	subnet, err := ds.Repositories().Subnets.Save(context.Background(), domain.Subnet{
		Name: cidr,
		CIDR: cidr,
	})
	require.NoError(t, err)
	return subnet
}
