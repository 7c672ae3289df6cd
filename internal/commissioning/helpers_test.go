package commissioning

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/rack/internal/datastore"
	"github.com/jbweber/homelab/rack/internal/domain"
	"github.com/jbweber/homelab/rack/internal/testutil"
)

// testEnv bundles a fresh datastore, a hook environment bound to it and the
// captured log output.
type testEnv struct {
	ds   *datastore.Datastore
	env  *Env
	logs *bytes.Buffer
	node domain.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ds := testutil.NewTestDatastore(t)
	logs := &bytes.Buffer{}
	return &testEnv{
		ds: ds,
		env: &Env{
			Repos:              ds.Repositories(),
			Logger:             slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
			MinBlockDeviceSize: DefaultMinBlockDeviceSize,
		},
		logs: logs,
		node: testutil.CreateTestNode(t, ds, "node-1", "node-1"),
	}
}

// reload returns the stored copy of the test node.
func (te *testEnv) reload(t *testing.T) domain.Node {
	t.Helper()
	node, err := te.env.Repos.Nodes.FindByID(context.Background(), te.node.ID)
	require.NoError(t, err)
	return node
}
