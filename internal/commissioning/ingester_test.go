package commissioning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/rack/internal/domain"
	"github.com/jbweber/homelab/rack/internal/metrics"
	"github.com/jbweber/homelab/rack/internal/repository"
)

func newTestIngester(t *testing.T, registry *Registry) (*Ingester, *testEnv) {
	t.Helper()
	te := newTestEnv(t)
	return NewIngester(te.ds, registry, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}), te
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{
		ScriptCPUInfo, ScriptLSHW, ScriptVirtuality,
		ScriptBlockDevices, ScriptLLDP, ScriptNetworkInterfaces,
	}, r.Names())

	err := r.Register(ScriptLSHW, UpdateHardwareDetails)
	assert.Error(t, err)
	assert.Error(t, r.Register("", UpdateHardwareDetails))
	assert.Error(t, r.Register("10-custom", nil))
}

func TestIngester_StoresResultAndRunsHook(t *testing.T) {
	ingester, te := newTestIngester(t, nil)
	ctx := context.Background()

	require.NoError(t, ingester.Ingest(ctx, te.node.SystemID, ScriptCPUInfo, []byte(cpuinfoTwoProcessors), 0))

	result, err := te.env.Repos.Results.FindByNodeAndName(ctx, te.node.ID, ScriptCPUInfo)
	require.NoError(t, err)
	assert.Equal(t, []byte(cpuinfoTwoProcessors), result.Data)
	assert.Equal(t, 0, result.ScriptResult)
	assert.Equal(t, 2, te.reload(t).CPUCount)
}

func TestIngester_NonZeroExitStoresResultOnly(t *testing.T) {
	ingester, te := newTestIngester(t, nil)
	ctx := context.Background()

	require.NoError(t, ingester.Ingest(ctx, te.node.SystemID, ScriptCPUInfo, []byte(cpuinfoTwoProcessors), 2))

	result, err := te.env.Repos.Results.FindByNodeAndName(ctx, te.node.ID, ScriptCPUInfo)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ScriptResult)
	assert.Equal(t, 0, te.reload(t).CPUCount)
}

func TestIngester_UnknownScript(t *testing.T) {
	ingester, te := newTestIngester(t, nil)
	ctx := context.Background()

	require.NoError(t, ingester.Ingest(ctx, te.node.SystemID, "50-custom", []byte("hello"), 0))

	results, err := te.env.Repos.Results.FindByNodeID(ctx, te.node.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "50-custom", results[0].Name)
}

func TestIngester_UnknownNode(t *testing.T) {
	ingester, _ := newTestIngester(t, nil)
	before := testutil.ToFloat64(metrics.IngestionsTotal.WithLabelValues(ScriptLSHW, "unknown_node"))

	err := ingester.Ingest(context.Background(), "missing", ScriptLSHW, nil, 0)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.IngestionsTotal.WithLabelValues(ScriptLSHW, "unknown_node")))
}

func TestIngester_HookFailureRollsBack(t *testing.T) {
	registry := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, registry.Register("10-failing", func(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
		node.Hostname = "changed"
		if _, err := env.Repos.Nodes.Save(ctx, *node); err != nil {
			return err
		}
		return boom
	}))
	ingester, te := newTestIngester(t, registry)
	ctx := context.Background()

	err := ingester.Ingest(ctx, te.node.SystemID, "10-failing", []byte("x"), 0)
	assert.ErrorIs(t, err, boom)

	_, err = te.env.Repos.Results.FindByNodeAndName(ctx, te.node.ID, "10-failing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, "node-1", te.reload(t).Hostname)
}

func TestIngester_HookSeesSettings(t *testing.T) {
	registry := NewRegistry()
	var seen int64
	require.NoError(t, registry.Register("10-probe", func(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error {
		seen = env.MinBlockDeviceSize
		return nil
	}))
	te := newTestEnv(t)
	ingester := NewIngester(te.ds, registry, Options{MinBlockDeviceSize: 1024})

	require.NoError(t, ingester.Ingest(context.Background(), te.node.SystemID, "10-probe", nil, 0))
	assert.Equal(t, int64(1024), seen)
}
