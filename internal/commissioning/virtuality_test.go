package commissioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/rack/internal/repository"
)

func nodeTagNames(t *testing.T, te *testEnv) []string {
	t.Helper()
	tags, err := te.env.Repos.Tags.FindByNodeID(context.Background(), te.node.ID)
	require.NoError(t, err)
	names := []string{}
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

func TestSetVirtualTag(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, SetVirtualTag(ctx, te.env, &te.node, []byte("virtual\n"), 0))
	assert.Equal(t, []string{VirtualTag}, nodeTagNames(t, te))

	require.NoError(t, SetVirtualTag(ctx, te.env, &te.node, []byte("virtual\n"), 0))
	assert.Equal(t, []string{VirtualTag}, nodeTagNames(t, te))

	require.NoError(t, SetVirtualTag(ctx, te.env, &te.node, []byte("notvirtual\n"), 0))
	assert.Empty(t, nodeTagNames(t, te))
}

func TestSetVirtualTag_Unrecognised(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, SetVirtualTag(ctx, te.env, &te.node, []byte("virtual"), 0))
	require.NoError(t, SetVirtualTag(ctx, te.env, &te.node, []byte("something else"), 0))

	assert.Equal(t, []string{VirtualTag}, nodeTagNames(t, te))
	assert.Contains(t, te.logs.String(), "Neither 'virtual' nor 'notvirtual' appeared")
	assert.Contains(t, te.logs.String(), te.node.SystemID)
}

func TestSetVirtualTag_UnrecognisedCreatesNoTag(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, SetVirtualTag(ctx, te.env, &te.node, []byte("something else"), 0))

	_, err := te.env.Repos.Tags.FindByName(ctx, VirtualTag)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
