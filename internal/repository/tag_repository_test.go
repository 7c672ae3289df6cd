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

func TestTagRepository_GetOrCreate(t *testing.T) {
	ds := testutil.NewTestDatastore(t)
	repo := repository.NewTagRepository(ds.DB)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "virtual")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := repo.GetOrCreate(ctx, "virtual")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = repo.Save(ctx, domain.Tag{Name: "virtual"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestTagRepository_NodeAssignment(t *testing.T) {
	ds := testutil.NewTestDatastore(t)
	repo := repository.NewTagRepository(ds.DB)
	ctx := context.Background()
	node := testutil.CreateTestNode(t, ds, "a", "alpha")

	tag, err := repo.GetOrCreate(ctx, "virtual")
	require.NoError(t, err)

	require.NoError(t, repo.AddToNode(ctx, node.ID, tag.ID))
	require.NoError(t, repo.AddToNode(ctx, node.ID, tag.ID))

	tags, err := repo.FindByNodeID(ctx, node.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "virtual", tags[0].Name)

	require.NoError(t, repo.RemoveFromNode(ctx, node.ID, tag.ID))
	require.NoError(t, repo.RemoveFromNode(ctx, node.ID, tag.ID))

	tags, err = repo.FindByNodeID(ctx, node.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}
