//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
	reporedis "github.com/tendant/creative-analysis/pkg/creative/repo/redis"
	memorystorage "github.com/tendant/creative-analysis/pkg/creative/storage/memory"
)

func TestIntegration_Redis(t *testing.T) {
	ctx := context.Background()
	repo, err := reporedis.NewFromURL(getenv("REDIS_URL", "redis://localhost:6379/0"), reporedis.WithKeyPrefix("creative-it"))
	require.NoError(t, err)
	defer repo.Close()
	if err := repo.Ping(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	store := memorystorage.New()
	a, err := analyzer.New(analyzer.WithObjectStore(store), analyzer.WithMetadataStore(repo))
	require.NoError(t, err)

	id := uuid.NewString()
	require.NoError(t, a.SetSideMetadata(ctx, &creative.SideMetadata{ContentID: id, IsCtv: true, ObjectName: id + "-spot.png"}))
	require.NoError(t, a.SetSideMetadata(ctx, &creative.SideMetadata{ContentID: id, IsCtv: true}))

	meta, err := repo.GetSideMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id+"-spot.png", meta.ObjectName)

	rec, err := a.AnalyzeContent(ctx, analyzer.NewRequest(creative.Locator{Container: "uploads", Name: id + "-spot.png"}), pngBytes(t, 300, 250))
	require.NoError(t, err)
	assert.True(t, rec.IsCtv)

	stored, err := a.GetResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.Status, stored.Status)
}
