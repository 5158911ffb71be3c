package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	redisrepo "github.com/tendant/creative-analysis/pkg/creative/repo/redis"
)

func newRepo(t *testing.T) (*redisrepo.Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisrepo.New(client, redisrepo.WithKeyPrefix("test")), mr
}

func TestRepository_SideMetadata(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetSideMetadata(ctx, "c1")
	assert.ErrorIs(t, err, creative.ErrSideMetadataNotFound)

	require.NoError(t, repo.MergeSideMetadata(ctx, &creative.SideMetadata{ContentID: "c1", IsCtv: true, ObjectName: "c1.mp4"}))
	require.NoError(t, repo.MergeSideMetadata(ctx, &creative.SideMetadata{ContentID: "c1", IsCtv: false}))

	got, err := repo.GetSideMetadata(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, &creative.SideMetadata{ContentID: "c1", IsCtv: false, ObjectName: "c1.mp4"}, got)
	assert.Equal(t, "false", mr.HGet("test:side:c1", "is_ctv"))

	assert.ErrorIs(t, repo.MergeSideMetadata(ctx, nil), creative.ErrMissingContentID)
}

func TestRepository_Records(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetRecord(ctx, "c1")
	assert.ErrorIs(t, err, creative.ErrRecordNotFound)

	rec := creative.NewAnalysisRecord("c1", "ad.zip", creative.Locator{Container: "uploads", Name: "c1.zip"}, 2048)
	rec.Category = creative.CategoryHTML5
	rec.AddCheck(creative.ValidationCheck{CheckName: "ZIP Processing", Status: creative.CheckFail, Message: "Could not process ZIP file."})
	rec.Finalize()
	require.NoError(t, repo.ReplaceRecord(ctx, rec))

	got, err := repo.GetRecord(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, mr.Set("test:record:c1", "{not json"))
	_, err = repo.GetRecord(ctx, "c1")
	assert.ErrorIs(t, err, creative.ErrCorruptRecord)
}

func TestNewFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	repo, err := redisrepo.NewFromURL("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer repo.Close()
	assert.NoError(t, repo.Ping(context.Background()))

	_, err = redisrepo.NewFromURL("http://nope")
	assert.Error(t, err)
}
