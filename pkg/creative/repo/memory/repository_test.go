package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/repo/memory"
)

func TestRepository_SideMetadataMerge(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	_, err := repo.GetSideMetadata(ctx, "c1")
	assert.ErrorIs(t, err, creative.ErrSideMetadataNotFound)

	require.NoError(t, repo.MergeSideMetadata(ctx, &creative.SideMetadata{ContentID: "c1", IsCtv: true, ObjectName: "c1.mp4"}))
	require.NoError(t, repo.MergeSideMetadata(ctx, &creative.SideMetadata{ContentID: "c1", IsCtv: false}))

	got, err := repo.GetSideMetadata(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, got.IsCtv)
	assert.Equal(t, "c1.mp4", got.ObjectName)

	got.ObjectName = "mutated"
	again, err := repo.GetSideMetadata(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1.mp4", again.ObjectName)

	assert.ErrorIs(t, repo.MergeSideMetadata(ctx, &creative.SideMetadata{}), creative.ErrMissingContentID)
}

func TestRepository_ReplaceRecord(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	_, err := repo.GetRecord(ctx, "c1")
	assert.ErrorIs(t, err, creative.ErrRecordNotFound)

	first := creative.NewAnalysisRecord("c1", "banner.png", creative.Locator{Container: "uploads", Name: "c1.png"}, 10)
	first.AddCheck(creative.ValidationCheck{CheckName: "File Size (Display)", Status: creative.CheckFail})
	first.Finalize()
	require.NoError(t, repo.ReplaceRecord(ctx, first))

	second := creative.NewAnalysisRecord("c1", "banner.png", creative.Locator{Container: "uploads", Name: "c1.png"}, 10)
	second.AddCheck(creative.ValidationCheck{CheckName: "File Size (Display)", Status: creative.CheckPass})
	second.Finalize()
	require.NoError(t, repo.ReplaceRecord(ctx, second))

	got, err := repo.GetRecord(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, creative.StatusCompleted, got.Status)
	require.Len(t, got.ValidationChecks, 1)
	assert.Equal(t, creative.CheckPass, got.ValidationChecks[0].Status)
}

func TestRepository_CorruptRecord(t *testing.T) {
	repo := memory.New()
	repo.SetRawRecord("c1", []byte(`{"schemaVersion":9}`))

	_, err := repo.GetRecord(context.Background(), "c1")
	assert.ErrorIs(t, err, creative.ErrCorruptRecord)
}

func TestRepositoryConcurrency(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			rec := creative.NewAnalysisRecord(id, id, creative.Locator{Container: "uploads", Name: id}, 1)
			rec.AddCheck(creative.ValidationCheck{CheckName: "File Type (Unknown)", Status: creative.CheckWarn})
			rec.Finalize()
			assert.NoError(t, repo.ReplaceRecord(ctx, rec))
			assert.NoError(t, repo.MergeSideMetadata(ctx, &creative.SideMetadata{ContentID: id, IsCtv: i%2 == 0}))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		_, err := repo.GetRecord(ctx, fmt.Sprintf("c%d", i))
		assert.NoError(t, err)
	}
}

func TestRepository_ListRecordsByStatus(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		rec := creative.NewAnalysisRecord(id, id+".png", creative.Locator{Container: "uploads", Name: id + ".png"}, 1)
		if id != "c" {
			rec.AddCheck(creative.ValidationCheck{CheckName: "Retrieval", Status: creative.CheckFail})
		}
		rec.Finalize()
		require.NoError(t, repo.ReplaceRecord(ctx, rec))
	}
	repo.SetRawRecord("d", []byte("garbage"))

	ids, err := repo.ListRecordsByStatus(ctx, creative.StatusError)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = repo.ListRecordsByStatus(ctx, creative.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)
}
