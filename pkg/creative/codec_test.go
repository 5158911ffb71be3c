package creative_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
)

func finishedRecord() *creative.AnalysisRecord {
	rec := creative.NewAnalysisRecord("id-1", "ad.jpg", creative.Locator{Container: "uploads", Name: "id-1-ad.jpg"}, 1024)
	rec.Category = creative.CategoryDisplay
	rec.MimeType = "image/jpeg"
	rec.Dimensions = &creative.Dimensions{Width: 300, Height: 250}
	rec.AddCheck(creative.ValidationCheck{CheckName: "Dimensions (Display)", Status: creative.CheckPass, Value: "300x250"})
	rec.Finalize()
	return rec
}

func TestEncodeDecodeRecord(t *testing.T) {
	rec := finishedRecord()
	data, err := creative.EncodeRecord(rec)
	require.NoError(t, err)

	got, err := creative.DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestEncodeRecord_RequiresContentID(t *testing.T) {
	_, err := creative.EncodeRecord(&creative.AnalysisRecord{})
	assert.ErrorIs(t, err, creative.ErrMissingContentID)
	_, err = creative.EncodeRecord(nil)
	assert.ErrorIs(t, err, creative.ErrMissingContentID)
}

func TestDecodeRecord_Corrupt(t *testing.T) {
	valid, err := creative.EncodeRecord(finishedRecord())
	require.NoError(t, err)

	mutate := func(f func(m map[string]any)) []byte {
		var env map[string]any
		require.NoError(t, json.Unmarshal(valid, &env))
		f(env)
		out, err := json.Marshal(env)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("{")},
		{name: "wrong version", data: mutate(func(m map[string]any) { m["schemaVersion"] = 99 })},
		{name: "unknown field", data: mutate(func(m map[string]any) { m["extra"] = true })},
		{name: "missing body", data: mutate(func(m map[string]any) { delete(m, "record") })},
		{name: "bad category", data: mutate(func(m map[string]any) {
			m["record"].(map[string]any)["category"] = "podcast"
		})},
		{name: "status disagrees with checks", data: mutate(func(m map[string]any) {
			m["record"].(map[string]any)["status"] = "Error"
		})},
		{name: "bad check status", data: mutate(func(m map[string]any) {
			checks := m["record"].(map[string]any)["validationChecks"].([]any)
			checks[0].(map[string]any)["status"] = "Maybe"
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := creative.DecodeRecord(tt.data)
			assert.ErrorIs(t, err, creative.ErrCorruptRecord)
		})
	}
}

func TestMergeSideMetadata(t *testing.T) {
	stored := &creative.SideMetadata{ContentID: "id", IsCtv: true, ObjectName: "id-spot.mp4"}

	merged := creative.MergeSideMetadata(stored, &creative.SideMetadata{ContentID: "id", IsCtv: false})
	assert.False(t, merged.IsCtv)
	assert.Equal(t, "id-spot.mp4", merged.ObjectName)
	assert.True(t, stored.IsCtv, "input must not be mutated")

	fresh := creative.MergeSideMetadata(nil, &creative.SideMetadata{ContentID: "id", IsCtv: true})
	assert.True(t, fresh.IsCtv)
}
