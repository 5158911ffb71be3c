package creative_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/creative-analysis/pkg/creative"
)

func TestParseObjectName(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantID      string
		wantDisplay string
	}{
		{
			name:        "uuid prefix",
			input:       "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f-banner 300x250.jpg",
			wantID:      "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f",
			wantDisplay: "banner 300x250.jpg",
		},
		{
			name:        "nested path uses base name",
			input:       "uploads/2024/3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f-spot.mp3",
			wantID:      "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f",
			wantDisplay: "spot.mp3",
		},
		{
			name:        "no uuid prefix",
			input:       "banner.jpg",
			wantID:      "banner.jpg",
			wantDisplay: "banner.jpg",
		},
		{
			name:        "bare uuid",
			input:       "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f",
			wantID:      "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f",
			wantDisplay: "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f",
		},
		{
			name:        "uuid shaped but invalid",
			input:       "zzzzzzzz-5a4d-4c3b-9e2f-1a2b3c4d5e6f-ad.png",
			wantID:      "zzzzzzzz-5a4d-4c3b-9e2f-1a2b3c4d5e6f-ad.png",
			wantDisplay: "zzzzzzzz-5a4d-4c3b-9e2f-1a2b3c4d5e6f-ad.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, display := creative.ParseObjectName(tt.input)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantDisplay, display)
		})
	}
}

func TestIsBackupObjectName(t *testing.T) {
	id := "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f"
	assert.True(t, creative.IsBackupObjectName(id+"-backup.jpg"))
	assert.True(t, creative.IsBackupObjectName("backups/"+id+"-backup.PNG"))
	assert.True(t, creative.IsBackupObjectName(creative.BackupContentID(id, ".GIF")))
	assert.False(t, creative.IsBackupObjectName(id+"-backup.zip"))
	assert.False(t, creative.IsBackupObjectName(id+"-banner.jpg"))
}

func TestLocatorFromURL(t *testing.T) {
	loc, err := creative.LocatorFromURL("https://acct.blob.core.windows.net/uploads/3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f-my%20banner.jpg")
	require.NoError(t, err)
	assert.Equal(t, "uploads", loc.Container)
	assert.Equal(t, "3f2b8c1e-5a4d-4c3b-9e2f-1a2b3c4d5e6f-my banner.jpg", loc.Name)

	loc, err = creative.LocatorFromURL("https://host/uploads/nested/dir/a%2Bb.png")
	require.NoError(t, err)
	assert.Equal(t, "nested/dir/a+b.png", loc.Name)

	_, err = creative.LocatorFromURL("https://host/only-container")
	assert.ErrorIs(t, err, creative.ErrInvalidLocator)
}

func TestDecodeObjectName_DecodesOnce(t *testing.T) {
	name, err := creative.DecodeObjectName("100%2525%20off.jpg")
	require.NoError(t, err)
	assert.Equal(t, "100%25 off.jpg", name)
}
