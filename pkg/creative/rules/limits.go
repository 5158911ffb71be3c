package rules

// SpecLimits holds the static thresholds for every category.
type SpecLimits struct {
	Display  DisplayLimits
	Audio    AudioLimits
	VideoOLV VideoLimits
	VideoCTV VideoLimits
	HTML5    HTML5Limits
}

type DisplayLimits struct {
	MaxSizeKB           int
	SupportedMimeTypes  []string
	SupportedDimensions []string
}

type AudioLimits struct {
	MaxSizeMB            int
	SupportedMimeTypes   []string
	MinBitrateKbps       int
	MaxBitrateKbps       int
	AllowedDurationsSec  []float64
	DurationToleranceSec float64
}

// VideoLimits apply to online and connected-TV video. A zero
// MaxBitrateKbps means no upper bound; an empty RequiredResolution means
// the resolution is reported but not enforced.
type VideoLimits struct {
	MaxSizeMB          int
	MaxSizeGB          int
	SupportedMimeTypes []string
	MinBitrateKbps     int
	MaxBitrateKbps     int
	MinDurationSec     float64
	MaxDurationSec     float64
	RequiredResolution string
}

type HTML5Limits struct {
	MaxFileCount      int
	MaxUncompressedMB int
}

// DefaultLimits returns the built-in limits table. Each call returns a
// fresh copy.
func DefaultLimits() SpecLimits {
	return SpecLimits{
		Display: DisplayLimits{
			MaxSizeKB:          150,
			SupportedMimeTypes: []string{"image/jpeg", "image/png", "image/gif"},
			SupportedDimensions: []string{
				"160x600", "300x250", "728x90", "300x600", "1024x768", "768x1024", "336x280", "300x50",
				"320x50", "1000x90", "1020x250", "120x240", "120x60", "120x600", "120x90", "125x125",
				"125x83", "1280x100", "180x150", "180x500", "226x850", "230x230", "230x600", "234x60",
				"240x400", "250x250", "250x360", "300x100", "300x1050", "300x240", "300x60", "320x160",
				"320x240", "320x250", "320x320", "320x480", "320x80", "400x400", "440x220", "450x250",
				"468x400", "468x60", "480x250", "480x280", "480x320", "480x80", "519x225", "544x225",
				"550x340", "551x289", "555x111", "555x333", "600x75", "640x480", "720x300", "720x480",
				"750x200", "800x250", "88x31", "930x180", "960x325", "960x60", "970x250", "970x66",
				"970x90", "975x300", "980x120", "980x150", "980x240", "980x250", "980x400", "980x90",
				"994x250",
			},
		},
		Audio: AudioLimits{
			MaxSizeMB:            10,
			SupportedMimeTypes:   []string{"audio/mpeg", "audio/mp4", "audio/ogg", "audio/wav"},
			MinBitrateKbps:       128,
			MaxBitrateKbps:       1000,
			AllowedDurationsSec:  []float64{15, 30, 60},
			DurationToleranceSec: 0.5,
		},
		VideoOLV: VideoLimits{
			MaxSizeMB:          200,
			SupportedMimeTypes: []string{"video/mp4", "video/webm", "video/quicktime"},
			MinBitrateKbps:     500,
			MaxBitrateKbps:     3500,
			MinDurationSec:     5,
			MaxDurationSec:     300,
		},
		VideoCTV: VideoLimits{
			MaxSizeGB:          10,
			SupportedMimeTypes: []string{"video/mp4"},
			MinBitrateKbps:     1200,
			MinDurationSec:     5,
			MaxDurationSec:     300,
			RequiredResolution: "1920x1080",
		},
		HTML5: HTML5Limits{
			MaxFileCount:      100,
			MaxUncompressedMB: 12,
		},
	}
}
