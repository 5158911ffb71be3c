// Package rules turns extracted creative metadata into validation checks.
//
// Evaluation is pure: the same category and facts always produce the same
// checks in the same order.
package rules

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/extract"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// Facts are the extracted metadata the rules evaluate.
type Facts struct {
	MimeType  string
	SizeBytes int64

	// Dimensions from the image header. Nil for display means the header
	// could not be read.
	Dimensions *creative.Dimensions

	// Media is nil when probing failed.
	Media *extract.MediaInfo

	// Archive is nil when the bundle could not be opened.
	Archive *extract.ArchiveInfo
}

// Engine evaluates facts against a limits table.
type Engine struct {
	limits SpecLimits
}

// New returns an Engine over limits.
func New(limits SpecLimits) *Engine {
	return &Engine{limits: limits}
}

var defaultEngine = New(DefaultLimits())

// Evaluate runs the built-in limits.
func Evaluate(category creative.Category, facts Facts) []creative.ValidationCheck {
	return defaultEngine.Evaluate(category, facts)
}

// Evaluate returns the checks for category in a fixed order.
func (e *Engine) Evaluate(category creative.Category, facts Facts) []creative.ValidationCheck {
	switch category {
	case creative.CategoryDisplay:
		return e.display(facts)
	case creative.CategoryAudio:
		return e.audio(facts)
	case creative.CategoryVideoOLV:
		return e.video(category, e.limits.VideoOLV, facts)
	case creative.CategoryVideoCTV:
		return e.video(category, e.limits.VideoCTV, facts)
	case creative.CategoryHTML5:
		return e.html5(facts)
	case creative.CategoryUnknown:
		return unknown(facts)
	}
	return unknown(facts)
}

func (e *Engine) display(f Facts) []creative.ValidationCheck {
	l := e.limits.Display
	checks := []creative.ValidationCheck{
		fileTypeCheck(creative.CategoryDisplay, f.MimeType, l.SupportedMimeTypes),
	}

	if f.Dimensions == nil {
		checks = append(checks, creative.ValidationCheck{
			CheckName: "Dimensions",
			Status:    creative.CheckFail,
			Message:   "Could not read image dimensions.",
		})
	} else {
		dim := f.Dimensions.String()
		c := creative.ValidationCheck{
			CheckName: "Dimensions (Display)",
			Value:     dim,
			Limit:     "See supported list",
		}
		if slices.Contains(l.SupportedDimensions, dim) {
			c.Status = creative.CheckPass
			c.Message = fmt.Sprintf("Dimensions %s are supported.", dim)
		} else {
			c.Status = creative.CheckFail
			c.Message = fmt.Sprintf("Dimensions %s are NOT supported for Display.", dim)
		}
		checks = append(checks, c)
	}

	return append(checks, sizeCheck("File Size (Display)", f.SizeBytes, int64(l.MaxSizeKB)*kib, kib, "KB", l.MaxSizeKB))
}

func (e *Engine) audio(f Facts) []creative.ValidationCheck {
	l := e.limits.Audio
	checks := []creative.ValidationCheck{
		fileTypeCheck(creative.CategoryAudio, f.MimeType, l.SupportedMimeTypes),
		{
			CheckName: "Dimensions (Audio)",
			Status:    creative.CheckNotApplicable,
			Message:   "Dimension check does not apply to audio.",
		},
		sizeCheck("File Size (Audio)", f.SizeBytes, int64(l.MaxSizeMB)*mib, mib, "MB", l.MaxSizeMB),
	}

	if f.Media == nil {
		const msg = "Could not read audio metadata (duration/bitrate)."
		return append(checks,
			creative.ValidationCheck{CheckName: "Duration (Audio)", Status: creative.CheckFail, Message: msg},
			creative.ValidationCheck{CheckName: "Bitrate (Audio)", Status: creative.CheckFail, Message: msg},
		)
	}

	if d := f.Media.Duration; d != nil {
		allowed := make([]string, len(l.AllowedDurationsSec))
		ok := false
		for i, a := range l.AllowedDurationsSec {
			allowed[i] = formatNumber(a)
			if math.Abs(*d-a) < l.DurationToleranceSec {
				ok = true
			}
		}
		c := creative.ValidationCheck{
			CheckName: "Duration (Audio)",
			Value:     fmt.Sprintf("%.1fs", *d),
			Limit:     strings.Join(allowed, ", ") + " sec",
		}
		if ok {
			c.Status = creative.CheckPass
			c.Message = fmt.Sprintf("Duration %.1fs is allowed.", *d)
		} else {
			c.Status = creative.CheckFail
			c.Message = fmt.Sprintf("Duration %.1fs is not one of the allowed durations.", *d)
		}
		checks = append(checks, c)
	} else {
		checks = append(checks, undetermined("Duration (Audio)", "duration"))
	}

	return append(checks, bitrateCheck("Bitrate (Audio)", f.Media.BitrateKbps, l.MinBitrateKbps, l.MaxBitrateKbps))
}

func (e *Engine) video(category creative.Category, l VideoLimits, f Facts) []creative.ValidationCheck {
	label := category.Label()
	checks := []creative.ValidationCheck{fileTypeCheck(category, f.MimeType, l.SupportedMimeTypes)}

	name := "File Size (" + label + ")"
	if l.MaxSizeGB > 0 {
		checks = append(checks, sizeCheck(name, f.SizeBytes, int64(l.MaxSizeGB)*gib, gib, "GB", l.MaxSizeGB))
	} else {
		checks = append(checks, sizeCheck(name, f.SizeBytes, int64(l.MaxSizeMB)*mib, mib, "MB", l.MaxSizeMB))
	}

	if f.Media == nil {
		return append(checks, creative.ValidationCheck{
			CheckName: "Metadata (" + label + ")",
			Status:    creative.CheckFail,
			Message:   "Could not read video metadata (duration/bitrate/resolution).",
		})
	}

	name = "Duration (" + label + ")"
	if d := f.Media.Duration; d != nil {
		c := creative.ValidationCheck{
			CheckName: name,
			Value:     fmt.Sprintf("%.1fs", *d),
			Limit:     fmt.Sprintf("%s-%s sec", formatNumber(l.MinDurationSec), formatNumber(l.MaxDurationSec)),
		}
		if *d >= l.MinDurationSec && *d <= l.MaxDurationSec {
			c.Status = creative.CheckPass
			c.Message = fmt.Sprintf("Duration %.1fs is within range.", *d)
		} else {
			c.Status = creative.CheckFail
			c.Message = fmt.Sprintf("Duration %.1fs is outside allowed range.", *d)
		}
		checks = append(checks, c)
	} else {
		checks = append(checks, undetermined(name, "duration"))
	}

	checks = append(checks, bitrateCheck("Bitrate ("+label+")", f.Media.BitrateKbps, l.MinBitrateKbps, l.MaxBitrateKbps))

	name = "Resolution (" + label + ")"
	dims := f.Media.Dimensions()
	switch {
	case dims == nil:
		checks = append(checks, undetermined(name, "resolution"))
	case l.RequiredResolution == "":
		checks = append(checks, creative.ValidationCheck{
			CheckName: name,
			Status:    creative.CheckPass,
			Message:   fmt.Sprintf("Resolution is %s.", dims),
			Value:     dims.String(),
		})
	default:
		c := creative.ValidationCheck{CheckName: name, Value: dims.String(), Limit: l.RequiredResolution}
		if dims.String() == l.RequiredResolution {
			c.Status = creative.CheckPass
			c.Message = fmt.Sprintf("Resolution %s matches required %s.", dims, l.RequiredResolution)
		} else {
			c.Status = creative.CheckFail
			c.Message = fmt.Sprintf("Resolution %s does not match required %s.", dims, l.RequiredResolution)
		}
		checks = append(checks, c)
	}
	return checks
}

func (e *Engine) html5(f Facts) []creative.ValidationCheck {
	a := f.Archive
	if a == nil {
		return []creative.ValidationCheck{{
			CheckName: "ZIP Processing",
			Status:    creative.CheckFail,
			Message:   "Could not process ZIP file.",
		}}
	}
	l := e.limits.HTML5

	var checks []creative.ValidationCheck
	count := creative.ValidationCheck{
		CheckName: "File Count (HTML5)",
		Value:     strconv.Itoa(a.FileCount),
		Limit:     strconv.Itoa(l.MaxFileCount),
	}
	if a.FileCount > l.MaxFileCount {
		count.Status = creative.CheckFail
		count.Message = fmt.Sprintf("Exceeds limit of %d files.", l.MaxFileCount)
	} else {
		count.Status = creative.CheckPass
		count.Message = fmt.Sprintf("Contains %d files.", a.FileCount)
	}
	checks = append(checks, count)

	if a.PrimaryHTML == "" {
		checks = append(checks, creative.ValidationCheck{
			CheckName: "Primary HTML (HTML5)",
			Status:    creative.CheckFail,
			Message:   "No primary HTML file found in the root of the ZIP.",
		})
	} else {
		checks = append(checks, creative.ValidationCheck{
			CheckName: "Primary HTML (HTML5)",
			Status:    creative.CheckPass,
			Message:   "Found primary HTML: " + a.PrimaryHTML,
			Value:     a.PrimaryHTML,
		})
		if a.AdSize != "" {
			checks = append(checks, creative.ValidationCheck{
				CheckName: "Ad Size Meta (HTML5)",
				Status:    creative.CheckPass,
				Message:   "Found ad.size meta tag: " + a.AdSize,
				Value:     a.AdSize,
			})
		} else {
			checks = append(checks, creative.ValidationCheck{
				CheckName: "Ad Size Meta (HTML5)",
				Status:    creative.CheckFail,
				Message:   "Required ad.size meta tag not found or invalid.",
			})
		}
		if a.ClickTag {
			checks = append(checks, creative.ValidationCheck{
				CheckName: "ClickTag (HTML5)",
				Status:    creative.CheckPass,
				Message:   "clickTAG/clickTag variable usage detected (basic check).",
				Value:     "Detected",
			})
		} else {
			checks = append(checks, creative.ValidationCheck{
				CheckName: "ClickTag (HTML5)",
				Status:    creative.CheckWarn,
				Message:   "clickTAG/clickTag variable usage not detected (basic check).",
			})
		}
	}

	for _, name := range a.Disallowed {
		checks = append(checks, creative.ValidationCheck{
			CheckName: "Allowed Files (HTML5)",
			Status:    creative.CheckFail,
			Message:   "Disallowed file type found: " + name,
			Value:     name,
		})
	}

	size := sizeCheck("Uncompressed Size (HTML5)", a.TotalUncompressed, int64(l.MaxUncompressedMB)*mib, mib, "MB", l.MaxUncompressedMB)
	if size.Status == creative.CheckFail {
		size.Message = fmt.Sprintf("Total uncompressed size (%s) exceeds limit.", size.Value)
	} else {
		size.Message = fmt.Sprintf("Total uncompressed size (%s) is within limit.", size.Value)
	}
	checks = append(checks, size)

	if a.BackupName != "" {
		checks = append(checks, creative.ValidationCheck{
			CheckName: "Backup Image (HTML5)",
			Status:    creative.CheckPass,
			Message:   "Potential backup image identified: " + a.BackupName,
			Value:     a.BackupName,
		})
	} else {
		checks = append(checks, creative.ValidationCheck{
			CheckName: "Backup Image (HTML5)",
			Status:    creative.CheckWarn,
			Message:   "No image file found in ZIP to identify as backup.",
		})
	}
	return checks
}

func unknown(f Facts) []creative.ValidationCheck {
	mime := f.MimeType
	if mime == "" {
		mime = "unknown"
	}
	return []creative.ValidationCheck{
		{
			CheckName: "File Type (Unknown)",
			Status:    creative.CheckWarn,
			Message:   fmt.Sprintf("No validation rules defined for type %s.", mime),
			Value:     f.MimeType,
		},
		{CheckName: "Dimensions (Unknown)", Status: creative.CheckNotApplicable, Message: "Checks not applicable."},
		{CheckName: "File Size (Unknown)", Status: creative.CheckNotApplicable, Message: "Checks not applicable."},
	}
}

func fileTypeCheck(category creative.Category, mime string, supported []string) creative.ValidationCheck {
	c := creative.ValidationCheck{
		CheckName: "File Type (" + category.Label() + ")",
		Value:     mime,
		Limit:     strings.Join(supported, ", "),
	}
	if mime != "" && slices.Contains(supported, mime) {
		c.Status = creative.CheckPass
		c.Message = fmt.Sprintf("Type %s is supported.", mime)
		return c
	}
	shown := mime
	if shown == "" {
		shown = "unknown"
	}
	c.Status = creative.CheckFail
	c.Message = fmt.Sprintf("Type %s is not supported for %s.", shown, category.Label())
	return c
}

func sizeCheck(name string, size, maxBytes int64, unit float64, unitName string, limit int) creative.ValidationCheck {
	value := fmt.Sprintf("%.1f %s", float64(size)/unit, unitName)
	limitStr := fmt.Sprintf("%d %s", limit, unitName)
	c := creative.ValidationCheck{CheckName: name, Value: value, Limit: limitStr}
	if size > maxBytes {
		c.Status = creative.CheckFail
		c.Message = fmt.Sprintf("File size (%s) exceeds limit (%s).", value, limitStr)
	} else {
		c.Status = creative.CheckPass
		c.Message = fmt.Sprintf("File size (%s) is within limit (%s).", value, limitStr)
	}
	return c
}

// bitrateCheck treats maxKbps == 0 as "no upper bound".
func bitrateCheck(name string, kbps *int, minKbps, maxKbps int) creative.ValidationCheck {
	if kbps == nil {
		return undetermined(name, "bitrate")
	}
	c := creative.ValidationCheck{CheckName: name, Value: fmt.Sprintf("%d kbps", *kbps)}
	if maxKbps == 0 {
		c.Limit = fmt.Sprintf("Min %d kbps", minKbps)
		if *kbps >= minKbps {
			c.Status = creative.CheckPass
			c.Message = fmt.Sprintf("Bitrate %d kbps meets minimum.", *kbps)
		} else {
			c.Status = creative.CheckFail
			c.Message = fmt.Sprintf("Bitrate %d kbps is below minimum.", *kbps)
		}
		return c
	}
	c.Limit = fmt.Sprintf("%d-%d kbps", minKbps, maxKbps)
	if *kbps >= minKbps && *kbps <= maxKbps {
		c.Status = creative.CheckPass
		c.Message = fmt.Sprintf("Bitrate %d kbps is within range.", *kbps)
	} else {
		c.Status = creative.CheckFail
		c.Message = fmt.Sprintf("Bitrate %d kbps is outside allowed range.", *kbps)
	}
	return c
}

func undetermined(name, what string) creative.ValidationCheck {
	return creative.ValidationCheck{
		CheckName: name,
		Status:    creative.CheckWarn,
		Message:   "Could not determine " + what + ".",
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
