// Package classify assigns a creative category from content sniffing, an
// extension fallback and the connected-TV side flag.
package classify

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// extensionMimeTypes is consulted only when sniffing is inconclusive.
var extensionMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".zip":  "application/zip",
}

// inconclusive MIME types mean the sniffer only recognised generic bytes.
var inconclusive = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"text/plain":               true,
}

// Result is the outcome of classification.
type Result struct {
	MimeType  string
	Extension string
	Category  creative.Category

	// FromExtension is set when the MIME type was inferred from the file
	// name rather than the content.
	FromExtension bool
}

// Check returns the check classification contributes to the report, if any.
func (r Result) Check() (creative.ValidationCheck, bool) {
	if !r.FromExtension {
		return creative.ValidationCheck{}, false
	}
	return creative.ValidationCheck{
		CheckName: "File Type",
		Status:    creative.CheckWarn,
		Message:   fmt.Sprintf("Could not detect type reliably, inferred %s from extension.", r.MimeType),
		Value:     r.MimeType,
	}, true
}

// Classify sniffs data, falls back to the extension of fileName and maps
// the MIME type to a category.
func Classify(data []byte, fileName string, isCtv bool) Result {
	var res Result

	mt := mimetype.Detect(data)
	mime := baseType(mt.String())
	if !inconclusive[mime] {
		res.MimeType = mime
		res.Extension = strings.TrimPrefix(mt.Extension(), ".")
	} else if ext := creative.Ext(fileName); ext != "" {
		if fallback, ok := extensionMimeTypes[ext]; ok {
			res.MimeType = fallback
			res.Extension = strings.TrimPrefix(ext, ".")
			res.FromExtension = true
		}
	}

	res.Category = CategoryFor(res.MimeType, isCtv)
	return res
}

// CategoryFor maps a MIME type to a creative category.
func CategoryFor(mime string, isCtv bool) creative.Category {
	switch {
	case mime == "":
		return creative.CategoryUnknown
	case strings.HasPrefix(mime, "image/"):
		return creative.CategoryDisplay
	case strings.HasPrefix(mime, "audio/"):
		return creative.CategoryAudio
	case strings.HasPrefix(mime, "video/"):
		if isCtv {
			return creative.CategoryVideoCTV
		}
		return creative.CategoryVideoOLV
	case mime == "application/zip":
		return creative.CategoryHTML5
	default:
		return creative.CategoryUnknown
	}
}

// ContentTypeForExtension returns the MIME type for an image extension,
// defaulting to application/octet-stream.
func ContentTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return extensionMimeTypes[strings.ToLower(ext)]
	}
	return "application/octet-stream"
}

func baseType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.ToLower(s))
}
