package creative

import (
	"fmt"
	"path"
	"strings"
)

// Category is the closed set of creative categories the rule engine knows.
type Category string

// Category constants (typed).
const (
	CategoryDisplay  Category = "display"
	CategoryAudio    Category = "audio"
	CategoryVideoOLV Category = "video_olv"
	CategoryVideoCTV Category = "video_ctv"
	CategoryHTML5    Category = "html5"
	CategoryUnknown  Category = "unknown"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryDisplay,
	CategoryAudio,
	CategoryVideoOLV,
	CategoryVideoCTV,
	CategoryHTML5,
	CategoryUnknown,
}

// IsMedia reports whether the category is analyzed with the media prober.
func (c Category) IsMedia() bool {
	switch c {
	case CategoryAudio, CategoryVideoOLV, CategoryVideoCTV:
		return true
	case CategoryDisplay, CategoryHTML5, CategoryUnknown:
		return false
	}
	return false
}

// Label is the human-readable suffix used in check names, e.g. "Video OLV".
func (c Category) Label() string {
	switch c {
	case CategoryDisplay:
		return "Display"
	case CategoryAudio:
		return "Audio"
	case CategoryVideoOLV:
		return "Video OLV"
	case CategoryVideoCTV:
		return "Video CTV"
	case CategoryHTML5:
		return "HTML5"
	case CategoryUnknown:
		return "Unknown"
	}
	return string(c)
}

// ParseCategory validates a stored category value.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Status is the lifecycle state of an analysis record.
type Status string

// Status constants (typed).
const (
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusError      Status = "Error"
)

// CheckStatus is the verdict of a single validation check.
type CheckStatus string

// Check status constants (typed).
const (
	CheckPass          CheckStatus = "Pass"
	CheckFail          CheckStatus = "Fail"
	CheckWarn          CheckStatus = "Warn"
	CheckNotApplicable CheckStatus = "NotApplicable"
)

// ValidationCheck is one named judgment with the measured value and the
// limit it was compared against. Checks are never mutated once appended.
type ValidationCheck struct {
	CheckName string      `json:"checkName"`
	Status    CheckStatus `json:"status"`
	Message   string      `json:"message"`
	Value     string      `json:"value,omitempty"`
	Limit     string      `json:"limit,omitempty"`
}

// Dimensions are pixel dimensions of an image or video stream.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String renders the dimensions as "WxH".
func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Html5Info describes the structure of a zipped HTML5 bundle.
type Html5Info struct {
	PrimaryHTMLFile          string `json:"primaryHtmlFile,omitempty"`
	AdSizeMeta               string `json:"adSizeMeta,omitempty"`
	ClickTagDetected         bool   `json:"clickTagDetected"`
	FileCount                int    `json:"fileCount"`
	TotalUncompressedSize    int64  `json:"totalUncompressedSize"`
	BackupImageFile          string `json:"backupImageFile,omitempty"`
	ExtractedBackupContentID string `json:"extractedBackupContentId,omitempty"`
}

// Locator addresses an object in the object store.
type Locator struct {
	Container string `json:"container"`
	Name      string `json:"name"`
}

func (l Locator) String() string {
	return l.Container + "/" + l.Name
}

// AnalysisRecord is the report produced by one pipeline run.
type AnalysisRecord struct {
	ContentID        string            `json:"contentId"`
	DisplayName      string            `json:"displayName,omitempty"`
	Source           Locator           `json:"source"`
	Category         Category          `json:"category"`
	MimeType         string            `json:"mimeType,omitempty"`
	Extension        string            `json:"extension,omitempty"`
	SizeBytes        int64             `json:"sizeBytes"`
	IsCtv            bool              `json:"isCtv"`
	Dimensions       *Dimensions       `json:"dimensions,omitempty"`
	Duration         *float64          `json:"duration,omitempty"`
	BitrateKbps      *int              `json:"bitrateKbps,omitempty"`
	FrameRate        *float64          `json:"frameRate,omitempty"`
	Html5Info        *Html5Info        `json:"html5Info,omitempty"`
	ValidationChecks []ValidationCheck `json:"validationChecks"`
	Status           Status            `json:"status"`
}

// NewAnalysisRecord starts a record in the Processing state.
func NewAnalysisRecord(contentID, displayName string, source Locator, size int64) *AnalysisRecord {
	return &AnalysisRecord{
		ContentID:        contentID,
		DisplayName:      displayName,
		Source:           source,
		Category:         CategoryUnknown,
		SizeBytes:        size,
		ValidationChecks: []ValidationCheck{},
		Status:           StatusProcessing,
	}
}

// AddCheck appends checks in order.
func (r *AnalysisRecord) AddCheck(checks ...ValidationCheck) {
	r.ValidationChecks = append(r.ValidationChecks, checks...)
}

// HasFailures reports whether any check failed.
func (r *AnalysisRecord) HasFailures() bool {
	for _, c := range r.ValidationChecks {
		if c.Status == CheckFail {
			return true
		}
	}
	return false
}

// Finalize moves the record out of Processing. Warn and NotApplicable never
// force Error.
func (r *AnalysisRecord) Finalize() {
	if r.HasFailures() {
		r.Status = StatusError
		return
	}
	r.Status = StatusCompleted
}

// SideMetadata is written by an external collaborator before analysis.
type SideMetadata struct {
	ContentID  string `json:"contentId"`
	IsCtv      bool   `json:"isCtv"`
	ObjectName string `json:"objectName,omitempty"`
}

// BackupContentID derives the object id of an extracted backup image.
func BackupContentID(contentID, ext string) string {
	return contentID + "-backup" + strings.ToLower(ext)
}

// Ext returns the lowercased extension of a file name, including the dot.
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}
