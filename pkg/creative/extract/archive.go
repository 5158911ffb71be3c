package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// AllowedBundleExtensions are the file types an HTML5 bundle may contain.
var AllowedBundleExtensions = []string{".html", ".js", ".css", ".mp4", ".jpg", ".jpeg", ".gif", ".png", ".svg"}

// DefaultMaxUncompressed caps how much of a bundle InspectArchive will
// decompress when no limit is given.
const DefaultMaxUncompressed int64 = 12 << 20

// ErrEntryTooLarge is returned when an entry decompresses past the limit.
var ErrEntryTooLarge = errors.New("archive entry exceeds uncompressed limit")

var (
	backupImageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}
	adSizePattern         = regexp.MustCompile(`(?i)width=(\d+),height=(\d+)`)
)

// ArchiveInfo is what the archive inspector learned about an HTML5 bundle.
type ArchiveInfo struct {
	// FileCount counts every entry, directories included.
	FileCount int
	// PrimaryHTML is the first root-level .html entry, empty when absent.
	PrimaryHTML string
	// AdSize is "WxH" from the ad.size meta tag, empty when absent.
	AdSize   string
	ClickTag bool
	// TotalUncompressed sums the sizes of non-directory entries.
	TotalUncompressed int64
	// Disallowed lists entries outside AllowedBundleExtensions in archive order.
	Disallowed []string
	// Oversized is set when TotalUncompressed is over the inspection limit.
	// No entry contents are read then.
	Oversized bool

	BackupName string
	BackupExt  string
	BackupData []byte
}

// Html5Info converts the inspection result into its record form.
func (a *ArchiveInfo) Html5Info() *creative.Html5Info {
	return &creative.Html5Info{
		PrimaryHTMLFile:       a.PrimaryHTML,
		AdSizeMeta:            a.AdSize,
		ClickTagDetected:      a.ClickTag,
		FileCount:             a.FileCount,
		TotalUncompressedSize: a.TotalUncompressed,
		BackupImageFile:       a.BackupName,
	}
}

// InspectArchive opens data as a zip archive and inspects its structure.
// Entry contents are only read while the declared uncompressed sizes stay
// within maxUncompressed; a non-positive value uses DefaultMaxUncompressed.
// An error means the archive could not be opened at all.
func InspectArchive(data []byte, maxUncompressed int64) (*ArchiveInfo, error) {
	if maxUncompressed <= 0 {
		maxUncompressed = DefaultMaxUncompressed
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}

	info := &ArchiveInfo{FileCount: len(zr.File)}
	var primary, backup *zip.File

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		ext := strings.ToLower(path.Ext(name))

		if primary == nil && ext == ".html" && !strings.ContainsAny(name, `/\`) {
			primary = f
		}

		size := int64(min(f.UncompressedSize64, math.MaxInt64))
		if info.TotalUncompressed > math.MaxInt64-size {
			info.TotalUncompressed = math.MaxInt64
		} else {
			info.TotalUncompressed += size
		}

		if !slices.Contains(AllowedBundleExtensions, ext) {
			info.Disallowed = append(info.Disallowed, name)
		}
		if backupImageExtensions[ext] && (backup == nil || f.UncompressedSize64 > backup.UncompressedSize64) {
			backup = f
		}
	}

	if info.TotalUncompressed > maxUncompressed {
		info.Oversized = true
	}

	if primary != nil {
		info.PrimaryHTML = primary.Name
	}
	if backup != nil {
		info.BackupName = backup.Name
		info.BackupExt = strings.ToLower(path.Ext(backup.Name))
	}
	if info.Oversized {
		return info, nil
	}

	if primary != nil {
		markup, err := readEntry(primary, maxUncompressed)
		if err != nil {
			return nil, fmt.Errorf("read primary html %s: %w", primary.Name, err)
		}
		info.AdSize = AdSizeFromMarkup(markup)
		info.ClickTag = HasClickTag(markup)
	}

	if backup != nil {
		if data, err := readEntry(backup, maxUncompressed); err == nil {
			info.BackupData = data
		}
	}

	return info, nil
}

// AdSizeFromMarkup returns "WxH" from the ad.size meta tag of an HTML
// document, or "" when the tag is missing or malformed.
func AdSizeFromMarkup(markup []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return ""
	}
	var size string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "ad.size") {
			return true
		}
		content, _ := s.Attr("content")
		if m := adSizePattern.FindStringSubmatch(content); m != nil {
			size = m[1] + "x" + m[2]
		}
		return false
	})
	return size
}

// HasClickTag is a lexical check for the clickTag/clickTAG variable.
func HasClickTag(markup []byte) bool {
	return bytes.Contains(markup, []byte("clickTAG")) || bytes.Contains(markup, []byte("clickTag"))
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, ErrEntryTooLarge
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrEntryTooLarge
	}
	return data, nil
}
