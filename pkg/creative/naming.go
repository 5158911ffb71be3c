package creative

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// uuidLen is the length of a canonical textual UUID.
const uuidLen = 36

var backupNamePattern = regexp.MustCompile(`(?i)^[0-9a-f-]{36}-backup\.(jpg|jpeg|png|gif)$`)

// ParseObjectName splits an uploaded object name of the form
// "{uuid}-{original file name}" into its ContentID and DisplayName.
// Names without a UUID prefix use the whole name for both.
func ParseObjectName(name string) (contentID, displayName string) {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if len(base) > uuidLen && base[uuidLen] == '-' {
		if id, err := uuid.Parse(base[:uuidLen]); err == nil {
			return id.String(), base[uuidLen+1:]
		}
	}
	if len(base) == uuidLen {
		if id, err := uuid.Parse(base); err == nil {
			return id.String(), base
		}
	}
	return base, base
}

// IsBackupObjectName reports whether name is an image this service derived
// from an HTML5 bundle.
func IsBackupObjectName(name string) bool {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return backupNamePattern.MatchString(name)
}

// DecodeObjectName undoes transport-level percent-encoding of an object
// name so the store sees its semantic form.
func DecodeObjectName(raw string) (string, error) {
	return url.PathUnescape(raw)
}

// LocatorFromURL parses an object URL of the form
// https://host/{container}/{name...} into a decoded Locator.
func LocatorFromURL(raw string) (Locator, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, err
	}
	p := u.EscapedPath()
	segments := make([]string, 0, 4)
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return Locator{}, ErrInvalidLocator
	}
	container, err := DecodeObjectName(segments[0])
	if err != nil {
		return Locator{}, err
	}
	name, err := DecodeObjectName(strings.Join(segments[1:], "/"))
	if err != nil {
		return Locator{}, err
	}
	return Locator{Container: container, Name: name}, nil
}
