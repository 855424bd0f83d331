package services

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"book-digest/models"
)

const (
	// MaxFilenameLen bounds a sanitized name in bytes.
	MaxFilenameLen = 180
	// titlePrefix is how many runes of a title go into an image filename.
	titlePrefix = 60
	// maxSuffix bounds the _N probing in ClaimPath.
	maxSuffix = 10000

	defaultExt = ".jpg"
)

// ErrNoFreeName is returned when every suffixed candidate already exists.
var ErrNoFreeName = errors.New("services: no free filename")

var hostileChars = regexp.MustCompile(`[\\/*?:"<>|\n\r\x00]`)

var extByContentType = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/pjpeg":   ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
	"image/x-icon":  ".ico",
}

// SanitizeFilename strips characters filesystems reject, replaces whitespace
// runs with "_" and truncates to MaxFilenameLen bytes on a rune boundary.
func SanitizeFilename(name string) string {
	name = hostileChars.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), "_")

	if len(name) > MaxFilenameLen {
		cut := MaxFilenameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	if name == "" {
		return "untitled"
	}
	return name
}

// ImageBaseName is the extension-less filename for a listing's image.
func ImageBaseName(l models.Listing) string {
	title := l.Title
	if utf8.RuneCountInString(title) > titlePrefix {
		title = string([]rune(title)[:titlePrefix])
	}
	return SanitizeFilename(l.PublisherKey() + "_" + title)
}

// ExtensionForContentType maps a Content-Type header to a file extension,
// falling back to .jpg for anything absent or unrecognised.
func ExtensionForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return defaultExt
	}
	if ext, ok := extByContentType[mediaType]; ok {
		return ext
	}
	return defaultExt
}

// ClaimPath atomically creates the first free file among base+ext,
// base_1+ext, base_2+ext, ... in dir and returns it open for writing.
// Existing files are never reused or overwritten.
func ClaimPath(dir, base, ext string) (*os.File, string, error) {
	for i := 0; i <= maxSuffix; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("services: claim %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("%w for %s%s in %s", ErrNoFreeName, base, ext, dir)
}
