// Package converter turns raw file bytes into plain text.
//
// Two variants implement the Converter interface: Standard performs
// format-specific structural extraction offline, and Enhanced layers a
// language-model enrichment pass on top of the standard extraction.
// The variant is selected once at construction from resolved
// configuration; when the enhanced variant's credential is absent the
// constructor falls back to the standard variant and reports the
// degraded mode at warning level.
package converter

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for conversion failures. Checked with errors.Is.
var (
	// ErrUnsupportedFormat indicates the filename extension is not in
	// the allow-list. The wrapped message names the rejected extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrConversionFailed indicates the content could not be converted
	// to text (corrupt or malformed input).
	ErrConversionFailed = errors.New("conversion failed")
)

// Converter extracts plain text from raw file content. The filename's
// extension selects the extraction strategy.
type Converter interface {
	Convert(ctx context.Context, content []byte, filename string) (string, error)

	// Name identifies the converter variant for chunk metadata and logs.
	Name() string
}

// supportedExtensions is the fixed allow-list of convertible file types.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".txt":  true,
	".md":   true,
	".html": true,
	".csv":  true,
	".json": true,
	".xml":  true,
}

// SupportedExtensions returns the allow-list of convertible file
// extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether the extension (with leading dot, any case)
// is convertible.
func IsSupported(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}
