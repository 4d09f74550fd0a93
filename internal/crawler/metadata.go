package crawler

import (
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// metadataTags are the free-text EXIF tags authors put links into.
var metadataTags = map[string]struct{}{
	"ImageDescription": {},
	"UserComment":      {},
	"XPComment":        {},
	"XPSubject":        {},
	"Artist":           {},
	"Copyright":        {},
	"DocumentName":     {},
}

// MetadataText returns the free-text EXIF tags of an image joined by newlines.
// Images without EXIF data, or with unparsable EXIF data, yield "".
func MetadataText(image []byte) string {
	raw, err := exif.SearchAndExtractExif(image)
	if err != nil || raw == nil {
		return ""
	}

	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return ""
	}

	var b strings.Builder
	for _, entry := range entries {
		if _, ok := metadataTags[entry.TagName]; !ok {
			continue
		}
		b.WriteString(entry.Formatted)
		b.WriteByte('\n')
	}
	return b.String()
}
