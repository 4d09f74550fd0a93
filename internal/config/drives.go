package config

import (
	"slices"
	"strings"
)

// DriveConfig holds crawl settings for a single drive.
type DriveConfig struct {
	// IgnorePatterns are glob patterns of paths inside the drive that are
	// never scraped (e.g. "drafts/*", "*.min.js").
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// Skip keeps the drive out of the crawl entirely.
	Skip bool `yaml:"skip,omitempty"`
}

// File represents the structure of the .hyperscrape configuration file.
type File struct {
	// Defaults apply to every drive unless overridden in Drives.
	Defaults DriveConfig `yaml:"defaults,omitempty"`

	// Drives maps 64-character drive keys to drive-specific settings.
	Drives map[string]DriveConfig `yaml:"drives,omitempty"`

	// Exclusions replaces the directory names that are never scraped.
	Exclusions []string `yaml:"exclusions,omitempty"`

	// Extensions replaces the file extensions scanned for addresses.
	Extensions []string `yaml:"extensions,omitempty"`

	// Seeds are used when no seed is given on the command line.
	Seeds []string `yaml:"seeds,omitempty"`
}

// DriveConfig returns the configuration for one drive key, merged onto
// the defaults. Keys are matched case-insensitively and may carry the
// hyper:// scheme.
func (cf *File) DriveConfig(key string) DriveConfig {
	result := cf.Defaults

	dc, ok := cf.Drives[key]
	if !ok {
		want := normalizeDriveKey(key)
		for k, v := range cf.Drives {
			if normalizeDriveKey(k) == want {
				dc, ok = v, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if len(dc.IgnorePatterns) > 0 {
		result.IgnorePatterns = dc.IgnorePatterns
	}
	if dc.Skip {
		result.Skip = true
	}
	return result
}

// SkippedDrives returns the keys of all drives marked skip, as written in
// the file, sorted.
func (cf *File) SkippedDrives() []string {
	out := make([]string, 0)
	for k, v := range cf.Drives {
		if v.Skip {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func normalizeDriveKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.TrimPrefix(k, "hyper://")
}
