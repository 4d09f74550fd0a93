package model

// Mount describes another drive attached at a path inside a drive.
// Mounts compose individual drives into a graph.
type Mount struct {
	// Key identifies the mounted drive.
	Key Key `json:"key"`
}

// Stat is the metadata a drive reports for one entry.
type Stat struct {
	// IsDir is true for directories.
	IsDir bool `json:"is_dir"`

	// Size is the entry size in bytes. Zero for directories and mounts.
	Size int64 `json:"size"`

	// Mount is set when the entry is a mount point for another drive.
	Mount *Mount `json:"mount,omitempty"`
}

// IsMount returns true if the entry is a mount point.
func (s Stat) IsMount() bool {
	return s.Mount != nil && !s.Mount.Key.IsZero()
}

// MountKey returns the key of the mounted drive, or the zero Key.
func (s Stat) MountKey() Key {
	if s.Mount == nil {
		return Key{}
	}
	return s.Mount.Key
}
