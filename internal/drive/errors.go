package drive

import "errors"

// Drive backend errors.
// Backends wrap these with the affected key or path; callers match them
// with errors.Is.
var (
	// ErrEmptyStoreRoot is returned when a LocalStore is created without a root.
	ErrEmptyStoreRoot = errors.New("drive store root cannot be empty")

	// ErrDriveNotFound is returned when the requested drive is not available.
	ErrDriveNotFound = errors.New("drive not found")

	// ErrNotDirectory is returned when a listing targets something that is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotRegularFile is returned when reading a directory, mount or link.
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrMountExists is returned when the mount target already exists.
	ErrMountExists = errors.New("mount target already exists")

	// ErrEmptyEndpoint is returned when a RemoteClient is created without an endpoint.
	ErrEmptyEndpoint = errors.New("daemon endpoint cannot be empty")
)
