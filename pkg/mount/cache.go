package mount

// Cache is the path/tag resolver collaborator. It is a borrowed
// reference: a Table or Entry never owns one, never frees one, and
// every lookup/match path takes the "no cache" branch gracefully when
// none is supplied. Cache is explicitly undefined for concurrent use —
// a caller sharing one across goroutines must provide its own
// synchronization (see SyncTable for the analogous table-level
// wrapper).
type Cache interface {
	// ResolvePath canonicalizes a filesystem path (resolving symlinks
	// and relative components), the way realpath(3) would. ok is
	// false when the path cannot be resolved (e.g. ENOENT).
	ResolvePath(path string) (resolved string, ok bool)

	// ResolveTag resolves a NAME=VALUE tag (e.g. LABEL=root) to a
	// device path. ok is false when the tag cannot be resolved.
	ResolveTag(name, value string) (devicePath string, ok bool)

	// ReadTags reads every tag a device path is known by into the
	// cache's internal index so DeviceHasTag can later be asked about
	// it. permissionDenied is set when the read failed specifically
	// because of an EACCES, letting callers fall back to udev-style
	// symlink resolution the way mnt_fs_match_source does.
	ReadTags(devicePath string) (permissionDenied bool, err error)

	// DeviceHasTag reports whether devicePath is known (via a prior
	// ReadTags call) to carry the given tag.
	DeviceHasTag(devicePath, name, value string) bool
}
