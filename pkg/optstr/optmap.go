package optstr

// Mask is a set of classification bits attached to an option map
// entry, consulted by Split/Subset when the caller passes an
// ignore-mask.
type Mask uint

const (
	// MaskNone carries no classification at all.
	MaskNone Mask = 0
	// MaskNoMtab marks an option that third-party tools traditionally
	// omit when writing /etc/mtab (e.g. it's synthesized, not
	// user-supplied).
	MaskNoMtab Mask = 1 << iota
	// MaskNoFstab marks an option meaningless in /etc/fstab.
	MaskNoFstab
	// MaskInverted marks an option whose presence means "off" rather
	// than "on" (e.g. noexec vs exec) — informational only, Split does
	// not act on it directly.
	MaskInverted
)

// Entry is one (name, id, mask) tuple. ID zero is the
// "comment/undefined" sentinel: Split and Subset drop any option that
// resolves to it, the way util-linux drops options it recognizes only
// well enough to know they're noise.
type Entry struct {
	Name string
	ID   int
	Mask Mask
}

// Map is a flat, linearly-searched option table. Built-in maps are
// never mutated after package init.
type Map struct {
	Name    string
	Entries []Entry
}

func (m *Map) lookup(name string) (*Entry, bool) {
	for i := range m.Entries {
		if m.Entries[i].Name == name {
			return &m.Entries[i], true
		}
	}
	return nil, false
}

// Which identifies which of the two built-in maps an option name
// classified into.
type Which int

const (
	NoMap Which = iota
	VFSMap
	UserspaceMap
)

// VFS holds the kernel/VFS-level mount options: the ones the kernel
// itself interprets, independent of filesystem type.
//
// Reconstructed (see DESIGN.md, Open Question 3): the upstream
// optmap.c table wasn't available to transcribe. The entries below are
// built from option names seen in other worked parsing examples (rw,
// ro, defaults, noexec, relatime) plus the standard complement any VFS
// option table carries.
var VFS = &Map{
	Name: "linux",
	Entries: []Entry{
		{Name: "defaults", ID: 0}, // comment/undefined: expands to nothing concrete
		{Name: "ro", ID: 1},
		{Name: "rw", ID: 2},
		{Name: "exec", ID: 3},
		{Name: "noexec", ID: 4, Mask: MaskInverted},
		{Name: "suid", ID: 5},
		{Name: "nosuid", ID: 6, Mask: MaskInverted},
		{Name: "dev", ID: 7},
		{Name: "nodev", ID: 8, Mask: MaskInverted},
		{Name: "sync", ID: 9},
		{Name: "async", ID: 10},
		{Name: "atime", ID: 11},
		{Name: "noatime", ID: 12, Mask: MaskInverted},
		{Name: "relatime", ID: 13},
		{Name: "norelatime", ID: 14, Mask: MaskInverted},
		{Name: "diratime", ID: 15},
		{Name: "nodiratime", ID: 16, Mask: MaskInverted},
		{Name: "remount", ID: 17, Mask: MaskNoFstab},
		{Name: "bind", ID: 18, Mask: MaskNoFstab},
		{Name: "rbind", ID: 19, Mask: MaskNoFstab},
	},
}

// Userspace holds the mount(8)-userspace-only options: never passed
// to the kernel, only meaningful to the userspace helper that set up
// the mount.
var Userspace = &Map{
	Name: "userspace",
	Entries: []Entry{
		{Name: "user", ID: 101, Mask: MaskNoMtab},
		{Name: "users", ID: 102, Mask: MaskNoMtab},
		{Name: "owner", ID: 103, Mask: MaskNoMtab},
		{Name: "group", ID: 104, Mask: MaskNoMtab},
		{Name: "nofail", ID: 105},
		{Name: "noauto", ID: 106},
		{Name: "auto", ID: 107},
		{Name: "_netdev", ID: 108},
		{Name: "loop", ID: 109, Mask: MaskNoFstab},
		{Name: "comment", ID: 0}, // comment/undefined sentinel
		{Name: "x-", ID: 0},
	},
}

// Classify looks name up in VFS first, then Userspace, returning the
// matching entry and which map it came from. which is NoMap and
// entry is nil when name belongs to neither — i.e. it's
// filesystem-specific.
func Classify(name string) (entry *Entry, which Which) {
	if e, ok := VFS.lookup(name); ok {
		return e, VFSMap
	}
	if e, ok := Userspace.lookup(name); ok {
		return e, UserspaceMap
	}
	return nil, NoMap
}
