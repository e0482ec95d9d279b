package mount

import (
	"strings"

	"github.com/jesseduffield/libmnt/pkg/optstr"
)

// Flag is a bit of the is-pseudo/is-network/is-swap classification
// derived from fs_type. Set exclusively and only by SetFSType; every
// other reader treats Flags as read-only.
type Flag uint

const (
	FlagPseudo Flag = 1 << iota
	FlagNetwork
	FlagSwap
)

// recognizedTags is the closed set of NAME=VALUE source tags this
// module understands. An unrecognized key is a parse failure on that
// field.
var recognizedTags = map[string]bool{
	"LABEL":     true,
	"UUID":      true,
	"PARTLABEL": true,
	"PARTUUID":  true,
}

var pseudoFSTypes = map[string]bool{
	"proc": true, "sysfs": true, "tmpfs": true, "devtmpfs": true,
	"cgroup": true, "cgroup2": true, "debugfs": true, "securityfs": true,
	"pstore": true, "mqueue": true, "devpts": true, "configfs": true,
	"fusectl": true, "bpf": true, "rpc_pipefs": true, "binfmt_misc": true,
	"tracefs": true, "autofs": true,
}

var networkFSTypes = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smbfs": true,
	"afs": true, "ncpfs": true, "smb3": true, "9p": true,
}

// Entry is one mount record: one line of either input format. It
// owns copies of every string field it holds.
type Entry struct {
	ID       int
	ParentID int

	DeviceMajor, DeviceMinor int
	hasDeviceNumber          bool

	BindSource string

	source   string
	hasSource bool
	tagName  string
	tagValue string

	Root   string
	Target string

	fsType    string
	hasFSType bool

	vfsOptions  string
	fsOptions   string
	userOptions string

	Attributes string

	Freq, PassNo int

	Flags Flag

	UserData interface{}

	table *Table // back-pointer; an entry belongs to at most one table
}

// NewEntry returns an empty, unowned entry.
func NewEntry() *Entry {
	return &Entry{}
}

// Clone deep-copies every owned field of e into a new, table-less
// entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.table = nil
	return &c
}

// SetDeviceNumber records the kernel maj:min device number, meaningful
// only for kernel-format records.
func (e *Entry) SetDeviceNumber(major, minor int) {
	e.DeviceMajor, e.DeviceMinor = major, minor
	e.hasDeviceNumber = true
}

// DeviceNumber returns the previously-set major:minor pair, or
// ok=false if the entry has none (classic-format entries never do).
func (e *Entry) DeviceNumber() (major, minor int, ok bool) {
	return e.DeviceMajor, e.DeviceMinor, e.hasDeviceNumber
}

// SetSource implements the source setter's TAG=VALUE special case: an
// argument of the form NAME=VALUE where NAME is a recognized tag
// clears Source and fills (TagName, TagValue); any other value sets
// Source and clears the tag pair; the literal "none" clears both.
func (e *Entry) SetSource(s string) error {
	if s == "none" || s == "" {
		e.source, e.hasSource = "", false
		e.tagName, e.tagValue = "", ""
		return nil
	}
	if name, value, ok := splitTag(s); ok {
		if !recognizedTags[name] {
			return NewError(ParseError, "unrecognized tag name "+name)
		}
		e.tagName, e.tagValue = name, value
		e.source, e.hasSource = "", false
		return nil
	}
	e.source, e.hasSource = s, true
	e.tagName, e.tagValue = "", ""
	return nil
}

// splitTag splits s into NAME=VALUE if it looks like a tag reference,
// i.e. contains '=' before any '/'.
func splitTag(s string) (name, value string, ok bool) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return "", "", false
	}
	if slash := strings.IndexByte(s, '/'); slash >= 0 && slash < eq {
		return "", "", false
	}
	return s[:eq], s[eq+1:], true
}

// Source returns the device path or pseudo-device source, or
// ok=false when this entry is tag-form (or has no source at all).
func (e *Entry) Source() (source string, ok bool) {
	return e.source, e.hasSource
}

// Tag returns the (name, value) pair for a tag-form source, or
// ok=false when this entry has a plain path source.
func (e *Entry) Tag() (name, value string, ok bool) {
	if e.hasSource || e.tagName == "" {
		return "", "", false
	}
	return e.tagName, e.tagValue, true
}

// IsTagSource reports whether the entry's source is in TAG=VALUE
// form.
func (e *Entry) IsTagSource() bool {
	return !e.hasSource && e.tagName != ""
}

// SetFSType sets the filesystem-type name and recomputes Flags. The
// literal "none" clears fs_type to null (and clears all three flags).
func (e *Entry) SetFSType(fsType string) {
	if fsType == "none" {
		e.fsType, e.hasFSType = "", false
		e.Flags = 0
		return
	}
	e.fsType, e.hasFSType = fsType, true

	var flags Flag
	if pseudoFSTypes[fsType] {
		flags |= FlagPseudo
	}
	if networkFSTypes[fsType] {
		flags |= FlagNetwork
	}
	if fsType == "swap" {
		flags |= FlagSwap
	}
	e.Flags = flags
}

// FSType returns the filesystem-type name, or ok=false if null.
func (e *Entry) FSType() (fsType string, ok bool) {
	return e.fsType, e.hasFSType
}

// SetVFSOptions, SetFSOptions and SetUserOptions set the three
// independent option strings (empty means "no options").
func (e *Entry) SetVFSOptions(s string)  { e.vfsOptions = s }
func (e *Entry) SetFSOptions(s string)   { e.fsOptions = s }
func (e *Entry) SetUserOptions(s string) { e.userOptions = s }

func (e *Entry) VFSOptions() string  { return e.vfsOptions }
func (e *Entry) FSOptions() string   { return e.fsOptions }
func (e *Entry) UserOptions() string { return e.userOptions }

// SetOptions splits optstr into VFS/FS/userspace buckets and replaces
// all three fields, grounded on mnt_fs_set_options.
func (e *Entry) SetOptions(optionString string) error {
	if optionString == "" {
		e.vfsOptions, e.fsOptions, e.userOptions = "", "", ""
		return nil
	}
	vfs, user, fs, err := optstr.Split(optionString, optstr.MaskNone, optstr.MaskNone)
	if err != nil {
		return Wrap(ParseError, "splitting option string", err)
	}
	e.vfsOptions, e.fsOptions, e.userOptions = vfs, fs, user
	return nil
}

// AppendOptions splits optionString and appends the results onto the
// existing VFS/FS/userspace buckets, grounded on
// mnt_fs_append_options. A blank optionString leaves e unmodified.
func (e *Entry) AppendOptions(optionString string) error {
	if optionString == "" {
		return nil
	}
	vfs, user, fs, err := optstr.Split(optionString, optstr.MaskNone, optstr.MaskNone)
	if err != nil {
		return Wrap(ParseError, "splitting option string", err)
	}
	var err2 error
	if vfs != "" {
		e.vfsOptions, err2 = appendRaw(e.vfsOptions, vfs)
	}
	if err2 == nil && fs != "" {
		e.fsOptions, err2 = appendRaw(e.fsOptions, fs)
	}
	if err2 == nil && user != "" {
		e.userOptions, err2 = appendRaw(e.userOptions, user)
	}
	return err2
}

func appendRaw(dst, raw string) (string, error) {
	if dst == "" {
		return raw, nil
	}
	return dst + "," + raw, nil
}

// StrdupOptions merges VFS and FS options (4.B merge rule) then
// appends user options, the way mnt_fs_strdup_options does, producing
// the single option string mount(8) would display.
func (e *Entry) StrdupOptions() (string, error) {
	merged, err := optstr.Merge(e.vfsOptions, e.fsOptions)
	if err != nil {
		return "", err
	}
	if e.userOptions == "" {
		return merged, nil
	}
	if merged == "" {
		return e.userOptions, nil
	}
	return merged + "," + e.userOptions, nil
}

// GetOption searches fs_options, then vfs_options, then user_options,
// returning the first hit.
func (e *Entry) GetOption(name string) (value string, hasValue bool, ok bool) {
	for _, s := range []string{e.fsOptions, e.vfsOptions, e.userOptions} {
		if v, hv, found, err := optstr.Get(s, name); err == nil && found {
			return v, hv, true
		}
	}
	return "", false, false
}

// GetAttribute searches Attributes the same way GetOption searches
// the option strings.
func (e *Entry) GetAttribute(name string) (value string, hasValue bool, ok bool) {
	v, hv, found, err := optstr.Get(e.Attributes, name)
	if err != nil || !found {
		return "", false, false
	}
	return v, hv, true
}

// StreqTarget reports target equality ignoring a single trailing
// slash on either side.
func (e *Entry) StreqTarget(target string) bool {
	return streqTrailingSlash(e.Target, target)
}

// StreqSource reports source equality. For a pseudo-filesystem entry
// it falls back to exact string equality: the trailing-slash rule is
// inappropriate for pseudo sources (e.g. "none", "proc").
func (e *Entry) StreqSource(source string) bool {
	src, ok := e.Source()
	if !ok {
		return false
	}
	if e.Flags&FlagPseudo != 0 {
		return src == source
	}
	return streqTrailingSlash(src, source)
}

func streqTrailingSlash(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// MatchTarget implements the target-lookup match helper: raw
// comparison first, then (with a cache) canonicalized-input-vs-raw and
// canonicalized-vs-canonicalized.
func (e *Entry) MatchTarget(target string, cache Cache) bool {
	if e.Target == "" || target == "" {
		return false
	}
	if e.StreqTarget(target) {
		return true
	}
	if cache == nil {
		return false
	}
	cn, ok := cache.ResolvePath(target)
	if !ok {
		return false
	}
	if cn == e.Target {
		return true
	}
	tcn, ok := cache.ResolvePath(e.Target)
	return ok && cn == tcn
}

// MatchSource implements the source-lookup match helper: raw
// comparison, then up to three cache-assisted attempts, ending with a
// tag-resolution-vs-tag-resolution compare via DeviceHasTag.
func (e *Entry) MatchSource(source string, cache Cache) bool {
	src, hasPath := e.Source()
	if source == "" || (!hasPath && e.tagName == "") {
		return false
	}
	if e.StreqSource(source) {
		return true
	}
	if cache == nil {
		return false
	}
	if e.Flags&(FlagNetwork|FlagPseudo) != 0 {
		return false
	}

	cn, ok := cache.ResolvePath(source)
	if !ok {
		// source may itself be a tag; try resolving it to a device.
		if name, value, isTag := splitTag(source); isTag {
			cn, ok = cache.ResolveTag(name, value)
		}
		if !ok {
			return false
		}
	}

	if hasPath {
		if e.StreqSource(cn) {
			return true
		}
		if resolved, ok := cache.ResolvePath(src); ok && resolved == cn {
			return true
		}
		return false
	}

	// fs has a tag; resolve @source's tags into the cache and compare,
	// falling back to udev-symlink resolution on EACCES.
	permissionDenied, err := cache.ReadTags(cn)
	if err != nil {
		if permissionDenied {
			if dev, ok := cache.ResolveTag(e.tagName, e.tagValue); ok && dev == cn {
				return true
			}
		}
		return false
	}
	return cache.DeviceHasTag(cn, e.tagName, e.tagValue)
}

// MatchFSType matches FSType against a comma-separated list with
// optional "no" prefix negation (e.g. "ext4,noext3").
func (e *Entry) MatchFSType(types string) bool {
	fsType, ok := e.FSType()
	if !ok || types == "" {
		return false
	}
	return matchCommaListNegated(fsType, types)
}

// MatchOptions merges VFS, FS and user options (4.B) and matches the
// result against a comma-separated list with "no" prefix negation.
func (e *Entry) MatchOptions(options string) bool {
	merged, err := e.StrdupOptions()
	if err != nil || options == "" {
		return false
	}
	present := map[string]bool{}
	for _, o := range strings.Split(merged, ",") {
		if o != "" {
			present[strings.SplitN(o, "=", 2)[0]] = true
		}
	}
	for _, want := range strings.Split(options, ",") {
		if want == "" {
			continue
		}
		if strings.HasPrefix(want, "no") {
			if present[want[2:]] {
				return false
			}
			continue
		}
		if !present[want] {
			return false
		}
	}
	return true
}

func matchCommaListNegated(value, list string) bool {
	matched := false
	hasPositive := false
	for _, item := range strings.Split(list, ",") {
		if item == "" {
			continue
		}
		if strings.HasPrefix(item, "no") {
			if item[2:] == value {
				return false
			}
			continue
		}
		hasPositive = true
		if item == value {
			matched = true
		}
	}
	return matched || !hasPositive
}
