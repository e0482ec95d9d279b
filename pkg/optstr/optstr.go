// Package optstr implements the mount option-string engine: parsing,
// merging, splitting and mutating the comma-separated, optionally
// quoted NAME/NAME=VALUE lists used by vfs_options, fs_options and
// user_options fields.
package optstr

import (
	"strings"

	"github.com/go-errors/errors"
)

// ErrMalformed is returned by Next and anything built on it when an
// option item is empty or a comma falls inside an unterminated quoted
// block.
var ErrMalformed = errors.New("optstr: malformed option item")

// Option is one parsed NAME or NAME=VALUE item. HasValue distinguishes
// a bare NAME from NAME= (empty value).
type Option struct {
	Name     string
	Value    string
	HasValue bool
}

func (o Option) String() string {
	if !o.HasValue {
		return o.Name
	}
	return o.Name + "=" + o.Value
}

// Next parses the first option out of s and returns the remainder of
// the string positioned after its separating comma. ok is false with a
// nil error once s is exhausted; a non-nil error means s starts with a
// malformed item (empty name, or an unterminated quote).
//
// Values may contain commas if wrapped in double quotes; quote state
// toggles on every '"'.
func Next(s string) (opt Option, rest string, ok bool, err error) {
	if s == "" {
		return Option{}, "", false, nil
	}

	openQuote := false
	start, stop, sep := -1, -1, -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			start = i
		}
		if c == '"' {
			openQuote = !openQuote
		}
		if openQuote {
			continue
		}
		if sep < 0 && c == '=' {
			sep = i
		}
		if c == ',' {
			stop = i
		} else if i+1 == len(s) {
			stop = i + 1
		}
		if start < 0 || stop < 0 {
			continue
		}
		if stop <= start {
			return Option{}, "", false, ErrMalformed
		}

		var name, value string
		hasValue := sep >= 0
		if hasValue {
			name, value = s[start:sep], s[sep+1:stop]
		} else {
			name = s[start:stop]
		}
		if name == "" {
			return Option{}, "", false, ErrMalformed
		}
		if stop < len(s) {
			rest = s[stop+1:]
		}
		return Option{Name: name, Value: value, HasValue: hasValue}, rest, true, nil
	}

	if openQuote {
		return Option{}, "", false, ErrMalformed
	}
	return Option{}, "", false, nil
}

// ParseAll tokenizes a whole option string into an ordered slice of
// Options. An empty string yields an empty, non-nil slice.
func ParseAll(s string) ([]Option, error) {
	opts := make([]Option, 0, strings.Count(s, ",")+1)
	cur := s
	for cur != "" {
		opt, rest, ok, err := Next(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		opts = append(opts, opt)
		cur = rest
	}
	return opts, nil
}

// Join renders options back into comma-joined form. The result never
// starts or ends with a comma and never contains two consecutive
// commas, matching the invariant every mutator below preserves.
func Join(opts []Option) string {
	if len(opts) == 0 {
		return ""
	}
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = o.String()
	}
	return strings.Join(parts, ",")
}

// Locate returns the first option named name, or ok=false if none
// matches. Two names compare equal only when their lengths match,
// i.e. this is an exact string comparison, never a prefix match.
func Locate(s string, name string) (opt Option, ok bool, err error) {
	cur := s
	for cur != "" {
		o, rest, found, err := Next(cur)
		if err != nil {
			return Option{}, false, err
		}
		if !found {
			break
		}
		if o.Name == name {
			return o, true, nil
		}
		cur = rest
	}
	return Option{}, false, nil
}

// Get returns the value of name, or ok=false when name is absent.
func Get(s string, name string) (value string, hasValue bool, ok bool, err error) {
	opt, ok, err := Locate(s, name)
	if err != nil || !ok {
		return "", false, ok, err
	}
	return opt.Value, opt.HasValue, true, nil
}

// Append adds NAME or NAME=VALUE at the back of s. hasValue
// distinguishes a bare name from a name with an empty value.
func Append(s string, name string, value string, hasValue bool) (string, error) {
	opts, err := ParseAll(s)
	if err != nil {
		return s, err
	}
	opts = append(opts, Option{Name: name, Value: value, HasValue: hasValue})
	return Join(opts), nil
}

// Prepend adds NAME or NAME=VALUE at the front of s.
func Prepend(s string, name string, value string, hasValue bool) (string, error) {
	opts, err := ParseAll(s)
	if err != nil {
		return s, err
	}
	opts = append([]Option{{Name: name, Value: value, HasValue: hasValue}}, opts...)
	return Join(opts), nil
}

// Set sets or replaces the value of name, appending it if absent.
// Passing hasValue=false adds/leaves a bare NAME with no value.
func Set(s string, name string, value string, hasValue bool) (string, error) {
	opts, err := ParseAll(s)
	if err != nil {
		return s, err
	}
	for i, o := range opts {
		if o.Name == name {
			opts[i] = Option{Name: name, Value: value, HasValue: hasValue}
			return Join(opts), nil
		}
	}
	opts = append(opts, Option{Name: name, Value: value, HasValue: hasValue})
	return Join(opts), nil
}

// Remove deletes the first option named name, collapsing the
// now-adjacent comma if one existed on either side. ok is false if
// name was not present, in which case s is returned unchanged.
func Remove(s string, name string) (out string, ok bool, err error) {
	opts, err := ParseAll(s)
	if err != nil {
		return s, false, err
	}
	for i, o := range opts {
		if o.Name == name {
			opts = append(opts[:i], opts[i+1:]...)
			return Join(opts), true, nil
		}
	}
	return s, false, nil
}

// Merge concatenates vfsOptstr and fsOptstr with a single leading
// rw, or ro, token. The result is read-only unless both inputs
// contain a bare rw option; any rw/ro tokens present in either input
// are stripped before concatenation.
func Merge(vfsOptstr, fsOptstr string) (string, error) {
	vfsOpts, err := ParseAll(vfsOptstr)
	if err != nil {
		return "", err
	}
	fsOpts, err := ParseAll(fsOptstr)
	if err != nil {
		return "", err
	}

	vfsWritable := stripRW(&vfsOpts)
	fsWritable := stripRW(&fsOpts)

	merged := make([]Option, 0, len(vfsOpts)+len(fsOpts)+1)
	if vfsWritable && fsWritable {
		merged = append(merged, Option{Name: "rw"})
	} else {
		merged = append(merged, Option{Name: "ro"})
	}
	merged = append(merged, vfsOpts...)
	merged = append(merged, fsOpts...)
	return Join(merged), nil
}

// stripRW removes any rw/ro items from opts in place and reports
// whether an rw item was present.
func stripRW(opts *[]Option) bool {
	writable := false
	out := (*opts)[:0]
	for _, o := range *opts {
		switch o.Name {
		case "rw":
			writable = true
			continue
		case "ro":
			continue
		}
		out = append(out, o)
	}
	*opts = out
	return writable
}

// Split walks optstr once and buckets each item into vfs, userspace or
// filesystem-specific options per the given maps, honoring per-bucket
// ignore masks. Items whose map entry is the "comment/undefined"
// sentinel (ID zero) are dropped silently. An item with no entry in
// either map is filesystem-specific.
func Split(optstr string, ignoreUser, ignoreVFS Mask) (vfs, user, fs string, err error) {
	opts, err := ParseAll(optstr)
	if err != nil {
		return "", "", "", err
	}

	var vfsOpts, userOpts, fsOpts []Option
	for _, o := range opts {
		entry, which := Classify(o.Name)
		switch {
		case entry != nil && entry.ID == 0:
			continue // comment/undefined sentinel
		case which == VFSMap:
			if ignoreVFS != 0 && entry.Mask&ignoreVFS != 0 {
				continue
			}
			vfsOpts = append(vfsOpts, o)
		case which == UserspaceMap:
			if ignoreUser != 0 && entry.Mask&ignoreUser != 0 {
				continue
			}
			userOpts = append(userOpts, o)
		default:
			fsOpts = append(fsOpts, o)
		}
	}
	return Join(vfsOpts), Join(userOpts), Join(fsOpts), nil
}

// Subset extracts, in order, the items of optstr that belong to map m
// and are not masked out by ignore.
func Subset(optstr string, m *Map, ignore Mask) (string, error) {
	opts, err := ParseAll(optstr)
	if err != nil {
		return "", err
	}
	var out []Option
	for _, o := range opts {
		entry, ok := m.lookup(o.Name)
		if !ok || entry.ID == 0 {
			continue
		}
		if ignore != 0 && entry.Mask&ignore != 0 {
			continue
		}
		out = append(out, o)
	}
	return Join(out), nil
}
