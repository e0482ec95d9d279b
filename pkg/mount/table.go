package mount

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Direction controls which way a lookup or iterator walks the table's
// entry list.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// ErrCallback is invoked once per malformed line: a negative return is
// fatal and aborts the parse, zero means "treat as success" (unusual
// but accepted), and positive means "skip this line and continue."
// The default in the absence of a callback is "skip, continue."
type ErrCallback func(t *Table, filename string, lineNumber int) int

// Table is an ordered collection of mount entries plus the parser and
// lookup strategies over it.
type Table struct {
	Format  Format
	entries []*Entry
	cache   Cache
	errcb   ErrCallback
	log     *logrus.Entry
}

// NewTable returns an empty table with format auto-detection enabled.
func NewTable() *Table {
	return &Table{Format: FormatAuto}
}

// SetCache installs the borrowed (not owned) resolver cache consulted
// by canonicalizing lookup passes.
func (t *Table) SetCache(c Cache) { t.cache = c }

// SetErrCallback installs the recoverable-parse-error hook.
func (t *Table) SetErrCallback(cb ErrCallback) { t.errcb = cb }

// SetLogger attaches a structured logger; nil disables logging.
func (t *Table) SetLogger(l *logrus.Entry) { t.log = l }

// NEntries returns the cached entry count, always equal to the list
// length at any external entry point.
func (t *Table) NEntries() int { return len(t.entries) }

// Entries returns the table's entries in insertion order. The caller
// must not mutate the returned slice.
func (t *Table) Entries() []*Entry { return t.entries }

// Add appends entry, incrementing the count. entry must not already
// belong to another table.
func (t *Table) Add(entry *Entry) error {
	if entry.table != nil && entry.table != t {
		return NewError(InvalidArgument, "entry already belongs to another table")
	}
	entry.table = t
	t.entries = append(t.entries, entry)
	return nil
}

// Remove unlinks entry from the table, decrementing the count. It is
// a no-op if entry does not belong to t.
func (t *Table) Remove(entry *Entry) {
	for i, e := range t.entries {
		if e == entry {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			entry.table = nil
			return
		}
	}
}

func (t *Table) debugf(category string, format string, args ...interface{}) {
	if t.log == nil {
		return
	}
	t.log.WithField("category", category).Debugf(format, args...)
}

// ParseStream reads newline-delimited records from r, classifying
// each as classic or kernel-info (guessing once, stickily, if
// Format is FormatAuto), and appends a new Entry per successfully
// parsed line. filename is used only for error-callback and log
// context.
func (t *Table) ParseStream(r io.Reader, filename string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if t.Format == FormatAuto {
			t.Format = guessFormat(trimmed)
		}

		var entry *Entry
		var err error
		switch t.Format {
		case FormatKernelInfo:
			entry, err = parseKernelInfoLine(trimmed)
		default:
			entry, err = parseClassicLine(trimmed)
		}

		if err != nil {
			t.debugf("tab", "%s:%d: parse error: %v", filename, lineNo, err)
			action := 1 // default: skip, continue
			if t.errcb != nil {
				action = t.errcb(t, filename, lineNo)
			}
			switch {
			case action < 0:
				return Wrap(ParseError, "fatal parse error", err)
			case action == 0:
				// treated as success despite the error; nothing to add
				continue
			default:
				continue // skip, continue
			}
		}

		if err := t.Add(entry); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ParseFile opens path, parses it, and closes it.
func (t *Table) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return Wrap(IOError, "opening table file", err)
	}
	defer f.Close()
	return t.ParseStream(f, path)
}

// NewTableFromFile is NewTable + ParseFile.
func NewTableFromFile(path string) (*Table, error) {
	t := NewTable()
	if err := t.ParseFile(path); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseFstab parses a classic-format fstab file at fstabPath,
// defaulting to /etc/fstab when fstabPath is empty.
func (t *Table) ParseFstab(fstabPath string) error {
	if fstabPath == "" {
		fstabPath = "/etc/fstab"
	}
	t.Format = FormatClassic
	return t.ParseFile(fstabPath)
}

// ParseMtab implements the mtab resolution fallback chain, grounded on
// mnt_tab_parse_mtab: try the configured mtab path first, then
// /proc/self/mountinfo as kernel-info, then /proc/mounts as classic.
func (t *Table) ParseMtab(mtabPath string) error {
	if mtabPath == "" {
		mtabPath = "/etc/mtab"
	}
	if err := t.ParseFile(mtabPath); err == nil {
		return nil
	}

	t.Format = FormatKernelInfo
	if err := t.ParseFile("/proc/self/mountinfo"); err == nil {
		return nil
	}

	t.Format = FormatClassic
	return t.ParseFile("/proc/mounts")
}

func (t *Table) walkOrder(dir Direction) []*Entry {
	if dir == Forward {
		return t.entries
	}
	reversed := make([]*Entry, len(t.entries))
	for i, e := range t.entries {
		reversed[len(t.entries)-1-i] = e
	}
	return reversed
}

// FindTarget implements the by-target-path lookup: up to three passes
// (raw, canonicalized-input-vs-raw, canonicalized-vs-canonicalized).
// The swap-entry special-case (skipping a swap row whose target is
// "/") applies only on the third pass.
func (t *Table) FindTarget(target string, dir Direction) *Entry {
	order := t.walkOrder(dir)

	for _, e := range order {
		if e.StreqTarget(target) {
			return e
		}
	}
	if t.cache == nil {
		return nil
	}
	cn, ok := t.cache.ResolvePath(target)
	if !ok {
		return nil
	}
	for _, e := range order {
		if e.Target == cn {
			return e
		}
	}
	for _, e := range order {
		if e.Flags&FlagSwap != 0 && e.Target == "/" {
			continue
		}
		if tcn, ok := t.cache.ResolvePath(e.Target); ok && tcn == cn {
			return e
		}
	}
	return nil
}

// FindSourcePath implements the by-source-path lookup: raw equality;
// canonicalized input vs raw; canonicalized input vs canonicalized
// stored path (network/pseudo entries excluded from these two
// canonicalized passes); then, if any entry is tag-form, attempt to
// resolve each such entry's tag to a device via the cache and
// compare, falling back to udev-symlink resolution on a permission
// error reading tags.
func (t *Table) FindSourcePath(source string, dir Direction) *Entry {
	order := t.walkOrder(dir)

	for _, e := range order {
		if e.StreqSource(source) {
			return e
		}
	}
	if t.cache == nil {
		return nil
	}
	cn, ok := t.cache.ResolvePath(source)
	if !ok {
		return nil
	}
	for _, e := range order {
		if e.Flags&(FlagNetwork|FlagPseudo) != 0 {
			continue
		}
		if e.StreqSource(cn) {
			return e
		}
	}
	for _, e := range order {
		if e.Flags&(FlagNetwork|FlagPseudo) != 0 {
			continue
		}
		src, ok := e.Source()
		if !ok {
			continue
		}
		if resolved, ok := t.cache.ResolvePath(src); ok && resolved == cn {
			return e
		}
	}

	anyTagForm := lo.ContainsBy(order, func(e *Entry) bool { return e.IsTagSource() })
	if !anyTagForm {
		return nil
	}
	permissionDenied, err := t.cache.ReadTags(cn)
	if err != nil {
		if !permissionDenied {
			return nil
		}
		for _, e := range order {
			if !e.IsTagSource() {
				continue
			}
			if dev, ok := t.cache.ResolveTag(e.tagName, e.tagValue); ok && dev == cn {
				return e
			}
		}
		return nil
	}
	for _, e := range order {
		if e.IsTagSource() && t.cache.DeviceHasTag(cn, e.tagName, e.tagValue) {
			return e
		}
	}
	return nil
}

// FindTag implements the by-tag lookup: literal comparison first,
// then (if the cache can resolve the tag to a device) retry as a
// source-path lookup.
func (t *Table) FindTag(name, value string, dir Direction) *Entry {
	for _, e := range t.walkOrder(dir) {
		if n, v, ok := e.Tag(); ok && n == name && v == value {
			return e
		}
	}
	if t.cache == nil {
		return nil
	}
	dev, ok := t.cache.ResolveTag(name, value)
	if !ok {
		return nil
	}
	return t.FindSourcePath(dev, dir)
}

// FindSource is the high-level by-source lookup: it parses source and
// dispatches to FindTag when it contains '=', else to FindSourcePath.
func (t *Table) FindSource(source string, dir Direction) *Entry {
	if name, value, ok := splitTag(source); ok {
		return t.FindTag(name, value, dir)
	}
	return t.FindSourcePath(source, dir)
}

// FindPair returns the first entry for which both MatchTarget and
// MatchSource succeed. Intentionally the most expensive lookup.
func (t *Table) FindPair(target, source string, dir Direction) *Entry {
	for _, e := range t.walkOrder(dir) {
		if e.MatchTarget(target, t.cache) && e.MatchSource(source, t.cache) {
			return e
		}
	}
	return nil
}

// RootEntry returns the kernel-info entry with the smallest parent
// ID — the root of the mount tree.
func (t *Table) RootEntry() *Entry {
	var root *Entry
	for _, e := range t.entries {
		if root == nil || e.ParentID < root.ParentID {
			root = e
		}
	}
	return root
}

// NextChildFS walks the table for the child entry with the smallest
// ID strictly greater than prev's ID whose ParentID equals parent's
// ID. Pass prev=nil to start the walk. Returns nil once no further
// child remains.
func (t *Table) NextChildFS(parent *Entry, prev *Entry) *Entry {
	var best *Entry
	floor := -1
	if prev != nil {
		floor = prev.ID
	}
	for _, e := range t.entries {
		if e.ParentID != parent.ID {
			continue
		}
		if e.ID <= floor {
			continue
		}
		if best == nil || e.ID < best.ID {
			best = e
		}
	}
	return best
}

// Iterator walks a table's entries by index and direction. It does
// not own the table and must not outlive it. It stores an index
// rather than a raw pointer precisely so removing entries
// mid-iteration cannot invalidate it the way a pointer-based cursor
// could.
type Iterator struct {
	table *Table
	pos   int // index of the next entry to return, direction-relative
	dir   Direction
	done  bool
}

// NewIterator returns a fresh iterator primed for a walk in dir.
func NewIterator(t *Table, dir Direction) *Iterator {
	it := &Iterator{table: t}
	it.Reset(dir)
	return it
}

// Reset re-primes the iterator for a fresh walk in dir.
func (it *Iterator) Reset(dir Direction) {
	it.dir = dir
	it.done = false
	if dir == Forward {
		it.pos = 0
	} else {
		it.pos = len(it.table.entries) - 1
	}
}

// Next returns the next entry in direction order, or ok=false at end.
func (it *Iterator) Next() (entry *Entry, ok bool) {
	if it.done || it.pos < 0 || it.pos >= len(it.table.entries) {
		it.done = true
		return nil, false
	}
	entry = it.table.entries[it.pos]
	if it.dir == Forward {
		it.pos++
	} else {
		it.pos--
	}
	return entry, true
}

// SetIter parks the iterator immediately past entry so a subsequent
// Next returns its successor (in the iterator's current direction).
func (it *Iterator) SetIter(entry *Entry) {
	for i, e := range it.table.entries {
		if e == entry {
			if it.dir == Forward {
				it.pos = i + 1
			} else {
				it.pos = i - 1
			}
			it.done = false
			return
		}
	}
}
