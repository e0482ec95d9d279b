package mount

import (
	"strconv"
	"strings"
)

// Format selects which of the two line-oriented formats a Table's
// parser expects. FormatAuto defers the decision to the first
// non-blank line and is sticky for the remainder of the stream.
type Format int

const (
	FormatAuto Format = iota
	FormatClassic
	FormatKernelInfo
)

// guessFormat classifies a line by the two-leading-unsigned-integer
// heuristic: "id parent ..." (kernel-info) vs anything else
// (classic), grounded on tab_parse.c's guess_tab_format.
func guessFormat(line string) Format {
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		if _, err1 := strconv.ParseUint(fields[0], 10, 64); err1 == nil {
			if _, err2 := strconv.ParseUint(fields[1], 10, 64); err2 == nil {
				return FormatKernelInfo
			}
		}
	}
	return FormatClassic
}

// parseClassicLine extracts the six-field "source target fs_type
// options [freq [pass_no]]" classic format, grounded on
// mnt_parse_tab_line. freq and pass_no default to zero, and a line
// with exactly five fields (no pass_no) is valid and simply leaves
// pass_no at zero — no stricter schema is inferred.
func parseClassicLine(line string) (*Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, NewError(ParseError, "classic line has fewer than 4 fields")
	}

	src := unmangle(fields[0])
	target := unmangle(fields[1])
	fsType := unmangle(fields[2])
	options := unmangle(fields[3])

	e := NewEntry()
	if err := e.SetSource(src); err != nil {
		return nil, err
	}
	e.Target = target
	e.SetFSType(fsType)
	if err := e.SetOptions(options); err != nil {
		return nil, err
	}

	rest := fields[4:]
	if len(rest) >= 1 {
		freq, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, NewError(ParseError, "freq is not a decimal integer")
		}
		e.Freq = freq
	}
	if len(rest) >= 2 {
		passNo, err := strconv.Atoi(rest[1])
		if err != nil {
			return nil, NewError(ParseError, "pass_no is not a decimal integer")
		}
		e.PassNo = passNo
	}

	return e, nil
}

// parseKernelInfoLine extracts the kernel mount-information format:
// "id parent maj:min root target vfs_opts [optional-fields...] -
// fs_type source fs_opts", grounded on mnt_parse_mountinfo_line.
func parseKernelInfoLine(line string) (*Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return nil, NewError(ParseError, "kernel-info line is too short")
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, NewError(ParseError, "id is not an integer")
	}
	parentID, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, NewError(ParseError, "parent id is not an integer")
	}
	if parentID == id {
		return nil, NewError(ParseError, "parent id equals id")
	}

	majMin := strings.SplitN(fields[2], ":", 2)
	if len(majMin) != 2 {
		return nil, NewError(ParseError, "malformed maj:min device number")
	}
	major, err := strconv.Atoi(majMin[0])
	if err != nil {
		return nil, NewError(ParseError, "major device number is not an integer")
	}
	minor, err := strconv.Atoi(majMin[1])
	if err != nil {
		return nil, NewError(ParseError, "minor device number is not an integer")
	}

	root := unmangle(fields[3])
	target := unmangle(fields[4])
	vfsOptions := unmangle(fields[5])

	// Optional fields run from fields[6] up to (but not including) a
	// lone "-" separator.
	dashIdx := -1
	for i := 6; i < len(fields); i++ {
		if fields[i] == "-" {
			dashIdx = i
			break
		}
	}
	if dashIdx < 0 {
		return nil, NewError(ParseError, "kernel-info line is missing the '-' separator")
	}
	tail := fields[dashIdx+1:]
	if len(tail) < 3 {
		return nil, NewError(ParseError, "kernel-info line is missing fs_type/source/fs_opts")
	}

	fsType := unmangle(tail[0])
	source := unmangle(tail[1])
	fsOptions := unmangle(tail[2])

	e := NewEntry()
	e.ID = id
	e.ParentID = parentID
	e.SetDeviceNumber(major, minor)
	e.Root = root
	e.Target = target
	e.SetVFSOptions(vfsOptions)
	e.SetFSType(fsType)

	if source == "none" {
		if err := e.SetSource(""); err != nil {
			return nil, err
		}
	} else if err := e.SetSource(source); err != nil {
		return nil, err
	}

	if fsOptions == "none" {
		e.SetFSOptions("")
	} else {
		e.SetFSOptions(fsOptions)
	}

	return e, nil
}
