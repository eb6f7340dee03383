// Package nspath parses and validates the textual names the namespace
// resolves. Names use '/' as separator; "." and ".." have the usual
// meanings; a leading '#' introduces a device specifier and is dealt
// with by the resolver, not here.
package nspath

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// MaxNameLen is the longest acceptable name, so it fits a 9P string
// field.
const MaxNameLen = 1<<16 - 1

var (
	// ErrNameTooLong means the name exceeds MaxNameLen bytes.
	ErrNameTooLong = errors.New("name too long")

	// ErrBadCharacter means the name contains a frog: a control
	// byte, DEL, or '/' where one is not allowed.
	ErrBadCharacter = errors.New("bad character in file name")
)

// isfrog marks the forbidden bytes: all controls, DEL, and '/'
// (allowed or not per call). Bytes at or above utf8.RuneSelf are
// always acceptable, so multi-byte runes pass unconditionally.
var isfrog = func() (t [256]bool) {
	for i := 0; i < 0x20; i++ {
		t[i] = true
	}
	t[0x7f] = true
	t['/'] = true
	return
}()

// Valid checks that name fits a 9P string and contains no frogs.
// slashok flags whether '/' is a valid character or an error.
//
// The kernel original has a duplicating variant that copies the name
// before the second scan so a malicious thread cannot mutate it; Go
// strings are immutable, so the single scan is safe.
func Valid(name string, slashok bool) error {
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= utf8.RuneSelf {
			continue
		}
		if isfrog[c] && (!slashok || c != '/') {
			return fmt.Errorf("%w: %q", ErrBadCharacter, name)
		}
	}
	return nil
}

// SkipSlash skips leading '/' and './' runs. The name is known to be
// valid.
func SkipSlash(name string) string {
	for len(name) > 0 && (name[0] == '/' || (name[0] == '.' && (len(name) == 1 || name[1] == '/'))) {
		name = name[1:]
	}
	return name
}

// An Elemlist is a parsed name: the elements between slashes, the byte
// offset of each element's end boundary (used to quote an exact prefix
// in error messages), and whether the name must resolve to a
// directory.
type Elemlist struct {
	Name      string   // the name that was parsed
	Elems     []string // the elements
	Off       []int    // Off[0] is the first element's start; Off[i] the i'th element's end
	MustBeDir bool     // name ended in /, /. or a run thereof
}

// Parse splits a valid name into an Elemlist. An empty name yields no
// elements and MustBeDir set, as does any name made only of slashes
// and "." elements. A name ending in "/" or "/." sets MustBeDir too:
// "/adm/users/." must still reject a plain file at /adm/users.
func Parse(name string) *Elemlist {
	e := &Elemlist{
		Name: name,
		Off:  []int{len(name) - len(SkipSlash(name))},
	}
	rest := name
	for {
		rest = SkipSlash(rest)
		if rest == "" {
			e.Off[len(e.Elems)] = len(name)
			e.MustBeDir = true
			break
		}
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			e.Elems = append(e.Elems, rest)
			e.Off = append(e.Off, len(name))
			e.MustBeDir = false
			break
		}
		e.Elems = append(e.Elems, rest[:i])
		e.Off = append(e.Off, len(name)-len(rest)+i)
		rest = rest[i+1:]
	}
	return e
}

// Clean compresses multiple slashes, eliminates "." elements and
// resolves ".." the way the kernel's cleanname does. The empty name
// cleans to ".".
func Clean(name string) string {
	if name == "" {
		return "."
	}
	return path.Clean(name)
}
