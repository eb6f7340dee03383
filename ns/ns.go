// Package ns implements a per-process hierarchical namespace: it turns
// textual path names into channels (opaque file handles) by walking a
// tree of device-backed directories while transparently crossing bind
// and mount points, including union directories composed of several
// overlaid sources.
//
// The user-visible path is assembled alongside the walk, so a channel
// remembers the route the caller actually traversed rather than the
// physical location below mount points. That is what makes ".." undo a
// mount crossing instead of escaping into the mounted tree.
package ns

import "time"

// Limits.
const (
	// MaxWalkElem is the largest number of name elements sent to a
	// device in a single walk request.
	MaxWalkElem = 16

	// MaxNameLen is the longest acceptable name, so it fits in a 9P
	// string field.
	MaxNameLen = 1<<16 - 1

	// ErrMax bounds the length of the name prefix quoted in errors.
	ErrMax = 128
)

// Qid type bits.
const (
	QTDIR    = 0x80 // directory
	QTAPPEND = 0x40 // append only
	QTEXCL   = 0x20 // exclusive use
	QTAUTH   = 0x08 // authentication file
	QTFILE   = 0x00 // plain file
)

// Qid identifies a file within a device. Two Qids are equal iff both
// Path and Vers match; Path alone gives same-file identity ignoring
// version.
type Qid struct {
	Path uint64
	Vers uint32
	Type uint8
}

// IsDir reports whether the Qid names a directory.
func (q Qid) IsDir() bool {
	return q.Type&QTDIR != 0
}

// EqQid reports whether a and b name the same file at the same version.
func EqQid(a, b Qid) bool {
	return a.Path == b.Path && a.Vers == b.Vers
}

// Open modes for NameToChan and Device.Open.
const (
	OREAD   = 0      // read
	OWRITE  = 1      // write
	ORDWR   = 2      // read and write
	OEXEC   = 3      // execute
	OTRUNC  = 16     // truncate before open
	OCEXEC  = 32     // close on exec
	ORCLOSE = 64     // remove on close
	OEXCL   = 0x1000 // exclusive create
)

// Permission bits for Device.Create.
const (
	DMDIR    = 0x80000000 // directory
	DMAPPEND = 0x40000000 // append only
	DMEXCL   = 0x20000000 // exclusive use
)

// Access modes for NameToChan.
type AccessMode int

// The access mode selects what NameToChan does with the resolved
// channel.
const (
	Aaccess AccessMode = iota // as in stat, wstat
	Abind                     // for left-hand-side of bind
	Atodir                    // as in chdir
	Aopen                     // for i/o
	Amount                    // to be mounted or mounted upon
	Acreate                   // is to be created
	Aremove                   // will be removed
)

// String returns the access mode name for diagnostics.
func (a AccessMode) String() string {
	switch a {
	case Aaccess:
		return "access"
	case Abind:
		return "bind"
	case Atodir:
		return "todir"
	case Aopen:
		return "open"
	case Amount:
		return "mount"
	case Acreate:
		return "create"
	case Aremove:
		return "remove"
	}
	return "unknown"
}

// Mount ordering and option flags.
const (
	MREPL   = 0x0000 // replace the old directory
	MBEFORE = 0x0001 // new goes in front of the union
	MAFTER  = 0x0002 // new goes behind the union
	MORDER  = 0x0003 // mask for ordering bits
	MCREATE = 0x0004 // creation allowed in this member
	MCACHE  = 0x0010 // cache reads through this member
)

// Dir is the metadata a device reports for a file. The 9P wire
// encoding is a concern of transports, not of the namespace, so
// devices hand the structure over directly.
type Dir struct {
	Qid    Qid
	Name   string
	Mode   uint32
	Length int64
	Mtime  time.Time
}
