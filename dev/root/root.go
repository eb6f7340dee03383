// Package root provides the root device, letter '/': a fixed
// read-only directory of conventional mount stubs that namespaces
// start from and bind real devices over.
package root

import (
	"github.com/ns9/ns9/ns"
)

// Register with ns
func init() {
	ns.Register(&Device{})
}

// Qid paths of the served files.
const (
	qroot = iota
	qdev
	qenv
	qmnt
	qsrv
)

type entry struct {
	path uint64
	name string
}

// stubs are the empty directories under /.
var stubs = []entry{
	{qdev, "dev"},
	{qenv, "env"},
	{qmnt, "mnt"},
	{qsrv, "srv"},
}

func qid(path uint64) ns.Qid {
	return ns.Qid{Path: path, Type: ns.QTDIR}
}

func name(path uint64) string {
	for _, e := range stubs {
		if e.path == path {
			return e.name
		}
	}
	return "/"
}

// ------------------------------------------------------------

// Device serves the root directory.
type Device struct{}

// Rune returns the device letter.
func (d *Device) Rune() rune { return '/' }

// Name returns the device name.
func (d *Device) Name() string { return "root" }

// Reset is a no-op; the tree is static.
func (d *Device) Reset() {}

// Init is a no-op.
func (d *Device) Init() {}

// Shutdown is a no-op.
func (d *Device) Shutdown() {}

// Attach returns a channel on the root directory.
func (d *Device) Attach(spec string) (*ns.Chan, error) {
	if spec != "" {
		return nil, ns.ErrBadSharp
	}
	return ns.AttachChan(d, 0, qid(qroot), spec), nil
}

// Walk walks c by names, cloning when names is empty.
func (d *Device) Walk(c *ns.Chan, nc *ns.Chan, names []string) (*ns.Walkqid, error) {
	return ns.DevWalk(c, nc, names, func(q ns.Qid, aux any, elem string) (ns.Qid, any, error) {
		if elem == ".." {
			return qid(qroot), nil, nil
		}
		if q.Path != qroot {
			// The stubs are empty.
			return ns.Qid{}, nil, ns.ErrDoesNotExist
		}
		for _, e := range stubs {
			if e.name == elem {
				return qid(e.path), nil, nil
			}
		}
		return ns.Qid{}, nil, ns.ErrDoesNotExist
	})
}

// Open allows reading only.
func (d *Device) Open(c *ns.Chan, mode int) (*ns.Chan, error) {
	if mode&3 != ns.OREAD || mode&ns.OTRUNC != 0 {
		return nil, ns.ErrPerm
	}
	return c, nil
}

// Create is not allowed anywhere in the root tree.
func (d *Device) Create(c *ns.Chan, name string, mode int, perm uint32) (*ns.Chan, error) {
	return nil, ns.ErrPerm
}

// Close is a no-op.
func (d *Device) Close(c *ns.Chan) {}

// Stat returns the directory entry for c.
func (d *Device) Stat(c *ns.Chan) (*ns.Dir, error) {
	return &ns.Dir{
		Qid:  c.Qid,
		Name: name(c.Qid.Path),
		Mode: ns.DMDIR | 0555,
	}, nil
}

// Remove is not allowed.
func (d *Device) Remove(c *ns.Chan) error {
	return ns.ErrPerm
}

// List returns the root entries; the stubs themselves are empty.
func (d *Device) List(c *ns.Chan) ([]ns.Dir, error) {
	if c.Qid.Path != qroot {
		return nil, nil
	}
	entries := make([]ns.Dir, 0, len(stubs))
	for _, e := range stubs {
		entries = append(entries, ns.Dir{
			Qid:  qid(e.path),
			Name: e.name,
			Mode: ns.DMDIR | 0555,
		})
	}
	return entries, nil
}

// Check the interfaces are satisfied
var (
	_ ns.Device = &Device{}
	_ ns.Lister = &Device{}
)
