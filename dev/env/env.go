// Package env provides the environment device, letter 'e': a flat
// view of the process environment, one file per variable. Creating a
// file sets an empty variable, removing one unsets it, and opening
// with OTRUNC clears it. It is in the sandbox whitelist, since it only exposes the process's
// own state.
package env

import (
	"hash/fnv"
	"os"
	"sort"
	"strings"

	"github.com/ns9/ns9/ns"
)

// Register with ns
func init() {
	ns.Register(&Device{})
}

// qroot is the Qid path of the device root; variables hash their name
// into the rest of the path space.
const qroot = 0

func varQid(name string) ns.Qid {
	h := fnv.New64a()
	h.Write([]byte(name))
	p := h.Sum64()
	if p == qroot {
		p = 1
	}
	return ns.Qid{Path: p}
}

// ------------------------------------------------------------

// Device serves the environment.
type Device struct{}

// Rune returns the device letter.
func (d *Device) Rune() rune { return 'e' }

// Name returns the device name.
func (d *Device) Name() string { return "env" }

// Reset is a no-op; the environment is the backing store.
func (d *Device) Reset() {}

// Init is a no-op.
func (d *Device) Init() {}

// Shutdown is a no-op.
func (d *Device) Shutdown() {}

// Attach returns a channel on the environment directory.
func (d *Device) Attach(spec string) (*ns.Chan, error) {
	c := ns.AttachChan(d, 0, ns.Qid{Path: qroot, Type: ns.QTDIR}, spec)
	return c, nil
}

// Walk walks c by names, cloning when names is empty. Aux carries the
// variable name of a non-root position.
func (d *Device) Walk(c *ns.Chan, nc *ns.Chan, names []string) (*ns.Walkqid, error) {
	return ns.DevWalk(c, nc, names, func(q ns.Qid, aux any, elem string) (ns.Qid, any, error) {
		if elem == ".." {
			return ns.Qid{Path: qroot, Type: ns.QTDIR}, nil, nil
		}
		if q.Path != qroot {
			return ns.Qid{}, nil, ns.ErrNotDir
		}
		if _, ok := os.LookupEnv(elem); !ok {
			return ns.Qid{}, nil, ns.ErrDoesNotExist
		}
		return varQid(elem), elem, nil
	})
}

// Open prepares c for I/O; OTRUNC clears the variable.
func (d *Device) Open(c *ns.Chan, mode int) (*ns.Chan, error) {
	if c.Qid.IsDir() {
		if mode&3 != ns.OREAD || mode&ns.OTRUNC != 0 {
			return nil, ns.ErrIsDir
		}
		return c, nil
	}
	if mode&ns.OTRUNC != 0 {
		if err := os.Setenv(c.Aux.(string), ""); err != nil {
			return nil, err
		}
	}
	c.Offset = 0
	return c, nil
}

// Create sets a new environment variable.
func (d *Device) Create(c *ns.Chan, name string, mode int, perm uint32) (*ns.Chan, error) {
	if !c.Qid.IsDir() {
		return nil, ns.ErrNotDir
	}
	if perm&ns.DMDIR != 0 {
		return nil, ns.ErrPerm
	}
	if _, ok := os.LookupEnv(name); ok {
		return nil, ns.ErrExists
	}
	if err := os.Setenv(name, ""); err != nil {
		return nil, err
	}
	c.Qid = varQid(name)
	c.Aux = name
	c.Offset = 0
	return c, nil
}

// Close is a no-op.
func (d *Device) Close(c *ns.Chan) {}

// Stat returns the directory entry for c.
func (d *Device) Stat(c *ns.Chan) (*ns.Dir, error) {
	if c.Qid.IsDir() {
		return &ns.Dir{Qid: c.Qid, Name: "env", Mode: ns.DMDIR | 0775}, nil
	}
	name := c.Aux.(string)
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil, ns.ErrDoesNotExist
	}
	return &ns.Dir{
		Qid:    c.Qid,
		Name:   name,
		Mode:   0664,
		Length: int64(len(v)),
	}, nil
}

// Remove unsets the variable.
func (d *Device) Remove(c *ns.Chan) error {
	if c.Qid.IsDir() {
		return ns.ErrPerm
	}
	name := c.Aux.(string)
	if _, ok := os.LookupEnv(name); !ok {
		return ns.ErrDoesNotExist
	}
	return os.Unsetenv(name)
}

// List returns one entry per environment variable, sorted.
func (d *Device) List(c *ns.Chan) ([]ns.Dir, error) {
	if !c.Qid.IsDir() {
		return nil, ns.ErrNotDir
	}
	environ := os.Environ()
	entries := make([]ns.Dir, 0, len(environ))
	for _, kv := range environ {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		name, v := kv[:i], kv[i+1:]
		entries = append(entries, ns.Dir{
			Qid:    varQid(name),
			Name:   name,
			Mode:   0664,
			Length: int64(len(v)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Check the interfaces are satisfied
var (
	_ ns.Device = &Device{}
	_ ns.Lister = &Device{}
)
