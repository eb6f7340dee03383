// Package ram provides an in-memory read-write tree device, letter
// 'r'. Attaching the same spec twice reaches the same tree, so
// independently resolved channels agree on identity; distinct specs
// are fully independent trees with their own device instance number.
package ram

import (
	"sort"
	"sync"
	"time"

	"github.com/ns9/ns9/ns"
)

// Register with ns
func init() {
	ns.Register(&Device{})
}

// trees holds every tree attached since the device was last reset;
// Reset and Shutdown drop them all.
var trees = newTreesInfo()

// treesInfo indexes trees by attach spec.
type treesInfo struct {
	mu      sync.Mutex
	trees   map[string]*tree
	nextDev uint32
}

func newTreesInfo() *treesInfo {
	return &treesInfo{
		trees: make(map[string]*tree, 4),
	}
}

// get returns the tree for spec, making it on first attach.
func (ti *treesInfo) get(spec string) *tree {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	t := ti.trees[spec]
	if t != nil {
		return t
	}
	t = &tree{spec: spec, dev: ti.nextDev}
	ti.nextDev++
	t.root = &node{
		qid:      ns.Qid{Path: t.nextPath, Type: ns.QTDIR},
		name:     "/",
		perm:     ns.DMDIR | 0777,
		mtime:    time.Now(),
		children: make(map[string]*node),
		tree:     t,
	}
	t.nextPath++
	t.root.parent = t.root
	ti.trees[spec] = t
	return t
}

// reset drops every tree.
func (ti *treesInfo) reset() {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.trees = make(map[string]*tree, 4)
}

// tree is one attachable file tree.
type tree struct {
	mu       sync.RWMutex
	spec     string // the attach spec naming this tree
	dev      uint32 // device instance number
	root     *node
	nextPath uint64
}

// node is a file or directory in a tree. children is nil for plain
// files. The qid version bumps on every content or membership change.
type node struct {
	qid      ns.Qid
	name     string
	perm     uint32
	length   int64
	mtime    time.Time
	parent   *node
	children map[string]*node
	tree     *tree
}

func (n *node) dir() ns.Dir {
	return ns.Dir{
		Qid:    n.qid,
		Name:   n.name,
		Mode:   n.perm,
		Length: n.length,
		Mtime:  n.mtime,
	}
}

// ------------------------------------------------------------

// Device serves ram trees to the namespace.
type Device struct{}

// Rune returns the device letter.
func (d *Device) Rune() rune { return 'r' }

// Name returns the device name.
func (d *Device) Name() string { return "ram" }

// Reset drops all trees.
func (d *Device) Reset() {
	trees.reset()
}

// Init is a no-op; trees are made on attach.
func (d *Device) Init() {}

// Shutdown drops all trees.
func (d *Device) Shutdown() {
	trees.reset()
}

// Attach returns a channel on the root of the tree named by spec.
func (d *Device) Attach(spec string) (*ns.Chan, error) {
	t := trees.get(spec)
	t.mu.RLock()
	qid := t.root.qid
	t.mu.RUnlock()
	c := ns.AttachChan(d, t.dev, qid, spec)
	c.Aux = t.root
	return c, nil
}

// Walk walks c by names, cloning when names is empty.
func (d *Device) Walk(c *ns.Chan, nc *ns.Chan, names []string) (*ns.Walkqid, error) {
	t := c.Aux.(*node).tree
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ns.DevWalk(c, nc, names, func(qid ns.Qid, aux any, name string) (ns.Qid, any, error) {
		n := aux.(*node)
		if name == ".." {
			n = n.parent
			return n.qid, n, nil
		}
		if n.children == nil {
			return ns.Qid{}, nil, ns.ErrNotDir
		}
		child := n.children[name]
		if child == nil {
			return ns.Qid{}, nil, ns.ErrDoesNotExist
		}
		return child.qid, child, nil
	})
}

// Open prepares c for I/O. Directories only open for read; OTRUNC
// empties a file and bumps its version.
func (d *Device) Open(c *ns.Chan, mode int) (*ns.Chan, error) {
	n := c.Aux.(*node)
	t := n.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	if n.children != nil && (mode&3 != ns.OREAD || mode&ns.OTRUNC != 0) {
		return nil, ns.ErrIsDir
	}
	if mode&ns.OTRUNC != 0 {
		n.length = 0
		n.qid.Vers++
		n.mtime = time.Now()
	}
	c.Qid = n.qid
	c.Offset = 0
	return c, nil
}

// Create makes name in the directory c and moves c onto it.
func (d *Device) Create(c *ns.Chan, name string, mode int, perm uint32) (*ns.Chan, error) {
	parent := c.Aux.(*node)
	t := parent.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	if parent.children == nil {
		return nil, ns.ErrNotDir
	}
	if parent.children[name] != nil {
		return nil, ns.ErrExists
	}
	n := &node{
		qid:    ns.Qid{Path: t.nextPath},
		name:   name,
		perm:   perm,
		mtime:  time.Now(),
		parent: parent,
		tree:   t,
	}
	t.nextPath++
	if perm&ns.DMDIR != 0 {
		n.qid.Type = ns.QTDIR
		n.children = make(map[string]*node)
	}
	parent.children[name] = n
	parent.qid.Vers++
	parent.mtime = n.mtime
	c.Aux = n
	c.Qid = n.qid
	c.Offset = 0
	return c, nil
}

// Close is a no-op; nothing is held per channel.
func (d *Device) Close(c *ns.Chan) {}

// Stat returns the directory entry for c.
func (d *Device) Stat(c *ns.Chan) (*ns.Dir, error) {
	n := c.Aux.(*node)
	t := n.tree
	t.mu.RLock()
	defer t.mu.RUnlock()
	dir := n.dir()
	return &dir, nil
}

// Remove unlinks the file c from its tree. The root stays; a directory
// must be empty.
func (d *Device) Remove(c *ns.Chan) error {
	n := c.Aux.(*node)
	t := n.tree
	t.mu.Lock()
	defer t.mu.Unlock()
	if n == t.root {
		return ns.ErrPerm
	}
	if n.children != nil && len(n.children) > 0 {
		return ns.ErrDirNotEmpty
	}
	delete(n.parent.children, n.name)
	n.parent.qid.Vers++
	n.parent.mtime = time.Now()
	return nil
}

// List returns the entries of the directory c, sorted by name.
func (d *Device) List(c *ns.Chan) ([]ns.Dir, error) {
	n := c.Aux.(*node)
	t := n.tree
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n.children == nil {
		return nil, ns.ErrNotDir
	}
	entries := make([]ns.Dir, 0, len(n.children))
	for _, child := range n.children {
		entries = append(entries, child.dir())
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Check the interfaces are satisfied
var (
	_ ns.Device = &Device{}
	_ ns.Lister = &Device{}
)
