package ns

import (
	"fmt"
	"sync"
)

// mockDev is a tiny in-memory tree device for the tests: enough of a
// ramfs to drive walks, mounts and creates without dragging real
// devices into the package.
type mockDev struct {
	r       rune
	mu      sync.RWMutex
	trees   map[string]*mockTree
	nextDev uint32
}

type mockTree struct {
	dev      uint32
	root     *mockNode
	nextPath uint64
}

type mockNode struct {
	qid    Qid
	name   string
	perm   uint32
	parent *mockNode
	kids   map[string]*mockNode
	tree   *mockTree
}

var (
	mockTreeDev = &mockDev{r: 'm'}
	mockRootDev = &mockDev{r: '/'}
)

func init() {
	Register(mockTreeDev)
	Register(mockRootDev)
}

// tree returns the tree for spec, making it on first use.
func (d *mockDev) tree(spec string) *mockTree {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.trees == nil {
		d.trees = make(map[string]*mockTree)
	}
	t := d.trees[spec]
	if t == nil {
		t = &mockTree{dev: d.nextDev}
		d.nextDev++
		t.root = &mockNode{
			qid:  Qid{Path: 0, Type: QTDIR},
			name: "/",
			perm: DMDIR | 0777,
			kids: make(map[string]*mockNode),
			tree: t,
		}
		t.nextPath = 1
		t.root.parent = t.root
		d.trees[spec] = t
	}
	return t
}

// mk populates path (slash separated) in the tree for spec, making
// intermediate directories, and returns the final node.
func (d *mockDev) mk(spec, path string, dir bool) *mockNode {
	t := d.tree(spec)
	d.mu.Lock()
	defer d.mu.Unlock()
	n := t.root
	elems := splitSlash(path)
	for i, name := range elems {
		kid := n.kids[name]
		if kid == nil {
			kid = &mockNode{
				qid:    Qid{Path: t.nextPath},
				name:   name,
				perm:   0666,
				parent: n,
				tree:   t,
			}
			t.nextPath++
			if dir || i < len(elems)-1 {
				kid.qid.Type = QTDIR
				kid.perm = DMDIR | 0777
				kid.kids = make(map[string]*mockNode)
			}
			n.kids[name] = kid
			n.qid.Vers++
		}
		n = kid
	}
	return n
}

func splitSlash(path string) []string {
	var elems []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				elems = append(elems, path[start:i])
			}
			start = i + 1
		}
	}
	return elems
}

func (d *mockDev) Rune() rune   { return d.r }
func (d *mockDev) Name() string { return "mock" + string(d.r) }
func (d *mockDev) Reset()       {}
func (d *mockDev) Init()        {}
func (d *mockDev) Shutdown() {
	d.mu.Lock()
	d.trees = nil
	d.nextDev = 0
	d.mu.Unlock()
}

func (d *mockDev) Attach(spec string) (*Chan, error) {
	t := d.tree(spec)
	c := AttachChan(d, t.dev, t.root.qid, spec)
	c.Aux = t.root
	return c, nil
}

func (d *mockDev) Walk(c *Chan, nc *Chan, names []string) (*Walkqid, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DevWalk(c, nc, names, func(qid Qid, aux any, name string) (Qid, any, error) {
		n := aux.(*mockNode)
		if name == ".." {
			n = n.parent
			return n.qid, n, nil
		}
		if n.kids == nil {
			return Qid{}, nil, ErrNotDir
		}
		kid := n.kids[name]
		if kid == nil {
			return Qid{}, nil, ErrDoesNotExist
		}
		return kid.qid, kid, nil
	})
}

func (d *mockDev) Open(c *Chan, mode int) (*Chan, error) {
	n := c.Aux.(*mockNode)
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.kids != nil && (mode&3 != OREAD || mode&OTRUNC != 0) {
		return nil, ErrIsDir
	}
	if mode&OTRUNC != 0 {
		n.qid.Vers++
	}
	c.Qid = n.qid
	return c, nil
}

func (d *mockDev) Create(c *Chan, name string, mode int, perm uint32) (*Chan, error) {
	parent := c.Aux.(*mockNode)
	t := parent.tree
	d.mu.Lock()
	defer d.mu.Unlock()
	if parent.kids == nil {
		return nil, ErrNotDir
	}
	if parent.kids[name] != nil {
		return nil, ErrExists
	}
	n := &mockNode{
		qid:    Qid{Path: t.nextPath},
		name:   name,
		perm:   perm,
		parent: parent,
		tree:   t,
	}
	t.nextPath++
	if perm&DMDIR != 0 {
		n.qid.Type = QTDIR
		n.kids = make(map[string]*mockNode)
	}
	parent.kids[name] = n
	parent.qid.Vers++
	c.Aux = n
	c.Qid = n.qid
	return c, nil
}

func (d *mockDev) Close(c *Chan) {}

func (d *mockDev) Stat(c *Chan) (*Dir, error) {
	n := c.Aux.(*mockNode)
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Dir{Qid: n.qid, Name: n.name, Mode: n.perm}, nil
}

func (d *mockDev) Remove(c *Chan) error {
	n := c.Aux.(*mockNode)
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.parent == n {
		return ErrPerm
	}
	if n.kids != nil && len(n.kids) > 0 {
		return ErrDirNotEmpty
	}
	delete(n.parent.kids, n.name)
	n.parent.qid.Vers++
	return nil
}

func (d *mockDev) List(c *Chan) ([]Dir, error) {
	n := c.Aux.(*mockNode)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n.kids == nil {
		return nil, ErrNotDir
	}
	var entries []Dir
	for _, kid := range n.kids {
		entries = append(entries, Dir{Qid: kid.qid, Name: kid.name, Mode: kid.perm})
	}
	return entries, nil
}

// Check the interfaces are satisfied
var (
	_ Device = &mockDev{}
	_ Lister = &mockDev{}
)

// newTestProc builds a Proc over a fresh namespace and a fresh root
// tree. Each call gets an isolated root by using a distinct spec.
var testProcSpec = struct {
	mu sync.Mutex
	n  int
}{}

func newTestProc() (*Proc, string) {
	testProcSpec.mu.Lock()
	testProcSpec.n++
	spec := fmt.Sprintf("root%d", testProcSpec.n)
	testProcSpec.mu.Unlock()

	// Build the root channel by hand so it carries the plain "/"
	// path a process root has.
	t := mockRootDev.tree(spec)
	c := NewChan()
	c.Dev = mockRootDev
	c.DevNo = t.dev
	c.Qid = t.root.qid
	c.Aux = t.root
	c.path = NewPath("/")

	dot, err := c.Clone()
	if err != nil {
		panic(err)
	}
	return &Proc{ns: NewNamespace(), slash: c, dot: dot}, spec
}
