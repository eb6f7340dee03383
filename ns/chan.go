package ns

import (
	"sync"

	"github.com/ns9/ns9/lib/metrics"
)

// Channel flag bits.
const (
	COPEN   = 0x0001 // for i/o
	CCEXEC  = 0x0008 // close on exec
	CFREE   = 0x0010 // on the free list
	CRCLOSE = 0x0020 // remove on close
)

// Mux is the multiplexer a channel may be attached to; the namespace
// only knows how to release it when the channel dies.
type Mux interface {
	Close()
}

// Chan is an opaque handle to an open file in a device subtree.
//
// Exported fields belong to the device serving the channel; everything
// the resolver maintains (path, union state, flags) stays behind
// methods.
type Chan struct {
	ref  Ref
	next *Chan // free list

	Dev       Device // serving device
	DevNo     uint32 // device instance
	Qid       Qid
	Offset    int64 // offset visible to the caller
	DevOffset int64 // offset on the device, ignoring union reads
	Iounit    int
	Aux       any // device private

	fid     int64 // unique, survives free list reuse
	flag    int
	path    *Path
	umh     *MountHead // union mount head, for union reads and Abind
	umc     *Chan      // channel in union being read
	uri     int        // union read index
	dri     int        // devdirread index
	dirrock []Dir      // directory entry rock for seeking back
	nrock   int
	mrock   int
	ismtpt  bool
	mux     Mux
	mchan   *Chan // the mount source chan when this stands in for a remote
	mqid    Qid
}

// chanalloc is the process wide channel pool.
var chanalloc struct {
	mu   sync.Mutex
	fid  int64
	free *Chan
}

// NewChan takes a channel from the free list or allocates one. Every
// record keeps its fid from first allocation; all other state resets.
func NewChan() *Chan {
	chanalloc.mu.Lock()
	c := chanalloc.free
	if c != nil {
		chanalloc.free = c.next
		c.next = nil
	} else {
		c = new(Chan)
	}
	if c.fid == 0 {
		chanalloc.fid++
		c.fid = chanalloc.fid
	}
	chanalloc.mu.Unlock()

	// Until associated with a device, Close falls through to a nop.
	c.ref.set(1)
	c.Dev = nil
	c.DevNo = 0
	c.Qid = Qid{}
	c.Offset = 0
	c.DevOffset = 0
	c.Iounit = 0
	c.Aux = nil
	c.flag = 0
	c.path = nil
	c.umh = nil
	c.umc = nil
	c.uri = 0
	c.dri = 0
	c.dirrock = nil
	c.nrock = 0
	c.mrock = 0
	c.ismtpt = false
	c.mux = nil
	c.mchan = nil
	c.mqid = Qid{}

	metrics.ChansAllocated.Inc()
	metrics.ChansLive.Inc()
	return c
}

// Fid returns the channel's permanent fid.
func (c *Chan) Fid() int64 {
	return c.fid
}

// Path returns the user-visible path of the channel, which may be nil
// for device-internal channels.
func (c *Chan) Path() *Path {
	return c.path
}

// IsMountPoint reports whether the channel sits on a mount point.
func (c *Chan) IsMountPoint() bool {
	return c.ismtpt
}

// String returns the channel's path text, nil-proof, for diagnostics.
func (c *Chan) String() string {
	if c == nil {
		return "<nil chan>"
	}
	if c.path == nil {
		return "<nil path>"
	}
	return c.path.String()
}

// IncRef adds a reference to the channel.
func (c *Chan) IncRef() {
	c.ref.Inc()
}

// chanfree releases the channel's auxiliary resources and returns the
// record to the free list.
func chanfree(c *Chan) {
	c.flag = CFREE

	if c.dirrock != nil {
		c.dirrock = nil
		c.nrock = 0
		c.mrock = 0
	}
	if c.umh != nil {
		putMountHead(c.umh)
		c.umh = nil
	}
	if c.umc != nil {
		c.umc.Close()
		c.umc = nil
	}
	if c.mux != nil {
		c.mux.Close()
		c.mux = nil
	}
	if c.mchan != nil {
		c.mchan.Close()
		c.mchan = nil
	}

	c.path.close()
	c.path = nil
	c.Aux = nil

	metrics.ChansLive.Dec()
	chanalloc.mu.Lock()
	c.next = chanalloc.free
	chanalloc.free = c
	chanalloc.mu.Unlock()
}

// Close drops a reference. The last reference closes the device side
// (device trouble cannot stop the free) and returns the record to the
// pool. Closing a dead or free channel is a lifetime bug and panics.
func (c *Chan) Close() {
	if c == nil || c.ref.Count() < 1 || c.flag&CFREE != 0 {
		panic("ns: close of dead channel")
	}
	if c.ref.Dec() > 0 {
		return
	}
	if c.Dev != nil {
		c.Dev.Close(c)
	}
	chanfree(c)
}

// Clone returns a new channel at the same file, via the device's
// zero-element walk.
func (c *Chan) Clone() (*Chan, error) {
	if c == nil || c.ref.Count() < 1 || c.flag&CFREE != 0 {
		panic("ns: clone of dead channel")
	}
	wq, err := c.Dev.Walk(c, nil, nil)
	if err != nil {
		return nil, err
	}
	if wq == nil || wq.Clone == nil {
		return nil, ErrCloneFailed
	}
	nc := wq.Clone
	nc.path = c.path
	if nc.path != nil {
		nc.path.ref.Inc()
	}
	return nc, nil
}

// cunique makes sure we hold the only copy of c, cloning if the
// channel is shared. A union mount head surviving to this point is
// discarded with a warning; the original does the same.
func cunique(c *Chan) (*Chan, error) {
	if c.ref.Count() != 1 {
		nc, err := c.Clone()
		if err != nil {
			return nil, err
		}
		c.Close()
		c = nc
	}

	if c.umh != nil {
		Logf(c, "cunique: unexpected union mount head")
		putMountHead(c.umh)
		c.umh = nil
	}
	return c, nil
}

// eqChan reports whether a and b are the same file on the same device,
// optionally ignoring the Qid version.
func eqChan(a, b *Chan, skipvers bool) bool {
	if a.Qid.Path != b.Qid.Path {
		return false
	}
	if !skipvers && a.Qid.Vers != b.Qid.Vers {
		return false
	}
	return a.Dev == b.Dev && a.DevNo == b.DevNo
}

// eqChanTDQ is eqChan against a bare (device, instance, qid) triple.
func eqChanTDQ(a *Chan, d Device, devno uint32, qid Qid, skipvers bool) bool {
	if a.Qid.Path != qid.Path {
		return false
	}
	if !skipvers && a.Qid.Vers != qid.Vers {
		return false
	}
	return a.Dev == d && a.DevNo == devno
}

// ChanStat stats the channel through its device.
func ChanStat(c *Chan) (*Dir, error) {
	d, err := c.Dev.Stat(c)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrShortStat
	}
	return d, nil
}
