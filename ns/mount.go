package ns

import (
	"sync"
	"sync/atomic"
)

var mountid int64

// Mount is one entry in a union: the target channel the walker
// descends into, plus the ordering/create flags and the spec the
// caller mounted with.
type Mount struct {
	mountid int64
	to      *Chan
	mflag   int
	spec    string
	next    *Mount
}

// newMount builds a Mount on to, taking a reference.
func newMount(to *Chan, mflag int, spec string) *Mount {
	m := &Mount{
		mountid: atomic.AddInt64(&mountid, 1),
		to:      to,
		mflag:   mflag,
		spec:    spec,
	}
	to.IncRef()
	return m
}

// mountFree releases a chain of mounts.
func mountFree(m *Mount) {
	for m != nil {
		next := m.next
		m.to.Close()
		m.next = nil
		m = next
	}
}

// MountHead is the root of a mount point: the channel mounted upon
// (owned) and the ordered list of union members.
//
// There are many holders of the top of a given mount list: the head in
// the namespace hash, the heads in channels returned from findMount
// (used by the resolver and union reads), and transiently createDir.
// The RWMutex protects the mount list; the list is deleted in Unmount
// and Namespace.Close, and the lock ensures nothing is using it then.
type MountHead struct {
	ref   Ref
	lock  sync.RWMutex
	from  *Chan
	mount *Mount
	hash  *MountHead
}

// newMountHead builds a head over from, taking a reference.
func newMountHead(from *Chan) *MountHead {
	mh := &MountHead{from: from}
	mh.ref.set(1)
	from.IncRef()
	return mh
}

// From returns the channel the mount point was mounted upon.
func (mh *MountHead) From() *Chan {
	return mh.from
}

// putMountHead drops a reference on mh (which may be nil). The mount
// list must already be gone when the last reference goes; a survivor
// is a lifetime bug.
func putMountHead(mh *MountHead) {
	if mh == nil {
		return
	}
	if mh.ref.Dec() > 0 {
		return
	}
	if mh.mount != nil {
		panic("ns: mount head freed with live mounts")
	}
	mh.from.Close()
}
