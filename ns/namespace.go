package ns

import (
	"sync"
	"sync/atomic"

	"github.com/ns9/ns9/lib/metrics"
)

// mnthash is the width of the per-namespace mount head hash.
const mnthash = 32

// Namespace holds the mount table of a process group: a hash of mount
// heads keyed by the Qid of the directory mounted upon. Namespaces are
// reference counted so related processes can share one.
//
// Lock order: the namespace lock is acquired before any MountHead
// lock, and both are released before closing channels that could
// recurse back in.
type Namespace struct {
	ref      Ref
	mu       sync.RWMutex
	mnthash  [mnthash]*MountHead
	noattach atomic.Bool
}

// NewNamespace returns an empty namespace with one reference.
func NewNamespace() *Namespace {
	pg := &Namespace{}
	pg.ref.set(1)
	return pg
}

// IncRef adds a reference so another process can share the namespace.
func (pg *Namespace) IncRef() {
	pg.ref.Inc()
}

// Close drops a reference; the last one tears down the whole mount
// table.
func (pg *Namespace) Close() {
	if pg.ref.Dec() > 0 {
		return
	}
	pg.mu.Lock()
	for i := range pg.mnthash {
		m := pg.mnthash[i]
		pg.mnthash[i] = nil
		for m != nil {
			next := m.hash
			m.lock.Lock()
			f := m.mount
			m.mount = nil
			m.lock.Unlock()
			mountFree(f)
			putMountHead(m)
			m = next
		}
	}
	pg.mu.Unlock()
}

// SetNoAttach marks the namespace as sandboxed: device attaches are
// limited to a small whitelist.
func (pg *Namespace) SetNoAttach(v bool) {
	pg.noattach.Store(v)
}

// NoAttach reports whether the namespace is sandboxed.
func (pg *Namespace) NoAttach() bool {
	return pg.noattach.Load()
}

// Mount adds new to the mount table at old, ordered by flag&MORDER.
// It returns the mount id of the new entry.
//
// A union inherited by new (its umh from Abind) is replicated behind
// the new entry, with MAFTER substituted for MREPL so the replication
// does not itself replace. Binding such a union with MCREATE is
// refused when it has more than one member, or when its first member
// does not allow creation.
func (pg *Namespace) Mount(new, old *Chan, flag int, spec string) (int64, error) {
	if old.umh != nil {
		Logf(old, "Mount: unexpected union mount head")
	}

	if (old.Qid.Type^new.Qid.Type)&QTDIR != 0 {
		return 0, ErrMount
	}
	order := flag & MORDER
	if old.Qid.Type&QTDIR == 0 && order != MREPL {
		return 0, ErrMount
	}

	nm := newMount(new, flag, spec)
	if mh := new.umh; mh != nil {
		mh.lock.RLock()
		if um := mh.mount; um != nil {
			// Not allowed to bind when the old directory is itself
			// a union: checking um.next tells unions apart from
			// simple mount points, and um.mflag lets a bind -c
			// atop a mount -c through.
			if flag&MCREATE != 0 && (um.next != nil || um.mflag&MCREATE == 0) {
				mh.lock.RUnlock()
				mountFree(nm)
				return 0, ErrMount
			}

			// Copy a union when binding it onto a directory.
			f := nm
			for um = um.next; um != nil; um = um.next {
				o := order
				if o == MREPL {
					o = MAFTER
				}
				f.next = newMount(um.to, o, um.spec)
				f = f.next
			}
		}
		mh.lock.RUnlock()
	}

	pg.mu.Lock()
	l := &pg.mnthash[old.Qid.Path%mnthash]
	var m *MountHead
	for m = *l; m != nil; m = m.hash {
		if eqChan(m.from, old, true) {
			break
		}
		l = &m.hash
	}
	if m == nil {
		// Nothing mounted here yet: create a mount head and add it
		// to the hash. A union must preserve the original
		// directory, so non-replacing orders seed the list with a
		// synthetic entry pointing back at old.
		m = newMountHead(old)
		if order != MREPL {
			m.mount = newMount(old, 0, "")
		}
		*l = m
	}
	m.lock.Lock()
	um := m.mount
	if um != nil && order == MAFTER {
		f := um
		for f.next != nil {
			f = f.next
		}
		f.next = nm
		um = nil
	} else {
		if order != MREPL {
			f := nm
			for f.next != nil {
				f = f.next
			}
			f.next = um
			um = nil
		}
		m.mount = nm
	}
	id := nm.mountid
	m.lock.Unlock()
	pg.mu.Unlock()

	// The replaced list is freed outside the locks; closing its
	// channels can call back into devices.
	mountFree(um)

	metrics.Mounts.Inc()
	return id, nil
}

// Unmount removes mounted from the mount point mnt. A nil mounted
// takes down the whole mount point. The head is unlinked from the hash
// before its last mount goes away, so a hashed head always has a
// non-empty list.
func (pg *Namespace) Unmount(mnt, mounted *Chan) error {
	if mnt.umh != nil {
		// Should not happen: Amount resolution does not cross the
		// final mount.
		Logf(mnt, "Unmount: unexpected union mount head %p", mnt.umh)
	}

	// mounted may legitimately carry a umh: it is the result of an
	// Aopen resolution, and opening a union directory leaves one.
	// Close takes care of it.

	pg.mu.Lock()
	l := &pg.mnthash[mnt.Qid.Path%mnthash]
	var m *MountHead
	for m = *l; m != nil; m = m.hash {
		if eqChan(m.from, mnt, true) {
			break
		}
		l = &m.hash
	}
	if m == nil {
		pg.mu.Unlock()
		return ErrUnmount
	}

	m.lock.Lock()
	f := m.mount
	if mounted == nil {
		*l = m.hash
		m.mount = nil
		m.lock.Unlock()
		pg.mu.Unlock()
		mountFree(f)
		putMountHead(m)
		metrics.Unmounts.Inc()
		return nil
	}
	for p := &m.mount; f != nil; f = f.next {
		if eqChan(f.to, mounted, true) ||
			(f.to.mchan != nil && eqChan(f.to.mchan, mounted, true)) {
			*p = f.next
			f.next = nil
			if m.mount == nil {
				*l = m.hash
				m.lock.Unlock()
				pg.mu.Unlock()
				mountFree(f)
				putMountHead(m)
				metrics.Unmounts.Inc()
				return nil
			}
			m.lock.Unlock()
			pg.mu.Unlock()
			mountFree(f)
			metrics.Unmounts.Inc()
			return nil
		}
		p = &f.next
	}
	m.lock.Unlock()
	pg.mu.Unlock()
	return ErrUnion
}

// findMount looks (d, devno, qid) up in the mount hash. On a match it
// replaces *cp with the first union member's channel (closing the old
// *cp) and, when mp is non-nil, *mp with the mount head (releasing the
// old *mp), and reports true.
func (pg *Namespace) findMount(cp **Chan, mp **MountHead, d Device, devno uint32, qid Qid) bool {
	pg.mu.RLock()
	for m := pg.mnthash[qid.Path%mnthash]; m != nil; m = m.hash {
		if eqChanTDQ(m.from, d, devno, qid, true) {
			if mp != nil {
				m.ref.Inc()
			}
			m.lock.RLock()
			to := m.mount.to
			to.IncRef()
			m.lock.RUnlock()
			pg.mu.RUnlock()
			if mp != nil {
				putMountHead(*mp)
				*mp = m
			}
			if *cp != nil {
				(*cp).Close()
			}
			*cp = to
			return true
		}
	}
	pg.mu.RUnlock()
	return false
}

// domount crosses the mount point at *cp, if any, and records the
// crossing in the last trail entry of *path so that ".." can uncross
// it later.
func (pg *Namespace) domount(cp **Chan, mp **MountHead, path **Path) bool {
	if !pg.findMount(cp, mp, (*cp).Dev, (*cp).DevNo, (*cp).Qid) {
		return false
	}

	if path != nil {
		p := uniquePath(*path)
		if len(p.mtpt) == 0 {
			Logf(nil, "domount: path %s has empty mount trail", p.s)
		} else {
			from := (*mp).from
			from.IncRef()
			lc := &p.mtpt[len(p.mtpt)-1]
			if *lc != nil {
				(*lc).Close()
			}
			*lc = from
		}
		*path = p
	}
	metrics.MountCrossings.Inc()
	return true
}

// undomount returns the left-hand side of the mount point c sits on,
// consuming the trail entry that recorded the crossing. It changes
// path, so path had better be ours to change.
func undomount(c *Chan, path *Path) *Chan {
	if path.ref.Count() != 1 || len(path.mtpt) == 0 {
		Logf(nil, "undomount: path %s ref %d mlen %d", path.s, path.ref.Count(), len(path.mtpt))
	}
	if n := len(path.mtpt); n > 0 {
		if nc := path.mtpt[n-1]; nc != nil {
			c.Close()
			path.mtpt[n-1] = nil
			c = nc
		}
	}
	return c
}

// createDir finds a creatable directory for c, a mounted non-creatable
// one: a clone of the first union member flagged MCREATE. c is
// consumed on success only.
func createDir(c *Chan, m *MountHead) (*Chan, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for f := m.mount; f != nil; f = f.next {
		if f.mflag&MCREATE != 0 {
			nc, err := f.to.Clone()
			if err != nil {
				return nil, err
			}
			c.Close()
			return nc, nil
		}
	}
	return nil, ErrNoCreate
}
