package ns

import "github.com/ns9/ns9/lib/metrics"

// ewalk calls the device walk, normalizing the no-result case into an
// error so callers have a single failure shape.
func ewalk(c *Chan, nc *Chan, names []string) (*Walkqid, error) {
	wq, err := c.Dev.Walk(c, nc, names)
	if err != nil {
		return nil, err
	}
	if wq == nil {
		return nil, ErrDoesNotExist
	}
	return wq, nil
}

// walk resolves names starting from c: either all the way or not at
// all. It never consumes the caller's reference on c; on success it
// returns a new channel carrying the freshly built path, and the
// caller discards its own. On failure the returned element count says
// how many input elements to quote in an error message.
//
// Each trip around the loop: step through a mount point if any, send a
// walk request for an initial dotdot or for the prefix before the
// first dotdot, then move to the first mount point crossed along the
// way. After a crossing the current channel is already on the mounted
// side, so the next trip skips the crossing step.
func (pr *Proc) walk(c *Chan, names []string, nomount bool) (*Chan, int, error) {
	c.IncRef()
	path := c.path
	path.ref.Inc()
	var mh *MountHead

	didmount := false
	nhave := 0
	for nhave < len(names) {
		if c.Qid.Type&QTDIR == 0 {
			nerror := nhave
			path.close()
			c.Close()
			putMountHead(mh)
			return nil, nerror, ErrNotDir
		}
		ntry := len(names) - nhave
		if ntry > MaxWalkElem {
			ntry = MaxWalkElem
		}
		dotdot := false
		for i := 0; i < ntry; i++ {
			if isDotDot(names[nhave+i]) {
				if i == 0 {
					dotdot = true
					ntry = 1
				} else {
					ntry = i
				}
				break
			}
		}

		if !dotdot && !nomount && !didmount {
			pr.ns.domount(&c, &mh, &path)
		}

		d := c.Dev
		devno := c.DevNo

		wq, err := ewalk(c, nil, names[nhave:nhave+ntry])
		if wq == nil {
			// Try the rest of the union, if any. The first member
			// is c itself, so start behind it.
			if mh != nil && !nomount {
				mh.lock.RLock()
				f := mh.mount
				if f != nil {
					f = f.next
				}
				for ; f != nil; f = f.next {
					wq, err = ewalk(f.to, nil, names[nhave:nhave+ntry])
					if wq != nil {
						metrics.UnionFallbacks.Inc()
						d = f.to.Dev
						devno = f.to.DevNo
						break
					}
				}
				mh.lock.RUnlock()
			}
			if wq == nil {
				c.Close()
				path.close()
				putMountHead(mh)
				return nil, nhave + 1, err
			}
		}

		didmount = false
		var n int
		var nc *Chan
		var nmh *MountHead
		if dotdot {
			// The device returns exactly one Qid and a clone.
			path = addElem(path, "..", nil)
			nc = undomount(wq.Clone, path)
			n = 1
		} else {
			if !nomount {
				for i := 0; i < len(wq.Qids) && i < ntry-1; i++ {
					if pr.ns.findMount(&nc, &nmh, d, devno, wq.Qids[i]) {
						didmount = true
						n = i + 1
						break
					}
				}
			}
			if nc == nil {
				// No mount points along the path.
				if wq.Clone == nil {
					c.Close()
					path.close()
					putMountHead(mh)
					if len(wq.Qids) == 0 || wq.Qids[len(wq.Qids)-1].Type&QTDIR != 0 {
						return nil, nhave + len(wq.Qids) + 1, ErrDoesNotExist
					}
					return nil, nhave + len(wq.Qids), ErrNotDir
				}
				n = len(wq.Qids)
				nc = wq.Clone
			} else {
				// Stopped early, at a mount point; the device's
				// clone is not where we are going.
				if wq.Clone != nil {
					wq.Clone.Close()
					wq.Clone = nil
				}
			}
			for i := 0; i < n; i++ {
				var mtpt *Chan
				if i == n-1 && nmh != nil {
					mtpt = nmh.from
				}
				path = addElem(path, names[nhave+i], mtpt)
			}
		}
		c.Close()
		c = nc
		putMountHead(mh)
		mh = nmh
		nhave += n
		metrics.WalkSteps.Add(float64(n))
	}
	putMountHead(mh)

	nc, err := cunique(c)
	if err != nil {
		c.Close()
		path.close()
		return nil, nhave, err
	}
	c = nc

	c.path.close()
	c.path = path
	return c, nhave, nil
}
