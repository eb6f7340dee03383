package ns

// listChan lists a directory channel through its device's Lister
// capability.
func listChan(c *Chan) ([]Dir, error) {
	lister, ok := c.Dev.(Lister)
	if !ok {
		return nil, ErrNotList
	}
	return lister.List(c)
}

// ReadDir returns the entries of the directory channel c, which
// should come from an Aopen resolution. A union directory merges the
// listings of its members in mount order; the first member owning a
// name wins, and members that cannot be listed are skipped the way
// union reads skip members that fail.
func ReadDir(c *Chan) ([]Dir, error) {
	if !c.Qid.IsDir() {
		return nil, ErrNotDir
	}
	if c.umh == nil {
		return listChan(c)
	}

	c.umh.lock.RLock()
	defer c.umh.lock.RUnlock()
	seen := make(map[string]bool)
	var all []Dir
	for f := c.umh.mount; f != nil; f = f.next {
		entries, err := listChan(f.to)
		if err != nil {
			Debugf(f.to, "union member skipped in read: %v", err)
			continue
		}
		for _, e := range entries {
			if !seen[e.Name] {
				seen[e.Name] = true
				all = append(all, e)
			}
		}
	}
	return all, nil
}
