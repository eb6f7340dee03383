package ns

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ns9/ns9/lib/metrics"
	"github.com/ns9/ns9/ns/nspath"
)

// noattachOK is the whitelist of device letters a sandboxed namespace
// may still attach: pipes, file descriptors and environment only give
// access to the process's own resources; cons and proc are the iffy
// but traditional exceptions.
const noattachOK = "|decp"

// truncName shortens t to fewer than max bytes, replacing the tail
// with "..." without splitting a UTF-8 sequence.
func truncName(t string, max int) string {
	if len(t) < max {
		return t
	}
	n := max - 4
	if n < 0 {
		return t[:max-1]
	}
	for n > 0 && t[n]&0xC0 == 0x80 {
		n--
	}
	return t[:n] + "..."
}

// truncAtRune truncates s to at most n bytes at a rune boundary.
func truncAtRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// nameError wraps err with a quotation of the first length bytes of
// aname. Short names are quoted whole; long ones keep a suffix chosen
// at '/' boundaries so the message still carries a little information,
// and ridiculous single elements are chopped outright.
func nameError(aname string, length int, err error) error {
	errlen := len(err.Error())
	var display string
	if length < ErrMax/3 || length+errlen < 2*ErrMax/3 {
		display = truncAtRune(aname, length)
	} else {
		ename := length
		next := ename
		name := ename
		for {
			name = next
			if next == 0 {
				break
			}
			for next > 0 {
				next--
				if aname[next] == '/' {
					break
				}
			}
			l := ename - next
			if !(l < ErrMax/3 || l+errlen < 2*ErrMax/3) {
				break
			}
		}
		if name == ename {
			// A single element too long for any message: chop it.
			name = ename - ErrMax/4
			if name < 0 {
				name = 0
			}
			for i := 0; name < ename && !utf8.RuneStart(aname[name]) && i < utf8.UTFMax; i++ {
				name++
			}
		}
		display = "..." + aname[name:ename]
	}
	return &nameErr{name: display, err: err}
}

// nameErr is an error carrying the quoted slice of the name that
// failed; it unwraps to the underlying cause so errors.Is keeps
// working through the quotation.
type nameErr struct {
	name string
	err  error
}

func (e *nameErr) Error() string {
	return fmt.Sprintf("%q %s", e.name, e.err)
}

func (e *nameErr) Unwrap() error {
	return e.err
}

// finishError dresses err for the caller, quoting the first nerror
// elements of the parsed name.
func finishError(aname string, prefix int, e *nspath.Elemlist, nerror int, err error) error {
	metrics.ResolutionErrors.Inc()
	if nerror == 0 {
		return err
	}
	if nerror < 0 || nerror > len(e.Elems) {
		Logf(nil, "namec %s error with nerror=%d", aname, nerror)
		return err
	}
	return nameError(aname, prefix+e.Off[nerror], err)
}

// startingChan picks where resolution begins from the first byte of
// name: the root, a fresh device attach for a '#' sigil, or dot. It
// returns the channel, the remaining name, and whether mounts are
// suppressed for this resolution.
func (pr *Proc) startingChan(name string) (*Chan, string, bool, error) {
	switch name[0] {
	case '/':
		c := pr.slash
		c.IncRef()
		return c, name, false, nil

	case '#':
		n := 0
		for n < len(name) && (name[n] != '/' || n < 2) {
			if n >= ErrMax-1 {
				return nil, "", false, ErrFilename
			}
			n++
		}
		buf := name[:n]
		r, size := utf8.DecodeRuneInString(buf[1:])
		if size == 0 {
			return nil, "", false, ErrBadSharp
		}
		if pr.ns.NoAttach() && !strings.ContainsRune(noattachOK, r) {
			return nil, "", false, ErrNoAttach
		}
		d, ok := DevByRune(r)
		if !ok {
			return nil, "", false, ErrBadSharp
		}
		c, err := d.Attach(buf[1+size:])
		if err != nil {
			return nil, "", false, err
		}
		return c, name[n:], true, nil

	default:
		c := pr.dot
		c.IncRef()
		return c, name, false, nil
	}
}

// NameToChan turns a name into a channel.
//
// Resolving with Aopen, Acreate, Aremove or Aaccess guarantees the
// result is the only reference to its fid, which Aremove needs before
// handing the channel to the device's remove. Atodir and Amount make
// no such promise: they stay on the near side of a final mount point
// so that binding onto "/" or "." works.
func (pr *Proc) NameToChan(aname string, amode AccessMode, omode int, perm uint32) (*Chan, error) {
	metrics.Resolutions.WithLabelValues(amode.String()).Inc()

	if aname == "" {
		metrics.ResolutionErrors.Inc()
		return nil, ErrEmptyName
	}
	if err := nspath.Valid(aname, true); err != nil {
		metrics.ResolutionErrors.Inc()
		return nil, err
	}

	c, name, nomount, err := pr.startingChan(aname)
	if err != nil {
		metrics.ResolutionErrors.Inc()
		return nil, err
	}
	prefix := len(aname) - len(name)

	e := nspath.Parse(name)

	if amode == Acreate {
		// perm must have DMDIR if the last element is / or /.
		if e.MustBeDir && perm&DMDIR == 0 {
			c.Close()
			return nil, finishError(aname, prefix, e, len(e.Elems), ErrCreateDir)
		}
		if len(e.Elems) == 0 {
			c.Close()
			metrics.ResolutionErrors.Inc()
			return nil, ErrExists
		}
	}

	// Don't try to walk the last element of a create just yet.
	walkElems := e.Elems
	if amode == Acreate {
		walkElems = e.Elems[:len(e.Elems)-1]
	}

	nc, nerror, err := pr.walk(c, walkElems, nomount)
	if err != nil {
		c.Close()
		return nil, finishError(aname, prefix, e, nerror, err)
	}
	c.Close()
	c = nc
	nerror = len(walkElems)

	if e.MustBeDir && !c.Qid.IsDir() {
		c.Close()
		return nil, finishError(aname, prefix, e, len(e.Elems), ErrNotDir)
	}
	if amode == Aopen && omode&3 == OEXEC && c.Qid.IsDir() {
		c.Close()
		return nil, finishError(aname, prefix, e, len(e.Elems), ErrExecDir)
	}

	switch amode {
	case Abind:
		// No need to maintain the path: cannot dotdot an Abind.
		var m *MountHead
		if !nomount {
			pr.ns.domount(&c, &m, nil)
		}
		nc, err := cunique(c)
		if err != nil {
			putMountHead(m)
			c.Close()
			return nil, finishError(aname, prefix, e, nerror, err)
		}
		c = nc
		c.umh = m

	case Aaccess, Aremove, Aopen:
		c, err = pr.finishOpen(c, amode, omode, nomount)
		if err != nil {
			return nil, finishError(aname, prefix, e, nerror, err)
		}

	case Atodir:
		// Directories (e.g. for cd) are left before the mount
		// point, so one may mount on / or . and see the effect.
		if !c.Qid.IsDir() {
			c.Close()
			return nil, finishError(aname, prefix, e, nerror, ErrNotDir)
		}

	case Amount:
		// When mounting on an already mounted upon directory, one
		// wants subsequent mounts attached to the original
		// directory, not the replacement, so don't cross here
		// either.

	case Acreate:
		c, err = pr.finishCreate(c, e.Elems[len(e.Elems)-1], omode, perm, nomount)
		if err != nil {
			return nil, finishError(aname, prefix, e, len(e.Elems), err)
		}

	default:
		panic(fmt.Sprintf("ns: unknown access mode %d", amode))
	}

	// Keep the final element around for callers such as exec.
	if len(e.Elems) > 0 {
		pr.lastElem = truncName(e.Elems[len(e.Elems)-1], ErrMax)
	} else {
		pr.lastElem = "."
	}
	return c, nil
}

// finishOpen crosses the final mount point, takes sole ownership of
// the channel while keeping the traversed path, and for Aopen asks the
// device to open it. It consumes c; on error everything it took is
// released.
func (pr *Proc) finishOpen(c *Chan, amode AccessMode, omode int, nomount bool) (*Chan, error) {
	// Save and update the name: crossing the mount changes c.
	path := c.path
	path.ref.Inc()
	var m *MountHead
	if !nomount {
		pr.ns.domount(&c, &m, &path)
	}

	// Our own copy to open or remove.
	nc, err := cunique(c)
	if err != nil {
		putMountHead(m)
		path.close()
		c.Close()
		return nil, err
	}
	c = nc

	// Now it's our copy anyway, we can put the name back.
	c.path.close()
	c.path = path

	// Record whether c is on a mount point.
	c.ismtpt = m != nil

	switch amode {
	case Aaccess, Aremove:
		putMountHead(m)

	case Aopen:
		// Only keep the mount head if it's a multiple element
		// union: that is what union directory reads need.
		if m != nil {
			m.lock.RLock()
			if m.mount != nil && m.mount.next != nil {
				c.umh = m
				m.lock.RUnlock()
			} else {
				m.lock.RUnlock()
				putMountHead(m)
			}
		}

		nc, err := c.Dev.Open(c, omode&^OCEXEC)
		if err != nil {
			c.Close()
			return nil, err
		}
		c = nc
		c.flag |= COPEN
		if omode&OCEXEC != 0 {
			c.flag |= CCEXEC
		}
		if omode&ORCLOSE != 0 {
			c.flag |= CRCLOSE
		}
	}
	return c, nil
}

// finishCreate creates last in the directory c, resolving the
// create/open races: an existing file falls back to open with
// truncation unless OEXCL asked for the create(5) semantics, and a
// failed create retries the walk once before reporting the original
// error. The create/create/remove race stays tolerated; any observable
// outcome can be explained as one call happening before the other.
// It consumes c.
func (pr *Proc) finishCreate(c *Chan, last string, omode int, perm uint32, nomount bool) (*Chan, error) {
	// If the last element exists, try to open it OTRUNC; if OEXCL is
	// set, just give up.
	lastElems := []string{last}
	if nc, _, err := pr.walk(c, lastElems, nomount); err == nil {
		c.Close()
		c = nc
		if omode&OEXCL != 0 {
			c.Close()
			return nil, ErrExists
		}
		return pr.finishOpen(c, Aopen, omode|OTRUNC, nomount)
	}

	// We need to stay behind the mount point in case the first walk
	// must run again (should the create fail), and also to cross it
	// to find the union directory we should be creating in. The
	// channel staying behind is c, the one moving forward is cnew.
	createErr := func() error {
		var m *MountHead
		var cnew *Chan
		var err error
		if !nomount && pr.ns.findMount(&cnew, &m, c.Dev, c.DevNo, c.Qid) {
			cnew, err = createDir(cnew, m)
			if err != nil {
				putMountHead(m)
				return err
			}
		} else {
			cnew = c
			cnew.IncRef()
		}

		// We need our own copy of the channel because create moves
		// it; once we have it, fix the name, which might be wrong
		// if findMount handed over a new channel.
		unew, err := cunique(cnew)
		if err != nil {
			cnew.Close()
			putMountHead(m)
			return err
		}
		cnew = unew
		cnew.path.close()
		cnew.path = c.path
		cnew.path.ref.Inc()

		created, err := cnew.Dev.Create(cnew, last, omode&^(OEXCL|OCEXEC), perm)
		if err != nil {
			cnew.Close()
			putMountHead(m)
			return err
		}
		cnew = created
		cnew.flag |= COPEN
		if omode&OCEXEC != 0 {
			cnew.flag |= CCEXEC
		}
		if omode&ORCLOSE != 0 {
			cnew.flag |= CRCLOSE
		}
		putMountHead(m)
		c.Close()
		c = cnew
		c.path = addElem(c.path, last, nil)
		return nil
	}()
	if createErr == nil {
		return c, nil
	}

	if omode&OEXCL != 0 {
		c.Close()
		return nil, createErr
	}

	// The create failed; if the walk works now we lost a
	// create/create race and open for truncation instead.
	nc, _, err := pr.walk(c, lastElems, nomount)
	if err != nil {
		c.Close()
		return nil, createErr // report the true error
	}
	c.Close()
	return pr.finishOpen(nc, Aopen, omode|OTRUNC, nomount)
}
