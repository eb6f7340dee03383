package ns

import (
	"strings"

	"github.com/ns9/ns9/ns/nspath"
)

// Path is the user-visible path of a channel: the text actually
// traversed, plus a parallel mount trail. Entry i of the trail is
// either nil or a counted reference to the source channel the path
// crossed at element i+1, which is what lets ".." uncross a mount
// point later.
//
// Paths are reference counted and copy-on-write: any mutation goes
// through uniquePath first.
type Path struct {
	ref  Ref
	s    string
	mtpt []*Chan
}

// NewPath allocates a path for s. Only "/" and "#X" shaped names can
// seed a path; anything with interior slashes would leave the mount
// trail unpopulated, so it draws a warning.
func NewPath(s string) *Path {
	p := &Path{s: s}
	p.ref.set(1)
	if strings.ContainsRune(s, '/') && s != "#/" && s != "/" {
		Logf(nil, "NewPath: %s", s)
	}
	p.mtpt = make([]*Chan, 1, 8)
	return p
}

// String returns the path text.
func (p *Path) String() string {
	if p == nil {
		return "<nil path>"
	}
	return p.s
}

// copyPath deep-copies p, taking a reference on every mount trail
// entry.
func copyPath(p *Path) *Path {
	pp := &Path{s: p.s}
	pp.ref.set(1)
	pp.mtpt = make([]*Chan, len(p.mtpt), cap(p.mtpt))
	for i, c := range p.mtpt {
		pp.mtpt[i] = c
		if c != nil {
			c.IncRef()
		}
	}
	return pp
}

// close drops a reference; the last one closes the trail.
func (p *Path) close() {
	if p == nil || p.ref.Dec() > 0 {
		return
	}
	for _, c := range p.mtpt {
		if c != nil {
			c.Close()
		}
	}
	p.mtpt = nil
}

// uniquePath returns a path the caller owns exclusively, copying on
// write if p is shared.
func uniquePath(p *Path) *Path {
	if p.ref.Count() > 1 {
		np := copyPath(p)
		p.close()
		p = np
	}
	return p
}

func isDotDot(s string) bool {
	return s == ".."
}

// fixDotDot canonicalizes the path text in place after a ".." has been
// appended. A path rooted in a device sigil keeps the sigil and
// canonicalizes the tail, except that "#/" is its own canonical form.
func (p *Path) fixDotDot() {
	if strings.HasPrefix(p.s, "#") {
		i := strings.IndexByte(p.s, '/')
		if i < 0 {
			return
		}
		tail := nspath.Clean(p.s[i:])
		// The correct name is #X rather than #X/, but the correct
		// name of #/ is #/.
		if tail == "/" && p.s[1] != '/' {
			p.s = p.s[:i]
		} else {
			p.s = p.s[:i] + tail
		}
		return
	}
	p.s = nspath.Clean(p.s)
}

// addElem extends the path by one name element. "." is the identity.
// ".." canonicalizes the text and pops the mount trail; anything else
// appends to both, recording from (the mount source crossed at this
// element, or nil) in the trail.
//
// The returned path replaces p: the caller's reference moves with the
// copy-on-write.
func addElem(p *Path, s string, from *Chan) *Path {
	if s == "." {
		return p
	}
	p = uniquePath(p)

	if len(p.s) > 0 && p.s[len(p.s)-1] != '/' && (s == "" || s[0] != '/') {
		p.s += "/"
	}
	p.s += s
	if isDotDot(s) {
		p.fixDotDot()
		if n := len(p.mtpt); n > 1 {
			c := p.mtpt[n-1]
			p.mtpt[n-1] = nil
			p.mtpt = p.mtpt[:n-1]
			if c != nil {
				c.Close()
			}
		}
	} else {
		p.mtpt = append(p.mtpt, from)
		if from != nil {
			from.IncRef()
		}
	}
	return p
}
