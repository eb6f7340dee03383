package ns

// Proc is the ambient per-process state the resolver needs: the
// namespace, the root and current-directory channels, and the final
// element of the most recent resolution for exec-style callers.
//
// The kernel original reaches this state through a thread-local; here
// it is passed explicitly.
type Proc struct {
	ns       *Namespace
	slash    *Chan
	dot      *Chan
	lastElem string
}

// NewProc builds a process context over pg, attaching the root device
// for both the root and the current directory. The caller owns pg's
// reference afterwards as part of the Proc.
func NewProc(pg *Namespace) (*Proc, error) {
	d, ok := DevByRune('/')
	if !ok {
		return nil, ErrBadSharp
	}
	slash, err := d.Attach("")
	if err != nil {
		return nil, err
	}
	// The attach names the channel "#/"; the process root is "/".
	slash.path.close()
	slash.path = NewPath("/")
	dot, err := slash.Clone()
	if err != nil {
		slash.Close()
		return nil, err
	}
	return &Proc{ns: pg, slash: slash, dot: dot}, nil
}

// Namespace returns the process's namespace.
func (pr *Proc) Namespace() *Namespace {
	return pr.ns
}

// Slash returns the root channel.
func (pr *Proc) Slash() *Chan {
	return pr.slash
}

// Dot returns the current directory channel.
func (pr *Proc) Dot() *Chan {
	return pr.dot
}

// SetDot replaces the current directory, consuming c and releasing the
// old dot.
func (pr *Proc) SetDot(c *Chan) {
	old := pr.dot
	pr.dot = c
	if old != nil {
		old.Close()
	}
}

// LastElem returns the final element of the most recent successful
// resolution ("." for the empty walk), possibly truncated.
func (pr *Proc) LastElem() string {
	return pr.lastElem
}

// Close releases the process's channels and its namespace reference.
func (pr *Proc) Close() {
	if pr.dot != nil {
		pr.dot.Close()
		pr.dot = nil
	}
	if pr.slash != nil {
		pr.slash.Close()
		pr.slash = nil
	}
	if pr.ns != nil {
		pr.ns.Close()
		pr.ns = nil
	}
}
