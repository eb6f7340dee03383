package ns

import (
	"fmt"
	"sync"
)

// A Device serves a file tree to the namespace. Implementations
// register themselves in their package init, the way kernel drivers
// occupy a slot in the device table.
//
// Walk, Open, Create, Close, Stat, Remove and Attach may block on I/O.
// The namespace lock is not held across them, except while the last
// Namespace.Close releases the mount table's channels. A mount head's
// read lock stays held while Walk runs on later union members (the
// union fallback in walk, and the clone in createDir).
type Device interface {
	// Rune returns the device letter, the rune after '#' in names
	// such as "#e/PATH".
	Rune() rune

	// Name returns the device name for diagnostics.
	Name() string

	// Reset prepares the device before Init. It must not depend on
	// other devices.
	Reset()

	// Init initializes the device; all devices have been Reset.
	Init()

	// Shutdown releases device resources. Devices shut down in
	// reverse registration order.
	Shutdown()

	// Attach returns a new channel on the root of the device tree
	// named by spec.
	Attach(spec string) (*Chan, error)

	// Walk walks c through the given name elements. With no names it
	// clones c: the result carries a new channel at the same file.
	// A short result (Clone nil, fewer Qids than names) reports how
	// far the walk got; the caller decides what that means.
	Walk(c *Chan, nc *Chan, names []string) (*Walkqid, error)

	// Open prepares the channel for I/O and returns it. On success
	// the result replaces c (it is usually c itself); on failure c
	// still belongs to the caller.
	Open(c *Chan, mode int) (*Chan, error)

	// Create creates name in the directory c and returns a channel
	// on the new file, open with the given mode. On success the
	// result replaces c; on failure c still belongs to the caller.
	Create(c *Chan, name string, mode int, perm uint32) (*Chan, error)

	// Close releases the device side of c. Errors here cannot stop
	// the channel from being freed, so there are none to return;
	// devices log their own trouble.
	Close(c *Chan)

	// Stat returns the directory entry for c.
	Stat(c *Chan) (*Dir, error)

	// Remove removes the file c and releases the device side of c.
	Remove(c *Chan) error
}

// Lister is an optional Device capability: enumerating a directory
// channel. The resolver itself never needs it, but callers such as ls
// do.
type Lister interface {
	// List returns the entries of the directory c.
	List(c *Chan) ([]Dir, error)
}

// Walkqid is the result of a Device walk: the cloned channel (nil if
// the walk fell short) and one Qid per name successfully walked.
type Walkqid struct {
	Clone *Chan
	Qids  []Qid
}

var (
	devMu  sync.Mutex
	devtab []Device
)

// Register adds a device to the device table. It is meant to be called
// from device package init functions and panics on a duplicate rune.
func Register(d Device) {
	devMu.Lock()
	defer devMu.Unlock()
	for _, have := range devtab {
		if have.Rune() == d.Rune() {
			panic(fmt.Sprintf("ns: device %q already registered for %q", have.Name(), d.Rune()))
		}
	}
	devtab = append(devtab, d)
}

// DevByRune finds the registered device for the given letter.
func DevByRune(r rune) (Device, bool) {
	devMu.Lock()
	defer devMu.Unlock()
	for _, d := range devtab {
		if d.Rune() == r {
			return d, true
		}
	}
	return nil, false
}

// Devices returns a snapshot of the device table in registration order.
func Devices() []Device {
	devMu.Lock()
	defer devMu.Unlock()
	return append([]Device(nil), devtab...)
}

// DevReset resets every registered device.
func DevReset() {
	for _, d := range Devices() {
		d.Reset()
	}
}

// DevInit initializes every registered device.
func DevInit() {
	for _, d := range Devices() {
		d.Init()
	}
}

// DevShutdown shuts down every registered device, last registered
// first.
func DevShutdown() {
	tab := Devices()
	for i := len(tab) - 1; i >= 0; i-- {
		tab[i].Shutdown()
	}
}

// AttachChan builds the channel a device returns from Attach: a fresh
// channel on qid with the path "#X<spec>".
func AttachChan(d Device, dev uint32, qid Qid, spec string) *Chan {
	c := NewChan()
	c.Dev = d
	c.DevNo = dev
	c.Qid = qid
	c.path = NewPath("#" + string(d.Rune()) + spec)
	return c
}
