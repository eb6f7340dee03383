package ns

import (
	"errors"

	"github.com/ns9/ns9/ns/nspath"
)

// Sentinel errors surfaced by the namespace. Device errors pass
// through verbatim; these cover the resolver's own failures. The name
// validation errors are owned by nspath and re-exported here.
var (
	ErrNotDir       = errors.New("not a directory")
	ErrDoesNotExist = errors.New("does not exist")
	ErrExists       = errors.New("file already exists")
	ErrMount        = errors.New("inconsistent mount")
	ErrUnmount      = errors.New("not mounted")
	ErrUnion        = errors.New("not in union")
	ErrNoCreate     = errors.New("mounted directory forbids creation")
	ErrNoAttach     = errors.New("mount/attach disallowed")
	ErrBadSharp     = errors.New("unknown device in # filename")
	ErrTooLong      = nspath.ErrNameTooLong
	ErrBadChar      = nspath.ErrBadCharacter
	ErrFilename     = errors.New("file name syntax")
	ErrShortStat    = errors.New("stat buffer too short")
	ErrCloneFailed  = errors.New("clone failed")
	ErrEmptyName    = errors.New("empty file name")
	ErrCreateDir    = errors.New("create without DMDIR")
	ErrExecDir      = errors.New("cannot exec directory")
	ErrPerm         = errors.New("permission denied")
	ErrDirNotEmpty  = errors.New("directory not empty")
	ErrIsDir        = errors.New("file is a directory")
	ErrNotList      = errors.New("device cannot list directories")
)
