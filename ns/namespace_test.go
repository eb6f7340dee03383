package ns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mountShape returns the device instance of each union member mounted
// at old, or nil if nothing is mounted there.
func mountShape(pg *Namespace, old *Chan) []uint32 {
	pg.mu.RLock()
	defer pg.mu.RUnlock()
	for m := pg.mnthash[old.Qid.Path%mnthash]; m != nil; m = m.hash {
		if eqChan(m.from, old, true) {
			m.lock.RLock()
			defer m.lock.RUnlock()
			var shape []uint32
			for f := m.mount; f != nil; f = f.next {
				shape = append(shape, f.to.DevNo)
			}
			return shape
		}
	}
	return nil
}

func attach(t *testing.T, spec string) *Chan {
	t.Helper()
	c, err := mockTreeDev.Attach(spec)
	require.NoError(t, err)
	return c
}

func TestMountReplace(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old1")
	a := attach(t, "ns-a1")
	defer old.Close()
	defer a.Close()

	id, err := pg.Mount(a, old, MREPL, "")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.Equal(t, []uint32{a.DevNo}, mountShape(pg, old))

	// Replacing again drops the old member.
	b := attach(t, "ns-b1")
	defer b.Close()
	id2, err := pg.Mount(b, old, MREPL, "")
	require.NoError(t, err)
	assert.Greater(t, id2, id)
	assert.Equal(t, []uint32{b.DevNo}, mountShape(pg, old))
}

// A non-replacing first mount seeds the union with the original
// directory, so the union preserves it.
func TestMountUnionOrder(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old2")
	a := attach(t, "ns-a2")
	b := attach(t, "ns-b2")
	defer old.Close()
	defer a.Close()
	defer b.Close()

	_, err := pg.Mount(a, old, MAFTER, "")
	require.NoError(t, err)
	assert.Equal(t, []uint32{old.DevNo, a.DevNo}, mountShape(pg, old))

	_, err = pg.Mount(b, old, MBEFORE, "")
	require.NoError(t, err)
	assert.Equal(t, []uint32{b.DevNo, old.DevNo, a.DevNo}, mountShape(pg, old))
}

func TestMountErrors(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	dir := attach(t, "ns-dir3")
	file := attach(t, "ns-f3")
	file.Qid = Qid{Path: 99} // a plain file qid
	fileTo := attach(t, "ns-f3b")
	fileTo.Qid = Qid{Path: 98}

	// Directory bit must agree.
	_, err := pg.Mount(file, dir, MREPL, "")
	assert.ErrorIs(t, err, ErrMount)

	// Only replacement works on plain files.
	_, err = pg.Mount(fileTo, file, MAFTER, "")
	assert.ErrorIs(t, err, ErrMount)
	_, err = pg.Mount(fileTo, file, MREPL, "")
	assert.NoError(t, err)

	fileTo.Close()
	file.Close()
	dir.Close()
}

func TestUnmount(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old4")
	a := attach(t, "ns-a4")
	b := attach(t, "ns-b4")
	defer old.Close()
	defer a.Close()
	defer b.Close()

	// Nothing mounted yet.
	assert.ErrorIs(t, pg.Unmount(old, nil), ErrUnmount)

	_, err := pg.Mount(a, old, MREPL, "")
	require.NoError(t, err)
	_, err = pg.Mount(b, old, MAFTER, "")
	require.NoError(t, err)
	require.Equal(t, []uint32{a.DevNo, b.DevNo}, mountShape(pg, old))

	// Something that is not in the union.
	other := attach(t, "ns-other4")
	assert.ErrorIs(t, pg.Unmount(old, other), ErrUnion)
	other.Close()

	// Detach one member; the head survives with the rest.
	require.NoError(t, pg.Unmount(old, a))
	assert.Equal(t, []uint32{b.DevNo}, mountShape(pg, old))

	// Detaching the last member unlinks the head.
	require.NoError(t, pg.Unmount(old, b))
	assert.Nil(t, mountShape(pg, old))
	assert.ErrorIs(t, pg.Unmount(old, nil), ErrUnmount)
}

// Mount followed by a matching whole-head unmount restores the bucket.
func TestMountUnmountRoundTrip(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old5")
	a := attach(t, "ns-a5")
	defer old.Close()
	defer a.Close()

	before := mountShape(pg, old)
	_, err := pg.Mount(a, old, MBEFORE, "")
	require.NoError(t, err)
	require.NoError(t, pg.Unmount(old, nil))
	assert.Equal(t, before, mountShape(pg, old))
}

func TestFindMount(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old6")
	a := attach(t, "ns-a6")
	defer old.Close()
	defer a.Close()

	var c *Chan
	var mh *MountHead
	assert.False(t, pg.findMount(&c, &mh, old.Dev, old.DevNo, old.Qid))

	_, err := pg.Mount(a, old, MREPL, "")
	require.NoError(t, err)

	require.True(t, pg.findMount(&c, &mh, old.Dev, old.DevNo, old.Qid))
	assert.Equal(t, a.DevNo, c.DevNo)
	require.NotNil(t, mh)
	assert.True(t, eqChan(mh.from, old, true))
	c.Close()
	putMountHead(mh)
}

// Binding a union somewhere else with MCREATE is refused when the
// union has more than one member or its first member does not allow
// creation.
func TestMountCreateAtopUnion(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old7")
	a := attach(t, "ns-a7")
	b := attach(t, "ns-b7")
	target := attach(t, "ns-t7")
	defer old.Close()
	defer a.Close()
	defer b.Close()
	defer target.Close()

	_, err := pg.Mount(a, old, MREPL, "")
	require.NoError(t, err)
	_, err = pg.Mount(b, old, MAFTER, "")
	require.NoError(t, err)

	// A channel that carries the union, as Abind resolution leaves
	// it.
	bound, err := old.Clone()
	require.NoError(t, err)
	var mh *MountHead
	require.True(t, pg.findMount(&bound, &mh, bound.Dev, bound.DevNo, bound.Qid))
	bound, err = cunique(bound)
	require.NoError(t, err)
	bound.umh = mh

	_, err = pg.Mount(bound, target, MREPL|MCREATE, "")
	assert.ErrorIs(t, err, ErrMount)

	// Without MCREATE the same bind replicates the union.
	_, err = pg.Mount(bound, target, MREPL, "")
	require.NoError(t, err)
	shape := mountShape(pg, target)
	require.Len(t, shape, 2)
	assert.Equal(t, []uint32{a.DevNo, b.DevNo}, shape)

	bound.Close()
}

// createDir picks the first member with MCREATE set.
func TestCreateDir(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old8")
	a := attach(t, "ns-a8")
	b := attach(t, "ns-b8")
	defer old.Close()
	defer a.Close()
	defer b.Close()

	_, err := pg.Mount(a, old, MREPL, "")
	require.NoError(t, err)
	_, err = pg.Mount(b, old, MAFTER|MCREATE, "")
	require.NoError(t, err)

	var c *Chan
	var mh *MountHead
	require.True(t, pg.findMount(&c, &mh, old.Dev, old.DevNo, old.Qid))

	nc, err := createDir(c, mh)
	require.NoError(t, err)
	assert.Equal(t, b.DevNo, nc.DevNo)
	nc.Close()
	putMountHead(mh)
}

func TestCreateDirNoCreate(t *testing.T) {
	pg := NewNamespace()
	defer pg.Close()
	old := attach(t, "ns-old9")
	a := attach(t, "ns-a9")
	defer old.Close()
	defer a.Close()

	_, err := pg.Mount(a, old, MREPL, "")
	require.NoError(t, err)

	var c *Chan
	var mh *MountHead
	require.True(t, pg.findMount(&c, &mh, old.Dev, old.DevNo, old.Qid))

	_, err = createDir(c, mh)
	assert.ErrorIs(t, err, ErrNoCreate)
	c.Close()
	putMountHead(mh)
}
