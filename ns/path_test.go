package ns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPath(t *testing.T) {
	p := NewPath("/")
	assert.Equal(t, "/", p.String())
	assert.Equal(t, 1, len(p.mtpt))
	assert.Equal(t, int32(1), p.ref.Count())
	p.close()

	p = NewPath("#m")
	assert.Equal(t, "#m", p.String())
	p.close()
}

func TestAddElemDotIsIdentity(t *testing.T) {
	p := NewPath("/")
	q := addElem(p, ".", nil)
	assert.Same(t, p, q)
	assert.Equal(t, "/", q.String())
	assert.Equal(t, 1, len(q.mtpt))
	q.close()
}

func TestAddElemAppends(t *testing.T) {
	c, err := mockTreeDev.Attach("pathtest")
	require.NoError(t, err)

	p := NewPath("/")
	p = addElem(p, "a", nil)
	assert.Equal(t, "/a", p.String())
	assert.Equal(t, 2, len(p.mtpt))
	assert.Nil(t, p.mtpt[1])

	p = addElem(p, "b", c)
	assert.Equal(t, "/a/b", p.String())
	require.Equal(t, 3, len(p.mtpt))
	assert.Same(t, c, p.mtpt[2])
	assert.Equal(t, int32(2), c.ref.Count())

	p.close()
	assert.Equal(t, int32(1), c.ref.Count())
	c.Close()
}

// Appending ".." undoes the previous element: same text, same trail
// length, and the trail entry's reference is released.
func TestAddElemDotDot(t *testing.T) {
	c, err := mockTreeDev.Attach("pathtest2")
	require.NoError(t, err)

	p := NewPath("/")
	p = addElem(p, "x", nil)
	p = addElem(p, "y", c)
	require.Equal(t, "/x/y", p.String())
	require.Equal(t, int32(2), c.ref.Count())

	p = addElem(p, "..", nil)
	assert.Equal(t, "/x", p.String())
	assert.Equal(t, 2, len(p.mtpt))
	assert.Equal(t, int32(1), c.ref.Count())

	p = addElem(p, "..", nil)
	assert.Equal(t, "/", p.String())
	assert.Equal(t, 1, len(p.mtpt))

	p.close()
	c.Close()
}

// A path rooted in a device sigil keeps the sigil through "..", and
// "#/" is its own canonical form.
func TestAddElemDotDotSigil(t *testing.T) {
	p := NewPath("#m")
	p = addElem(p, "sub", nil)
	require.Equal(t, "#m/sub", p.String())
	p = addElem(p, "..", nil)
	assert.Equal(t, "#m", p.String())
	p.close()

	p = NewPath("#/")
	p = addElem(p, "sub", nil)
	require.Equal(t, "#/sub", p.String())
	p = addElem(p, "..", nil)
	assert.Equal(t, "#/", p.String())
	p.close()
}

// Mutating a shared path copies it first and leaves the original
// alone.
func TestPathCopyOnWrite(t *testing.T) {
	c, err := mockTreeDev.Attach("pathtest3")
	require.NoError(t, err)

	p := NewPath("/")
	p = addElem(p, "a", c)
	p.ref.Inc() // second holder

	q := addElem(p, "b", nil)
	assert.NotSame(t, p, q)
	assert.Equal(t, "/a", p.String())
	assert.Equal(t, "/a/b", q.String())
	assert.Equal(t, int32(1), p.ref.Count())
	assert.Equal(t, int32(1), q.ref.Count())
	// Both paths hold the trail entry now.
	assert.Equal(t, int32(3), c.ref.Count())

	q.close()
	p.close()
	assert.Equal(t, int32(1), c.ref.Count())
	c.Close()
}

func TestUniquePath(t *testing.T) {
	p := NewPath("/")
	assert.Same(t, p, uniquePath(p))

	p.ref.Inc()
	q := uniquePath(p)
	assert.NotSame(t, p, q)
	assert.Equal(t, int32(1), q.ref.Count())
	q.close()
	p.close()
}
