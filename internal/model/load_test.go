package model

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestLoadTriangulatesAndDeduplicates(t *testing.T) {
	data, err := Load(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	assert.Len(t, data.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, data.Indices)

	corner := data.Vertices[2]
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, corner.Position)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, corner.Color)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, corner.Normal)
	assert.Equal(t, mgl32.Vec2{1, 0}, corner.UV)
}

func TestLoadKeepsVerticesThatDifferInAttributes(t *testing.T) {
	const seam = `
v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 0.5 0.5
f 1/1 2/1 3/1
f 1/2 3/1 2/1
`
	data, err := Load(strings.NewReader(seam), nil)
	require.NoError(t, err)

	assert.Len(t, data.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 3, 2, 1}, data.Indices)
}

func TestLoadPositionsOnly(t *testing.T) {
	const triangle = `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`
	data, err := Load(strings.NewReader(triangle), strings.NewReader(""))
	require.NoError(t, err)

	require.Len(t, data.Vertices, 3)
	for _, vertex := range data.Vertices {
		assert.Equal(t, mgl32.Vec3{}, vertex.Normal)
		assert.Equal(t, mgl32.Vec2{}, vertex.UV)
	}
}

func TestLoadEmptyMesh(t *testing.T) {
	_, err := Load(strings.NewReader("v 0 0 0\n"), nil)
	assert.Error(t, err)
}

func TestLoadMissingVertex(t *testing.T) {
	const broken = `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 9
`
	_, err := Load(strings.NewReader(broken), nil)
	assert.Error(t, err)
}
