package model

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// Data is mesh geometry ready to hand to New. Indices may be empty, in which
// case the vertices are drawn in order.
type Data struct {
	Vertices []Vertex
	Indices  []uint32
}

// Load decodes an OBJ mesh, triangulating polygons as fans and merging
// identical vertices. mtl may be nil, in which case every vertex is white.
func Load(objReader, mtlReader io.Reader) (Data, error) {
	if mtlReader == nil {
		mtlReader = strings.NewReader("")
	}

	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return Data{}, errors.Wrap(err, "failed to decode obj mesh")
	}

	builder := &builder{decoder: decoder, unique: map[Vertex]uint32{}}
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				err = builder.addVertex(face, 0)
				if err == nil {
					err = builder.addVertex(face, i-1)
				}
				if err == nil {
					err = builder.addVertex(face, i)
				}
				if err != nil {
					return Data{}, err
				}
			}
		}
	}

	if len(builder.data.Vertices) == 0 {
		return Data{}, errors.New("obj mesh contains no faces")
	}
	return builder.data, nil
}

type builder struct {
	decoder *obj.Decoder
	unique  map[Vertex]uint32
	data    Data
}

func (b *builder) addVertex(face obj.Face, corner int) error {
	positions := b.decoder.Vertices
	vertInd := face.Vertices[corner]
	if vertInd < 0 || vertInd*3+2 >= len(positions) {
		return errors.Newf("face references missing vertex %d", vertInd)
	}

	vert := Vertex{
		Position: mgl32.Vec3{positions[vertInd*3], positions[vertInd*3+1], positions[vertInd*3+2]},
		Color:    mgl32.Vec3{1, 1, 1},
	}

	if material, ok := b.decoder.Materials[face.Material]; ok && material != nil {
		vert.Color = mgl32.Vec3{material.Diffuse.R, material.Diffuse.G, material.Diffuse.B}
	}

	if corner < len(face.Normals) {
		normInd := face.Normals[corner]
		if normInd >= 0 && normInd*3+2 < len(b.decoder.Normals) {
			vert.Normal = mgl32.Vec3{
				b.decoder.Normals[normInd*3],
				b.decoder.Normals[normInd*3+1],
				b.decoder.Normals[normInd*3+2],
			}
		}
	}

	if corner < len(face.Uvs) {
		uvInd := face.Uvs[corner]
		if uvInd >= 0 && uvInd*2+1 < len(b.decoder.Uvs) {
			vert.UV = mgl32.Vec2{
				b.decoder.Uvs[uvInd*2],
				1.0 - b.decoder.Uvs[uvInd*2+1],
			}
		}
	}

	index, exists := b.unique[vert]
	if !exists {
		index = uint32(len(b.data.Vertices))
		b.data.Vertices = append(b.data.Vertices, vert)
		b.unique[vert] = index
	}

	b.data.Indices = append(b.data.Indices, index)
	return nil
}
