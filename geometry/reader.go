package geometry

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/achilleasa/raystream/types"
)

// A decoded geometry dump.
type DumpFile struct {
	GroupCount     uint64
	TotalTriangles uint64
	Meshes         []*Mesh

	// Total size of the dump in bytes.
	Size int64
}

// Get a scene view of the decoded meshes.
func (df *DumpFile) Scene() *MemScene {
	sc := &MemScene{Groups: make([]Geometry, len(df.Meshes))}
	for index, mesh := range df.Meshes {
		sc.Groups[index] = mesh
	}
	return sc
}

type dumpReader struct {
	r       *bufio.Reader
	offset  int64
	scratch [16]byte
}

// Parse a geometry dump and verify its structure: block alignment, zeroed
// padding, the triangle total and the absence of trailing data.
func ReadDump(r io.Reader) (*DumpFile, error) {
	dr := &dumpReader{r: bufio.NewReader(r)}

	groupCount, err := dr.uint64()
	if err != nil {
		return nil, dr.wrap("header", err)
	}
	totalTriangles, err := dr.uint64()
	if err != nil {
		return nil, dr.wrap("header", err)
	}

	df := &DumpFile{
		GroupCount:     groupCount,
		TotalTriangles: totalTriangles,
		Meshes:         make([]*Mesh, 0),
	}

	var triangleSum uint64
	for index := uint64(0); index < groupCount; index++ {
		mesh, err := dr.mesh(index)
		if err != nil {
			return nil, err
		}
		df.Meshes = append(df.Meshes, mesh)
		triangleSum += uint64(len(mesh.Triangles))
	}

	if triangleSum != totalTriangles {
		return nil, fmt.Errorf("%w: header reports %d triangles; mesh blocks contain %d", ErrCorruptDump, totalTriangles, triangleSum)
	}

	if _, err = dr.r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data at offset %d", ErrCorruptDump, dr.offset)
	}

	df.Size = dr.offset
	return df, nil
}

func (dr *dumpReader) mesh(index uint64) (*Mesh, error) {
	where := fmt.Sprintf("mesh %d", index)

	numVertices, err := dr.uint64()
	if err != nil {
		return nil, dr.wrap(where, err)
	}
	numTriangles, err := dr.uint64()
	if err != nil {
		return nil, dr.wrap(where, err)
	}
	if dr.offset%DumpAlignment != 0 {
		return nil, fmt.Errorf("%w: %s vertex block starts at offset %d", ErrMisaligned, where, dr.offset)
	}

	mesh := NewMesh(fmt.Sprintf("mesh_%d", index))
	for i := uint64(0); i < numVertices; i++ {
		var v types.Vec4
		for c := 0; c < 4; c++ {
			bits, err := dr.uint32()
			if err != nil {
				return nil, dr.wrap(where, err)
			}
			v[c] = math.Float32frombits(bits)
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	for i := uint64(0); i < numTriangles; i++ {
		var idx [3]uint32
		for c := 0; c < 3; c++ {
			if idx[c], err = dr.uint32(); err != nil {
				return nil, dr.wrap(where, err)
			}
		}
		tri := Triangle{idx[0], idx[1], idx[2]}
		if uint64(tri.V0) >= numVertices || uint64(tri.V1) >= numVertices || uint64(tri.V2) >= numVertices {
			return nil, fmt.Errorf("%w: %s triangle %d references a vertex out of range", ErrCorruptDump, where, i)
		}
		mesh.Triangles = append(mesh.Triangles, tri)
	}

	if rem := dr.offset % DumpAlignment; rem != 0 {
		padding := int(DumpAlignment - rem)
		if _, err = io.ReadFull(dr.r, dr.scratch[:padding]); err != nil {
			return nil, dr.wrap(where, err)
		}
		dr.offset += int64(padding)
		for _, b := range dr.scratch[:padding] {
			if b != 0 {
				return nil, fmt.Errorf("%w: %s has non-zero padding", ErrCorruptDump, where)
			}
		}
	}

	return mesh, nil
}

func (dr *dumpReader) uint64() (uint64, error) {
	if _, err := io.ReadFull(dr.r, dr.scratch[:8]); err != nil {
		return 0, err
	}
	dr.offset += 8
	return binary.NativeEndian.Uint64(dr.scratch[:8]), nil
}

func (dr *dumpReader) uint32() (uint32, error) {
	if _, err := io.ReadFull(dr.r, dr.scratch[:4]); err != nil {
		return 0, err
	}
	dr.offset += 4
	return binary.NativeEndian.Uint32(dr.scratch[:4]), nil
}

func (dr *dumpReader) wrap(where string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: unexpected end of data in %s at offset %d", ErrCorruptDump, where, dr.offset)
	}
	return err
}
