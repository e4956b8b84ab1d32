package geometry

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/achilleasa/raystream/log"
	"github.com/achilleasa/raystream/stream"
)

// Geometry dump layout (host byte order):
//
//	header:   groupCount u64, totalTriangleCount u64
//	per mesh: vertexCount u64, triangleCount u64
//	          vertexCount x (x, y, z, pad f32)
//	          triangleCount x (v0, v1, v2 u32)
//	          zero padding up to the next multiple of 16
//
// groupCount is the number of mesh blocks in the dump.
const (
	DumpAlignment  = 16
	dumpHeaderSize = 16
	meshHeaderSize = 16
	vertexSize     = 16
	triangleSize   = 12

	encodeFlushSize = 64 * 1024
)

var logger = log.New("geometry")

// Statistics for a written geometry dump.
type DumpStats struct {
	// Number of groups in the source scene.
	SceneGroups int

	// Number of mesh blocks written.
	Meshes    int
	Vertices  int
	Triangles int

	Bytes        int64
	PaddingBytes int64
}

// Write the eligible meshes of a scene to the file at path, replacing any
// existing contents.
func Dump(sc Scene, path string) (*DumpStats, error) {
	start := time.Now()

	out, err := stream.Open(path)
	if err != nil {
		return nil, err
	}

	stats, err := Encode(out, sc)
	if err != nil {
		out.Close()
		return nil, err
	}
	if err = out.Close(); err != nil {
		return nil, err
	}
	if out.Offset()%DumpAlignment != 0 {
		return nil, fmt.Errorf("%w: file size %d", ErrMisaligned, out.Offset())
	}

	logger.Noticef(
		`dumped %d meshes (%d vertices, %d triangles) to "%s" in %d ms`,
		stats.Meshes, stats.Vertices, stats.Triangles, path, time.Since(start).Nanoseconds()/1e6,
	)
	return stats, nil
}

// Encode the eligible meshes of a scene to w. Groups are visited in index
// order; ineligible groups are skipped.
func Encode(w io.Writer, sc Scene) (*DumpStats, error) {
	// First pass: collect meshes and the triangle total for the header
	numGroups := sc.NumGroups()
	meshes := make([]TriangleMesh, 0, numGroups)
	totalTriangles := 0
	debug := log.IsEnabled(log.Debug)
	for index := 0; index < numGroups; index++ {
		mesh, ok := Eligible(sc.Group(index))
		if !ok {
			if debug {
				logger.Debugf("skipping ineligible scene group %d", index)
			}
			continue
		}
		meshes = append(meshes, mesh)
		totalTriangles += mesh.NumTriangles()
	}

	stats := &DumpStats{SceneGroups: numGroups}
	enc := &dumpEncoder{w: w, buf: make([]byte, 0, encodeFlushSize+vertexSize)}

	enc.putUint64(uint64(len(meshes)))
	enc.putUint64(uint64(totalTriangles))

	for index, mesh := range meshes {
		numVertices, numTriangles := mesh.NumVertices(), mesh.NumTriangles()

		enc.putUint64(uint64(numVertices))
		enc.putUint64(uint64(numTriangles))
		if enc.offset%DumpAlignment != 0 {
			return nil, fmt.Errorf("%w: mesh %d vertex block starts at offset %d", ErrMisaligned, index, enc.offset)
		}

		for i := 0; i < numVertices; i++ {
			v := mesh.Vertex(i)
			enc.putFloat32(v[0])
			enc.putFloat32(v[1])
			enc.putFloat32(v[2])
			enc.putFloat32(0)
		}

		for i := 0; i < numTriangles; i++ {
			tri := mesh.Triangle(i)
			enc.putUint32(tri.V0)
			enc.putUint32(tri.V1)
			enc.putUint32(tri.V2)
		}

		stats.PaddingBytes += enc.pad(DumpAlignment)
		if enc.offset%DumpAlignment != 0 {
			return nil, fmt.Errorf("%w: mesh %d ends at offset %d", ErrMisaligned, index, enc.offset)
		}

		stats.Meshes++
		stats.Vertices += numVertices
		stats.Triangles += numTriangles
	}

	if err := enc.flush(); err != nil {
		return nil, err
	}

	stats.Bytes = enc.offset
	return stats, nil
}

// Buffers encoded values and tracks the logical byte offset of the output.
type dumpEncoder struct {
	w      io.Writer
	buf    []byte
	offset int64
	err    error
}

func (e *dumpEncoder) putUint64(v uint64) {
	e.buf = binary.NativeEndian.AppendUint64(e.buf, v)
	e.advance(8)
}

func (e *dumpEncoder) putUint32(v uint32) {
	e.buf = binary.NativeEndian.AppendUint32(e.buf, v)
	e.advance(4)
}

func (e *dumpEncoder) putFloat32(v float32) {
	e.putUint32(math.Float32bits(v))
}

// Append zero bytes until the offset is a multiple of align. Returns the
// number of padding bytes written.
func (e *dumpEncoder) pad(align int64) int64 {
	rem := e.offset % align
	if rem == 0 {
		return 0
	}
	padding := align - rem
	for i := int64(0); i < padding; i++ {
		e.buf = append(e.buf, 0)
	}
	e.advance(int(padding))
	return padding
}

func (e *dumpEncoder) advance(n int) {
	e.offset += int64(n)
	if len(e.buf) >= encodeFlushSize {
		e.flush()
	}
}

func (e *dumpEncoder) flush() error {
	if e.err == nil && len(e.buf) > 0 {
		_, e.err = e.w.Write(e.buf)
	}
	e.buf = e.buf[:0]
	return e.err
}
