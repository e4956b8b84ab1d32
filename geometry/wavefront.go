package geometry

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/raystream/asset"
	"github.com/achilleasa/raystream/log"
	"github.com/achilleasa/raystream/types"
)

type wavefrontSceneReader struct {
	logger log.Logger

	// Parsed meshes in declaration order.
	meshes []*Mesh

	// Maps global vertex indices to indices into the current mesh.
	vertexRemap map[int]uint32

	// Global vertex list shared by all meshes.
	vertexList []types.Vec3

	// An error stack that provides additional error information when
	// scene files include other files.
	errStack []string
}

// Read a wavefront object file and build a scene with one group per
// object/group statement. Only vertex positions and faces are used; quad
// faces are split into two triangles.
//
// The following non-standard statements control how meshes are dumped:
//
//	mesh_disable name
//	mesh_timesteps name count
//	mesh_kind name triangle|quad|curve|user
func ReadWavefront(filename string) (*MemScene, error) {
	res, err := asset.NewResource(filename, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return newWavefrontReader().Read(res)
}

// Create a new wavefront scene reader.
func newWavefrontReader() *wavefrontSceneReader {
	return &wavefrontSceneReader{
		logger:      log.New("wavefront scene reader"),
		meshes:      make([]*Mesh, 0),
		vertexRemap: make(map[int]uint32),
		vertexList:  make([]types.Vec3, 0),
		errStack:    make([]string, 0),
	}
}

// Read scene definition.
func (r *wavefrontSceneReader) Read(sceneRes *asset.Resource) (*MemScene, error) {
	r.logger.Noticef(`parsing scene from "%s"`, sceneRes.Path())
	start := time.Now()

	if err := r.parse(sceneRes); err != nil {
		return nil, err
	}
	r.verifyLastParsedMesh()

	sc := &MemScene{Groups: make([]Geometry, len(r.meshes))}
	for index, mesh := range r.meshes {
		sc.Groups[index] = mesh
	}

	r.logger.Noticef("parsed %d meshes in %d ms", len(r.meshes), time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontSceneReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)

	return fmt.Errorf("%s", strings.Trim(
		fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
		"\n",
	))
}

// Push a frame to the error stack.
func (r *wavefrontSceneReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontSceneReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Parse wavefront object scene format.
func (r *wavefrontSceneReader) parse(res *asset.Resource) error {
	var lineNum int = 0

	// Included files use 1-based indices relative to their own vertices.
	relVertexOffset := len(r.vertexList)

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "call"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [call]", res.Path(), lineNum))

			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			err = r.parse(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, `unsupported syntax for "%s"; expected 1 argument for object name; got %d`, lineTokens[0], len(lineTokens)-1)
			}

			r.verifyLastParsedMesh()
			r.startMesh(lineTokens[1])
		case "f":
			if len(r.meshes) == 0 {
				r.startMesh("default")
			}
			if err := r.parseFace(lineTokens, relVertexOffset); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "mesh_disable", "mesh_timesteps", "mesh_kind":
			if err := r.parseMeshDirective(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return r.emitError(res.Path(), lineNum, "%s", err.Error())
	}

	// The last mesh may still receive faces from the including file
	return nil
}

// Append a new mesh and reset the vertex remap table.
func (r *wavefrontSceneReader) startMesh(name string) {
	r.meshes = append(r.meshes, NewMesh(name))
	r.vertexRemap = make(map[int]uint32)
}

// Drop the last parsed mesh if it contains no triangles.
func (r *wavefrontSceneReader) verifyLastParsedMesh() {
	lastMeshIndex := len(r.meshes) - 1
	if lastMeshIndex >= 0 && len(r.meshes[lastMeshIndex].Triangles) == 0 {
		r.logger.Warningf(`dropping mesh "%s" as it contains no polygons`, r.meshes[lastMeshIndex].Name)
		r.meshes = r.meshes[:lastMeshIndex]
	}
}

// Parse a mesh_* statement that adjusts the properties of a named mesh.
func (r *wavefrontSceneReader) parseMeshDirective(lineTokens []string) error {
	expArgs := 2
	if lineTokens[0] == "mesh_disable" {
		expArgs = 1
	}
	if len(lineTokens)-1 != expArgs {
		return fmt.Errorf(`unsupported syntax for "%s"; expected %d arguments; got %d`, lineTokens[0], expArgs, len(lineTokens)-1)
	}

	var mesh *Mesh
	for _, m := range r.meshes {
		if m.Name == lineTokens[1] {
			mesh = m
		}
	}
	if mesh == nil {
		return fmt.Errorf(`unknown mesh with name "%s"`, lineTokens[1])
	}

	switch lineTokens[0] {
	case "mesh_disable":
		mesh.Disabled = true
	case "mesh_timesteps":
		steps, err := strconv.Atoi(lineTokens[2])
		if err != nil {
			return err
		}
		if steps < 1 {
			return fmt.Errorf("time step count must be at least 1; got %d", steps)
		}
		mesh.TimeSteps = steps
	case "mesh_kind":
		kind, err := ParseKind(lineTokens[2])
		if err != nil {
			return err
		}
		mesh.MeshKind = kind
	}
	return nil
}

// Parse face definition. Each face definitions consists of 3 or 4 vertex
// arguments using one of the following formats:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Only the vertex index is used. Indices start from 1 and may be negative to
// indicate an offset off the end of the vertex list.
func (r *wavefrontSceneReader) parseFace(lineTokens []string, relVertexOffset int) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return fmt.Errorf(`unsupported syntax for "f"; expected 3 arguments for triangular face or 4 arguments for a quad face; got %d. Select the triangulation option in your exporter`, len(lineTokens)-1)
	}

	mesh := r.meshes[len(r.meshes)-1]

	var indices [4]uint32
	expIndices := 0
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")

		// The first arg defines the format for the following args
		if arg == 0 {
			expIndices = len(vTokens)
		} else if len(vTokens) != expIndices {
			return fmt.Errorf("expected each face argument to contain %d indices; arg %d contains %d indices", expIndices, arg, len(vTokens))
		}

		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		vOffset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList), relVertexOffset)
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}

		local, exists := r.vertexRemap[vOffset]
		if !exists {
			mesh.Vertices = append(mesh.Vertices, r.vertexList[vOffset].Vec4(0))
			local = uint32(len(mesh.Vertices) - 1)
			r.vertexRemap[vOffset] = local
		}
		indices[arg] = local
	}

	mesh.Triangles = append(mesh.Triangles, Triangle{indices[0], indices[1], indices[2]})
	if len(lineTokens) == 5 {
		mesh.Triangles = append(mesh.Triangles, Triangle{indices[0], indices[2], indices[3]})
	}
	return nil
}

// Given a face vertex index calculate the proper offset into the vertex list.
// Wavefront format can also use negative indices to reference elements from
// the end of the list.
func selectFaceCoordIndex(indexToken string, coordListLen int, relOffset int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int = 0
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = relOffset + int(index-1)
	}
	if vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf(`unsupported syntax for "%s"; expected 3 arguments; got %d`, lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
