package geometry

import (
	"bytes"
	"fmt"
	"math"

	"github.com/achilleasa/raystream/types"
	"github.com/olekukonko/tablewriter"
)

// The type of a scene geometry group.
type Kind uint8

const (
	TriangleMeshKind Kind = iota
	QuadMeshKind
	CurveKind
	UserGeometryKind
)

func (k Kind) String() string {
	switch k {
	case TriangleMeshKind:
		return "triangle"
	case QuadMeshKind:
		return "quad"
	case CurveKind:
		return "curve"
	case UserGeometryKind:
		return "user"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Parse a kind name as returned by Kind.String.
func ParseKind(name string) (Kind, error) {
	for k := TriangleMeshKind; k <= UserGeometryKind; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown geometry kind %q", name)
}

// A Geometry is a single scene group.
type Geometry interface {
	Kind() Kind
	Enabled() bool
}

// A TriangleMesh exposes indexed triangle geometry.
type TriangleMesh interface {
	Geometry

	// Meshes with more than one time step use motion blur.
	NumTimeSteps() int

	NumVertices() int
	NumTriangles() int

	// Vertex positions are padded to 16 bytes; the 4th component is unused.
	Vertex(i int) types.Vec4
	Triangle(i int) Triangle
}

// A Scene is an indexed list of geometry groups. Group may return nil for
// unused slots.
type Scene interface {
	NumGroups() int
	Group(i int) Geometry
}

// A triangle stores three indices into the mesh vertex list.
type Triangle struct {
	V0, V1, V2 uint32
}

// An in-memory indexed mesh.
type Mesh struct {
	Name      string
	MeshKind  Kind
	Disabled  bool
	TimeSteps int

	Vertices  []types.Vec4
	Triangles []Triangle
}

// Create an enabled triangle mesh with a single time step.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:      name,
		MeshKind:  TriangleMeshKind,
		TimeSteps: 1,
		Vertices:  make([]types.Vec4, 0),
		Triangles: make([]Triangle, 0),
	}
}

func (m *Mesh) Kind() Kind              { return m.MeshKind }
func (m *Mesh) Enabled() bool           { return !m.Disabled }
func (m *Mesh) NumTimeSteps() int       { return m.TimeSteps }
func (m *Mesh) NumVertices() int        { return len(m.Vertices) }
func (m *Mesh) NumTriangles() int       { return len(m.Triangles) }
func (m *Mesh) Vertex(i int) types.Vec4 { return m.Vertices[i] }
func (m *Mesh) Triangle(i int) Triangle { return m.Triangles[i] }

// Get mesh bounding box.
func (m *Mesh) BBox() [2]types.Vec3 {
	bbox := [2]types.Vec3{
		{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
	for _, v := range m.Vertices {
		bbox[0] = types.MinVec3(bbox[0], v.Vec3())
		bbox[1] = types.MaxVec3(bbox[1], v.Vec3())
	}
	return bbox
}

// Count triangles whose vertices are collinear or coincide. Triangles that
// reference missing vertices are also counted.
func (m *Mesh) DegenerateTriangles() int {
	var count int
	for _, tri := range m.Triangles {
		if int(tri.V0) >= len(m.Vertices) || int(tri.V1) >= len(m.Vertices) || int(tri.V2) >= len(m.Vertices) {
			count++
			continue
		}
		v0 := m.Vertices[tri.V0].Vec3()
		e1 := m.Vertices[tri.V1].Vec3().Sub(v0)
		e2 := m.Vertices[tri.V2].Vec3().Sub(v0)
		if e1.Cross(e2).Len() == 0 {
			count++
		}
	}
	return count
}

// An in-memory scene. Nil entries in Groups, including nil *Mesh values,
// represent empty slots.
type MemScene struct {
	Groups []Geometry
}

func (sc *MemScene) NumGroups() int       { return len(sc.Groups) }
func (sc *MemScene) Group(i int) Geometry { return sc.Groups[i] }

// Build a tabular representation of the scene groups.
func (sc *MemScene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Group", "Name", "Kind", "Vertices", "Triangles", "Dumped"})

	var totalVerts, totalTris, dumped int
	for index, g := range sc.Groups {
		if isEmptyGroup(g) {
			table.Append([]string{fmt.Sprint(index), "-", "-", "-", "-", "no"})
			continue
		}

		name, verts, tris := "", "-", "-"
		if m, isMesh := g.(*Mesh); isMesh {
			name = m.Name
			verts, tris = fmt.Sprint(len(m.Vertices)), fmt.Sprint(len(m.Triangles))
		}

		status := "no"
		if mesh, ok := Eligible(g); ok {
			status = "yes"
			dumped++
			totalVerts += mesh.NumVertices()
			totalTris += mesh.NumTriangles()
		} else if !g.Enabled() {
			status = "no (disabled)"
		}
		table.Append([]string{fmt.Sprint(index), name, g.Kind().String(), verts, tris, status})
	}
	table.SetFooter([]string{"Total", " ", " ", fmt.Sprint(totalVerts), fmt.Sprint(totalTris), fmt.Sprint(dumped)})

	table.Render()
	return buf.String()
}

// Check whether a scene group is included in geometry dumps. Only enabled
// triangle meshes without motion blur are dumped.
func Eligible(g Geometry) (TriangleMesh, bool) {
	if isEmptyGroup(g) || g.Kind() != TriangleMeshKind || !g.Enabled() {
		return nil, false
	}
	mesh, ok := g.(TriangleMesh)
	if !ok || mesh.NumTimeSteps() != 1 {
		return nil, false
	}
	return mesh, true
}

func isEmptyGroup(g Geometry) bool {
	if g == nil {
		return true
	}
	m, isMesh := g.(*Mesh)
	return isMesh && m == nil
}
