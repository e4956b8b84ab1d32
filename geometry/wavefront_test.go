package geometry

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/achilleasa/raystream/types"
)

func writeFile(t *testing.T, dir, name, payload string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVec3Parser(t *testing.T) {
	expError := `unsupported syntax for "v"; expected 3 arguments; got 0`
	_, err := parseVec3([]string{"v"})
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get %s; got %v", expError, err)
	}

	_, err = parseVec3([]string{"v", "not-a-float", "2", "3"})
	if err == nil {
		t.Fatal("expected to get a parse error")
	}

	v, err := parseVec3([]string{"v", "3.14", "0", "0.4"})
	if err != nil {
		t.Fatal(err)
	}

	expVal := types.Vec3{3.14, 0, 0.4}
	if !reflect.DeepEqual(v, expVal) {
		t.Fatalf("expected parsed value to be %v; got %v", expVal, v)
	}
}

func TestSelectFaceCoordIndex(t *testing.T) {
	type spec struct {
		token     string
		listLen   int
		relOffset int
		expIndex  int
		expError  bool
	}
	specs := []spec{
		{"1", 3, 0, 0, false},
		{"3", 3, 0, 2, false},
		{"-1", 3, 0, 2, false},
		{"1", 5, 2, 2, false},
		{"4", 3, 0, -1, true},
		{"-4", 3, 0, -1, true},
		{"x", 3, 0, -1, true},
	}

	for index, s := range specs {
		got, err := selectFaceCoordIndex(s.token, s.listLen, s.relOffset)
		if s.expError {
			if err == nil {
				t.Fatalf("[spec %d] expected an error", index)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if got != s.expIndex {
			t.Fatalf("[spec %d] expected index %d; got %d", index, s.expIndex, got)
		}
	}
}

func TestReadWavefront(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "extra.obj", `
o included
v 0 0 5
v 1 0 5
v 0 1 5
f 1 2 3
`)
	scenePath := writeFile(t, dir, "scene.obj", `
# a quad and a triangle
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
g quad
f 1/1/1 2/2/2 3/3/3 4/4/4
g tri
f -4 -3 -2
g empty
call extra.obj
mesh_disable tri
mesh_timesteps included 2
`)

	sc, err := ReadWavefront(scenePath)
	if err != nil {
		t.Fatal(err)
	}

	if sc.NumGroups() != 3 {
		t.Fatalf("expected 3 meshes (empty mesh dropped); got %d", sc.NumGroups())
	}

	quad := sc.Group(0).(*Mesh)
	if quad.Name != "quad" || len(quad.Vertices) != 4 || len(quad.Triangles) != 2 {
		t.Fatalf("expected quad mesh with 4 vertices and 2 triangles; got %q with %d and %d", quad.Name, len(quad.Vertices), len(quad.Triangles))
	}
	expTris := []Triangle{{0, 1, 2}, {0, 2, 3}}
	if !reflect.DeepEqual(quad.Triangles, expTris) {
		t.Fatalf("expected quad triangles %v; got %v", expTris, quad.Triangles)
	}

	tri := sc.Group(1).(*Mesh)
	if !tri.Disabled || len(tri.Vertices) != 3 {
		t.Fatalf("expected disabled triangle mesh with 3 local vertices; got %+v", tri)
	}
	if tri.Vertices[0] != types.XYZW(0, 0, 0, 0) {
		t.Fatalf("expected first vertex to be remapped from global vertex 1; got %v", tri.Vertices[0])
	}

	included := sc.Group(2).(*Mesh)
	if included.TimeSteps != 2 || included.Vertices[0] != types.XYZW(0, 0, 5, 0) {
		t.Fatalf("expected included mesh with relative indices and 2 time steps; got %+v", included)
	}

	// Only the quad mesh is eligible
	stats := sc.Stats()
	if !strings.Contains(stats, "no (disabled)") {
		t.Fatalf("expected stats to flag the disabled mesh; got\n%s", stats)
	}

	df, err := dumpAndRead(t, sc)
	if err != nil {
		t.Fatal(err)
	}
	if df.GroupCount != 1 || df.TotalTriangles != 2 {
		t.Fatalf("expected 1 mesh with 2 triangles in dump; got %d and %d", df.GroupCount, df.TotalTriangles)
	}
}

func dumpAndRead(t *testing.T, sc Scene) (*DumpFile, error) {
	path := filepath.Join(t.TempDir(), "geometry.bin")
	if _, err := Dump(sc, path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDump(f)
}

func TestReadWavefrontErrors(t *testing.T) {
	type spec struct {
		payload  string
		expError string
	}
	specs := []spec{
		{"v 1 2", `expected 3 arguments`},
		{"v 0 0 0\nf 1 1", `expected 3 arguments for triangular face`},
		{"v 0 0 0\nf 1 2 3", `index out of bounds`},
		{"v 0 0 0\nf 1/1 1 1", `expected each face argument to contain 2 indices`},
		{"mesh_disable missing", `unknown mesh with name "missing"`},
		{"v 0 0 0\ng a\nf 1 1 1\nmesh_kind a hexagon", `unknown geometry kind "hexagon"`},
		{"v 0 0 0\ng a\nf 1 1 1\nmesh_timesteps a 0", `time step count must be at least 1`},
		{"call", `unsupported syntax for "call"`},
	}

	dir := t.TempDir()
	for index, s := range specs {
		path := writeFile(t, dir, "scene.obj", s.payload)
		_, err := ReadWavefront(path)
		if err == nil || !strings.Contains(err.Error(), s.expError) {
			t.Fatalf("[spec %d] expected error containing %q; got %v", index, s.expError, err)
		}
	}
}

func TestReadWavefrontIncludeErrorStack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.obj", "v 1 2\n")
	path := writeFile(t, dir, "scene.obj", "call broken.obj\n")

	_, err := ReadWavefront(path)
	if err == nil || !strings.Contains(err.Error(), "referenced from") {
		t.Fatalf("expected error to include the include stack; got %v", err)
	}
}

func TestReadWavefrontIncludeKeepsOpenMesh(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "verts.obj", "v 0 0 0\nv 1 0 0\nv 0 1 0\n")
	path := writeFile(t, dir, "scene.obj", "g box\ncall verts.obj\nf 1 2 3\n")

	sc, err := ReadWavefront(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.NumGroups() != 1 {
		t.Fatalf("expected 1 mesh; got %d", sc.NumGroups())
	}
	box := sc.Group(0).(*Mesh)
	if box.Name != "box" || len(box.Triangles) != 1 {
		t.Fatalf("expected faces to land in mesh box; got %q with %d triangles", box.Name, len(box.Triangles))
	}
}
