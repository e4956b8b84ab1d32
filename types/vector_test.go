package types

import "testing"

func TestVec3Ops(t *testing.T) {
	a := XYZ(1, 0, 0)
	b := XYZ(0, 1, 0)

	if got := a.Cross(b); got != XYZ(0, 0, 1) {
		t.Fatalf("expected cross product to be (0, 0, 1); got %v", got)
	}
	if got := a.Dot(b); got != 0 {
		t.Fatalf("expected dot product to be 0; got %f", got)
	}
	if got := XYZ(0, 3, 4).Len(); got != 5 {
		t.Fatalf("expected length to be 5; got %f", got)
	}
	if got := XYZ(0, 0, 0).Normalize(); got != (Vec3{}) {
		t.Fatalf("expected degenerate vector to normalize to zero; got %v", got)
	}
	if got := XYZ(2, 0, 0).Normalize(); got != a {
		t.Fatalf("expected normalized vector to be %v; got %v", a, got)
	}
}

func TestMinMaxVec3(t *testing.T) {
	v1 := XYZ(1, -2, 3)
	v2 := XYZ(-1, 2, 3)

	if got := MinVec3(v1, v2); got != XYZ(-1, -2, 3) {
		t.Fatalf("expected min to be (-1, -2, 3); got %v", got)
	}
	if got := MaxVec3(v1, v2); got != XYZ(1, 2, 3) {
		t.Fatalf("expected max to be (1, 2, 3); got %v", got)
	}
}

func TestVec4Conversion(t *testing.T) {
	v := XYZ(1, 2, 3).Vec4(0)
	if v != XYZW(1, 2, 3, 0) {
		t.Fatalf("expected (1, 2, 3, 0); got %v", v)
	}
	if v.Vec3() != XYZ(1, 2, 3) {
		t.Fatalf("expected (1, 2, 3); got %v", v.Vec3())
	}
}
