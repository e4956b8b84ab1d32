package raylog

import (
	"encoding/binary"

	"github.com/achilleasa/raystream/types"
)

// Geometry/primitive ids are set to this value for rays that did not hit anything.
const InvalidID = ^uint32(0)

// Supported packet widths.
var Widths = [...]int{1, 4, 8, 16}

// A Packet is a fixed-width group of rays that is traced together. The
// logger treats packets as opaque fixed-size payloads; Lane is only used
// by the verification tools.
type Packet interface {
	// The number of rays in the packet.
	Width() int

	// Extract the ray stored in the given lane.
	Lane(i int) Ray1
}

// A single ray. The layout matches the tracing kernel's ray structure: each
// vector is padded to 16 bytes and the struct is padded to a multiple of 16.
type Ray1 struct {
	Org types.Vec3
	_   float32
	Dir types.Vec3
	_   float32

	TNear float32
	TFar  float32
	Time  float32
	Mask  uint32

	// Unnormalized geometry normal.
	Ng types.Vec3
	_  float32

	// Barycentric hit coordinates.
	U float32
	V float32

	GeomID uint32
	PrimID uint32
	InstID uint32
	_      [3]uint32
}

func (r *Ray1) Width() int { return 1 }

func (r *Ray1) Lane(i int) Ray1 { return *r }

// Returns true if the ray hit a primitive.
func (r *Ray1) Hit() bool {
	return r.GeomID != InvalidID
}

// A packet of 4 rays stored in SoA format.
type Ray4 struct {
	OrgX, OrgY, OrgZ [4]float32
	DirX, DirY, DirZ [4]float32
	TNear, TFar      [4]float32
	Time             [4]float32
	Mask             [4]uint32

	NgX, NgY, NgZ [4]float32
	U, V          [4]float32

	GeomID, PrimID, InstID [4]uint32
}

func (r *Ray4) Width() int { return 4 }

func (r *Ray4) Lane(i int) Ray1 {
	return Ray1{
		Org:    types.XYZ(r.OrgX[i], r.OrgY[i], r.OrgZ[i]),
		Dir:    types.XYZ(r.DirX[i], r.DirY[i], r.DirZ[i]),
		TNear:  r.TNear[i],
		TFar:   r.TFar[i],
		Time:   r.Time[i],
		Mask:   r.Mask[i],
		Ng:     types.XYZ(r.NgX[i], r.NgY[i], r.NgZ[i]),
		U:      r.U[i],
		V:      r.V[i],
		GeomID: r.GeomID[i],
		PrimID: r.PrimID[i],
		InstID: r.InstID[i],
	}
}

// Store ray into the given lane.
func (r *Ray4) SetLane(i int, ray Ray1) {
	r.OrgX[i], r.OrgY[i], r.OrgZ[i] = ray.Org[0], ray.Org[1], ray.Org[2]
	r.DirX[i], r.DirY[i], r.DirZ[i] = ray.Dir[0], ray.Dir[1], ray.Dir[2]
	r.TNear[i], r.TFar[i], r.Time[i], r.Mask[i] = ray.TNear, ray.TFar, ray.Time, ray.Mask
	r.NgX[i], r.NgY[i], r.NgZ[i] = ray.Ng[0], ray.Ng[1], ray.Ng[2]
	r.U[i], r.V[i] = ray.U, ray.V
	r.GeomID[i], r.PrimID[i], r.InstID[i] = ray.GeomID, ray.PrimID, ray.InstID
}

// A packet of 8 rays stored in SoA format.
type Ray8 struct {
	OrgX, OrgY, OrgZ [8]float32
	DirX, DirY, DirZ [8]float32
	TNear, TFar      [8]float32
	Time             [8]float32
	Mask             [8]uint32

	NgX, NgY, NgZ [8]float32
	U, V          [8]float32

	GeomID, PrimID, InstID [8]uint32
}

func (r *Ray8) Width() int { return 8 }

func (r *Ray8) Lane(i int) Ray1 {
	return Ray1{
		Org:    types.XYZ(r.OrgX[i], r.OrgY[i], r.OrgZ[i]),
		Dir:    types.XYZ(r.DirX[i], r.DirY[i], r.DirZ[i]),
		TNear:  r.TNear[i],
		TFar:   r.TFar[i],
		Time:   r.Time[i],
		Mask:   r.Mask[i],
		Ng:     types.XYZ(r.NgX[i], r.NgY[i], r.NgZ[i]),
		U:      r.U[i],
		V:      r.V[i],
		GeomID: r.GeomID[i],
		PrimID: r.PrimID[i],
		InstID: r.InstID[i],
	}
}

// Store ray into the given lane.
func (r *Ray8) SetLane(i int, ray Ray1) {
	r.OrgX[i], r.OrgY[i], r.OrgZ[i] = ray.Org[0], ray.Org[1], ray.Org[2]
	r.DirX[i], r.DirY[i], r.DirZ[i] = ray.Dir[0], ray.Dir[1], ray.Dir[2]
	r.TNear[i], r.TFar[i], r.Time[i], r.Mask[i] = ray.TNear, ray.TFar, ray.Time, ray.Mask
	r.NgX[i], r.NgY[i], r.NgZ[i] = ray.Ng[0], ray.Ng[1], ray.Ng[2]
	r.U[i], r.V[i] = ray.U, ray.V
	r.GeomID[i], r.PrimID[i], r.InstID[i] = ray.GeomID, ray.PrimID, ray.InstID
}

// A packet of 16 rays stored in SoA format.
type Ray16 struct {
	OrgX, OrgY, OrgZ [16]float32
	DirX, DirY, DirZ [16]float32
	TNear, TFar      [16]float32
	Time             [16]float32
	Mask             [16]uint32

	NgX, NgY, NgZ [16]float32
	U, V          [16]float32

	GeomID, PrimID, InstID [16]uint32
}

func (r *Ray16) Width() int { return 16 }

func (r *Ray16) Lane(i int) Ray1 {
	return Ray1{
		Org:    types.XYZ(r.OrgX[i], r.OrgY[i], r.OrgZ[i]),
		Dir:    types.XYZ(r.DirX[i], r.DirY[i], r.DirZ[i]),
		TNear:  r.TNear[i],
		TFar:   r.TFar[i],
		Time:   r.Time[i],
		Mask:   r.Mask[i],
		Ng:     types.XYZ(r.NgX[i], r.NgY[i], r.NgZ[i]),
		U:      r.U[i],
		V:      r.V[i],
		GeomID: r.GeomID[i],
		PrimID: r.PrimID[i],
		InstID: r.InstID[i],
	}
}

// Store ray into the given lane.
func (r *Ray16) SetLane(i int, ray Ray1) {
	r.OrgX[i], r.OrgY[i], r.OrgZ[i] = ray.Org[0], ray.Org[1], ray.Org[2]
	r.DirX[i], r.DirY[i], r.DirZ[i] = ray.Dir[0], ray.Dir[1], ray.Dir[2]
	r.TNear[i], r.TFar[i], r.Time[i], r.Mask[i] = ray.TNear, ray.TFar, ray.Time, ray.Mask
	r.NgX[i], r.NgY[i], r.NgZ[i] = ray.Ng[0], ray.Ng[1], ray.Ng[2]
	r.U[i], r.V[i] = ray.U, ray.V
	r.GeomID[i], r.PrimID[i], r.InstID[i] = ray.GeomID, ray.PrimID, ray.InstID
}

// Allocate an empty packet for the given width.
func NewPacket(width int) (Packet, error) {
	switch width {
	case 1:
		return &Ray1{}, nil
	case 4:
		return &Ray4{}, nil
	case 8:
		return &Ray8{}, nil
	case 16:
		return &Ray16{}, nil
	}
	return nil, ErrUnsupportedWidth
}

// Get the encoded size of a packet with the given width or -1 if the width
// is not supported.
func PacketSize(width int) int {
	p, err := NewPacket(width)
	if err != nil {
		return -1
	}
	return binary.Size(p)
}

// Get the width index (0-3) into per-width tables.
func widthIndex(width int) int {
	for index, w := range Widths {
		if w == width {
			return index
		}
	}
	return -1
}
