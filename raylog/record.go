package raylog

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// The query type recorded with each packet.
type Operation uint32

const (
	Intersect Operation = iota
	Occluded
)

func (op Operation) String() string {
	switch op {
	case Intersect:
		return "intersect"
	case Occluded:
		return "occluded"
	}
	return fmt.Sprintf("op(%d)", uint32(op))
}

// Records start with a 16 byte header so that the packet payload stays
// 16-byte aligned:
//
//	[0:4]   operation
//	[4:8]   validity mask (bit i set iff lane i is active)
//	[8:12]  number of active lanes
//	[12:16] reserved, always zero
//
// Single ray records leave the mask and count fields zeroed.
const RecordHeaderSize = 16

// A decoded packet record.
type Record struct {
	Op          Operation
	Mask        uint32
	ActiveCount uint32
	Packet      Packet
}

// Get the encoded size of a record for the given width or -1 if the width
// is not supported.
func RecordSize(width int) int {
	size := PacketSize(width)
	if size < 0 {
		return -1
	}
	return RecordHeaderSize + size
}

// Build the validity mask and active lane count from a per-lane validity
// buffer. A lane is active iff its entry is non-zero. A nil buffer marks
// all lanes of the given width as active.
func ValidityMask(valid []int32, width int) (mask, count uint32) {
	if valid == nil {
		mask = uint32(1<<uint(width)) - 1
		return mask, uint32(width)
	}

	for lane, v := range valid {
		if v != 0 {
			mask |= 1 << uint(lane)
		}
	}
	return mask, uint32(bits.OnesCount32(mask))
}

// Returns the indices of the active lanes for a record.
func (r *Record) ActiveLanes() []int {
	if r.Packet.Width() == 1 {
		return []int{0}
	}

	lanes := make([]int, 0, r.ActiveCount)
	for mask := r.Mask; mask != 0; mask &= mask - 1 {
		lanes = append(lanes, bits.TrailingZeros32(mask))
	}
	return lanes
}

// Append the binary representation of a record to buf.
func appendRecord(buf []byte, op Operation, mask, count uint32, p Packet) ([]byte, error) {
	buf = binary.NativeEndian.AppendUint32(buf, uint32(op))
	buf = binary.NativeEndian.AppendUint32(buf, mask)
	buf = binary.NativeEndian.AppendUint32(buf, count)
	buf = binary.NativeEndian.AppendUint32(buf, 0)
	return binary.Append(buf, binary.NativeEndian, p)
}

// Decode a record from data. The slice must contain exactly one record.
func decodeRecord(data []byte, width int) (*Record, error) {
	p, err := NewPacket(width)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Op:          Operation(binary.NativeEndian.Uint32(data[0:4])),
		Mask:        binary.NativeEndian.Uint32(data[4:8]),
		ActiveCount: binary.NativeEndian.Uint32(data[8:12]),
		Packet:      p,
	}
	if err = validateHeader(rec, binary.NativeEndian.Uint32(data[12:16]), width); err != nil {
		return nil, err
	}

	if _, err = binary.Decode(data[RecordHeaderSize:], binary.NativeEndian, p); err != nil {
		return nil, err
	}
	return rec, nil
}

// Reject headers that could not have been produced by the logger.
func validateHeader(rec *Record, reserved uint32, width int) error {
	switch {
	case rec.Op > Occluded:
		return fmt.Errorf("%w: unknown operation %d", ErrCorruptRecord, uint32(rec.Op))
	case reserved != 0:
		return fmt.Errorf("%w: reserved field is %#x", ErrCorruptRecord, reserved)
	case width == 1 && (rec.Mask != 0 || rec.ActiveCount != 0):
		return fmt.Errorf("%w: single ray record with mask %#x and count %d", ErrCorruptRecord, rec.Mask, rec.ActiveCount)
	case width > 1 && rec.Mask>>uint(width) != 0:
		return fmt.Errorf("%w: mask %#x has lanes beyond width %d", ErrCorruptRecord, rec.Mask, width)
	case int(rec.ActiveCount) != bits.OnesCount32(rec.Mask):
		return fmt.Errorf("%w: active count %d does not match mask %#x", ErrCorruptRecord, rec.ActiveCount, rec.Mask)
	}
	return nil
}
