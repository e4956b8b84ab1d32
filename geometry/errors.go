package geometry

import "errors"

var (
	ErrMisaligned  = errors.New("geometry: dump offset is not 16-byte aligned")
	ErrCorruptDump = errors.New("geometry: corrupt geometry dump")
)
