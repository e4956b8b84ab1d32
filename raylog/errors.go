package raylog

import "errors"

var (
	ErrUnsupportedWidth    = errors.New("raylog: unsupported packet width")
	ErrWidthMismatch       = errors.New("raylog: before/after packet widths differ")
	ErrValidityWidth       = errors.New("raylog: validity buffer length does not match packet width")
	ErrTruncatedRecord     = errors.New("raylog: truncated record at end of stream")
	ErrCorruptRecord       = errors.New("raylog: corrupt record header")
	ErrRecordCountMismatch = errors.New("raylog: streams contain a different number of records")
	ErrPairMismatch        = errors.New("raylog: record header mismatch between paired streams")
	ErrLoggerClosed        = errors.New("raylog: logger already closed")
)
