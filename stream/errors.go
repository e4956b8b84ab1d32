package stream

import "errors"

var (
	ErrOpen   = errors.New("stream: could not open output file")
	ErrWrite  = errors.New("stream: write failed")
	ErrClosed = errors.New("stream: stream already closed")
)
