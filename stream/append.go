package stream

import (
	"bufio"
	"fmt"
	"os"
)

const writeBufferSize = 64 * 1024

// AppendStream is an append-only binary output channel bound to a single
// file. Bytes are written in call order at the end of the file; there is no
// seeking or truncation once the stream is open.
//
// AppendStream does not synchronize access; its owner must serialize calls.
type AppendStream struct {
	path   string
	file   *os.File
	writer *bufio.Writer

	// Number of bytes appended so far.
	offset int64
}

// Create or truncate the file at path and open an append stream to it.
func Open(path string) (*AppendStream, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrOpen, path, err)
	}

	return &AppendStream{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, writeBufferSize),
	}, nil
}

// Get the path of the file backing this stream.
func (s *AppendStream) Path() string {
	return s.path
}

// Get the current write cursor.
func (s *AppendStream) Offset() int64 {
	return s.offset
}

// Append data verbatim to the end of the stream.
func (s *AppendStream) Append(data []byte) error {
	if s.file == nil {
		return ErrClosed
	}

	n, err := s.writer.Write(data)
	s.offset += int64(n)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrWrite, s.path, err)
	}
	return nil
}

// Write implements io.Writer on top of Append.
func (s *AppendStream) Write(data []byte) (int, error) {
	if err := s.Append(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Flush buffered data, sync it to disk and release the file handle. Calling
// Close on an already closed stream is a no-op.
func (s *AppendStream) Close() error {
	if s.file == nil {
		return nil
	}

	f := s.file
	s.file = nil

	if err := s.writer.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("%w %q: %w", ErrWrite, s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w %q: %w", ErrWrite, s.path, err)
	}
	return f.Close()
}
