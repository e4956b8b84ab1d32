package stream

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ray4.bin")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	chunks := [][]byte{
		[]byte("first"),
		{},
		[]byte("second"),
		bytes.Repeat([]byte{0xAB}, 3*writeBufferSize),
		[]byte("third"),
	}

	var expData []byte
	for index, chunk := range chunks {
		if err = s.Append(chunk); err != nil {
			t.Fatalf("[chunk %d] unexpected error: %v", index, err)
		}
		expData = append(expData, chunk...)

		if s.Offset() != int64(len(expData)) {
			t.Fatalf("[chunk %d] expected offset to be %d; got %d", index, len(expData), s.Offset())
		}
	}

	if err = s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, expData) {
		t.Fatalf("expected file to contain %d appended bytes in order; got %d bytes", len(expData), len(data))
	}
}

func TestOpenTruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ray1.bin")
	if err := os.WriteFile(path, []byte("stale data from a previous run"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Append([]byte("new")); err != nil {
		t.Fatal(err)
	}
	if err = s.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Fatalf("expected file to contain 'new'; got %q", string(data))
	}
}

func TestOpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "ray8.bin")
	_, err := Open(path)
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected to get ErrOpen; got %v", err)
	}
}

func TestAppendAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "ray16.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Close(); err != nil {
		t.Fatal(err)
	}

	// Second close is a no-op
	if err = s.Close(); err != nil {
		t.Fatalf("expected second close to succeed; got %v", err)
	}

	if err = s.Append([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected to get ErrClosed; got %v", err)
	}
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geometry.bin")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	n, err := s.Write([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 || s.Offset() != 16 {
		t.Fatalf("expected 16 bytes written and offset 16; got %d and %d", n, s.Offset())
	}
	if s.Path() != path {
		t.Fatalf("expected path %q; got %q", path, s.Path())
	}
}
