package raylog

import (
	"bufio"
	"io"
)

// RecordReader decodes the records of a single ray log stream. Streams have
// no header so the packet width must be known in advance.
type RecordReader struct {
	r     *bufio.Reader
	width int
	buf   []byte

	// Number of records decoded so far.
	count int
}

// Create a reader for a stream of records with the given packet width.
func NewRecordReader(r io.Reader, width int) (*RecordReader, error) {
	size := RecordSize(width)
	if size < 0 {
		return nil, ErrUnsupportedWidth
	}

	return &RecordReader{
		r:     bufio.NewReader(r),
		width: width,
		buf:   make([]byte, size),
	}, nil
}

// Get the packet width for this stream.
func (rr *RecordReader) Width() int {
	return rr.width
}

// Get the number of records decoded so far.
func (rr *RecordReader) Count() int {
	return rr.count
}

// Read the next record. Next returns io.EOF once the stream is exhausted
// and ErrTruncatedRecord if the stream ends in the middle of a record.
func (rr *RecordReader) Next() (*Record, error) {
	_, err := io.ReadFull(rr.r, rr.buf)
	switch err {
	case nil:
	case io.ErrUnexpectedEOF:
		return nil, ErrTruncatedRecord
	default:
		return nil, err
	}

	rec, err := decodeRecord(rr.buf, rr.width)
	if err != nil {
		return nil, err
	}
	rr.count++
	return rec, nil
}

// Read all remaining records.
func (rr *RecordReader) ReadAll() ([]*Record, error) {
	records := make([]*Record, 0)
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return records, nil
		} else if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
