package raylog

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"

	"github.com/achilleasa/raystream/geometry"
	"github.com/achilleasa/raystream/log"
	"github.com/achilleasa/raystream/stream"
)

// A primary/verify stream pair for one packet width.
type streamPair struct {
	width   int
	primary *stream.AppendStream
	verify  *stream.AppendStream
}

// RayLogger records ray packets before and after intersection/occlusion
// queries. Each packet width gets a primary stream receiving the packet
// state before the query and a verify stream receiving the state after it.
//
// All log calls are serialized by a single lock so each before/after pair
// is appended without interleaving records from other callers. RayLogger
// is meant to be created once and passed to the tracing code.
type RayLogger struct {
	mu      sync.Mutex
	opts    Options
	pairs   [len(Widths)]*streamPair
	buf     []byte
	closed  bool
	metrics *Metrics
	onFatal FatalHandler
}

// Create a logger and open its output streams. If any stream cannot be opened
// the ones opened so far are closed and an error is returned.
func New(opts Options) (*RayLogger, error) {
	l := &RayLogger{
		opts:    opts,
		onFatal: opts.OnFatal,
	}
	if l.onFatal == nil {
		l.onFatal = Fatal
	}

	for index, width := range Widths {
		primaryPath, verifyPath, _ := opts.StreamPaths(width)

		pair := &streamPair{width: width}
		var err error
		if pair.primary, err = stream.Open(primaryPath); err == nil {
			if pair.verify, err = stream.Open(verifyPath); err != nil {
				pair.primary.Close()
			}
		}
		if err != nil {
			l.closeStreams()
			return nil, err
		}

		l.pairs[index] = pair
		maxSize := RecordSize(width)
		if maxSize > cap(l.buf) {
			l.buf = make([]byte, 0, maxSize)
		}
	}

	// Register metrics last so a failed open leaves the registry untouched
	var err error
	if l.metrics, err = NewMetrics(opts.Registerer); err != nil {
		l.closeStreams()
		return nil, err
	}

	logger.Infof(`writing ray logs to "%s"`, opts.Dir)
	return l, nil
}

// Create a logger or invoke the fatal handler if its streams cannot be opened.
func MustNew(opts Options) *RayLogger {
	l, err := New(opts)
	if err != nil {
		onFatal := opts.OnFatal
		if onFatal == nil {
			onFatal = Fatal
		}
		onFatal(err)
		return nil
	}
	return l
}

// Get the logger metrics.
func (l *RayLogger) Metrics() *Metrics {
	return l.metrics
}

// Log a single ray intersection query.
func (l *RayLogger) LogRay1Intersect(before, after *Ray1) {
	l.Log(Intersect, nil, before, after)
}

// Log a single ray occlusion query.
func (l *RayLogger) LogRay1Occluded(before, after *Ray1) {
	l.Log(Occluded, nil, before, after)
}

// Log a 4-wide intersection query.
func (l *RayLogger) LogRay4Intersect(valid *[4]int32, before, after *Ray4) {
	l.Log(Intersect, lanes(valid), before, after)
}

// Log a 4-wide occlusion query.
func (l *RayLogger) LogRay4Occluded(valid *[4]int32, before, after *Ray4) {
	l.Log(Occluded, lanes(valid), before, after)
}

// Log an 8-wide intersection query.
func (l *RayLogger) LogRay8Intersect(valid *[8]int32, before, after *Ray8) {
	l.Log(Intersect, lanes(valid), before, after)
}

// Log an 8-wide occlusion query.
func (l *RayLogger) LogRay8Occluded(valid *[8]int32, before, after *Ray8) {
	l.Log(Occluded, lanes(valid), before, after)
}

// Log a 16-wide intersection query.
func (l *RayLogger) LogRay16Intersect(valid *[16]int32, before, after *Ray16) {
	l.Log(Intersect, lanes(valid), before, after)
}

// Log a 16-wide occlusion query.
func (l *RayLogger) LogRay16Occluded(valid *[16]int32, before, after *Ray16) {
	l.Log(Occluded, lanes(valid), before, after)
}

// Log a query for a packet of any supported width. The before packet is
// appended to the primary stream for the packet width and the after packet
// to the matching verify stream; both records share the same header.
//
// The validity buffer is ignored for single rays. For wider packets a nil
// buffer marks all lanes as active.
func (l *RayLogger) Log(op Operation, valid []int32, before, after Packet) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.log(op, valid, before, after); err != nil {
		l.onFatal(err)
	}
}

func (l *RayLogger) log(op Operation, valid []int32, before, after Packet) error {
	if l.closed {
		return ErrLoggerClosed
	}

	width := before.Width()
	if after.Width() != width {
		return fmt.Errorf("%w: %d != %d", ErrWidthMismatch, width, after.Width())
	}
	index := widthIndex(width)
	if index < 0 || binary.Size(before) != PacketSize(width) || binary.Size(after) != PacketSize(width) {
		return fmt.Errorf("%w: %d", ErrUnsupportedWidth, width)
	}

	var mask, count uint32
	if width > 1 {
		if valid != nil && len(valid) != width {
			return fmt.Errorf("%w: got %d lanes for width %d", ErrValidityWidth, len(valid), width)
		}
		mask, count = ValidityMask(valid, width)
	}

	pair := l.pairs[index]

	var err error
	if l.buf, err = appendRecord(l.buf[:0], op, mask, count, before); err != nil {
		return err
	}
	if err = pair.primary.Append(l.buf); err != nil {
		return err
	}
	l.metrics.observeAppend(width, PrimaryStream, len(l.buf))

	// Same header, after-query payload
	if l.buf, err = appendRecord(l.buf[:0], op, mask, count, after); err != nil {
		return err
	}
	if err = pair.verify.Append(l.buf); err != nil {
		return err
	}
	l.metrics.observeAppend(width, VerifyStream, len(l.buf))

	activeRays := count
	if width == 1 {
		activeRays = 1
	}
	l.metrics.ActiveRays.WithLabelValues(strconv.Itoa(width), op.String()).Add(float64(activeRays))

	if log.IsEnabled(log.Debug) {
		logger.Debugf("logged width %d %s query (mask %#x, %d active) at offset %d", width, op, mask, count, pair.verify.Offset())
	}

	return nil
}

// Dump the scene geometry to the configured geometry file. This call does
// not acquire the logger lock: callers must ensure that no queries are
// being logged and that the scene is not modified while it runs.
func (l *RayLogger) DumpGeometry(sc geometry.Scene) *geometry.DumpStats {
	stats, err := geometry.Dump(sc, l.opts.GeometryPath())
	if err != nil {
		l.onFatal(err)
		return nil
	}

	l.metrics.GeometryDumps.Inc()
	return stats
}

// Flush and close all output streams. Calling Close more than once is a no-op.
func (l *RayLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.closeStreams()
}

func (l *RayLogger) closeStreams() error {
	var firstErr error
	for _, pair := range l.pairs {
		if pair == nil {
			continue
		}
		for _, s := range []*stream.AppendStream{pair.primary, pair.verify} {
			if err := s.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Convert a fixed size validity array into a slice; nil stays nil.
func lanes[T [4]int32 | [8]int32 | [16]int32](valid *T) []int32 {
	if valid == nil {
		return nil
	}
	switch v := any(valid).(type) {
	case *[4]int32:
		return v[:]
	case *[8]int32:
		return v[:]
	case *[16]int32:
		return v[:]
	}
	return nil
}
