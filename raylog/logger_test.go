package raylog

import (
	"errors"
	"math/bits"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/achilleasa/raystream/geometry"
	"github.com/achilleasa/raystream/stream"
	"github.com/achilleasa/raystream/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fatalRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (f *fatalRecorder) handle(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

func testOptions(t *testing.T, onFatal FatalHandler) Options {
	opts := DefaultOptions()
	opts.Dir = t.TempDir()
	opts.Registerer = prometheus.NewRegistry()
	opts.OnFatal = onFatal
	return opts
}

func readStream(t *testing.T, path string, width int) []*Record {
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rr, err := NewRecordReader(f, width)
	if err != nil {
		t.Fatal(err)
	}
	records, err := rr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func readPair(t *testing.T, opts Options, width int) (primary, verify []*Record) {
	primaryPath, verifyPath, err := opts.StreamPaths(width)
	if err != nil {
		t.Fatal(err)
	}
	return readStream(t, primaryPath, width), readStream(t, verifyPath, width)
}

func TestLogRay4Scenario(t *testing.T) {
	fatal := &fatalRecorder{}
	opts := testOptions(t, fatal.handle)
	l, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	var before, after Ray4
	for lane := 0; lane < 4; lane++ {
		before.SetLane(lane, Ray1{
			Org:    types.XYZ(0, 0, float32(lane)),
			Dir:    types.XYZ(0, 0, -1),
			TFar:   1e30,
			GeomID: InvalidID,
			PrimID: InvalidID,
			InstID: InvalidID,
		})
	}
	after = before
	after.TFar[0], after.GeomID[0], after.PrimID[0] = 2.5, 3, 17

	l.LogRay4Intersect(&[4]int32{1, 0, 1, 1}, &before, &after)
	if err = l.Close(); err != nil {
		t.Fatal(err)
	}
	if len(fatal.errs) != 0 {
		t.Fatalf("unexpected fatal errors: %v", fatal.errs)
	}

	primary, verify := readPair(t, opts, 4)
	if len(primary) != 1 || len(verify) != 1 {
		t.Fatalf("expected 1 record per stream; got %d and %d", len(primary), len(verify))
	}

	for name, rec := range map[string]*Record{"primary": primary[0], "verify": verify[0]} {
		if rec.Op != Intersect || rec.Mask != 0b1101 || rec.ActiveCount != 3 {
			t.Fatalf("[%s] expected (intersect, 0b1101, 3); got (%s, %#b, %d)", name, rec.Op, rec.Mask, rec.ActiveCount)
		}
	}
	if *primary[0].Packet.(*Ray4) != before {
		t.Fatal("expected primary record to carry the before packet")
	}
	if *verify[0].Packet.(*Ray4) != after {
		t.Fatal("expected verify record to carry the after packet")
	}

	if lanes := verify[0].ActiveLanes(); len(lanes) != 3 || lanes[0] != 0 || lanes[1] != 2 || lanes[2] != 3 {
		t.Fatalf("expected active lanes [0 2 3]; got %v", lanes)
	}
}

func TestLogAllWidths(t *testing.T) {
	fatal := &fatalRecorder{}
	opts := testOptions(t, fatal.handle)
	l, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	r1 := &Ray1{TNear: 1, GeomID: InvalidID}
	r1After := &Ray1{TNear: 1, GeomID: 0}
	l.LogRay1Intersect(r1, r1After)
	l.LogRay1Occluded(r1, r1After)

	valid8 := &[8]int32{0, 0, 0, 0, 0, 0, 0, -1}
	l.LogRay8Intersect(valid8, &Ray8{}, &Ray8{})
	l.LogRay8Occluded(nil, &Ray8{}, &Ray8{})

	var valid16 [16]int32
	for i := range valid16 {
		valid16[i] = int32(i % 2)
	}
	l.LogRay16Occluded(&valid16, &Ray16{}, &Ray16{})
	l.LogRay16Intersect(nil, &Ray16{}, &Ray16{})
	l.LogRay4Occluded(&[4]int32{}, &Ray4{}, &Ray4{})

	if err = l.Close(); err != nil {
		t.Fatal(err)
	}
	if len(fatal.errs) != 0 {
		t.Fatalf("unexpected fatal errors: %v", fatal.errs)
	}

	type expRecord struct {
		op    Operation
		mask  uint32
		count uint32
	}
	specs := map[int][]expRecord{
		1:  {{Intersect, 0, 0}, {Occluded, 0, 0}},
		4:  {{Occluded, 0, 0}},
		8:  {{Intersect, 0x80, 1}, {Occluded, 0xFF, 8}},
		16: {{Occluded, 0xAAAA, 8}, {Intersect, 0xFFFF, 16}},
	}

	for width, expRecords := range specs {
		primary, verify := readPair(t, opts, width)
		if len(primary) != len(expRecords) || len(verify) != len(expRecords) {
			t.Fatalf("[width %d] expected %d records per stream; got %d and %d", width, len(expRecords), len(primary), len(verify))
		}

		primaryPath, _, _ := opts.StreamPaths(width)
		info, _ := os.Stat(primaryPath)
		if info.Size() != int64(len(expRecords)*RecordSize(width)) {
			t.Fatalf("[width %d] expected stream size %d; got %d", width, len(expRecords)*RecordSize(width), info.Size())
		}

		for index, exp := range expRecords {
			for _, rec := range []*Record{primary[index], verify[index]} {
				if rec.Op != exp.op || rec.Mask != exp.mask || rec.ActiveCount != exp.count {
					t.Fatalf("[width %d, record %d] expected (%s, %#x, %d); got (%s, %#x, %d)", width, index, exp.op, exp.mask, exp.count, rec.Op, rec.Mask, rec.ActiveCount)
				}
			}
		}
	}

	// Ray1 payload ordering
	primary, verify := readPair(t, opts, 1)
	if primary[0].Packet.(*Ray1).Hit() || !verify[0].Packet.(*Ray1).Hit() {
		t.Fatal("expected primary stream to hold the before state and verify stream the after state")
	}
}

func TestRecordSizes(t *testing.T) {
	type spec struct {
		width   int
		expSize int
	}
	specs := []spec{
		{1, 112},
		{4, 304},
		{8, 592},
		{16, 1168},
		{2, -1},
	}

	for index, s := range specs {
		if got := RecordSize(s.width); got != s.expSize {
			t.Fatalf("[spec %d] expected record size for width %d to be %d; got %d", index, s.width, s.expSize, got)
		}
		if s.expSize > 0 && (s.expSize-RecordHeaderSize)%16 != 0 {
			t.Fatalf("[spec %d] expected packet payload to be a multiple of 16 bytes", index)
		}
	}
}

func TestValidityMask(t *testing.T) {
	type spec struct {
		valid    []int32
		width    int
		expMask  uint32
		expCount uint32
	}
	specs := []spec{
		{[]int32{1, 0, 1, 1}, 4, 0b1101, 3},
		{[]int32{0, 0, 0, 0}, 4, 0, 0},
		{[]int32{-1, -1, -1, -1, -1, -1, -1, -1}, 8, 0xFF, 8},
		{nil, 16, 0xFFFF, 16},
		{nil, 4, 0xF, 4},
	}

	for index, s := range specs {
		mask, count := ValidityMask(s.valid, s.width)
		if mask != s.expMask || count != s.expCount {
			t.Fatalf("[spec %d] expected (%#b, %d); got (%#b, %d)", index, s.expMask, s.expCount, mask, count)
		}
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		valid := make([]int32, 16)
		for lane := range valid {
			valid[lane] = int32(rng.Intn(3) - 1)
		}
		mask, count := ValidityMask(valid, 16)
		if int(count) != bits.OnesCount32(mask) {
			t.Fatalf("expected active count %d to match popcount of %#x", count, mask)
		}
	}
}

func TestConcurrentLogging(t *testing.T) {
	fatal := &fatalRecorder{}
	opts := testOptions(t, fatal.handle)
	l, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	const numWorkers = 8
	const queriesPerWorker = 200

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(worker)))
			for q := 0; q < queriesPerWorker; q++ {
				// Tag every lane with the worker id; after packets use the negated id
				tag := float32(worker*queriesPerWorker + q + 1)
				op := Operation(rng.Intn(2))

				switch Widths[rng.Intn(len(Widths))] {
				case 1:
					l.Log(op, nil, &Ray1{TNear: tag}, &Ray1{TNear: -tag})
				case 4:
					var valid [4]int32
					var before, after Ray4
					for lane := range valid {
						valid[lane] = int32(rng.Intn(2))
						before.TNear[lane], after.TNear[lane] = tag, -tag
					}
					l.Log(op, valid[:], &before, &after)
				case 8:
					var valid [8]int32
					var before, after Ray8
					for lane := range valid {
						valid[lane] = int32(rng.Intn(2))
						before.TNear[lane], after.TNear[lane] = tag, -tag
					}
					l.Log(op, valid[:], &before, &after)
				case 16:
					var valid [16]int32
					var before, after Ray16
					for lane := range valid {
						valid[lane] = int32(rng.Intn(2))
						before.TNear[lane], after.TNear[lane] = tag, -tag
					}
					l.Log(op, valid[:], &before, &after)
				}
			}
		}(worker)
	}
	wg.Wait()

	if err = l.Close(); err != nil {
		t.Fatal(err)
	}
	if len(fatal.errs) != 0 {
		t.Fatalf("unexpected fatal errors: %v", fatal.errs)
	}

	totalRecords := 0
	seen := make(map[float32]bool)
	for _, width := range Widths {
		primary, verify := readPair(t, opts, width)
		if len(primary) != len(verify) {
			t.Fatalf("[width %d] expected equal record counts; got %d and %d", width, len(primary), len(verify))
		}
		totalRecords += len(primary) + len(verify)

		for index := range primary {
			before, after := primary[index], verify[index]
			if before.Op != after.Op || before.Mask != after.Mask || before.ActiveCount != after.ActiveCount {
				t.Fatalf("[width %d, record %d] header mismatch between primary and verify", width, index)
			}
			if width > 1 && int(before.ActiveCount) != bits.OnesCount32(before.Mask) {
				t.Fatalf("[width %d, record %d] active count does not match mask", width, index)
			}

			tag := before.Packet.Lane(0).TNear
			for lane := 0; lane < width; lane++ {
				if before.Packet.Lane(lane).TNear != tag || after.Packet.Lane(lane).TNear != -tag {
					t.Fatalf("[width %d, record %d] torn or unpaired record at lane %d", width, index, lane)
				}
			}
			if seen[tag] {
				t.Fatalf("[width %d, record %d] query %v logged twice", width, index, tag)
			}
			seen[tag] = true
		}
	}

	expRecords := 2 * numWorkers * queriesPerWorker
	if totalRecords != expRecords {
		t.Fatalf("expected %d records in total; got %d", expRecords, totalRecords)
	}
}

func TestLogErrorsUseFatalHandler(t *testing.T) {
	fatal := &fatalRecorder{}
	opts := testOptions(t, fatal.handle)
	l, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	l.Log(Intersect, []int32{1, 1}, &Ray4{}, &Ray4{})
	l.Log(Intersect, nil, &Ray4{}, &Ray8{})
	l.Close()
	l.LogRay1Intersect(&Ray1{}, &Ray1{})

	expErrs := []error{ErrValidityWidth, ErrWidthMismatch, ErrLoggerClosed}
	if len(fatal.errs) != len(expErrs) {
		t.Fatalf("expected %d fatal errors; got %v", len(expErrs), fatal.errs)
	}
	for index, exp := range expErrs {
		if !errors.Is(fatal.errs[index], exp) {
			t.Fatalf("[error %d] expected %v; got %v", index, exp, fatal.errs[index])
		}
	}

	// Nothing was written by the rejected calls
	primary, _ := readPair(t, opts, 4)
	if len(primary) != 0 {
		t.Fatalf("expected no records; got %d", len(primary))
	}
}

func TestNewOpenFailure(t *testing.T) {
	fatal := &fatalRecorder{}
	opts := testOptions(t, fatal.handle)
	opts.Dir = filepath.Join(opts.Dir, "does-not-exist")

	if _, err := New(opts); !errors.Is(err, stream.ErrOpen) {
		t.Fatalf("expected to get stream.ErrOpen; got %v", err)
	}

	if l := MustNew(opts); l != nil {
		t.Fatal("expected MustNew to return nil when the fatal handler returns")
	}
	if len(fatal.errs) != 1 || !errors.Is(fatal.errs[0], stream.ErrOpen) {
		t.Fatalf("expected fatal handler to receive stream.ErrOpen; got %v", fatal.errs)
	}
	if kind := ErrorKind(fatal.errs[0]); kind != "output unavailable" {
		t.Fatalf("expected error kind 'output unavailable'; got %q", kind)
	}
}

func TestErrorKind(t *testing.T) {
	type spec struct {
		err     error
		expKind string
	}
	specs := []spec{
		{stream.ErrWrite, "output unavailable"},
		{geometry.ErrMisaligned, "invariant violation"},
		{ErrWidthMismatch, "internal error"},
	}

	for index, s := range specs {
		if got := ErrorKind(s.err); got != s.expKind {
			t.Fatalf("[spec %d] expected %q; got %q", index, s.expKind, got)
		}
	}
}

func TestMetrics(t *testing.T) {
	opts := testOptions(t, (&fatalRecorder{}).handle)
	l, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := 0; i < 3; i++ {
		l.LogRay4Intersect(&[4]int32{1, 1, 0, 0}, &Ray4{}, &Ray4{})
	}
	l.LogRay1Occluded(&Ray1{}, &Ray1{})

	m := l.Metrics()
	if got := testutil.ToFloat64(m.Records.WithLabelValues("4", PrimaryStream)); got != 3 {
		t.Fatalf("expected 3 primary records for width 4; got %v", got)
	}
	if got := testutil.ToFloat64(m.Records.WithLabelValues("4", VerifyStream)); got != 3 {
		t.Fatalf("expected 3 verify records for width 4; got %v", got)
	}
	if got := testutil.ToFloat64(m.Bytes.WithLabelValues("1", PrimaryStream)); got != float64(RecordSize(1)) {
		t.Fatalf("expected %d bytes for width 1; got %v", RecordSize(1), got)
	}
	if got := testutil.ToFloat64(m.ActiveRays.WithLabelValues("4", "intersect")); got != 6 {
		t.Fatalf("expected 6 active rays; got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveRays.WithLabelValues("1", "occluded")); got != 1 {
		t.Fatalf("expected 1 active ray for width 1; got %v", got)
	}
}

func TestDumpGeometry(t *testing.T) {
	fatal := &fatalRecorder{}
	opts := testOptions(t, fatal.handle)
	l, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	mesh := geometry.NewMesh("tri")
	mesh.Vertices = append(mesh.Vertices, types.XYZW(0, 0, 0, 0), types.XYZW(1, 0, 0, 0), types.XYZW(0, 1, 0, 0))
	mesh.Triangles = append(mesh.Triangles, geometry.Triangle{V0: 0, V1: 1, V2: 2})
	disabled := geometry.NewMesh("off")
	disabled.Disabled = true

	stats := l.DumpGeometry(&geometry.MemScene{Groups: []geometry.Geometry{mesh, disabled}})
	if stats == nil || stats.Meshes != 1 || stats.Bytes != 96 {
		t.Fatalf("expected a single 96 byte mesh dump; got %+v", stats)
	}
	if got := testutil.ToFloat64(l.Metrics().GeometryDumps); got != 1 {
		t.Fatalf("expected geometry dump counter to be 1; got %v", got)
	}

	info, err := os.Stat(opts.GeometryPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 96 {
		t.Fatalf("expected geometry file size 96; got %d", info.Size())
	}

	// Dump failures are routed to the fatal handler
	l.opts.GeometryFile = filepath.Join("missing", "geometry.bin")
	if stats = l.DumpGeometry(&geometry.MemScene{}); stats != nil {
		t.Fatal("expected failed dump to return nil stats")
	}
	if len(fatal.errs) != 1 || !errors.Is(fatal.errs[0], stream.ErrOpen) {
		t.Fatalf("expected fatal handler to receive stream.ErrOpen; got %v", fatal.errs)
	}
}

func TestSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	onFatal := (&fatalRecorder{}).handle

	// A failed open must not leave collectors behind
	badOpts := DefaultOptions()
	badOpts.Dir = filepath.Join(t.TempDir(), "missing")
	badOpts.Registerer = reg
	badOpts.OnFatal = onFatal
	if _, err := New(badOpts); err == nil {
		t.Fatal("expected New to fail")
	}
	if families, _ := reg.Gather(); len(families) != 0 {
		t.Fatalf("expected no registered metrics after a failed open; got %d families", len(families))
	}

	loggers := make([]*RayLogger, 2)
	for index := range loggers {
		opts := DefaultOptions()
		opts.Dir = t.TempDir()
		opts.Registerer = reg
		opts.OnFatal = onFatal

		l, err := New(opts)
		if err != nil {
			t.Fatalf("[logger %d] unexpected error: %v", index, err)
		}
		defer l.Close()
		loggers[index] = l

		l.LogRay1Intersect(&Ray1{}, &Ray1{})
	}

	if loggers[0].Metrics().Records != loggers[1].Metrics().Records {
		t.Fatal("expected loggers on the same registry to share collectors")
	}
	if got := testutil.ToFloat64(loggers[0].Metrics().Records.WithLabelValues("1", PrimaryStream)); got != 2 {
		t.Fatalf("expected 2 primary records across both loggers; got %v", got)
	}
}
