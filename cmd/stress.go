package cmd

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/achilleasa/raystream/geometry"
	"github.com/achilleasa/raystream/raylog"
	"github.com/achilleasa/raystream/types"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
)

// Log synthetic queries from concurrent workers and verify the written streams.
func StressLogger(ctx *cli.Context) error {
	setupLogging(ctx)

	opts, err := loadOptions(ctx)
	if err != nil {
		return err
	}
	if ctx.GlobalString("out-dir") == "" && ctx.GlobalString("config") == "" {
		if opts.Dir, err = os.MkdirTemp("", "raystream-stress-"); err != nil {
			return err
		}
		logger.Noticef(`writing stress test logs to "%s"`, opts.Dir)
	}

	// Collect fatal errors instead of exiting so they can be reported
	var fatalMu sync.Mutex
	var fatalErr error
	opts.OnFatal = func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
	}

	reg := prometheus.NewRegistry()
	opts.Registerer = reg

	l, err := raylog.New(opts)
	if err != nil {
		return err
	}

	if sceneFile := ctx.String("scene"); sceneFile != "" {
		sc, err := geometry.ReadWavefront(sceneFile)
		if err != nil {
			l.Close()
			return err
		}
		if stats := l.DumpGeometry(sc); stats != nil {
			displayDumpStats(opts.GeometryPath(), stats)
		}
	}

	numWorkers := ctx.Int("workers")
	numQueries := ctx.Int("queries")
	start := time.Now()

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for q := 0; q < numQueries; q++ {
				logRandomQuery(l, rng)
			}
		}(int64(worker))
	}
	wg.Wait()

	elapsed := time.Since(start)
	if err = l.Close(); err != nil {
		return err
	}
	if fatalErr != nil {
		return fatalErr
	}

	totalRecords, err := verifyStreams(opts)
	if err != nil {
		return err
	}
	expRecords := 2 * numWorkers * numQueries
	if totalRecords != expRecords {
		return fmt.Errorf("expected %d records across all streams; got %d", expRecords, totalRecords)
	}

	metrics, err := metricsTable(reg)
	if err != nil {
		return err
	}
	logger.Noticef("logged %d queries from %d workers in %s; verified %d records\n%s", numWorkers*numQueries, numWorkers, elapsed, totalRecords, metrics)
	return nil
}

// Log a query with random width, operation and validity buffer. Hit data
// is filled in for active lanes of the after packet.
func logRandomQuery(l *raylog.RayLogger, rng *rand.Rand) {
	width := raylog.Widths[rng.Intn(len(raylog.Widths))]
	op := raylog.Operation(rng.Intn(2))

	var valid []int32
	if width > 1 && rng.Intn(4) != 0 {
		valid = make([]int32, width)
		for lane := range valid {
			valid[lane] = -int32(rng.Intn(2))
		}
	}

	before, _ := raylog.NewPacket(width)
	after, _ := raylog.NewPacket(width)
	for lane := 0; lane < width; lane++ {
		ray := raylog.Ray1{
			Org:    types.XYZ(rng.Float32(), rng.Float32(), rng.Float32()),
			Dir:    types.XYZ(rng.Float32()-0.5, rng.Float32()-0.5, -1).Normalize(),
			TFar:   1e30,
			Mask:   ^uint32(0),
			GeomID: raylog.InvalidID,
			PrimID: raylog.InvalidID,
			InstID: raylog.InvalidID,
		}
		setLane(before, lane, ray)

		if rng.Intn(2) == 0 {
			ray.TFar = rng.Float32() * 100
			ray.GeomID = uint32(rng.Intn(8))
			ray.PrimID = uint32(rng.Intn(1024))
			ray.U, ray.V = rng.Float32(), rng.Float32()
		}
		setLane(after, lane, ray)
	}

	l.Log(op, valid, before, after)
}

func setLane(p raylog.Packet, lane int, ray raylog.Ray1) {
	switch packet := p.(type) {
	case *raylog.Ray1:
		*packet = ray
	case *raylog.Ray4:
		packet.SetLane(lane, ray)
	case *raylog.Ray8:
		packet.SetLane(lane, ray)
	case *raylog.Ray16:
		packet.SetLane(lane, ray)
	}
}

// Check every primary/verify pair and return the total number of records.
func verifyStreams(opts raylog.Options) (int, error) {
	var total int
	for _, width := range raylog.Widths {
		primaryPath, verifyPath, err := opts.StreamPaths(width)
		if err != nil {
			return 0, err
		}

		primary, err := os.Open(primaryPath)
		if err != nil {
			return 0, err
		}
		verify, err := os.Open(verifyPath)
		if err != nil {
			primary.Close()
			return 0, err
		}

		report, err := raylog.ComparePairs(primary, verify, width)
		primary.Close()
		verify.Close()
		if err != nil {
			return 0, fmt.Errorf("width %d: %w", width, err)
		}
		total += 2 * report.Records
	}
	return total, nil
}

// Render all counters in a registry as a table.
func metricsTable(reg *prometheus.Registry) (string, error) {
	families, err := reg.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Metric", "Labels", "Value"})
	for _, family := range families {
		rows := make([][]string, 0, len(family.GetMetric()))
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			rows = append(rows, []string{
				family.GetName(),
				strings.Join(labels, ","),
				fmt.Sprintf("%.0f", metric.GetCounter().GetValue()),
			})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][1] < rows[j][1] })
		table.AppendBulk(rows)
	}

	table.Render()
	return buf.String(), nil
}
