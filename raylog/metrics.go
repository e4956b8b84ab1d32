package raylog

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream labels.
const (
	PrimaryStream = "primary"
	VerifyStream  = "verify"
)

// Metrics tracks logger throughput.
type Metrics struct {
	Records       *prometheus.CounterVec
	Bytes         *prometheus.CounterVec
	ActiveRays    *prometheus.CounterVec
	GeometryDumps prometheus.Counter
}

// Create logger metrics and register them with reg. Collectors that reg
// already holds from another logger are shared. A nil registerer creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	factory := promauto.With(nil)
	m := &Metrics{
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raystream_records_total",
			Help: "Total number of packet records appended to ray log streams",
		}, []string{"width", "stream"}),
		Bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raystream_bytes_total",
			Help: "Total number of bytes appended to ray log streams",
		}, []string{"width", "stream"}),
		ActiveRays: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "raystream_active_rays_total",
			Help: "Total number of active rays in logged packets",
		}, []string{"width", "op"}),
		GeometryDumps: factory.NewCounter(prometheus.CounterOpts{
			Name: "raystream_geometry_dumps_total",
			Help: "Total number of geometry dumps written",
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Records, err = register(reg, m.Records); err != nil {
		return nil, err
	}
	if m.Bytes, err = register(reg, m.Bytes); err != nil {
		return nil, err
	}
	if m.ActiveRays, err = register(reg, m.ActiveRays); err != nil {
		return nil, err
	}
	if m.GeometryDumps, err = register(reg, m.GeometryDumps); err != nil {
		return nil, err
	}
	return m, nil
}

// Register c with reg or return the equivalent collector reg already holds.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("raylog: could not register metrics: %w", err)
}

func (m *Metrics) observeAppend(width int, streamName string, size int) {
	w := strconv.Itoa(width)
	m.Records.WithLabelValues(w, streamName).Inc()
	m.Bytes.WithLabelValues(w, streamName).Add(float64(size))
}
