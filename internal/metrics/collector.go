// Package metrics exposes generation and export counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the generator metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	spheresGenerated  prometheus.Counter
	verticesGenerated prometheus.Counter
	facesGenerated    prometheus.Counter
	buildDuration     prometheus.Histogram

	exportsTotal *prometheus.CounterVec
	exportBytes  prometheus.Counter

	wsConnections prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the metrics on reg under namespace.
func NewCollector(reg prometheus.Registerer, namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.spheresGenerated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spheres_generated_total",
		Help:      "Total number of icospheres generated",
	})

	c.verticesGenerated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vertices_generated_total",
		Help:      "Total number of vertices generated",
	})

	c.facesGenerated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "faces_generated_total",
		Help:      "Total number of faces generated",
	})

	c.buildDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "build_duration_seconds",
		Help:      "Time spent building and merging one cloud",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	c.exportsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Total number of OBJ exports",
	}, []string{"status"})

	c.exportBytes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "export_bytes_total",
		Help:      "Total bytes of OBJ text written",
	})

	c.wsConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open preview websocket connections",
	})

	return c
}

// RecordSphere counts one generated icosphere.
func (c *Collector) RecordSphere(vertices, faces int) {
	if c == nil {
		return
	}
	c.spheresGenerated.Inc()
	c.verticesGenerated.Add(float64(vertices))
	c.facesGenerated.Add(float64(faces))
}

// RecordBuild observes the duration of a full cloud build.
func (c *Collector) RecordBuild(d time.Duration) {
	if c == nil {
		return
	}
	c.buildDuration.Observe(d.Seconds())
}

// RecordExport counts an export attempt and, on success, its size.
func (c *Collector) RecordExport(bytes int64, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.exportsTotal.WithLabelValues("error").Inc()
		c.logger.Debug("export failed", zap.Error(err))
		return
	}
	c.exportsTotal.WithLabelValues("ok").Inc()
	c.exportBytes.Add(float64(bytes))
}

// ConnectionOpened and ConnectionClosed track preview clients.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.wsConnections.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.wsConnections.Dec()
}
