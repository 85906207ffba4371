// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the scan scheduler and the web server.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/visibility"
)

// ScanCollector records scan progress. It satisfies scan.Recorder, and a nil
// *ScanCollector records nothing.
type ScanCollector struct {
	gatherer prometheus.Gatherer

	Cells       *prometheus.CounterVec
	Slices      prometheus.Counter
	Stale       prometheus.Counter
	Duration    prometheus.Histogram
	Generation  prometheus.Gauge
	Requests    *prometheus.CounterVec
	RequestTime *prometheus.HistogramVec
}

var _ scan.Recorder = (*ScanCollector)(nil)

// NewScanCollector registers the scan and HTTP metrics on reg. A nil reg uses
// the default registerer. Registering twice on the same registry returns the
// collectors already there.
func NewScanCollector(reg prometheus.Registerer) (*ScanCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cells, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hilal_scan_cells_total",
		Help: "Grid cells classified, by visibility tier.",
	}, []string{"tier"}), "hilal_scan_cells_total")
	if err != nil {
		return nil, err
	}
	slices, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hilal_scan_slices_total",
		Help: "Scan slices that yielded back to the host after spending their budget.",
	}), "hilal_scan_slices_total")
	if err != nil {
		return nil, err
	}
	stale, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hilal_scan_stale_total",
		Help: "Scans abandoned because a newer date was requested.",
	}), "hilal_scan_stale_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hilal_scan_duration_seconds",
		Help:    "Wall-clock time from scan start to the last emitted point.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}), "hilal_scan_duration_seconds")
	if err != nil {
		return nil, err
	}
	generation, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hilal_scan_generation",
		Help: "Generation number of the most recently started scan.",
	}), "hilal_scan_generation")
	if err != nil {
		return nil, err
	}
	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hilal_http_requests_total",
		Help: "HTTP requests served, by route pattern and status code.",
	}, []string{"route", "code"}), "hilal_http_requests_total")
	if err != nil {
		return nil, err
	}
	requestTime, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hilal_http_request_duration_seconds",
		Help:    "HTTP request latency, by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"}), "hilal_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &ScanCollector{
		gatherer:    gatherer,
		Cells:       cells,
		Slices:      slices,
		Stale:       stale,
		Duration:    duration,
		Generation:  generation,
		Requests:    requests,
		RequestTime: requestTime,
	}, nil
}

// ScanStarted implements scan.Recorder.
func (c *ScanCollector) ScanStarted(gen scan.Generation) {
	if c == nil || c.Generation == nil {
		return
	}
	c.Generation.Set(float64(gen))
}

// CellClassified implements scan.Recorder.
func (c *ScanCollector) CellClassified(tier visibility.Tier) {
	if c == nil || c.Cells == nil {
		return
	}
	c.Cells.WithLabelValues(tier.String()).Inc()
}

// SliceYielded implements scan.Recorder.
func (c *ScanCollector) SliceYielded() {
	if c == nil || c.Slices == nil {
		return
	}
	c.Slices.Inc()
}

// ScanSuperseded implements scan.Recorder.
func (c *ScanCollector) ScanSuperseded() {
	if c == nil || c.Stale == nil {
		return
	}
	c.Stale.Inc()
}

// ScanCompleted implements scan.Recorder.
func (c *ScanCollector) ScanCompleted(elapsed time.Duration) {
	if c == nil || c.Duration == nil {
		return
	}
	c.Duration.Observe(elapsed.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ScanCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests by chi route pattern so path parameters do not
// explode label cardinality.
func (c *ScanCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if c.Requests != nil {
			c.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		if c.RequestTime != nil {
			c.RequestTime.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, eris.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "register %s", name)
	}
	return gauge, nil
}
