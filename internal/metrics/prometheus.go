package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/hyperscrape/internal/crawler"
)

// Namespace prefixes every metric name.
const Namespace = "hyperscrape"

// Prometheus records crawl progress as Prometheus metrics.
// It implements crawler.Recorder.
type Prometheus struct {
	registry *prometheus.Registry

	drivesVisited  *prometheus.CounterVec
	pending        prometheus.Gauge
	visited        prometheus.Gauge
	filesRead      *prometheus.CounterVec
	keysDiscovered prometheus.Counter
	drivesMounted  prometheus.Counter
	failures       *prometheus.CounterVec
}

var _ crawler.Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them on a fresh
// registry, together with the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		drivesVisited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "drives_visited_total",
			Help:      "Drives drained from the frontier, by outcome.",
		}, []string{"status"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "frontier_pending",
			Help:      "Drives waiting in the frontier.",
		}),
		visited: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "frontier_visited",
			Help:      "Drives drained from the frontier in the current run.",
		}),
		filesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_read_total",
			Help:      "Files read for addresses, by result.",
		}, []string{"result"}),
		keysDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "keys_discovered_total",
			Help:      "New drive keys added to the frontier.",
		}),
		drivesMounted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "drives_mounted_total",
			Help:      "Drives mounted into the root drive.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failures_total",
			Help:      "Recoverable crawl failures, by kind.",
		}, []string{"kind"}),
	}

	p.registry.MustRegister(
		p.drivesVisited,
		p.pending,
		p.visited,
		p.filesRead,
		p.keysDiscovered,
		p.drivesMounted,
		p.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the registry holding all collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// DriveVisited counts one drained drive.
func (p *Prometheus) DriveVisited(status string) {
	p.drivesVisited.WithLabelValues(status).Inc()
}

// FrontierSize sets the pending and visited gauges.
func (p *Prometheus) FrontierSize(pending, visited int) {
	p.pending.Set(float64(pending))
	p.visited.Set(float64(visited))
}

// FileRead counts one file read.
func (p *Prometheus) FileRead(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	p.filesRead.WithLabelValues(result).Inc()
}

// KeysDiscovered adds n newly queued keys.
func (p *Prometheus) KeysDiscovered(n int) {
	p.keysDiscovered.Add(float64(n))
}

// DriveMounted counts one mount.
func (p *Prometheus) DriveMounted() {
	p.drivesMounted.Inc()
}

// Failure counts one failure of the given kind.
func (p *Prometheus) Failure(kind string) {
	p.failures.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler exposing the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Server serves /metrics in the background for the duration of a crawl.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Serve starts serving p on addr. Use "127.0.0.1:0" to pick a free port.
func Serve(addr string, p *Prometheus, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Debug("serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
