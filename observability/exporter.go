package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xrbt/config"
	"github.com/benz9527/xrbt/lib/infra"
	"github.com/benz9527/xrbt/xlog"
)

// Serves for test/dev environment.
func newConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (*metric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	return mp, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
func newPrometheusMetricsExporter(reg *prometheus.Registry) (*metric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(metric.WithReader(exporter)), nil
}

type exporterCfg struct {
	stdout io.Writer
	logger xlog.XLogger
}

type ExporterOption func(*exporterCfg)

// WithStdoutWriter redirects the stdout exporter, stderr by default since
// the record book menu owns stdout.
func WithStdoutWriter(w io.Writer) ExporterOption {
	return func(cfg *exporterCfg) {
		cfg.stdout = w
	}
}

func WithExporterLogger(logger xlog.XLogger) ExporterOption {
	return func(cfg *exporterCfg) {
		cfg.logger = logger
	}
}

// Metrics owns the meter provider and whatever exports it.
type Metrics struct {
	Provider otelmetric.MeterProvider
	// Handler serves the prometheus scrape, nil for other exporters.
	Handler   http.Handler
	addr      string
	shutdowns []func(ctx context.Context) error
}

// Addr is the bound scrape address, empty without prometheus.
func (m *Metrics) Addr() string {
	return m.addr
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	var err error
	for i := len(m.shutdowns) - 1; i >= 0; i-- {
		err = multierr.Append(err, m.shutdowns[i](ctx))
	}
	m.shutdowns = nil
	return err
}

// NewMeterProvider builds the configured exporter and installs the provider
// globally.
func NewMeterProvider(ctx context.Context, cfg config.MetricsConfig, opts ...ExporterOption) (*Metrics, error) {
	ecfg := &exporterCfg{stdout: os.Stderr}
	for _, o := range opts {
		o(ecfg)
	}

	m := &Metrics{}
	switch cfg.Exporter {
	case config.ExporterNone, "":
		m.Provider = noop.NewMeterProvider()
	case config.ExporterStdout:
		timeout := cfg.Interval
		if timeout > 30*time.Second {
			timeout = 30 * time.Second
		}
		mp, err := newConsoleMetricsExporter(cfg.Interval, timeout, stdoutmetric.WithWriter(ecfg.stdout))
		if err != nil {
			return nil, infra.WrapErrorStackWithMessage(err, "[metrics] stdout exporter")
		}
		m.Provider = mp
		m.shutdowns = append(m.shutdowns, mp.Shutdown)
	case config.ExporterPrometheus:
		reg := prometheus.NewRegistry()
		mp, err := newPrometheusMetricsExporter(reg)
		if err != nil {
			return nil, infra.WrapErrorStackWithMessage(err, "[metrics] prometheus exporter")
		}
		m.Provider = mp
		m.shutdowns = append(m.shutdowns, mp.Shutdown)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		m.Handler = mux

		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
		if err != nil {
			_ = mp.Shutdown(ctx)
			return nil, infra.WrapErrorStackWithMessage(err, "[metrics] listen "+cfg.Addr)
		}
		m.addr = ln.Addr().String()
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && ecfg.logger != nil {
				ecfg.logger.Error(err, "[metrics] scrape server stopped")
			}
		}()
		m.shutdowns = append(m.shutdowns, srv.Shutdown)
		if ecfg.logger != nil {
			ecfg.logger.Info("[metrics] prometheus scrape ready", zap.String("addr", m.addr))
		}
	default:
		return nil, infra.NewErrorStack("[metrics] unknown exporter " + cfg.Exporter)
	}
	otel.SetMeterProvider(m.Provider)
	return m, nil
}
