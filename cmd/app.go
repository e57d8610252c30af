package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/papapumpkin/scriptorium/internal/config"
	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/ledger"
	"github.com/papapumpkin/scriptorium/internal/metrics"
	"github.com/papapumpkin/scriptorium/internal/publish"
	"github.com/papapumpkin/scriptorium/internal/relay"
	"github.com/papapumpkin/scriptorium/internal/signer"
	"github.com/papapumpkin/scriptorium/internal/telemetry"
	"github.com/papapumpkin/scriptorium/internal/ui"
)

const serviceName = "scriptorium"

// app holds the collaborators shared by every publishing command.
type app struct {
	cfg       config.Config
	scheme    event.Scheme
	logger    *zap.Logger
	printer   *ui.Printer
	emitter   *telemetry.Emitter
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	provider  *sdktrace.TracerProvider
	tracer    trace.Tracer
	ledger    ledger.Log
	transport *relay.WebsocketTransport
}

// newApp loads and validates configuration and builds the shared runtime.
// Callers must Close the returned app.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, printer: ui.New(cmd.ErrOrStderr()), ledger: ledger.Nop{}}
	a.scheme, _ = cfg.Scheme()
	if a.logger, err = newLogger(cfg.Verbose); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	runID := telemetry.NewRunID()
	if cfg.TelemetryPath != "" {
		if a.emitter, err = telemetry.NewEmitter(cfg.TelemetryPath, runID); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.logger = a.logger.With(zap.String("run", runID))

	a.registry = prometheus.NewRegistry()
	if a.metrics, err = metrics.New(a.registry); err != nil {
		a.Close()
		return nil, err
	}

	a.tracer = otel.Tracer(serviceName)
	if cfg.Trace {
		if a.provider, err = newTracerProvider(cmd); err != nil {
			a.Close()
			return nil, err
		}
		a.tracer = a.provider.Tracer(serviceName)
	}

	if a.transport, err = relay.NewWebsocketTransport(cfg.Broadcast.PoolSize, a.logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openLedger opens the configured ledger. The ledger is best-effort: when
// it cannot be opened the app keeps the no-op log and publishing goes on.
// Commands that never broadcast skip it.
func (a *app) openLedger(ctx context.Context) {
	l, err := ledger.Open(ctx, a.cfg.Ledger.Backend, a.cfg.Ledger.Path)
	if err != nil {
		a.logger.Warn("ledger unavailable", zap.String("backend", a.cfg.Ledger.Backend), zap.Error(err))
		a.printer.Warn(fmt.Sprintf("ledger disabled: %v", err))
		return
	}
	a.ledger = l
}

// signer returns the configured signing key.
func (a *app) signer() (*signer.Schnorr, error) {
	return signer.FromNsec(a.cfg.Nsec)
}

// broadcaster returns a relay broadcaster wired to the app's collaborators.
func (a *app) broadcaster() *relay.Broadcaster {
	return relay.NewBroadcaster(a.transport,
		relay.WithPolicy(a.cfg.Policy()),
		relay.WithTiers(a.cfg.Tiers()),
		relay.WithScheme(a.scheme),
		relay.WithLogger(a.logger),
		relay.WithMetrics(a.metrics),
		relay.WithEmitter(a.emitter),
		relay.WithTracer(a.tracer),
	)
}

// publisher returns a Publisher using the configured key, broadcaster,
// scheme and reference mode. The publisher and its broadcaster share
// a.scheme. extra options are applied last.
func (a *app) publisher(s signer.Signer, extra ...publish.Option) *publish.Publisher {
	mode, _ := a.cfg.Mode()
	opts := []publish.Option{
		publish.WithMode(mode),
		publish.WithScheme(a.scheme),
		publish.WithLedger(a.ledger),
		publish.WithLogger(a.logger),
		publish.WithTracer(a.tracer),
		publish.WithEmitter(a.emitter),
		publish.WithMetrics(a.metrics),
		publish.WithObserver(a.printer),
	}
	return publish.New(s, a.broadcaster(), append(opts, extra...)...)
}

// Close flushes metrics and traces and releases connections and files.
func (a *app) Close() {
	if a.transport != nil {
		_ = a.transport.Close()
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.printer.Warn(fmt.Sprintf("ledger: %v", err))
		}
	}
	if a.cfg.MetricsPath != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsPath, a.registry); err != nil {
			a.printer.Warn(fmt.Sprintf("metrics: %v", err))
		}
	}
	if a.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.provider.Shutdown(ctx)
	}
	_ = a.emitter.Close()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = !verbose
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func newTracerProvider(cmd *cobra.Command) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// setupSignalContext returns a context cancelled on SIGINT or SIGTERM.
func setupSignalContext(parent context.Context, printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			printer.Warn("interrupted, aborting in-flight broadcasts")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
