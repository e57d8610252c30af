package relay

import (
	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/metrics"
	"github.com/papapumpkin/scriptorium/internal/telemetry"
)

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithPolicy sets retry and timeout bounds.
func WithPolicy(p Policy) Option {
	return func(b *Broadcaster) {
		b.policy = p.normalized()
	}
}

// WithTiers sets the default relay tiers used when no URLs are given.
func WithTiers(t Tiers) Option {
	return func(b *Broadcaster) {
		b.tiers = t
	}
}

// WithScheme sets the serialization scheme used to re-verify event IDs.
func WithScheme(s event.Scheme) Option {
	return func(b *Broadcaster) {
		b.scheme = s
	}
}

// WithClock sets the clock driving timeouts, retry delays and elapsed times.
func WithClock(c clock.Clock) Option {
	return func(b *Broadcaster) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Broadcaster) {
		b.metrics = c
	}
}

// WithEmitter writes attempts and outcomes to a telemetry stream.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(b *Broadcaster) {
		b.emitter = e
	}
}

// WithTracer sets the tracer for relay.broadcast spans.
func WithTracer(t trace.Tracer) Option {
	return func(b *Broadcaster) {
		if t != nil {
			b.tracer = t
		}
	}
}
