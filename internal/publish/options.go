package publish

import (
	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papapumpkin/scriptorium/internal/document"
	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/ledger"
	"github.com/papapumpkin/scriptorium/internal/linker"
	"github.com/papapumpkin/scriptorium/internal/metrics"
	"github.com/papapumpkin/scriptorium/internal/telemetry"
)

// Option configures a Publisher.
type Option func(*Publisher)

// WithMode sets how the root references its sections.
func WithMode(m linker.Mode) Option {
	return func(p *Publisher) {
		p.mode = m
	}
}

// WithScheme sets the canonical serialization scheme for event IDs.
func WithScheme(s event.Scheme) Option {
	return func(p *Publisher) {
		p.scheme = s
	}
}

// WithLedger records every broadcast event in l.
func WithLedger(l ledger.Log) Option {
	return func(p *Publisher) {
		if l != nil {
			p.ledger = l
		}
	}
}

// WithClock sets the clock used for created_at timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Publisher) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer for publish spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Publisher) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithEmitter writes publish progress to a telemetry stream.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(p *Publisher) {
		p.emitter = e
	}
}

// WithMetrics counts published records on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Publisher) {
		p.metrics = c
	}
}

// WithRelays sets the relays every record goes to. Empty means the
// broadcaster's default tier for each kind.
func WithRelays(urls ...string) Option {
	return func(p *Publisher) {
		p.relays = append([]string(nil), urls...)
	}
}

// WithDryRun identifies and signs records without broadcasting them.
func WithDryRun(dry bool) Option {
	return func(p *Publisher) {
		p.dryRun = dry
	}
}

// WithMaxDepth sets the deepest heading level accepted in documents.
func WithMaxDepth(n int) Option {
	return func(p *Publisher) {
		p.maxDepth = n
	}
}

// WithFormat fixes the document markup format instead of detecting it.
func WithFormat(f document.Format) Option {
	return func(p *Publisher) {
		p.format = &f
	}
}

// WithObserver reports each record as soon as it is done.
func WithObserver(o Observer) Option {
	return func(p *Publisher) {
		p.observer = o
	}
}
