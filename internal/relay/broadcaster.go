// Package relay delivers signed events to Nostr relays.
//
// A Broadcaster fans one event out to a relay set concurrently, one task per
// relay, and judges each pass as a whole: a single acceptance ends the
// broadcast. Passes with no acceptance are retried after a delay, and after
// the last pass one extra attempt goes to a kind-dependent fallback relay.
// Relay failures never escape as errors; they are reported per relay in the
// Result. Only local problems (unsigned event, bad ID) and cancellation are
// returned as errors.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/metrics"
	"github.com/papapumpkin/scriptorium/internal/telemetry"
)

const tracerName = "github.com/papapumpkin/scriptorium/internal/relay"

// Broadcaster sends signed events to relays with bounded retries and a
// fallback relay.
type Broadcaster struct {
	transport Transport
	policy    Policy
	tiers     Tiers
	scheme    event.Scheme
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Collector
	emitter   *telemetry.Emitter
	tracer    trace.Tracer
}

// NewBroadcaster returns a Broadcaster sending through t with the default
// policy and tiers.
func NewBroadcaster(t Transport, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		transport: t,
		policy:    DefaultPolicy(),
		tiers:     DefaultTiers(),
		scheme:    event.SchemeNIP01,
		clock:     clock.New(),
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Policy returns the effective policy.
func (b *Broadcaster) Policy() Policy {
	return b.policy
}

// Broadcast delivers e to urls, or to the default tier for e.Kind when urls
// is empty. Total rejection is not an error: inspect Result.Success and
// Result.Err. The returned error is non-nil only for an unsigned event, an
// event whose ID does not match its content, or cancellation of ctx; in the
// last case the partial Result is returned as well.
func (b *Broadcaster) Broadcast(ctx context.Context, e event.Event, urls []string) (*Result, error) {
	if !e.IsSigned() {
		return nil, fmt.Errorf("relay: broadcast: %w", ErrUnsigned)
	}
	if !event.VerifyID(e, b.scheme) {
		return nil, &event.IdentityError{Kind: e.Kind, Field: "id", Err: event.ErrIDMismatch}
	}

	ctx, span := b.tracer.Start(ctx, "relay.broadcast", trace.WithAttributes(
		attribute.String("event.id", e.ID),
		attribute.Int("event.kind", int(e.Kind)),
	))
	defer span.End()

	start := b.clock.Now()
	res := &Result{EventID: e.ID, Kind: e.Kind}
	log := b.logger.With(zap.String("event", shortID(e.ID)), zap.Int("kind", int(e.Kind)))

	if len(urls) == 0 {
		urls = b.tiers.ForKind(e.Kind)
	}
	targets, refused := normalizeURLs(urls)
	for _, u := range refused {
		b.record(res, e.ID, Outcome{URL: u, Status: StatusFailed, Err: &RelayError{URL: u, Err: ErrInvalidURL}})
	}

	aborted := false
	for attempt := 1; attempt <= b.policy.MaxAttempts && len(targets) > 0; attempt++ {
		if attempt > 1 {
			if err := b.sleep(ctx, b.policy.RetryDelay); err != nil {
				aborted = true
				break
			}
		}
		res.Attempts++
		b.pass(ctx, e, targets, res, false)
		if res.Success() {
			break
		}
		if ctx.Err() != nil {
			aborted = true
			break
		}
		log.Debug("no relay accepted", zap.Int("attempt", attempt), zap.Int("of", b.policy.MaxAttempts))
	}

	if !aborted && !res.Success() {
		if fb := b.tiers.FallbackFor(e.Kind); fb != "" {
			if fbTargets, _ := normalizeURLs([]string{fb}); len(fbTargets) > 0 {
				log.Info("trying fallback relay", zap.String("relay", fbTargets[0]))
				res.Attempts++
				res.UsedFallback = true
				b.pass(ctx, e, fbTargets, res, true)
				aborted = !res.Success() && ctx.Err() != nil
			}
		}
	}

	if !res.Success() && e.Kind == event.KindDeletion && !aborted {
		res.Notes = append(res.Notes, "deletion rejected by every relay: many relays only honour kind 5 from the original author of the referenced events, and some ignore deletions entirely")
	}

	elapsed := b.clock.Since(start)
	b.metrics.Broadcast(e.Kind.String(), res.Success(), res.Attempts, elapsed)
	_ = b.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindBroadcastDone,
		EventID: e.ID,
		Data: map[string]any{
			"success":    res.Success(),
			"attempts":   res.Attempts,
			"fallback":   res.UsedFallback,
			"aborted":    aborted,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
	span.SetAttributes(attribute.Int("relay.attempts", res.Attempts), attribute.Bool("relay.success", res.Success()))

	if aborted {
		res.Aborted = true
		span.SetStatus(codes.Error, "aborted")
		log.Warn("broadcast aborted", zap.Int("attempts", res.Attempts))
		return res, fmt.Errorf("relay: broadcast %s: %w: %w", shortID(e.ID), ErrAborted, context.Cause(ctx))
	}
	if !res.Success() {
		span.SetStatus(codes.Error, "no relay accepted")
		log.Warn("no relay accepted event", zap.Strings("relays", res.Failed()), zap.Int("attempts", res.Attempts))
	}
	return res, nil
}

// pass sends e to every target concurrently and appends the outcomes to res
// in target order. Each task owns one slot of the outcome slice.
func (b *Broadcaster) pass(ctx context.Context, e event.Event, targets []string, res *Result, fallback bool) {
	attempt := res.Attempts
	_ = b.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindBroadcastAttempt,
		EventID: e.ID,
		Data:    map[string]any{"attempt": attempt, "relays": targets, "fallback": fallback},
	})

	outcomes := make([]Outcome, len(targets))
	var g errgroup.Group
	if b.policy.Concurrency > 0 {
		g.SetLimit(b.policy.Concurrency)
	}
	for i, u := range targets {
		g.Go(func() error {
			outcomes[i] = b.send(ctx, e, u, attempt, fallback)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		b.record(res, e.ID, o)
	}
}

// send performs one transport call and classifies its result. A panicking
// transport becomes a failed outcome.
func (b *Broadcaster) send(ctx context.Context, e event.Event, u string, attempt int, fallback bool) (o Outcome) {
	o = Outcome{URL: u, Attempt: attempt, Fallback: fallback}
	start := b.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			o.Status = StatusFailed
			o.Err = &RelayError{URL: u, Err: fmt.Errorf("%w: %v", ErrTransportFault, r)}
		}
		o.Elapsed = b.clock.Since(start)
	}()

	if ctx.Err() != nil {
		o.Status = StatusAborted
		o.Err = &RelayError{URL: u, Err: ErrAborted}
		return o
	}

	rctx, cancel := b.clock.WithTimeout(ctx, b.policy.PerRelayTimeout)
	defer cancel()

	ack, err := b.transport.Send(rctx, e, u)
	o.Message = ack.Message
	for _, n := range ack.Notices {
		o.Message = strings.TrimSpace(o.Message + " notice: " + n)
	}
	switch {
	case err == nil && ack.Accepted:
		o.Status = StatusAccepted
	case err == nil:
		o.Status = StatusRejected
		o.Err = &RelayError{URL: u, Message: ack.Message, Err: ErrRejected}
	case ctx.Err() != nil:
		o.Status = StatusAborted
		o.Err = &RelayError{URL: u, Err: fmt.Errorf("%w: %w", ErrAborted, err)}
	case errors.Is(err, context.DeadlineExceeded) || rctx.Err() != nil:
		o.Status = StatusTimedOut
		o.Err = &RelayError{URL: u, Err: err}
	default:
		o.Status = StatusFailed
		o.Err = &RelayError{URL: u, Err: err}
	}
	return o
}

// record appends o to res and reports it to logs, metrics and telemetry.
func (b *Broadcaster) record(res *Result, id string, o Outcome) {
	res.Outcomes = append(res.Outcomes, o)
	b.metrics.RelayOutcome(o.URL, string(o.Status))

	fields := []zap.Field{
		zap.String("relay", o.URL),
		zap.String("status", string(o.Status)),
		zap.Int("attempt", o.Attempt),
		zap.Duration("elapsed", o.Elapsed),
	}
	if o.Message != "" {
		fields = append(fields, zap.String("message", o.Message))
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	b.logger.Debug("relay outcome", fields...)

	data := map[string]any{"status": o.Status, "attempt": o.Attempt, "elapsed_ms": o.Elapsed.Milliseconds()}
	if o.Message != "" {
		data["message"] = o.Message
	}
	_ = b.emitter.Emit(telemetry.Event{Kind: telemetry.KindRelayOutcome, EventID: id, Relay: o.URL, Data: data})
}

// sleep waits d on the broadcaster's clock, returning early with the
// context's error on cancellation.
func (b *Broadcaster) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := b.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// normalizeURLs trims and de-duplicates urls, splitting them into usable
// ws:// or wss:// targets and refused entries. Order is preserved.
func normalizeURLs(urls []string) (targets, refused []string) {
	seen := make(map[string]bool, len(urls))
	for _, raw := range urls {
		u := strings.TrimRight(strings.TrimSpace(raw), "/")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") || parsed.Host == "" {
			refused = append(refused, u)
			continue
		}
		targets = append(targets, u)
	}
	return targets, refused
}
