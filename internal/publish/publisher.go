// Package publish turns documents and drafts into signed events and hands
// them to a broadcaster.
//
// A document becomes N section events (kind 30041) and one root index event
// (kind 30040) that references them. Sections are identified, signed and
// broadcast strictly in document order, and the root always comes last
// because its tags depend on every section ID. A section that cannot be
// identified or signed aborts the publication before the root is built; a
// section no relay accepted is reported but still linked.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papapumpkin/scriptorium/internal/document"
	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/ledger"
	"github.com/papapumpkin/scriptorium/internal/linker"
	"github.com/papapumpkin/scriptorium/internal/metrics"
	"github.com/papapumpkin/scriptorium/internal/relay"
	"github.com/papapumpkin/scriptorium/internal/signer"
	"github.com/papapumpkin/scriptorium/internal/slug"
	"github.com/papapumpkin/scriptorium/internal/telemetry"
)

const tracerName = "github.com/papapumpkin/scriptorium/internal/publish"

// NKBIP-01 "M" tag values.
const (
	sectionMarker = "article/publication-content/replaceable"
	indexMarker   = "meta-data/index/replaceable"
)

// Broadcaster delivers a signed event to relays.
type Broadcaster interface {
	Broadcast(ctx context.Context, e event.Event, urls []string) (*relay.Result, error)
}

// Observer is told about every record once it is signed and, unless in dry
// run, broadcast.
type Observer interface {
	RecordPublished(rec Record)
}

// Publisher builds, signs and broadcasts events.
type Publisher struct {
	signer      signer.Signer
	broadcaster Broadcaster

	mode     linker.Mode
	scheme   event.Scheme
	ledger   ledger.Log
	clock    clock.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
	emitter  *telemetry.Emitter
	metrics  *metrics.Collector
	observer Observer
	relays   []string
	dryRun   bool
	maxDepth int
	format   *document.Format
}

// New returns a Publisher signing with s and broadcasting through b. b may
// be nil in dry-run mode.
func New(s signer.Signer, b Broadcaster, opts ...Option) *Publisher {
	p := &Publisher{
		signer:      s,
		broadcaster: b,
		mode:        linker.ModeAddress,
		scheme:      event.SchemeNIP01,
		ledger:      ledger.Nop{},
		clock:       clock.New(),
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
		maxDepth:    document.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishDocument decomposes raw and publishes its sections and root. Flags
// in meta take precedence over the document's front matter; the document's
// first heading is the title of last resort.
//
// On a fatal error the returned result holds the records finished so far.
// A *document.StructureError means nothing was signed or sent.
func (p *Publisher) PublishDocument(ctx context.Context, raw string, meta Metadata) (*PublicationResult, error) {
	if p.signer == nil {
		return nil, ErrNoSigner
	}
	fm, body, err := document.SplitFrontMatter(raw)
	if err != nil {
		return nil, err
	}
	meta = meta.Merge(fm)

	opts := []document.Option{document.WithMaxDepth(p.maxDepth)}
	if p.format != nil {
		opts = append(opts, document.WithFormat(*p.format))
	}
	doc, err := document.Decompose(body, opts...)
	if err != nil {
		return nil, err
	}
	if meta.Title == "" {
		meta.Title = doc.Title
	}
	if meta.RelayHint == "" && len(p.relays) > 0 {
		meta.RelayHint = p.relays[0]
	}

	ctx, span := p.tracer.Start(ctx, "publish.document", trace.WithAttributes(
		attribute.String("publication.title", meta.Title),
		attribute.Int("publication.sections", len(doc.Sections)),
	))
	defer span.End()

	rootSlug := slug.Slug(meta.Title, meta.Author, meta.Version)
	log := p.logger.With(zap.String("publication", rootSlug))
	log.Info("publishing document", zap.Int("sections", len(doc.Sections)), zap.String("mode", string(p.mode)))
	_ = p.emitter.Emit(telemetry.Event{
		Kind: telemetry.KindPublishStart,
		Data: map[string]any{"slug": rootSlug, "sections": len(doc.Sections), "mode": p.mode, "dry_run": p.dryRun},
	})

	createdAt := p.clock.Now().Unix()
	res := &PublicationResult{}
	refs := make([]linker.Ref, 0, len(doc.Sections))

	for _, sec := range doc.Sections {
		secSlug := slug.Section(meta.Title, sec.Title, sec.Number, meta.Author, meta.Version)
		e := event.New(event.KindPublicationSection, p.signer.PublicKey(), createdAt)
		tagDescriptive(e, secSlug, sec.Title, meta.Author, meta.Version)
		_ = e.AddTag("m", doc.Format.MIME())
		_ = e.AddTag("M", sectionMarker)
		_ = e.SetContent(sec.Body)

		rec, err := p.finish(ctx, e, secSlug, sec.Number, sec.Title)
		if err != nil {
			return p.fail(span, res, &RecordError{Index: sec.Number, Kind: e.Kind, Slug: secSlug, Err: err}, err)
		}
		res.Sections = append(res.Sections, *rec)
		refs = append(refs, linker.Ref{
			Kind:      e.Kind,
			PubKey:    e.PubKey,
			Slug:      secSlug,
			ID:        e.ID,
			RelayHint: meta.RelayHint,
		})
	}

	root := event.New(event.KindPublicationIndex, p.signer.PublicKey(), createdAt)
	tagDescriptive(root, rootSlug, meta.Title, meta.Author, meta.Version)
	if meta.Summary != "" {
		_ = root.AddTag("summary", meta.Summary)
	}
	for _, topic := range meta.Topics {
		_ = root.AddTag("t", topic)
	}
	if meta.Image != "" {
		_ = root.AddTag("image", meta.Image)
	}
	if meta.Language != "" {
		_ = root.AddTag("l", meta.Language, "ISO-639-1")
	}
	_ = root.AddTag("m", doc.Format.MIME())
	_ = root.AddTag("M", indexMarker)
	if err := linker.Link(root, refs, p.mode); err != nil {
		return p.fail(span, res, &RecordError{Kind: root.Kind, Slug: rootSlug, Err: err}, err)
	}

	rec, err := p.finish(ctx, root, rootSlug, 0, meta.Title)
	if err != nil {
		return p.fail(span, res, &RecordError{Kind: root.Kind, Slug: rootSlug, Err: err}, err)
	}
	res.Root = *rec

	failures := len(res.Failures())
	log.Info("publication done", zap.String("root", res.Root.Event.ID), zap.Int("unaccepted", failures))
	_ = p.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindPublishDone,
		EventID: res.Root.Event.ID,
		Data:    map[string]any{"slug": rootSlug, "records": len(res.Sections) + 1, "unaccepted": failures},
	})
	return res, nil
}

// fail ends a publication early. Cancellation is returned as is so callers
// can match relay.ErrAborted; every other error is wrapped as recErr.
func (p *Publisher) fail(span trace.Span, res *PublicationResult, recErr *RecordError, err error) (*PublicationResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	_ = p.emitter.Emit(telemetry.Event{Kind: telemetry.KindPublishDone, Data: map[string]any{"error": err.Error()}})
	if errors.Is(err, relay.ErrAborted) {
		return res, err
	}
	p.logger.Error("publication aborted", zap.Int("record", recErr.Index), zap.String("slug", recErr.Slug), zap.Error(err))
	return res, recErr
}

// tagDescriptive adds the d, title, author and version tags shared by
// section and root events.
func tagDescriptive(e *event.Event, d, title, author, version string) {
	_ = e.AddTag("d", d)
	_ = e.AddTag("title", title)
	if author != "" {
		_ = e.AddTag("author", author)
	}
	if version != "" {
		_ = e.AddTag("version", version)
	}
}

// finish seals e, broadcasts it and records it in the ledger. Every sealed
// event reaches the ledger, including one whose broadcast was aborted. Only
// sealing errors, broadcaster fatal errors and cancellation are returned;
// relay rejection is part of the record.
func (p *Publisher) finish(ctx context.Context, e *event.Event, d string, number int, title string) (*Record, error) {
	ctx, span := p.tracer.Start(ctx, "publish.record", trace.WithAttributes(
		attribute.Int("event.kind", int(e.Kind)),
		attribute.String("event.d", d),
	))
	defer span.End()

	if err := signer.Seal(e, p.signer, p.scheme); err != nil {
		span.RecordError(err)
		p.metrics.Record(e.Kind.String(), false)
		return nil, err
	}
	span.SetAttributes(attribute.String("event.id", e.ID))
	_ = p.emitter.Emit(telemetry.Event{
		Kind:    telemetry.KindRecordIdentified,
		EventID: e.ID,
		Data:    map[string]any{"kind": int(e.Kind), "slug": d, "number": number},
	})

	rec := &Record{Event: *e, Slug: d, Number: number, Title: title}
	if p.dryRun || p.broadcaster == nil {
		p.logger.Debug("dry run: not broadcasting", zap.String("event", e.ID), zap.String("slug", d))
		p.observe(*rec)
		return rec, nil
	}

	result, err := p.broadcaster.Broadcast(ctx, *e, p.relays)
	rec.Broadcast = result
	p.appendLedger(context.WithoutCancel(ctx), *e, d)
	if err != nil {
		span.RecordError(err)
		p.metrics.Record(e.Kind.String(), false)
		if result != nil {
			p.observe(*rec)
		}
		return rec, fmt.Errorf("publish: broadcast %s: %w", d, err)
	}
	p.metrics.Record(e.Kind.String(), result.Success())
	if !result.Success() {
		p.logger.Warn("no relay accepted record", zap.String("slug", d), zap.String("event", e.ID), zap.Error(result.Err()))
	}

	p.observe(*rec)
	return rec, nil
}

// appendLedger records e. Ledger failures are logged, never returned.
func (p *Publisher) appendLedger(ctx context.Context, e event.Event, d string) {
	entry := ledger.Entry{EventID: e.ID, Kind: e.Kind, Slug: d, RunID: p.emitter.RunID(), RecordedAt: p.clock.Now()}
	if err := p.ledger.Append(ctx, entry); err != nil {
		p.logger.Warn("ledger append failed", zap.String("event", e.ID), zap.Error(err))
		_ = p.emitter.Emit(telemetry.Event{Kind: telemetry.KindLedgerFailed, EventID: e.ID, Data: map[string]any{"error": err.Error()}})
	}
}

func (p *Publisher) observe(rec Record) {
	if p.observer != nil {
		p.observer.RecordPublished(rec)
	}
}
