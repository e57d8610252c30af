package publish

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/slug"
	"github.com/papapumpkin/scriptorium/internal/telemetry"
)

// Draft is an unsigned single event ready to be identified and published.
type Draft struct {
	Kind    event.Kind
	Tags    event.Tags
	Content string
	// Slug is the d-tag of an addressable draft. It is added as a d tag when
	// Tags has none.
	Slug string
	// CreatedAt defaults to the publisher clock.
	CreatedAt time.Time
}

// TextNote drafts a kind 1 note with one t tag per topic.
func TextNote(content string, topics ...string) Draft {
	d := Draft{Kind: event.KindTextNote, Content: content}
	for _, t := range topics {
		d.Tags = append(d.Tags, event.Tag{"t", t})
	}
	return d
}

// Deletion drafts a kind 5 request to delete ids. kinds, when given, adds
// the k tags relays use to scope the deletion.
func Deletion(reason string, ids []string, kinds ...event.Kind) Draft {
	d := Draft{Kind: event.KindDeletion, Content: reason}
	for _, id := range ids {
		d.Tags = append(d.Tags, event.Tag{"e", id})
	}
	for _, k := range kinds {
		d.Tags = append(d.Tags, event.Tag{"k", k.String()})
	}
	return d
}

// LongForm drafts a kind 30023 article whose d-tag is derived from title,
// author and version.
func LongForm(meta Metadata, content string) Draft {
	d := Draft{
		Kind:    event.KindLongForm,
		Content: content,
		Slug:    slug.Slug(meta.Title, meta.Author, meta.Version),
	}
	d.Tags = append(d.Tags, event.Tag{"title", meta.Title})
	if meta.Summary != "" {
		d.Tags = append(d.Tags, event.Tag{"summary", meta.Summary})
	}
	if meta.Image != "" {
		d.Tags = append(d.Tags, event.Tag{"image", meta.Image})
	}
	for _, t := range meta.Topics {
		d.Tags = append(d.Tags, event.Tag{"t", t})
	}
	return d
}

// PublishEvent identifies, signs and broadcasts a single draft.
func (p *Publisher) PublishEvent(ctx context.Context, d Draft) (*Record, error) {
	if p.signer == nil {
		return nil, ErrNoSigner
	}
	if d.Content == "" && len(d.Tags) == 0 {
		return nil, ErrEmptyDraft
	}

	created := d.CreatedAt
	if created.IsZero() {
		created = p.clock.Now()
	}
	e := event.New(d.Kind, p.signer.PublicKey(), created.Unix())
	if d.Kind.IsAddressable() && d.Slug != "" {
		if d.Tags.Find("d") == nil {
			_ = e.AddTag("d", d.Slug)
		}
	}
	for _, t := range d.Tags {
		_ = e.AddTag(t...)
	}
	_ = e.SetContent(d.Content)

	ctx, span := p.tracer.Start(ctx, "publish.event", trace.WithAttributes(attribute.Int("event.kind", int(d.Kind))))
	defer span.End()
	_ = p.emitter.Emit(telemetry.Event{
		Kind: telemetry.KindPublishStart,
		Data: map[string]any{"kind": int(d.Kind), "slug": d.Slug, "dry_run": p.dryRun},
	})

	rec, err := p.finish(ctx, e, d.Slug, 0, "")
	if err != nil {
		p.logger.Error("publish event failed", zap.Stringer("kind", d.Kind), zap.Error(err))
		return rec, &RecordError{Kind: d.Kind, Slug: d.Slug, Err: err}
	}
	_ = p.emitter.Emit(telemetry.Event{Kind: telemetry.KindPublishDone, EventID: e.ID})
	return rec, nil
}
