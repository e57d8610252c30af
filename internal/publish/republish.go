package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/signer"
)

// eventSchema is the JSON Schema for a signed NIP-01 event.
const eventSchema = `{
  "type": "object",
  "required": ["id", "pubkey", "created_at", "kind", "tags", "content", "sig"],
  "properties": {
    "id":         {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "pubkey":     {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "created_at": {"type": "integer", "minimum": 0},
    "kind":       {"type": "integer", "minimum": 0, "maximum": 65535},
    "tags": {
      "type": "array",
      "items": {"type": "array", "minItems": 1, "items": {"type": "string"}}
    },
    "content":    {"type": "string"},
    "sig":        {"type": "string", "pattern": "^[0-9a-f]{128}$"}
  }
}`

// ValidateJSON checks raw against the signed event schema. It returns an
// error wrapping ErrInvalidEvent that lists every violation.
func ValidateJSON(raw []byte) error {
	res, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(eventSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if res.Valid() {
		return nil
	}
	details := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		details = append(details, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(details, "; "))
}

// Republish broadcasts an event that was signed elsewhere. The event must
// pass schema validation, its ID must match its content under the
// publisher's scheme and its signature must verify; it is never re-signed.
func (p *Publisher) Republish(ctx context.Context, raw []byte) (*Record, error) {
	err := ValidateJSON(raw)
	p.metrics.SchemaValidation(err == nil)
	if err != nil {
		return nil, err
	}
	e, err := event.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if !event.VerifyID(*e, p.scheme) {
		return nil, &event.IdentityError{Kind: e.Kind, Field: "id", Err: event.ErrIDMismatch}
	}
	if err := signer.Verify(*e); err != nil {
		return nil, err
	}

	rec := &Record{Event: *e}
	if d := e.Tags.Find("d"); d != nil {
		rec.Slug = d.Value()
	}
	if p.dryRun || p.broadcaster == nil {
		p.observe(*rec)
		return rec, nil
	}

	result, err := p.broadcaster.Broadcast(ctx, *e, p.relays)
	rec.Broadcast = result
	p.appendLedger(context.WithoutCancel(ctx), *e, rec.Slug)
	if err != nil {
		return rec, fmt.Errorf("publish: republish %s: %w", e.ID, err)
	}
	p.metrics.Record(e.Kind.String(), result.Success())
	if !result.Success() {
		p.logger.Warn("no relay accepted republished event", zap.String("event", e.ID), zap.Error(result.Err()))
	}
	p.observe(*rec)
	return rec, nil
}
