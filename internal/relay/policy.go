package relay

import (
	"time"

	"github.com/papapumpkin/scriptorium/internal/event"
)

// Policy bounds how hard the broadcaster tries.
type Policy struct {
	// MaxAttempts is the number of full passes over the relay set before the
	// fallback relay is tried.
	MaxAttempts int
	// RetryDelay is the pause between passes.
	RetryDelay time.Duration
	// PerRelayTimeout bounds one send to one relay.
	PerRelayTimeout time.Duration
	// Concurrency caps simultaneous relay tasks in one pass; 0 means one task
	// per relay.
	Concurrency int
}

// DefaultPolicy returns three attempts five seconds apart with a ten second
// per-relay timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		RetryDelay:      5 * time.Second,
		PerRelayTimeout: 10 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	if p.PerRelayTimeout <= 0 {
		p.PerRelayTimeout = d.PerRelayTimeout
	}
	if p.Concurrency < 0 {
		p.Concurrency = 0
	}
	return p
}

// Tiers lists the default relays used when the caller names none. Short
// notes go to a small tier; durable content goes to a larger one.
type Tiers struct {
	Notes           []string
	Content         []string
	FallbackNotes   string
	FallbackContent string
}

// DefaultTiers returns the built-in public relay tiers.
func DefaultTiers() Tiers {
	return Tiers{
		Notes:           []string{"wss://relay.damus.io", "wss://nos.lol"},
		Content:         []string{"wss://thecitadel.nostr1.com", "wss://relay.damus.io", "wss://nos.lol", "wss://relay.nostr.band"},
		FallbackNotes:   "wss://relay.primal.net",
		FallbackContent: "wss://theforest.nostr1.com",
	}
}

// ForKind returns the default relay set for events of kind k.
func (t Tiers) ForKind(k event.Kind) []string {
	if k.IsShortForm() {
		return append([]string(nil), t.Notes...)
	}
	return append([]string(nil), t.Content...)
}

// FallbackFor returns the last-resort relay for events of kind k, or "".
func (t Tiers) FallbackFor(k event.Kind) string {
	if k.IsShortForm() {
		return t.FallbackNotes
	}
	return t.FallbackContent
}
