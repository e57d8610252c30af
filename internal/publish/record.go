package publish

import (
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/papapumpkin/scriptorium/internal/event"
	"github.com/papapumpkin/scriptorium/internal/relay"
)

// Record is one signed event and what happened when it was broadcast.
type Record struct {
	Event event.Event
	Slug  string
	// Number is the section number, 0 for roots and single events.
	Number int
	Title  string
	// Broadcast is nil in dry-run mode.
	Broadcast *relay.Result
}

// Accepted reports whether some relay took the event. Dry-run records count
// as not accepted.
func (r Record) Accepted() bool {
	return r.Broadcast != nil && r.Broadcast.Success()
}

// Nevent returns the NIP-19 nevent pointer for the record.
func (r Record) Nevent() (string, error) {
	var relays []string
	if r.Broadcast != nil {
		relays = r.Broadcast.Successful()
	}
	return nip19.EncodeEvent(r.Event.ID, relays, r.Event.PubKey)
}

// Naddr returns the NIP-19 naddr pointer for addressable records, or "" for
// other kinds.
func (r Record) Naddr() (string, error) {
	if !r.Event.Kind.IsAddressable() || r.Slug == "" {
		return "", nil
	}
	var relays []string
	if r.Broadcast != nil {
		relays = r.Broadcast.Successful()
	}
	return nip19.EncodeEntity(r.Event.PubKey, int(r.Event.Kind), r.Slug, relays)
}

// PublicationResult holds the root and section records of one document.
type PublicationResult struct {
	Root     Record
	Sections []Record
}

// Events returns the sections' events followed by the root, in publish order.
func (p *PublicationResult) Events() []event.Event {
	out := make([]event.Event, 0, len(p.Sections)+1)
	for _, s := range p.Sections {
		out = append(out, s.Event)
	}
	if p.Root.Event.ID != "" {
		out = append(out, p.Root.Event)
	}
	return out
}

// Failures returns the broadcast records no relay accepted.
func (p *PublicationResult) Failures() []Record {
	var out []Record
	for _, s := range p.Sections {
		if s.Broadcast != nil && !s.Broadcast.Success() {
			out = append(out, s)
		}
	}
	if p.Root.Broadcast != nil && !p.Root.Broadcast.Success() {
		out = append(out, p.Root)
	}
	return out
}
