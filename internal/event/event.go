// Package event defines the Nostr event record, its canonical serialization
// and its content-hash identity.
//
// An Event moves through a fixed lifecycle: built (tags and content set),
// identified (ID computed once, event frozen), signed (Sig attached). Only a
// signed event may be broadcast.
package event

import (
	"encoding/json"
	"fmt"
)

// Event is the atomic record published to relays.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      Kind   `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Taggable is satisfied by records whose tag set can be extended before
// identification.
type Taggable interface {
	AddTag(tag ...string) error
	TagList() Tags
}

// Identifiable is satisfied by records with a content-hash identity.
type Identifiable interface {
	EventID() string
	Identify(s Scheme) error
}

// Signable is satisfied by identified records that accept a signature.
type Signable interface {
	Identifiable
	AttachSignature(sig string) error
	IsSigned() bool
}

// Broadcastable is satisfied by records that can be put on the wire.
type Broadcastable interface {
	Identifiable
	IsSigned() bool
	Wire() ([]byte, error)
}

var (
	_ Taggable      = (*Event)(nil)
	_ Signable      = (*Event)(nil)
	_ Broadcastable = (*Event)(nil)
)

// New returns an empty event of the given kind. Tags start as an empty,
// non-nil list so the wire form always carries "tags":[].
func New(kind Kind, pubkey string, createdAt int64) *Event {
	return &Event{
		Kind:      kind,
		PubKey:    pubkey,
		CreatedAt: createdAt,
		Tags:      Tags{},
	}
}

// AddTag appends one tag. It fails once the event has been identified.
func (e *Event) AddTag(tag ...string) error {
	if e.ID != "" {
		return ErrFrozen
	}
	e.Tags = append(e.Tags, Tag(tag))
	return nil
}

// SetContent replaces the content. It fails once the event has been identified.
func (e *Event) SetContent(content string) error {
	if e.ID != "" {
		return ErrFrozen
	}
	e.Content = content
	return nil
}

// TagList returns a copy of the event's tags.
func (e *Event) TagList() Tags {
	return e.Tags.Clone()
}

// EventID returns the computed ID, or "" before identification.
func (e *Event) EventID() string {
	return e.ID
}

// AttachSignature stores sig on an identified, unsigned event.
func (e *Event) AttachSignature(sig string) error {
	if e.ID == "" {
		return ErrNotIdentified
	}
	if e.Sig != "" {
		return ErrAlreadySigned
	}
	if !isHex(sig, 128) {
		return ErrInvalidSignature
	}
	e.Sig = sig
	return nil
}

// IsSigned reports whether a signature is attached. An unsigned event must
// never be broadcast.
func (e *Event) IsSigned() bool {
	return e.Sig != ""
}

// Wire returns the NIP-01 JSON object for the event.
func (e *Event) Wire() ([]byte, error) {
	out := *e
	if out.Tags == nil {
		out.Tags = Tags{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", e.ID, err)
	}
	return data, nil
}

// Parse decodes a NIP-01 JSON object. The returned event's ID is whatever the
// input claimed; callers must run VerifyID before trusting it.
func Parse(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("event: parse: %w", err)
	}
	if e.Tags == nil {
		e.Tags = Tags{}
	}
	return &e, nil
}

// isHex reports whether s is exactly n lowercase hex characters.
func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
