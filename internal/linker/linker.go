// Package linker attaches section references to a publication root event.
//
// Two addressing modes exist and a root uses exactly one of them:
//
//   - ModeEvent ("e") pins each section by event ID. Cheap, but a section
//     republished under a new ID leaves the root pointing at the old one
//     until the root itself is republished.
//   - ModeAddress ("a") points at kind:pubkey:slug, which readers resolve to
//     the latest event at that slug, so sections can be updated without
//     touching the root. Readers must trust slug uniqueness per author.
//
// Choosing the mode is a caller decision surfaced as configuration; Link
// does not second-guess it.
package linker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/papapumpkin/scriptorium/internal/event"
)

// Mode selects how a root references its sections.
type Mode string

const (
	// ModeEvent references sections by event ID ("e" tags).
	ModeEvent Mode = "e"
	// ModeAddress references sections by kind:pubkey:slug ("a" tags).
	ModeAddress Mode = "a"
)

// Sentinel errors for linking.
var (
	// ErrUnknownMode indicates a mode other than "e" or "a".
	ErrUnknownMode = errors.New("unknown reference mode")
	// ErrUnidentifiedRef indicates a section reference without a computed event ID.
	ErrUnidentifiedRef = errors.New("section has no event id")
	// ErrMixedModes indicates the root already carries references of the other mode.
	ErrMixedModes = errors.New("root already carries references of the other mode")
)

// ParseMode maps "a"/"address" and "e"/"event" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "address":
		return ModeAddress, nil
	case "e", "event":
		return ModeEvent, nil
	}
	return "", fmt.Errorf("linker: %w: %q", ErrUnknownMode, s)
}

// Ref identifies one section event.
type Ref struct {
	Kind      event.Kind
	PubKey    string
	Slug      string
	ID        string
	RelayHint string
}

// Address returns the composite kind:pubkey:slug address.
func (r Ref) Address() string {
	return r.Kind.String() + ":" + r.PubKey + ":" + r.Slug
}

// Link appends one reference tag per ref to root, in ref order. Every ref
// must already carry its event ID, and root must not be identified yet, so
// the root's own ID is always computed last.
func Link(root *event.Event, refs []Ref, mode Mode) error {
	if mode != ModeEvent && mode != ModeAddress {
		return fmt.Errorf("linker: %w: %q", ErrUnknownMode, mode)
	}
	if root.ID != "" {
		return fmt.Errorf("linker: %w", event.ErrFrozen)
	}
	for i, r := range refs {
		if r.ID == "" {
			return fmt.Errorf("linker: ref %d (%s): %w", i, r.Slug, ErrUnidentifiedRef)
		}
	}
	other := string(ModeAddress)
	if mode == ModeAddress {
		other = string(ModeEvent)
	}
	if len(root.Tags.FindAll(other)) > 0 {
		return fmt.Errorf("linker: %w", ErrMixedModes)
	}

	for _, r := range refs {
		var err error
		if mode == ModeEvent {
			err = root.AddTag(string(ModeEvent), r.ID)
		} else {
			err = root.AddTag(string(ModeAddress), r.Address(), r.RelayHint, r.ID)
		}
		if err != nil {
			return fmt.Errorf("linker: %w", err)
		}
	}
	return nil
}

// Refs reads the section references back from a root event. The mode is ""
// when the root carries no references.
func Refs(root event.Event) (Mode, []Ref) {
	if tags := root.Tags.FindAll(string(ModeAddress)); len(tags) > 0 {
		refs := make([]Ref, 0, len(tags))
		for _, t := range tags {
			refs = append(refs, parseAddress(t))
		}
		return ModeAddress, refs
	}
	tags := root.Tags.FindAll(string(ModeEvent))
	if len(tags) == 0 {
		return "", nil
	}
	refs := make([]Ref, 0, len(tags))
	for _, t := range tags {
		refs = append(refs, Ref{ID: t.Value(), RelayHint: t.At(2)})
	}
	return ModeEvent, refs
}

func parseAddress(t event.Tag) Ref {
	r := Ref{RelayHint: t.At(2), ID: t.At(3)}
	parts := strings.SplitN(t.Value(), ":", 3)
	if len(parts) != 3 {
		return r
	}
	if k, err := strconv.Atoi(parts[0]); err == nil {
		r.Kind = event.Kind(k)
	}
	r.PubKey, r.Slug = parts[1], parts[2]
	return r
}
