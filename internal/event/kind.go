package event

import "strconv"

// Kind classifies the semantic type of an event.
type Kind int

// Well-known kinds produced by this module.
const (
	KindMetadata           Kind = 0
	KindTextNote           Kind = 1
	KindDeletion           Kind = 5
	KindRepost             Kind = 6
	KindReaction           Kind = 7
	KindLongForm           Kind = 30023
	KindPublicationIndex   Kind = 30040
	KindPublicationSection Kind = 30041
)

// String returns the decimal form used in addresses and tags.
func (k Kind) String() string {
	return strconv.Itoa(int(k))
}

// IsReplaceable reports whether relays keep only the latest event per author
// for this kind.
func (k Kind) IsReplaceable() bool {
	return k == KindMetadata || k == 3 || (k >= 10000 && k < 20000)
}

// IsEphemeral reports whether relays are expected not to store the event.
func (k Kind) IsEphemeral() bool {
	return k >= 20000 && k < 30000
}

// IsAddressable reports whether the event is addressed by kind:pubkey:d-tag.
func (k Kind) IsAddressable() bool {
	return k >= 30000 && k < 40000
}

// IsShortForm reports whether the kind is a short-lived social event (notes,
// deletions, reposts, reactions, ephemeral kinds) rather than durable content.
func (k Kind) IsShortForm() bool {
	switch k {
	case KindTextNote, KindDeletion, KindRepost, KindReaction:
		return true
	}
	return k.IsEphemeral()
}
