package event

import (
	"encoding/hex"

	sha256 "github.com/minio/sha256-simd"
)

// ComputeID returns hex(sha256(Serialize(e, s))). It is a pure function of
// pubkey, created_at, kind, tags and content; ID and Sig are ignored.
func ComputeID(e Event, s Scheme) (string, error) {
	data, err := Serialize(e, s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyID recomputes the ID and compares it with e.ID. An event without an
// ID, or one that cannot be serialized, does not verify.
func VerifyID(e Event, s Scheme) bool {
	if e.ID == "" {
		return false
	}
	id, err := ComputeID(e, s)
	return err == nil && id == e.ID
}

// Identify computes and stores the event ID. It runs exactly once per
// logical event: after it succeeds the event is frozen, and changing fields
// means building a new event.
func (e *Event) Identify(s Scheme) error {
	if e.ID != "" {
		return ErrAlreadyIdentified
	}
	id, err := ComputeID(*e, s)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}
