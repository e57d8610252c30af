// Package signer turns an author's private key into BIP-340 Schnorr
// signatures over event IDs, and seals events (identify, verify, sign).
package signer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/papapumpkin/scriptorium/internal/event"
)

// Signer produces signatures for identified events.
type Signer interface {
	// PublicKey returns the author's x-only public key as 64 hex characters.
	PublicKey() string
	// Sign returns the 128-hex-character signature over the 32-byte event ID.
	Sign(eventID string) (string, error)
}

var _ Signer = (*Schnorr)(nil)

// Schnorr signs with a secp256k1 private key held in memory.
type Schnorr struct {
	key    *secp256k1.PrivateKey
	pubkey string
}

// FromNsec decodes a bech32 "nsec1..." key. A bare 64-character hex key is
// accepted too.
func FromNsec(nsec string) (*Schnorr, error) {
	nsec = strings.TrimSpace(nsec)
	if nsec == "" {
		return nil, &SigningError{Op: "decode", Err: ErrMissingKey}
	}
	if len(nsec) == 64 && !strings.HasPrefix(nsec, "nsec1") {
		return FromHex(nsec)
	}
	prefix, value, err := nip19.Decode(nsec)
	if err != nil {
		return nil, &SigningError{Op: "decode", Err: fmt.Errorf("%w: %v", ErrMalformedKey, err)}
	}
	if prefix != "nsec" {
		return nil, &SigningError{Op: "decode", Err: fmt.Errorf("%w: got %q", ErrBadPrefix, prefix)}
	}
	skHex, ok := value.(string)
	if !ok {
		return nil, &SigningError{Op: "decode", Err: ErrMalformedKey}
	}
	return FromHex(skHex)
}

// FromHex builds a signer from a 64-character hex private key.
func FromHex(skHex string) (*Schnorr, error) {
	raw, err := hex.DecodeString(skHex)
	if err != nil || len(raw) != 32 {
		return nil, &SigningError{Op: "decode", Err: ErrMalformedKey}
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	if key.Key.IsZero() {
		return nil, &SigningError{Op: "decode", Err: ErrMalformedKey}
	}
	return &Schnorr{
		key:    key,
		pubkey: hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())),
	}, nil
}

// Generate returns a signer with a fresh random key.
func Generate() (*Schnorr, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, &SigningError{Op: "generate", Err: err}
	}
	return &Schnorr{
		key:    key,
		pubkey: hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())),
	}, nil
}

// PublicKey returns the x-only public key in hex.
func (s *Schnorr) PublicKey() string {
	return s.pubkey
}

// Npub returns the bech32 form of the public key.
func (s *Schnorr) Npub() (string, error) {
	return nip19.EncodePublicKey(s.pubkey)
}

// Nsec returns the bech32 form of the private key.
func (s *Schnorr) Nsec() (string, error) {
	return nip19.EncodePrivateKey(hex.EncodeToString(s.key.Serialize()))
}

// Sign signs the 32-byte event ID.
func (s *Schnorr) Sign(eventID string) (string, error) {
	hash, err := hex.DecodeString(eventID)
	if err != nil || len(hash) != 32 {
		return "", &SigningError{Op: "sign", Err: event.ErrNotIdentified}
	}
	sig, err := schnorr.Sign(s.key, hash)
	if err != nil {
		return "", &SigningError{Op: "sign", Err: err}
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// DerivePublicKey returns the hex public key for an nsec without keeping
// the signer around.
func DerivePublicKey(nsec string) (string, error) {
	s, err := FromNsec(nsec)
	if err != nil {
		return "", err
	}
	return s.PublicKey(), nil
}

// Verify checks e.Sig against e.ID and e.PubKey. It does not recompute the
// ID; callers pair it with event.VerifyID.
func Verify(e event.Event) error {
	hash, err := hex.DecodeString(e.ID)
	if err != nil || len(hash) != 32 {
		return &SigningError{Op: "verify", Err: event.ErrNotIdentified}
	}
	pkBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return &SigningError{Op: "verify", Err: event.ErrInvalidPubKey}
	}
	pub, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return &SigningError{Op: "verify", Err: fmt.Errorf("%w: %v", event.ErrInvalidPubKey, err)}
	}
	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return &SigningError{Op: "verify", Err: event.ErrInvalidSignature}
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return &SigningError{Op: "verify", Err: fmt.Errorf("%w: %v", event.ErrInvalidSignature, err)}
	}
	if !sig.Verify(hash, pub) {
		return &SigningError{Op: "verify", Err: ErrBadSignature}
	}
	return nil
}

// Seal finishes an event for broadcast: it fills in the author key when
// missing, computes the ID if not done yet, re-verifies it, signs and
// attaches the signature. An event carrying another author's pubkey is
// refused.
func Seal(e *event.Event, s Signer, scheme event.Scheme) error {
	if s == nil {
		return &SigningError{Op: "seal", Err: ErrMissingKey}
	}
	switch {
	case e.PubKey == "":
		if e.ID != "" {
			return &SigningError{Op: "seal", Err: event.ErrFrozen}
		}
		e.PubKey = s.PublicKey()
	case e.PubKey != s.PublicKey():
		return &SigningError{Op: "seal", Err: ErrPubKeyMismatch}
	}
	if e.ID == "" {
		if err := e.Identify(scheme); err != nil {
			return err
		}
	} else if !event.VerifyID(*e, scheme) {
		return &event.IdentityError{Kind: e.Kind, Field: "id", Err: event.ErrIDMismatch}
	}
	sig, err := s.Sign(e.ID)
	if err != nil {
		return err
	}
	if err := e.AttachSignature(sig); err != nil {
		return &SigningError{Op: "seal", Err: err}
	}
	return nil
}
