package event

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"
)

// Scheme selects the canonical serialization convention used for hashing.
// A process must use one scheme for every compute and verify.
type Scheme int

const (
	// SchemeNIP01 is the fixed-array form [0,pubkey,created_at,kind,tags,content]
	// that public relays verify.
	SchemeNIP01 Scheme = iota
	// SchemeSortedFields is a JSON object whose field names are sorted
	// alphabetically.
	SchemeSortedFields
)

// String returns the configuration name of the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeNIP01:
		return "nip01"
	case SchemeSortedFields:
		return "sorted"
	default:
		return "scheme(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseScheme maps a configuration name to a Scheme. The empty string selects
// SchemeNIP01.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "", "nip01":
		return SchemeNIP01, nil
	case "sorted":
		return SchemeSortedFields, nil
	default:
		return 0, fmt.Errorf("event: %w: %q", ErrUnknownScheme, name)
	}
}

// Serialize returns the canonical byte form of e under scheme s. ID and Sig
// are never part of the output. Tags keep their order; a nil or empty tag
// list is written as [].
func Serialize(e Event, s Scheme) ([]byte, error) {
	if err := checkFields(e); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 128+len(e.Content)+64*len(e.Tags))
	switch s {
	case SchemeNIP01:
		return appendNIP01(buf, e), nil
	case SchemeSortedFields:
		return appendSorted(buf, e), nil
	default:
		return nil, &IdentityError{Kind: e.Kind, Field: "scheme", Err: ErrUnknownScheme}
	}
}

// checkFields validates everything that feeds the hash.
func checkFields(e Event) error {
	if e.Kind < 0 {
		return &IdentityError{Kind: e.Kind, Field: "kind", Err: ErrInvalidKind}
	}
	if !isHex(e.PubKey, 64) {
		return &IdentityError{Kind: e.Kind, Field: "pubkey", Err: ErrInvalidPubKey}
	}
	if !utf8.ValidString(e.Content) {
		return &IdentityError{Kind: e.Kind, Field: "content", Err: ErrInvalidUTF8}
	}
	for i, t := range e.Tags {
		for j, v := range t {
			if !utf8.ValidString(v) {
				return &IdentityError{Kind: e.Kind, Field: fmt.Sprintf("tags[%d][%d]", i, j), Err: ErrInvalidUTF8}
			}
		}
	}
	return nil
}

func appendNIP01(buf []byte, e Event) []byte {
	buf = append(buf, "[0,"...)
	buf = appendString(buf, e.PubKey)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, e.CreatedAt, 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(e.Kind), 10)
	buf = append(buf, ',')
	buf = appendTags(buf, e.Tags)
	buf = append(buf, ',')
	buf = appendString(buf, e.Content)
	return append(buf, ']')
}

// field pairs a JSON member name with its value writer.
type field struct {
	name  string
	write func([]byte) []byte
}

func appendSorted(buf []byte, e Event) []byte {
	fields := []field{
		{"pubkey", func(b []byte) []byte { return appendString(b, e.PubKey) }},
		{"created_at", func(b []byte) []byte { return strconv.AppendInt(b, e.CreatedAt, 10) }},
		{"kind", func(b []byte) []byte { return strconv.AppendInt(b, int64(e.Kind), 10) }},
		{"tags", func(b []byte) []byte { return appendTags(b, e.Tags) }},
		{"content", func(b []byte) []byte { return appendString(b, e.Content) }},
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].name < fields[j].name })

	buf = append(buf, '{')
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendString(buf, f.name)
		buf = append(buf, ':')
		buf = f.write(buf)
	}
	return append(buf, '}')
}

func appendTags(buf []byte, tags Tags) []byte {
	buf = append(buf, '[')
	for i, t := range tags {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		for j, v := range t {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = appendString(buf, v)
		}
		buf = append(buf, ']')
	}
	return append(buf, ']')
}

const hexDigits = "0123456789abcdef"

// appendString writes s as a JSON string with the NIP-01 escape set: quote,
// backslash and the short control escapes; other control bytes as \u00XX;
// everything else verbatim, including '<', '>', '&', U+2028 and U+2029.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				continue
			}
			buf = append(buf, c)
		}
	}
	return append(buf, '"')
}
