// Package id generates and parses identifiers.
//
// Documents are keyed by ObjectID, a 12-byte value rendered as 24 lowercase
// hex characters. Non-document identifiers (token ids, request ids) use the
// prefixed NanoID form returned by Generate.
package id

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ObjectIDLen is the byte length of an ObjectID.
const ObjectIDLen = 12

// hexAlphabet feeds NanoID so the random tail decodes straight to bytes.
const hexAlphabet = "0123456789abcdef"

// ObjectID is the store's native 12-byte document identifier.
// The first four bytes are the big-endian creation time in unix seconds.
type ObjectID [ObjectIDLen]byte

// NilObjectID is the zero ObjectID.
var NilObjectID ObjectID

// New returns a fresh ObjectID stamped with the current time.
func New() ObjectID {
	oid, err := newAt(time.Now())
	if err != nil {
		panic(fmt.Sprintf("failed to generate object id: %v", err))
	}
	return oid
}

func newAt(t time.Time) (ObjectID, error) {
	var oid ObjectID
	binary.BigEndian.PutUint32(oid[:4], uint32(t.Unix()))

	tail, err := gonanoid.Generate(hexAlphabet, (ObjectIDLen-4)*2)
	if err != nil {
		return NilObjectID, fmt.Errorf("generate nanoid: %w", err)
	}
	if _, err := hex.Decode(oid[4:], []byte(tail)); err != nil {
		return NilObjectID, fmt.Errorf("decode nanoid: %w", err)
	}
	return oid, nil
}

// NewHex is shorthand for New().Hex().
func NewHex() string {
	return New().Hex()
}

// Hex returns the 24-character lowercase hex form.
func (o ObjectID) Hex() string {
	return hex.EncodeToString(o[:])
}

// String implements fmt.Stringer.
func (o ObjectID) String() string {
	return o.Hex()
}

// IsZero reports whether o is NilObjectID.
func (o ObjectID) IsZero() bool {
	return o == NilObjectID
}

// Timestamp returns the creation time encoded in the first four bytes.
func (o ObjectID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(o[:4])), 0).UTC()
}

// MarshalText implements encoding.TextMarshaler.
func (o ObjectID) MarshalText() ([]byte, error) {
	return []byte(o.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ObjectID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "req-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	s, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return s
}
