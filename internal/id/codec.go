package id

import (
	"encoding/hex"
	"fmt"
	"strings"

	domainerrors "github.com/ilbumi/satin/internal/errors"
)

// ErrInvalidID is matched (via errors.Is) by every Parse failure.
var ErrInvalidID = domainerrors.ErrInvalidID

// injectionChars are rejected before any length or hex check.
const injectionChars = "${}[]();'"

// Reasons reported by InvalidIDError.
const (
	ReasonEmpty     = "empty"
	ReasonInjection = "injection"
	ReasonLength    = "length"
	ReasonNotHex    = "not_hex"
)

// InvalidIDError describes why a string is not a valid ObjectID.
type InvalidIDError struct {
	Input  string
	Reason string
}

func (e *InvalidIDError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "invalid id: empty"
	case ReasonInjection:
		return fmt.Sprintf("invalid id %q: contains forbidden characters", e.Input)
	case ReasonLength:
		return fmt.Sprintf("invalid id %q: must be %d characters, got %d", e.Input, ObjectIDLen*2, len(e.Input))
	default:
		return fmt.Sprintf("invalid id %q: must be hexadecimal", e.Input)
	}
}

// Unwrap exposes a domain INVALID_ID error so errors.Is(err, ErrInvalidID)
// and domainerrors.CodeOf both see the code.
func (e *InvalidIDError) Unwrap() error {
	return domainerrors.InvalidID(e.Error())
}

// Parse converts the external string form into an ObjectID.
// It rejects empty input, injection characters, wrong length and non-hex
// characters, checked in that order.
func Parse(s string) (ObjectID, error) {
	if s == "" {
		return NilObjectID, &InvalidIDError{Input: s, Reason: ReasonEmpty}
	}
	if strings.ContainsAny(s, injectionChars) {
		return NilObjectID, &InvalidIDError{Input: s, Reason: ReasonInjection}
	}
	if len(s) != ObjectIDLen*2 {
		return NilObjectID, &InvalidIDError{Input: s, Reason: ReasonLength}
	}

	var oid ObjectID
	if _, err := hex.Decode(oid[:], []byte(s)); err != nil {
		return NilObjectID, &InvalidIDError{Input: s, Reason: ReasonNotHex}
	}
	return oid, nil
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constants.
func MustParse(s string) ObjectID {
	oid, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// IsValid reports whether s parses as an ObjectID.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Normalize parses s and returns its canonical lowercase hex form.
// ok is false when s is not a valid ObjectID.
func Normalize(s string) (hexID string, ok bool) {
	oid, err := Parse(s)
	if err != nil {
		return "", false
	}
	return oid.Hex(), true
}
