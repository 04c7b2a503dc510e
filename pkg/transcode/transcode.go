// Package transcode turns a message into a fixed-size ciphertext with one
// key unit, and back.
//
// The plaintext envelope is a seven digit length header, the message, and
// filler taken from the unit's low half, always exactly one half-unit long.
// Each envelope byte is added (mod 256) to the matching byte of the unit's
// high half. Decoding subtracts the pad again. No checksum is carried, so any
// unit of the right size decodes any ciphertext into a well-formed envelope.
package transcode

import (
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
)

var (
	ErrInputMissing        = errors.New("transcode: no input supplied")
	ErrMessageEmpty        = errors.New("transcode: message is empty")
	ErrMessageTooLarge     = errors.New("transcode: message too large")
	ErrCiphertextWrongSize = errors.New("transcode: ciphertext has wrong size")
	ErrUnitDestroyed       = errors.New("transcode: key unit already destroyed")
)

// ValidateMessage checks a message against the envelope of a layout with
// the given half size.
func ValidateMessage(msg []byte, halfSize int) error {
	if msg == nil {
		return ErrInputMissing
	}
	if len(msg) == 0 {
		return ErrMessageEmpty
	}
	if limit := halfSize - keyunit.HeaderSize; len(msg) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(msg), limit)
	}
	return nil
}

// ValidateCiphertext checks that c is exactly one envelope long.
func ValidateCiphertext(c []byte, halfSize int) error {
	if c == nil {
		return ErrInputMissing
	}
	if len(c) != halfSize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrCiphertextWrongSize, len(c), halfSize)
	}
	return nil
}

// Encode seals msg with unit. The unit is read, not destroyed; the caller
// owns its lifetime.
func Encode(msg []byte, unit *keyunit.Unit) ([]byte, error) { // A
	if unit.Destroyed() {
		return nil, ErrUnitDestroyed
	}
	half := unit.HalfSize()
	if err := ValidateMessage(msg, half); err != nil {
		return nil, err
	}

	env := keyunit.NewSecret(half)
	defer env.Wipe()
	buildEnvelope(env.Bytes(), msg, unit.Fill())

	return addPad(env.Bytes(), unit.Pad()), nil
}

// Decode recovers the message sealed in cipher. Any unit of matching size
// succeeds; only the paired unit gives back the original message.
func Decode(cipher []byte, unit *keyunit.Unit) ([]byte, error) { // A
	if unit.Destroyed() {
		return nil, ErrUnitDestroyed
	}
	half := unit.HalfSize()
	if err := ValidateCiphertext(cipher, half); err != nil {
		return nil, err
	}

	env := keyunit.NewSecret(half)
	defer env.Wipe()
	e := env.Bytes()
	subtractPad(e, cipher, unit.Pad())

	n := readHeader(e, half-keyunit.HeaderSize)
	msg := make([]byte, n)
	copy(msg, e[keyunit.HeaderSize:keyunit.HeaderSize+n])
	return msg, nil
}

// DecoyKey builds a unit that decodes cipher into decoy. filler becomes the
// new unit's low half and the envelope tail, so a decoy key looks like any
// other unit. filler must be one envelope long.
func DecoyKey(cipher, decoy, filler []byte) (*keyunit.Unit, error) {
	half := len(cipher)
	if half <= keyunit.HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextWrongSize, half)
	}
	if err := ValidateMessage(decoy, half); err != nil {
		return nil, err
	}
	if len(filler) != half {
		return nil, fmt.Errorf("%w: filler of %d bytes, want %d", keyunit.ErrUnitSize, len(filler), half)
	}

	env := keyunit.NewSecret(half)
	defer env.Wipe()
	e := env.Bytes()
	buildEnvelope(e, decoy, filler)

	pad := make([]byte, half)
	for i := range pad {
		pad[i] = cipher[i] - e[i]
	}
	defer keyunit.Overwrite(pad)
	return keyunit.Join(filler, pad)
}

func addPad(env, pad []byte) []byte {
	out := make([]byte, len(env))
	for i := range out {
		out[i] = env[i] + pad[i]
	}
	return out
}

// subtractPad writes cipher minus pad (mod 256) into env. The branch keeps
// every intermediate value non-negative.
func subtractPad(env, cipher, pad []byte) {
	for i := range env {
		if pad[i] <= cipher[i] {
			env[i] = cipher[i] - pad[i]
		} else {
			env[i] = byte(256 - int(pad[i]) + int(cipher[i]))
		}
	}
}
