package keyunit

import (
	"errors"
	"fmt"
)

var ErrUnitSize = errors.New("keyunit: invalid unit size")

// Unit is one single-use block of key material. The low half is the filler
// copied into unused envelope bytes, the high half is the pad added to the
// envelope.
type Unit struct {
	secret *Secret
	half   int
}

// NewUnit takes ownership of b, which must hold two equal halves that are
// each larger than the envelope header.
func NewUnit(b []byte) (*Unit, error) {
	if len(b)%2 != 0 || len(b)/2 <= HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnitSize, len(b))
	}
	return &Unit{secret: WrapSecret(b), half: len(b) / 2}, nil
}

// Join builds a unit from separate halves. Both inputs are copied.
func Join(fill, pad []byte) (*Unit, error) {
	if len(fill) != len(pad) {
		return nil, fmt.Errorf("%w: halves of %d and %d bytes", ErrUnitSize, len(fill), len(pad))
	}
	b := make([]byte, 0, 2*len(fill))
	b = append(b, fill...)
	b = append(b, pad...)
	return NewUnit(b)
}

func (u *Unit) HalfSize() int { return u.half }

func (u *Unit) Size() int { return 2 * u.half }

// Fill is the filler half. It aliases the unit's storage.
func (u *Unit) Fill() []byte {
	b := u.secret.Bytes()
	if b == nil {
		return nil
	}
	return b[:u.half]
}

// Pad is the pad half. It aliases the unit's storage.
func (u *Unit) Pad() []byte {
	b := u.secret.Bytes()
	if b == nil {
		return nil
	}
	return b[u.half:]
}

// Bytes is the whole unit as stored on disk.
func (u *Unit) Bytes() []byte { return u.secret.Bytes() }

// Destroyed reports whether Destroy has run.
func (u *Unit) Destroyed() bool { return u == nil || u.secret.Wiped() }

// Destroy wipes the unit. Safe on nil and when called twice.
func (u *Unit) Destroy() {
	if u == nil {
		return
	}
	u.secret.Wipe()
}

// Clone returns an independent copy. It stands in for the positionally
// matching unit the counterparty holds.
func (u *Unit) Clone() *Unit {
	b := make([]byte, u.Size())
	copy(b, u.secret.Bytes())
	return &Unit{secret: WrapSecret(b), half: u.half}
}
