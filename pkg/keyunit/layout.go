// Package keyunit holds the single-use key material of a channel: the
// geometry every size derives from, the in-memory Unit wrapper that wipes
// itself, and file shredding for consumed units.
package keyunit

import (
	"errors"
	"fmt"
)

// HeaderSize is the number of decimal digit bytes in front of every envelope.
const HeaderSize = 7

const (
	DefaultHalfSize     = 1_000_007
	DefaultPoolCapacity = 125
	DefaultTableSize    = 501_000_000
	DefaultSeedCount    = 90

	// file names are three digits wide
	maxPoolCapacity = 999
)

var ErrInvalidLayout = errors.New("keyunit: invalid layout")

// Layout is the geometry of a channel. A unit is two halves of HalfSize
// bytes; each of the two pools holds PoolCapacity units; the generator mixes
// a table of TableSize bytes from SeedCount seeds.
type Layout struct {
	HalfSize     int
	PoolCapacity int
	TableSize    int
	SeedCount    int
}

// DefaultLayout returns the production geometry.
func DefaultLayout() Layout {
	return Layout{
		HalfSize:     DefaultHalfSize,
		PoolCapacity: DefaultPoolCapacity,
		TableSize:    DefaultTableSize,
		SeedCount:    DefaultSeedCount,
	}
}

// WithDefaults fills zero fields from DefaultLayout.
func (l Layout) WithDefaults() Layout {
	d := DefaultLayout()
	if l.HalfSize == 0 {
		l.HalfSize = d.HalfSize
	}
	if l.PoolCapacity == 0 {
		l.PoolCapacity = d.PoolCapacity
	}
	if l.TableSize == 0 {
		l.TableSize = d.TableSize
	}
	if l.SeedCount == 0 {
		l.SeedCount = d.SeedCount
	}
	return l
}

// UnitSize is the length of one key unit on disk.
func (l Layout) UnitSize() int { return 2 * l.HalfSize }

// EnvelopeSize is the length of every ciphertext.
func (l Layout) EnvelopeSize() int { return l.HalfSize }

// MaxMessage is the largest message an envelope carries.
func (l Layout) MaxMessage() int { return l.HalfSize - HeaderSize }

// Units is the number of units the table is split into.
func (l Layout) Units() int { return 2 * l.PoolCapacity }

func (l Layout) Validate() error {
	switch {
	case l.HalfSize <= HeaderSize:
		return fmt.Errorf("%w: half size %d leaves no room for a message", ErrInvalidLayout, l.HalfSize)
	case l.HalfSize > DefaultHalfSize:
		return fmt.Errorf("%w: half size %d exceeds %d", ErrInvalidLayout, l.HalfSize, DefaultHalfSize)
	case l.PoolCapacity < 1 || l.PoolCapacity > maxPoolCapacity:
		return fmt.Errorf("%w: pool capacity %d out of [1,%d]", ErrInvalidLayout, l.PoolCapacity, maxPoolCapacity)
	case l.TableSize < l.Units()*l.UnitSize():
		return fmt.Errorf(
			"%w: table of %d bytes cannot hold %d units of %d bytes",
			ErrInvalidLayout, l.TableSize, l.Units(), l.UnitSize(),
		)
	case l.SeedCount < 2:
		return fmt.Errorf("%w: need at least two seeds, got %d", ErrInvalidLayout, l.SeedCount)
	}
	return nil
}
