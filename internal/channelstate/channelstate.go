// Package channelstate holds the two local flags that map a channel's
// physical pools and counters onto encode and decode.
//
// Both flags persist as marker files in the channel directory. The
// entanglement marker is written at generation and present while the flag
// is unset; the swap marker is present while the flag is set.
package channelstate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/i5heu/ouroboros-otp/internal/keypool"
	"github.com/i5heu/ouroboros-otp/internal/ledger"
)

const (
	EntanglementMarker = "symmetry.entanglement"
	SwapMarker         = "swapped"

	markerContent = "1"
)

// Direction is the kind of transform a unit is resolved for.
type Direction int

const (
	Encoding Direction = iota
	Decoding
)

func (d Direction) String() string {
	switch d {
	case Encoding:
		return "encode"
	case Decoding:
		return "decode"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// State is a plain value. Load and Save move it across the process boundary.
type State struct {
	Entangled bool
	Swapped   bool
}

// Pool is the pool a direction draws from. Encoding uses outgoing unless
// entangled; decoding mirrors it.
func (s State) Pool(d Direction) keypool.Name {
	p := keypool.Outgoing
	if s.Entangled {
		p = keypool.Incoming
	}
	if d == Decoding {
		return p.Opposite()
	}
	return p
}

// Counter is the counter a direction decrements. Encoding uses encrypt
// unless swapped; decoding mirrors it.
func (s State) Counter(d Direction) ledger.Counter {
	c := ledger.Encrypt
	if s.Swapped {
		c = ledger.Decrypt
	}
	if d == Decoding {
		return c.Other()
	}
	return c
}

func (s State) ToggleEntangled() State {
	s.Entangled = !s.Entangled
	return s
}

func (s State) ToggleSwapped() State {
	s.Swapped = !s.Swapped
	return s
}

// Load reads the markers in dir.
func Load(dir string) (State, error) {
	entMarker, err := present(filepath.Join(dir, EntanglementMarker))
	if err != nil {
		return State{}, err
	}
	swapMarker, err := present(filepath.Join(dir, SwapMarker))
	if err != nil {
		return State{}, err
	}
	return State{Entangled: !entMarker, Swapped: swapMarker}, nil
}

// Save writes or removes the markers so that Load(dir) returns s.
func Save(dir string, s State) error {
	if err := setMarker(filepath.Join(dir, EntanglementMarker), !s.Entangled); err != nil {
		return err
	}
	return setMarker(filepath.Join(dir, SwapMarker), s.Swapped)
}

// AnyMarker reports whether either marker file is present in dir.
func AnyMarker(dir string) (bool, error) {
	for _, m := range []string{EntanglementMarker, SwapMarker} {
		ok, err := present(filepath.Join(dir, m))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Clear removes both markers. Missing markers are ignored.
func Clear(dir string) error {
	if err := setMarker(filepath.Join(dir, EntanglementMarker), false); err != nil {
		return err
	}
	return setMarker(filepath.Join(dir, SwapMarker), false)
}

func present(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat marker %s: %w", filepath.Base(path), err)
}

func setMarker(path string, on bool) error {
	if on {
		if err := os.WriteFile(path, []byte(markerContent), 0o600); err != nil {
			return fmt.Errorf("write marker %s: %w", filepath.Base(path), err)
		}
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker %s: %w", filepath.Base(path), err)
	}
	return nil
}
