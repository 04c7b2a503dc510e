package otp

import (
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-otp/internal/channelstate"
	"github.com/i5heu/ouroboros-otp/internal/ledger"
	"github.com/i5heu/ouroboros-otp/pkg/keyunit"
	"github.com/i5heu/ouroboros-otp/pkg/transcode"
)

// Encode seals msg with the next unit of the pool the channel state resolves
// for encoding and decrements the matching counter. The ciphertext is always
// one envelope long.
func (c *Channel) Encode(msg []byte) ([]byte, error) { // A
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := transcode.ValidateMessage(msg, c.layout.HalfSize); err != nil {
		return nil, err
	}

	unit, err := c.take(channelstate.Encoding)
	if err != nil {
		return nil, err
	}
	defer unit.Destroy()

	return transcode.Encode(msg, unit)
}

// Decode opens cipher with the next unit of the pool the channel state
// resolves for decoding. Any ciphertext of the right size decodes; a
// mismatched unit yields unrelated bytes, not an error.
func (c *Channel) Decode(cipher []byte) ([]byte, error) { // A
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := transcode.ValidateCiphertext(cipher, c.layout.HalfSize); err != nil {
		return nil, err
	}

	unit, err := c.take(channelstate.Decoding)
	if err != nil {
		return nil, err
	}
	defer unit.Destroy()

	return transcode.Decode(cipher, unit)
}

// Skip destroys the next unit a direction resolves to and decrements its
// counter without transforming anything. Both parties skip the same
// direction pair to drop a message that was encoded but never delivered.
func (c *Channel) Skip(d Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	if d != channelstate.Encoding && d != channelstate.Decoding {
		return fmt.Errorf("otp: unknown direction %v", d)
	}

	unit, err := c.take(d)
	if err != nil {
		return err
	}
	unit.Destroy()
	c.log.Info("key unit skipped", "direction", d.String())
	return nil
}

// take resolves pool and counter for d, checks them against each other and
// consumes one unit. All checks run before the unit is touched.
func (c *Channel) take(d Direction) (*keyunit.Unit, error) {
	state, err := channelstate.Load(c.dir)
	if err != nil {
		return nil, err
	}
	poolName := state.Pool(d)
	counter := state.Counter(d)

	remaining, err := c.ledger.Remaining(counter)
	if errors.Is(err, ledger.ErrLedgerMissing) {
		return nil, fmt.Errorf("%w: %v", ErrNotGenerated, err)
	}
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		return nil, fmt.Errorf("%w: %s counter at zero", ErrLedgerExhausted, counter)
	}

	units, err := c.pool.Len(poolName)
	if err != nil {
		return nil, err
	}
	if units == 0 {
		return nil, fmt.Errorf("%w: %s pool empty", ErrKeysDepleted, poolName)
	}
	if units != remaining {
		return nil, fmt.Errorf("%w: %s counter %d, %s pool %d units",
			ErrLedgerDiverged, counter, remaining, poolName, units)
	}

	unit, err := c.pool.Consume(poolName)
	if err != nil {
		return nil, err
	}
	left, err := c.ledger.Decrement(counter)
	if err != nil {
		// the unit is gone already; the counter is now one too high
		unit.Destroy()
		return nil, fmt.Errorf("%w: unit consumed but counter not updated: %v", ErrLedgerDiverged, err)
	}

	c.log.Debug("key unit taken",
		"direction", d.String(),
		"pool", string(poolName),
		"counter", string(counter),
		"remaining", left)
	return unit, nil
}
