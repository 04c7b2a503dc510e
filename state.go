package otp

import (
	"errors"

	"github.com/i5heu/ouroboros-otp/internal/channelstate"
	"github.com/i5heu/ouroboros-otp/internal/keypool"
	"github.com/i5heu/ouroboros-otp/internal/ledger"
)

// Status is a snapshot of a channel.
type Status struct {
	Generated bool
	State     State

	EncodePool    PoolName
	DecodePool    PoolName
	EncodeCounter Counter
	DecodeCounter Counter

	RemainingEncrypt int
	RemainingDecrypt int
	IncomingUnits    int
	OutgoingUnits    int

	// NextIncoming and NextOutgoing name the unit file each pool hands out
	// next, or "" for an empty pool.
	NextIncoming string
	NextOutgoing string
}

// State loads the channel flags.
func (c *Channel) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return State{}, err
	}
	return channelstate.Load(c.dir)
}

// ToggleEntangled flips which local pool encoding draws from.
func (c *Channel) ToggleEntangled() (State, error) {
	return c.update(func(s State) (State, error) {
		return s.ToggleEntangled(), nil
	})
}

// ToggleSwapped flips which counter encoding decrements.
func (c *Channel) ToggleSwapped() (State, error) {
	return c.update(func(s State) (State, error) {
		return s.ToggleSwapped(), nil
	})
}

// HandOver is what the generating party runs after exporting the channel:
// it takes the mirrored role of the copy it handed out.
func (c *Channel) HandOver() (State, error) {
	return c.ToggleEntangled()
}

// SwapChannels flips both flags at once, so encoding moves to the other pool
// together with the counter that tracks it. Both parties run it to borrow
// the budget of the other direction.
func (c *Channel) SwapChannels() (State, error) {
	return c.update(func(s State) (State, error) {
		ok, err := c.generated()
		if err != nil {
			return s, err
		}
		if !ok {
			return s, ErrNotGenerated
		}
		return s.ToggleSwapped().ToggleEntangled(), nil
	})
}

func (c *Channel) update(fn func(State) (State, error)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return State{}, err
	}

	s, err := channelstate.Load(c.dir)
	if err != nil {
		return State{}, err
	}
	next, err := fn(s)
	if err != nil {
		return s, err
	}
	if err := channelstate.Save(c.dir, next); err != nil {
		return s, err
	}
	c.log.Info("channel state changed",
		"entangled", next.Entangled,
		"swapped", next.Swapped,
		"encodePool", string(next.Pool(channelstate.Encoding)))
	return next, nil
}

// Status reports flags, resolved pools and what is left. An ungenerated
// channel reports Generated false and zero counts.
func (c *Channel) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return Status{}, err
	}

	s, err := channelstate.Load(c.dir)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		State:         s,
		EncodePool:    s.Pool(channelstate.Encoding),
		DecodePool:    s.Pool(channelstate.Decoding),
		EncodeCounter: s.Counter(channelstate.Encoding),
		DecodeCounter: s.Counter(channelstate.Decoding),
	}

	st.Generated, err = c.generated()
	if err != nil || !st.Generated {
		return st, err
	}

	var errs []error
	var e error
	st.RemainingEncrypt, e = c.ledger.Remaining(ledger.Encrypt)
	errs = append(errs, e)
	st.RemainingDecrypt, e = c.ledger.Remaining(ledger.Decrypt)
	errs = append(errs, e)
	st.IncomingUnits, e = c.pool.Len(keypool.Incoming)
	errs = append(errs, e)
	st.OutgoingUnits, e = c.pool.Len(keypool.Outgoing)
	errs = append(errs, e)
	st.NextIncoming, e = c.nextUnit(keypool.Incoming)
	errs = append(errs, e)
	st.NextOutgoing, e = c.nextUnit(keypool.Outgoing)
	errs = append(errs, e)
	return st, errors.Join(errs...)
}

func (c *Channel) nextUnit(name PoolName) (string, error) {
	files, err := c.pool.Remaining(name)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[0], nil
}
