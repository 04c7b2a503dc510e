package otp

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-otp/internal/channelstate"
	"github.com/i5heu/ouroboros-otp/pkg/keygen"
)

// Generate mixes seeds into a table, writes both pools, resets both counters
// to the pool capacity and leaves the channel unentangled and unswapped.
// The seeds are wiped before Generate returns, whatever the outcome.
//
// Seeds are validated before anything is written. A channel that already
// holds units, a counter file or a marker is refused with
// ErrPoolAlreadyExists.
func (c *Channel) Generate(ctx context.Context, seeds []uint32) error { // A
	defer keygen.WipeSeeds(seeds)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}

	gen, err := keygen.New(c.layout, c.log.With("component", "keygen"))
	if err != nil {
		return err
	}
	if err := gen.ValidateSeeds(seeds); err != nil {
		return err
	}

	exists, err := c.pool.Exists()
	if err != nil {
		return err
	}
	leftover, err := c.leftoverState()
	if err != nil {
		return err
	}
	if exists || leftover {
		return ErrPoolAlreadyExists
	}
	if err := c.pool.CheckSpace(); err != nil {
		return err
	}

	table, err := gen.Generate(ctx, seeds)
	if err != nil {
		return err
	}
	defer table.Wipe()

	if err := c.pool.Initialize(ctx, bytes.NewReader(table.Bytes())); err != nil {
		return err
	}

	if err := c.finishGeneration(); err != nil {
		return errors.Join(err, c.pool.Destroy(), c.ledger.Remove(), channelstate.Clear(c.dir))
	}

	c.log.Info("channel generated",
		"unitsPerPool", c.layout.PoolCapacity,
		"envelopeSize", c.layout.EnvelopeSize())
	return nil
}

func (c *Channel) finishGeneration() error {
	if err := c.ledger.ResetAll(); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	if err := channelstate.Save(c.dir, State{}); err != nil {
		return fmt.Errorf("write channel state: %w", err)
	}
	return nil
}

// leftoverState reports whether any counter file or marker of an earlier
// channel is still in the directory.
func (c *Channel) leftoverState() (bool, error) {
	ok, err := c.ledger.AnyExists()
	if err != nil || ok {
		return ok, err
	}
	return channelstate.AnyMarker(c.dir)
}
