package otp

import (
	"fmt"
	"io"

	"github.com/i5heu/ouroboros-otp/internal/bundle"
	"github.com/i5heu/ouroboros-otp/internal/channelstate"
	"github.com/i5heu/ouroboros-otp/internal/ledger"
)

// channelEntries are the parts of a channel directory that travel to the
// counterparty. Plain and cipher files never do.
func channelEntries() []string {
	entries := []string{"keys", channelstate.EntanglementMarker, channelstate.SwapMarker}
	for _, c := range ledger.Counters() {
		entries = append(entries, c.FileName())
	}
	return entries
}

// Export writes the channel as a tar.xz stream for the counterparty. The
// generating party exports before HandOver so the copy keeps the initial
// role.
func (c *Channel) Export(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	ok, err := c.generated()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotGenerated
	}

	// badger holds the index open; it reopens on the next operation
	if err := c.pool.Release(); err != nil {
		return fmt.Errorf("release index: %w", err)
	}
	if err := bundle.Export(w, c.dir, channelEntries()); err != nil {
		return err
	}
	c.log.Info("channel exported", "path", c.dir)
	return nil
}

// Import unpacks an exported channel into dir, which must be empty or
// absent. Open the result with New and Start.
func Import(r io.Reader, dir string) error {
	return bundle.Import(r, dir)
}
